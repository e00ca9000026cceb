package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ticketeer-bot/ticketeer/ticketbot"
	"github.com/ticketeer-bot/ticketeer/ticketbot/config"
	"github.com/ticketeer-bot/ticketeer/ticketbot/tickets"
)

var Priority = discord.SlashCommandCreate{
	Name:        "priority",
	Description: "🚩 Set this ticket's priority",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionInt{
			Name:        "level",
			Description: "Priority level",
			Required:    true,
			Choices: []discord.ApplicationCommandOptionChoiceInt{
				{Name: "Low", Value: 1},
				{Name: "Medium", Value: 2},
				{Name: "High", Value: 3},
				{Name: "Urgent", Value: 4},
			},
		},
	},
}

var Tag = discord.SlashCommandCreate{
	Name:        "tag",
	Description: "🏷️ Manage this ticket's tags",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "add",
			Description: "Add a tag",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Tag to add",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "remove",
			Description: "Remove a tag",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        "name",
					Description: "Tag to remove",
					Required:    true,
				},
			},
		},
	},
}

var Watch = discord.SlashCommandCreate{
	Name:        "watch",
	Description: "👀 Manage who gets updates about this ticket",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionSubCommand{
			Name:        "add",
			Description: "Subscribe a user to ticket updates",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "User to subscribe",
					Required:    true,
				},
			},
		},
		discord.ApplicationCommandOptionSubCommand{
			Name:        "remove",
			Description: "Unsubscribe a user from ticket updates",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        "user",
					Description: "User to unsubscribe",
					Required:    true,
				},
			},
		},
	},
}

var Rate = discord.SlashCommandCreate{
	Name:        "rate",
	Description: "⭐ Rate your closed ticket",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionInt{
			Name:        "stars",
			Description: "1 to 5 stars",
			Required:    true,
			MinValue:    intPtr(1),
			MaxValue:    intPtr(5),
		},
	},
}

func intPtr(v int) *int { return &v }

func PriorityHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		level := e.SlashCommandInteractionData().Int("level")
		ticket, err := b.Manager.SetPriority(ctx, e.Channel().ID().String(), actorFromEvent(e), level)
		if err != nil {
			return replyOutcome(e, err, "")
		}
		return replyOutcome(e, nil,
			fmt.Sprintf("Ticket #%04d priority set to %s.", ticket.TicketNumber, config.PriorityLabels[level]))
	}
}

func TagHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		name := data.String("name")
		channelID := e.Channel().ID().String()
		actor := actorFromEvent(e)

		switch *data.SubCommandName {
		case "add":
			return replyOutcome(e, b.Manager.AddTag(ctx, channelID, actor, name),
				fmt.Sprintf("Tag `%s` added.", name))
		case "remove":
			return replyOutcome(e, b.Manager.RemoveTag(ctx, channelID, actor, name),
				fmt.Sprintf("Tag `%s` removed.", name))
		}
		return nil
	}
}

func WatchHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		user := data.User("user")
		watcher := tickets.Actor{UserID: user.ID.String(), IsBot: user.Bot}
		channelID := e.Channel().ID().String()
		actor := actorFromEvent(e)

		switch *data.SubCommandName {
		case "add":
			return replyOutcome(e, b.Manager.AddWatcher(ctx, channelID, actor, watcher),
				fmt.Sprintf("<@%s> now gets updates about this ticket.", watcher.UserID))
		case "remove":
			return replyOutcome(e, b.Manager.RemoveWatcher(ctx, channelID, actor, watcher),
				fmt.Sprintf("<@%s> no longer gets updates about this ticket.", watcher.UserID))
		}
		return nil
	}
}

func RateHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		stars := e.SlashCommandInteractionData().Int("stars")
		err := b.Manager.Rate(ctx, e.Channel().ID().String(), actorFromEvent(e), stars)
		return replyOutcome(e, err, "Thanks for your feedback! 💙")
	}
}
