package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ticketeer-bot/ticketeer/ticketbot"
	"github.com/ticketeer-bot/ticketeer/ticketbot/handlers"
	"github.com/ticketeer-bot/ticketeer/ticketbot/hours"
)

var Ticket = discord.SlashCommandCreate{
	Name:        "ticket",
	Description: "🎫 Open a support ticket",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "subject",
			Description: "What do you need help with?",
			Required:    false,
		},
		discord.ApplicationCommandOptionInt{
			Name:         "category",
			Description:  "Ticket category",
			Required:     false,
			Autocomplete: true,
		},
	},
}

func TicketHandler(b *ticketbot.Bot, guard *handlers.SpamGuard) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if e.GuildID() == nil {
			return replyError(e, "Tickets can only be opened inside a server.")
		}
		guildID := e.GuildID().String()
		actor := actorFromEvent(e)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cfg, err := b.GuildConfigs.GetOrCreate(ctx, guildID)
		if err != nil {
			return replyError(e, "Something went wrong, please try again.")
		}

		if !guard.Allow(guildID, actor.UserID, cfg.SpamThreshold, time.Duration(cfg.SpamWindowSeconds)*time.Second) {
			return replyError(e, "You are opening tickets too quickly. Please slow down.")
		}

		if result := hours.Evaluate(cfg, time.Now()); !result.Open {
			msg := "Support is currently outside business hours."
			if result.NextOpen != "" {
				msg = fmt.Sprintf("%s We are back: **%s**.", msg, result.NextOpen)
			}
			// Informational only; the ticket is still created.
			_, _ = e.Client().Rest().CreateMessage(e.Channel().ID(), discord.MessageCreate{
				Embeds: []discord.Embed{{Description: msg, Color: 0xfee75c}},
			})
		}

		data := e.SlashCommandInteractionData()
		subject := data.String("subject")
		var categoryID *int64
		if category, ok := data.OptInt("category"); ok {
			id := int64(category)
			categoryID = &id
		}

		if err := e.DeferCreateMessage(true); err != nil {
			return fmt.Errorf("failed to defer message: %w", err)
		}

		ticket, err := b.Manager.Create(ctx, guildID, actor, categoryID, subject)
		if err != nil {
			return updateOutcome(e, err, "")
		}
		return updateOutcome(e, nil,
			fmt.Sprintf("Ticket **#%04d** opened: <#%s>", ticket.TicketNumber, ticket.ChannelID))
	}
}

// TicketCategoryAutocomplete completes the category option from the guild's
// configured categories.
func TicketCategoryAutocomplete(b *ticketbot.Bot) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		if e.GuildID() == nil {
			return e.AutocompleteResult(nil)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		categories, err := b.CategoryRepo.ListByGuild(ctx, e.GuildID().String())
		if err != nil {
			return e.AutocompleteResult(nil)
		}

		choices := make([]discord.AutocompleteChoice, 0, len(categories))
		for _, category := range categories {
			if len(choices) == 25 {
				break
			}
			name := category.Name
			if category.Emoji != "" {
				name = category.Emoji + " " + name
			}
			choices = append(choices, discord.AutocompleteChoiceInt{
				Name:  name,
				Value: int(category.ID),
			})
		}
		return e.AutocompleteResult(choices)
	}
}
