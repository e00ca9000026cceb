package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ticketeer-bot/ticketeer/ticketbot"
	"github.com/ticketeer-bot/ticketeer/ticketbot/tickets"
)

var Claim = discord.SlashCommandCreate{
	Name:        "claim",
	Description: "✋ Claim this ticket",
}

var Unclaim = discord.SlashCommandCreate{
	Name:        "unclaim",
	Description: "↩️ Release this ticket back to the queue",
}

var Close = discord.SlashCommandCreate{
	Name:        "close",
	Description: "🔒 Close this ticket",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "reason",
			Description: "Why is this ticket being closed?",
			Required:    false,
		},
		discord.ApplicationCommandOptionInt{
			Name:        "delay",
			Description: "Close after this many minutes instead of now (1-60)",
			Required:    false,
		},
	},
}

var CancelClose = discord.SlashCommandCreate{
	Name:        "cancelclose",
	Description: "✅ Cancel a scheduled close on this ticket",
}

var Reopen = discord.SlashCommandCreate{
	Name:        "reopen",
	Description: "🔓 Reopen this ticket",
}

var Archive = discord.SlashCommandCreate{
	Name:        "archive",
	Description: "📦 Archive this ticket as a read-only record",
}

var Transfer = discord.SlashCommandCreate{
	Name:        "transfer",
	Description: "🔁 Hand this ticket to another staff member",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionUser{
			Name:        "staff",
			Description: "Staff member to take over",
			Required:    true,
		},
	},
}

var Merge = discord.SlashCommandCreate{
	Name:        "merge",
	Description: "🔗 Merge this ticket into another one",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionChannel{
			Name:        "target",
			Description: "Channel of the ticket to merge into",
			Required:    true,
		},
	},
}

func ClaimHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		ticket, err := b.Manager.Claim(ctx, e.Channel().ID().String(), actorFromEvent(e))
		if err != nil {
			return replyOutcome(e, err, "")
		}
		return replyOutcome(e, nil, fmt.Sprintf("Ticket #%04d is now handled by <@%s>.", ticket.TicketNumber, ticket.ClaimedBy))
	}
}

func UnclaimHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		ticket, err := b.Manager.Unclaim(ctx, e.Channel().ID().String(), actorFromEvent(e))
		if err != nil {
			return replyOutcome(e, err, "")
		}
		return replyOutcome(e, nil, fmt.Sprintf("Ticket #%04d is back in the queue.", ticket.TicketNumber))
	}
}

func CloseHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		reason := data.String("reason")
		delay, _ := data.OptInt("delay")

		ticket, err := b.Manager.Close(ctx, e.Channel().ID().String(), actorFromEvent(e), reason, delay)
		if err != nil {
			return replyOutcome(e, err, "")
		}
		if ticket.HasScheduledClose() {
			return replyOutcome(e, nil,
				fmt.Sprintf("Ticket #%04d will close <t:%d:R>. Use /cancelclose to keep it open.",
					ticket.TicketNumber, ticket.ScheduledCloseAt.Unix()))
		}
		return replyOutcome(e, nil, fmt.Sprintf("Ticket #%04d closed. This channel will be removed shortly.", ticket.TicketNumber))
	}
}

func CancelCloseHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		ticket, err := b.Manager.CancelScheduledClose(ctx, e.Channel().ID().String(), actorFromEvent(e))
		if err != nil {
			return replyOutcome(e, err, "")
		}
		return replyOutcome(e, nil, fmt.Sprintf("Scheduled close on ticket #%04d cancelled.", ticket.TicketNumber))
	}
}

func ReopenHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		ticket, err := b.Manager.Reopen(ctx, e.Channel().ID().String(), actorFromEvent(e))
		if err != nil {
			return replyOutcome(e, err, "")
		}
		return replyOutcome(e, nil, fmt.Sprintf("Ticket #%04d reopened.", ticket.TicketNumber))
	}
}

func ArchiveHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		ticket, err := b.Manager.Archive(ctx, e.Channel().ID().String(), actorFromEvent(e))
		if err != nil {
			return replyOutcome(e, err, "")
		}
		return replyOutcome(e, nil, fmt.Sprintf("Ticket #%04d archived. The channel is now read-only.", ticket.TicketNumber))
	}
}

func TransferHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		targetUser := data.User("staff")
		target := tickets.Actor{
			UserID: targetUser.ID.String(),
			IsBot:  targetUser.Bot,
		}
		if member, ok := data.Resolved.Members[targetUser.ID]; ok {
			for _, roleID := range member.RoleIDs {
				target.RoleIDs = append(target.RoleIDs, roleID.String())
			}
		}
		if target.IsBot {
			return replyError(e, "Tickets cannot be transferred to bots.")
		}

		ticket, err := b.Manager.Transfer(ctx, e.Channel().ID().String(), actorFromEvent(e), target)
		if err != nil {
			return replyOutcome(e, err, "")
		}
		return replyOutcome(e, nil, fmt.Sprintf("Ticket #%04d transferred to <@%s>.", ticket.TicketNumber, target.UserID))
	}
}

func MergeHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		data := e.SlashCommandInteractionData()
		targetChannel := data.Channel("target")

		ticket, err := b.Manager.Merge(ctx, e.Channel().ID().String(), targetChannel.ID.String(), actorFromEvent(e))
		if err != nil {
			return replyOutcome(e, err, "")
		}
		return replyOutcome(e, nil,
			fmt.Sprintf("Ticket #%04d merged into <#%s>. This channel will be removed shortly.",
				ticket.TicketNumber, targetChannel.ID))
	}
}
