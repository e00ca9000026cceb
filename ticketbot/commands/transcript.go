package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ticketeer-bot/ticketeer/ticketbot"
	"github.com/ticketeer-bot/ticketeer/ticketbot/config"
)

var Transcript = discord.SlashCommandCreate{
	Name:        "transcript",
	Description: "📄 Save a transcript of this ticket (staff only)",
}

func TranscriptHandler(b *ticketbot.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if e.GuildID() == nil {
			return replyError(e, "This command only works inside a server.")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		ticket, err := b.Manager.Get(ctx, e.Channel().ID().String())
		if err != nil {
			return replyOutcome(e, err, "")
		}

		cfg, err := b.GuildConfigs.GetOrCreate(ctx, ticket.GuildID)
		if err != nil {
			return replyError(e, "Failed to load the server configuration.")
		}
		actor := actorFromEvent(e)
		if !actor.IsAdmin && !cfg.HasStaffRole(actor.RoleIDs) {
			return replyError(e, "Only staff can save transcripts.")
		}
		if b.Archiver == nil {
			return replyError(e, "Transcript storage is not configured.")
		}

		if err := e.DeferCreateMessage(true); err != nil {
			return fmt.Errorf("failed to defer message: %w", err)
		}

		url, err := b.Archiver.Archive(ctx, ticket)
		if err != nil {
			return updateOutcome(e, err, "")
		}
		_, uerr := e.UpdateInteractionResponse(discord.MessageUpdate{
			Embeds: &[]discord.Embed{{
				Title:       "📄 Transcript saved",
				Description: fmt.Sprintf("Ticket #%04d transcript: %s", ticket.TicketNumber, url),
				Color:       config.SuccessColor,
			}},
		})
		return uerr
	}
}
