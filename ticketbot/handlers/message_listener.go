package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"

	"github.com/ticketeer-bot/ticketeer/ticketbot"
	"github.com/ticketeer-bot/ticketeer/ticketbot/tickets"
)

// MessageListener watches ticket channels: every non-bot message bumps the
// activity counter, the first staff message settles the first-response SLA,
// and keyword triggers fire auto-responses.
func MessageListener(b *ticketbot.Bot) bot.EventListener {
	return bot.NewListenerFunc(func(e *events.MessageCreate) {
		if e.Message.Author.Bot || e.GuildID == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		channelID := e.ChannelID.String()
		ticket, err := b.Manager.Get(ctx, channelID)
		if err != nil {
			// Not a ticket channel.
			return
		}
		if !ticket.Active() {
			return
		}

		if err := b.TicketRepo.RecordActivity(ctx, channelID, time.Now()); err != nil {
			slog.Warn("Activity update failed",
				slog.String("channel_id", channelID), slog.Any("error", err))
		}

		actor := actorFromMessage(e)
		if actor.UserID != ticket.OwnerID {
			if err := b.Manager.RecordResponse(ctx, channelID, actor); err != nil && !errors.Is(err, tickets.ErrNotFound) {
				slog.Warn("First-response recording failed",
					slog.String("channel_id", channelID), slog.Any("error", err))
			}
		}

		runTriggers(ctx, b, e, ticket.GuildID)
	})
}

func actorFromMessage(e *events.MessageCreate) tickets.Actor {
	actor := tickets.Actor{
		UserID: e.Message.Author.ID.String(),
		IsBot:  e.Message.Author.Bot,
	}
	if e.Message.Member != nil {
		for _, roleID := range e.Message.Member.RoleIDs {
			actor.RoleIDs = append(actor.RoleIDs, roleID.String())
		}
	}
	return actor
}

// runTriggers answers the first enabled trigger whose keyword appears in the
// message. One response per message, most-recently-created trigger does not
// win: list order decides.
func runTriggers(ctx context.Context, b *ticketbot.Bot, e *events.MessageCreate, guildID string) {
	triggers, err := b.TriggerRepo.ListEnabled(ctx, guildID)
	if err != nil {
		slog.Warn("Trigger lookup failed",
			slog.String("guild_id", guildID), slog.Any("error", err))
		return
	}
	if len(triggers) == 0 {
		return
	}

	content := strings.ToLower(e.Message.Content)
	for _, trigger := range triggers {
		if !strings.Contains(content, strings.ToLower(trigger.Keyword)) {
			continue
		}
		_, err := b.Client.Rest().CreateMessage(e.ChannelID, discord.MessageCreate{
			Content: trigger.Response,
			MessageReference: &discord.MessageReference{
				MessageID: &e.Message.ID,
			},
		})
		if err != nil {
			slog.Warn("Trigger response failed",
				slog.Int64("trigger_id", trigger.ID), slog.Any("error", err))
			return
		}
		if err := b.TriggerRepo.IncrementUses(ctx, trigger.ID); err != nil {
			slog.Warn("Trigger usage counter update failed",
				slog.Int64("trigger_id", trigger.ID), slog.Any("error", err))
		}
		return
	}
}
