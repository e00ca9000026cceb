// Package notify fans ticket events out to the ticket channel, the guild
// log channel or webhook, watcher DMs and the audit log. Everything here is
// best-effort: a failed delivery is logged and swallowed so the operation
// that triggered it still succeeds.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/webhook"
	"github.com/disgoorg/snowflake/v2"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/repositories"
	"github.com/ticketeer-bot/ticketeer/ticketbot/sla"
	"github.com/ticketeer-bot/ticketeer/ticketbot/tickets"
)

const (
	colorNeutral = 0x2b2d31
	colorSuccess = 0x57f287
	colorWarning = 0xfee75c
	colorDanger  = 0xed4245
)

var eventTitles = map[tickets.Event]struct {
	title string
	color int
}{
	tickets.EventCreated:        {"🎫 Ticket Opened", colorSuccess},
	tickets.EventClaimed:        {"✋ Ticket Claimed", colorNeutral},
	tickets.EventUnclaimed:      {"↩️ Ticket Released", colorNeutral},
	tickets.EventTransferred:    {"🔁 Ticket Transferred", colorNeutral},
	tickets.EventClosed:         {"🔒 Ticket Closed", colorDanger},
	tickets.EventCloseScheduled: {"⏲️ Close Scheduled", colorWarning},
	tickets.EventCloseCancelled: {"✅ Scheduled Close Cancelled", colorSuccess},
	tickets.EventReopened:       {"🔓 Ticket Reopened", colorSuccess},
	tickets.EventArchived:       {"📦 Ticket Archived", colorNeutral},
	tickets.EventMerged:         {"🔗 Ticket Merged", colorNeutral},
	tickets.EventPrioritySet:    {"🚩 Priority Changed", colorWarning},
	tickets.EventRated:          {"⭐ Ticket Rated", colorNeutral},
}

// Notifier implements the notification sinks consumed by the lifecycle
// manager, the SLA tracker and the scheduler.
type Notifier struct {
	client  bot.Client
	configs repositories.GuildConfigRepository
	audit   repositories.AuditRepository

	mu       sync.Mutex
	webhooks map[string]webhook.Client
}

func New(client bot.Client, configs repositories.GuildConfigRepository, audit repositories.AuditRepository) *Notifier {
	return &Notifier{
		client:   client,
		configs:  configs,
		audit:    audit,
		webhooks: make(map[string]webhook.Client),
	}
}

// TicketEvent posts the event embed into the ticket channel, mirrors it to
// the guild's log channel and webhook, DMs the watchers and appends an audit
// row. Fire and forget.
func (n *Notifier) TicketEvent(ctx context.Context, ticket *models.Ticket, event tickets.Event, actorID, detail string) {
	meta, ok := eventTitles[event]
	if !ok {
		meta.title = string(event)
		meta.color = colorNeutral
	}

	embed := discord.NewEmbedBuilder().
		SetTitle(meta.title).
		SetColor(meta.color).
		AddField("Ticket", fmt.Sprintf("#%04d", ticket.TicketNumber), true).
		AddField("By", fmt.Sprintf("<@%s>", actorID), true).
		SetTimestamp(time.Now())
	if detail != "" {
		embed.SetDescription(detail)
	}
	built := embed.Build()

	n.sendToChannel(ticket.ChannelID, built)
	n.mirrorToGuildLog(ctx, ticket.GuildID, built)
	n.dmWatchers(ticket, built)

	entry := &models.AuditLog{
		GuildID:   ticket.GuildID,
		TicketID:  ticket.ID,
		ActorID:   actorID,
		Action:    string(event),
		Details:   detail,
		CreatedAt: time.Now(),
	}
	if err := n.audit.Append(ctx, entry); err != nil {
		slog.Warn("Audit append failed",
			slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
	}
}

// OfferRating prompts the owner with five rating buttons, sent once right
// after an immediate close. The prompt goes to the owner's DMs so it
// outlives the ticket channel teardown; when the DM cannot be delivered
// (closed DMs) it falls back to the channel, which stays up for the rating
// grace window.
func (n *Notifier) OfferRating(ctx context.Context, ticket *models.Ticket) {
	embed := discord.NewEmbedBuilder().
		SetTitle("How did we do?").
		SetDescription(fmt.Sprintf("<@%s>, rate your support experience for ticket #%04d.", ticket.OwnerID, ticket.TicketNumber)).
		SetColor(colorNeutral).
		Build()

	buttons := make([]discord.InteractiveComponent, 0, 5)
	for i := 1; i <= 5; i++ {
		buttons = append(buttons, discord.NewSecondaryButton(
			fmt.Sprintf("%d ⭐", i),
			fmt.Sprintf("/rate/%s/%d", ticket.ChannelID, i),
		))
	}
	msg := discord.MessageCreate{
		Embeds:     []discord.Embed{embed},
		Components: []discord.ContainerComponent{discord.NewActionRow(buttons...)},
	}

	if ownerID, err := snowflake.Parse(ticket.OwnerID); err == nil {
		if dmChannel, err := n.client.Rest().CreateDMChannel(ownerID); err == nil {
			if _, err := n.client.Rest().CreateMessage(dmChannel.ID(), msg); err == nil {
				return
			}
		}
	}

	channelID, err := snowflake.Parse(ticket.ChannelID)
	if err != nil {
		return
	}
	if _, err := n.client.Rest().CreateMessage(channelID, msg); err != nil {
		slog.Warn("Rating prompt failed",
			slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
	}
}

// NotifyBreach posts the SLA breach alert into the ticket channel.
func (n *Notifier) NotifyBreach(ctx context.Context, ticket *models.Ticket, kind sla.BreachKind, deadline time.Time) error {
	label := "first response"
	if kind == sla.BreachResolution {
		label = "resolution"
	}
	embed := discord.NewEmbedBuilder().
		SetTitle("⚠️ SLA Breach").
		SetDescription(fmt.Sprintf("Ticket #%04d missed its %s deadline (<t:%d:R>).",
			ticket.TicketNumber, label, deadline.Unix())).
		SetColor(colorDanger).
		Build()

	n.sendToChannel(ticket.ChannelID, embed)
	n.mirrorToGuildLog(ctx, ticket.GuildID, embed)
	return nil
}

// NotifyEscalation pings the escalation role in the ticket channel.
func (n *Notifier) NotifyEscalation(ctx context.Context, ticket *models.Ticket, roleID string) error {
	channelID, err := snowflake.Parse(ticket.ChannelID)
	if err != nil {
		return err
	}
	embed := discord.NewEmbedBuilder().
		SetTitle("🚨 Ticket Escalated").
		SetDescription(fmt.Sprintf("Ticket #%04d breached its SLA and was raised to urgent priority.", ticket.TicketNumber)).
		SetColor(colorDanger).
		Build()
	_, err = n.client.Rest().CreateMessage(channelID, discord.MessageCreate{
		Content: fmt.Sprintf("<@&%s>", roleID),
		Embeds:  []discord.Embed{embed},
	})
	return err
}

// WarnInactivity posts the two-phase auto-close warning.
func (n *Notifier) WarnInactivity(ctx context.Context, ticket *models.Ticket, closeAt time.Time) error {
	channelID, err := snowflake.Parse(ticket.ChannelID)
	if err != nil {
		return err
	}
	embed := discord.NewEmbedBuilder().
		SetTitle("⏳ Inactivity Warning").
		SetDescription(fmt.Sprintf("<@%s>, this ticket has been quiet for a while and will close <t:%d:R> unless someone replies.",
			ticket.OwnerID, closeAt.Unix())).
		SetColor(colorWarning).
		Build()
	_, err = n.client.Rest().CreateMessage(channelID, discord.MessageCreate{
		Embeds: []discord.Embed{embed},
	})
	return err
}

// DeliverReminder posts the reminder in its channel and mentions the user.
func (n *Notifier) DeliverReminder(ctx context.Context, reminder *models.Reminder) error {
	channelID, err := snowflake.Parse(reminder.ChannelID)
	if err != nil {
		return err
	}
	embed := discord.NewEmbedBuilder().
		SetTitle("🔔 Reminder").
		SetDescription(reminder.Message).
		SetColor(colorNeutral).
		Build()
	_, err = n.client.Rest().CreateMessage(channelID, discord.MessageCreate{
		Content: fmt.Sprintf("<@%s>", reminder.UserID),
		Embeds:  []discord.Embed{embed},
	})
	return err
}

func (n *Notifier) sendToChannel(channelID string, embed discord.Embed) {
	id, err := snowflake.Parse(channelID)
	if err != nil {
		return
	}
	if _, err := n.client.Rest().CreateMessage(id, discord.MessageCreate{
		Embeds: []discord.Embed{embed},
	}); err != nil {
		slog.Warn("Channel notification failed",
			slog.String("channel_id", channelID), slog.Any("error", err))
	}
}

// mirrorToGuildLog copies the embed to the configured log channel and
// webhook. Both optional, both best-effort.
func (n *Notifier) mirrorToGuildLog(ctx context.Context, guildID string, embed discord.Embed) {
	cfg, err := n.configs.GetOrCreate(ctx, guildID)
	if err != nil {
		slog.Warn("Log mirror config load failed",
			slog.String("guild_id", guildID), slog.Any("error", err))
		return
	}

	if cfg.LogChannelID != "" {
		n.sendToChannel(cfg.LogChannelID, embed)
	}
	if cfg.WebhookURL != "" {
		client, err := n.webhookClient(cfg.WebhookURL)
		if err != nil {
			slog.Warn("Webhook client setup failed",
				slog.String("guild_id", guildID), slog.Any("error", err))
			return
		}
		if _, err := client.CreateEmbeds([]discord.Embed{embed}); err != nil {
			slog.Warn("Webhook delivery failed",
				slog.String("guild_id", guildID), slog.Any("error", err))
		}
	}
}

func (n *Notifier) dmWatchers(ticket *models.Ticket, embed discord.Embed) {
	for _, watcherID := range ticket.Watchers {
		userID, err := snowflake.Parse(watcherID)
		if err != nil {
			continue
		}
		dmChannel, err := n.client.Rest().CreateDMChannel(userID)
		if err != nil {
			slog.Debug("Watcher DM channel creation failed",
				slog.String("user_id", watcherID), slog.Any("error", err))
			continue
		}
		if _, err := n.client.Rest().CreateMessage(dmChannel.ID(), discord.MessageCreate{
			Embeds: []discord.Embed{embed},
		}); err != nil {
			slog.Debug("Watcher DM failed",
				slog.String("user_id", watcherID), slog.Any("error", err))
		}
	}
}

func (n *Notifier) webhookClient(url string) (webhook.Client, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if client, ok := n.webhooks[url]; ok {
		return client, nil
	}
	client, err := webhook.NewWithURL(url)
	if err != nil {
		return nil, err
	}
	n.webhooks[url] = client
	return client, nil
}
