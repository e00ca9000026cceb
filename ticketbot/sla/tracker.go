package sla

import (
	"context"
	"log/slog"
	"time"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/repositories"
)

// Notifier delivers SLA alerts. Implementations are best-effort: delivery
// failures are logged by the caller and never fail the sweep.
type Notifier interface {
	NotifyBreach(ctx context.Context, ticket *models.Ticket, kind BreachKind, deadline time.Time) error
	NotifyEscalation(ctx context.Context, ticket *models.Ticket, roleID string) error
}

type BreachKind string

const (
	BreachFirstResponse BreachKind = "first-response"
	BreachResolution    BreachKind = "resolution"
)

// Tracker owns first-response recording, the periodic breach sweep and
// escalation. All breach flags flip false to true at most once per ticket;
// the conditional updates in the repository carry that guarantee.
type Tracker struct {
	tickets    repositories.TicketRepository
	configs    repositories.GuildConfigRepository
	categories repositories.CategoryRepository
	notifier   Notifier
}

func NewTracker(
	tickets repositories.TicketRepository,
	configs repositories.GuildConfigRepository,
	categories repositories.CategoryRepository,
	notifier Notifier,
) *Tracker {
	return &Tracker{
		tickets:    tickets,
		configs:    configs,
		categories: categories,
		notifier:   notifier,
	}
}

// FirstResponseDeadline resolves the effective first-response deadline for a
// ticket, applying any category override. A failed category lookup falls back
// to the guild settings.
func (t *Tracker) FirstResponseDeadline(ctx context.Context, ticket *models.Ticket, cfg *models.GuildConfig) time.Time {
	category, err := t.categoryFor(ctx, ticket)
	if err != nil {
		slog.Warn("Category lookup failed, using guild SLA settings",
			slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
		category = nil
	}
	return CalculateDeadlines(ticket, cfg, category).FirstResponse
}

// RecordFirstResponse stamps the first staff response on a ticket and settles
// the first-response SLA verdict. Idempotent: once first_response_at is set,
// later calls change nothing and increment no counters.
func (t *Tracker) RecordFirstResponse(ctx context.Context, ticket *models.Ticket, now time.Time) error {
	if ticket.FirstResponseAt != nil {
		return nil
	}

	cfg, err := t.configs.GetOrCreate(ctx, ticket.GuildID)
	if err != nil {
		return err
	}
	category, err := t.categoryFor(ctx, ticket)
	if err != nil {
		return err
	}

	deadlines := CalculateDeadlines(ticket, cfg, category)
	met := !now.After(deadlines.FirstResponse)

	updated, err := t.tickets.SetFirstResponse(ctx, ticket.ID, now, met)
	if err != nil {
		return err
	}
	if !updated {
		// Lost the race to a concurrent responder. The winner's counters stand.
		return nil
	}

	if cfg.SLAEnabled {
		if err := t.configs.RecordFirstResponseResult(ctx, ticket.GuildID, met); err != nil {
			return err
		}
	}

	ticket.FirstResponseAt = &now
	ticket.SLAFirstResponseMet = &met
	return nil
}

// Sweep scans every SLA-enabled guild for tickets past a deadline. Per-item
// failures are logged and skipped so one bad ticket cannot abort the batch.
func (t *Tracker) Sweep(ctx context.Context, now time.Time) {
	guildIDs, err := t.configs.ListGuildIDs(ctx)
	if err != nil {
		slog.Error("SLA sweep failed to list guilds", slog.Any("error", err))
		return
	}

	for _, guildID := range guildIDs {
		cfg, err := t.configs.GetOrCreate(ctx, guildID)
		if err != nil {
			slog.Error("SLA sweep failed to load guild config",
				slog.String("guild_id", guildID), slog.Any("error", err))
			continue
		}
		if !cfg.SLAEnabled {
			continue
		}

		candidates, err := t.tickets.FindSLACandidates(ctx, guildID)
		if err != nil {
			slog.Error("SLA sweep failed to load candidates",
				slog.String("guild_id", guildID), slog.Any("error", err))
			continue
		}

		for _, ticket := range candidates {
			if err := t.checkTicket(ctx, ticket, cfg, now); err != nil {
				slog.Error("SLA check failed",
					slog.Int64("ticket_id", ticket.ID),
					slog.String("guild_id", guildID),
					slog.Any("error", err))
			}
		}
	}
}

func (t *Tracker) checkTicket(ctx context.Context, ticket *models.Ticket, cfg *models.GuildConfig, now time.Time) error {
	category, err := t.categoryFor(ctx, ticket)
	if err != nil {
		return err
	}
	deadlines := CalculateDeadlines(ticket, cfg, category)

	if ticket.FirstResponseAt == nil && !ticket.SLABreached && now.After(deadlines.FirstResponse) {
		flagged, err := t.tickets.MarkFirstResponseBreached(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if flagged {
			if err := t.configs.IncrementBreachCount(ctx, ticket.GuildID); err != nil {
				return err
			}
			if err := t.notifier.NotifyBreach(ctx, ticket, BreachFirstResponse, deadlines.FirstResponse); err != nil {
				slog.Warn("Breach notification failed",
					slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
			}
			t.Escalate(ctx, ticket, cfg, now)
		}
	}

	if !ticket.ResolutionBreached && now.After(deadlines.Resolution) {
		flagged, err := t.tickets.MarkResolutionBreached(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if flagged {
			if err := t.configs.IncrementBreachCount(ctx, ticket.GuildID); err != nil {
				return err
			}
			if err := t.notifier.NotifyBreach(ctx, ticket, BreachResolution, deadlines.Resolution); err != nil {
				slog.Warn("Breach notification failed",
					slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
			}
			t.Escalate(ctx, ticket, cfg, now)
		}
	}

	return nil
}

// Escalate fires once per ticket on first breach. The escalated_at IS NULL
// guard in the repository keeps repeated sweeps from re-escalating.
func (t *Tracker) Escalate(ctx context.Context, ticket *models.Ticket, cfg *models.GuildConfig, now time.Time) {
	if cfg.SLAEscalationRole == "" || ticket.EscalatedAt != nil {
		return
	}

	escalated, err := t.tickets.MarkEscalated(ctx, ticket.ID, now)
	if err != nil {
		slog.Error("Escalation update failed",
			slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
		return
	}
	if !escalated {
		return
	}

	ticket.EscalatedAt = &now
	ticket.Priority = models.PriorityUrgent
	if err := t.notifier.NotifyEscalation(ctx, ticket, cfg.SLAEscalationRole); err != nil {
		slog.Warn("Escalation notification failed",
			slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
	}
}

func (t *Tracker) categoryFor(ctx context.Context, ticket *models.Ticket) (*models.Category, error) {
	if ticket.CategoryID == nil {
		return nil, nil
	}
	category, err := t.categories.GetByID(ctx, *ticket.CategoryID)
	if err == repositories.ErrCategoryNotFound {
		return nil, nil
	}
	return category, err
}
