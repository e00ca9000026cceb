// Package scheduler runs the periodic jobs: auto-close, scheduled-close,
// reminders, SLA sweep, daily-stats rollup and the midnight load reset.
// Jobs have no retry or backoff. A failed iteration logs and waits for the
// next tick; per-item failures never abort a sweep.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ticketeer-bot/ticketeer/ticketbot/assignment"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/repositories"
	"github.com/ticketeer-bot/ticketeer/ticketbot/sla"
	"github.com/ticketeer-bot/ticketeer/ticketbot/tickets"
)

const (
	autoCloseInterval      = 30 * time.Minute
	scheduledCloseInterval = time.Minute
	reminderInterval       = time.Minute
	slaSweepInterval       = 5 * time.Minute
	statsInterval          = time.Hour

	// Grace window between the inactivity warning and the actual close.
	warnGrace = 5 * time.Minute
)

// Notifier delivers scheduler-originated messages. Best-effort.
type Notifier interface {
	WarnInactivity(ctx context.Context, ticket *models.Ticket, closeAt time.Time) error
	DeliverReminder(ctx context.Context, reminder *models.Reminder) error
}

type Scheduler struct {
	tickets   repositories.TicketRepository
	configs   repositories.GuildConfigRepository
	reminders repositories.ReminderRepository
	stats     repositories.StatsRepository

	manager  *tickets.Manager
	tracker  *sla.Tracker
	engine   *assignment.Engine
	notifier Notifier

	now      func() time.Time
	shutdown chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

func New(
	ticketRepo repositories.TicketRepository,
	configs repositories.GuildConfigRepository,
	reminders repositories.ReminderRepository,
	stats repositories.StatsRepository,
	manager *tickets.Manager,
	tracker *sla.Tracker,
	engine *assignment.Engine,
	notifier Notifier,
) *Scheduler {
	return &Scheduler{
		tickets:   ticketRepo,
		configs:   configs,
		reminders: reminders,
		stats:     stats,
		manager:   manager,
		tracker:   tracker,
		engine:    engine,
		notifier:  notifier,
		now:       time.Now,
		shutdown:  make(chan struct{}),
	}
}

// Start launches every job loop. Jobs run concurrently; each touches a
// disjoint ticket subset, and every act step re-validates its precondition
// inside a conditional update, so interleaving is safe.
func (s *Scheduler) Start(ctx context.Context) {
	s.loop(ctx, autoCloseInterval, "auto-close", s.autoCloseSweep)
	s.loop(ctx, scheduledCloseInterval, "scheduled-close", s.scheduledCloseSweep)
	s.loop(ctx, reminderInterval, "reminders", s.reminderSweep)
	s.loop(ctx, slaSweepInterval, "sla", func(ctx context.Context) { s.tracker.Sweep(ctx, s.now()) })
	s.loop(ctx, statsInterval, "daily-stats", s.statsRollup)
	s.dailyResetLoop(ctx)
	slog.Info("Scheduler started")
}

// Stop signals every loop and waits for in-flight sweeps to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.shutdown) })
	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, name string, job func(context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				start := s.now()
				job(ctx)
				slog.Debug("Sweep finished",
					slog.String("job", name),
					slog.Duration("took", s.now().Sub(start)))
			case <-s.shutdown:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// autoCloseSweep implements the two-phase warn-then-close. Phase one stamps
// warned_at and posts the warning; phase two closes tickets whose warning is
// older than the grace window and whose channel stayed quiet, which holds
// because any new message clears warned_at.
func (s *Scheduler) autoCloseSweep(ctx context.Context) {
	guildIDs, err := s.configs.ListGuildIDs(ctx)
	if err != nil {
		slog.Error("Auto-close sweep failed to list guilds", slog.Any("error", err))
		return
	}

	now := s.now()
	for _, guildID := range guildIDs {
		cfg, err := s.configs.GetOrCreate(ctx, guildID)
		if err != nil {
			slog.Error("Auto-close sweep failed to load config",
				slog.String("guild_id", guildID), slog.Any("error", err))
			continue
		}
		if cfg.AutoCloseHours <= 0 {
			continue
		}

		cutoff := now.Add(-time.Duration(cfg.AutoCloseHours) * time.Hour)
		inactive, err := s.tickets.FindInactive(ctx, guildID, cutoff)
		if err != nil {
			slog.Error("Auto-close sweep query failed",
				slog.String("guild_id", guildID), slog.Any("error", err))
			continue
		}

		for _, ticket := range inactive {
			if err := s.autoCloseStep(ctx, ticket, now); err != nil {
				slog.Error("Auto-close step failed",
					slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
			}
		}
	}
}

func (s *Scheduler) autoCloseStep(ctx context.Context, ticket *models.Ticket, now time.Time) error {
	if ticket.WarnedAt == nil {
		warned, err := s.tickets.MarkWarned(ctx, ticket.ID, now)
		if err != nil {
			return err
		}
		if warned {
			if err := s.notifier.WarnInactivity(ctx, ticket, now.Add(warnGrace)); err != nil {
				slog.Warn("Inactivity warning delivery failed",
					slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
			}
		}
		return nil
	}

	if now.Sub(*ticket.WarnedAt) < warnGrace {
		return nil
	}
	_, err := s.manager.SystemClose(ctx, ticket, "closed automatically after inactivity")
	return err
}

func (s *Scheduler) scheduledCloseSweep(ctx context.Context) {
	due, err := s.tickets.FindDueScheduledCloses(ctx, s.now())
	if err != nil {
		slog.Error("Scheduled-close sweep query failed", slog.Any("error", err))
		return
	}

	for _, ticket := range due {
		reason := ticket.ScheduledCloseReason
		if reason == "" {
			reason = "scheduled close"
		}
		closed, err := s.manager.SystemClose(ctx, ticket, reason)
		if err != nil {
			slog.Error("Scheduled close failed",
				slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
			continue
		}
		if closed {
			slog.Info("Scheduled close executed",
				slog.Int64("ticket_id", ticket.ID),
				slog.String("guild_id", ticket.GuildID))
		}
	}
}

// reminderSweep marks each reminder complete before attempting delivery.
// A failed delivery is lost rather than retried; at-most-once beats spam.
func (s *Scheduler) reminderSweep(ctx context.Context) {
	due, err := s.reminders.FindDue(ctx, s.now())
	if err != nil {
		slog.Error("Reminder sweep query failed", slog.Any("error", err))
		return
	}

	for _, reminder := range due {
		won, err := s.reminders.MarkCompleted(ctx, reminder.ID)
		if err != nil {
			slog.Error("Reminder completion update failed",
				slog.Int64("reminder_id", reminder.ID), slog.Any("error", err))
			continue
		}
		if !won {
			continue
		}
		if err := s.notifier.DeliverReminder(ctx, reminder); err != nil {
			slog.Warn("Reminder delivery failed",
				slog.Int64("reminder_id", reminder.ID), slog.Any("error", err))
		}
	}
}

// statsRollup recomputes today's per-guild snapshot. Overwrites the same
// day's row, so running more than once per day is harmless.
func (s *Scheduler) statsRollup(ctx context.Context) {
	guildIDs, err := s.configs.ListGuildIDs(ctx)
	if err != nil {
		slog.Error("Stats rollup failed to list guilds", slog.Any("error", err))
		return
	}

	now := s.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, guildID := range guildIDs {
		guildID := guildID
		g.Go(func() error {
			opened, closed, avgRating, err := s.tickets.CountForDay(gctx, guildID, now)
			if err != nil {
				slog.Error("Stats rollup count failed",
					slog.String("guild_id", guildID), slog.Any("error", err))
				return nil
			}
			day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			err = s.stats.UpsertDailyStat(gctx, &models.DailyStat{
				GuildID:       guildID,
				Day:           day,
				Opened:        opened,
				Closed:        closed,
				AverageRating: avgRating,
			})
			if err != nil {
				slog.Error("Stats rollup upsert failed",
					slog.String("guild_id", guildID), slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// dailyResetLoop arms a one-shot timer to the next local midnight and
// re-arms after every firing. A one-shot beats a fixed 24h ticker because
// day length shifts with DST.
func (s *Scheduler) dailyResetLoop(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			timer := time.NewTimer(untilNextMidnight(s.now()))
			select {
			case <-timer.C:
				s.dailyReset(ctx)
			case <-s.shutdown:
				timer.Stop()
				return
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()
}

func (s *Scheduler) dailyReset(ctx context.Context) {
	guildIDs, err := s.configs.ListGuildIDs(ctx)
	if err != nil {
		slog.Error("Daily reset failed to list guilds", slog.Any("error", err))
		return
	}
	for _, guildID := range guildIDs {
		if err := s.engine.ResetDailyLoads(ctx, guildID); err != nil {
			slog.Error("Daily load reset failed",
				slog.String("guild_id", guildID), slog.Any("error", err))
		}
	}
	slog.Info("Daily staff load reset completed", slog.Int("guilds", len(guildIDs)))
}

func untilNextMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return next.Sub(now)
}
