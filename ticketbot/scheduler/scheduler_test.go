package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ticketeer-bot/ticketeer/ticketbot/assignment"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/repositories"
	"github.com/ticketeer-bot/ticketeer/ticketbot/sla"
	"github.com/ticketeer-bot/ticketeer/ticketbot/tickets"
)

var sweepNow = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

// stubTickets embeds the interface and overrides only what a test exercises.
// Calling anything else panics, which is the point.
type stubTickets struct {
	repositories.TicketRepository

	mu         sync.Mutex
	warned     map[int64]time.Time
	closed     map[int64]string
	due        []*models.Ticket
	inactive   []*models.Ticket
	closeFails bool
}

func newStubTickets() *stubTickets {
	return &stubTickets{
		warned: map[int64]time.Time{},
		closed: map[int64]string{},
	}
}

func (s *stubTickets) MarkWarned(_ context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, done := s.warned[id]; done {
		return false, nil
	}
	s.warned[id] = at
	return true, nil
}

func (s *stubTickets) Close(_ context.Context, id int64, _, reason string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closeFails {
		return false, errors.New("database down")
	}
	if _, done := s.closed[id]; done {
		return false, nil
	}
	s.closed[id] = reason
	return true, nil
}

func (s *stubTickets) FindDueScheduledCloses(context.Context, time.Time) ([]*models.Ticket, error) {
	return s.due, nil
}

func (s *stubTickets) FindInactive(context.Context, string, time.Time) ([]*models.Ticket, error) {
	return s.inactive, nil
}

func (s *stubTickets) CountForDay(context.Context, string, time.Time) (int, int, float64, error) {
	return 7, 4, 4.5, nil
}

type stubConfigs struct {
	repositories.GuildConfigRepository
	cfg *models.GuildConfig
}

func (s *stubConfigs) ListGuildIDs(context.Context) ([]string, error) {
	return []string{s.cfg.GuildID}, nil
}

func (s *stubConfigs) GetOrCreate(context.Context, string) (*models.GuildConfig, error) {
	return s.cfg, nil
}

func (s *stubConfigs) IncrementClosed(context.Context, string) error { return nil }

type stubStaff struct {
	repositories.StaffRepository
	mu     sync.Mutex
	resets []string
}

func (s *stubStaff) ResetLoads(_ context.Context, guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets = append(s.resets, guildID)
	return nil
}

func (s *stubStaff) RecordClose(context.Context, string, string) error { return nil }
func (s *stubStaff) ReleaseLoad(context.Context, string, string) error { return nil }

type stubReminders struct {
	repositories.ReminderRepository
	due  []*models.Reminder
	won  map[int64]bool
	seen []int64
}

func (s *stubReminders) FindDue(context.Context, time.Time) ([]*models.Reminder, error) {
	return s.due, nil
}

func (s *stubReminders) MarkCompleted(_ context.Context, id int64) (bool, error) {
	s.seen = append(s.seen, id)
	return s.won[id], nil
}

func (s *stubReminders) CancelByTicket(context.Context, int64) error { return nil }

type stubStats struct {
	repositories.StatsRepository
	mu      sync.Mutex
	upserts []*models.DailyStat
}

func (s *stubStats) UpsertDailyStat(_ context.Context, stat *models.DailyStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, stat)
	return nil
}

type stubChannels struct{}

func (stubChannels) CreateTicketChannel(context.Context, string, string, string, []string, string) (string, error) {
	return "", errors.New("not used")
}
func (stubChannels) RenameChannel(context.Context, string, string) error { return nil }
func (stubChannels) DeleteChannel(context.Context, string) error         { return nil }
func (stubChannels) MakeReadOnly(context.Context, string, string, string, []string) error {
	return nil
}

type stubTicketNotifier struct{}

func (stubTicketNotifier) TicketEvent(context.Context, *models.Ticket, tickets.Event, string, string) {
}
func (stubTicketNotifier) OfferRating(context.Context, *models.Ticket) {}

type stubSLANotifier struct{}

func (stubSLANotifier) NotifyBreach(context.Context, *models.Ticket, sla.BreachKind, time.Time) error {
	return nil
}
func (stubSLANotifier) NotifyEscalation(context.Context, *models.Ticket, string) error { return nil }

type warning struct {
	ticketID int64
	closeAt  time.Time
}

type recordingNotifier struct {
	mu        sync.Mutex
	warnings  []warning
	delivered []int64
	failAll   bool
}

func (r *recordingNotifier) WarnInactivity(_ context.Context, ticket *models.Ticket, closeAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("delivery failed")
	}
	r.warnings = append(r.warnings, warning{ticketID: ticket.ID, closeAt: closeAt})
	return nil
}

func (r *recordingNotifier) DeliverReminder(_ context.Context, reminder *models.Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("delivery failed")
	}
	r.delivered = append(r.delivered, reminder.ID)
	return nil
}

type harness struct {
	scheduler *Scheduler
	tickets   *stubTickets
	configs   *stubConfigs
	staff     *stubStaff
	reminders *stubReminders
	stats     *stubStats
	notifier  *recordingNotifier
}

func newHarness() *harness {
	h := &harness{
		tickets:   newStubTickets(),
		configs:   &stubConfigs{cfg: models.NewGuildConfig("g1")},
		staff:     &stubStaff{},
		reminders: &stubReminders{won: map[int64]bool{}},
		stats:     &stubStats{},
		notifier:  &recordingNotifier{},
	}
	engine := assignment.NewEngine(h.staff, 1)
	tracker := sla.NewTracker(h.tickets, h.configs, nil, stubSLANotifier{})
	manager := tickets.NewManager(h.tickets, h.configs, h.staff, nil, h.reminders, engine, tracker, stubChannels{}, stubTicketNotifier{})
	h.scheduler = New(h.tickets, h.configs, h.reminders, h.stats, manager, tracker, engine, h.notifier)
	h.scheduler.now = func() time.Time { return sweepNow }
	return h
}

func activeTicket(id int64) *models.Ticket {
	return &models.Ticket{
		ID:        id,
		GuildID:   "g1",
		ChannelID: "c1",
		OwnerID:   "owner",
		Status:    models.TicketStatusOpen,
	}
}

func TestAutoCloseStepWarnsBeforeClosing(t *testing.T) {
	h := newHarness()
	ticket := activeTicket(1)

	if err := h.scheduler.autoCloseStep(context.Background(), ticket, sweepNow); err != nil {
		t.Fatalf("autoCloseStep() error = %v", err)
	}

	if at, ok := h.tickets.warned[1]; !ok || !at.Equal(sweepNow) {
		t.Errorf("warned[1] = %v (%v), want %v", at, ok, sweepNow)
	}
	if len(h.notifier.warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(h.notifier.warnings))
	}
	wantCloseAt := sweepNow.Add(warnGrace)
	if !h.notifier.warnings[0].closeAt.Equal(wantCloseAt) {
		t.Errorf("warning closeAt = %v, want %v", h.notifier.warnings[0].closeAt, wantCloseAt)
	}
	if len(h.tickets.closed) != 0 {
		t.Error("warning phase must not close the ticket")
	}
}

func TestAutoCloseStepWaitsOutTheGrace(t *testing.T) {
	h := newHarness()
	ticket := activeTicket(1)
	warnedAt := sweepNow.Add(-2 * time.Minute)
	ticket.WarnedAt = &warnedAt

	if err := h.scheduler.autoCloseStep(context.Background(), ticket, sweepNow); err != nil {
		t.Fatalf("autoCloseStep() error = %v", err)
	}
	if len(h.tickets.closed) != 0 || len(h.notifier.warnings) != 0 {
		t.Error("nothing should happen inside the grace window")
	}
}

func TestAutoCloseStepClosesAfterGrace(t *testing.T) {
	h := newHarness()
	ticket := activeTicket(1)
	warnedAt := sweepNow.Add(-warnGrace - time.Minute)
	ticket.WarnedAt = &warnedAt

	if err := h.scheduler.autoCloseStep(context.Background(), ticket, sweepNow); err != nil {
		t.Fatalf("autoCloseStep() error = %v", err)
	}
	if reason, ok := h.tickets.closed[1]; !ok || reason != "closed automatically after inactivity" {
		t.Errorf("closed[1] = %q (%v), want inactivity reason", reason, ok)
	}
}

func TestAutoCloseSweepSkipsDisabledGuilds(t *testing.T) {
	h := newHarness()
	h.configs.cfg.AutoCloseHours = 0
	h.tickets.inactive = []*models.Ticket{activeTicket(1)}

	h.scheduler.autoCloseSweep(context.Background())

	if len(h.tickets.warned) != 0 {
		t.Error("auto-close disabled guild must not be swept")
	}
}

func TestScheduledCloseSweep(t *testing.T) {
	h := newHarness()
	withReason := activeTicket(1)
	withReason.ScheduledCloseReason = "resolved"
	bare := activeTicket(2)
	h.tickets.due = []*models.Ticket{withReason, bare}

	h.scheduler.scheduledCloseSweep(context.Background())

	if got := h.tickets.closed[1]; got != "resolved" {
		t.Errorf("closed[1] reason = %q, want %q", got, "resolved")
	}
	if got := h.tickets.closed[2]; got != "scheduled close" {
		t.Errorf("closed[2] reason = %q, want the default", got)
	}
}

func TestReminderSweepAtMostOnce(t *testing.T) {
	h := newHarness()
	h.reminders.due = []*models.Reminder{
		{ID: 1, ChannelID: "c1", UserID: "u1", Message: "check back"},
		{ID: 2, ChannelID: "c1", UserID: "u1", Message: "lost race"},
	}
	h.reminders.won[1] = true
	// id 2 was completed by a concurrent sweep; this one must not deliver it.

	h.scheduler.reminderSweep(context.Background())

	if len(h.notifier.delivered) != 1 || h.notifier.delivered[0] != 1 {
		t.Errorf("delivered = %v, want [1]", h.notifier.delivered)
	}
	if len(h.reminders.seen) != 2 {
		t.Errorf("MarkCompleted attempts = %d, want 2", len(h.reminders.seen))
	}
}

func TestReminderSweepDeliveryFailureIsFinal(t *testing.T) {
	h := newHarness()
	h.reminders.due = []*models.Reminder{{ID: 1, ChannelID: "c1", UserID: "u1"}}
	h.reminders.won[1] = true
	h.notifier.failAll = true

	h.scheduler.reminderSweep(context.Background())

	// The completion flag already flipped, so the next sweep will not retry.
	if len(h.reminders.seen) != 1 {
		t.Errorf("MarkCompleted attempts = %d, want 1", len(h.reminders.seen))
	}
}

func TestStatsRollup(t *testing.T) {
	h := newHarness()

	h.scheduler.statsRollup(context.Background())

	if len(h.stats.upserts) != 1 {
		t.Fatalf("upserts = %d, want 1", len(h.stats.upserts))
	}
	got := h.stats.upserts[0]
	if got.GuildID != "g1" || got.Opened != 7 || got.Closed != 4 || got.AverageRating != 4.5 {
		t.Errorf("daily stat = %+v, want g1/7/4/4.5", got)
	}
	wantDay := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	if !got.Day.Equal(wantDay) {
		t.Errorf("stat day = %v, want %v", got.Day, wantDay)
	}
}

func TestDailyResetTouchesEveryGuild(t *testing.T) {
	h := newHarness()

	h.scheduler.dailyReset(context.Background())

	if len(h.staff.resets) != 1 || h.staff.resets[0] != "g1" {
		t.Errorf("load resets = %v, want [g1]", h.staff.resets)
	}
}

func TestUntilNextMidnight(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{
			name: "noon",
			now:  time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC),
			want: 12 * time.Hour,
		},
		{
			name: "just before midnight",
			now:  time.Date(2025, 3, 3, 23, 59, 0, 0, time.UTC),
			want: time.Minute,
		},
		{
			name: "exactly midnight arms a full day",
			now:  time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
			want: 24 * time.Hour,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := untilNextMidnight(tt.now); got != tt.want {
				t.Errorf("untilNextMidnight(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}
