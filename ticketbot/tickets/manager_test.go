package tickets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ticketeer-bot/ticketeer/ticketbot/assignment"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/repositories"
	"github.com/ticketeer-bot/ticketeer/ticketbot/sla"
)

var testNow = time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

// fakeTicketRepo mirrors the conditional-update semantics of the Postgres
// repository: every mutation checks its status precondition and reports
// whether the row matched.
type fakeTicketRepo struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]*models.Ticket
	numbers map[string]int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		byID:    map[int64]*models.Ticket{},
		numbers: map[string]int{},
	}
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *models.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.numbers[ticket.GuildID]++
	ticket.ID = f.nextID
	ticket.TicketNumber = f.numbers[ticket.GuildID]
	clone := *ticket
	f.byID[ticket.ID] = &clone
	return nil
}

func (f *fakeTicketRepo) get(id int64) (*models.Ticket, bool) {
	t, ok := f.byID[id]
	return t, ok
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id int64) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.get(id); ok {
		clone := *t
		return &clone, nil
	}
	return nil, repositories.ErrTicketNotFound
}

func (f *fakeTicketRepo) GetByChannelID(_ context.Context, channelID string) (*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byID {
		if t.ChannelID == channelID {
			clone := *t
			return &clone, nil
		}
	}
	return nil, repositories.ErrTicketNotFound
}

func (f *fakeTicketRepo) GetActiveByOwner(_ context.Context, guildID, ownerID string) ([]*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Ticket
	for _, t := range f.byID {
		if t.GuildID == guildID && t.OwnerID == ownerID && t.Active() {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) GetOpenByGuild(_ context.Context, guildID string) ([]*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Ticket
	for _, t := range f.byID {
		if t.GuildID == guildID && t.Active() {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) ListByGuild(_ context.Context, guildID string, _, _ int) ([]*models.Ticket, error) {
	return f.GetOpenByGuild(context.Background(), guildID)
}

func (f *fakeTicketRepo) Claim(_ context.Context, id int64, staffID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.Status != models.TicketStatusOpen {
		return false, nil
	}
	t.Status = models.TicketStatusClaimed
	t.ClaimedBy = staffID
	t.ClaimedAt = &at
	return true, nil
}

func (f *fakeTicketRepo) Unclaim(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.Status != models.TicketStatusClaimed {
		return false, nil
	}
	t.Status = models.TicketStatusOpen
	t.ClaimedBy = ""
	t.ClaimedAt = nil
	return true, nil
}

func (f *fakeTicketRepo) Transfer(_ context.Context, id int64, toStaffID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.Status != models.TicketStatusClaimed {
		return false, nil
	}
	t.ClaimedBy = toStaffID
	return true, nil
}

func (f *fakeTicketRepo) Close(_ context.Context, id int64, closedBy, reason string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || !t.Active() {
		return false, nil
	}
	t.Status = models.TicketStatusClosed
	t.ClosedAt = &at
	t.ClosedBy = closedBy
	t.CloseReason = reason
	t.ScheduledCloseAt = nil
	t.ScheduledCloseBy = ""
	t.ScheduledCloseReason = ""
	return true, nil
}

func (f *fakeTicketRepo) ScheduleClose(_ context.Context, id int64, at time.Time, by, reason string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || !t.Active() {
		return false, nil
	}
	t.ScheduledCloseAt = &at
	t.ScheduledCloseBy = by
	t.ScheduledCloseReason = reason
	return true, nil
}

func (f *fakeTicketRepo) CancelScheduledClose(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.ScheduledCloseAt == nil {
		return false, nil
	}
	t.ScheduledCloseAt = nil
	t.ScheduledCloseBy = ""
	t.ScheduledCloseReason = ""
	return true, nil
}

func (f *fakeTicketRepo) Reopen(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.Active() {
		return false, nil
	}
	t.Status = models.TicketStatusOpen
	t.ClaimedBy = ""
	t.ClaimedAt = nil
	t.ClosedAt = nil
	t.ClosedBy = ""
	t.CloseReason = ""
	t.WarnedAt = nil
	return true, nil
}

func (f *fakeTicketRepo) Archive(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.Status == models.TicketStatusArchived {
		return false, nil
	}
	t.Status = models.TicketStatusArchived
	return true, nil
}

func (f *fakeTicketRepo) Merge(_ context.Context, sourceID, targetID int64, by string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(sourceID)
	if !ok || !t.Active() {
		return false, nil
	}
	t.Status = models.TicketStatusClosed
	t.ClosedAt = &at
	t.ClosedBy = by
	t.MergedInto = &targetID
	return true, nil
}

func (f *fakeTicketRepo) SetPriority(_ context.Context, id int64, priority int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok {
		return false, nil
	}
	t.Priority = priority
	return true, nil
}

func (f *fakeTicketRepo) AddTag(_ context.Context, id int64, tag string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.HasTag(tag) || len(t.Tags) >= models.MaxTags {
		return false, nil
	}
	t.Tags = append(t.Tags, tag)
	return true, nil
}

func (f *fakeTicketRepo) RemoveTag(_ context.Context, id int64, tag string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || !t.HasTag(tag) {
		return false, nil
	}
	kept := t.Tags[:0]
	for _, existing := range t.Tags {
		if existing != tag {
			kept = append(kept, existing)
		}
	}
	t.Tags = kept
	return true, nil
}

func (f *fakeTicketRepo) AddWatcher(_ context.Context, id int64, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.HasWatcher(userID) {
		return false, nil
	}
	t.Watchers = append(t.Watchers, userID)
	return true, nil
}

func (f *fakeTicketRepo) RemoveWatcher(_ context.Context, id int64, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || !t.HasWatcher(userID) {
		return false, nil
	}
	kept := t.Watchers[:0]
	for _, existing := range t.Watchers {
		if existing != userID {
			kept = append(kept, existing)
		}
	}
	t.Watchers = kept
	return true, nil
}

func (f *fakeTicketRepo) SetRating(_ context.Context, id int64, ownerID string, rating int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.OwnerID != ownerID || t.Rating != nil {
		return false, nil
	}
	t.Rating = &rating
	return true, nil
}

func (f *fakeTicketRepo) SetFirstResponse(_ context.Context, id int64, at time.Time, met bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.FirstResponseAt != nil {
		return false, nil
	}
	t.FirstResponseAt = &at
	t.SLAFirstResponseMet = &met
	return true, nil
}

func (f *fakeTicketRepo) MarkFirstResponseBreached(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.SLABreached || t.FirstResponseAt != nil || !t.Active() {
		return false, nil
	}
	t.SLABreached = true
	return true, nil
}

func (f *fakeTicketRepo) MarkResolutionBreached(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.ResolutionBreached || !t.Active() {
		return false, nil
	}
	t.ResolutionBreached = true
	return true, nil
}

func (f *fakeTicketRepo) MarkEscalated(_ context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.EscalatedAt != nil {
		return false, nil
	}
	t.EscalatedAt = &at
	t.Priority = models.PriorityUrgent
	return true, nil
}

func (f *fakeTicketRepo) MarkWarned(_ context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.get(id)
	if !ok || t.WarnedAt != nil || !t.Active() {
		return false, nil
	}
	t.WarnedAt = &at
	return true, nil
}

func (f *fakeTicketRepo) RecordActivity(_ context.Context, channelID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.byID {
		if t.ChannelID == channelID && t.Active() {
			t.MessageCount++
			t.LastActivityAt = at
			t.WarnedAt = nil
		}
	}
	return nil
}

func (f *fakeTicketRepo) FindInactive(_ context.Context, guildID string, inactiveSince time.Time) ([]*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Ticket
	for _, t := range f.byID {
		if t.GuildID == guildID && t.Active() && t.LastActivityAt.Before(inactiveSince) {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) FindDueScheduledCloses(_ context.Context, now time.Time) ([]*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Ticket
	for _, t := range f.byID {
		if t.Active() && t.ScheduledCloseAt != nil && !t.ScheduledCloseAt.After(now) {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) FindSLACandidates(_ context.Context, guildID string) ([]*models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Ticket
	for _, t := range f.byID {
		if t.GuildID == guildID && t.Active() {
			clone := *t
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) CountForDay(context.Context, string, time.Time) (int, int, float64, error) {
	return 0, 0, 0, nil
}

type fakeConfigRepo struct {
	mu      sync.Mutex
	configs map[string]*models.GuildConfig
}

func newFakeConfigRepo() *fakeConfigRepo {
	return &fakeConfigRepo{configs: map[string]*models.GuildConfig{}}
}

func (f *fakeConfigRepo) GetOrCreate(_ context.Context, guildID string) (*models.GuildConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.configs[guildID]
	if !ok {
		cfg = models.NewGuildConfig(guildID)
		f.configs[guildID] = cfg
	}
	clone := *cfg
	return &clone, nil
}

func (f *fakeConfigRepo) Update(_ context.Context, cfg *models.GuildConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *cfg
	f.configs[cfg.GuildID] = &clone
	return nil
}

func (f *fakeConfigRepo) ListGuildIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id := range f.configs {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeConfigRepo) RecordFirstResponseResult(context.Context, string, bool) error { return nil }
func (f *fakeConfigRepo) IncrementBreachCount(context.Context, string) error            { return nil }
func (f *fakeConfigRepo) IncrementClosed(context.Context, string) error                 { return nil }
func (f *fakeConfigRepo) AddRating(context.Context, string, int) error                  { return nil }

type fakeStaffRepo struct {
	mu         sync.Mutex
	assignable []*models.Staff
	loads      map[string]int
}

func newFakeStaffRepo() *fakeStaffRepo {
	return &fakeStaffRepo{loads: map[string]int{}}
}

func (f *fakeStaffRepo) GetOrCreate(_ context.Context, guildID, userID string) (*models.Staff, error) {
	return &models.Staff{GuildID: guildID, UserID: userID}, nil
}

func (f *fakeStaffRepo) Get(_ context.Context, guildID, userID string) (*models.Staff, error) {
	return &models.Staff{GuildID: guildID, UserID: userID}, nil
}

func (f *fakeStaffRepo) ListByGuild(context.Context, string) ([]*models.Staff, error) {
	return nil, nil
}

func (f *fakeStaffRepo) Assignable(context.Context, string) ([]*models.Staff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assignable, nil
}

func (f *fakeStaffRepo) IncrementLoad(_ context.Context, _, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads[userID]++
	return nil
}

func (f *fakeStaffRepo) ReleaseLoad(_ context.Context, _, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loads[userID] > 0 {
		f.loads[userID]--
	}
	return nil
}

func (f *fakeStaffRepo) ResetLoads(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = map[string]int{}
	return nil
}

func (f *fakeStaffRepo) RecordClaim(context.Context, string, string) error       { return nil }
func (f *fakeStaffRepo) RecordClose(context.Context, string, string) error      { return nil }
func (f *fakeStaffRepo) RecordRating(context.Context, string, string, int) error { return nil }
func (f *fakeStaffRepo) SetAssignPrefs(context.Context, string, string, bool, int, int) error {
	return nil
}

type fakeBlacklistRepo struct {
	blocked map[string]bool
}

func (f *fakeBlacklistRepo) IsBlacklisted(_ context.Context, _, userID string) (bool, error) {
	return f.blocked[userID], nil
}
func (f *fakeBlacklistRepo) Add(context.Context, *models.BlacklistEntry) error { return nil }
func (f *fakeBlacklistRepo) Remove(context.Context, string, string) (bool, error) {
	return false, nil
}

type fakeReminderRepo struct {
	mu        sync.Mutex
	cancelled []int64
}

func (f *fakeReminderRepo) Create(context.Context, *models.Reminder) error { return nil }
func (f *fakeReminderRepo) FindDue(context.Context, time.Time) ([]*models.Reminder, error) {
	return nil, nil
}
func (f *fakeReminderRepo) MarkCompleted(context.Context, int64) (bool, error) { return true, nil }
func (f *fakeReminderRepo) CancelByTicket(_ context.Context, ticketID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, ticketID)
	return nil
}

type fakeCategoryRepo struct {
	byID map[int64]*models.Category
}

func (f *fakeCategoryRepo) GetByID(_ context.Context, id int64) (*models.Category, error) {
	if category, ok := f.byID[id]; ok {
		return category, nil
	}
	return nil, repositories.ErrCategoryNotFound
}
func (f *fakeCategoryRepo) ListByGuild(context.Context, string) ([]*models.Category, error) {
	return nil, nil
}
func (f *fakeCategoryRepo) Create(context.Context, *models.Category) error { return nil }
func (f *fakeCategoryRepo) Delete(context.Context, int64) error            { return nil }

type fakeChannels struct {
	mu      sync.Mutex
	created int
	deleted []string
	failAll bool
}

func (f *fakeChannels) CreateTicketChannel(_ context.Context, _, _, _ string, _ []string, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return "", errors.New("discord unavailable")
	}
	f.created++
	return fmt.Sprintf("chan-%d", f.created), nil
}

func (f *fakeChannels) RenameChannel(context.Context, string, string) error { return nil }

func (f *fakeChannels) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, channelID)
	return nil
}

func (f *fakeChannels) MakeReadOnly(context.Context, string, string, string, []string) error {
	return nil
}

type notifiedEvent struct {
	event   Event
	actorID string
}

type recordingNotifier struct {
	mu           sync.Mutex
	events       []notifiedEvent
	ratingOffers int
}

func (r *recordingNotifier) TicketEvent(_ context.Context, _ *models.Ticket, event Event, actorID, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, notifiedEvent{event: event, actorID: actorID})
}

func (r *recordingNotifier) OfferRating(context.Context, *models.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ratingOffers++
}

func (r *recordingNotifier) sawEvent(event Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.event == event {
			return true
		}
	}
	return false
}

type nopSLANotifier struct{}

func (nopSLANotifier) NotifyBreach(context.Context, *models.Ticket, sla.BreachKind, time.Time) error {
	return nil
}

func (nopSLANotifier) NotifyEscalation(context.Context, *models.Ticket, string) error {
	return nil
}

type fixture struct {
	manager    *Manager
	tickets    *fakeTicketRepo
	configs    *fakeConfigRepo
	staff      *fakeStaffRepo
	blacklist  *fakeBlacklistRepo
	reminders  *fakeReminderRepo
	categories *fakeCategoryRepo
	channels   *fakeChannels
	notifier   *recordingNotifier

	mu             sync.Mutex
	tornDown       []string
	teardownDelays []time.Duration
}

func newFixture() *fixture {
	f := &fixture{
		tickets:    newFakeTicketRepo(),
		configs:    newFakeConfigRepo(),
		staff:      newFakeStaffRepo(),
		blacklist:  &fakeBlacklistRepo{blocked: map[string]bool{}},
		reminders:  &fakeReminderRepo{},
		categories: &fakeCategoryRepo{byID: map[int64]*models.Category{}},
		channels:   &fakeChannels{},
		notifier:   &recordingNotifier{},
	}
	engine := assignment.NewEngine(f.staff, 1)
	tracker := sla.NewTracker(f.tickets, f.configs, f.categories, nopSLANotifier{})
	f.manager = NewManager(f.tickets, f.configs, f.staff, f.blacklist, f.reminders, engine, tracker, f.channels, f.notifier)
	f.manager.now = func() time.Time { return testNow }
	f.manager.teardown = func(channelID string, delay time.Duration) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.tornDown = append(f.tornDown, channelID)
		f.teardownDelays = append(f.teardownDelays, delay)
	}
	return f
}

var (
	owner = Actor{UserID: "owner"}
	staff = Actor{UserID: "staff", IsAdmin: true}
)

func (f *fixture) openTicket(t *testing.T) *models.Ticket {
	t.Helper()
	ticket, err := f.manager.Create(context.Background(), "g1", owner, nil, "help")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return ticket
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	f := newFixture()

	first, err := f.manager.Create(context.Background(), "g1", owner, nil, "first")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if first.TicketNumber != 1 {
		t.Errorf("first ticket number = %d, want 1", first.TicketNumber)
	}
	if first.Status != models.TicketStatusOpen {
		t.Errorf("new ticket status = %s, want open", first.Status)
	}
	if !f.notifier.sawEvent(EventCreated) {
		t.Error("created event was not published")
	}

	second, err := f.manager.Create(context.Background(), "g1", Actor{UserID: "other"}, nil, "second")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if second.TicketNumber != 2 {
		t.Errorf("second ticket number = %d, want 2", second.TicketNumber)
	}
}

func TestCreateConcurrentDistinctNumbers(t *testing.T) {
	f := newFixture()

	const openers = 8
	numbers := make(chan int, openers)
	var wg sync.WaitGroup
	for i := 0; i < openers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ticket, err := f.manager.Create(context.Background(), "g1", Actor{UserID: fmt.Sprintf("user-%d", i)}, nil, "help")
			if err != nil {
				t.Errorf("Create() error = %v", err)
				return
			}
			numbers <- ticket.TicketNumber
		}(i)
	}
	wg.Wait()
	close(numbers)

	seen := map[int]bool{}
	for number := range numbers {
		if seen[number] {
			t.Errorf("ticket number %d allocated twice", number)
		}
		seen[number] = true
	}
	if len(seen) != openers {
		t.Errorf("distinct ticket numbers = %d, want %d", len(seen), openers)
	}
}

func TestCreateSetsSLADueFromCategoryOverride(t *testing.T) {
	f := newFixture()
	cfg, _ := f.configs.GetOrCreate(context.Background(), "g1")
	cfg.SLAEnabled = true
	cfg.SLAFirstResponseMins = 60
	f.configs.Update(context.Background(), cfg)

	categoryID := int64(7)
	f.categories.byID[categoryID] = &models.Category{
		ID:                   categoryID,
		GuildID:              "g1",
		Name:                 "billing",
		SLAFirstResponseMins: 15,
	}

	ticket, err := f.manager.Create(context.Background(), "g1", owner, &categoryID, "invoice")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	want := testNow.Add(15 * time.Minute)
	if ticket.SLADueAt == nil || !ticket.SLADueAt.Equal(want) {
		t.Errorf("SLADueAt = %v, want the category override %v", ticket.SLADueAt, want)
	}

	plain, err := f.manager.Create(context.Background(), "g1", Actor{UserID: "other"}, nil, "general")
	if err != nil {
		t.Fatalf("Create() without category error = %v", err)
	}
	wantGuild := testNow.Add(60 * time.Minute)
	if plain.SLADueAt == nil || !plain.SLADueAt.Equal(wantGuild) {
		t.Errorf("SLADueAt = %v, want the guild default %v", plain.SLADueAt, wantGuild)
	}
}

func TestCreateRejectsBlacklistedUser(t *testing.T) {
	f := newFixture()
	f.blacklist.blocked["owner"] = true

	_, err := f.manager.Create(context.Background(), "g1", owner, nil, "help")
	if !errors.Is(err, ErrBlacklisted) {
		t.Errorf("Create() error = %v, want ErrBlacklisted", err)
	}
	if f.channels.created != 0 {
		t.Error("no channel should be created for a blacklisted user")
	}
}

func TestCreateRejectsSecondActiveTicket(t *testing.T) {
	f := newFixture()
	f.openTicket(t)

	_, err := f.manager.Create(context.Background(), "g1", owner, nil, "again")
	if !errors.Is(err, ErrTicketAlreadyOpen) {
		t.Errorf("Create() error = %v, want ErrTicketAlreadyOpen", err)
	}
}

func TestCreateChannelFailure(t *testing.T) {
	f := newFixture()
	f.channels.failAll = true

	_, err := f.manager.Create(context.Background(), "g1", owner, nil, "help")
	if !errors.Is(err, ErrExternalFailure) {
		t.Errorf("Create() error = %v, want ErrExternalFailure", err)
	}
}

func TestCreateAutoAssigns(t *testing.T) {
	f := newFixture()
	cfg, _ := f.configs.GetOrCreate(context.Background(), "g1")
	cfg.AutoAssignEnabled = true
	f.configs.Update(context.Background(), cfg)
	f.staff.assignable = []*models.Staff{{GuildID: "g1", UserID: "helper", AutoAssignEnabled: true}}

	ticket := f.openTicket(t)
	if ticket.Status != models.TicketStatusClaimed || ticket.ClaimedBy != "helper" {
		t.Errorf("auto-assigned ticket = %s/%s, want claimed/helper", ticket.Status, ticket.ClaimedBy)
	}
	if f.staff.loads["helper"] != 1 {
		t.Errorf("helper load = %d, want 1", f.staff.loads["helper"])
	}
}

func TestClaimIsExclusive(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	if _, err := f.manager.Claim(context.Background(), ticket.ChannelID, staff); err != nil {
		t.Fatalf("first Claim() error = %v", err)
	}

	_, err := f.manager.Claim(context.Background(), ticket.ChannelID, Actor{UserID: "rival", IsAdmin: true})
	var ace *AlreadyClaimedError
	if !errors.As(err, &ace) {
		t.Fatalf("second Claim() error = %v, want AlreadyClaimedError", err)
	}
	if ace.ClaimedBy != "staff" {
		t.Errorf("AlreadyClaimedError.ClaimedBy = %s, want staff", ace.ClaimedBy)
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("AlreadyClaimedError must match ErrInvalidTransition")
	}
}

func TestClaimConcurrentSingleWinner(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	const rivals = 8
	errs := make(chan error, rivals)
	var wg sync.WaitGroup
	for i := 0; i < rivals; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.manager.Claim(context.Background(), ticket.ChannelID, Actor{UserID: fmt.Sprintf("staff-%d", i), IsAdmin: true})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	winners := 0
	for err := range errs {
		if err == nil {
			winners++
			continue
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("losing Claim() error = %v, want ErrInvalidTransition", err)
		}
	}
	if winners != 1 {
		t.Errorf("claim winners = %d, want exactly 1", winners)
	}

	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if stored.Status != models.TicketStatusClaimed || stored.ClaimedBy == "" {
		t.Errorf("ticket after claim race = %s/%q, want claimed with a claimant", stored.Status, stored.ClaimedBy)
	}
}

func TestClaimRequiresStaff(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	_, err := f.manager.Claim(context.Background(), ticket.ChannelID, owner)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Claim() by non-staff error = %v, want ErrPermissionDenied", err)
	}
}

func TestClaimCountsAsFirstResponse(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	if _, err := f.manager.Claim(context.Background(), ticket.ChannelID, staff); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if stored.FirstResponseAt == nil {
		t.Error("claim did not record the first response")
	}
	if stored.SLAFirstResponseMet == nil || !*stored.SLAFirstResponseMet {
		t.Error("in-window claim should settle the first-response verdict as met")
	}
}

func TestUnclaimReleasesLoad(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)
	f.manager.Claim(context.Background(), ticket.ChannelID, staff)

	if _, err := f.manager.Unclaim(context.Background(), ticket.ChannelID, staff); err != nil {
		t.Fatalf("Unclaim() error = %v", err)
	}
	if f.staff.loads["staff"] != 0 {
		t.Errorf("staff load after unclaim = %d, want 0", f.staff.loads["staff"])
	}

	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if stored.Status != models.TicketStatusOpen || stored.ClaimedBy != "" {
		t.Errorf("ticket after unclaim = %s/%q, want open/empty", stored.Status, stored.ClaimedBy)
	}
}

func TestUnclaimOnlyClaimantOrAdmin(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)
	f.manager.Claim(context.Background(), ticket.ChannelID, staff)

	_, err := f.manager.Unclaim(context.Background(), ticket.ChannelID, Actor{UserID: "bystander"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Unclaim() by bystander error = %v, want ErrPermissionDenied", err)
	}
}

func TestTransferMovesLoad(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)
	f.manager.Claim(context.Background(), ticket.ChannelID, staff)

	target := Actor{UserID: "colleague", IsAdmin: true}
	got, err := f.manager.Transfer(context.Background(), ticket.ChannelID, staff, target)
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if got.ClaimedBy != "colleague" {
		t.Errorf("claimant after transfer = %s, want colleague", got.ClaimedBy)
	}
	if f.staff.loads["staff"] != 0 || f.staff.loads["colleague"] != 1 {
		t.Errorf("loads after transfer = staff:%d colleague:%d, want 0/1",
			f.staff.loads["staff"], f.staff.loads["colleague"])
	}
}

func TestCloseImmediate(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	got, err := f.manager.Close(context.Background(), ticket.ChannelID, owner, "solved", 0)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got.Status != models.TicketStatusClosed || got.CloseReason != "solved" {
		t.Errorf("closed ticket = %s/%q, want closed/solved", got.Status, got.CloseReason)
	}
	if f.notifier.ratingOffers != 1 {
		t.Errorf("rating offers = %d, want 1", f.notifier.ratingOffers)
	}
	if len(f.tornDown) != 1 || f.tornDown[0] != ticket.ChannelID {
		t.Errorf("teardown channels = %v, want [%s]", f.tornDown, ticket.ChannelID)
	}
	if len(f.reminders.cancelled) != 1 || f.reminders.cancelled[0] != ticket.ID {
		t.Errorf("cancelled reminders = %v, want [%d]", f.reminders.cancelled, ticket.ID)
	}
}

func TestCloseKeepsChannelThroughRatingWindow(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	if _, err := f.manager.Close(context.Background(), ticket.ChannelID, owner, "", 0); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if f.notifier.ratingOffers != 1 {
		t.Fatalf("rating offers = %d, want 1", f.notifier.ratingOffers)
	}
	// The owner was just offered a rating, so the channel must stay up
	// well past the short teardown grace.
	if f.teardownDelays[0] != ratingGrace {
		t.Errorf("teardown delay after rating offer = %v, want %v", f.teardownDelays[0], ratingGrace)
	}

	source, _ := f.manager.Create(context.Background(), "g1", Actor{UserID: "other"}, nil, "dup")
	target, _ := f.manager.Create(context.Background(), "g1", Actor{UserID: "third"}, nil, "dup")
	if _, err := f.manager.Merge(context.Background(), source.ChannelID, target.ChannelID, staff); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if f.teardownDelays[1] != teardownDelay {
		t.Errorf("teardown delay after merge = %v, want %v", f.teardownDelays[1], teardownDelay)
	}
}

func TestCloseWithDelaySchedulesOnly(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	got, err := f.manager.Close(context.Background(), ticket.ChannelID, owner, "later", 30)
	if err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got.Status != models.TicketStatusOpen {
		t.Errorf("scheduled-close ticket status = %s, want open", got.Status)
	}
	wantAt := testNow.Add(30 * time.Minute)
	if got.ScheduledCloseAt == nil || !got.ScheduledCloseAt.Equal(wantAt) {
		t.Errorf("ScheduledCloseAt = %v, want %v", got.ScheduledCloseAt, wantAt)
	}
	if f.notifier.ratingOffers != 0 {
		t.Error("scheduling a close must not offer a rating")
	}
}

func TestCloseDelayBounds(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	for _, delay := range []int{-1, 61, 1000} {
		if _, err := f.manager.Close(context.Background(), ticket.ChannelID, owner, "", delay); !errors.Is(err, ErrInvalidCloseDelay) {
			t.Errorf("Close(delay=%d) error = %v, want ErrInvalidCloseDelay", delay, err)
		}
	}
}

func TestCancelScheduledClose(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	if _, err := f.manager.CancelScheduledClose(context.Background(), ticket.ChannelID, owner); !errors.Is(err, ErrNoScheduledClose) {
		t.Errorf("CancelScheduledClose() with nothing pending error = %v, want ErrNoScheduledClose", err)
	}

	f.manager.Close(context.Background(), ticket.ChannelID, owner, "later", 5)
	got, err := f.manager.CancelScheduledClose(context.Background(), ticket.ChannelID, owner)
	if err != nil {
		t.Fatalf("CancelScheduledClose() error = %v", err)
	}
	if got.ScheduledCloseAt != nil {
		t.Error("scheduled close not cleared")
	}
}

func TestCloseAlreadyClosed(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)
	f.manager.Close(context.Background(), ticket.ChannelID, owner, "", 0)

	_, err := f.manager.Close(context.Background(), ticket.ChannelID, owner, "", 0)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double Close() error = %v, want ErrInvalidTransition", err)
	}
}

func TestSystemCloseSkipsAlreadyClosed(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)
	f.manager.Close(context.Background(), ticket.ChannelID, owner, "", 0)

	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	done, err := f.manager.SystemClose(context.Background(), stored, "inactive")
	if err != nil {
		t.Fatalf("SystemClose() error = %v", err)
	}
	if done {
		t.Error("SystemClose() on a closed ticket reported done = true, want clean skip")
	}
}

func TestReopenPreservesHistory(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)
	f.manager.Claim(context.Background(), ticket.ChannelID, staff)
	f.manager.Close(context.Background(), ticket.ChannelID, staff, "", 0)

	got, err := f.manager.Reopen(context.Background(), ticket.ChannelID, owner)
	if err != nil {
		t.Fatalf("Reopen() error = %v", err)
	}
	if got.Status != models.TicketStatusOpen {
		t.Errorf("reopened status = %s, want open", got.Status)
	}
	if got.TicketNumber != ticket.TicketNumber {
		t.Error("reopen must keep the ticket number")
	}

	stored, _ := f.tickets.GetByID(context.Background(), ticket.ID)
	if stored.FirstResponseAt == nil {
		t.Error("reopen must keep the first-response timestamp")
	}
}

func TestArchiveIsTerminalExceptReopen(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	if _, err := f.manager.Archive(context.Background(), ticket.ChannelID, staff); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if _, err := f.manager.Claim(context.Background(), ticket.ChannelID, staff); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Claim() on archived error = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.manager.Reopen(context.Background(), ticket.ChannelID, owner); err != nil {
		t.Errorf("Reopen() on archived error = %v, want nil", err)
	}
}

func TestIllegalTransitionReportsBothStates(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)
	if _, err := f.manager.Archive(context.Background(), ticket.ChannelID, staff); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	_, err := f.manager.Close(context.Background(), ticket.ChannelID, staff, "", 0)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("Close() on archived error = %v, want TransitionError", err)
	}
	if te.From != models.TicketStatusArchived || te.To != models.TicketStatusClosed {
		t.Errorf("TransitionError = %s->%s, want archived->closed", te.From, te.To)
	}

	_, err = f.manager.Archive(context.Background(), ticket.ChannelID, staff)
	if !errors.As(err, &te) {
		t.Fatalf("double Archive() error = %v, want TransitionError", err)
	}
	if te.From != models.TicketStatusArchived || te.To != models.TicketStatusArchived {
		t.Errorf("TransitionError = %s->%s, want archived->archived", te.From, te.To)
	}
}

func TestMergeClosesSourceOnly(t *testing.T) {
	f := newFixture()
	source := f.openTicket(t)
	target, err := f.manager.Create(context.Background(), "g1", Actor{UserID: "other"}, nil, "dup")
	if err != nil {
		t.Fatalf("Create() target error = %v", err)
	}

	got, err := f.manager.Merge(context.Background(), source.ChannelID, target.ChannelID, staff)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if got.Status != models.TicketStatusClosed {
		t.Errorf("source status after merge = %s, want closed", got.Status)
	}
	if got.MergedInto == nil || *got.MergedInto != target.ID {
		t.Errorf("MergedInto = %v, want %d", got.MergedInto, target.ID)
	}

	storedTarget, _ := f.tickets.GetByID(context.Background(), target.ID)
	if storedTarget.Status != models.TicketStatusOpen {
		t.Errorf("target status after merge = %s, want open", storedTarget.Status)
	}
}

func TestMergeIntoClosedTarget(t *testing.T) {
	f := newFixture()
	source := f.openTicket(t)
	target, _ := f.manager.Create(context.Background(), "g1", Actor{UserID: "other"}, nil, "dup")
	f.manager.Close(context.Background(), target.ChannelID, staff, "", 0)

	_, err := f.manager.Merge(context.Background(), source.ChannelID, target.ChannelID, staff)
	if !errors.Is(err, ErrMergeTargetClosed) {
		t.Errorf("Merge() into closed target error = %v, want ErrMergeTargetClosed", err)
	}
}

func TestAddTagDuplicate(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	if err := f.manager.AddTag(context.Background(), ticket.ChannelID, staff, "billing"); err != nil {
		t.Fatalf("AddTag() error = %v", err)
	}
	if err := f.manager.AddTag(context.Background(), ticket.ChannelID, staff, "billing"); !errors.Is(err, ErrTagExists) {
		t.Errorf("duplicate AddTag() error = %v, want ErrTagExists", err)
	}
}

func TestAddTagCap(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	for i := 0; i < models.MaxTags; i++ {
		if err := f.manager.AddTag(context.Background(), ticket.ChannelID, staff, fmt.Sprintf("tag-%d", i)); err != nil {
			t.Fatalf("AddTag(%d) error = %v", i, err)
		}
	}
	if err := f.manager.AddTag(context.Background(), ticket.ChannelID, staff, "overflow"); !errors.Is(err, ErrLimitExceeded) {
		t.Errorf("AddTag() past cap error = %v, want ErrLimitExceeded", err)
	}
}

func TestAddWatcherRejectsBots(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	err := f.manager.AddWatcher(context.Background(), ticket.ChannelID, owner, Actor{UserID: "bot", IsBot: true})
	if !errors.Is(err, ErrBotWatcher) {
		t.Errorf("AddWatcher() with bot error = %v, want ErrBotWatcher", err)
	}
}

func TestRateOnceOwnerOnly(t *testing.T) {
	f := newFixture()
	ticket := f.openTicket(t)

	if err := f.manager.Rate(context.Background(), ticket.ChannelID, owner, 5); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Rate() on open ticket error = %v, want ErrInvalidTransition", err)
	}

	f.manager.Close(context.Background(), ticket.ChannelID, owner, "", 0)

	if err := f.manager.Rate(context.Background(), ticket.ChannelID, staff, 5); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Rate() by non-owner error = %v, want ErrPermissionDenied", err)
	}
	if err := f.manager.Rate(context.Background(), ticket.ChannelID, owner, 0); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("Rate(0) error = %v, want ErrInvalidRating", err)
	}
	if err := f.manager.Rate(context.Background(), ticket.ChannelID, owner, 4); err != nil {
		t.Fatalf("Rate() error = %v", err)
	}
	if err := f.manager.Rate(context.Background(), ticket.ChannelID, owner, 2); !errors.Is(err, ErrAlreadyRated) {
		t.Errorf("second Rate() error = %v, want ErrAlreadyRated", err)
	}
}

func TestGetUnknownChannel(t *testing.T) {
	f := newFixture()
	_, err := f.manager.Get(context.Background(), "not-a-ticket")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
