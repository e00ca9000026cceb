// Package tickets implements the ticket lifecycle: the status state machine
// and every operation that mutates it. All mutations are conditional updates
// keyed on the current status, so concurrent callers resolve to one winner.
package tickets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ticketeer-bot/ticketeer/ticketbot/assignment"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/repositories"
	"github.com/ticketeer-bot/ticketeer/ticketbot/sla"
)

// teardownDelay is the grace window between closing a ticket and deleting
// its backing channel. An immediate close stretches the window to
// ratingGrace so the owner can still answer the rating prompt.
const (
	teardownDelay = 10 * time.Second
	ratingGrace   = 5 * time.Minute
)

const (
	minCloseDelayMinutes = 1
	maxCloseDelayMinutes = 60
)

type Manager struct {
	tickets   repositories.TicketRepository
	configs   repositories.GuildConfigRepository
	staff     repositories.StaffRepository
	blacklist repositories.BlacklistRepository
	reminders repositories.ReminderRepository

	engine   *assignment.Engine
	tracker  *sla.Tracker
	channels ChannelClient
	notifier Notifier

	now      func() time.Time
	teardown func(channelID string, delay time.Duration)
}

func NewManager(
	tickets repositories.TicketRepository,
	configs repositories.GuildConfigRepository,
	staff repositories.StaffRepository,
	blacklist repositories.BlacklistRepository,
	reminders repositories.ReminderRepository,
	engine *assignment.Engine,
	tracker *sla.Tracker,
	channels ChannelClient,
	notifier Notifier,
) *Manager {
	m := &Manager{
		tickets:   tickets,
		configs:   configs,
		staff:     staff,
		blacklist: blacklist,
		reminders: reminders,
		engine:    engine,
		tracker:   tracker,
		channels:  channels,
		notifier:  notifier,
		now:       time.Now,
	}
	m.teardown = m.deleteChannelLater
	return m
}

// Create opens a new ticket for the actor. Preconditions are checked in
// order with the first failure winning: blacklist, existing active ticket,
// per-user cap. The backing channel is created before the row is written;
// a failed insert deletes the channel again so no orphan ticket can exist
// without a channel.
func (m *Manager) Create(ctx context.Context, guildID string, actor Actor, categoryID *int64, subject string) (*models.Ticket, error) {
	cfg, err := m.configs.GetOrCreate(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}

	blacklisted, err := m.blacklist.IsBlacklisted(ctx, guildID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if blacklisted {
		return nil, ErrBlacklisted
	}

	active, err := m.tickets.GetActiveByOwner(ctx, guildID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if len(active) > 0 {
		return nil, ErrTicketAlreadyOpen
	}
	if len(active) >= cfg.MaxTicketsPerUser {
		return nil, ErrLimitExceeded
	}

	channelID, err := m.channels.CreateTicketChannel(ctx, guildID, "ticket", actor.UserID, cfg.StaffRoles, cfg.TicketCategoryID)
	if err != nil {
		return nil, fmt.Errorf("%w: channel creation: %v", ErrExternalFailure, err)
	}

	now := m.now()
	ticket := &models.Ticket{
		GuildID:        guildID,
		ChannelID:      channelID,
		OwnerID:        actor.UserID,
		Status:         models.TicketStatusOpen,
		Priority:       models.PriorityMedium,
		CategoryID:     categoryID,
		Subject:        subject,
		CreatedAt:      now,
		LastActivityAt: now,
		UpdatedAt:      now,
	}
	if cfg.SLAEnabled {
		due := m.tracker.FirstResponseDeadline(ctx, ticket, cfg)
		ticket.SLADueAt = &due
	}

	if err := m.tickets.Create(ctx, ticket); err != nil {
		if delErr := m.channels.DeleteChannel(ctx, channelID); delErr != nil {
			slog.Error("Failed to delete channel after ticket insert failure",
				slog.String("channel_id", channelID), slog.Any("error", delErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}

	// Cosmetic rename to the allocated number. Failure is swallowed.
	if err := m.channels.RenameChannel(ctx, channelID, fmt.Sprintf("ticket-%04d", ticket.TicketNumber)); err != nil {
		slog.Warn("Ticket channel rename failed",
			slog.String("channel_id", channelID), slog.Any("error", err))
	}

	m.notifier.TicketEvent(ctx, ticket, EventCreated, actor.UserID, subject)

	if cfg.AutoAssignEnabled {
		m.autoAssign(ctx, ticket, cfg)
	}

	return ticket, nil
}

// autoAssign commits an engine selection to the ticket. A lost claim race or
// an empty candidate pool leaves the ticket unassigned, which is fine.
func (m *Manager) autoAssign(ctx context.Context, ticket *models.Ticket, cfg *models.GuildConfig) {
	selected, err := m.engine.Assign(ctx, cfg)
	if err != nil {
		slog.Error("Auto-assign candidate query failed",
			slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
		return
	}
	if selected == nil {
		return
	}

	now := m.now()
	claimed, err := m.tickets.Claim(ctx, ticket.ID, selected.UserID, now)
	if err != nil {
		slog.Error("Auto-assign claim failed",
			slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
		return
	}
	if !claimed {
		return
	}

	ticket.Status = models.TicketStatusClaimed
	ticket.ClaimedBy = selected.UserID
	ticket.ClaimedAt = &now

	if err := m.engine.IncrementLoad(ctx, ticket.GuildID, selected.UserID); err != nil {
		slog.Error("Auto-assign load increment failed",
			slog.String("user_id", selected.UserID), slog.Any("error", err))
	}
	if err := m.staff.RecordClaim(ctx, ticket.GuildID, selected.UserID); err != nil {
		slog.Warn("Auto-assign claim stats failed",
			slog.String("user_id", selected.UserID), slog.Any("error", err))
	}
	m.notifier.TicketEvent(ctx, ticket, EventClaimed, selected.UserID, "auto-assigned")
}

// Claim takes ownership of an open ticket. Exclusive: of two concurrent
// claims exactly one wins, the loser sees AlreadyClaimedError.
func (m *Manager) Claim(ctx context.Context, channelID string, actor Actor) (*models.Ticket, error) {
	ticket, cfg, err := m.resolve(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !m.isStaff(actor, cfg) {
		return nil, ErrPermissionDenied
	}
	if ticket.Status == models.TicketStatusClaimed {
		return nil, &AlreadyClaimedError{ClaimedBy: ticket.ClaimedBy}
	}
	if err := ValidateTransition(ticket.Status, models.TicketStatusClaimed); err != nil {
		return nil, err
	}

	now := m.now()
	claimed, err := m.tickets.Claim(ctx, ticket.ID, actor.UserID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if !claimed {
		return nil, m.claimFailure(ctx, ticket.ID, models.TicketStatusClaimed)
	}

	ticket.Status = models.TicketStatusClaimed
	ticket.ClaimedBy = actor.UserID
	ticket.ClaimedAt = &now

	if err := m.engine.IncrementLoad(ctx, ticket.GuildID, actor.UserID); err != nil {
		slog.Error("Load increment failed after claim",
			slog.String("user_id", actor.UserID), slog.Any("error", err))
	}
	if err := m.staff.RecordClaim(ctx, ticket.GuildID, actor.UserID); err != nil {
		slog.Warn("Claim stats update failed",
			slog.String("user_id", actor.UserID), slog.Any("error", err))
	}

	// A claim counts as the first staff response when none was recorded yet.
	if err := m.tracker.RecordFirstResponse(ctx, ticket, now); err != nil {
		slog.Warn("First-response recording failed on claim",
			slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
	}

	m.notifier.TicketEvent(ctx, ticket, EventClaimed, actor.UserID, "")
	return ticket, nil
}

// Unclaim releases a claimed ticket back to open. Legal for the current
// claimant or an administrator.
func (m *Manager) Unclaim(ctx context.Context, channelID string, actor Actor) (*models.Ticket, error) {
	ticket, _, err := m.resolve(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ticket.ClaimedBy != actor.UserID && !actor.IsAdmin {
		return nil, ErrPermissionDenied
	}
	if err := ValidateTransition(ticket.Status, models.TicketStatusOpen); err != nil {
		return nil, err
	}

	previousClaimant := ticket.ClaimedBy
	released, err := m.tickets.Unclaim(ctx, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if !released {
		return nil, &TransitionError{From: ticket.Status, To: models.TicketStatusOpen}
	}

	ticket.Status = models.TicketStatusOpen
	ticket.ClaimedBy = ""
	ticket.ClaimedAt = nil

	if previousClaimant != "" {
		if err := m.engine.ReleaseLoad(ctx, ticket.GuildID, previousClaimant); err != nil {
			slog.Error("Load release failed after unclaim",
				slog.String("user_id", previousClaimant), slog.Any("error", err))
		}
	}

	m.notifier.TicketEvent(ctx, ticket, EventUnclaimed, actor.UserID, "")
	return ticket, nil
}

// Transfer hands a claimed ticket to another staff member. Unlike claim it
// overwrites the current claimant and does not touch SLA timers.
func (m *Manager) Transfer(ctx context.Context, channelID string, actor, target Actor) (*models.Ticket, error) {
	ticket, cfg, err := m.resolve(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !m.isStaff(actor, cfg) || !m.isStaff(target, cfg) {
		return nil, ErrPermissionDenied
	}

	previousClaimant := ticket.ClaimedBy
	transferred, err := m.tickets.Transfer(ctx, ticket.ID, target.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if !transferred {
		return nil, &TransitionError{From: ticket.Status, To: models.TicketStatusClaimed}
	}

	ticket.ClaimedBy = target.UserID

	if previousClaimant != "" && previousClaimant != target.UserID {
		if err := m.engine.ReleaseLoad(ctx, ticket.GuildID, previousClaimant); err != nil {
			slog.Error("Load release failed after transfer",
				slog.String("user_id", previousClaimant), slog.Any("error", err))
		}
		if err := m.engine.IncrementLoad(ctx, ticket.GuildID, target.UserID); err != nil {
			slog.Error("Load increment failed after transfer",
				slog.String("user_id", target.UserID), slog.Any("error", err))
		}
	}
	if err := m.staff.RecordClaim(ctx, ticket.GuildID, target.UserID); err != nil {
		slog.Warn("Transfer stats update failed",
			slog.String("user_id", target.UserID), slog.Any("error", err))
	}

	m.notifier.TicketEvent(ctx, ticket, EventTransferred, actor.UserID, target.UserID)
	return ticket, nil
}

// Close ends a ticket. With delayMinutes zero the close is immediate; with
// 1-60 only the scheduled-close triple is written and the scheduler performs
// the actual close later.
func (m *Manager) Close(ctx context.Context, channelID string, actor Actor, reason string, delayMinutes int) (*models.Ticket, error) {
	ticket, cfg, err := m.resolve(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ticket.OwnerID != actor.UserID && !m.isStaff(actor, cfg) {
		return nil, ErrPermissionDenied
	}
	if err := ValidateTransition(ticket.Status, models.TicketStatusClosed); err != nil {
		return nil, err
	}

	if delayMinutes != 0 {
		if delayMinutes < minCloseDelayMinutes || delayMinutes > maxCloseDelayMinutes {
			return nil, ErrInvalidCloseDelay
		}
		at := m.now().Add(time.Duration(delayMinutes) * time.Minute)
		scheduled, err := m.tickets.ScheduleClose(ctx, ticket.ID, at, actor.UserID, reason)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
		}
		if !scheduled {
			return nil, &TransitionError{From: ticket.Status, To: models.TicketStatusClosed}
		}
		ticket.ScheduledCloseAt = &at
		ticket.ScheduledCloseBy = actor.UserID
		ticket.ScheduledCloseReason = reason
		m.notifier.TicketEvent(ctx, ticket, EventCloseScheduled, actor.UserID, reason)
		return ticket, nil
	}

	return m.closeNow(ctx, ticket, cfg, actor.UserID, reason, true)
}

// SystemClose closes a ticket on behalf of the scheduler, bypassing caller
// permission checks. The status precondition still applies, so a ticket
// closed by a user between scan and act is skipped cleanly.
func (m *Manager) SystemClose(ctx context.Context, ticket *models.Ticket, reason string) (bool, error) {
	cfg, err := m.configs.GetOrCreate(ctx, ticket.GuildID)
	if err != nil {
		return false, err
	}
	_, err = m.closeNow(ctx, ticket, cfg, "system", reason, false)
	if err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *Manager) closeNow(ctx context.Context, ticket *models.Ticket, cfg *models.GuildConfig, closedBy, reason string, offerRating bool) (*models.Ticket, error) {
	if err := ValidateTransition(ticket.Status, models.TicketStatusClosed); err != nil {
		return nil, err
	}

	now := m.now()
	closed, err := m.tickets.Close(ctx, ticket.ID, closedBy, reason, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if !closed {
		return nil, &TransitionError{From: ticket.Status, To: models.TicketStatusClosed}
	}

	claimant := ticket.ClaimedBy
	ticket.Status = models.TicketStatusClosed
	ticket.ClosedAt = &now
	ticket.ClosedBy = closedBy
	ticket.CloseReason = reason
	ticket.ScheduledCloseAt = nil
	ticket.ScheduledCloseBy = ""
	ticket.ScheduledCloseReason = ""

	if claimant != "" {
		if err := m.engine.ReleaseLoad(ctx, ticket.GuildID, claimant); err != nil {
			slog.Error("Load release failed after close",
				slog.String("user_id", claimant), slog.Any("error", err))
		}
		if err := m.staff.RecordClose(ctx, ticket.GuildID, claimant); err != nil {
			slog.Warn("Close stats update failed",
				slog.String("user_id", claimant), slog.Any("error", err))
		}
	}
	if err := m.configs.IncrementClosed(ctx, ticket.GuildID); err != nil {
		slog.Warn("Guild close counter update failed",
			slog.String("guild_id", ticket.GuildID), slog.Any("error", err))
	}
	if err := m.reminders.CancelByTicket(ctx, ticket.ID); err != nil {
		slog.Warn("Reminder cancellation failed on close",
			slog.Int64("ticket_id", ticket.ID), slog.Any("error", err))
	}

	m.notifier.TicketEvent(ctx, ticket, EventClosed, closedBy, reason)
	delay := teardownDelay
	if offerRating {
		m.notifier.OfferRating(ctx, ticket)
		delay = ratingGrace
	}
	m.teardown(ticket.ChannelID, delay)
	return ticket, nil
}

// CancelScheduledClose clears a pending deferred close.
func (m *Manager) CancelScheduledClose(ctx context.Context, channelID string, actor Actor) (*models.Ticket, error) {
	ticket, cfg, err := m.resolve(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ticket.OwnerID != actor.UserID && !m.isStaff(actor, cfg) {
		return nil, ErrPermissionDenied
	}

	cancelled, err := m.tickets.CancelScheduledClose(ctx, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if !cancelled {
		return nil, ErrNoScheduledClose
	}

	ticket.ScheduledCloseAt = nil
	ticket.ScheduledCloseBy = ""
	ticket.ScheduledCloseReason = ""
	m.notifier.TicketEvent(ctx, ticket, EventCloseCancelled, actor.UserID, "")
	return ticket, nil
}

// Reopen returns a closed or archived ticket to open. Ticket number,
// first-response timestamp and breach history are preserved.
func (m *Manager) Reopen(ctx context.Context, channelID string, actor Actor) (*models.Ticket, error) {
	ticket, cfg, err := m.resolve(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ticket.OwnerID != actor.UserID && !m.isStaff(actor, cfg) {
		return nil, ErrPermissionDenied
	}
	if err := ValidateTransition(ticket.Status, models.TicketStatusOpen); err != nil {
		return nil, err
	}

	reopened, err := m.tickets.Reopen(ctx, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if !reopened {
		return nil, &TransitionError{From: ticket.Status, To: models.TicketStatusOpen}
	}

	ticket.Status = models.TicketStatusOpen
	ticket.ClaimedBy = ""
	ticket.ClaimedAt = nil
	ticket.ClosedAt = nil
	ticket.ClosedBy = ""
	ticket.CloseReason = ""

	m.notifier.TicketEvent(ctx, ticket, EventReopened, actor.UserID, "")

	if cfg.AutoAssignEnabled {
		m.autoAssign(ctx, ticket, cfg)
	}
	return ticket, nil
}

// Archive freezes a ticket as a read-only record. The only transition that
// also edits channel permissions.
func (m *Manager) Archive(ctx context.Context, channelID string, actor Actor) (*models.Ticket, error) {
	ticket, cfg, err := m.resolve(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !m.isStaff(actor, cfg) {
		return nil, ErrPermissionDenied
	}
	if err := ValidateTransition(ticket.Status, models.TicketStatusArchived); err != nil {
		return nil, err
	}

	archived, err := m.tickets.Archive(ctx, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if !archived {
		return nil, &TransitionError{From: ticket.Status, To: models.TicketStatusArchived}
	}

	ticket.Status = models.TicketStatusArchived

	if err := m.channels.MakeReadOnly(ctx, ticket.GuildID, ticket.ChannelID, ticket.OwnerID, cfg.StaffRoles); err != nil {
		slog.Warn("Channel permission update failed on archive",
			slog.String("channel_id", ticket.ChannelID), slog.Any("error", err))
	}

	m.notifier.TicketEvent(ctx, ticket, EventArchived, actor.UserID, "")
	return ticket, nil
}

// Merge closes the source ticket with a reference to the target. Messages
// are not moved; both channels are notified and the source channel is torn
// down after the grace window.
func (m *Manager) Merge(ctx context.Context, sourceChannelID, targetChannelID string, actor Actor) (*models.Ticket, error) {
	source, cfg, err := m.resolve(ctx, sourceChannelID)
	if err != nil {
		return nil, err
	}
	if !m.isStaff(actor, cfg) {
		return nil, ErrPermissionDenied
	}
	target, err := m.tickets.GetByChannelID(ctx, targetChannelID)
	if err != nil {
		if err == repositories.ErrTicketNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if target.Status == models.TicketStatusClosed {
		return nil, ErrMergeTargetClosed
	}
	if err := ValidateTransition(source.Status, models.TicketStatusClosed); err != nil {
		return nil, err
	}

	now := m.now()
	merged, err := m.tickets.Merge(ctx, source.ID, target.ID, actor.UserID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if !merged {
		return nil, &TransitionError{From: source.Status, To: models.TicketStatusClosed}
	}

	claimant := source.ClaimedBy
	source.Status = models.TicketStatusClosed
	source.ClosedAt = &now
	source.ClosedBy = actor.UserID
	source.MergedInto = &target.ID

	if claimant != "" {
		if err := m.engine.ReleaseLoad(ctx, source.GuildID, claimant); err != nil {
			slog.Error("Load release failed after merge",
				slog.String("user_id", claimant), slog.Any("error", err))
		}
	}

	detail := fmt.Sprintf("#%d", target.TicketNumber)
	m.notifier.TicketEvent(ctx, source, EventMerged, actor.UserID, detail)
	m.notifier.TicketEvent(ctx, target, EventMerged, actor.UserID, fmt.Sprintf("absorbed #%d", source.TicketNumber))
	m.teardown(source.ChannelID, teardownDelay)
	return source, nil
}

func (m *Manager) SetPriority(ctx context.Context, channelID string, actor Actor, priority int) (*models.Ticket, error) {
	if priority < models.PriorityLow || priority > models.PriorityUrgent {
		return nil, ErrInvalidPriority
	}
	ticket, cfg, err := m.resolve(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !m.isStaff(actor, cfg) {
		return nil, ErrPermissionDenied
	}

	if _, err := m.tickets.SetPriority(ctx, ticket.ID, priority); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	ticket.Priority = priority
	m.notifier.TicketEvent(ctx, ticket, EventPrioritySet, actor.UserID, fmt.Sprintf("%d", priority))
	return ticket, nil
}

// AddTag attaches a tag. Duplicates and the tag cap are reported conditions,
// not errors wrapped in stack traces.
func (m *Manager) AddTag(ctx context.Context, channelID string, actor Actor, tag string) error {
	ticket, cfg, err := m.resolve(ctx, channelID)
	if err != nil {
		return err
	}
	if !m.isStaff(actor, cfg) {
		return ErrPermissionDenied
	}

	added, err := m.tickets.AddTag(ctx, ticket.ID, tag)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if !added {
		if ticket.HasTag(tag) {
			return ErrTagExists
		}
		return ErrLimitExceeded
	}
	return nil
}

func (m *Manager) RemoveTag(ctx context.Context, channelID string, actor Actor, tag string) error {
	ticket, cfg, err := m.resolve(ctx, channelID)
	if err != nil {
		return err
	}
	if !m.isStaff(actor, cfg) {
		return ErrPermissionDenied
	}

	removed, err := m.tickets.RemoveTag(ctx, ticket.ID, tag)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if !removed {
		return ErrTagMissing
	}
	return nil
}

// AddWatcher subscribes a user to ticket event DMs. Bots are rejected at
// this boundary.
func (m *Manager) AddWatcher(ctx context.Context, channelID string, actor, watcher Actor) error {
	if watcher.IsBot {
		return ErrBotWatcher
	}
	ticket, cfg, err := m.resolve(ctx, channelID)
	if err != nil {
		return err
	}
	if ticket.OwnerID != actor.UserID && !m.isStaff(actor, cfg) {
		return ErrPermissionDenied
	}

	added, err := m.tickets.AddWatcher(ctx, ticket.ID, watcher.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if !added {
		return ErrWatcherExists
	}
	return nil
}

func (m *Manager) RemoveWatcher(ctx context.Context, channelID string, actor, watcher Actor) error {
	ticket, cfg, err := m.resolve(ctx, channelID)
	if err != nil {
		return err
	}
	if ticket.OwnerID != actor.UserID && !m.isStaff(actor, cfg) {
		return ErrPermissionDenied
	}

	removed, err := m.tickets.RemoveWatcher(ctx, ticket.ID, watcher.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if !removed {
		return ErrWatcherMissing
	}
	return nil
}

// Rate records the owner's 1-5 verdict on a closed ticket, once. The rating
// feeds the guild average and the closing staff member's running average.
func (m *Manager) Rate(ctx context.Context, channelID string, actor Actor, rating int) error {
	if rating < 1 || rating > 5 {
		return ErrInvalidRating
	}
	ticket, _, err := m.resolve(ctx, channelID)
	if err != nil {
		return err
	}
	if ticket.OwnerID != actor.UserID {
		return ErrPermissionDenied
	}
	if ticket.Active() {
		return &TransitionError{From: ticket.Status, To: models.TicketStatusClosed}
	}

	rated, err := m.tickets.SetRating(ctx, ticket.ID, actor.UserID, rating)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	if !rated {
		return ErrAlreadyRated
	}

	if err := m.configs.AddRating(ctx, ticket.GuildID, rating); err != nil {
		slog.Warn("Guild rating counter update failed",
			slog.String("guild_id", ticket.GuildID), slog.Any("error", err))
	}
	if ticket.ClosedBy != "" && ticket.ClosedBy != "system" {
		if err := m.staff.RecordRating(ctx, ticket.GuildID, ticket.ClosedBy, rating); err != nil {
			slog.Warn("Staff rating update failed",
				slog.String("user_id", ticket.ClosedBy), slog.Any("error", err))
		}
	}

	ticket.Rating = &rating
	m.notifier.TicketEvent(ctx, ticket, EventRated, actor.UserID, fmt.Sprintf("%d", rating))
	return nil
}

// RecordResponse stamps the first staff response for a message-based reply.
// Called by the message listener when a staff member posts in the channel.
func (m *Manager) RecordResponse(ctx context.Context, channelID string, actor Actor) error {
	ticket, cfg, err := m.resolve(ctx, channelID)
	if err != nil {
		return err
	}
	if !m.isStaff(actor, cfg) {
		return nil
	}
	return m.tracker.RecordFirstResponse(ctx, ticket, m.now())
}

// Get resolves the ticket for a channel for display purposes.
func (m *Manager) Get(ctx context.Context, channelID string) (*models.Ticket, error) {
	ticket, _, err := m.resolve(ctx, channelID)
	return ticket, err
}

func (m *Manager) resolve(ctx context.Context, channelID string) (*models.Ticket, *models.GuildConfig, error) {
	ticket, err := m.tickets.GetByChannelID(ctx, channelID)
	if err != nil {
		if err == repositories.ErrTicketNotFound {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	cfg, err := m.configs.GetOrCreate(ctx, ticket.GuildID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrExternalFailure, err)
	}
	return ticket, cfg, nil
}

func (m *Manager) isStaff(actor Actor, cfg *models.GuildConfig) bool {
	return actor.IsAdmin || cfg.HasStaffRole(actor.RoleIDs)
}

// claimFailure distinguishes a lost claim race from a plain illegal
// transition by re-reading the row.
func (m *Manager) claimFailure(ctx context.Context, ticketID int64, attempted models.TicketStatus) error {
	current, err := m.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return &TransitionError{From: models.TicketStatusOpen, To: attempted}
	}
	if current.Status == models.TicketStatusClaimed {
		return &AlreadyClaimedError{ClaimedBy: current.ClaimedBy}
	}
	return &TransitionError{From: current.Status, To: attempted}
}

func (m *Manager) deleteChannelLater(channelID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.channels.DeleteChannel(ctx, channelID); err != nil {
			slog.Error("Ticket channel teardown failed",
				slog.String("channel_id", channelID), slog.Any("error", err))
		}
	})
}
