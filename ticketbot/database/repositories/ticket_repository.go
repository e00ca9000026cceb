package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/uptrace/bun"
)

var ErrTicketNotFound = errors.New("ticket not found")

// TicketRepository is the persistence surface for tickets. Every mutating
// method is a single conditional UPDATE: the status precondition is part of
// the WHERE clause, and the boolean result reports whether the row matched.
// Concurrent callers therefore resolve to exactly one winner.
type TicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	GetByID(ctx context.Context, id int64) (*models.Ticket, error)
	GetByChannelID(ctx context.Context, channelID string) (*models.Ticket, error)
	GetActiveByOwner(ctx context.Context, guildID, ownerID string) ([]*models.Ticket, error)
	GetOpenByGuild(ctx context.Context, guildID string) ([]*models.Ticket, error)
	ListByGuild(ctx context.Context, guildID string, limit, offset int) ([]*models.Ticket, error)

	Claim(ctx context.Context, id int64, staffID string, at time.Time) (bool, error)
	Unclaim(ctx context.Context, id int64) (bool, error)
	Transfer(ctx context.Context, id int64, toStaffID string) (bool, error)
	Close(ctx context.Context, id int64, closedBy, reason string, at time.Time) (bool, error)
	ScheduleClose(ctx context.Context, id int64, at time.Time, by, reason string) (bool, error)
	CancelScheduledClose(ctx context.Context, id int64) (bool, error)
	Reopen(ctx context.Context, id int64) (bool, error)
	Archive(ctx context.Context, id int64) (bool, error)
	Merge(ctx context.Context, sourceID, targetID int64, by string, at time.Time) (bool, error)

	SetPriority(ctx context.Context, id int64, priority int) (bool, error)
	AddTag(ctx context.Context, id int64, tag string) (bool, error)
	RemoveTag(ctx context.Context, id int64, tag string) (bool, error)
	AddWatcher(ctx context.Context, id int64, userID string) (bool, error)
	RemoveWatcher(ctx context.Context, id int64, userID string) (bool, error)
	SetRating(ctx context.Context, id int64, ownerID string, rating int) (bool, error)

	SetFirstResponse(ctx context.Context, id int64, at time.Time, met bool) (bool, error)
	MarkFirstResponseBreached(ctx context.Context, id int64) (bool, error)
	MarkResolutionBreached(ctx context.Context, id int64) (bool, error)
	MarkEscalated(ctx context.Context, id int64, at time.Time) (bool, error)
	MarkWarned(ctx context.Context, id int64, at time.Time) (bool, error)

	RecordActivity(ctx context.Context, channelID string, at time.Time) error

	FindInactive(ctx context.Context, guildID string, inactiveSince time.Time) ([]*models.Ticket, error)
	FindDueScheduledCloses(ctx context.Context, now time.Time) ([]*models.Ticket, error)
	FindSLACandidates(ctx context.Context, guildID string) ([]*models.Ticket, error)
	CountForDay(ctx context.Context, guildID string, day time.Time) (opened int, closed int, avgRating float64, err error)
}

type ticketRepository struct {
	db *bun.DB
}

func NewTicketRepository(db *bun.DB) TicketRepository {
	return &ticketRepository{db: db}
}

// Create inserts the ticket and assigns its per-guild sequence number. The
// number comes from a single increment-and-read on guild_configs inside the
// same transaction, so two concurrent creates can never share a number.
func (r *ticketRepository) Create(ctx context.Context, ticket *models.Ticket) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var number int
		err := tx.NewUpdate().
			Model((*models.GuildConfig)(nil)).
			Set("ticket_count = ticket_count + 1").
			Set("total_opened = total_opened + 1").
			Set("updated_at = ?", time.Now()).
			Where("guild_id = ?", ticket.GuildID).
			Returning("ticket_count").
			Scan(ctx, &number)
		if err != nil {
			return fmt.Errorf("failed to allocate ticket number: %w", err)
		}

		ticket.TicketNumber = number
		if _, err := tx.NewInsert().Model(ticket).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert ticket: %w", err)
		}
		return nil
	})
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*models.Ticket, error) {
	ticket := new(models.Ticket)
	err := r.db.NewSelect().Model(ticket).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) GetByChannelID(ctx context.Context, channelID string) (*models.Ticket, error) {
	ticket := new(models.Ticket)
	err := r.db.NewSelect().Model(ticket).Where("channel_id = ?", channelID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) GetActiveByOwner(ctx context.Context, guildID, ownerID string) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	err := r.db.NewSelect().
		Model(&tickets).
		Where("guild_id = ?", guildID).
		Where("owner_id = ?", ownerID).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusOpen, models.TicketStatusClaimed})).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) GetOpenByGuild(ctx context.Context, guildID string) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	err := r.db.NewSelect().
		Model(&tickets).
		Where("guild_id = ?", guildID).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusOpen, models.TicketStatusClaimed})).
		Order("ticket_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) ListByGuild(ctx context.Context, guildID string, limit, offset int) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	err := r.db.NewSelect().
		Model(&tickets).
		Where("guild_id = ?", guildID).
		Order("ticket_number DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) Claim(ctx context.Context, id int64, staffID string, at time.Time) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusClaimed).
		Set("claimed_by = ?", staffID).
		Set("claimed_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", models.TicketStatusOpen))
}

func (r *ticketRepository) Unclaim(ctx context.Context, id int64) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusOpen).
		Set("claimed_by = ''").
		Set("claimed_at = NULL").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", models.TicketStatusClaimed))
}

func (r *ticketRepository) Transfer(ctx context.Context, id int64, toStaffID string) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("claimed_by = ?", toStaffID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", models.TicketStatusClaimed))
}

func (r *ticketRepository) Close(ctx context.Context, id int64, closedBy, reason string, at time.Time) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusClosed).
		Set("closed_at = ?", at).
		Set("closed_by = ?", closedBy).
		Set("close_reason = ?", reason).
		Set("scheduled_close_at = NULL").
		Set("scheduled_close_by = ''").
		Set("scheduled_close_reason = ''").
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusOpen, models.TicketStatusClaimed})))
}

func (r *ticketRepository) ScheduleClose(ctx context.Context, id int64, at time.Time, by, reason string) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("scheduled_close_at = ?", at).
		Set("scheduled_close_by = ?", by).
		Set("scheduled_close_reason = ?", reason).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusOpen, models.TicketStatusClaimed})))
}

func (r *ticketRepository) CancelScheduledClose(ctx context.Context, id int64) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("scheduled_close_at = NULL").
		Set("scheduled_close_by = ''").
		Set("scheduled_close_reason = ''").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("scheduled_close_at IS NOT NULL"))
}

// Reopen resets a closed or archived ticket to open. Historical fields
// (ticket_number, first_response_at, breach flags) are left untouched.
func (r *ticketRepository) Reopen(ctx context.Context, id int64) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusOpen).
		Set("claimed_by = ''").
		Set("claimed_at = NULL").
		Set("closed_at = NULL").
		Set("closed_by = ''").
		Set("close_reason = ''").
		Set("warned_at = NULL").
		Set("last_activity_at = ?", time.Now()).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusClosed, models.TicketStatusArchived})))
}

func (r *ticketRepository) Archive(ctx context.Context, id int64) (bool, error) {
	now := time.Now()
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusArchived).
		Set("closed_at = COALESCE(closed_at, ?)", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status != ?", models.TicketStatusArchived))
}

func (r *ticketRepository) Merge(ctx context.Context, sourceID, targetID int64, by string, at time.Time) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusClosed).
		Set("closed_at = ?", at).
		Set("closed_by = ?", by).
		Set("close_reason = ?", fmt.Sprintf("merged into #%d", targetID)).
		Set("merged_into = ?", targetID).
		Set("updated_at = ?", at).
		Where("id = ?", sourceID).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusOpen, models.TicketStatusClaimed})))
}

func (r *ticketRepository) SetPriority(ctx context.Context, id int64, priority int) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("priority = ?", priority).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id))
}

func (r *ticketRepository) AddTag(ctx context.Context, id int64, tag string) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("tags = array_append(tags, ?)", tag).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("NOT (? = ANY(tags))", tag).
		Where("COALESCE(array_length(tags, 1), 0) < ?", models.MaxTags))
}

func (r *ticketRepository) RemoveTag(ctx context.Context, id int64, tag string) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("tags = array_remove(tags, ?)", tag).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("? = ANY(tags)", tag))
}

func (r *ticketRepository) AddWatcher(ctx context.Context, id int64, userID string) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("watchers = array_append(watchers, ?)", userID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("NOT (? = ANY(watchers))", userID))
}

func (r *ticketRepository) RemoveWatcher(ctx context.Context, id int64, userID string) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("watchers = array_remove(watchers, ?)", userID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("? = ANY(watchers)", userID))
}

// SetRating records the owner's 1-5 rating. The rating IS NULL guard makes
// the operation once-only per ticket.
func (r *ticketRepository) SetRating(ctx context.Context, id int64, ownerID string, rating int) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("rating = ?", rating).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Where("rating IS NULL"))
}

func (r *ticketRepository) SetFirstResponse(ctx context.Context, id int64, at time.Time, met bool) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("first_response_at = ?", at).
		Set("sla_first_response_met = ?", met).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("first_response_at IS NULL"))
}

func (r *ticketRepository) MarkFirstResponseBreached(ctx context.Context, id int64) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("sla_breached = TRUE").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("NOT sla_breached").
		Where("first_response_at IS NULL").
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusOpen, models.TicketStatusClaimed})))
}

func (r *ticketRepository) MarkResolutionBreached(ctx context.Context, id int64) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("resolution_breached = TRUE").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", id).
		Where("NOT resolution_breached").
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusOpen, models.TicketStatusClaimed})))
}

func (r *ticketRepository) MarkEscalated(ctx context.Context, id int64, at time.Time) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("escalated_at = ?", at).
		Set("priority = ?", models.PriorityUrgent).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("escalated_at IS NULL"))
}

func (r *ticketRepository) MarkWarned(ctx context.Context, id int64, at time.Time) (bool, error) {
	return r.execConditional(ctx, r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("warned_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("warned_at IS NULL").
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusOpen, models.TicketStatusClaimed})))
}

// RecordActivity bumps the message counter and resets the auto-close warning
// whenever a non-bot message lands in the ticket channel.
func (r *ticketRepository) RecordActivity(ctx context.Context, channelID string, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("message_count = message_count + 1").
		Set("last_activity_at = ?", at).
		Set("warned_at = NULL").
		Set("updated_at = ?", at).
		Where("channel_id = ?", channelID).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusOpen, models.TicketStatusClaimed})).
		Exec(ctx)
	return err
}

func (r *ticketRepository) FindInactive(ctx context.Context, guildID string, inactiveSince time.Time) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	err := r.db.NewSelect().
		Model(&tickets).
		Where("guild_id = ?", guildID).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusOpen, models.TicketStatusClaimed})).
		Where("last_activity_at < ?", inactiveSince).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) FindDueScheduledCloses(ctx context.Context, now time.Time) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	err := r.db.NewSelect().
		Model(&tickets).
		Where("scheduled_close_at IS NOT NULL").
		Where("scheduled_close_at <= ?", now).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusOpen, models.TicketStatusClaimed})).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) FindSLACandidates(ctx context.Context, guildID string) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	err := r.db.NewSelect().
		Model(&tickets).
		Where("guild_id = ?", guildID).
		Where("status IN (?)", bun.In([]models.TicketStatus{models.TicketStatusOpen, models.TicketStatusClaimed})).
		Where("NOT sla_breached OR NOT resolution_breached").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) CountForDay(ctx context.Context, guildID string, day time.Time) (int, int, float64, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	opened, err := r.db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("guild_id = ?", guildID).
		Where("created_at >= ? AND created_at < ?", dayStart, dayEnd).
		Count(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count opened tickets: %w", err)
	}

	closed, err := r.db.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("guild_id = ?", guildID).
		Where("closed_at >= ? AND closed_at < ?", dayStart, dayEnd).
		Count(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count closed tickets: %w", err)
	}

	var avgRating sql.NullFloat64
	err = r.db.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("AVG(rating)").
		Where("guild_id = ?", guildID).
		Where("closed_at >= ? AND closed_at < ?", dayStart, dayEnd).
		Where("rating IS NOT NULL").
		Scan(ctx, &avgRating)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to average ratings: %w", err)
	}

	return opened, closed, avgRating.Float64, nil
}

func (r *ticketRepository) execConditional(ctx context.Context, q *bun.UpdateQuery) (bool, error) {
	result, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
