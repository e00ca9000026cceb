package repositories

import (
	"context"
	"time"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/uptrace/bun"
)

type ReminderRepository interface {
	Create(ctx context.Context, reminder *models.Reminder) error
	FindDue(ctx context.Context, now time.Time) ([]*models.Reminder, error)
	// MarkCompleted flips completed before delivery is attempted. The
	// conditional update means only one sweep ever wins a given reminder.
	MarkCompleted(ctx context.Context, id int64) (bool, error)
	CancelByTicket(ctx context.Context, ticketID int64) error
}

type reminderRepository struct {
	db *bun.DB
}

func NewReminderRepository(db *bun.DB) ReminderRepository {
	return &reminderRepository{db: db}
}

func (r *reminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	_, err := r.db.NewInsert().Model(reminder).Exec(ctx)
	return err
}

func (r *reminderRepository) FindDue(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	var reminders []*models.Reminder
	err := r.db.NewSelect().
		Model(&reminders).
		Where("remind_at <= ?", now).
		Where("NOT completed").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return reminders, nil
}

func (r *reminderRepository) MarkCompleted(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.NewUpdate().
		Model((*models.Reminder)(nil)).
		Set("completed = TRUE").
		Where("id = ?", id).
		Where("NOT completed").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *reminderRepository) CancelByTicket(ctx context.Context, ticketID int64) error {
	_, err := r.db.NewUpdate().
		Model((*models.Reminder)(nil)).
		Set("completed = TRUE").
		Where("ticket_id = ?", ticketID).
		Where("NOT completed").
		Exec(ctx)
	return err
}
