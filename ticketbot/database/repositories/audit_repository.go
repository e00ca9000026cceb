package repositories

import (
	"context"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/uptrace/bun"
)

type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	ListByTicket(ctx context.Context, ticketID int64) ([]*models.AuditLog, error)
}

type auditRepository struct {
	db *bun.DB
}

func NewAuditRepository(db *bun.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	_, err := r.db.NewInsert().Model(entry).Exec(ctx)
	return err
}

func (r *auditRepository) ListByTicket(ctx context.Context, ticketID int64) ([]*models.AuditLog, error) {
	var entries []*models.AuditLog
	err := r.db.NewSelect().
		Model(&entries).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
