package repositories

import (
	"context"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/uptrace/bun"
)

type TriggerRepository interface {
	ListEnabled(ctx context.Context, guildID string) ([]*models.Trigger, error)
	Create(ctx context.Context, trigger *models.Trigger) error
	Delete(ctx context.Context, id int64) error
	IncrementUses(ctx context.Context, id int64) error
}

type triggerRepository struct {
	db *bun.DB
}

func NewTriggerRepository(db *bun.DB) TriggerRepository {
	return &triggerRepository{db: db}
}

func (r *triggerRepository) ListEnabled(ctx context.Context, guildID string) ([]*models.Trigger, error) {
	var triggers []*models.Trigger
	err := r.db.NewSelect().
		Model(&triggers).
		Where("guild_id = ?", guildID).
		Where("enabled").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return triggers, nil
}

func (r *triggerRepository) Create(ctx context.Context, trigger *models.Trigger) error {
	_, err := r.db.NewInsert().Model(trigger).Exec(ctx)
	return err
}

func (r *triggerRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.NewDelete().Model((*models.Trigger)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (r *triggerRepository) IncrementUses(ctx context.Context, id int64) error {
	_, err := r.db.NewUpdate().
		Model((*models.Trigger)(nil)).
		Set("uses = uses + 1").
		Where("id = ?", id).
		Exec(ctx)
	return err
}
