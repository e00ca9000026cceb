package repositories

import (
	"context"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/uptrace/bun"
)

type KBRepository interface {
	ListByGuild(ctx context.Context, guildID string) ([]*models.KBArticle, error)
	Create(ctx context.Context, article *models.KBArticle) error
	Delete(ctx context.Context, id int64) error
	IncrementUses(ctx context.Context, id int64) error
}

type kbRepository struct {
	db *bun.DB
}

func NewKBRepository(db *bun.DB) KBRepository {
	return &kbRepository{db: db}
}

func (r *kbRepository) ListByGuild(ctx context.Context, guildID string) ([]*models.KBArticle, error) {
	var articles []*models.KBArticle
	err := r.db.NewSelect().
		Model(&articles).
		Where("guild_id = ?", guildID).
		Order("uses DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return articles, nil
}

func (r *kbRepository) Create(ctx context.Context, article *models.KBArticle) error {
	_, err := r.db.NewInsert().Model(article).Exec(ctx)
	return err
}

func (r *kbRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.NewDelete().Model((*models.KBArticle)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (r *kbRepository) IncrementUses(ctx context.Context, id int64) error {
	_, err := r.db.NewUpdate().
		Model((*models.KBArticle)(nil)).
		Set("uses = uses + 1").
		Where("id = ?", id).
		Exec(ctx)
	return err
}
