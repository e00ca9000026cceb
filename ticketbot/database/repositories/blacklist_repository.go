package repositories

import (
	"context"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/uptrace/bun"
)

type BlacklistRepository interface {
	IsBlacklisted(ctx context.Context, guildID, userID string) (bool, error)
	Add(ctx context.Context, entry *models.BlacklistEntry) error
	Remove(ctx context.Context, guildID, userID string) (bool, error)
}

type blacklistRepository struct {
	db *bun.DB
}

func NewBlacklistRepository(db *bun.DB) BlacklistRepository {
	return &blacklistRepository{db: db}
}

func (r *blacklistRepository) IsBlacklisted(ctx context.Context, guildID, userID string) (bool, error) {
	count, err := r.db.NewSelect().
		Model((*models.BlacklistEntry)(nil)).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *blacklistRepository) Add(ctx context.Context, entry *models.BlacklistEntry) error {
	_, err := r.db.NewInsert().
		Model(entry).
		On("CONFLICT (guild_id, user_id) DO NOTHING").
		Exec(ctx)
	return err
}

func (r *blacklistRepository) Remove(ctx context.Context, guildID, userID string) (bool, error) {
	result, err := r.db.NewDelete().
		Model((*models.BlacklistEntry)(nil)).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
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
