package repositories

import (
	"context"
	"time"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/uptrace/bun"
)

type StatsRepository interface {
	// UpsertDailyStat writes the snapshot for (guild, day), overwriting any
	// earlier run of the same day.
	UpsertDailyStat(ctx context.Context, stat *models.DailyStat) error
	GetDailyStats(ctx context.Context, guildID string, since time.Time) ([]*models.DailyStat, error)
}

type statsRepository struct {
	db *bun.DB
}

func NewStatsRepository(db *bun.DB) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) UpsertDailyStat(ctx context.Context, stat *models.DailyStat) error {
	stat.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().
		Model(stat).
		On("CONFLICT (guild_id, day) DO UPDATE").
		Set("opened = EXCLUDED.opened").
		Set("closed = EXCLUDED.closed").
		Set("average_rating = EXCLUDED.average_rating").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (r *statsRepository) GetDailyStats(ctx context.Context, guildID string, since time.Time) ([]*models.DailyStat, error) {
	var stats []*models.DailyStat
	err := r.db.NewSelect().
		Model(&stats).
		Where("guild_id = ?", guildID).
		Where("day >= ?", since).
		Order("day ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
