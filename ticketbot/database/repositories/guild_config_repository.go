package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/uptrace/bun"
)

const guildConfigCacheSize = 512

// GuildConfigRepository resolves per-guild configuration. GetOrCreate never
// fails on a missing row: the defaults are inserted on first touch. Every
// read hands out a private copy, so callers may mutate the result and
// persist it with Update without racing concurrent readers.
type GuildConfigRepository interface {
	GetOrCreate(ctx context.Context, guildID string) (*models.GuildConfig, error)
	Update(ctx context.Context, cfg *models.GuildConfig) error
	ListGuildIDs(ctx context.Context) ([]string, error)

	RecordFirstResponseResult(ctx context.Context, guildID string, met bool) error
	IncrementBreachCount(ctx context.Context, guildID string) error
	IncrementClosed(ctx context.Context, guildID string) error
	AddRating(ctx context.Context, guildID string, rating int) error
}

type guildConfigRepository struct {
	db    *bun.DB
	cache *lru.Cache
}

func NewGuildConfigRepository(db *bun.DB) GuildConfigRepository {
	cache, _ := lru.New(guildConfigCacheSize)
	return &guildConfigRepository{db: db, cache: cache}
}

type guildConfigCacheEntry struct {
	cfg       *models.GuildConfig
	expiresAt time.Time
}

func (r *guildConfigRepository) GetOrCreate(ctx context.Context, guildID string) (*models.GuildConfig, error) {
	if entry, ok := r.cache.Get(guildID); ok {
		cached := entry.(guildConfigCacheEntry)
		if time.Now().Before(cached.expiresAt) {
			return cached.cfg.Clone(), nil
		}
		r.cache.Remove(guildID)
	}

	cfg := new(models.GuildConfig)
	err := r.db.NewSelect().Model(cfg).Where("guild_id = ?", guildID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		cfg = models.NewGuildConfig(guildID)
		// ON CONFLICT DO NOTHING + re-read keeps concurrent first touches from
		// erroring on the unique guild_id index.
		if _, err := r.db.NewInsert().Model(cfg).On("CONFLICT (guild_id) DO NOTHING").Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to insert default guild config: %w", err)
		}
		if err := r.db.NewSelect().Model(cfg).Where("guild_id = ?", guildID).Scan(ctx); err != nil {
			return nil, fmt.Errorf("failed to read guild config after insert: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	r.cache.Add(guildID, guildConfigCacheEntry{cfg: cfg, expiresAt: time.Now().Add(time.Minute)})
	return cfg.Clone(), nil
}

func (r *guildConfigRepository) Update(ctx context.Context, cfg *models.GuildConfig) error {
	cfg.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(cfg).
		ExcludeColumn("ticket_count", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	r.cache.Remove(cfg.GuildID)
	return nil
}

func (r *guildConfigRepository) ListGuildIDs(ctx context.Context) ([]string, error) {
	var guildIDs []string
	err := r.db.NewSelect().
		Model((*models.GuildConfig)(nil)).
		Column("guild_id").
		Scan(ctx, &guildIDs)
	if err != nil {
		return nil, err
	}
	return guildIDs, nil
}

func (r *guildConfigRepository) RecordFirstResponseResult(ctx context.Context, guildID string, met bool) error {
	q := r.db.NewUpdate().Model((*models.GuildConfig)(nil))
	if met {
		q = q.Set("sla_first_response_met_count = sla_first_response_met_count + 1")
	} else {
		q = q.Set("sla_first_response_missed_count = sla_first_response_missed_count + 1")
	}
	_, err := q.
		Set("updated_at = ?", time.Now()).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	if err == nil {
		r.cache.Remove(guildID)
	}
	return err
}

func (r *guildConfigRepository) IncrementBreachCount(ctx context.Context, guildID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.GuildConfig)(nil)).
		Set("sla_breach_count = sla_breach_count + 1").
		Set("updated_at = ?", time.Now()).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	if err == nil {
		r.cache.Remove(guildID)
	}
	return err
}

func (r *guildConfigRepository) IncrementClosed(ctx context.Context, guildID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.GuildConfig)(nil)).
		Set("total_closed = total_closed + 1").
		Set("updated_at = ?", time.Now()).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	if err == nil {
		r.cache.Remove(guildID)
	}
	return err
}

func (r *guildConfigRepository) AddRating(ctx context.Context, guildID string, rating int) error {
	_, err := r.db.NewUpdate().
		Model((*models.GuildConfig)(nil)).
		Set("rating_sum = rating_sum + ?", rating).
		Set("rating_count = rating_count + 1").
		Set("updated_at = ?", time.Now()).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	if err == nil {
		r.cache.Remove(guildID)
	}
	return err
}
