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

type StaffRepository interface {
	GetOrCreate(ctx context.Context, guildID, userID string) (*models.Staff, error)
	Get(ctx context.Context, guildID, userID string) (*models.Staff, error)
	ListByGuild(ctx context.Context, guildID string) ([]*models.Staff, error)
	Assignable(ctx context.Context, guildID string) ([]*models.Staff, error)

	IncrementLoad(ctx context.Context, guildID, userID string) error
	ReleaseLoad(ctx context.Context, guildID, userID string) error
	ResetLoads(ctx context.Context, guildID string) error

	RecordClaim(ctx context.Context, guildID, userID string) error
	RecordClose(ctx context.Context, guildID, userID string) error
	RecordRating(ctx context.Context, guildID, userID string, rating int) error
	SetAssignPrefs(ctx context.Context, guildID, userID string, enabled bool, maxLoad, weight int) error
}

type staffRepository struct {
	db *bun.DB
}

func NewStaffRepository(db *bun.DB) StaffRepository {
	return &staffRepository{db: db}
}

func (r *staffRepository) GetOrCreate(ctx context.Context, guildID, userID string) (*models.Staff, error) {
	staff := new(models.Staff)
	err := r.db.NewSelect().
		Model(staff).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		staff = &models.Staff{
			GuildID:           guildID,
			UserID:            userID,
			Level:             1,
			MaxLoad:           5,
			AutoAssignWeight:  1,
			AutoAssignEnabled: true,
			CreatedAt:         time.Now(),
			UpdatedAt:         time.Now(),
		}
		if _, err := r.db.NewInsert().Model(staff).On("CONFLICT (guild_id, user_id) DO NOTHING").Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to insert staff row: %w", err)
		}
		if err := r.db.NewSelect().Model(staff).Where("guild_id = ? AND user_id = ?", guildID, userID).Scan(ctx); err != nil {
			return nil, fmt.Errorf("failed to read staff row after insert: %w", err)
		}
		return staff, nil
	}
	if err != nil {
		return nil, err
	}
	return staff, nil
}

func (r *staffRepository) Get(ctx context.Context, guildID, userID string) (*models.Staff, error) {
	staff := new(models.Staff)
	err := r.db.NewSelect().
		Model(staff).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return staff, nil
}

func (r *staffRepository) ListByGuild(ctx context.Context, guildID string) ([]*models.Staff, error) {
	var staff []*models.Staff
	err := r.db.NewSelect().
		Model(&staff).
		Where("guild_id = ?", guildID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return staff, nil
}

// Assignable returns the auto-assign candidate pool in stable id order. The
// round-robin pointer indexes into this order.
func (r *staffRepository) Assignable(ctx context.Context, guildID string) ([]*models.Staff, error) {
	var staff []*models.Staff
	err := r.db.NewSelect().
		Model(&staff).
		Where("guild_id = ?", guildID).
		Where("auto_assign_enabled").
		Where("current_load < max_load").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return staff, nil
}

func (r *staffRepository) IncrementLoad(ctx context.Context, guildID, userID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Staff)(nil)).
		Set("current_load = current_load + 1").
		Set("updated_at = ?", time.Now()).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Exec(ctx)
	return err
}

// ReleaseLoad decrements the load, floored at zero.
func (r *staffRepository) ReleaseLoad(ctx context.Context, guildID, userID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Staff)(nil)).
		Set("current_load = GREATEST(current_load - 1, 0)").
		Set("updated_at = ?", time.Now()).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Exec(ctx)
	return err
}

func (r *staffRepository) ResetLoads(ctx context.Context, guildID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Staff)(nil)).
		Set("current_load = 0").
		Set("updated_at = ?", time.Now()).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	return err
}

func (r *staffRepository) RecordClaim(ctx context.Context, guildID, userID string) error {
	now := time.Now()
	_, err := r.db.NewUpdate().
		Model((*models.Staff)(nil)).
		Set("tickets_claimed = tickets_claimed + 1").
		Set("last_active_at = ?", now).
		Set("updated_at = ?", now).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Exec(ctx)
	return err
}

func (r *staffRepository) RecordClose(ctx context.Context, guildID, userID string) error {
	now := time.Now()
	_, err := r.db.NewUpdate().
		Model((*models.Staff)(nil)).
		Set("tickets_closed = tickets_closed + 1").
		Set("xp = xp + 10").
		Set("last_active_at = ?", now).
		Set("updated_at = ?", now).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Exec(ctx)
	return err
}

// RecordRating folds a new rating into the running average in one statement.
func (r *staffRepository) RecordRating(ctx context.Context, guildID, userID string, rating int) error {
	_, err := r.db.NewUpdate().
		Model((*models.Staff)(nil)).
		Set("average_rating = (average_rating * total_ratings + ?) / (total_ratings + 1)", rating).
		Set("total_ratings = total_ratings + 1").
		Set("updated_at = ?", time.Now()).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Exec(ctx)
	return err
}

func (r *staffRepository) SetAssignPrefs(ctx context.Context, guildID, userID string, enabled bool, maxLoad, weight int) error {
	_, err := r.db.NewUpdate().
		Model((*models.Staff)(nil)).
		Set("auto_assign_enabled = ?", enabled).
		Set("max_load = ?", maxLoad).
		Set("auto_assign_weight = ?", weight).
		Set("updated_at = ?", time.Now()).
		Where("guild_id = ? AND user_id = ?", guildID, userID).
		Exec(ctx)
	return err
}
