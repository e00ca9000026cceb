package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/uptrace/bun"
)

var ErrCategoryNotFound = errors.New("category not found")

type CategoryRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Category, error)
	ListByGuild(ctx context.Context, guildID string) ([]*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id int64) error
}

type categoryRepository struct {
	db *bun.DB
}

func NewCategoryRepository(db *bun.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) GetByID(ctx context.Context, id int64) (*models.Category, error) {
	category := new(models.Category)
	err := r.db.NewSelect().Model(category).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (r *categoryRepository) ListByGuild(ctx context.Context, guildID string) ([]*models.Category, error) {
	var categories []*models.Category
	err := r.db.NewSelect().
		Model(&categories).
		Where("guild_id = ?", guildID).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) Create(ctx context.Context, category *models.Category) error {
	_, err := r.db.NewInsert().Model(category).Exec(ctx)
	return err
}

func (r *categoryRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.NewDelete().Model((*models.Category)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}
