package models

import (
	"time"

	"github.com/uptrace/bun"
)

// KBArticle is a knowledge-base entry surfaced to staff via fuzzy search.
type KBArticle struct {
	bun.BaseModel `bun:"table:kb_articles,alias:kb"`

	ID       int64    `bun:"id,pk,autoincrement"`
	GuildID  string   `bun:"guild_id,notnull"`
	Title    string   `bun:"title,notnull"`
	Content  string   `bun:"content,notnull"`
	Keywords []string `bun:"keywords,array"`
	AuthorID string   `bun:"author_id,notnull"`
	Uses     int      `bun:"uses,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
