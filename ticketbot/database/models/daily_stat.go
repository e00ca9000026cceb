package models

import (
	"time"

	"github.com/uptrace/bun"
)

// DailyStat is the per-guild rollup snapshot written by the hourly stats
// job. One row per (guild, day); reruns overwrite the same row.
type DailyStat struct {
	bun.BaseModel `bun:"table:daily_stats,alias:ds"`

	ID      int64     `bun:"id,pk,autoincrement"`
	GuildID string    `bun:"guild_id,notnull"`
	Day     time.Time `bun:"day,notnull"`

	Opened        int     `bun:"opened,notnull,default:0"`
	Closed        int     `bun:"closed,notnull,default:0"`
	AverageRating float64 `bun:"average_rating,notnull,default:0"`

	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
