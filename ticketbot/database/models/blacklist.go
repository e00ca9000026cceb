package models

import (
	"time"

	"github.com/uptrace/bun"
)

// BlacklistEntry bars a user from opening tickets in a guild.
type BlacklistEntry struct {
	bun.BaseModel `bun:"table:blacklist,alias:bl"`

	ID      int64  `bun:"id,pk,autoincrement"`
	GuildID string `bun:"guild_id,notnull"`
	UserID  string `bun:"user_id,notnull"`
	Reason  string `bun:"reason"`
	AddedBy string `bun:"added_by,notnull"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
