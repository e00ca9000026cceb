package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Trigger is a keyword auto-response evaluated against messages posted in
// ticket channels.
type Trigger struct {
	bun.BaseModel `bun:"table:triggers,alias:tr"`

	ID       int64  `bun:"id,pk,autoincrement"`
	GuildID  string `bun:"guild_id,notnull"`
	Keyword  string `bun:"keyword,notnull"`
	Response string `bun:"response,notnull"`
	Enabled  bool   `bun:"enabled,notnull,default:true"`
	Uses     int    `bun:"uses,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
