package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Staff is one row per (guild, user) pair that has ever claimed or assisted
// a ticket. CurrentLoad is bumped exactly once per assignment and released
// exactly once per close/unclaim, floored at zero.
type Staff struct {
	bun.BaseModel `bun:"table:staff,alias:s"`

	ID      int64  `bun:"id,pk,autoincrement"`
	GuildID string `bun:"guild_id,notnull"`
	UserID  string `bun:"user_id,notnull"`

	XP            int        `bun:"xp,notnull,default:0"`
	Level         int        `bun:"level,notnull,default:1"`
	CurrentStreak int        `bun:"current_streak,notnull,default:0"`
	LongestStreak int        `bun:"longest_streak,notnull,default:0"`
	LastActiveAt  *time.Time `bun:"last_active_at"`

	TicketsClaimed int      `bun:"tickets_claimed,notnull,default:0"`
	TicketsClosed  int      `bun:"tickets_closed,notnull,default:0"`
	AverageRating  float64  `bun:"average_rating,notnull,default:0"`
	TotalRatings   int      `bun:"total_ratings,notnull,default:0"`
	Badges         []string `bun:"badges,array"`

	CurrentLoad       int  `bun:"current_load,notnull,default:0"`
	MaxLoad           int  `bun:"max_load,notnull,default:5"`
	AutoAssignWeight  int  `bun:"auto_assign_weight,notnull,default:1"`
	AutoAssignEnabled bool `bun:"auto_assign_enabled,notnull,default:true"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// HasCapacity reports whether this staff member can take another ticket.
func (s *Staff) HasCapacity() bool {
	return s.AutoAssignEnabled && s.CurrentLoad < s.MaxLoad
}
