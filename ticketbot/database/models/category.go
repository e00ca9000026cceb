package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Category groups tickets and may override guild-level SLA windows and
// staff roles. Zero override values mean "inherit from guild config".
type Category struct {
	bun.BaseModel `bun:"table:ticket_categories,alias:tc"`

	ID      int64  `bun:"id,pk,autoincrement"`
	GuildID string `bun:"guild_id,notnull"`
	Name    string `bun:"name,notnull"`
	Emoji   string `bun:"emoji"`

	StaffRoles           []string `bun:"staff_roles,array"`
	SLAFirstResponseMins int      `bun:"sla_first_response_mins,notnull,default:0"`
	SLAResolutionHours   int      `bun:"sla_resolution_hours,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}
