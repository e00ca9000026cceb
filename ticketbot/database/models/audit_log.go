package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID       int64  `bun:"id,pk,autoincrement"`
	GuildID  string `bun:"guild_id,notnull"`
	TicketID int64  `bun:"ticket_id"`
	ActorID  string `bun:"actor_id,notnull"`
	Action   string `bun:"action,notnull"`
	Details  string `bun:"details"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
