package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Reminder is a one-shot scheduled notification. Completed is flipped before
// delivery is attempted, so a reminder is never delivered twice.
type Reminder struct {
	bun.BaseModel `bun:"table:reminders,alias:r"`

	ID        int64     `bun:"id,pk,autoincrement"`
	GuildID   string    `bun:"guild_id,notnull"`
	TicketID  int64     `bun:"ticket_id,notnull"`
	ChannelID string    `bun:"channel_id,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	Message   string    `bun:"message,notnull"`
	RemindAt  time.Time `bun:"remind_at,notnull"`
	Completed bool      `bun:"completed,notnull,default:false"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
