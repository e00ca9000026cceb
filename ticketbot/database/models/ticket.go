package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusClaimed  TicketStatus = "claimed"
	TicketStatusClosed   TicketStatus = "closed"
	TicketStatusArchived TicketStatus = "archived"
)

// Priority levels, 1 = low .. 4 = urgent.
const (
	PriorityLow    = 1
	PriorityMedium = 2
	PriorityHigh   = 3
	PriorityUrgent = 4
)

const MaxTags = 10

type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID           int64  `bun:"id,pk,autoincrement"`
	GuildID      string `bun:"guild_id,notnull"`
	ChannelID    string `bun:"channel_id,notnull,unique"`
	OwnerID      string `bun:"owner_id,notnull"`
	TicketNumber int    `bun:"ticket_number,notnull"`

	Status     TicketStatus `bun:"status,notnull,default:'open'"`
	Priority   int          `bun:"priority,notnull,default:2"`
	ClaimedBy  string       `bun:"claimed_by"`
	CategoryID *int64       `bun:"category_id"`
	Subject    string       `bun:"subject"`

	CreatedAt            time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	ClaimedAt            *time.Time `bun:"claimed_at"`
	FirstResponseAt      *time.Time `bun:"first_response_at"`
	ClosedAt             *time.Time `bun:"closed_at"`
	ClosedBy             string     `bun:"closed_by"`
	CloseReason          string     `bun:"close_reason"`
	LastActivityAt       time.Time  `bun:"last_activity_at,notnull,default:current_timestamp"`
	ScheduledCloseAt     *time.Time `bun:"scheduled_close_at"`
	ScheduledCloseBy     string     `bun:"scheduled_close_by"`
	ScheduledCloseReason string     `bun:"scheduled_close_reason"`
	WarnedAt             *time.Time `bun:"warned_at"`

	SLADueAt            *time.Time `bun:"sla_due_at"`
	SLAFirstResponseMet *bool      `bun:"sla_first_response_met"`
	SLABreached         bool       `bun:"sla_breached,notnull,default:false"`
	ResolutionBreached  bool       `bun:"resolution_breached,notnull,default:false"`
	EscalatedAt         *time.Time `bun:"escalated_at"`

	Watchers     []string `bun:"watchers,array"`
	Tags         []string `bun:"tags,array"`
	MessageCount int      `bun:"message_count,notnull,default:0"`
	Rating       *int     `bun:"rating"`
	MergedInto   *int64   `bun:"merged_into"`

	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Active reports whether the ticket still counts against the owner's
// per-user limit.
func (t *Ticket) Active() bool {
	return t.Status == TicketStatusOpen || t.Status == TicketStatusClaimed
}

// HasScheduledClose reports whether a deferred close is pending. The triple
// scheduled_close_at/by/reason is always set or cleared together.
func (t *Ticket) HasScheduledClose() bool {
	return t.ScheduledCloseAt != nil
}

func (t *Ticket) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

func (t *Ticket) HasWatcher(userID string) bool {
	for _, existing := range t.Watchers {
		if existing == userID {
			return true
		}
	}
	return false
}
