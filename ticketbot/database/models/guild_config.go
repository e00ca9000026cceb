package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AssignMode string

const (
	AssignModeRoundRobin  AssignMode = "round-robin"
	AssignModeLoadBased   AssignMode = "load-based"
	AssignModeRatingBased AssignMode = "rating-based"
	AssignModeRandom      AssignMode = "random"
)

// GuildConfig holds every per-guild tunable. Rows are created lazily with
// defaults on first interaction, so reads never fail on a missing guild.
type GuildConfig struct {
	bun.BaseModel `bun:"table:guild_configs,alias:gc"`

	ID      int64  `bun:"id,pk,autoincrement"`
	GuildID string `bun:"guild_id,notnull,unique"`

	StaffRoles        []string `bun:"staff_roles,array"`
	TicketCategoryID  string   `bun:"ticket_category_id"`
	LogChannelID      string   `bun:"log_channel_id"`
	WebhookURL        string   `bun:"webhook_url"`
	MaxTicketsPerUser int      `bun:"max_tickets_per_user,notnull,default:3"`
	AutoCloseHours    int      `bun:"auto_close_hours,notnull,default:0"`

	SLAEnabled           bool   `bun:"sla_enabled,notnull,default:false"`
	SLAFirstResponseMins int    `bun:"sla_first_response_mins,notnull,default:60"`
	SLAResolutionHours   int    `bun:"sla_resolution_hours,notnull,default:24"`
	SLAEscalationRole    string `bun:"sla_escalation_role"`

	BusinessHoursEnabled bool   `bun:"business_hours_enabled,notnull,default:false"`
	BusinessHoursStart   string `bun:"business_hours_start,notnull,default:'09:00'"`
	BusinessHoursEnd     string `bun:"business_hours_end,notnull,default:'18:00'"`
	BusinessDays         []int  `bun:"business_days,array"`
	Timezone             string `bun:"timezone,notnull,default:'UTC'"`

	AutoAssignEnabled bool       `bun:"auto_assign_enabled,notnull,default:false"`
	AutoAssignMode    AssignMode `bun:"auto_assign_mode,notnull,default:'round-robin'"`

	SpamThreshold     int `bun:"spam_threshold,notnull,default:5"`
	SpamWindowSeconds int `bun:"spam_window_seconds,notnull,default:60"`

	AIEnabled bool   `bun:"ai_enabled,notnull,default:false"`
	AIModel   string `bun:"ai_model"`

	TicketCount           int `bun:"ticket_count,notnull,default:0"`
	TotalOpened           int `bun:"total_opened,notnull,default:0"`
	TotalClosed           int `bun:"total_closed,notnull,default:0"`
	SLAFirstResponseMet   int `bun:"sla_first_response_met_count,notnull,default:0"`
	SLAFirstResponseMissed int `bun:"sla_first_response_missed_count,notnull,default:0"`
	SLABreachCount        int `bun:"sla_breach_count,notnull,default:0"`
	RatingSum             int `bun:"rating_sum,notnull,default:0"`
	RatingCount           int `bun:"rating_count,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// NewGuildConfig returns the defaults written on first touch of a guild.
func NewGuildConfig(guildID string) *GuildConfig {
	return &GuildConfig{
		GuildID:              guildID,
		MaxTicketsPerUser:    3,
		SLAFirstResponseMins: 60,
		SLAResolutionHours:   24,
		BusinessHoursStart:   "09:00",
		BusinessHoursEnd:     "18:00",
		BusinessDays:         []int{1, 2, 3, 4, 5},
		Timezone:             "UTC",
		AutoAssignMode:       AssignModeRoundRobin,
		SpamThreshold:        5,
		SpamWindowSeconds:    60,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}
}

// Clone returns a copy the caller may mutate freely. The slice fields get
// their own backing arrays, so in-place edits cannot reach the original.
func (c *GuildConfig) Clone() *GuildConfig {
	clone := *c
	clone.StaffRoles = append([]string(nil), c.StaffRoles...)
	clone.BusinessDays = append([]int(nil), c.BusinessDays...)
	return &clone
}

func (c *GuildConfig) HasStaffRole(roleIDs []string) bool {
	for _, staffRole := range c.StaffRoles {
		for _, role := range roleIDs {
			if staffRole == role {
				return true
			}
		}
	}
	return false
}
