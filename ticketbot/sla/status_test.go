package sla

import (
	"testing"
	"time"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
)

var testCreatedAt = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func slaConfig() *models.GuildConfig {
	return &models.GuildConfig{
		SLAEnabled:           true,
		SLAFirstResponseMins: 30,
		SLAResolutionHours:   8,
	}
}

func newTicket() *models.Ticket {
	return &models.Ticket{
		ID:        1,
		GuildID:   "g1",
		CreatedAt: testCreatedAt,
	}
}

func TestCalculateDeadlines(t *testing.T) {
	tests := []struct {
		name              string
		cfg               *models.GuildConfig
		category          *models.Category
		wantFirstResponse time.Time
		wantResolution    time.Time
	}{
		{
			name:              "guild settings only",
			cfg:               slaConfig(),
			wantFirstResponse: testCreatedAt.Add(30 * time.Minute),
			wantResolution:    testCreatedAt.Add(8 * time.Hour),
		},
		{
			name: "category overrides win",
			cfg:  slaConfig(),
			category: &models.Category{
				SLAFirstResponseMins: 15,
				SLAResolutionHours:   4,
			},
			wantFirstResponse: testCreatedAt.Add(15 * time.Minute),
			wantResolution:    testCreatedAt.Add(4 * time.Hour),
		},
		{
			name: "zero category override inherits from guild",
			cfg:  slaConfig(),
			category: &models.Category{
				SLAFirstResponseMins: 0,
				SLAResolutionHours:   4,
			},
			wantFirstResponse: testCreatedAt.Add(30 * time.Minute),
			wantResolution:    testCreatedAt.Add(4 * time.Hour),
		},
		{
			name:              "unset guild settings fall back to defaults",
			cfg:               &models.GuildConfig{SLAEnabled: true},
			wantFirstResponse: testCreatedAt.Add(60 * time.Minute),
			wantResolution:    testCreatedAt.Add(24 * time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateDeadlines(newTicket(), tt.cfg, tt.category)
			if !got.FirstResponse.Equal(tt.wantFirstResponse) {
				t.Errorf("FirstResponse = %v, want %v", got.FirstResponse, tt.wantFirstResponse)
			}
			if !got.Resolution.Equal(tt.wantResolution) {
				t.Errorf("Resolution = %v, want %v", got.Resolution, tt.wantResolution)
			}
		})
	}
}

func TestGetStatusFirstResponse(t *testing.T) {
	met := true
	missed := false
	responded := testCreatedAt.Add(10 * time.Minute)

	tests := []struct {
		name   string
		mutate func(*models.Ticket)
		now    time.Time
		want   Phase
	}{
		{
			name: "pending well before deadline",
			now:  testCreatedAt.Add(5 * time.Minute),
			want: PhasePending,
		},
		{
			name: "warning inside the warning window",
			now:  testCreatedAt.Add(25 * time.Minute),
			want: PhaseWarning,
		},
		{
			name: "breached past deadline",
			now:  testCreatedAt.Add(31 * time.Minute),
			want: PhaseBreached,
		},
		{
			name: "met when responded in time",
			mutate: func(ticket *models.Ticket) {
				ticket.FirstResponseAt = &responded
				ticket.SLAFirstResponseMet = &met
			},
			now:  testCreatedAt.Add(2 * time.Hour),
			want: PhaseMet,
		},
		{
			name: "breached verdict sticks after late response",
			mutate: func(ticket *models.Ticket) {
				ticket.FirstResponseAt = &responded
				ticket.SLAFirstResponseMet = &missed
			},
			now:  testCreatedAt.Add(2 * time.Hour),
			want: PhaseBreached,
		},
		{
			name: "persisted breach flag wins before deadline",
			mutate: func(ticket *models.Ticket) {
				ticket.SLABreached = true
			},
			now:  testCreatedAt.Add(5 * time.Minute),
			want: PhaseBreached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := newTicket()
			if tt.mutate != nil {
				tt.mutate(ticket)
			}
			got := GetStatus(ticket, slaConfig(), nil, tt.now)
			if got.FirstResponse != tt.want {
				t.Errorf("FirstResponse phase = %s, want %s", got.FirstResponse, tt.want)
			}
		})
	}
}

func TestGetStatusResolution(t *testing.T) {
	closedInTime := testCreatedAt.Add(6 * time.Hour)
	closedLate := testCreatedAt.Add(9 * time.Hour)

	tests := []struct {
		name   string
		mutate func(*models.Ticket)
		now    time.Time
		want   Phase
	}{
		{
			name: "pending",
			now:  testCreatedAt.Add(time.Hour),
			want: PhasePending,
		},
		{
			name: "warning near the deadline",
			now:  testCreatedAt.Add(7 * time.Hour),
			want: PhaseWarning,
		},
		{
			name: "breached while still open",
			now:  testCreatedAt.Add(9 * time.Hour),
			want: PhaseBreached,
		},
		{
			name: "met when closed in time",
			mutate: func(ticket *models.Ticket) {
				ticket.ClosedAt = &closedInTime
			},
			now:  testCreatedAt.Add(10 * time.Hour),
			want: PhaseMet,
		},
		{
			name: "breached when closed late",
			mutate: func(ticket *models.Ticket) {
				ticket.ClosedAt = &closedLate
			},
			now:  testCreatedAt.Add(10 * time.Hour),
			want: PhaseBreached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := newTicket()
			if tt.mutate != nil {
				tt.mutate(ticket)
			}
			got := GetStatus(ticket, slaConfig(), nil, tt.now)
			if got.Resolution != tt.want {
				t.Errorf("Resolution phase = %s, want %s", got.Resolution, tt.want)
			}
		})
	}
}
