// Package sla computes response and resolution deadlines and flags breaches.
package sla

import (
	"time"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
)

// Warning windows before each deadline. Fixed, not guild-configurable.
const (
	FirstResponseWarning = 10 * time.Minute
	ResolutionWarning    = 2 * time.Hour
)

// Deadlines are the effective SLA targets for one ticket.
type Deadlines struct {
	FirstResponse time.Time
	Resolution    time.Time
}

// CalculateDeadlines resolves the effective SLA windows for a ticket.
// Category overrides beat guild settings; a zero override inherits. Pure
// function, no I/O.
func CalculateDeadlines(ticket *models.Ticket, cfg *models.GuildConfig, category *models.Category) Deadlines {
	firstResponseMins := cfg.SLAFirstResponseMins
	resolutionHours := cfg.SLAResolutionHours

	if category != nil {
		if category.SLAFirstResponseMins > 0 {
			firstResponseMins = category.SLAFirstResponseMins
		}
		if category.SLAResolutionHours > 0 {
			resolutionHours = category.SLAResolutionHours
		}
	}

	if firstResponseMins <= 0 {
		firstResponseMins = 60
	}
	if resolutionHours <= 0 {
		resolutionHours = 24
	}

	return Deadlines{
		FirstResponse: ticket.CreatedAt.Add(time.Duration(firstResponseMins) * time.Minute),
		Resolution:    ticket.CreatedAt.Add(time.Duration(resolutionHours) * time.Hour),
	}
}

// Phase classifies one SLA target for display.
type Phase string

const (
	PhasePending  Phase = "pending"
	PhaseWarning  Phase = "warning"
	PhaseMet      Phase = "met"
	PhaseBreached Phase = "breached"
)

// Status is the on-demand SLA projection for one ticket.
type Status struct {
	FirstResponse         Phase
	Resolution            Phase
	FirstResponseDeadline time.Time
	ResolutionDeadline    time.Time
}

// GetStatus classifies both SLA targets at the given instant. Pure
// projection, no I/O.
func GetStatus(ticket *models.Ticket, cfg *models.GuildConfig, category *models.Category, now time.Time) Status {
	deadlines := CalculateDeadlines(ticket, cfg, category)
	status := Status{
		FirstResponseDeadline: deadlines.FirstResponse,
		ResolutionDeadline:    deadlines.Resolution,
	}

	switch {
	case ticket.FirstResponseAt != nil:
		if ticket.SLAFirstResponseMet != nil && !*ticket.SLAFirstResponseMet {
			status.FirstResponse = PhaseBreached
		} else {
			status.FirstResponse = PhaseMet
		}
	case ticket.SLABreached || now.After(deadlines.FirstResponse):
		status.FirstResponse = PhaseBreached
	case deadlines.FirstResponse.Sub(now) <= FirstResponseWarning:
		status.FirstResponse = PhaseWarning
	default:
		status.FirstResponse = PhasePending
	}

	switch {
	case ticket.ClosedAt != nil:
		if ticket.ResolutionBreached || ticket.ClosedAt.After(deadlines.Resolution) {
			status.Resolution = PhaseBreached
		} else {
			status.Resolution = PhaseMet
		}
	case ticket.ResolutionBreached || now.After(deadlines.Resolution):
		status.Resolution = PhaseBreached
	case deadlines.Resolution.Sub(now) <= ResolutionWarning:
		status.Resolution = PhaseWarning
	default:
		status.Resolution = PhasePending
	}

	return status
}
