// Package hours evaluates a guild's business-hours window. Pure calendar
// arithmetic, no I/O.
package hours

import (
	"fmt"
	"time"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
)

const (
	ReasonDay  = "day"
	ReasonTime = "time"
)

// Turkish weekday names, kept from the original deployment's locale.
var weekdayNames = map[time.Weekday]string{
	time.Sunday:    "Pazar",
	time.Monday:    "Pazartesi",
	time.Tuesday:   "Salı",
	time.Wednesday: "Çarşamba",
	time.Thursday:  "Perşembe",
	time.Friday:    "Cuma",
	time.Saturday:  "Cumartesi",
}

type Result struct {
	Open bool
	// Reason is "day" when today is not a business day, "time" when it is
	// but the clock is outside the window. Empty while open.
	Reason string
	// NextOpen is a display string for the next opening: "Bugün 09:00" when
	// the window opens later today, otherwise the weekday name.
	NextOpen string
}

// Evaluate reports whether the guild is inside its business-hours window at
// the given instant. Disabled business hours always report open.
func Evaluate(cfg *models.GuildConfig, now time.Time) Result {
	if !cfg.BusinessHoursEnabled {
		return Result{Open: true}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	now = now.In(loc)

	startMins, err := parseClock(cfg.BusinessHoursStart)
	if err != nil {
		return Result{Open: true}
	}
	endMins, err := parseClock(cfg.BusinessHoursEnd)
	if err != nil {
		return Result{Open: true}
	}

	if !isBusinessDay(cfg.BusinessDays, now.Weekday()) {
		return Result{
			Open:     false,
			Reason:   ReasonDay,
			NextOpen: fmt.Sprintf("%s %s", weekdayNames[nextBusinessDay(cfg.BusinessDays, now.Weekday())], cfg.BusinessHoursStart),
		}
	}

	nowMins := now.Hour()*60 + now.Minute()
	switch {
	case nowMins < startMins:
		return Result{
			Open:     false,
			Reason:   ReasonTime,
			NextOpen: fmt.Sprintf("Bugün %s", cfg.BusinessHoursStart),
		}
	case nowMins >= endMins:
		return Result{
			Open:     false,
			Reason:   ReasonTime,
			NextOpen: fmt.Sprintf("%s %s", weekdayNames[nextBusinessDay(cfg.BusinessDays, now.Weekday())], cfg.BusinessHoursStart),
		}
	default:
		return Result{Open: true}
	}
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func isBusinessDay(days []int, weekday time.Weekday) bool {
	for _, d := range days {
		if d == int(weekday) {
			return true
		}
	}
	return false
}

// nextBusinessDay walks forward from tomorrow and returns the first
// configured business day. Falls back to tomorrow when none is configured.
func nextBusinessDay(days []int, from time.Weekday) time.Weekday {
	for i := 1; i <= 7; i++ {
		candidate := time.Weekday((int(from) + i) % 7)
		if isBusinessDay(days, candidate) {
			return candidate
		}
	}
	return time.Weekday((int(from) + 1) % 7)
}
