package assignment

import (
	"context"
	"math/rand"
	"sync"

	"log/slog"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
	"github.com/ticketeer-bot/ticketeer/ticketbot/database/repositories"
)

// Engine selects a staff member for a new or reopened ticket. Selection is
// stateless except for the per-guild round-robin pointer, which is owned by
// the engine instance and dies with the process.
type Engine struct {
	staff repositories.StaffRepository

	mu       sync.Mutex
	rotation map[string]int
	rng      *rand.Rand
}

func NewEngine(staff repositories.StaffRepository, seed int64) *Engine {
	return &Engine{
		staff:    staff,
		rotation: make(map[string]int),
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Assign loads the candidate pool and picks one member according to the
// guild's mode. A nil result with nil error means no candidate is available,
// which is a normal outcome: the caller leaves the ticket unassigned.
//
// The engine does not bump the selected member's load; the caller commits
// the selection with IncrementLoad once the ticket write succeeds.
func (e *Engine) Assign(ctx context.Context, cfg *models.GuildConfig) (*models.Staff, error) {
	candidates, err := e.staff.Assignable(ctx, cfg.GuildID)
	if err != nil {
		return nil, err
	}
	selected := e.Pick(cfg.GuildID, cfg.AutoAssignMode, candidates)
	if selected == nil {
		slog.Debug("No auto-assign candidate available",
			slog.String("guild_id", cfg.GuildID),
			slog.String("mode", string(cfg.AutoAssignMode)))
	}
	return selected, nil
}

// Pick applies the selection policy to an already-loaded candidate list.
func (e *Engine) Pick(guildID string, mode models.AssignMode, candidates []*models.Staff) *models.Staff {
	if len(candidates) == 0 {
		return nil
	}

	switch mode {
	case models.AssignModeLoadBased:
		return pickLoadBased(candidates)
	case models.AssignModeRatingBased:
		return pickRatingBased(candidates)
	case models.AssignModeRandom:
		e.mu.Lock()
		defer e.mu.Unlock()
		return candidates[e.rng.Intn(len(candidates))]
	default:
		return e.pickRoundRobin(guildID, candidates)
	}
}

// pickRoundRobin advances a cyclic pointer over the current candidate list.
// The pointer is an index into whatever order the candidate query returned,
// not an identity-based cursor: if the pool changes between calls the
// rotation may skip or repeat members. Known fragility, behavior preserved.
func (e *Engine) pickRoundRobin(guildID string, candidates []*models.Staff) *models.Staff {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.rotation[guildID] % len(candidates)
	e.rotation[guildID] = idx + 1
	return candidates[idx]
}

func pickLoadBased(candidates []*models.Staff) *models.Staff {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.CurrentLoad < best.CurrentLoad ||
			(c.CurrentLoad == best.CurrentLoad && c.AutoAssignWeight > best.AutoAssignWeight) {
			best = c
		}
	}
	return best
}

func pickRatingBased(candidates []*models.Staff) *models.Staff {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.AverageRating > best.AverageRating ||
			(c.AverageRating == best.AverageRating && c.TicketsClosed > best.TicketsClosed) {
			best = c
		}
	}
	return best
}

// IncrementLoad commits a selection to a ticket.
func (e *Engine) IncrementLoad(ctx context.Context, guildID, userID string) error {
	return e.staff.IncrementLoad(ctx, guildID, userID)
}

// ReleaseLoad frees one slot on ticket close, merge, unclaim or transfer.
func (e *Engine) ReleaseLoad(ctx context.Context, guildID, userID string) error {
	return e.staff.ReleaseLoad(ctx, guildID, userID)
}

// ResetDailyLoads zeroes every load in the guild and rewinds the rotation.
// Invoked once per day by the scheduler at local midnight.
func (e *Engine) ResetDailyLoads(ctx context.Context, guildID string) error {
	if err := e.staff.ResetLoads(ctx, guildID); err != nil {
		return err
	}
	e.ResetRotation(guildID)
	return nil
}

func (e *Engine) ResetRotation(guildID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rotation, guildID)
}
