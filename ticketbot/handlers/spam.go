package handlers

import (
	"sync"
	"time"
)

// SpamGuard rate-limits ticket creation per (guild, user). In-memory and
// process-lifetime, like the round-robin pointer: a restart forgets it.
type SpamGuard struct {
	mu     sync.Mutex
	events map[string][]time.Time
}

func NewSpamGuard() *SpamGuard {
	return &SpamGuard{events: make(map[string][]time.Time)}
}

// Allow records one attempt and reports whether the caller stays under
// threshold attempts per window.
func (g *SpamGuard) Allow(guildID, userID string, threshold int, window time.Duration) bool {
	if threshold <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := guildID + ":" + userID
	now := time.Now()
	cutoff := now.Add(-window)

	kept := g.events[key][:0]
	for _, t := range g.events[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	g.events[key] = kept

	return len(kept) <= threshold
}
