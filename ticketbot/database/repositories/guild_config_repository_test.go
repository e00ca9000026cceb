package repositories

import (
	"context"
	"testing"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ticketeer-bot/ticketeer/ticketbot/database/models"
)

func cachedConfigRepo(t *testing.T, cfg *models.GuildConfig) *guildConfigRepository {
	t.Helper()
	cache, err := lru.New(guildConfigCacheSize)
	if err != nil {
		t.Fatalf("lru.New() error = %v", err)
	}
	cache.Add(cfg.GuildID, guildConfigCacheEntry{cfg: cfg, expiresAt: time.Now().Add(time.Minute)})
	return &guildConfigRepository{cache: cache}
}

func TestGetOrCreateReturnsPrivateCopy(t *testing.T) {
	cached := models.NewGuildConfig("g1")
	cached.StaffRoles = []string{"mods", "admins"}
	repo := cachedConfigRepo(t, cached)

	first, err := repo.GetOrCreate(context.Background(), "g1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if first == cached {
		t.Fatal("GetOrCreate() returned the cached pointer, want a copy")
	}

	// In-place filter over the returned slice, the way the admin role
	// handler removes a staff role. This rewrites the slice's backing
	// array, so a shared array would corrupt the cached entry.
	kept := first.StaffRoles[:0]
	for _, role := range first.StaffRoles {
		if role != "mods" {
			kept = append(kept, role)
		}
	}
	first.StaffRoles = kept
	first.MaxTicketsPerUser = 99

	second, err := repo.GetOrCreate(context.Background(), "g1")
	if err != nil {
		t.Fatalf("GetOrCreate() second read error = %v", err)
	}
	if len(second.StaffRoles) != 2 || second.StaffRoles[0] != "mods" || second.StaffRoles[1] != "admins" {
		t.Errorf("staff roles after caller mutation = %v, want [mods admins]", second.StaffRoles)
	}
	if second.MaxTicketsPerUser != 3 {
		t.Errorf("MaxTicketsPerUser after caller mutation = %d, want 3", second.MaxTicketsPerUser)
	}
}

func TestGuildConfigCloneDetachesSlices(t *testing.T) {
	cfg := models.NewGuildConfig("g1")
	cfg.StaffRoles = []string{"a", "b"}

	clone := cfg.Clone()
	clone.StaffRoles[0] = "changed"
	clone.BusinessDays[0] = 7

	if cfg.StaffRoles[0] != "a" {
		t.Errorf("original StaffRoles = %v, want untouched", cfg.StaffRoles)
	}
	if cfg.BusinessDays[0] != 1 {
		t.Errorf("original BusinessDays = %v, want untouched", cfg.BusinessDays)
	}
}
