package world

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/ayalabs/aya/internal/config"
	"github.com/ayalabs/aya/internal/memory"
)

const cacheKey = "spb_world"

// Weather is the slice of the snapshot replies actually mention.
type Weather struct {
	TempC   *float64 `json:"temp_c"`
	IsRainy bool     `json:"is_rainy"`
}

// Snapshot is the ambient context a reply may lean on.
type Snapshot struct {
	Status       string   `json:"status,omitempty"`
	City         string   `json:"city"`
	TZ           string   `json:"tz,omitempty"`
	LocalTimeISO string   `json:"local_time_iso"`
	Weather      *Weather `json:"weather"`
}

// Fetcher produces a fresh snapshot from the outside world.
type Fetcher interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

// Service serves snapshots from the store-backed TTL cache, falling
// back to stale data and then to a degraded stub when the fetcher is
// unreachable.
type Service struct {
	store   *memory.Store
	fetcher Fetcher
	ttl     time.Duration
	city    string
	tz      string
	loc     *time.Location
}

func NewService(store *memory.Store, fetcher Fetcher, cfg *config.WorldConfig) *Service {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Printf("[world] unknown timezone %q, using UTC: %v", cfg.Timezone, err)
		loc = time.UTC
	}
	return &Service{
		store:   store,
		fetcher: fetcher,
		ttl:     time.Duration(cfg.TTLSec) * time.Second,
		city:    cfg.City,
		tz:      cfg.Timezone,
		loc:     loc,
	}
}

// LocalNow is the current time in the persona's city.
func (s *Service) LocalNow() time.Time {
	return time.Now().In(s.loc)
}

// Snapshot returns cached context when fresh, fetches otherwise, and
// degrades gracefully when both cache and fetcher fail.
func (s *Service) Snapshot(ctx context.Context) *Snapshot {
	if raw, ok := s.store.WorldCache(cacheKey, s.ttl); ok {
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err == nil {
			snap.LocalTimeISO = s.LocalNow().Format(time.RFC3339)
			return &snap
		}
	}
	snap, err := s.Refresh(ctx)
	if err == nil {
		return snap
	}
	log.Printf("[world] fetch failed: %v", err)
	if raw, ok := s.store.StaleWorldCache(cacheKey); ok {
		var stale Snapshot
		if jsonErr := json.Unmarshal(raw, &stale); jsonErr == nil {
			stale.LocalTimeISO = s.LocalNow().Format(time.RFC3339)
			return &stale
		}
	}
	return &Snapshot{
		Status:       "degraded",
		City:         s.city,
		TZ:           s.tz,
		LocalTimeISO: s.LocalNow().Format(time.RFC3339),
	}
}

// Refresh bypasses the TTL check, fetching and re-caching the snapshot.
// The cron world-refresh job calls this directly.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("world fetch: %w", err)
	}
	if snap.City == "" {
		snap.City = s.city
	}
	if snap.TZ == "" {
		snap.TZ = s.tz
	}
	snap.LocalTimeISO = s.LocalNow().Format(time.RFC3339)
	if raw, err := json.Marshal(snap); err == nil {
		if err := s.store.SetWorldCache(cacheKey, raw); err != nil {
			log.Printf("[world] cache write failed: %v", err)
		}
	}
	return snap, nil
}

// WeatherCondition collapses the snapshot into the tag policy rules
// match on: rainy, cold or clear.
func (s *Service) WeatherCondition(ctx context.Context) string {
	snap := s.Snapshot(ctx)
	if snap.Weather == nil {
		return "clear"
	}
	if snap.Weather.IsRainy {
		return "rainy"
	}
	if snap.Weather.TempC != nil && *snap.Weather.TempC <= 0 {
		return "cold"
	}
	return "clear"
}
