package memory

import (
	"fmt"
	"time"
)

// WorldCache returns the cached payload for key if it is younger than
// ttl. The bool reports a fresh hit.
func (s *Store) WorldCache(key string, ttl time.Duration) ([]byte, bool) {
	var payload string
	var updatedAt float64
	err := s.db.QueryRow(
		`SELECT payload, updated_at FROM world_state WHERE key = ?`, key,
	).Scan(&payload, &updatedAt)
	if err != nil {
		return nil, false
	}
	age := time.Since(time.Unix(int64(updatedAt), 0))
	if age > ttl {
		return nil, false
	}
	return []byte(payload), true
}

// StaleWorldCache returns the payload regardless of age, for fallback
// when a refresh fails.
func (s *Store) StaleWorldCache(key string) ([]byte, bool) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM world_state WHERE key = ?`, key,
	).Scan(&payload)
	if err != nil {
		return nil, false
	}
	return []byte(payload), true
}

// SetWorldCache stores the payload and stamps it now.
func (s *Store) SetWorldCache(key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`REPLACE INTO world_state (key, payload, updated_at) VALUES (?, ?, ?)`,
		key, string(payload), float64(time.Now().UnixMilli())/1000.0,
	)
	if err != nil {
		return fmt.Errorf("set world cache: %w", err)
	}
	return nil
}
