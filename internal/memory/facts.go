package memory

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// FactInput is one triple about to be stored.
type FactInput struct {
	Subject    string
	Predicate  string
	Object     string
	DType      string
	Unit       string
	Confidence float64
	Source     string
	TTL        time.Duration // zero means the fact never expires
}

// UpsertFact inserts or refreshes a triple. On re-assertion the stored
// confidence only ever goes up, and last_seen_at is refreshed so the
// recency weighting in TopFacts sees the fact as current.
func (s *Store) UpsertFact(userID string, f FactInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	subject := strings.TrimSpace(f.Subject)
	if subject == "" {
		subject = "user"
	}
	if f.Confidence <= 0 {
		f.Confidence = 0.7
	}
	source := f.Source
	if source == "" {
		source = "chat"
	}
	now := float64(time.Now().UnixMilli()) / 1000.0
	var expires any
	if f.TTL > 0 {
		expires = now + f.TTL.Seconds()
	}

	_, err := s.db.Exec(`
		INSERT INTO mem_facts
			(user_id, subject, predicate, object, dtype, unit, confidence, source,
			 created_at, updated_at, last_seen_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, subject, predicate, object) DO UPDATE SET
			confidence = CASE WHEN confidence > excluded.confidence THEN confidence ELSE excluded.confidence END,
			dtype = COALESCE(NULLIF(excluded.dtype, ''), dtype),
			unit = COALESCE(NULLIF(excluded.unit, ''), unit),
			source = COALESCE(NULLIF(excluded.source, ''), source),
			updated_at = excluded.updated_at,
			last_seen_at = excluded.last_seen_at,
			expires_at = COALESCE(excluded.expires_at, expires_at)
	`, userID, subject, f.Predicate, f.Object, f.DType, f.Unit, f.Confidence, source,
		now, now, now, expires)
	if err != nil {
		return fmt.Errorf("upsert fact: %w", err)
	}
	return nil
}

// Facts returns a user's triples, optionally filtered by predicate,
// strongest and freshest first.
func (s *Store) Facts(userID string, predicates ...string) ([]Fact, error) {
	q := `SELECT id, user_id, subject, predicate, object,
	             COALESCE(dtype, ''), COALESCE(unit, ''), confidence, COALESCE(source, ''),
	             created_at, updated_at, last_seen_at, COALESCE(expires_at, 0)
	      FROM mem_facts WHERE user_id = ?`
	args := []any{userID}
	if len(predicates) > 0 {
		q += ` AND predicate IN (` + placeholders(len(predicates)) + `)`
		for _, p := range predicates {
			args = append(args, p)
		}
	}
	q += ` ORDER BY confidence DESC, last_seen_at DESC`

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

// TopFacts ranks by confidence weighted with recency: a fact last seen
// n days ago contributes confidence * 1/(1+n).
func (s *Store) TopFacts(userID string, limit int) ([]Fact, error) {
	if limit <= 0 {
		limit = 12
	}
	facts, err := s.Facts(userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	score := func(f Fact) float64 {
		days := now.Sub(f.LastSeenAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		conf := f.Confidence
		if conf <= 0 {
			conf = 0.5
		}
		return conf / (1 + days)
	}
	sort.SliceStable(facts, func(i, j int) bool {
		return score(facts[i]) > score(facts[j])
	})
	if len(facts) > limit {
		facts = facts[:limit]
	}
	return facts, nil
}

// PurgeExpiredFacts deletes facts past their TTL. Returns the count removed.
func (s *Store) PurgeExpiredFacts() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := float64(time.Now().UnixMilli()) / 1000.0
	res, err := s.db.Exec(`DELETE FROM mem_facts WHERE expires_at IS NOT NULL AND expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("purge facts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func scanFacts(rows *sql.Rows) ([]Fact, error) {
	result := make([]Fact, 0)
	for rows.Next() {
		var f Fact
		var created, updated, seen, expires float64
		if err := rows.Scan(
			&f.ID, &f.UserID, &f.Subject, &f.Predicate, &f.Object,
			&f.DType, &f.Unit, &f.Confidence, &f.Source,
			&created, &updated, &seen, &expires,
		); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.CreatedAt = unixFloat(created)
		f.UpdatedAt = unixFloat(updated)
		f.LastSeenAt = unixFloat(seen)
		if expires > 0 {
			f.ExpiresAt = unixFloat(expires)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return result, nil
}

func unixFloat(sec float64) time.Time {
	return time.UnixMilli(int64(sec * 1000))
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ",")
}
