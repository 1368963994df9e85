package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AddEpisode stores a summarized span of conversation and indexes it for
// full-text recall. Returns the episode id.
func (s *Store) AddEpisode(userID, title, summary string, turnStart, turnEnd int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	if _, err := s.db.Exec(`
		INSERT INTO mem_episodes (id, user_id, title, summary, turn_start, turn_end)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, userID, title, summary, turnStart, turnEnd); err != nil {
		return "", fmt.Errorf("add episode: %w", err)
	}
	if _, err := s.db.Exec(`
		INSERT INTO mem_episodes_fts (title, summary, user_id, episode_id)
		VALUES (?, ?, ?, ?)
	`, title, summary, userID, id); err != nil {
		return "", fmt.Errorf("index episode: %w", err)
	}
	return id, nil
}

// SearchEpisodes recalls episodes matching the query. FTS5 phrase match
// first, then a LIKE scan when the index finds nothing.
func (s *Store) SearchEpisodes(userID, query string, limit int) ([]Episode, error) {
	if limit <= 0 {
		limit = 3
	}
	if phrase := ftsPhrase(query, 8); phrase != "" {
		rows, err := s.db.Query(`
			SELECT episode_id, title, summary
			FROM mem_episodes_fts
			WHERE mem_episodes_fts MATCH ? AND user_id = ?
			ORDER BY bm25(mem_episodes_fts)
			LIMIT ?
		`, phrase, userID, limit)
		if err == nil {
			eps := make([]Episode, 0, limit)
			for rows.Next() {
				var e Episode
				if err := rows.Scan(&e.ID, &e.Title, &e.Summary); err != nil {
					rows.Close()
					return nil, fmt.Errorf("scan episode: %w", err)
				}
				e.UserID = userID
				eps = append(eps, e)
			}
			rows.Close()
			if len(eps) > 0 {
				return eps, nil
			}
		}
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, title, summary, turn_start, turn_end, created_at
		FROM mem_episodes
		WHERE user_id = ? AND (title LIKE ? OR summary LIKE ?)
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, "%"+query+"%", "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search episodes: %w", err)
	}
	defer rows.Close()

	eps := make([]Episode, 0, limit)
	for rows.Next() {
		var e Episode
		var created string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Summary, &e.TurnStart, &e.TurnEnd, &created); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		e.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", created)
		eps = append(eps, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return eps, nil
}

// RecentEpisodes returns the newest episodes for a user.
func (s *Store) RecentEpisodes(userID string, limit int) ([]Episode, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, title, summary, turn_start, turn_end, created_at
		FROM mem_episodes
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent episodes: %w", err)
	}
	defer rows.Close()

	eps := make([]Episode, 0, limit)
	for rows.Next() {
		var e Episode
		var created string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Summary, &e.TurnStart, &e.TurnEnd, &created); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		e.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", created)
		eps = append(eps, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return eps, nil
}
