package memory

import (
	"database/sql"
	"fmt"
	"time"
)

// AddMessage appends one turn to the chat log.
func (s *Store) AddMessage(userID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO messages (user_id, role, content) VALUES (?, ?, ?)`,
		userID, role, content)
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

// RecentMessages returns the last n turns in chronological order.
func (s *Store) RecentMessages(userID string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, user_id, role, content, created_at
		FROM messages
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]ChatMessage, 0, limit)
	for rows.Next() {
		var m ChatMessage
		var created string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", created)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// reverse into chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ActiveUsers lists users who spoke since the given time. The nightly
// episode flush iterates this instead of the whole user table.
func (s *Store) ActiveUsers(since time.Time) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT user_id FROM messages WHERE created_at >= ?
	`, since.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, fmt.Errorf("active users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SearchMessages looks up old turns by content. FTS5 first, LIKE when
// the query produces no usable phrase or no match.
func (s *Store) SearchMessages(userID, query string, limit int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 5
	}
	if phrase := ftsPhrase(query, 8); phrase != "" {
		rows, err := s.db.Query(`
			SELECT m.id, m.user_id, m.role, m.content, m.created_at
			FROM messages m
			JOIN messages_fts f ON m.id = f.rowid
			WHERE messages_fts MATCH ? AND m.user_id = ?
			ORDER BY bm25(messages_fts)
			LIMIT ?
		`, phrase, userID, limit)
		if err == nil {
			defer rows.Close()
			msgs, scanErr := scanChatMessages(rows)
			if scanErr == nil && len(msgs) > 0 {
				return msgs, nil
			}
		}
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, role, content, created_at
		FROM messages
		WHERE user_id = ? AND content LIKE ?
		ORDER BY id DESC
		LIMIT ?
	`, userID, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()
	return scanChatMessages(rows)
}

func scanChatMessages(rows *sql.Rows) ([]ChatMessage, error) {
	msgs := make([]ChatMessage, 0)
	for rows.Next() {
		var m ChatMessage
		var created string
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", created)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}
