package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// Store owns the sqlite handle shared by the KV repo, facts, history,
// episodes and the world cache. Writes are serialized with a mutex.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT UNIQUE NOT NULL,
			username TEXT,
			first_name TEXT,
			last_name TEXT,
			locale TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS memories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE(user_id, kind, key)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_user_time ON messages(user_id, created_at)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
			content,
			content='messages',
			content_rowid='id',
			tokenize='unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
			INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
			INSERT INTO messages_fts(messages_fts, rowid, content) VALUES('delete', old.id, old.content);
		END`,
		`CREATE TABLE IF NOT EXISTS mem_facts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT 'user',
			predicate TEXT NOT NULL,
			object TEXT NOT NULL,
			dtype TEXT,
			unit TEXT,
			confidence REAL NOT NULL DEFAULT 0.7,
			source TEXT,
			created_at REAL NOT NULL,
			updated_at REAL NOT NULL,
			last_seen_at REAL NOT NULL,
			expires_at REAL,
			UNIQUE(user_id, subject, predicate, object)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_user_pred ON mem_facts(user_id, predicate)`,
		`CREATE TABLE IF NOT EXISTS mem_episodes (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			summary TEXT NOT NULL,
			turn_start INTEGER NOT NULL DEFAULT 0,
			turn_end INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS mem_episodes_fts USING fts5(
			title,
			summary,
			user_id UNINDEXED,
			episode_id UNINDEXED,
			tokenize='unicode61'
		)`,
		`CREATE TABLE IF NOT EXISTS world_state (
			key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at REAL NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// migrate upgrades databases created before a column existed. ALTER TABLE
// ADD COLUMN is the only migration shape sqlite supports without a rebuild.
func (s *Store) migrate() error {
	migrations := []struct {
		table, column, ddl, backfill string
	}{
		{"users", "updated_at",
			`ALTER TABLE users ADD COLUMN updated_at TEXT`,
			`UPDATE users SET updated_at = datetime('now') WHERE updated_at IS NULL`},
		{"memories", "updated_at",
			`ALTER TABLE memories ADD COLUMN updated_at TEXT`,
			`UPDATE memories SET updated_at = datetime('now') WHERE updated_at IS NULL`},
		{"world_state", "updated_at",
			`ALTER TABLE world_state ADD COLUMN updated_at REAL`,
			`UPDATE world_state SET updated_at = strftime('%s','now') WHERE updated_at IS NULL`},
	}

	for _, m := range migrations {
		has, err := s.hasColumn(m.table, m.column)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := s.db.Exec(m.ddl); err != nil {
			return fmt.Errorf("migrate %s.%s: %w", m.table, m.column, err)
		}
		if _, err := s.db.Exec(m.backfill); err != nil {
			return fmt.Errorf("backfill %s.%s: %w", m.table, m.column, err)
		}
	}
	return nil
}

func (s *Store) hasColumn(table, column string) (bool, error) {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, fmt.Errorf("scan table info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// EnsureUser upserts the user profile row from the channel metadata.
func (s *Store) EnsureUser(userID, username, firstName, lastName, locale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO users (user_id, username, first_name, last_name, locale)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			locale = excluded.locale,
			updated_at = datetime('now')
	`, userID, username, firstName, lastName, locale)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func ftsPhrase(text string, maxTokens int) string {
	var toks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		if isWordRune(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	if len(toks) == 0 {
		return ""
	}
	if len(toks) > maxTokens {
		toks = toks[:maxTokens]
	}
	phrase := strings.ReplaceAll(strings.Join(toks, " "), `"`, `""`)
	return `"` + phrase + `"`
}

func isWordRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r >= 'а' && r <= 'я', r >= 'А' && r <= 'Я', r == 'ё', r == 'Ё':
		return true
	}
	return false
}

func boolToStr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
