package memory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Words the name extractor is known to misfire on.
var suspiciousNames = map[string]bool{
	"слушаю":    true,
	"запомнила": true,
	"сегодня":   true,
	"дата":      true,
	"время":     true,
	"привет":    true,
	"ок":        true,
	"ага":       true,
}

func (s *Store) SetKV(userID, kind, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO memories (user_id, kind, key, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, kind, key) DO UPDATE SET
			value = excluded.value,
			updated_at = datetime('now')
	`, userID, kind, key, value)
	if err != nil {
		return fmt.Errorf("set kv %s/%s: %w", kind, key, err)
	}
	return nil
}

// GetKV returns the stored value, or "" when the key is absent.
func (s *Store) GetKV(userID, kind, key string) (string, error) {
	row := s.db.QueryRow(`SELECT value FROM memories WHERE user_id = ? AND kind = ? AND key = ?`,
		userID, kind, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get kv %s/%s: %w", kind, key, err)
	}
	return value, nil
}

func (s *Store) DelKV(userID, kind, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM memories WHERE user_id = ? AND kind = ? AND key = ?`,
		userID, kind, key)
	if err != nil {
		return fmt.Errorf("del kv %s/%s: %w", kind, key, err)
	}
	return nil
}

// ResetUser wipes everything stored for one user. Used by /start.
func (s *Store) ResetUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range []string{
		`DELETE FROM memories WHERE user_id = ?`,
		`DELETE FROM messages WHERE user_id = ?`,
		`DELETE FROM mem_facts WHERE user_id = ?`,
		`DELETE FROM mem_episodes WHERE user_id = ?`,
		`DELETE FROM mem_episodes_fts WHERE user_id = ?`,
	} {
		if _, err := s.db.Exec(q, userID); err != nil {
			return fmt.Errorf("reset user: %w", err)
		}
	}
	return nil
}

// --- Intimacy / flirt state ---

func (s *Store) AdultConfirmed(userID string) bool {
	v, _ := s.GetKV(userID, "intimacy", "adult_confirmed")
	return v == "1"
}

func (s *Store) SetAdultConfirmed(userID string, ok bool) error {
	return s.SetKV(userID, "intimacy", "adult_confirmed", boolToStr(ok))
}

func (s *Store) FlirtConsent(userID string) bool {
	v, _ := s.GetKV(userID, "intimacy", "flirt_consent")
	return v == "1"
}

func (s *Store) SetFlirtConsent(userID string, ok bool) error {
	return s.SetKV(userID, "intimacy", "flirt_consent", boolToStr(ok))
}

func (s *Store) FlirtLevel(userID string) string {
	v, _ := s.GetKV(userID, "flirt", "level")
	if !allowedFlirtLevels[v] {
		return FlirtOff
	}
	return v
}

func (s *Store) SetFlirtLevel(userID, level string) error {
	level = strings.ToLower(strings.TrimSpace(level))
	if !allowedFlirtLevels[level] {
		level = FlirtOff
	}
	return s.SetKV(userID, "flirt", "level", level)
}

// --- Session presence / greetings ---

func (s *Store) TouchSeen(userID string, at time.Time) error {
	return s.SetKV(userID, "session", "last_seen", at.Format(time.RFC3339))
}

func (s *Store) LastSeen(userID string) (time.Time, bool) {
	v, _ := s.GetKV(userID, "session", "last_seen")
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func (s *Store) SetLastBotGreetAt(userID string, at time.Time) error {
	return s.SetKV(userID, "session", "last_bot_greet_at", at.Format(time.RFC3339))
}

func (s *Store) LastBotGreetAt(userID string) (time.Time, bool) {
	v, _ := s.GetKV(userID, "session", "last_bot_greet_at")
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func dateKey(t time.Time) string {
	return t.Format("20060102")
}

func (s *Store) DailyGreetCount(userID string, day time.Time) int {
	v, _ := s.GetKV(userID, "session", "greet_count_"+dateKey(day))
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func (s *Store) IncDailyGreet(userID string, day time.Time) error {
	n := s.DailyGreetCount(userID, day)
	return s.SetKV(userID, "session", "greet_count_"+dateKey(day), strconv.Itoa(n+1))
}

// --- Affinity ---

func (s *Store) Affinity(userID string) int {
	v, _ := s.GetKV(userID, "dialog", "affinity")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// SetAffinity clamps to the full -100..100 range.
func (s *Store) SetAffinity(userID string, value int) error {
	return s.SetKV(userID, "dialog", "affinity", strconv.Itoa(clampInt(value, -100, 100)))
}

// BumpAffinity applies a per-turn delta. The working band is much
// narrower than the storage range so single turns cannot swing mood.
func (s *Store) BumpAffinity(userID string, delta int) error {
	next := clampInt(s.Affinity(userID)+delta, -5, 20)
	return s.SetKV(userID, "dialog", "affinity", strconv.Itoa(next))
}

// --- User profile / addressing ---

// DisplayName returns the stored name, filtering out values the
// extractor is known to misparse.
func (s *Store) DisplayName(userID string) string {
	v, _ := s.GetKV(userID, "user", "display_name")
	v = strings.TrimSpace(v)
	if v == "" || suspiciousNames[strings.ToLower(v)] {
		return ""
	}
	if n := len([]rune(v)); n < 2 || n > 24 {
		return ""
	}
	return v
}

func (s *Store) SetDisplayName(userID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return s.DelKV(userID, "user", "display_name")
	}
	if suspiciousNames[strings.ToLower(name)] {
		return nil
	}
	if n := len([]rune(name)); n < 2 || n > 24 {
		return nil
	}
	return s.SetKV(userID, "user", "display_name", name)
}

func (s *Store) Prefs(userID string) UserPrefs {
	allowed, _ := s.GetKV(userID, "user", "nickname_allowed")
	nick, _ := s.GetKV(userID, "user", "nickname")
	formality, _ := s.GetKV(userID, "user", "formality")

	nick = strings.TrimSpace(nick)
	if suspiciousNames[strings.ToLower(nick)] {
		nick = ""
	}
	if formality == "" {
		formality = "neutral"
	}
	return UserPrefs{
		NicknameAllowed: allowed == "1",
		Nickname:        nick,
		Formality:       formality,
	}
}

func (s *Store) SetNicknameAllowed(userID string, allowed bool) error {
	return s.SetKV(userID, "user", "nickname_allowed", boolToStr(allowed))
}

func (s *Store) SetNickname(userID, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return s.DelKV(userID, "user", "nickname")
	}
	return s.SetKV(userID, "user", "nickname", nickname)
}

func (s *Store) SetFormality(userID, formality string) error {
	return s.SetKV(userID, "user", "formality", formality)
}

// --- Set-valued facts (likes, topics, ...) ---

func (s *Store) AddToSetFact(userID, key, value string) error {
	items := s.SetFact(userID, key)
	for _, it := range items {
		if it == value {
			return nil
		}
	}
	items = append(items, value)
	sort.Strings(items)
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal set fact: %w", err)
	}
	return s.SetKV(userID, "facts", key, string(data))
}

func (s *Store) SetFact(userID, key string) []string {
	v, _ := s.GetKV(userID, "facts", key)
	if v == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(v), &items); err != nil {
		return nil
	}
	return items
}

func (s *Store) RemoveSetFact(userID, key, value string) error {
	if value == "" {
		return s.DelKV(userID, "facts", key)
	}
	items := s.SetFact(userID, key)
	out := items[:0]
	for _, it := range items {
		if it != value {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return s.DelKV(userID, "facts", key)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal set fact: %w", err)
	}
	return s.SetKV(userID, "facts", key, string(data))
}

// --- Dialog state / topic ---

func (s *Store) SetDialogState(userID, intent, payload string, at time.Time) error {
	if err := s.SetKV(userID, "dialog", "last_intent", intent); err != nil {
		return err
	}
	if err := s.SetKV(userID, "dialog", "last_payload", payload); err != nil {
		return err
	}
	return s.SetKV(userID, "dialog", "last_intent_ts", at.Format(time.RFC3339))
}

func (s *Store) GetDialogState(userID string) DialogState {
	intent, _ := s.GetKV(userID, "dialog", "last_intent")
	payload, _ := s.GetKV(userID, "dialog", "last_payload")
	tsRaw, _ := s.GetKV(userID, "dialog", "last_intent_ts")
	ts, _ := time.Parse(time.RFC3339, tsRaw)
	return DialogState{Intent: intent, Payload: payload, Timestamp: ts}
}

// FreshDialogState returns the state only when it is younger than window.
func (s *Store) FreshDialogState(userID string, now time.Time, window time.Duration) (DialogState, bool) {
	st := s.GetDialogState(userID)
	if st.Intent == "" || st.Timestamp.IsZero() {
		return DialogState{}, false
	}
	if now.Sub(st.Timestamp) > window {
		return DialogState{}, false
	}
	return st, true
}

func (s *Store) ClearDialogState(userID string) error {
	for _, key := range []string{"last_intent", "last_payload", "last_intent_ts"} {
		if err := s.DelKV(userID, "dialog", key); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SetTopic(userID, topic string) error {
	return s.SetKV(userID, "dialog", "topic", topic)
}

func (s *Store) Topic(userID string) string {
	v, _ := s.GetKV(userID, "dialog", "topic")
	return v
}

// --- Turn counter ---

func (s *Store) IncTurn(userID string) (int, error) {
	n := s.Turn(userID) + 1
	if err := s.SetKV(userID, "dialog", "turn", strconv.Itoa(n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Turn(userID string) int {
	v, _ := s.GetKV(userID, "dialog", "turn")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
