package memory

import "time"

// Flirt levels in escalation order. Stored as plain strings in the KV table.
const (
	FlirtOff        = "off"
	FlirtSoft       = "soft"
	FlirtRomantic   = "romantic"
	FlirtSuggestive = "suggestive"
	FlirtRoleplay   = "roleplay"
)

var allowedFlirtLevels = map[string]bool{
	FlirtOff:        true,
	FlirtSoft:       true,
	FlirtRomantic:   true,
	FlirtSuggestive: true,
	FlirtRoleplay:   true,
}

// Fact is one (subject, predicate, object) triple about a user.
type Fact struct {
	ID          int64
	UserID      string
	Subject     string
	Predicate   string
	Object      string
	DType       string
	Unit        string
	Confidence  float64
	Source      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastSeenAt  time.Time
	ExpiresAt   time.Time // zero means no expiry
}

// Episode is a compressed summary of a span of conversation.
type Episode struct {
	ID        string
	UserID    string
	Title     string
	Summary   string
	TurnStart int
	TurnEnd   int
	CreatedAt time.Time
}

// ChatMessage is one turn of dialogue history.
type ChatMessage struct {
	ID        int64
	UserID    string
	Role      string // "user" or "assistant"
	Content   string
	CreatedAt time.Time
}

// UserPrefs bundles the addressing preferences read most turns.
type UserPrefs struct {
	NicknameAllowed bool
	Nickname        string
	Formality       string
}

// DialogState is the short-lived intent slot used for follow-up turns.
type DialogState struct {
	Intent    string
	Payload   string
	Timestamp time.Time
}
