package dialogue

import (
	"hash/fnv"
	"strings"

	"github.com/ayalabs/aya/internal/memory"
)

// AddressForm picks how to call the user in a given turn. A permitted
// nickname wins; otherwise the display name, with an endearment only
// deep into a warm relationship.
func AddressForm(prefs memory.UserPrefs, displayName, tone string, affinity int) string {
	if prefs.NicknameAllowed && prefs.Nickname != "" {
		if affinity >= 12 && isRomanticTone(tone) {
			return prefs.Nickname + ", дорогой"
		}
		return prefs.Nickname
	}
	return displayName
}

func isRomanticTone(tone string) bool {
	switch tone {
	case "romantic", "suggestive", "roleplay":
		return true
	}
	return false
}

// ShouldAddress decides whether this reply names the user at all.
// Deterministic per message so retries stay stable.
func ShouldAddress(replyLen int, tone string, affinity int, seed string) bool {
	p := 0.15
	if replyLen > 80 {
		p += 0.15
	}
	if isRomanticTone(tone) {
		p += 0.2
	}
	p += float64(affinity) * 0.01
	if p < 0.05 {
		p = 0.05
	}
	if p > 0.90 {
		p = 0.90
	}
	h := fnv.New32a()
	h.Write([]byte(strings.TrimSpace(seed)))
	roll := float64(h.Sum32()%1000) / 1000.0
	return roll < p
}
