package dialogue

import (
	"fmt"
	"regexp"

	"github.com/ayalabs/aya/internal/memory"
)

// Flirt signals in descending detection priority. Control signals beat
// content markers so "стоп" always wins regardless of what else the
// message contains.
const (
	SignalStop       = "stop"
	SignalAgeMinor   = "age_minor"
	SignalAgeOK      = "age_ok"
	SignalConsent    = "consent"
	SignalOpen       = "open"
	SignalSofter     = "softer"
	SignalWarmer     = "warmer"
	SignalRoleplay   = "roleplay"
	SignalSuggestive = "suggestive"
	SignalExplicit   = "explicit"
)

var levelOrder = []string{
	memory.FlirtOff,
	memory.FlirtSoft,
	memory.FlirtRomantic,
	memory.FlirtSuggestive,
	memory.FlirtRoleplay,
}

func levelIndex(level string) int {
	for i, l := range levelOrder {
		if l == level {
			return i
		}
	}
	return 0
}

func stepUp(level, cap string) string {
	i := levelIndex(level) + 1
	if j := levelIndex(cap); i > j {
		i = j
	}
	return levelOrder[i]
}

// \w and \b in Go regexp are ASCII-only, so Cyrillic stems take
// explicit \p{L} suffixes instead of word-boundary shortcuts.
var (
	stopRe     = regexp.MustCompile(`(?i)(стоп|прекрати|хватит|без\s+флирта)`)
	consentRe  = regexp.MustCompile(`(?i)(соглас\p{L}*\s+на\s+флирт|флирт\s+можно)`)
	openRe     = regexp.MustCompile(`(?i)(флирт|пофлиртуем|можно\s+флиртовать|давай\s+флиртовать)`)
	softerRe   = regexp.MustCompile(`(?i)(мягче|помягче|чуть\s+ласковее|по[-\s]*доброму)`)
	warmerRe   = regexp.MustCompile(`(?i)(посмелее|чуть\s+смелее|погорячее|поигривее)`)
	roleplayRe = regexp.MustCompile(`(?i)(вирт\p{L}*|role[-\s]?play|роле(ва\p{L}*|плей)|сыграем\s*сценку|давай\s*сценку|ролевую\s*игру)`)

	// a bare age mention is not a flirt signal, only explicit adulthood
	// confirmations are
	ageOKRe = regexp.MustCompile(`(?i)(мне\s*18\s*\+` +
		`|мне\s*больше\s*18` +
		`|я\s*совершеннолет\p{L}+` +
		`|18\s*\+)`)
	ageMinorRe = regexp.MustCompile(`(?i)(мне\s*(?:[1-9]|1[0-7])\s*(?:год|года|лет)` +
		`|я\s*несовершеннолет\p{L}+)`)

	suggestiveRe = regexp.MustCompile(`(?i)(посмелее|погорячее|пошлее|грязненько|пошал\p{L}*` +
		`|раздень\s*(?:ся|меня)|снимай\s*(?:одежду|лифчик|трус\p{L}+)` +
		`|поцелу\p{L}*\s*ниже|прикоснись\s*ко\s*мне)`)
	explicitRe   = regexp.MustCompile(`(?i)(порно\p{L}*|xxx|nsfw|only\s*fans|онли\s*фанс|pornhub|xvideos|hentai|rule34)`)
	adultEmojiRe = regexp.MustCompile(`[🍑🍆💦😈🔞👅👙👄]`)
)

// DetectFlirtSignal classifies a message into one flirt-control signal,
// or "" when the message carries none.
func DetectFlirtSignal(text string) string {
	if text == "" {
		return ""
	}
	switch {
	case stopRe.MatchString(text):
		return SignalStop
	case ageMinorRe.MatchString(text):
		return SignalAgeMinor
	case ageOKRe.MatchString(text):
		return SignalAgeOK
	case consentRe.MatchString(text):
		return SignalConsent
	case openRe.MatchString(text):
		return SignalOpen
	case softerRe.MatchString(text):
		return SignalSofter
	case warmerRe.MatchString(text):
		return SignalWarmer
	case roleplayRe.MatchString(text):
		return SignalRoleplay
	case suggestiveRe.MatchString(text) || adultEmojiRe.MatchString(text):
		return SignalSuggestive
	case explicitRe.MatchString(text):
		return SignalExplicit
	}
	return ""
}

// ApplyFlirtSignal advances the persisted flirt state and returns the
// deterministic reply for the transition. No model call is involved:
// boundary handling must not depend on the LLM being up or honest.
//
// Invariants: stop and age_minor always land in off with consent
// revoked; roleplay requires confirmed age AND consent; nothing ever
// escalates past suggestive except an explicit roleplay entry.
func ApplyFlirtSignal(store *memory.Store, userID, signal string) (string, error) {
	if signal == "" {
		return "", nil
	}
	current := store.FlirtLevel(userID)

	switch signal {
	case SignalStop:
		if err := store.SetFlirtConsent(userID, false); err != nil {
			return "", err
		}
		if err := store.SetFlirtLevel(userID, memory.FlirtOff); err != nil {
			return "", err
		}
		return "Поняла. Переключаюсь на нейтральный тон.", nil

	case SignalAgeMinor:
		if err := store.SetFlirtConsent(userID, false); err != nil {
			return "", err
		}
		if err := store.SetFlirtLevel(userID, memory.FlirtOff); err != nil {
			return "", err
		}
		return "Извини, но я не могу продолжать эту тему. Давай о чём-то другом.", nil

	case SignalAgeOK:
		if err := store.SetAdultConfirmed(userID, true); err != nil {
			return "", err
		}
		// consent stays as-is, the user gives it separately
		return "Хорошо, поняла, что ты взрослый. Если хочешь, можем продолжить мягко.", nil

	case SignalOpen, SignalConsent:
		if err := store.SetFlirtConsent(userID, true); err != nil {
			return "", err
		}
		if err := store.SetFlirtLevel(userID, memory.FlirtSoft); err != nil {
			return "", err
		}
		return "Окей, буду нежнее и теплее.", nil

	case SignalSofter:
		if err := store.SetFlirtLevel(userID, memory.FlirtSoft); err != nil {
			return "", err
		}
		return "Сделаю мягче.", nil

	case SignalWarmer:
		next := stepUp(current, memory.FlirtSuggestive)
		if err := store.SetFlirtLevel(userID, next); err != nil {
			return "", err
		}
		return "Чуть смелее — но деликатно.", nil

	case SignalSuggestive:
		if err := store.SetFlirtLevel(userID, memory.FlirtSuggestive); err != nil {
			return "", err
		}
		return "Понимаю намёк. Давай останемся деликатными.", nil

	case SignalRoleplay:
		adultOK := store.AdultConfirmed(userID)
		consent := store.FlirtConsent(userID)
		if adultOK && consent {
			if err := store.SetFlirtLevel(userID, memory.FlirtRoleplay); err != nil {
				return "", err
			}
			return "Хорошо, сыграем сценку. Я буду бережной и без лишней детализации.", nil
		}
		// redirect without killing the conversation
		target := current
		if current == memory.FlirtOff {
			target = memory.FlirtRomantic
		}
		if err := store.SetFlirtLevel(userID, target); err != nil {
			return "", err
		}
		if !adultOK {
			return "Сценку сможем позже — сначала подтверди возраст. Пока давай мягче.", nil
		}
		return "Сценку только по взаимному согласию. Могу быть романтичнее.", nil

	case SignalExplicit:
		if err := store.SetFlirtConsent(userID, true); err != nil {
			return "", err
		}
		if err := store.SetFlirtLevel(userID, memory.FlirtSuggestive); err != nil {
			return "", err
		}
		return "Давай оставим без подробностей и обойдёмся намёками.", nil
	}

	return "", fmt.Errorf("unknown flirt signal %q", signal)
}
