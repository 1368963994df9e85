package dialogue

import (
	"regexp"
	"strings"
)

// Sanitizer cleans a reply before it reaches the user: stage directions
// become emoji or disappear, sentence and imagery budgets are enforced
// on model drafts, clichés and unauthorized questions are removed, and
// greetings are stripped when the gate says no.
type Sanitizer struct {
	RoleplayMode  bool
	FlirtConsent  bool
	GreetingAllow bool
	GreetingKind  string
	PersonaName   string

	// EnforceCaps applies the cadence budgets below. Template replies are
	// plan-constrained by construction, so only model drafts set it.
	EnforceCaps bool
	ClauseCap   int
	ImageryCap  int

	DropQuestion    bool // asking was not authorized this turn
	ForceNoQuestion bool // both previous replies already ended with a question
}

var (
	parensDirRe = regexp.MustCompile(`\(([^)]{0,80})\)`)
	starsDirRe  = regexp.MustCompile(`\*[^*]{0,80}\*`)

	suggestiveHintRe = regexp.MustCompile(`(?i)продолж[^.!?]{0,30}(мягк|нежн|романтич)\w*`)

	sentenceSplitRe = regexp.MustCompile(`[^.!?…]+[.!?…]*`)
	imageryClause   = regexp.MustCompile(`(?i),?\s*(как\s+будто|будто\s+бы|будто|словно)[^,.!?]*`)

	trailingQuestionRe = regexp.MustCompile(`\s*\?+\s*$`)
	danglingAskRe      = regexp.MustCompile(`(?i),\s*(да|правда|верно|хорошо)\s*\?+\s*$`)

	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
	spacePunctRe  = regexp.MustCompile(`\s+([,.!?…:;])`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

var stageEmoji = []struct {
	marker string
	emoji  string
}{
	{"смеётся", "😄"},
	{"хихик", "😄"},
	{"улыба", "🙂"},
	{"вздыхает", "😮‍💨"},
}

// thirdPersonVerbs maps the narration verbs the model slips into when it
// talks about the persona in third person.
var thirdPersonVerbs = map[string]string{
	"улыбается": "улыбаюсь",
	"смеётся":   "смеюсь",
	"думает":    "думаю",
	"хочет":     "хочу",
	"вздыхает":  "вздыхаю",
	"слушает":   "слушаю",
}

// Clean applies the full pipeline in a fixed order.
func (s Sanitizer) Clean(text string) string {
	out := text

	if !s.RoleplayMode {
		out = parensDirRe.ReplaceAllStringFunc(out, replaceStageDirection)
		out = starsDirRe.ReplaceAllString(out, " ")
		out = s.firstPerson(out)
	}

	if s.EnforceCaps {
		out = clampSentences(out, s.ClauseCap)
		out = capImagery(out, s.ImageryCap)
	}

	out = stripCliches(out)

	if !s.FlirtConsent {
		out = suggestiveHintRe.ReplaceAllString(out, "можем продолжить, если интересно")
	}

	if !s.GreetingAllow && IsGreeting(out) {
		stripped := StripGreeting(out)
		if s.GreetingKind == GreetAck && stripped != "" {
			out = "Да-да. " + stripped
		} else if stripped != "" {
			out = stripped
		}
	}

	out = tidy(out)

	if s.DropQuestion || s.ForceNoQuestion {
		out = demoteQuestion(out)
	}
	return out
}

// replaceStageDirection maps a parenthesized stage cue to an emoji when
// the cue is recognizable, otherwise drops it.
func replaceStageDirection(match string) string {
	inner := strings.ToLower(strings.Trim(match, "()"))
	for _, se := range stageEmoji {
		if strings.Contains(inner, se.marker) {
			return se.emoji
		}
	}
	return " "
}

// firstPerson rewrites "Ая улыбается" style narration into first person.
func (s Sanitizer) firstPerson(text string) string {
	if s.PersonaName == "" {
		return text
	}
	re, err := regexp.Compile(`(?i)(^|[\s—])` + regexp.QuoteMeta(s.PersonaName) + `\s+([\p{L}ё]+)`)
	if err != nil {
		return text
	}
	return re.ReplaceAllStringFunc(text, func(m string) string {
		sub := re.FindStringSubmatch(m)
		if fp, ok := thirdPersonVerbs[strings.ToLower(sub[2])]; ok {
			return sub[1] + "я " + fp
		}
		return m
	})
}

func clampSentences(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	parts := sentenceSplitRe.FindAllString(text, -1)
	if len(parts) <= limit {
		return text
	}
	return strings.TrimSpace(strings.Join(parts[:limit], ""))
}

// capImagery keeps the first limit metaphor clauses and drops the rest.
func capImagery(text string, limit int) string {
	if limit < 0 {
		return text
	}
	seen := 0
	return imageryClause.ReplaceAllStringFunc(text, func(m string) string {
		seen++
		if seen <= limit {
			return m
		}
		return ""
	})
}

func stripCliches(text string) string {
	out := text
	for _, c := range criticCliches {
		for {
			idx := strings.Index(strings.ToLower(out), c)
			if idx < 0 {
				break
			}
			out = out[:idx] + out[idx+len(c):]
		}
	}
	return out
}

// demoteQuestion turns an unauthorized trailing question into a plain
// statement.
func demoteQuestion(text string) string {
	out := danglingAskRe.ReplaceAllString(text, ".")
	out = trailingQuestionRe.ReplaceAllString(out, ".")
	return strings.TrimSpace(out)
}

func tidy(text string) string {
	out := multiNewlines.ReplaceAllString(text, "\n\n")
	out = multiSpaceRe.ReplaceAllString(out, " ")
	out = spacePunctRe.ReplaceAllString(out, "$1")
	return strings.TrimSpace(out)
}
