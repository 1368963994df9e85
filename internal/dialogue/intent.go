package dialogue

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Intent labels produced by the rule classifier.
const (
	IntentGreeting    = "greeting"
	IntentFarewell    = "farewell"
	IntentWeather     = "weather"
	IntentTime        = "time"
	IntentDate        = "date"
	IntentMemoryQuery = "memory_query"
	IntentFlirt       = "flirt"
	IntentPlan        = "plan"
	IntentSmalltalk   = "smalltalk"
	IntentSOS         = "sos"
	IntentUnknown     = "unknown"
)

// IntentResult pairs the label with the classifier's confidence.
type IntentResult struct {
	Intent     string
	Confidence float64
}

var (
	weatherRe  = regexp.MustCompile(`(?i)(какая|что\s+по)\s+погод[аеы]`)
	timeRe     = regexp.MustCompile(`(?i)(который\s+час|сколько\s+(?:сейчас\s+)?времени)`)
	dateRe     = regexp.MustCompile(`(?i)(какая\s+сегодня\s+дата|какое\s+число)`)
	greetingRe = regexp.MustCompile(`(?i)(привет|здравствуй|доброе\s+утро|добрый\s+(?:день|вечер))`)
	farewellRe = regexp.MustCompile(`(?i)(пока|до\s+свидания|спокойной\s+ночи)`)
	memoryRe   = regexp.MustCompile(`(?i)(что\s+ты\s+(?:помнишь|запомнила)\s+обо\s+мне)`)
	flirtRe    = regexp.MustCompile(`(?i)флирт|поцелу\w*|романтик\w*|мило\s+говори`)
	sosRe      = regexp.MustCompile(`(?i)(помоги|плохо|депрессия|тревога|я\s+сломал(ся)?|не\s+справляюсь)`)
	planRe     = regexp.MustCompile(`(?i)(план|что\s+делать|как\s+провести|куда\s+сходить)`)
)

// ClassifyIntent is a cheap rule-based classifier. Distress outranks
// everything, factual queries outrank mood, smalltalk is the default.
func ClassifyIntent(text string) IntentResult {
	if text == "" {
		return IntentResult{IntentUnknown, 0.0}
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case sosRe.MatchString(lower):
		return IntentResult{IntentSOS, 0.9}
	case weatherRe.MatchString(lower):
		return IntentResult{IntentWeather, 0.85}
	case timeRe.MatchString(lower):
		return IntentResult{IntentTime, 0.8}
	case dateRe.MatchString(lower):
		return IntentResult{IntentDate, 0.7}
	case memoryRe.MatchString(lower):
		return IntentResult{IntentMemoryQuery, 0.75}
	case flirtRe.MatchString(lower):
		return IntentResult{IntentFlirt, 0.6}
	case planRe.MatchString(lower):
		return IntentResult{IntentPlan, 0.6}
	case greetingRe.MatchString(lower):
		return IntentResult{IntentGreeting, 0.6}
	case farewellRe.MatchString(lower):
		return IntentResult{IntentFarewell, 0.6}
	}
	if utf8.RuneCountInString(lower) <= 3 {
		return IntentResult{IntentSmalltalk, 0.3}
	}
	return IntentResult{IntentSmalltalk, 0.4}
}

// TimeOfDay buckets an hour into the tags policy conditions use.
func TimeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 18:
		return "day"
	case hour >= 18 && hour < 23:
		return "evening"
	default:
		return "night"
	}
}
