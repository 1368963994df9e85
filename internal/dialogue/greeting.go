package dialogue

import (
	"regexp"
	"strings"
	"time"
)

// Greeting kinds the policy can pick.
const (
	GreetNone  = "none"
	GreetAck   = "ack"
	GreetShort = "short"
	GreetWarm  = "warm"
)

var helloRe = regexp.MustCompile(`(?i)^\s*(привет\w*|здравствуй\w*|доброе\s+утро|добрый\s+день|добрый\s+вечер|hi|hello)[\s,!.]*`)

// IsGreeting reports whether the message opens with a salutation.
func IsGreeting(text string) bool {
	return helloRe.MatchString(text)
}

// GreetDecision is the outcome of the greeting gate.
type GreetDecision struct {
	Allow bool
	Kind  string
}

// GreetRules are the caps the gate enforces.
type GreetRules struct {
	DailyCap    int
	Cooldown    time.Duration
	ReentryIdle time.Duration
}

func DefaultGreetRules() GreetRules {
	return GreetRules{DailyCap: 3, Cooldown: 15 * time.Minute, ReentryIdle: 3 * time.Hour}
}

// GreetingPolicy decides whether the reply may open with a greeting.
// A capped number per day; a fresh exchange gets an ack instead of a
// second hello; long silence earns a warm one.
func GreetingPolicy(rules GreetRules, now, lastBotGreet, lastSeen time.Time, dailyCount, turn int, userGreeted bool) GreetDecision {
	if dailyCount >= rules.DailyCap {
		return GreetDecision{Allow: false, Kind: GreetNone}
	}
	if turn <= 2 && lastBotGreet.IsZero() {
		return GreetDecision{Allow: true, Kind: GreetShort}
	}
	if userGreeted {
		if !lastSeen.IsZero() && now.Sub(lastSeen) < rules.Cooldown {
			return GreetDecision{Allow: false, Kind: GreetAck}
		}
		return GreetDecision{Allow: true, Kind: GreetShort}
	}
	if !lastSeen.IsZero() && now.Sub(lastSeen) >= rules.ReentryIdle {
		return GreetDecision{Allow: true, Kind: GreetWarm}
	}
	return GreetDecision{Allow: false, Kind: GreetNone}
}

// StripGreeting removes up to three leading salutations from a reply.
func StripGreeting(text string) string {
	out := text
	for i := 0; i < 3; i++ {
		trimmed := helloRe.ReplaceAllString(out, "")
		if trimmed == out {
			break
		}
		out = trimmed
	}
	out = strings.TrimSpace(out)
	if out != "" {
		r := []rune(out)
		// the salutation may have carried the capital letter
		upper := strings.ToUpper(string(r[0]))
		out = upper + string(r[1:])
	}
	return out
}
