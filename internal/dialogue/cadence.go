package dialogue

import "strings"

// CadencePlan shapes one reply: length bucket, whether to ask back,
// how many clauses and images it may carry.
type CadencePlan struct {
	TargetLen   string // one, short, medium, long
	Ask         bool
	Formality   string // plain, warm
	ImageryCap  int
	ClauseCap   int
	EmojiMirror bool
	Behavior    string // reactive, balanced
}

var mirrorEmojiRe = []string{"🙂", "😉", "❤️", "👍", "🔥"}

// InferCadence picks the reply rhythm from the incoming message, the
// last two assistant turns and the user's speech profile. Short in,
// short out; a question is answered but not always returned.
func InferCadence(userText string, lastAssistant []string, profile SpeechProfile) CadencePlan {
	n := wordCount(userText)

	target := "short"
	switch {
	case n <= 2:
		target = "one"
	case n <= 8:
		target = "short"
	case n <= 22:
		target = "medium"
	}

	// habitual short writers get clipped replies even on a long message
	if profile.AvgWords <= 8 || profile.ShortBias > 0.65 {
		if n <= 3 {
			target = "one"
		} else {
			target = "short"
		}
	}

	behavior := "balanced"
	if profile.QRatio < 0.18 {
		behavior = "reactive"
	}

	userAsks := strings.HasSuffix(strings.TrimSpace(userText), "?")
	recentlyAsked := false
	for _, prev := range lastAssistant {
		if strings.HasSuffix(strings.TrimSpace(prev), "?") {
			recentlyAsked = true
			break
		}
	}
	ask := userAsks && !recentlyAsked && behavior != "reactive"

	imageryCap := 0
	if (target == "medium" || target == "long") && n >= 10 {
		imageryCap = 1
	}

	clauseCap := 2
	if target == "one" || target == "short" {
		clauseCap = 1
	}
	if userAsks {
		// answer first, decorate never
		if clauseCap < 2 {
			clauseCap = 2
		}
		imageryCap = 0
	}

	formality := "warm"
	if target == "one" || target == "short" {
		formality = "plain"
	}

	mirror := false
	for _, e := range mirrorEmojiRe {
		if strings.Contains(userText, e) {
			mirror = true
			break
		}
	}

	return CadencePlan{
		TargetLen:   target,
		Ask:         ask,
		Formality:   formality,
		ImageryCap:  imageryCap,
		ClauseCap:   clauseCap,
		EmojiMirror: mirror,
		Behavior:    behavior,
	}
}
