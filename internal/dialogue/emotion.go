package dialogue

import "regexp"

// Emotion is the detected mood of one user message.
type Emotion struct {
	Label     string // joy, sad, anger, anxiety, tired, interest, bored, neutral
	Intensity string // low, mid, high
}

var emotionPatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{"joy", regexp.MustCompile(`(?i)(рад(уюсь|остно)|классно|супер|ура|обожаю)|😊|😄|😍|🥳`)},
	{"sad", regexp.MustCompile(`(?i)(грустн|печал|тоск|хандр|плохо)|😞|😢|😭`)},
	{"anger", regexp.MustCompile(`(?i)(злюсь|бесит|ненавижу|раздражает|когда уже)|😤|😡`)},
	{"anxiety", regexp.MustCompile(`(?i)(тревожн|переживаю|боюсь|стресс)|😬|😰`)},
	{"tired", regexp.MustCompile(`(?i)(устал|выжат|сонн|нет сил|выгорел)|🥱`)},
	{"interest", regexp.MustCompile(`(?i)(интересн|расскажи|почему|как это|пример)|🤔`)},
	{"bored", regexp.MustCompile(`(?i)(скучно|неинтересно|ну и)|😐|🙄`)},
}

var (
	exclaimRe   = regexp.MustCompile(`!`)
	ellipsisRe  = regexp.MustCompile(`\.\.+`)
	// ellipses are ellipsisRe's cue, they must not score twice
	intensityRe = regexp.MustCompile(`!{2,}|\({2,}|\){2,}|❤️|💔|🔥|💥`)
)

// DetectEmotion matches the first emotion lexicon hit; neutral otherwise.
func DetectEmotion(text string) Emotion {
	for _, p := range emotionPatterns {
		if p.re.MatchString(text) {
			return Emotion{Label: p.label, Intensity: inferIntensity(text)}
		}
	}
	return Emotion{Label: "neutral", Intensity: "low"}
}

// inferIntensity scores punctuation pile-ups and loaded emoji.
func inferIntensity(text string) string {
	score := 0
	if len(exclaimRe.FindAllString(text, -1)) >= 2 {
		score++
	}
	if ellipsisRe.MatchString(text) {
		score++
	}
	if intensityRe.MatchString(text) {
		score++
	}
	switch {
	case score >= 2:
		return "high"
	case score == 1:
		return "mid"
	default:
		return "low"
	}
}
