package dialogue

import (
	"regexp"
	"strings"
)

// SpeechProfile tracks how the user writes, as exponential moving
// averages, so replies can mirror their rhythm.
type SpeechProfile struct {
	AvgWords   float64 `json:"avg_words"`
	QRatio     float64 `json:"q_ratio"`
	EmojiRatio float64 `json:"emoji_ratio"`
	ShortBias  float64 `json:"short_bias"`
}

// DefaultSpeechProfile is the prior before any messages are seen.
func DefaultSpeechProfile() SpeechProfile {
	return SpeechProfile{AvgWords: 10.0, QRatio: 0.2, EmojiRatio: 0.05, ShortBias: 0.5}
}

const profileAlpha = 0.3

var (
	wordRe  = regexp.MustCompile(`[0-9A-Za-zА-Яа-яЁё]+`)
	emojiRe = regexp.MustCompile(`[🙂😉😊😄😍🥳😞😢😭😤😡😬😰🥱🤔😐🙄❤️🔥👍💔💥]`)
)

func wordCount(s string) int {
	return len(wordRe.FindAllString(s, -1))
}

// Observe folds one user message into the profile.
func (p SpeechProfile) Observe(text string) SpeechProfile {
	wc := float64(wordCount(text))

	isQ := 0.0
	if strings.HasSuffix(strings.TrimSpace(text), "?") {
		isQ = 1.0
	}
	hasEmoji := 0.0
	if emojiRe.MatchString(text) {
		hasEmoji = 1.0
	}
	isShort := 0.0
	if wc <= 5 {
		isShort = 1.0
	}

	return SpeechProfile{
		AvgWords:   ema(p.AvgWords, wc),
		QRatio:     ema(p.QRatio, isQ),
		EmojiRatio: ema(p.EmojiRatio, hasEmoji),
		ShortBias:  ema(p.ShortBias, isShort),
	}
}

func ema(prev, sample float64) float64 {
	return (1-profileAlpha)*prev + profileAlpha*sample
}
