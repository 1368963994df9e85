package dialogue

import (
	"regexp"
	"strings"
)

// CriticThreshold is the default AI-ness score above which a draft gets
// one rewrite attempt in plainer language.
const CriticThreshold = 4

var (
	metaphorRe  = regexp.MustCompile(`(?i)(будто\s+бы|как\s+будто|будто|словно)`)
	sentenceRe  = regexp.MustCompile(`[.!?…]+`)
	sceneOpenRe = regexp.MustCompile(`(?i)^\s*(только\s+представь|представь|вообрази|картинка\s+такая)`)
)

var criticCliches = []string{
	"в этом есть своя глубина",
	"в этом своё очарование",
	"это почти медитация",
	"кажется, будто весь мир сужается",
}

// AIScore rates how much a draft sounds like a language model instead
// of a person texting: stacked metaphors, stock phrases, scene-setting
// openers and too many sentences all add points.
func AIScore(text string) int {
	score := 0
	score += 2 * len(metaphorRe.FindAllString(text, -1))

	lower := strings.ToLower(text)
	for _, c := range criticCliches {
		if strings.Contains(lower, c) {
			score++
		}
	}

	if n := sentenceCount(text); n > 2 {
		score += n - 2
	}
	if sceneOpenRe.MatchString(text) {
		score += 2
	}
	if strings.HasSuffix(strings.TrimSpace(text), "?") {
		score++
	}
	return score
}

// NeedsRewrite reports whether the draft crossed the threshold.
// A non-positive threshold means the default.
func NeedsRewrite(text string, threshold int) bool {
	if threshold <= 0 {
		threshold = CriticThreshold
	}
	return AIScore(text) >= threshold
}

func sentenceCount(text string) int {
	n := len(sentenceRe.FindAllString(text, -1))
	if n == 0 && strings.TrimSpace(text) != "" {
		return 1
	}
	return n
}

// RewriteInstruction is appended to the system prompt for the single
// retry a failed draft gets.
const RewriteInstruction = "Перепиши короче и проще, как живой человек в мессенджере: без метафор, без сцен, максимум два предложения."
