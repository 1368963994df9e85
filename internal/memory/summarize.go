package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const summarizeSystem = `Ты — суммаризатор диалога. Сделай краткую выжимку эпизода и выдели факты.` +
	`Верни ТОЛЬКО JSON: {title, summary, facts}.` +
	`facts — массив объектов {predicate, object, dtype, confidence} как в извлечении фактов.` +
	`Не придумывай.`

const summarizeUserTmpl = "Ниже последовательность сообщений user/assistant. Сожми их в один эпизод (2-4 предложения) с названием и извлеки факты пользователя.\nDIALOG:\n%s\n"

// EpisodeDraft is the model's compression of a dialogue span, not yet
// persisted.
type EpisodeDraft struct {
	Title   string
	Summary string
	Facts   []FactInput
}

// SummarizeEpisode compresses a span of history into a titled episode.
// On any model failure it returns an empty draft rather than an error:
// summarization is best-effort background work.
func SummarizeEpisode(ctx context.Context, history []ChatMessage, llm ChatClient) EpisodeDraft {
	fallback := EpisodeDraft{Title: "Эпизод"}
	if llm == nil || len(history) == 0 {
		return fallback
	}

	var b strings.Builder
	for _, m := range history {
		content := strings.TrimSpace(strings.ReplaceAll(m.Content, "\n", " "))
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(content)
		b.WriteString("\n")
	}

	resp, err := llm.Complete(ctx, summarizeSystem, fmt.Sprintf(summarizeUserTmpl, b.String()))
	if err != nil {
		return fallback
	}

	var obj struct {
		Title   string    `json:"title"`
		Summary string    `json:"summary"`
		Facts   []rawFact `json:"facts"`
	}
	if err := json.Unmarshal([]byte(stripFence(resp)), &obj); err != nil {
		return fallback
	}

	draft := EpisodeDraft{Title: obj.Title, Summary: obj.Summary}
	if draft.Title == "" {
		draft.Title = "Эпизод"
	}
	for _, r := range obj.Facts {
		pred := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(r.Predicate)), " ", "_")
		if pred == "" || len(r.Object) == 0 {
			continue
		}
		objVal, dtype := decodeObject(r.Object)
		if objVal == "" {
			continue
		}
		if r.DType != "" {
			dtype = r.DType
		}
		conf := r.Confidence
		if conf <= 0 {
			conf = 0.7
		}
		draft.Facts = append(draft.Facts, FactInput{
			Predicate: pred, Object: objVal, DType: dtype, Confidence: conf,
		})
	}
	return draft
}
