package brain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ayalabs/aya/internal/memory"
)

const helpText = "Я рядом, чтобы обсудить настроение, планы, погоду или просто поболтать.\n" +
	"/me — что я о тебе знаю\n" +
	"/reset_name — забыть имя\n" +
	"/flirt — разрешить флирт, /flirt_off — выключить\n" +
	"/health — самочувствие бота"

// HandleCommand executes a slash command. The bool reports whether the
// command was recognized; unknown commands fall through to the chat
// pipeline in the gateway.
func (b *Brain) HandleCommand(ctx context.Context, userID, command, args string) (string, bool) {
	switch command {
	case "start":
		if err := b.ResetUser(userID); err != nil {
			return fmt.Sprintf("Не получилось сбросить состояние: %v", err), true
		}
		b.store.SetDialogState(userID, "greeting", "", b.world.LocalNow())
		return "Привет! Я Ая. Расскажи, как тебя зовут или что у тебя на уме.", true

	case "help":
		return helpText, true

	case "me":
		name := b.store.DisplayName(userID)
		prefs := b.store.Prefs(userID)
		affinity := b.store.Affinity(userID)
		nick := prefs.Nickname
		if name == "" {
			name = "—"
		}
		if nick == "" {
			nick = "—"
		}
		return fmt.Sprintf("имя: %s\nник: %s (allowed=%t)\naffinity: %d",
			name, nick, prefs.NicknameAllowed, affinity), true

	case "health":
		diag := b.Diagnostics(ctx, userID)
		metrics := diag["metrics"].(map[string]any)
		return fmt.Sprintf("status: OK\nfacts_stored: %v\nrecall_hit_rate: %.3f",
			metrics["facts_stored"], metrics["recall_hit_rate"]), true

	case "aya_diag":
		return b.formatDiagnostics(ctx, userID), true

	case "reset_name":
		if err := b.store.SetDisplayName(userID, ""); err != nil {
			return fmt.Sprintf("Не получилось: %v", err), true
		}
		return "Хорошо, я забыла, как тебя зовут. Напомнишь?", true

	case "reload_persona":
		if err := b.persona.Reload(); err != nil {
			return fmt.Sprintf("Перезагрузка персоны не удалась: %v", err), true
		}
		return "Персона перезагружена.", true

	case "flirt":
		b.store.SetFlirtConsent(userID, true)
		if b.store.FlirtLevel(userID) == memory.FlirtOff {
			b.store.SetFlirtLevel(userID, memory.FlirtSoft)
		}
		return "Окей, буду нежнее и теплее.", true

	case "flirt_off":
		b.store.SetFlirtConsent(userID, false)
		b.store.SetFlirtLevel(userID, memory.FlirtOff)
		return "Поняла. Переключаюсь на нейтральный тон.", true

	case "debug_world":
		return b.DebugWorld(ctx), true
	}
	return "", false
}

func (b *Brain) formatDiagnostics(ctx context.Context, userID string) string {
	diag := b.Diagnostics(ctx, userID)

	var out strings.Builder
	out.WriteString("Диагностика:\n")

	metrics := diag["metrics"].(map[string]any)
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, metrics[k]))
	}
	out.WriteString("метрики: " + strings.Join(parts, ", "))

	traits := diag["persona_traits"].([]string)
	out.WriteString("\npersona_traits: " + strings.Join(traits, ", "))

	llmInfo := diag["llm"].(map[string]any)
	fmt.Fprintf(&out, "\nllm: ok=%v note=%v", llmInfo["ok"], llmInfo["note"])
	return out.String()
}
