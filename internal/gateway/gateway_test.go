package gateway

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayalabs/aya/internal/bus"
	"github.com/ayalabs/aya/internal/config"
	"github.com/ayalabs/aya/internal/world"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context) (*world.Snapshot, error) {
	temp := 5.0
	return &world.Snapshot{
		Status:  "ok",
		Weather: &world.Weather{TempC: &temp},
	}, nil
}

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()

	tmp := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.DBPath = filepath.Join(tmp, "aya.db")
	cfg.Persona.Dir = filepath.Join(tmp, "persona")
	cfg.World.Timezone = "UTC"

	g, err := NewWithOptions(cfg, Options{Fetcher: stubFetcher{}})
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	return g
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a long message", 10, "this is a ..."},
		{"", 5, ""},
	}

	for _, tt := range tests {
		got := truncate(tt.input, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}

func TestNewWithOptionsWiresEverything(t *testing.T) {
	g := newTestGateway(t)
	defer g.Shutdown()

	if g.bus == nil {
		t.Error("bus should not be nil")
	}
	if g.store == nil {
		t.Error("store should not be nil")
	}
	if g.brain == nil {
		t.Error("brain should not be nil")
	}
	if g.cron == nil {
		t.Error("cron should not be nil")
	}
	if g.channels == nil {
		t.Error("channels should not be nil")
	}
	if !g.llm.DemoMode() {
		t.Error("no API key in the test env, demo mode expected")
	}

	// persona and policy defaults are materialized on first start
	if _, err := os.Stat(filepath.Join(g.cfg.Persona.Dir, "policies")); err != nil {
		t.Errorf("policy dir not created: %v", err)
	}
}

func TestProcessLoopRespondsToMessage(t *testing.T) {
	g := newTestGateway(t)
	defer g.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go g.processLoop(ctx)

	g.bus.Inbound <- bus.InboundMessage{
		Channel:  "telegram",
		SenderID: "42",
		ChatID:   "42",
		Content:  "расскажи что-нибудь",
		Metadata: map[string]any{"first_name": "Андрей"},
	}

	select {
	case out := <-g.bus.Outbound:
		if out.Channel != "telegram" || out.ChatID != "42" {
			t.Errorf("outbound = %+v", out)
		}
		if out.Content == "" {
			t.Error("empty reply")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for outbound message")
	}

	msgs, err := g.store.RecentMessages("42", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Errorf("history = %+v, want the user turn and the reply", msgs)
	}
}

func TestProcessLoopHandlesCommands(t *testing.T) {
	g := newTestGateway(t)
	defer g.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go g.processLoop(ctx)

	g.bus.Inbound <- bus.InboundMessage{
		Channel:  "telegram",
		SenderID: "42",
		ChatID:   "42",
		Command:  "start",
	}

	select {
	case out := <-g.bus.Outbound:
		if !strings.Contains(out.Content, "Я Ая") {
			t.Errorf("start reply = %q", out.Content)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for command reply")
	}
}

func TestProcessLoopUnknownCommandFallsThrough(t *testing.T) {
	g := newTestGateway(t)
	defer g.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go g.processLoop(ctx)

	g.bus.Inbound <- bus.InboundMessage{
		Channel:  "telegram",
		SenderID: "42",
		ChatID:   "42",
		Command:  "frobnicate",
	}

	select {
	case out := <-g.bus.Outbound:
		if out.Content == "" {
			t.Error("unknown command should still get a conversational reply")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for fallthrough reply")
	}
}

func TestProcessLoopContextCancelled(t *testing.T) {
	g := newTestGateway(t)
	defer g.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		g.processLoop(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("processLoop did not exit after context cancel")
	}
}

func TestRunWithSignalChan(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.DBPath = filepath.Join(tmp, "aya.db")
	cfg.Persona.Dir = filepath.Join(tmp, "persona")
	cfg.World.Timezone = "UTC"

	sigCh := make(chan os.Signal, 1)
	g, err := NewWithOptions(cfg, Options{Fetcher: stubFetcher{}, SignalChan: sigCh})
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- g.Run(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)
	sigCh <- os.Interrupt

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Run did not exit after signal")
	}
}

func TestMetaString(t *testing.T) {
	m := map[string]any{"username": "andrey", "message_id": 7}
	if got := metaString(m, "username"); got != "andrey" {
		t.Errorf("username = %q", got)
	}
	if got := metaString(m, "message_id"); got != "" {
		t.Errorf("non-string value should yield empty, got %q", got)
	}
	if got := metaString(nil, "username"); got != "" {
		t.Errorf("nil map should yield empty, got %q", got)
	}
}
