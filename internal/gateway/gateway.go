package gateway

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ayalabs/aya/internal/brain"
	"github.com/ayalabs/aya/internal/bus"
	"github.com/ayalabs/aya/internal/channel"
	"github.com/ayalabs/aya/internal/config"
	"github.com/ayalabs/aya/internal/llm"
	"github.com/ayalabs/aya/internal/memory"
	"github.com/ayalabs/aya/internal/persona"
	"github.com/ayalabs/aya/internal/policy"
	"github.com/ayalabs/aya/internal/world"
)

// Options for creating a Gateway
type Options struct {
	Fetcher    world.Fetcher  // replaces the Open-Meteo fetcher in tests
	SignalChan chan os.Signal // for testing signal handling
}

// Gateway wires the channels, the brain and the scheduled jobs together
// around the message bus.
type Gateway struct {
	cfg      *config.Config
	bus      *bus.MessageBus
	store    *memory.Store
	llm      *llm.Client
	persona  *persona.Manager
	world    *world.Service
	brain    *brain.Brain
	channels *channel.ChannelManager
	cron     *cron.Cron

	signalChan chan os.Signal // for testing
}

// New creates a Gateway with default options
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{cfg: cfg}

	g.bus = bus.NewMessageBus(config.DefaultBufSize)

	store, err := memory.NewStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	g.store = store

	g.llm = llm.NewClient(&cfg.Provider)
	if g.llm.DemoMode() {
		log.Printf("[gateway] no API key configured, running in demo mode")
	}

	pm, err := persona.NewManager(cfg.Persona.Dir)
	if err != nil {
		_ = g.store.Close()
		return nil, fmt.Errorf("load persona: %w", err)
	}
	g.persona = pm

	policyDir := filepath.Join(cfg.Persona.Dir, "policies")
	if err := policy.EnsureDefaults(policyDir); err != nil {
		_ = g.store.Close()
		return nil, fmt.Errorf("write default policies: %w", err)
	}
	bundle, err := policy.LoadBundle(policyDir)
	if err != nil {
		_ = g.store.Close()
		return nil, fmt.Errorf("load policies: %w", err)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = world.NewOpenMeteoFetcher(&cfg.World)
	}
	g.world = world.NewService(g.store, fetcher, &cfg.World)

	g.brain = brain.New(cfg, g.store, g.llm, g.persona, policy.NewEngine(bundle), g.world)

	chMgr, err := channel.NewChannelManager(cfg, g.bus)
	if err != nil {
		_ = g.store.Close()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	g.signalChan = opts.SignalChan

	if err := g.scheduleJobs(); err != nil {
		_ = g.store.Close()
		return nil, err
	}

	return g, nil
}

// scheduleJobs registers the background maintenance jobs. The cron
// expressions carry a seconds field.
func (g *Gateway) scheduleJobs() error {
	c := cron.New(cron.WithSeconds())

	if _, err := c.AddFunc(config.DefaultFactSweepSpec, func() {
		g.brain.SweepFacts()
	}); err != nil {
		return fmt.Errorf("schedule fact sweep: %w", err)
	}

	if _, err := c.AddFunc(config.DefaultWorldRefreshSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := g.world.Refresh(ctx); err != nil {
			log.Printf("[gateway] world refresh warning: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule world refresh: %w", err)
	}

	if _, err := c.AddFunc(config.DefaultEpisodeFlushSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		g.brain.FlushEpisodes(ctx)
	}); err != nil {
		return fmt.Errorf("schedule episode flush: %w", err)
	}

	g.cron = c
	return nil
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	log.Printf("[gateway] channels started: %v", g.channels.EnabledChannels())

	g.cron.Start()

	go g.processLoop(ctx)

	log.Printf("[gateway] aya is listening")

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

func (g *Gateway) processLoop(ctx context.Context) {
	for {
		select {
		case msg := <-g.bus.Inbound:
			log.Printf("[gateway] inbound from %s/%s: %s", msg.Channel, msg.SenderID, truncate(msg.Content, 80))

			reply := g.handleInbound(ctx, msg)
			if reply != "" {
				g.bus.Outbound <- bus.OutboundMessage{
					Channel: msg.Channel,
					ChatID:  msg.ChatID,
					Content: reply,
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handleInbound(ctx context.Context, msg bus.InboundMessage) string {
	if err := g.store.EnsureUser(
		msg.SenderID,
		metaString(msg.Metadata, "username"),
		metaString(msg.Metadata, "first_name"),
		metaString(msg.Metadata, "last_name"),
		metaString(msg.Metadata, "locale"),
	); err != nil {
		log.Printf("[gateway] ensure user %s warning: %v", msg.SenderID, err)
	}

	if msg.Command != "" {
		if reply, ok := g.brain.HandleCommand(ctx, msg.SenderID, msg.Command, msg.Content); ok {
			return reply
		}
		// unknown command falls through to the conversation
	}

	text := msg.Content
	if text == "" {
		text = "/" + msg.Command
	}

	resp, err := g.brain.Respond(ctx, msg.SenderID, text)
	if err != nil {
		log.Printf("[gateway] respond error: %v", err)
		return "Прости, я немного запуталась. Скажи ещё раз, пожалуйста?"
	}
	return resp.Text
}

func (g *Gateway) Shutdown() error {
	if g.cron != nil {
		g.cron.Stop()
	}
	_ = g.channels.StopAll()
	if err := g.store.Close(); err != nil {
		log.Printf("[gateway] close store warning: %v", err)
	}
	log.Printf("[gateway] shutdown complete")
	return nil
}

// Brain exposes the dialogue core for the CLI chat loop.
func (g *Gateway) Brain() *brain.Brain {
	return g.brain
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
