package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ayalabs/aya/internal/config"
	"github.com/ayalabs/aya/internal/dialogue"
	"github.com/ayalabs/aya/internal/llm"
	"github.com/ayalabs/aya/internal/memory"
	"github.com/ayalabs/aya/internal/persona"
	"github.com/ayalabs/aya/internal/policy"
	"github.com/ayalabs/aya/internal/world"
)

// Response is one finished turn.
type Response struct {
	Text      string
	Plan      policy.DialoguePlan
	FactsUsed []memory.Fact
}

// Brain runs the full turn pipeline: boundary machine, intent, policy
// plan, realization, post-processing, memory writes.
type Brain struct {
	cfg     *config.Config
	llm     *llm.Client
	store   *memory.Store
	persona *persona.Manager
	engine  *policy.Engine
	world   *world.Service

	mu      sync.Mutex
	threads map[string]*dialogue.TopicThreader
	metrics Metrics
}

// Metrics counts memory traffic for /aya_diag.
type Metrics struct {
	FactsStored    int
	FactsRecalled  int
	RecallAttempts int
}

func (m Metrics) RecallHitRate() float64 {
	if m.RecallAttempts == 0 {
		return 0
	}
	return float64(m.FactsRecalled) / float64(m.RecallAttempts)
}

func New(cfg *config.Config, store *memory.Store, client *llm.Client, pm *persona.Manager, engine *policy.Engine, ws *world.Service) *Brain {
	return &Brain{
		cfg:     cfg,
		llm:     client,
		store:   store,
		persona: pm,
		engine:  engine,
		world:   ws,
		threads: make(map[string]*dialogue.TopicThreader),
	}
}

func (b *Brain) threader(userID string) *dialogue.TopicThreader {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.threads[userID]
	if !ok {
		t = dialogue.NewTopicThreader(time.Duration(b.cfg.Dialogue.TopicCooldownSec) * time.Second)
		b.threads[userID] = t
	}
	return t
}

// Respond processes one user message end to end.
func (b *Brain) Respond(ctx context.Context, userID, text string) (*Response, error) {
	now := b.world.LocalNow()

	lastSeen, _ := b.store.LastSeen(userID)
	if err := b.store.TouchSeen(userID, now); err != nil {
		log.Printf("[brain] touch seen: %v", err)
	}
	// snapshot history before storing the current turn: realize appends
	// the user text itself, it must not show up in the history too
	history, _ := b.store.RecentMessages(userID, 6)
	if err := b.store.AddMessage(userID, "user", text); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}
	profile := b.loadProfile(userID).Observe(text)
	b.saveProfile(userID, profile)
	turn, err := b.store.IncTurn(userID)
	if err != nil {
		log.Printf("[brain] turn counter: %v", err)
	}

	// safety boundaries never wait for the model
	if sig := dialogue.DetectFlirtSignal(text); sig != "" {
		reply, err := dialogue.ApplyFlirtSignal(b.store, userID, sig)
		if err != nil {
			return nil, fmt.Errorf("flirt transition: %w", err)
		}
		b.store.AddMessage(userID, "assistant", reply)
		b.store.SetDialogState(userID, dialogue.IntentFlirt, sig, now)
		return &Response{Text: reply}, nil
	}

	intent := dialogue.ClassifyIntent(text)
	if prev, ok := b.freshIntent(userID, now, text, intent); ok {
		intent.Intent = prev
	}
	emotion := dialogue.DetectEmotion(text)

	threader := b.threader(userID)
	threader.Observe(text, now)

	snap := b.world.Snapshot(ctx)
	weatherCond := b.world.WeatherCondition(ctx)

	affinity := b.store.Affinity(userID)
	adult := b.store.AdultConfirmed(userID)
	consent := b.store.FlirtConsent(userID)
	level := b.store.FlirtLevel(userID)

	facts, err := b.store.TopFacts(userID, 25)
	if err != nil {
		log.Printf("[brain] load facts: %v", err)
	}
	tags := make([]string, 0, len(facts))
	seen := make(map[string]bool, len(facts))
	for _, f := range facts {
		if !seen[f.Predicate] {
			seen[f.Predicate] = true
			tags = append(tags, f.Predicate)
		}
	}

	plan := b.engine.Plan(policy.Context{
		Intent:           intent.Intent,
		Affinity:         affinity,
		Closeness:        affinity,
		AdultConfirmed:   adult,
		FlirtLevel:       level,
		UserEmotion:      emotion.Label,
		PersonaTraits:    b.persona.Traits(),
		MemoryTags:       tags,
		TimeOfDay:        timeOfDayISO(snap.LocalTimeISO),
		WeatherCondition: weatherCond,
	})

	factsUsed := b.recallForPlan(userID, intent.Intent, facts, plan.RequireTopics)
	if intent.Intent == dialogue.IntentMemoryQuery && len(factsUsed) == 0 {
		// no fact triples yet, an episode summary may still remember something
		if eps, err := b.store.SearchEpisodes(userID, text, 1); err == nil && len(eps) > 0 {
			factsUsed = append(factsUsed, memory.Fact{
				Predicate:  "episode_note",
				Object:     eps[0].Summary,
				Confidence: 0.5,
			})
		}
	}

	cad := dialogue.InferCadence(text, lastAssistantTexts(history, 2), profile)

	greetCount := b.store.DailyGreetCount(userID, now)
	lastGreet, _ := b.store.LastBotGreetAt(userID)
	greet := dialogue.GreetingPolicy(b.greetRules(), now, lastGreet, lastSeen, greetCount, turn, dialogue.IsGreeting(text))

	reply, viaModel := b.realize(ctx, realizeInput{
		userID:    userID,
		userText:  text,
		intent:    intent.Intent,
		plan:      plan,
		cadence:   cad,
		snap:      snap,
		facts:     factsUsed,
		history:   history,
		level:     level,
		affinity:  affinity,
		topicHook: threader.MaybeHook(now),
	})

	if viaModel && dialogue.NeedsRewrite(reply, b.cfg.Dialogue.CriticThreshold) {
		if plain, err := b.rewritePlain(ctx, reply); err == nil && plain != "" {
			reply = plain
		}
	}

	s := dialogue.Sanitizer{
		RoleplayMode:    level == memory.FlirtRoleplay,
		FlirtConsent:    consent,
		GreetingAllow:   greet.Allow,
		GreetingKind:    greet.Kind,
		PersonaName:     b.persona.Persona().Identity.Name,
		EnforceCaps:     viaModel,
		ClauseCap:       cad.ClauseCap,
		ImageryCap:      cad.ImageryCap,
		DropQuestion:    !cad.Ask && !dialogue.FollowUpAsks(plan.FollowUpStrategy),
		ForceNoQuestion: endsWithQuestions(lastAssistantTexts(history, 2)),
	}
	reply = s.Clean(reply)

	if greet.Allow && dialogue.IsGreeting(reply) {
		b.store.IncDailyGreet(userID, now)
		b.store.SetLastBotGreetAt(userID, now)
	}

	if emotion.Label == "joy" || (intent.Intent == dialogue.IntentFlirt && consent) {
		b.store.BumpAffinity(userID, 1)
	}

	b.extractAndStore(ctx, userID, text)

	if err := b.store.AddMessage(userID, "assistant", reply); err != nil {
		log.Printf("[brain] store assistant message: %v", err)
	}
	b.store.SetDialogState(userID, intent.Intent, "", now)

	log.Printf("[brain] response intent=%s rules=%v emotion=%s follow_up=%s facts_used=%d",
		intent.Intent, plan.AppliedRules, plan.Emotion, plan.FollowUpStrategy, len(factsUsed))

	return &Response{Text: reply, Plan: plan, FactsUsed: factsUsed}, nil
}

type realizeInput struct {
	userID    string
	userText  string
	intent    string
	plan      policy.DialoguePlan
	cadence   dialogue.CadencePlan
	snap      *world.Snapshot
	facts     []memory.Fact
	history   []memory.ChatMessage
	level     string
	affinity  int
	topicHook string
}

// realize produces the reply text. Factual intents and demo mode take
// the template path; everything else goes through the model with the
// playbook as fallback. The bool reports a model-produced draft.
func (b *Brain) realize(ctx context.Context, in realizeInput) (string, bool) {
	switch in.intent {
	case dialogue.IntentWeather, dialogue.IntentTime, dialogue.IntentDate,
		dialogue.IntentMemoryQuery, dialogue.IntentSOS:
		return b.humanize(in), false
	}
	if b.llm.DemoMode() {
		return b.humanize(in), false
	}

	system, err := b.systemPrompt(in)
	if err != nil {
		log.Printf("[brain] render system prompt: %v", err)
		return b.humanize(in), false
	}

	reply, err := b.llm.Chat(ctx, chatMessages(system, in.history, in.userText))
	if err != nil {
		log.Printf("[brain] chat failed, falling back to playbook: %v", err)
		return b.humanize(in), false
	}
	return reply, true
}

func (b *Brain) humanize(in realizeInput) string {
	weatherText := ""
	if in.snap.Weather != nil {
		weatherText = dialogue.WeatherLine(in.snap.Weather.TempC, in.snap.Weather.IsRainy)
	}
	userName := ""
	if dialogue.ShouldAddress(len(in.userText), in.plan.Tone, in.affinity, in.userText) {
		userName = dialogue.AddressForm(b.store.Prefs(in.userID), b.store.DisplayName(in.userID), in.plan.Tone, in.affinity)
	}
	return dialogue.Humanize(dialogue.HumanizeInput{
		Intent:      in.intent,
		Plan:        in.plan,
		PersonaName: b.persona.Persona().Identity.Name,
		UserName:    userName,
		City:        in.snap.City,
		LocalTime:   localClock(in.snap.LocalTimeISO),
		WeatherText: weatherText,
		Facts:       in.facts,
	})
}

// systemPrompt renders the persona template plus a per-turn brief with
// the plan and cadence constraints.
func (b *Brain) systemPrompt(in realizeInput) (string, error) {
	rainy := in.snap.Weather != nil && in.snap.Weather.IsRainy
	base, err := b.persona.RenderSystem(
		persona.WorldView{
			City:         in.snap.City,
			LocalTimeISO: in.snap.LocalTimeISO,
			TZ:           in.snap.TZ,
			Rainy:        rainy,
		},
		persona.UserView{
			DisplayName:     b.store.DisplayName(in.userID),
			Nickname:        b.store.Prefs(in.userID).Nickname,
			NicknameAllowed: b.store.Prefs(in.userID).NicknameAllowed,
		},
		persona.DialogView{
			Topic: b.store.Topic(in.userID),
			Mode:  in.level,
		},
	)
	if err != nil {
		return "", err
	}

	var brief strings.Builder
	brief.WriteString("\n\nСЕЙЧАС:")
	fmt.Fprintf(&brief, "\n- тон: %s, эмоция: %s, регистр: %s", in.plan.Tone, in.plan.Emotion, in.plan.Register)
	fmt.Fprintf(&brief, "\n- длина ответа: %s, не больше %d смысловых частей", in.cadence.TargetLen, in.cadence.ClauseCap)
	if in.cadence.ImageryCap == 0 {
		brief.WriteString("\n- без образов и метафор, отвечай по делу")
	}
	if in.cadence.Ask {
		brief.WriteString("\n- можно задать один встречный вопрос")
	} else {
		brief.WriteString("\n- не задавай вопросов в этом ответе")
	}
	if in.cadence.EmojiMirror {
		brief.WriteString("\n- можно одно эмодзи в тон собеседнику")
	}
	switch b.store.Prefs(in.userID).Formality {
	case "vy":
		brief.WriteString("\n- обращайся к собеседнику на вы")
	case "ty":
		brief.WriteString("\n- обращайся к собеседнику на ты")
	}
	if len(in.facts) > 0 {
		brief.WriteString("\n- можешь опереться на факты из блока ФАКТЫ")
	}
	if in.topicHook != "" {
		fmt.Fprintf(&brief, "\n- если уместно, вернись к теме: %q", in.topicHook)
	}
	for _, goal := range in.plan.ContentGoals {
		fmt.Fprintf(&brief, "\n- цель: %s", goal)
	}
	for _, forbidden := range in.plan.ForbidTopics {
		fmt.Fprintf(&brief, "\n- не поднимай тему: %s", forbidden)
	}

	if len(in.facts) > 0 {
		brief.WriteString("\n\nФАКТЫ:")
		for _, f := range in.facts {
			fmt.Fprintf(&brief, "\n- %s: %s", f.Predicate, f.Object)
		}
	}

	return base + brief.String(), nil
}

// rewritePlain gives an over-written draft one retry in plain language.
func (b *Brain) rewritePlain(ctx context.Context, draft string) (string, error) {
	return b.llm.Complete(ctx, dialogue.RewriteInstruction, draft)
}

// recallForPlan gathers the facts the reply may mention: recent ones
// for memory and greeting intents, targeted recall per required topic.
func (b *Brain) recallForPlan(userID, intent string, recent []memory.Fact, topics []string) []memory.Fact {
	var out []memory.Fact
	if intent == dialogue.IntentMemoryQuery || intent == dialogue.IntentGreeting {
		if len(recent) > 5 {
			out = append(out, recent[:5]...)
		} else {
			out = append(out, recent...)
		}
	}
	for _, topic := range topics {
		switch topic {
		case "weather", "time":
			continue // satisfied by the world snapshot
		}
		b.mu.Lock()
		b.metrics.RecallAttempts++
		b.mu.Unlock()
		rows, err := b.store.Facts(userID, topicPredicates(topic)...)
		if err != nil {
			log.Printf("[brain] recall %s: %v", topic, err)
			continue
		}
		if len(rows) > 2 {
			rows = rows[:2]
		}
		b.mu.Lock()
		b.metrics.FactsRecalled += len(rows)
		b.mu.Unlock()
		out = append(out, rows...)
	}
	return out
}

func topicPredicates(topic string) []string {
	switch topic {
	case "identity":
		return []string{"name", "location"}
	case "age":
		return []string{"age"}
	case "health":
		return []string{"intolerance", "allergy", "condition"}
	}
	return []string{topic}
}

// extractAndStore harvests facts from the user message.
func (b *Brain) extractAndStore(ctx context.Context, userID, text string) {
	inputs := memory.ExtractFacts(ctx, text, b.llm)
	stored := 0
	for _, f := range inputs {
		if err := b.store.UpsertFact(userID, f); err != nil {
			log.Printf("[brain] upsert fact %s: %v", f.Predicate, err)
			continue
		}
		stored++
		if f.Predicate == "name" && f.Object != "" {
			b.store.SetDisplayName(userID, f.Object)
		}
		if f.Predicate == "adult" && f.Object == "true" {
			b.store.SetAdultConfirmed(userID, true)
		}
		if f.Predicate == "nickname" && f.Object != "" {
			b.store.SetNickname(userID, f.Object)
			b.store.SetNicknameAllowed(userID, true)
		}
		if f.Predicate == "formality" && f.Object != "" {
			b.store.SetFormality(userID, f.Object)
		}
	}
	if stored > 0 {
		b.mu.Lock()
		b.metrics.FactsStored += stored
		b.mu.Unlock()
	}
}

// storeEpisodeFacts persists the triples the summarizer pulled out of
// an episode flush, tagged with their origin.
func (b *Brain) storeEpisodeFacts(userID string, facts []memory.FactInput) {
	for _, f := range facts {
		if f.Source == "" {
			f.Source = "episode"
		}
		if f.Confidence <= 0 {
			f.Confidence = 0.6
		}
		if err := b.store.UpsertFact(userID, f); err != nil {
			log.Printf("[brain] episode fact %s: %v", f.Predicate, err)
		}
	}
}

// ResetUser wipes the relationship state back to a stranger.
func (b *Brain) ResetUser(userID string) error {
	if err := b.store.SetAffinity(userID, 0); err != nil {
		return err
	}
	if err := b.store.SetDisplayName(userID, ""); err != nil {
		return err
	}
	if err := b.store.SetNickname(userID, ""); err != nil {
		return err
	}
	if err := b.store.SetNicknameAllowed(userID, false); err != nil {
		return err
	}
	if err := b.store.SetFlirtConsent(userID, false); err != nil {
		return err
	}
	return b.store.SetFlirtLevel(userID, memory.FlirtOff)
}

// Diagnostics bundles the observability snapshot for /aya_diag.
func (b *Brain) Diagnostics(ctx context.Context, userID string) map[string]any {
	b.mu.Lock()
	m := b.metrics
	b.mu.Unlock()

	ok, note := b.llm.HealthCheck(ctx)
	prefs := b.store.Prefs(userID)
	return map[string]any{
		"metrics": map[string]any{
			"facts_stored":    m.FactsStored,
			"facts_recalled":  m.FactsRecalled,
			"recall_attempts": m.RecallAttempts,
			"recall_hit_rate": m.RecallHitRate(),
		},
		"profile": map[string]any{
			"display_name":     b.store.DisplayName(userID),
			"nickname":         prefs.Nickname,
			"nickname_allowed": prefs.NicknameAllowed,
			"speech":           b.loadProfile(userID),
		},
		"persona_traits": b.persona.Traits(),
		"policies":       b.engine.Describe(),
		"llm":            map[string]any{"ok": ok, "note": note},
	}
}

// DebugWorld dumps the current snapshot for /debug_world.
func (b *Brain) DebugWorld(ctx context.Context) string {
	snap := b.world.Snapshot(ctx)
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Sprintf("snapshot error: %v", err)
	}
	return string(raw)
}

// FlushEpisodes summarizes yesterday's conversations into episodic
// memory. Called by the nightly cron job.
func (b *Brain) FlushEpisodes(ctx context.Context) {
	users, err := b.store.ActiveUsers(time.Now().Add(-24 * time.Hour))
	if err != nil {
		log.Printf("[brain] episode flush: %v", err)
		return
	}
	for _, userID := range users {
		history, err := b.store.RecentMessages(userID, 30)
		if err != nil || len(history) == 0 {
			continue
		}
		draft := memory.SummarizeEpisode(ctx, history, b.llm)
		turn := b.store.Turn(userID)
		turnStart := turn - len(history)
		if turnStart < 0 {
			turnStart = 0
		}
		if _, err := b.store.AddEpisode(userID, draft.Title, draft.Summary, turnStart, turn); err != nil {
			log.Printf("[brain] add episode for %s: %v", userID, err)
			continue
		}
		b.storeEpisodeFacts(userID, draft.Facts)
	}
	log.Printf("[brain] episode flush done for %d users", len(users))
}

// SweepFacts purges expired facts. Called by the hourly cron job.
func (b *Brain) SweepFacts() {
	n, err := b.store.PurgeExpiredFacts()
	if err != nil {
		log.Printf("[brain] fact sweep: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[brain] fact sweep purged %d expired facts", n)
	}
}

const profileKind = "profile"

func (b *Brain) loadProfile(userID string) dialogue.SpeechProfile {
	raw, err := b.store.GetKV(userID, profileKind, "speech")
	if err != nil || raw == "" {
		return dialogue.DefaultSpeechProfile()
	}
	var p dialogue.SpeechProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return dialogue.DefaultSpeechProfile()
	}
	return p
}

func (b *Brain) saveProfile(userID string, p dialogue.SpeechProfile) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := b.store.SetKV(userID, profileKind, "speech", string(raw)); err != nil {
		log.Printf("[brain] save profile: %v", err)
	}
}

func (b *Brain) greetRules() dialogue.GreetRules {
	return dialogue.GreetRules{
		DailyCap:    b.cfg.Dialogue.DailyGreetCap,
		Cooldown:    time.Duration(b.cfg.Dialogue.GreetCooldownSec) * time.Second,
		ReentryIdle: time.Duration(b.cfg.Dialogue.ReentryIdleSec) * time.Second,
	}
}

// freshIntent lets a short vague question like "а завтра?" inherit the
// previous turn's factual intent while the dialog state is still fresh.
func (b *Brain) freshIntent(userID string, now time.Time, text string, classified dialogue.IntentResult) (string, bool) {
	if classified.Confidence > 0.4 {
		return "", false
	}
	trimmed := strings.TrimSpace(text)
	if !strings.HasSuffix(trimmed, "?") || len(strings.Fields(trimmed)) > 3 {
		return "", false
	}
	window := time.Duration(b.cfg.Dialogue.FreshWindowSec) * time.Second
	st, ok := b.store.FreshDialogState(userID, now, window)
	if !ok {
		return "", false
	}
	switch st.Intent {
	case dialogue.IntentWeather, dialogue.IntentTime, dialogue.IntentDate, dialogue.IntentMemoryQuery:
		return st.Intent, true
	}
	return "", false
}

// chatMessages lays out the model conversation: system prompt, prior
// turns, then the current user text exactly once. The history must be
// the state before this turn was stored.
func chatMessages(system string, history []memory.ChatMessage, userText string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	for _, m := range history {
		role := m.Role
		if role != "user" && role != "assistant" {
			continue
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}
	return append(messages, llm.Message{Role: "user", Content: userText})
}

func lastAssistantTexts(history []memory.ChatMessage, n int) []string {
	var out []string
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		if history[i].Role == "assistant" {
			out = append(out, history[i].Content)
		}
	}
	return out
}

// endsWithQuestions reports whether every given reply (and at least two)
// ended with a question mark.
func endsWithQuestions(texts []string) bool {
	if len(texts) < 2 {
		return false
	}
	for _, t := range texts {
		if !strings.HasSuffix(strings.TrimSpace(t), "?") {
			return false
		}
	}
	return true
}

func localClock(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return ""
	}
	return t.Format("15:04")
}

func timeOfDayISO(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return "unknown"
	}
	return dialogue.TimeOfDay(t.Hour())
}
