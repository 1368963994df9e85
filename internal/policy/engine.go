package policy

import "log"

// DialoguePlan is the reduced instruction set handed to prompt building
// and post-processing.
type DialoguePlan struct {
	Intent           string
	Tone             string
	Emotion          string
	Register         string
	ResponseLength   string
	FollowUpStrategy string
	ContentGoals     []string
	ForbidTopics     []string
	RequireTopics    []string
	SafetyDirectives []string
	StyleMods        map[string]any
	AppliedRules     []string
	Metadata         map[string]any
}

// ApplyEffect folds one rule's effect into the plan. Scalars overwrite,
// lists are set-unions preserving first-seen order, and the rule id is
// recorded for diagnostics.
func (p *DialoguePlan) ApplyEffect(ruleID string, e Effect) {
	p.AppliedRules = append(p.AppliedRules, ruleID)
	if e.Tone != "" {
		p.Tone = e.Tone
	}
	if e.Emotion != "" {
		p.Emotion = e.Emotion
	}
	if e.Register != "" {
		p.Register = e.Register
	}
	if e.ResponseLength != "" {
		p.ResponseLength = e.ResponseLength
	}
	if e.FollowUp != "" {
		p.FollowUpStrategy = e.FollowUp
	}
	p.ContentGoals = union(p.ContentGoals, e.ContentGoals)
	p.ForbidTopics = union(p.ForbidTopics, e.ForbidTopics)
	p.RequireTopics = union(p.RequireTopics, e.RequireTopics)
	p.SafetyDirectives = union(p.SafetyDirectives, e.Safety)
	for k, v := range e.StyleMods {
		if p.StyleMods == nil {
			p.StyleMods = make(map[string]any)
		}
		p.StyleMods[k] = v
	}
	for k, v := range e.Metadata {
		if p.Metadata == nil {
			p.Metadata = make(map[string]any)
		}
		p.Metadata[k] = v
	}
}

// Engine evaluates the rule bundle against a turn context.
type Engine struct {
	bundle *Bundle
}

func NewEngine(bundle *Bundle) *Engine {
	return &Engine{bundle: bundle}
}

func basePlan(intent string) DialoguePlan {
	return DialoguePlan{
		Intent:           intent,
		Tone:             "warm",
		Emotion:          "curious",
		Register:         "casual",
		ResponseLength:   "medium",
		FollowUpStrategy: "adaptive",
		ContentGoals:     []string{"acknowledge_user"},
	}
}

// Plan reduces the bundle over the context: content rules first, then
// style, then safety, each tier in priority order.
func (e *Engine) Plan(ctx Context) DialoguePlan {
	plan := basePlan(ctx.Intent)
	for _, tier := range [][]Rule{e.bundle.Content, e.bundle.Style, e.bundle.Safety} {
		for _, rule := range tier {
			if rule.When.Matches(ctx) {
				plan.ApplyEffect(rule.ID, rule.Effects)
			}
		}
	}

	// derived heuristics on top of the declarative rules
	if ctx.Intent == "sos" || contains(plan.SafetyDirectives, "escalate") {
		plan.FollowUpStrategy = "grounding"
	}
	if ctx.Intent == "weather" && !contains(plan.RequireTopics, "weather") {
		plan.RequireTopics = append(plan.RequireTopics, "weather")
	}
	if ctx.Intent == "time" && !contains(plan.RequireTopics, "time") {
		plan.RequireTopics = append(plan.RequireTopics, "time")
	}

	log.Printf("[policy] plan ready: intent=%s tone=%s emotion=%s rules=%v",
		ctx.Intent, plan.Tone, plan.Emotion, plan.AppliedRules)
	return plan
}

// Describe lists loaded rules per tier for the diagnostics command.
func (e *Engine) Describe() map[string][]string {
	info := map[string][]string{}
	for _, tier := range []struct {
		name  string
		rules []Rule
	}{
		{"content", e.bundle.Content},
		{"style", e.bundle.Style},
		{"safety", e.bundle.Safety},
	} {
		lines := make([]string, 0, len(tier.rules))
		for _, r := range tier.rules {
			lines = append(lines, r.ID+": "+r.Description)
		}
		info[tier.name] = lines
	}
	return info
}

func union(dst, add []string) []string {
	for _, v := range add {
		if !contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
