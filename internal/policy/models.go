package policy

// Condition gates a rule on the reasoning context. Empty fields are
// unconstrained.
type Condition struct {
	Intents      []string `yaml:"intents"`
	MinAffinity  *int     `yaml:"min_affinity"`
	MaxAffinity  *int     `yaml:"max_affinity"`
	MinCloseness *int     `yaml:"min_closeness"`

	RequireAdult bool `yaml:"require_adult"`
	// nil means true: rules apply to unconfirmed users unless they opt out.
	AllowWhenNotAdult *bool `yaml:"allow_when_not_adult"`
	OnlyWhenNotAdult  bool  `yaml:"only_when_not_adult"`

	FlirtLevels   []string `yaml:"flirt_levels"`
	Emotions      []string `yaml:"emotions"`
	Weather       []string `yaml:"weather"`
	TimeOfDay     []string `yaml:"time_of_day"`
	PersonaTraits []string `yaml:"persona_traits"`
	MemoryTags    []string `yaml:"memory_tags"`
}

// Context is the per-turn snapshot rules match against.
type Context struct {
	Intent           string
	Affinity         int
	Closeness        int
	AdultConfirmed   bool
	FlirtLevel       string
	UserEmotion      string
	PersonaTraits    []string
	MemoryTags       []string
	TimeOfDay        string
	WeatherCondition string
}

func (c *Condition) Matches(ctx Context) bool {
	if len(c.Intents) > 0 && !contains(c.Intents, ctx.Intent) {
		return false
	}
	if c.MinAffinity != nil && ctx.Affinity < *c.MinAffinity {
		return false
	}
	if c.MaxAffinity != nil && ctx.Affinity > *c.MaxAffinity {
		return false
	}
	if c.MinCloseness != nil && ctx.Closeness < *c.MinCloseness {
		return false
	}
	if c.RequireAdult && !ctx.AdultConfirmed {
		return false
	}
	if !ctx.AdultConfirmed && c.AllowWhenNotAdult != nil && !*c.AllowWhenNotAdult {
		return false
	}
	if c.OnlyWhenNotAdult && ctx.AdultConfirmed {
		return false
	}
	if len(c.FlirtLevels) > 0 && !contains(c.FlirtLevels, ctx.FlirtLevel) {
		return false
	}
	if len(c.Emotions) > 0 && !contains(c.Emotions, ctx.UserEmotion) {
		return false
	}
	if len(c.Weather) > 0 && !contains(c.Weather, ctx.WeatherCondition) {
		return false
	}
	if len(c.TimeOfDay) > 0 && !contains(c.TimeOfDay, ctx.TimeOfDay) {
		return false
	}
	// persona must carry every required trait
	for _, want := range c.PersonaTraits {
		if !contains(ctx.PersonaTraits, want) {
			return false
		}
	}
	// memory tags only need to intersect
	if len(c.MemoryTags) > 0 {
		hit := false
		for _, want := range c.MemoryTags {
			if contains(ctx.MemoryTags, want) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Effect is what a matched rule contributes to the plan. Scalars
// overwrite, lists union.
type Effect struct {
	Tone           string         `yaml:"tone"`
	Emotion        string         `yaml:"emotion"`
	Register       string         `yaml:"register"`
	ResponseLength string         `yaml:"response_length"`
	FollowUp       string         `yaml:"follow_up"`
	ContentGoals   []string       `yaml:"content_goals"`
	ForbidTopics   []string       `yaml:"forbid_topics"`
	RequireTopics  []string       `yaml:"require_topics"`
	Safety         []string       `yaml:"safety"`
	StyleMods      map[string]any `yaml:"style_mods"`
	Metadata       map[string]any `yaml:"metadata"`
}

type Rule struct {
	ID          string    `yaml:"id"`
	Description string    `yaml:"description"`
	Priority    int       `yaml:"priority"`
	When        Condition `yaml:"when"`
	Effects     Effect    `yaml:"effects"`
}

// Bundle groups rules by tier, applied content first, safety last so
// safety rules always have the final say on scalar fields.
type Bundle struct {
	Content []Rule
	Style   []Rule
	Safety  []Rule
}

func (b *Bundle) AllRules() []Rule {
	out := make([]Rule, 0, len(b.Content)+len(b.Style)+len(b.Safety))
	out = append(out, b.Content...)
	out = append(out, b.Style...)
	out = append(out, b.Safety...)
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
