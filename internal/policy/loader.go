package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

func loadRules(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	var f ruleFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	rules := make([]Rule, 0, len(f.Rules))
	for _, r := range f.Rules {
		if r.ID == "" {
			continue
		}
		rules = append(rules, r)
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	return rules, nil
}

// LoadBundle reads the three policy tiers from dir. A missing or broken
// file is a startup error: running with half a policy set is worse than
// not starting.
func LoadBundle(dir string) (*Bundle, error) {
	content, err := loadRules(filepath.Join(dir, "content_policies.yaml"))
	if err != nil {
		return nil, err
	}
	style, err := loadRules(filepath.Join(dir, "style_policies.yaml"))
	if err != nil {
		return nil, err
	}
	safety, err := loadRules(filepath.Join(dir, "safety_policies.yaml"))
	if err != nil {
		return nil, err
	}
	return &Bundle{Content: content, Style: style, Safety: safety}, nil
}

// EnsureDefaults writes the starter policy files when absent, mirroring
// how the persona directory bootstraps itself.
func EnsureDefaults(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create policy dir: %w", err)
	}
	files := map[string]string{
		"content_policies.yaml": defaultContentPolicies,
		"style_policies.yaml":   defaultStylePolicies,
		"safety_policies.yaml":  defaultSafetyPolicies,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("stat %s: %w", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("write default %s: %w", name, err)
		}
	}
	return nil
}

const defaultContentPolicies = `rules:
  - id: content.memory_recall
    description: "Surface stored facts when the user asks what Aya remembers"
    priority: 50
    when:
      intents: [memory_query]
    effects:
      content_goals: [recall_facts]
      follow_up: confirm_memory

  - id: content.weather_focus
    description: "Weather questions stay on the weather"
    priority: 40
    when:
      intents: [weather]
    effects:
      require_topics: [weather]
      forbid_topics: [politics]

  - id: content.plan_together
    description: "Help shape concrete plans when asked"
    priority: 30
    when:
      intents: [plan]
    effects:
      content_goals: [propose_option]
      response_length: medium
`

const defaultStylePolicies = `rules:
  - id: style.warm_flirt
    description: "Soften register when flirt is welcome"
    priority: 40
    when:
      intents: [flirt]
      min_affinity: 3
      require_adult: true
    effects:
      tone: playful
      register: intimate
      style_mods:
        emoji_budget: 1

  - id: style.night_quiet
    description: "Late night replies are calmer and shorter"
    priority: 20
    when:
      time_of_day: [night]
    effects:
      tone: calm
      response_length: short

  - id: style.rainy_cozy
    description: "Rain leans the mood cozy"
    priority: 10
    when:
      weather: [rainy]
    effects:
      style_mods:
        imagery: indoors

  - id: style.roleplay_scene
    description: "Scene narration is allowed only inside confirmed roleplay"
    priority: 30
    when:
      flirt_levels: [roleplay]
      require_adult: true
    effects:
      tone: playful
      style_mods:
        narration: allowed
`

const defaultSafetyPolicies = `rules:
  - id: safety.sos_grounding
    description: "Distress messages get grounding support, nothing else"
    priority: 100
    when:
      intents: [sos]
    effects:
      tone: supportive
      emotion: steady
      follow_up: grounding
      safety: [escalate]
      forbid_topics: [flirt, jokes]

  - id: safety.minor_no_flirt
    description: "No flirtation whatsoever without adult confirmation"
    priority: 90
    when:
      intents: [flirt]
      only_when_not_adult: true
    effects:
      tone: neutral
      register: casual
      safety: [deflect_flirt]
      forbid_topics: [flirt]
`
