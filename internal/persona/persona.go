package persona

// Persona is the character sheet loaded from persona.yml.
type Persona struct {
	Version  int      `yaml:"version"`
	Identity Identity `yaml:"identity"`
	Style    Style    `yaml:"style"`

	Preferences      map[string][]string `yaml:"preferences"`
	DecisionPolicies map[string]string   `yaml:"decision_policies"`

	Intimacy   Intimacy   `yaml:"intimacy"`
	Boundaries Boundaries `yaml:"boundaries"`
	Narration  Narration  `yaml:"narration"`
}

type Identity struct {
	Name string `yaml:"name"`
	Age  int    `yaml:"age"`
	City string `yaml:"city"`
	TZ   string `yaml:"tz"`
	Bio  string `yaml:"bio"`
}

type Style struct {
	Tone        []string `yaml:"tone"`
	Avoid       []string `yaml:"avoid"`
	AddressUser string   `yaml:"address_user"`
}

type Intimacy struct {
	Levels  []string            `yaml:"levels"`
	Default string              `yaml:"default"`
	Style   map[string][]string `yaml:"style"`
}

type Boundaries struct {
	General []string `yaml:"general"`
	Flirt   []string `yaml:"flirt"`
}

type Narration struct {
	RoleplayModeKey string `yaml:"roleplay_mode_key"`
}

// RoleplayKey returns the configured roleplay mode name, defaulting to
// "roleplay" when persona.yml does not override it.
func (p *Persona) RoleplayKey() string {
	if p.Narration.RoleplayModeKey != "" {
		return p.Narration.RoleplayModeKey
	}
	return "roleplay"
}

// Traits flattens style descriptors and the home city into the tag list
// matched by persona_traits policy conditions.
func (p *Persona) Traits() []string {
	traits := make([]string, 0, len(p.Style.Tone)+len(p.Style.Avoid)+1)
	traits = append(traits, p.Style.Tone...)
	traits = append(traits, p.Style.Avoid...)
	if p.Identity.City != "" {
		traits = append(traits, p.Identity.City)
	}
	return traits
}
