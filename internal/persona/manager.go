package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Manager owns the persona directory: character sheet, free-text rules
// and the system prompt template. Missing files are created from the
// built-in defaults so a fresh install works without setup.
type Manager struct {
	dir string

	mu      sync.RWMutex
	persona *Persona
	policy  string
	tmpl    *template.Template
}

// WorldView is the slice of world state the prompt template sees.
type WorldView struct {
	City         string
	LocalTimeISO string
	TZ           string
	Rainy        bool
}

// UserView is the addressing info for the current user.
type UserView struct {
	DisplayName     string
	Nickname        string
	NicknameAllowed bool
}

// DialogView carries the per-turn topic and intimacy mode.
type DialogView struct {
	Topic string
	Mode  string
}

func NewManager(dir string) (*Manager, error) {
	m := &Manager{dir: dir}
	if err := m.ensureFiles(); err != nil {
		return nil, err
	}
	if err := m.Reload(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) ensureFiles() error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("create persona dir: %w", err)
	}
	files := []struct {
		name, content string
	}{
		{"persona.yml", defaultPersonaYAML},
		{"policy.md", defaultPolicyMD},
		{"system_prompt.tmpl", defaultSystemTmpl},
	}
	for _, f := range files {
		path := filepath.Join(m.dir, f.name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("stat %s: %w", f.name, err)
		}
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return fmt.Errorf("write default %s: %w", f.name, err)
		}
	}
	return nil
}

// Reload re-reads every persona file. Used at startup and by the
// /reload_persona command.
func (m *Manager) Reload() error {
	raw, err := os.ReadFile(filepath.Join(m.dir, "persona.yml"))
	if err != nil {
		return fmt.Errorf("read persona.yml: %w", err)
	}
	var p Persona
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("parse persona.yml: %w", err)
	}

	policy, err := os.ReadFile(filepath.Join(m.dir, "policy.md"))
	if err != nil {
		return fmt.Errorf("read policy.md: %w", err)
	}

	tmplRaw, err := os.ReadFile(filepath.Join(m.dir, "system_prompt.tmpl"))
	if err != nil {
		return fmt.Errorf("read system_prompt.tmpl: %w", err)
	}
	tmpl, err := template.New("system_prompt").
		Funcs(template.FuncMap{"join": strings.Join}).
		Parse(string(tmplRaw))
	if err != nil {
		return fmt.Errorf("parse system_prompt.tmpl: %w", err)
	}

	m.mu.Lock()
	m.persona = &p
	m.policy = string(policy)
	m.tmpl = tmpl
	m.mu.Unlock()
	return nil
}

// Persona returns the loaded character sheet.
func (m *Manager) Persona() *Persona {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.persona
}

// Traits exposes the persona's trait tags for policy matching.
func (m *Manager) Traits() []string {
	return m.Persona().Traits()
}

// RenderSystem builds the system prompt for one turn.
func (m *Manager) RenderSystem(world WorldView, user UserView, dialog DialogView) (string, error) {
	m.mu.RLock()
	p := m.persona
	policy := m.policy
	tmpl := m.tmpl
	m.mu.RUnlock()

	if world.City == "" {
		world.City = p.Identity.City
	}
	if world.TZ == "" {
		world.TZ = p.Identity.TZ
	}
	if dialog.Mode == "" {
		dialog.Mode = "off"
	}

	data := struct {
		Persona     *Persona
		Policy      string
		World       WorldView
		User        UserView
		Dialog      DialogView
		RoleplayKey string
	}{p, policy, world, user, dialog, p.RoleplayKey()}

	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return b.String(), nil
}
