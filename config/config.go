// Package config loads the layered runtime configuration and resolves the
// agent profile used to shape requests. Precedence, lowest first: built-in
// defaults, the user-level file (~/.eleven/config.yaml), the project-level
// file (./.eleven/config.yaml), then the explicit command-line selection.
package config

import (
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/nexteleven/eleven/errors"
)

// InteractionMode selects the request-shaping behavior of a profile.
type InteractionMode string

const (
	ModeAgent       InteractionMode = "agent"
	ModeCodeReview  InteractionMode = "code-review"
	ModeDebug       InteractionMode = "debug"
	ModeOrchestrate InteractionMode = "orchestrate"
)

// Profile is a named bundle of model and persona settings selected for a
// session. Immutable once resolved.
type Profile struct {
	ID      string          `yaml:"-"`
	Name    string          `yaml:"name"`
	Model   string          `yaml:"model"`
	Mode    InteractionMode `yaml:"mode"`
	Persona string          `yaml:"persona"`
}

// ProfileOverride is the subset of profile fields a config file may override.
// Empty fields leave the built-in value in place.
type ProfileOverride struct {
	Name    string          `yaml:"name"`
	Model   string          `yaml:"model"`
	Mode    InteractionMode `yaml:"mode"`
	Persona string          `yaml:"persona"`
}

// FilesystemAccess restricts what the filesystem tools may touch. Patterns
// are doublestar globs.
type FilesystemAccess struct {
	Hidden   []string `yaml:"hidden"`
	ReadOnly []string `yaml:"read_only"`
}

// MCPServer describes an external MCP tool server to launch.
type MCPServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Config is the merged runtime configuration.
type Config struct {
	Provider    string  `yaml:"provider"`
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	DefaultAgent string                     `yaml:"default_agent"`
	Agents       map[string]ProfileOverride `yaml:"agents"`

	AllowedCommands  []string         `yaml:"allowed_commands"`
	FilesystemAccess FilesystemAccess `yaml:"filesystem_access"`
	MCPServers       []MCPServer      `yaml:"mcp_servers"`

	HooksDir         string `yaml:"hooks_dir"`
	AutoLog          bool   `yaml:"auto_log"`
	LogFile          string `yaml:"log_file"`
	CompactThreshold int    `yaml:"compact_threshold"`
	CommandTimeout   int    `yaml:"command_timeout_seconds"`
}

const (
	defaultEndpoint    = "https://api.x.ai/v1/chat/completions"
	defaultModel       = "grok-beta"
	defaultTemperature = 0.1
	defaultMaxTokens   = 2048
)

// builtinProfiles is the profile registry. A session's resolved profile must
// come from this table; override layers may reshape entries but never add
// identifiers, so a typo can not silently select the wrong persona.
func builtinProfiles() map[string]Profile {
	return map[string]Profile{
		"general": {
			ID:      "general",
			Name:    "General Terminal Agent",
			Mode:    ModeAgent,
			Persona: "You are a helpful terminal assistant. Use the provided tools to inspect and change the local environment. Be concise and accurate, and warn before destructive operations.",
		},
		"review": {
			ID:      "review",
			Name:    "Code Review Agent",
			Mode:    ModeCodeReview,
			Persona: "You are a code review assistant. Read files before judging them, point at concrete lines, and propose minimal fixes.",
		},
		"debug": {
			ID:      "debug",
			Name:    "Debugging Agent",
			Mode:    ModeDebug,
			Persona: "You are a debugging assistant. Reproduce before guessing: run commands, read logs, then explain the fault and the fix.",
		},
		"orchestrate": {
			ID:      "orchestrate",
			Name:    "Orchestration Agent",
			Mode:    ModeOrchestrate,
			Persona: "You coordinate multi-step tasks. Break work into ordered steps, track them in the todos file, and execute one step at a time.",
		},
	}
}

// defaults returns the built-in configuration, before any file is applied.
func defaults() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Provider:     "grok",
		Endpoint:     defaultEndpoint,
		Model:        defaultModel,
		Temperature:  defaultTemperature,
		MaxTokens:    defaultMaxTokens,
		DefaultAgent: "general",
		FilesystemAccess: FilesystemAccess{
			Hidden: []string{".eleven", ".eleven/**"},
		},
		HooksDir:         filepath.Join(home, ".eleven", "hooks"),
		AutoLog:          true,
		LogFile:          filepath.Join(home, ".eleven", "eleven.log"),
		CompactThreshold: 40,
		CommandTimeout:   120,
	}
}

// Load builds the merged configuration from the default values, the
// user-level file, and the project-level file, in that order.
func Load() (*Config, error) {
	cfg := defaults()

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ".eleven", "config.yaml")
		if err := loadFromFile(userPath, cfg); err != nil {
			return nil, errors.WrapKind(errors.KindConfig, err, "loading user config")
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "could not get working directory")
	}
	projectPath := filepath.Join(wd, ".eleven", "config.yaml")
	if err := loadFromFile(projectPath, cfg); err != nil {
		return nil, errors.WrapKind(errors.KindConfig, err, "loading project config")
	}

	return cfg, nil
}

// loadFromFile applies one YAML layer on top of cfg. A missing file is not an
// error; an unparseable one is.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	// Unmarshal overwrites fields present in the YAML, which gives the
	// layered merge: later files replace earlier values field by field.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	return nil
}

// ResolveProfile produces the effective profile for the session. selection is
// the command-line choice and has highest precedence; empty means the
// configured default agent. An identifier unknown to the built-in registry at
// any layer is a hard configuration error, never a silent fallback.
func (c *Config) ResolveProfile(selection string) (Profile, error) {
	registry := builtinProfiles()

	// Validate the override layer before applying it: a config file naming
	// an unknown agent is as wrong as an unknown -agent flag.
	for id := range c.Agents {
		if _, ok := registry[id]; !ok {
			return Profile{}, errors.NewKind(errors.KindConfig,
				"config file overrides unknown agent %q (known: %s)", id, knownIDs(registry))
		}
	}
	for id, ov := range c.Agents {
		p := registry[id]
		if ov.Name != "" {
			p.Name = ov.Name
		}
		if ov.Model != "" {
			p.Model = ov.Model
		}
		if ov.Mode != "" {
			if !validMode(ov.Mode) {
				return Profile{}, errors.NewKind(errors.KindConfig,
					"agent %q: unknown interaction mode %q", id, ov.Mode)
			}
			p.Mode = ov.Mode
		}
		if ov.Persona != "" {
			p.Persona = ov.Persona
		}
		registry[id] = p
	}

	id := selection
	if id == "" {
		id = c.DefaultAgent
	}
	profile, ok := registry[id]
	if !ok {
		return Profile{}, errors.NewKind(errors.KindConfig,
			"unknown agent %q (known: %s)", id, knownIDs(registry))
	}
	if profile.Model == "" {
		profile.Model = c.Model
	}
	return profile, nil
}

// ListProfiles returns the effective profile table in a stable order, for the
// -list-agents flag.
func (c *Config) ListProfiles() []Profile {
	registry := builtinProfiles()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		p, err := c.ResolveProfile(id)
		if err != nil {
			// Broken overrides show the built-in entry instead.
			p = builtinProfiles()[id]
			if p.Model == "" {
				p.Model = c.Model
			}
		}
		out = append(out, p)
	}
	return out
}

func validMode(m InteractionMode) bool {
	switch m {
	case ModeAgent, ModeCodeReview, ModeDebug, ModeOrchestrate:
		return true
	}
	return false
}

func knownIDs(registry map[string]Profile) string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}
