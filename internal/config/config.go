// Package config provides configuration management for the input humanizer.
package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"runk/internal/osutils"
)

// KeyNames is the canonical order of the four movement keys. W/S form the
// vertical axis, A/D the horizontal axis.
var KeyNames = []string{"W", "A", "S", "D"}

// Key describes one movement key binding.
type Key struct {
	// Code is the evdev key code sent to the injection daemon. Always >= 1.
	Code int `json:"code"`

	// Enabled controls whether the planner may pick this key.
	Enabled bool `json:"enabled"`

	// Label is the human-readable key name shown by control surfaces.
	Label string `json:"label,omitempty"`
}

// Service contains settings for the local control API.
type Service struct {
	// APIEnabled enables the loopback HTTP control API.
	APIEnabled bool `json:"api_enabled"`

	// APIPort is the port the control API listens on.
	APIPort int `json:"api_port"`

	// APIToken is an optional bearer token for API requests.
	APIToken string `json:"api_token,omitempty"`
}

// Config is the full application configuration. The engine takes an
// immutable clone of it per run; all durations are seconds.
type Config struct {
	Keys map[string]Key `json:"keys"`

	// EnableDiagonals allows two-axis moves when both axes have enabled keys.
	EnableDiagonals bool `json:"enable_diagonals"`

	// MinDelay/MaxDelay bound the randomized gap between scheduling cycles.
	MinDelay float64 `json:"min_delay"`
	MaxDelay float64 `json:"max_delay"`

	// PressMin/PressMax bound the randomized key hold duration.
	PressMin float64 `json:"press_min"`
	PressMax float64 `json:"press_max"`

	// Idle gaps: 1-in-IdleChance cycles sleep uniformly in [IdleMin, IdleMax].
	IdleEnabled bool    `json:"idle_enabled"`
	IdleChance  int     `json:"idle_chance"`
	IdleMin     float64 `json:"idle_min"`
	IdleMax     float64 `json:"idle_max"`

	// Double taps: 1-in-DoubleTapChance presses repeat after a short gap.
	DoubleTapEnabled bool `json:"double_tap_enabled"`
	DoubleTapChance  int  `json:"double_tap_chance"`

	Service Service `json:"service"`
}

// DefaultConfig returns a new Config with the stock WASD bindings.
func DefaultConfig() *Config {
	return &Config{
		Keys: map[string]Key{
			"W": {Code: 17, Enabled: true, Label: "W"},
			"A": {Code: 30, Enabled: true, Label: "A"},
			"S": {Code: 31, Enabled: true, Label: "S"},
			"D": {Code: 32, Enabled: true, Label: "D"},
		},
		EnableDiagonals:  true,
		MinDelay:         0.25,
		MaxDelay:         0.90,
		PressMin:         0.06,
		PressMax:         0.20,
		IdleEnabled:      true,
		IdleChance:       10,
		IdleMin:          1.0,
		IdleMax:          3.5,
		DoubleTapEnabled: true,
		DoubleTapChance:  8,
		Service: Service{
			APIEnabled: true,
			APIPort:    18790,
		},
	}
}

// Normalize repairs a configuration in place so that it satisfies the
// engine's invariants: all four keys present with sane codes, max bounds not
// below min bounds, chance fields at least 2.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Keys == nil {
		c.Keys = make(map[string]Key, len(KeyNames))
	}
	for _, name := range KeyNames {
		k, ok := c.Keys[name]
		if !ok {
			c.Keys[name] = def.Keys[name]
			continue
		}
		if k.Code < 1 {
			k.Code = def.Keys[name].Code
		}
		if k.Label == "" {
			k.Label = name
		}
		c.Keys[name] = k
	}

	if c.MinDelay <= 0 {
		c.MinDelay = def.MinDelay
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	if c.PressMin <= 0 {
		c.PressMin = def.PressMin
	}
	if c.PressMax < c.PressMin {
		c.PressMax = c.PressMin
	}
	if c.IdleMin <= 0 {
		c.IdleMin = def.IdleMin
	}
	if c.IdleMax < c.IdleMin {
		c.IdleMax = c.IdleMin
	}
	if c.IdleChance < 2 {
		c.IdleChance = 2
	}
	if c.DoubleTapChance < 2 {
		c.DoubleTapChance = 2
	}

	if c.Service.APIPort <= 0 || c.Service.APIPort > 65535 {
		c.Service.APIPort = def.Service.APIPort
	}
}

// Clone returns a deep copy, safe to hand to a running engine.
func (c *Config) Clone() *Config {
	dup := *c
	dup.Keys = make(map[string]Key, len(c.Keys))
	for name, k := range c.Keys {
		dup.Keys[name] = k
	}
	return &dup
}

// EnabledCount returns how many of the four keys are enabled.
func (c *Config) EnabledCount() int {
	n := 0
	for _, name := range KeyNames {
		if c.Keys[name].Enabled {
			n++
		}
	}
	return n
}

// AxisCodes returns the enabled key codes split by axis: W/S vertical,
// A/D horizontal.
func (c *Config) AxisCodes() (vert, horiz []int) {
	for _, name := range []string{"W", "S"} {
		if k := c.Keys[name]; k.Enabled {
			vert = append(vert, k.Code)
		}
	}
	for _, name := range []string{"A", "D"} {
		if k := c.Keys[name]; k.Enabled {
			horiz = append(horiz, k.Code)
		}
	}
	return vert, horiz
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
	lastSave   time.Time
	watcher    *watcher
}

// NewManager creates a new configuration manager rooted at the user config
// directory ($XDG_CONFIG_HOME/runk or ~/.config/runk).
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	return &Manager{
		configPath: configPath,
		config:     DefaultConfig(),
	}, nil
}

// getConfigPath returns the path to current.json, creating the directory.
func getConfigPath() (string, error) {
	base, err := osutils.ConfigHome()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(base, "runk")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "current.json"), nil
}

// Path returns the location of current.json.
func (m *Manager) Path() string {
	return m.configPath
}

// Load reads the configuration from disk. On first run (no current.json) it
// seeds the built-in presets and starts from Default.json.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		return m.seedLocked()
	}
	if err != nil {
		return err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return err
	}
	cfg.Normalize()
	m.config = cfg

	if m.onChanged != nil {
		m.onChanged()
	}
	return nil
}

// seedLocked populates the first-run configuration from the Default preset.
func (m *Manager) seedLocked() error {
	if err := ensureDefaultPresets(filepath.Dir(m.configPath)); err != nil {
		log.Printf("Config: failed to seed presets: %v", err)
	}

	cfg := DefaultConfig()
	if data, err := os.ReadFile(filepath.Join(presetsDirFor(m.configPath), "Default.json")); err == nil {
		seeded := DefaultConfig()
		if err := json.Unmarshal(data, seeded); err == nil {
			cfg = seeded
		}
	}
	cfg.Normalize()
	m.config = cfg

	return m.saveLocked()
}

// Save writes the configuration to disk atomically (tmp file + rename).
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	tmp := m.configPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	m.lastSave = time.Now()
	return os.Rename(tmp, m.configPath)
}

// Get returns the current configuration. Callers that hand it to a running
// engine must Clone it first.
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set replaces the configuration after normalizing it.
func (m *Manager) Set(config *Config) {
	config.Normalize()
	m.mu.Lock()
	m.config = config
	onChanged := m.onChanged
	m.mu.Unlock()
	if onChanged != nil {
		onChanged()
	}
}

// RegisterChangeCallback registers a function to be called when config changes.
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}

// Reset deletes current.json so the next launch reseeds from Default.json.
func (m *Manager) Reset() error {
	if err := ensureDefaultPresets(filepath.Dir(m.configPath)); err != nil {
		log.Printf("Config: failed to seed presets: %v", err)
	}
	if err := os.Remove(m.configPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
