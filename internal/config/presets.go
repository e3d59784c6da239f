package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"runk/internal/embedded"
)

var presetNameRe = regexp.MustCompile(`^[A-Za-z0-9 _\-\.\(\)]+$`)

// SanitizePresetName trims and validates a user-supplied preset name.
// Returns "" if the name contains characters unsafe for a filename.
func SanitizePresetName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" || !presetNameRe.MatchString(name) {
		return ""
	}
	return name
}

// presetsDirFor returns the presets directory next to the given config file.
func presetsDirFor(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "presets")
}

// ensureDefaultPresets writes the built-in presets into dir/presets when they
// do not already exist.
func ensureDefaultPresets(dir string) error {
	presetsDir := filepath.Join(dir, "presets")
	if err := os.MkdirAll(presetsDir, 0o755); err != nil {
		return err
	}

	for _, name := range embedded.PresetNames() {
		path := filepath.Join(presetsDir, name+".json")
		if _, err := os.Stat(path); err == nil {
			continue
		}
		data, err := embedded.Preset(name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// PresetsDir returns the user presets directory.
func (m *Manager) PresetsDir() string {
	return presetsDirFor(m.configPath)
}

// EnsureDefaultPresets seeds the built-in presets if missing.
func (m *Manager) EnsureDefaultPresets() error {
	return ensureDefaultPresets(filepath.Dir(m.configPath))
}

// ListPresets returns the available preset names, sorted.
func (m *Manager) ListPresets() []string {
	entries, err := os.ReadDir(m.PresetsDir())
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}

// LoadPreset replaces the engine settings with the named preset, keeping the
// current service settings, then persists the result as current.json.
func (m *Manager) LoadPreset(name string) error {
	data, err := os.ReadFile(filepath.Join(m.PresetsDir(), name+".json"))
	if err != nil {
		return fmt.Errorf("load preset %q: %w", name, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("load preset %q: %w", name, err)
	}

	m.mu.Lock()
	cfg.Service = m.config.Service
	cfg.Normalize()
	m.config = cfg
	onChanged := m.onChanged
	err = m.saveLocked()
	m.mu.Unlock()

	if onChanged != nil {
		onChanged()
	}
	return err
}

// SavePreset writes the current engine settings as a named preset. The
// service section is zeroed so presets stay portable.
func (m *Manager) SavePreset(name string) error {
	name = SanitizePresetName(name)
	if name == "" {
		return fmt.Errorf("invalid preset name")
	}
	if err := os.MkdirAll(m.PresetsDir(), 0o755); err != nil {
		return err
	}

	m.mu.Lock()
	cfg := m.config.Clone()
	m.mu.Unlock()
	cfg.Service = Service{}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(m.PresetsDir(), name+".json"), data, 0o644)
}
