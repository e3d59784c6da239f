// Package embedded provides the built-in preset files. They are written to
// the user's presets directory on first run so the repo stays clean.
package embedded

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
)

//go:embed presets/*.json
var presetsFS embed.FS

// PresetNames returns the names of the built-in presets (without extension),
// sorted alphabetically.
func PresetNames() []string {
	entries, err := presetsFS.ReadDir("presets")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), path.Ext(entry.Name())))
	}
	sort.Strings(names)
	return names
}

// Preset returns the raw JSON for a built-in preset by name.
func Preset(name string) ([]byte, error) {
	data, err := presetsFS.ReadFile("presets/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("built-in preset not found: %s", name)
	}
	return data, nil
}
