package embedded

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetNamesSorted(t *testing.T) {
	names := PresetNames()
	require.NotEmpty(t, names)
	assert.True(t, sort.StringsAreSorted(names))
	assert.Contains(t, names, "Default")
	assert.Contains(t, names, "Gaming")
	assert.Contains(t, names, "Subtle")
}

func TestPresetsAreValidJSON(t *testing.T) {
	for _, name := range PresetNames() {
		data, err := Preset(name)
		require.NoError(t, err, "preset %s", name)
		var parsed map[string]interface{}
		assert.NoError(t, json.Unmarshal(data, &parsed), "preset %s", name)
	}
}

func TestUnknownPresetErrors(t *testing.T) {
	_, err := Preset("NoSuchPreset")
	assert.Error(t, err)
}
