package autostart

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnableDisableCycle(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	assert.False(t, IsEnabled())

	require.NoError(t, Enable())
	assert.True(t, IsEnabled())

	data, err := os.ReadFile(filepath.Join(base, "autostart", "runk.desktop"))
	require.NoError(t, err)
	exe, err := os.Executable()
	require.NoError(t, err)
	assert.Contains(t, string(data), "Exec="+exe)
	assert.Contains(t, string(data), "[Desktop Entry]")

	require.NoError(t, Disable())
	assert.False(t, IsEnabled())

	// disabling twice is fine
	assert.NoError(t, Disable())
}
