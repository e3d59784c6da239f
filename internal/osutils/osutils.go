// Package osutils provides small OS-level helpers shared by the daemon
// supervisor and the configuration layer.
package osutils

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// RuntimeDir returns the user's private runtime directory, or "" if the
// environment does not advertise one.
func RuntimeDir() string {
	return os.Getenv("XDG_RUNTIME_DIR")
}

// ConfigHome returns the base directory for user configuration files,
// honoring XDG_CONFIG_HOME with a ~/.config fallback.
func ConfigHome() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config"), nil
}

// Owner returns the current process owner as a "uid:gid" string, the form
// ydotoold expects for --socket-own.
func Owner() string {
	return fmt.Sprintf("%d:%d", unix.Getuid(), unix.Getgid())
}
