// Package autostart provides auto-start-on-login functionality through XDG
// desktop entries (~/.config/autostart).
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"runk/internal/osutils"
)

const desktopEntryName = "runk.desktop"

const desktopEntry = `[Desktop Entry]
Type=Application
Name=RUNK
Comment=Humanized input scheduler
Exec={{.ExecutablePath}}
Terminal=false
X-GNOME-Autostart-enabled=true
`

// Enable enables auto-start on login
func Enable() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	dir, err := autostartDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmpl, err := template.New("desktop").Parse(desktopEntry)
	if err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, desktopEntryName))
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, struct{ ExecutablePath string }{execPath})
}

// Disable disables auto-start on login
func Disable() error {
	dir, err := autostartDir()
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(dir, desktopEntryName)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	dir, err := autostartDir()
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(dir, desktopEntryName))
	return err == nil
}

func autostartDir() (string, error) {
	base, err := osutils.ConfigHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "autostart"), nil
}
