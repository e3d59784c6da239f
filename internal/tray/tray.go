// Package tray provides system tray functionality using getlantern/systray.
package tray

import (
	"github.com/getlantern/systray"
)

// MenuItem represents a menu item
type MenuItem struct {
	ID       int
	Title    string
	Callback func()
	item     *systray.MenuItem
}

// Tray manages the system tray icon and menu. Menu items are registered
// before Run; mutators called from other goroutines (status callbacks) are
// no-ops until the menu is fully built, so they never race setupMenu.
type Tray struct {
	tooltip string
	items   []*MenuItem
	readyCh chan struct{}
	quitCh  chan struct{}
}

// New creates a new system tray
func New(tooltip string) *Tray {
	return &Tray{
		tooltip: tooltip,
		items:   make([]*MenuItem, 0),
		readyCh: make(chan struct{}),
		quitCh:  make(chan struct{}),
	}
}

// AddMenuItem adds a menu item to the tray
func (t *Tray) AddMenuItem(title string, callback func()) int {
	id := len(t.items)
	menuItem := &MenuItem{
		ID:       id,
		Title:    title,
		Callback: callback,
	}
	t.items = append(t.items, menuItem)
	return id
}

// AddSeparator adds a separator to the menu
func (t *Tray) AddSeparator() {
	t.items = append(t.items, nil) // nil indicates separator
}

// ready reports whether the menu has been fully built. readyCh closes only
// after every MenuItem.item is assigned, so a true result means the items
// are safe to touch from any goroutine.
func (t *Tray) ready() bool {
	select {
	case <-t.readyCh:
		return true
	default:
		return false
	}
}

// SetItemTitle relabels a menu item (used to flip Pause <-> Resume).
// Dropped silently before the tray is up.
func (t *Tray) SetItemTitle(id int, title string) {
	if !t.ready() {
		return
	}
	if id >= 0 && id < len(t.items) && t.items[id] != nil {
		t.items[id].Title = title
		t.items[id].item.SetTitle(title)
	}
}

// SetItemChecked sets the checked state of a menu item. Dropped silently
// before the tray is up.
func (t *Tray) SetItemChecked(id int, checked bool) {
	if !t.ready() {
		return
	}
	if id >= 0 && id < len(t.items) && t.items[id] != nil {
		if checked {
			t.items[id].item.Check()
		} else {
			t.items[id].item.Uncheck()
		}
	}
}

// SetTooltip updates the tray tooltip (used for live engine status).
func (t *Tray) SetTooltip(tooltip string) {
	if !t.ready() {
		// tray not up yet; the initial tooltip will apply
		return
	}
	systray.SetTooltip(tooltip)
}

// Run starts the tray event loop (blocks)
func (t *Tray) Run() {
	systray.Run(t.setupMenu, t.onExit)
}

func (t *Tray) onExit() {
	close(t.quitCh)
}

// setupMenu is called when systray is ready
func (t *Tray) setupMenu() {
	systray.SetTitle("RUNK")
	systray.SetTooltip(t.tooltip)
	systray.SetIcon(getIcon())

	// Create menu items
	for _, menuItem := range t.items {
		if menuItem == nil {
			// Separator
			systray.AddSeparator()
		} else {
			item := systray.AddMenuItem(menuItem.Title, "")
			menuItem.item = item

			// Handle clicks in goroutine
			if menuItem.Callback != nil {
				go func(mi *MenuItem) {
					for {
						select {
						case <-mi.item.ClickedCh:
							mi.Callback()
						case <-t.quitCh:
							return
						}
					}
				}(menuItem)
			}
		}
	}

	// Unblock the mutators only now that every item is wired.
	close(t.readyCh)
}

// Stop stops the tray
func (t *Tray) Stop() {
	systray.Quit()
}

// getIcon returns a placeholder icon (valid 16x16 ICO)
func getIcon() []byte {
	// A valid 16x16 32-bit ICO file with correct size and DIB header
	icon := make([]byte, 1118)
	// ICO Header
	copy(icon[0:6], []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00})
	// Icon Directory
	copy(icon[6:22], []byte{
		0x10, 0x10, 0x00, 0x00, 0x01, 0x00, 0x20, 0x00,
		0x48, 0x04, 0x00, 0x00, // Size: 1024 (pixels) + 40 (header) + 32 (mask) = 1096 bytes
		0x16, 0x00, 0x00, 0x00, // Offset
	})
	// DIB Header
	copy(icon[22:62], []byte{
		0x28, 0x00, 0x00, 0x00, // Size
		0x10, 0x00, 0x00, 0x00, // Width
		0x20, 0x00, 0x00, 0x00, // Height (16 * 2 for icon)
		0x01, 0x00, // Planes
		0x20, 0x00, // BPP
		0x00, 0x00, 0x00, 0x00, // Compression
		0x00, 0x04, 0x00, 0x00, // Image Size
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
	})
	// The rest (pixels and mask) can stay 0 for transparency
	return icon
}
