// Package input delivers synthesized key events to the injection daemon.
package input

import (
	"fmt"
	"os"
	"os/exec"
)

// Injector sends a single key transition to the injection daemon.
type Injector interface {
	// Key presses (down=true) or releases (down=false) the given key code.
	Key(code int, down bool) error
}

const clientBin = "ydotool"

// Ydotool injects key events by invoking the ydotool client against a
// specific daemon socket.
type Ydotool struct {
	socket string
	client string
}

// NewYdotool creates an injector bound to the given daemon socket.
func NewYdotool(socket string) *Ydotool {
	return &Ydotool{socket: socket, client: clientBin}
}

// Key runs `ydotool key <code>:<state>`. Output is discarded; the exit
// status is returned but callers treat failures as non-fatal.
func (y *Ydotool) Key(code int, down bool) error {
	state := 0
	if down {
		state = 1
	}

	cmd := exec.Command(y.client, "key", fmt.Sprintf("%d:%d", code, state))
	cmd.Env = append(os.Environ(), "YDOTOOL_SOCKET="+y.socket)
	return cmd.Run()
}
