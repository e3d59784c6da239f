// Package daemon supervises the ydotoold injection daemon: it provisions a
// private socket, launches the daemon when needed and tears it down on stop.
package daemon

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"runk/internal/osutils"
)

// ErrUnavailable is returned when the injection daemon cannot be confirmed
// running nor started.
var ErrUnavailable = errors.New("injection daemon unavailable")

const (
	daemonBin = "ydotoold"

	// settleDelay is the fixed grace period after launching the daemon
	// before its socket is assumed usable.
	settleDelay = 250 * time.Millisecond

	// stopTimeout bounds the graceful-terminate wait before SIGKILL.
	stopTimeout = time.Second

	probeTimeout = 200 * time.Millisecond
)

// Supervisor owns at most one ydotoold process and its socket. A Supervisor
// belongs to exactly one engine run; the mutex only makes EnsureReady and
// Release safe to call in any order and any number of times.
type Supervisor struct {
	mu     sync.Mutex
	proc   *exec.Cmd
	socket string
	owned  bool

	// binary overrides the daemon executable name in tests.
	binary string
}

// New creates a Supervisor for the stock ydotoold binary.
func New() *Supervisor {
	return &Supervisor{binary: daemonBin}
}

// EnsureReady makes sure an injection daemon is reachable and returns its
// socket path. A compatible daemon already running for this user is reused
// and never torn down by us; otherwise one is launched on a private,
// pid-unique socket. Returns ErrUnavailable if neither works.
func (s *Supervisor) EnsureReady() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.socket != "" {
		return s.socket, nil
	}

	if sock := conventionalSocket(); sock != "" && probe(sock) {
		log.Printf("Daemon: reusing running ydotoold at %s", sock)
		s.socket = sock
		s.owned = false
		return sock, nil
	}

	sock := privateSocketPath()
	if err := os.Remove(sock); err != nil && !os.IsNotExist(err) {
		log.Printf("Daemon: could not remove stale socket %s: %v", sock, err)
	}

	cmd := exec.Command(s.binary,
		"--socket-path="+sock,
		"--socket-own="+osutils.Owner(),
	)
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.proc = cmd
	s.socket = sock
	s.owned = true

	time.Sleep(settleDelay)
	log.Printf("Daemon: started %s (pid %d) on %s", s.binary, cmd.Process.Pid, sock)
	return sock, nil
}

// Release tears down the daemon if this supervisor started it: SIGTERM, a
// bounded wait, then SIGKILL, and best-effort socket removal. Safe to call
// repeatedly and before EnsureReady.
func (s *Supervisor) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil && s.proc.Process != nil {
		if err := s.proc.Process.Signal(unix.SIGTERM); err != nil {
			log.Printf("Daemon: terminate failed: %v", err)
		}

		waited := make(chan error, 1)
		go func(cmd *exec.Cmd) { waited <- cmd.Wait() }(s.proc)
		select {
		case <-waited:
		case <-time.After(stopTimeout):
			log.Printf("Daemon: ydotoold did not exit, killing")
			_ = s.proc.Process.Signal(unix.SIGKILL)
			<-waited
		}
		s.proc = nil
	}

	if s.owned && s.socket != "" {
		if err := os.Remove(s.socket); err != nil && !os.IsNotExist(err) {
			log.Printf("Daemon: could not remove socket %s: %v", s.socket, err)
		}
	}
	s.socket = ""
	s.owned = false
}

// Socket returns the active socket path, or "" before EnsureReady.
func (s *Supervisor) Socket() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.socket
}

// privateSocketPath derives a socket path unique to this process so that
// concurrent instances cannot collide.
func privateSocketPath() string {
	pid := os.Getpid()
	if dir := osutils.RuntimeDir(); dir != "" {
		return filepath.Join(dir, fmt.Sprintf("ydotool-runk-%d.sock", pid))
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, fmt.Sprintf(".ydotool_runk_socket_%d", pid))
}

// conventionalSocket returns the socket path an externally managed ydotoold
// would use for this user, or "".
func conventionalSocket() string {
	if sock := os.Getenv("YDOTOOL_SOCKET"); sock != "" {
		return sock
	}
	if dir := osutils.RuntimeDir(); dir != "" {
		return filepath.Join(dir, ".ydotool_socket")
	}
	return ""
}

// probe reports whether something is accepting connections on the socket.
func probe(sock string) bool {
	conn, err := net.DialTimeout("unix", sock, probeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
