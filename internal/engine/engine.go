// Package engine implements the event-scheduling engine: a background loop
// that synthesizes randomized directional key presses through the injection
// daemon, with start/pause/stop control and status reporting.
package engine

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"runk/internal/config"
	"runk/internal/daemon"
	"runk/internal/input"
)

// Status strings delivered to the status sink. The two fatal-at-entry
// variants embed the reason in the text.
const (
	StatusRunning           = "Running"
	StatusPaused            = "Paused"
	StatusStopped           = "Stopped"
	StatusInsufficientKeys  = "Stopped: enable at least 2 keys"
	StatusDaemonUnavailable = "Stopped: ydotoold missing or failed"
)

const (
	// pausePoll is how often a paused loop re-checks for resume/stop.
	pausePoll = 150 * time.Millisecond

	// stopJoinTimeout bounds how long Stop waits for the loop to exit.
	stopJoinTimeout = 1500 * time.Millisecond
)

// Supervisor is the daemon lifecycle contract the loop depends on.
type Supervisor interface {
	EnsureReady() (string, error)
	Release()
}

// command is a tagged message consumed by the scheduling loop. A single
// channel replaces independent pause/stop booleans so the loop can never
// observe an ambiguous combined state.
type command int

const cmdTogglePause command = iota

// run is the state owned by one engine run. The supervisor handle belongs
// exclusively to this run; releaseOnce lets the loop's own teardown and a
// late Stop() share exactly one Release call.
type run struct {
	id    string
	sup   Supervisor
	cmds  chan command
	stopc chan struct{}
	done  chan struct{}

	stopOnce    sync.Once
	releaseOnce sync.Once
}

func (r *run) release() {
	r.releaseOnce.Do(r.sup.Release)
}

// Engine is the public control surface. One Engine drives at most one run
// at a time; Start while a run is active is a no-op.
type Engine struct {
	mu      sync.Mutex
	running bool
	cur     *run
	status  string

	// factories, replaced by tests
	newSupervisor func() Supervisor
	injectorFor   func(socket string) input.Injector
	newRand       func() *rand.Rand
}

// New creates an engine wired to the real ydotoold supervisor and ydotool
// injector, with a time-seeded random source per run.
func New() *Engine {
	return &Engine{
		status:        StatusStopped,
		newSupervisor: func() Supervisor { return daemon.New() },
		injectorFor:   func(socket string) input.Injector { return input.NewYdotool(socket) },
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// Start launches the scheduling loop in its own goroutine. The config is
// cloned and immutable for the duration of the run. onStatus is invoked from
// the loop goroutine on every state transition, and only on transitions.
func (e *Engine) Start(cfg *config.Config, onStatus func(string)) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	r := &run{
		id:    uuid.NewString(),
		sup:   e.newSupervisor(),
		cmds:  make(chan command, 4),
		stopc: make(chan struct{}),
		done:  make(chan struct{}),
	}
	e.running = true
	e.cur = r
	e.mu.Unlock()

	go e.loop(r, cfg.Clone(), onStatus)
}

// Stop signals the loop to end, waits a bounded interval for it to exit and
// always tears the supervisor down as a final step. Safe to call when no run
// is active, and repeatedly.
func (e *Engine) Stop() {
	e.mu.Lock()
	r := e.cur
	e.mu.Unlock()
	if r == nil {
		return
	}

	r.stopOnce.Do(func() { close(r.stopc) })
	select {
	case <-r.done:
	case <-time.After(stopJoinTimeout):
		log.Printf("Engine: loop did not exit within %v", stopJoinTimeout)
	}
	r.release()
}

// TogglePause flips the loop between Running and Paused. It has no effect
// when no run is active.
func (e *Engine) TogglePause() {
	e.mu.Lock()
	r, running := e.cur, e.running
	e.mu.Unlock()
	if r == nil || !running {
		return
	}

	select {
	case r.cmds <- cmdTogglePause:
	default:
		// a toggle is already pending; coalescing is fine
	}
}

// Status returns the last reported status string.
func (e *Engine) Status() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Running reports whether a run is active (Running or Paused).
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// RunID returns the identity of the active run, or "" when stopped.
func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.cur == nil {
		return ""
	}
	return e.cur.id
}

// loop is the scheduling state machine. It owns the run's supervisor handle
// and releases it unconditionally on exit, however the exit happens.
func (e *Engine) loop(r *run, cfg *config.Config, onStatus func(string)) {
	defer close(r.done)
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		r.release()
	}()

	status := func(s string) {
		e.mu.Lock()
		e.status = s
		e.mu.Unlock()
		if onStatus != nil {
			onStatus(s)
		}
	}

	vert, horiz := cfg.AxisCodes()
	if len(vert)+len(horiz) < 2 {
		status(StatusInsufficientKeys)
		return
	}

	socket, err := r.sup.EnsureReady()
	if err != nil {
		log.Printf("Engine: %v", err)
		status(StatusDaemonUnavailable)
		return
	}

	rng := e.newRand()
	disp := input.NewDispatcher(
		e.injectorFor(socket), rng,
		secs(cfg.PressMin), secs(cfg.PressMax),
		cfg.DoubleTapEnabled, cfg.DoubleTapChance,
	)

	diagonal := cfg.EnableDiagonals && len(vert) > 0 && len(horiz) > 0
	idleChance := cfg.IdleChance
	if idleChance < 2 {
		idleChance = 2
	}

	log.Printf("Engine: run %s starting (%d keys, diagonals=%v)", r.id, len(vert)+len(horiz), diagonal)
	status(StatusRunning)

	paused := false
	for {
		select {
		case <-r.stopc:
			status(StatusStopped)
			return
		default:
		}

	drain:
		for {
			select {
			case <-r.cmds:
				paused = !paused
			default:
				break drain
			}
		}

		if paused {
			status(StatusPaused)
			for paused {
				select {
				case <-r.stopc:
					status(StatusStopped)
					return
				case <-r.cmds:
					paused = !paused
				case <-time.After(pausePoll):
				}
			}
			status(StatusRunning)
			continue
		}

		if cfg.IdleEnabled && rng.Intn(idleChance) == 0 {
			if !sleepUnlessStopped(r.stopc, uniform(rng, secs(cfg.IdleMin), secs(cfg.IdleMax))) {
				status(StatusStopped)
				return
			}
		}

		keys := planCycle(rng, vert, horiz, diagonal)
		for _, code := range keys {
			disp.PressMaybeDouble(code)
		}
		for i := len(keys) - 1; i >= 0; i-- {
			disp.PressMaybeDouble(keys[i])
		}

		if !sleepUnlessStopped(r.stopc, uniform(rng, secs(cfg.MinDelay), secs(cfg.MaxDelay))) {
			status(StatusStopped)
			return
		}
	}
}

// sleepUnlessStopped sleeps for d, returning false if the stop channel
// closes first.
func sleepUnlessStopped(stopc <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-stopc:
			return false
		default:
			return true
		}
	}
	select {
	case <-stopc:
		return false
	case <-time.After(d):
		return true
	}
}

func uniform(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)+1))
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
