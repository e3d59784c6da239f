package engine

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runk/internal/config"
	"runk/internal/input"
)

type fakeSupervisor struct {
	mu           sync.Mutex
	ensureCalls  int
	releaseCalls int
	err          error
}

func (f *fakeSupervisor) EnsureReady() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/fake.sock", nil
}

func (f *fakeSupervisor) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseCalls++
}

func (f *fakeSupervisor) counts() (ensure, release int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ensureCalls, f.releaseCalls
}

type keyEvent struct {
	code int
	down bool
}

type recordingInjector struct {
	mu     sync.Mutex
	events []keyEvent
}

func (r *recordingInjector) Key(code int, down bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, keyEvent{code: code, down: down})
	return nil
}

func (r *recordingInjector) snapshot() []keyEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]keyEvent, len(r.events))
	copy(out, r.events)
	return out
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (s *statusRecorder) record(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *statusRecorder) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.statuses))
	copy(out, s.statuses)
	return out
}

func (s *statusRecorder) count(status string) int {
	n := 0
	for _, st := range s.snapshot() {
		if st == status {
			n++
		}
	}
	return n
}

func (s *statusRecorder) waitFor(t *testing.T, status string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, st := range s.snapshot() {
			if st == status {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status %q not reported within %v; got %v", status, timeout, s.snapshot())
}

func newTestEngine(sup *fakeSupervisor, inj *recordingInjector, seed int64) *Engine {
	e := New()
	e.newSupervisor = func() Supervisor { return sup }
	e.injectorFor = func(string) input.Injector { return inj }
	e.newRand = func() *rand.Rand { return rand.New(rand.NewSource(seed)) }
	return e
}

// testConfig enables the given keys with timings fast enough for tests.
func testConfig(enabled ...string) *config.Config {
	cfg := config.DefaultConfig()
	for _, name := range config.KeyNames {
		k := cfg.Keys[name]
		k.Enabled = false
		cfg.Keys[name] = k
	}
	for _, name := range enabled {
		k := cfg.Keys[name]
		k.Enabled = true
		cfg.Keys[name] = k
	}
	cfg.MinDelay = 0.01
	cfg.MaxDelay = 0.01
	cfg.PressMin = 0.001
	cfg.PressMax = 0.001
	cfg.IdleEnabled = false
	cfg.DoubleTapEnabled = false
	return cfg
}

func waitStopped(t *testing.T, e *Engine, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !e.Running() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("engine still running after %v", timeout)
}

func TestStartWithInsufficientKeysNeverTouchesSupervisor(t *testing.T) {
	sup := &fakeSupervisor{}
	inj := &recordingInjector{}
	e := newTestEngine(sup, inj, 1)
	rec := &statusRecorder{}

	e.Start(testConfig("W"), rec.record)
	rec.waitFor(t, StatusInsufficientKeys, time.Second)
	waitStopped(t, e, time.Second)

	ensure, _ := sup.counts()
	assert.Equal(t, 0, ensure, "supervisor must not be acquired")
	assert.Empty(t, inj.snapshot(), "no events may be dispatched")
	assert.Equal(t, []string{StatusInsufficientKeys}, rec.snapshot())
}

func TestStartWithUnavailableDaemonStopsBeforeDispatch(t *testing.T) {
	sup := &fakeSupervisor{err: errors.New("no such binary")}
	inj := &recordingInjector{}
	e := newTestEngine(sup, inj, 1)
	rec := &statusRecorder{}

	e.Start(testConfig("W", "A", "S", "D"), rec.record)
	rec.waitFor(t, StatusDaemonUnavailable, time.Second)
	waitStopped(t, e, time.Second)

	assert.Empty(t, inj.snapshot(), "no events may be dispatched")
	assert.Equal(t, []string{StatusDaemonUnavailable}, rec.snapshot())
}

func TestReleaseExactlyOncePerRun(t *testing.T) {
	cases := []struct {
		name string
		cfg  *config.Config
		sup  *fakeSupervisor
	}{
		{"insufficient keys", testConfig("W"), &fakeSupervisor{}},
		{"daemon unavailable", testConfig("W", "S"), &fakeSupervisor{err: errors.New("boom")}},
		{"user stop", testConfig("W", "A", "S", "D"), &fakeSupervisor{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(tc.sup, &recordingInjector{}, 1)
			rec := &statusRecorder{}

			e.Start(tc.cfg, rec.record)
			if tc.sup.err == nil && tc.cfg.EnabledCount() >= 2 {
				rec.waitFor(t, StatusRunning, time.Second)
			}
			e.Stop()
			waitStopped(t, e, time.Second)

			// a second Stop must not release again
			e.Stop()

			_, release := tc.sup.counts()
			assert.Equal(t, 1, release, "release must happen exactly once")
		})
	}
}

func TestDoubleStartIsNoop(t *testing.T) {
	sup := &fakeSupervisor{}
	e := newTestEngine(sup, &recordingInjector{}, 1)
	rec := &statusRecorder{}

	cfg := testConfig("W", "A", "S", "D")
	e.Start(cfg, rec.record)
	rec.waitFor(t, StatusRunning, time.Second)
	e.Start(cfg, rec.record)

	time.Sleep(100 * time.Millisecond)
	ensure, _ := sup.counts()
	assert.Equal(t, 1, ensure, "second start must not acquire the supervisor again")
	assert.Equal(t, 1, rec.count(StatusRunning))

	e.Stop()
}

func TestRunDispatchesFourPressBursts(t *testing.T) {
	sup := &fakeSupervisor{}
	inj := &recordingInjector{}
	e := newTestEngine(sup, inj, 7)
	rec := &statusRecorder{}

	cfg := testConfig("W", "A", "S", "D")
	cfg.EnableDiagonals = true
	cfg.MinDelay = 0.02
	cfg.MaxDelay = 0.02

	e.Start(cfg, rec.record)
	rec.waitFor(t, StatusRunning, time.Second)
	time.Sleep(300 * time.Millisecond)

	began := time.Now()
	e.Stop()
	assert.Less(t, time.Since(began), 1500*time.Millisecond, "stop must settle within the join interval")
	waitStopped(t, e, time.Second)

	events := inj.snapshot()
	require.NotEmpty(t, events, "expected dispatch activity")

	// every press is a down/up pair for the same code
	require.Zero(t, len(events)%2, "events must pair up")
	presses := make([]int, 0, len(events)/2)
	for i := 0; i < len(events); i += 2 {
		assert.True(t, events[i].down, "event %d should be key-down", i)
		assert.False(t, events[i+1].down, "event %d should be key-up", i+1)
		assert.Equal(t, events[i].code, events[i+1].code, "hold must release the same code")
		presses = append(presses, events[i].code)
	}

	// with double taps disabled, each cycle is exactly 4 presses:
	// forward pass then reverse pass over a 2-code move
	require.Zero(t, len(presses)%4, "bursts must come in fours, got %d presses", len(presses))
	for i := 0; i < len(presses); i += 4 {
		assert.Equal(t, presses[i], presses[i+3], "reverse pass must mirror the forward pass")
		assert.Equal(t, presses[i+1], presses[i+2], "reverse pass must mirror the forward pass")
	}

	assert.Equal(t, 1, rec.count(StatusRunning))
	assert.Equal(t, 1, rec.count(StatusStopped))
	_, release := sup.counts()
	assert.Equal(t, 1, release)
}

func TestPauseReportsOncePerTransition(t *testing.T) {
	sup := &fakeSupervisor{}
	e := newTestEngine(sup, &recordingInjector{}, 3)
	rec := &statusRecorder{}

	e.Start(testConfig("W", "A", "S", "D"), rec.record)
	rec.waitFor(t, StatusRunning, time.Second)

	e.TogglePause()
	rec.waitFor(t, StatusPaused, time.Second)

	// several poll intervals pass; Paused must not repeat
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 1, rec.count(StatusPaused))
	assert.Equal(t, StatusPaused, e.Status())

	e.TogglePause()
	deadline := time.Now().Add(time.Second)
	for rec.count(StatusRunning) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 2, rec.count(StatusRunning), "resume must report Running again")

	e.Stop()
	assert.Equal(t, StatusStopped, e.Status())
}

func TestTogglePauseAfterStopHasNoEffect(t *testing.T) {
	sup := &fakeSupervisor{}
	e := newTestEngine(sup, &recordingInjector{}, 1)
	rec := &statusRecorder{}

	e.Start(testConfig("W", "A", "S", "D"), rec.record)
	rec.waitFor(t, StatusRunning, time.Second)
	e.Stop()
	waitStopped(t, e, time.Second)

	e.TogglePause()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StatusStopped, e.Status())
	assert.Zero(t, rec.count(StatusPaused))
}

func TestStopWithoutStartIsSafe(t *testing.T) {
	e := New()
	e.Stop()
	e.Stop()
	assert.Equal(t, StatusStopped, e.Status())
	assert.Empty(t, e.RunID())
}

func TestRunIDPresentWhileRunning(t *testing.T) {
	sup := &fakeSupervisor{}
	e := newTestEngine(sup, &recordingInjector{}, 1)
	rec := &statusRecorder{}

	e.Start(testConfig("W", "A", "S", "D"), rec.record)
	rec.waitFor(t, StatusRunning, time.Second)
	assert.NotEmpty(t, e.RunID())

	e.Stop()
	waitStopped(t, e, time.Second)
	assert.Empty(t, e.RunID())
}

func TestIdleDrawsRespectStopRequest(t *testing.T) {
	// long idle gaps must not delay stop beyond the join interval
	sup := &fakeSupervisor{}
	e := newTestEngine(sup, &recordingInjector{}, 5)
	rec := &statusRecorder{}

	cfg := testConfig("W", "A", "S", "D")
	cfg.IdleEnabled = true
	cfg.IdleChance = 2
	cfg.IdleMin = 30
	cfg.IdleMax = 60

	e.Start(cfg, rec.record)
	rec.waitFor(t, StatusRunning, time.Second)
	time.Sleep(100 * time.Millisecond)

	began := time.Now()
	e.Stop()
	assert.Less(t, time.Since(began), 1500*time.Millisecond)
	waitStopped(t, e, time.Second)
}
