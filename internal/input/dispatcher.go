package input

import (
	"math/rand"
	"time"
)

const (
	doubleTapGapMin = 30 * time.Millisecond
	doubleTapGapMax = 120 * time.Millisecond
)

// Dispatcher turns planned key codes into down/hold/up event pairs with
// randomized hold durations, and optionally repeats a press as a double tap.
// It is used from a single engine goroutine; the rng is not shared.
type Dispatcher struct {
	inj Injector
	rng *rand.Rand

	pressMin time.Duration
	pressMax time.Duration

	doubleEnabled bool
	doubleChance  int

	// sleep is swapped out by tests.
	sleep func(time.Duration)
}

// NewDispatcher creates a dispatcher. Hold durations are drawn uniformly
// from [pressMin, pressMax]; doubleChance means "1 in N presses" and is
// clamped to at least 2.
func NewDispatcher(inj Injector, rng *rand.Rand, pressMin, pressMax time.Duration, doubleEnabled bool, doubleChance int) *Dispatcher {
	if pressMax < pressMin {
		pressMax = pressMin
	}
	if doubleChance < 2 {
		doubleChance = 2
	}
	return &Dispatcher{
		inj:           inj,
		rng:           rng,
		pressMin:      pressMin,
		pressMax:      pressMax,
		doubleEnabled: doubleEnabled,
		doubleChance:  doubleChance,
		sleep:         time.Sleep,
	}
}

// Press sends key-down, holds for a randomized duration, then key-up.
// Injection failures are swallowed; a lost event is acceptable and the next
// cycle proceeds normally.
func (d *Dispatcher) Press(code int) {
	_ = d.inj.Key(code, true)
	d.sleep(d.uniform(d.pressMin, d.pressMax))
	_ = d.inj.Key(code, false)
}

// PressMaybeDouble presses the key and, with 1-in-doubleChance probability,
// repeats the press after a short gap.
func (d *Dispatcher) PressMaybeDouble(code int) {
	d.Press(code)
	if d.doubleEnabled && d.rng.Intn(d.doubleChance) == 0 {
		d.sleep(d.uniform(doubleTapGapMin, doubleTapGapMax))
		d.Press(code)
	}
}

func (d *Dispatcher) uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(d.rng.Int63n(int64(max-min)+1))
}
