package engine

import "math/rand"

// planCycle decides which two key codes make up the next simulated move.
//
// When diagonal moves are eligible the cycle is a coin flip between a
// diagonal (one vertical code plus one horizontal code) and a straight axis
// move. An axis move picks a first code from one axis and pairs it with the
// opposite code on that axis; if the axis has only one enabled key the move
// collapses to pressing the same key twice. The pair order is reversed with
// probability 0.5.
//
// vert and horiz must not both be empty. The caller validates the
// at-least-two-enabled-keys precondition once at engine start.
func planCycle(rng *rand.Rand, vert, horiz []int, diagonal bool) []int {
	var keys []int

	if diagonal && rng.Intn(2) == 0 {
		keys = []int{
			vert[rng.Intn(len(vert))],
			horiz[rng.Intn(len(horiz))],
		}
	} else {
		axis := vert
		switch {
		case len(vert) > 0 && len(horiz) > 0:
			if rng.Intn(2) == 1 {
				axis = horiz
			}
		case len(vert) == 0:
			axis = horiz
		}

		first := axis[rng.Intn(len(axis))]
		second := first
		for _, code := range axis {
			if code != first {
				second = code
				break
			}
		}
		keys = []int{first, second}
	}

	if rng.Float64() < 0.5 {
		keys[0], keys[1] = keys[1], keys[0]
	}
	return keys
}
