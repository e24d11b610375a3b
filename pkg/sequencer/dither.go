// Package sequencer converts a timestamp-ordered frame stream into a fixed-cadence byte stream.
package sequencer

import "math"

// Accumulator carries the error-diffusion state between writes of one output session.
// Both fields stay in the closed range [0, 1] after every step. The upper bound is
// closed: a whole tick is only settled once it is strictly exceeded, so a
// field can rest at exactly 1 (e.g. Gain after a zero-length frame) until the next step.
type Accumulator struct {
	Gain float64 // surplus from frames shorter than one output tick
	Loss float64 // fractional ticks dropped by flooring longer frames
}

// Dither converts a frame duration into the number of times the frame must be emitted
// at fps, folding rounding error into acc.
//
// A frame spanning at least one output tick is never skipped. A frame shorter than one
// tick is emitted once unless the accumulated surplus reaches a whole tick, in which
// case it is skipped.
func Dither(acc Accumulator, durationSeconds, fps float64) (int, Accumulator) {
	total := durationSeconds * fps
	floored := math.Floor(total)

	count := int(floored)
	if count < 1 {
		count = 1
	}
	if floored == 0 {
		acc.Gain += 1 - total
	} else {
		acc.Loss += total - floored
	}

	for acc.Loss > 1 {
		acc.Loss--
		count++
	}
	for acc.Gain > 1 {
		acc.Gain--
		count--
	}
	if count < 0 {
		count = 0
	}
	return count, acc
}
