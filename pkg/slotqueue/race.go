//go:build race

package slotqueue

// RaceEnabled is true when the race detector is active.
// Tests use it to skip concurrent cases: the detector cannot see the
// acquire/release ordering on the turn counters that guards each value.
const RaceEnabled = true
