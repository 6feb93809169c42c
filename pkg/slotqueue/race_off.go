//go:build !race

package slotqueue

// RaceEnabled is false when the race detector is not active.
const RaceEnabled = false
