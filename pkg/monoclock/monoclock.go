// Package monoclock provides the node's 32-bit millisecond timebase.
//
// Embedded tick counters are 32-bit and wrap about every 49.7 days; every
// interval comparison in the node goes through Elapsed, which stays correct
// across the wrap as long as the interval itself is shorter than one full
// counter period.
package monoclock

import "time"

// Clock yields monotonic milliseconds since an arbitrary origin.
type Clock interface {
	NowMillis() uint32
}

// Wall derives millis from the process monotonic clock.
type Wall struct {
	start time.Time
}

func NewWall() *Wall {
	return &Wall{start: time.Now()}
}

func (w *Wall) NowMillis() uint32 {
	return uint32(time.Since(w.start).Milliseconds())
}

// Elapsed returns now−since in milliseconds. Unsigned subtraction makes it
// wraparound-safe: Elapsed(5, 0xFFFF_FFFB) is 10, not negative.
func Elapsed(now, since uint32) uint32 {
	return now - since
}
