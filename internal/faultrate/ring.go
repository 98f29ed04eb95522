// Package faultrate implements a tick-scoped duplicate-fault limiter,
// grounded on the teacher's catrate package: the same sliding-window idea
// (a bounded ring of recent event stamps per category, with expired
// entries dropped from the front), re-based on kernel ticks instead of
// wall-clock time since the kernel has no clock but its own tick counter
// and the caller already holds the kernel's critical section.
package faultrate

import "golang.org/x/exp/constraints"

// ring is a fixed-capacity FIFO of ordered stamps. Unlike catrate's
// ringBuffer it never grows past its capacity: Push drops the oldest
// entry once full, since faultrate only needs to know how many events
// fall within the current window, not an unbounded history.
type ring[E constraints.Ordered] struct {
	s    []E
	r, w int
	n    int
}

func newRing[E constraints.Ordered](capacity int) *ring[E] {
	return &ring[E]{s: make([]E, capacity)}
}

func (x *ring[E]) Len() int { return x.n }

func (x *ring[E]) Cap() int { return len(x.s) }

// Push appends val, evicting the oldest entry if the ring is full.
func (x *ring[E]) Push(val E) {
	if len(x.s) == 0 {
		return
	}
	x.s[x.w] = val
	x.w = (x.w + 1) % len(x.s)
	if x.n == len(x.s) {
		x.r = (x.r + 1) % len(x.s)
	} else {
		x.n++
	}
}

// DropBefore discards leading entries while keep(stamp) is false,
// returning the number of surviving entries.
func (x *ring[E]) DropBefore(keep func(E) bool) int {
	for x.n > 0 && !keep(x.s[x.r]) {
		x.r = (x.r + 1) % len(x.s)
		x.n--
	}
	return x.n
}
