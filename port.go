package rk0

// port.go defines the port contract of C5 (spec.md §4.1/§6): everything
// the core requires from the CPU-specific layer, kept entirely as an
// interface since register save/restore, trap vectors, and MMIO cannot
// be expressed in portable Go. Nothing in this package calls into
// hardware; a host program implements Port and drives the kernel.

// Port is the set of callbacks the kernel core needs from its host in
// order to behave like a real-time scheduler: requesting a context
// switch and knowing whether it is presently in interrupt context. The
// ready-bitmap's lowest set bit is found by the core itself
// (readyqueue.go, math/bits). A software
// simulator (cmd/rk0sim) and a real hardware port both implement this
// the same way — only the dispatch mechanics differ.
type Port interface {
	// PendContextSwitch asks the port to arrange for a context switch at
	// the next safe opportunity (spec.md §4.1's PendSV trigger). The
	// kernel does not block waiting for it; it is advisory.
	PendContextSwitch()

	// IsISR reports whether the calling context is currently inside an
	// interrupt handler. Blocking primitives invoked with a non-zero
	// timeout from ISR context are a fault (spec.md §5).
	IsISR() bool
}

// noopPort is used when a Kernel is constructed without an explicit
// Port (e.g. for unit tests that only exercise bookkeeping, not
// dispatch). PendContextSwitch is a no-op; IsISR always reports false.
type noopPort struct{}

func (noopPort) PendContextSwitch() {}
func (noopPort) IsISR() bool        { return false }
