package rk0

// semaphore.go implements C9 (spec.md §4.6): counting and binary
// semaphores with a priority-ordered waiting queue.

// Semaphore is a counting semaphore; Max == 1 makes it binary.
type Semaphore struct {
	k        *Kernel
	value    int
	max      int
	q        waitQueue
	initDone bool
}

// NewSemaphore creates a semaphore with the given initial value and max
// value (spec.md's kSemaphoreInit). 0 < max is required; initial must
// be in 0..=max.
func (k *Kernel) NewSemaphore(initial, max int) (*Semaphore, Result) {
	if max <= 0 || initial < 0 || initial > max {
		return nil, k.faultStandalone(ErrInvalidParam)
	}
	return &Semaphore{k: k, value: initial, max: max, initDone: true}, Success
}

// Pend acquires the semaphore, blocking up to timeout if unavailable
// (spec.md §4.6 kSemaphorePend).
func (s *Semaphore) Pend(timeout Ticks) Result {
	k := s.k
	k.mu.Lock()
	if !s.initDone {
		res := k.faultLocked(ErrObjectNotInit)
		k.mu.Unlock()
		return res
	}
	if s.value > 0 {
		s.value--
		k.mu.Unlock()
		return Success
	}
	if timeout == NoWait {
		k.mu.Unlock()
		return ErrSemaBlocked
	}
	return k.blockOn(&s.q, StateBlocked, tagBlocking, timeout)
}

// Post releases the semaphore: wakes the highest-priority waiter if
// any, else increments value up to max (spec.md §4.6 kSemaphorePost).
// Returns ErrSemaFull if already at max with no waiters.
func (s *Semaphore) Post() Result {
	k := s.k
	k.mu.Lock()
	if !s.initDone {
		res := k.faultLocked(ErrObjectNotInit)
		return k.finishLocked(res)
	}
	if tcb := s.q.front(); tcb != nil {
		k.unblockLocked(tcb, false)
		return k.finishLocked(Success)
	}
	if s.value >= s.max {
		return k.finishLocked(ErrSemaFull)
	}
	s.value++
	return k.finishLocked(Success)
}

// Flush wakes every waiter (spec.md §4.6 kSemaphoreFlush), atomically
// with respect to intermediate preemption.
func (s *Semaphore) Flush() Result {
	k := s.k
	k.mu.Lock()
	k.schedLck++
	res := k.wakeNLocked(&s.q, 0)
	k.schedLck--
	return k.finishLocked(res)
}

// SemaphoreState is the rich introspection snapshot supplementing
// spec.md's bare kSemaphoreQuery count (SPEC_FULL.md §4), grounded on
// the original's kerr.c fault-trace style of carrying full context.
type SemaphoreState struct {
	Value       int
	Max         int
	WaiterCount int
}

// Query returns a snapshot of the semaphore's state (spec.md's
// kSemaphoreQuery, enriched per SPEC_FULL.md §4).
func (s *Semaphore) Query() (SemaphoreState, Result) {
	k := s.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if !s.initDone {
		return SemaphoreState{}, k.faultLocked(ErrObjectNotInit)
	}
	return SemaphoreState{Value: s.value, Max: s.max, WaiterCount: s.q.Len()}, Success
}

// faultStandalone routes a fatal Result through the fault handler when
// no mu is held yet (construction-time validation).
func (k *Kernel) faultStandalone(res Result) Result {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.faultLocked(res)
}
