package rk0

// eventflags.go implements C11, per-task event flags (spec.md §4.9):
// a 32-bit event register with ANY/ALL wait semantics, held directly on
// the TCB (per SPEC_FULL.md §4's Open-Question resolution: the legacy
// kEventInit/Sleep/Wake/Signal object is not implemented, only the
// richer TCB-event-flags + sleep-queue combination).

// satisfied reports whether current meets required under mode.
func satisfied(current, required uint32, mode EventWaitMode) bool {
	if mode == WaitAll {
		return current&required == required
	}
	return current&required != 0
}

// EventGet waits for the calling task's own required bits, per
// spec.md's kTaskEventGet. required must be non-zero. On success the
// consumed bits are cleared from the task's event register and the
// pre-clear snapshot is returned as got.
func (k *Kernel) EventGet(required uint32, mode EventWaitMode, timeout Ticks) (got uint32, res Result) {
	k.mu.Lock()
	if required == 0 {
		res = k.faultLocked(ErrInvalidParam)
		k.mu.Unlock()
		return 0, res
	}
	self := k.running
	if satisfied(self.eventCurrent, required, mode) {
		got = self.eventCurrent
		self.eventCurrent &^= required
		k.mu.Unlock()
		return got, Success
	}
	if timeout == NoWait {
		k.mu.Unlock()
		return 0, ErrFlagsNotMet
	}
	self.eventRequired = required
	self.eventMode = mode
	res = k.blockOn(nil, StatePending, tagEventFlags, timeout)
	if res == ErrTimeout {
		return 0, ErrTimeout
	}
	return self.eventGot, res
}

// EventSet ORs mask into h's event register and, if h is PENDING and its
// wait condition is now satisfied, readies it (spec.md's kTaskEventSet).
// mask == 0 is rejected.
func (k *Kernel) EventSet(h Handle, mask uint32) Result {
	k.mu.Lock()
	if mask == 0 {
		res := k.faultLocked(ErrInvalidParam)
		k.mu.Unlock()
		return res
	}
	if h.tcb == nil {
		res := k.faultLocked(ErrObjectNull)
		k.mu.Unlock()
		return res
	}
	k.setEventFlagsLocked(h.tcb, mask)
	return k.finishLocked(Success)
}

// setEventFlagsLocked is EventSet's body, factored out so the tick
// handler (signaling the post-processing task's timer-ready flag) and
// any other internal waker can apply it without re-entering the lock.
// Must be called with mu held.
func (k *Kernel) setEventFlagsLocked(tcb *TCB, mask uint32) {
	tcb.eventCurrent |= mask
	if tcb.state == StatePending && satisfied(tcb.eventCurrent, tcb.eventRequired, tcb.eventMode) {
		tcb.eventGot = tcb.eventCurrent
		tcb.eventCurrent &^= tcb.eventRequired
		k.taskTimeouts.Remove(&tcb.timeoutNode)
		tcb.timedOut = false
		tcb.state = StateReady
		k.ready.PushReady(tcb)
	}
}

// EventClear ANDs mask out of h's event register. Does not affect any
// task currently pending on a condition it has already satisfied
// (spec.md's kTaskEventClear).
func (k *Kernel) EventClear(h Handle, mask uint32) Result {
	k.mu.Lock()
	defer k.mu.Unlock()
	if h.tcb == nil {
		return k.faultLocked(ErrObjectNull)
	}
	h.tcb.eventCurrent &^= mask
	return Success
}
