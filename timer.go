package rk0

// timer.go implements C14, callout timers (spec.md §4.12): one-shot or
// periodically-reloading callbacks run outside any task's own control
// flow, on the post-processing task (see postproc.go). Grounded on
// eventloop's own notion of deferred, queue-drained work (ChunkedIngress
// never runs callbacks inline from its hot path either) and on the
// delta-list's phase extension in timeout.go.
//
// Per SPEC_FULL.md §4's Open-Question resolution: reload never
// reapplies phase. A reloading timer's first firing may be offset by
// phase ticks from creation, but every firing after that is spaced by
// exactly duration ticks.

// Timer is a callout timer: phase/duration in ticks, a callback, and
// whether it reloads on expiry.
type Timer struct {
	k *Kernel

	callback func(arg any)
	arg      any

	duration Ticks
	reload   bool

	node timeoutNode

	active   bool
	initDone bool
}

// NewTimer creates a callout timer and arms it immediately (spec.md's
// kCalloutTimerInit folds init+start into one call, matching
// SPEC_FULL.md §4's simplification). phase is the one-time initial
// offset (0 for "no phase"); duration must be in 1..MaxPeriod. The
// timer fires on the post-processing task, not inline on the tick
// handler (spec.md §4.13's non-preemptible drain task).
func (k *Kernel) NewTimer(phase, duration Ticks, reload bool, callback func(arg any), arg any) (*Timer, Result) {
	if callback == nil {
		return nil, k.faultStandalone(ErrObjectNull)
	}
	if duration < 1 || duration > MaxPeriod {
		return nil, k.faultStandalone(ErrInvalidTimeout)
	}
	if phase > MaxPeriod {
		return nil, k.faultStandalone(ErrInvalidTimeout)
	}
	t := &Timer{k: k, callback: callback, arg: arg, duration: duration, reload: reload, initDone: true}
	t.node.owner = t
	t.node.tag = tagCalloutTimer
	t.node.phase = phase
	k.mu.Lock()
	k.calloutTimers.Insert(&t.node, duration)
	t.active = true
	k.mu.Unlock()
	return t, Success
}

// Cancel disarms t. Returns ErrNotFound if t was not currently armed
// (already fired as one-shot, or already canceled).
func (t *Timer) Cancel() Result {
	k := t.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if !t.initDone {
		return k.faultLocked(ErrObjectNotInit)
	}
	if !t.active {
		return k.faultLocked(ErrNotFound)
	}
	k.calloutTimers.Remove(&t.node)
	t.active = false
	return Success
}

// rearmLocked reinserts t for its next firing using duration only
// (phase is never reapplied on reload). Must be called with mu held.
func (t *Timer) rearmLocked() {
	t.node.phase = 0
	t.k.calloutTimers.Insert(&t.node, t.duration)
	t.active = true
}

// TimerState is the rich introspection snapshot supplementing spec.md's
// bare query surface (SPEC_FULL.md §4).
type TimerState struct {
	Active   bool
	Reload   bool
	Duration Ticks
}

// Query returns a snapshot of t's state.
func (t *Timer) Query() (TimerState, Result) {
	k := t.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if !t.initDone {
		return TimerState{}, k.faultLocked(ErrObjectNotInit)
	}
	return TimerState{Active: t.active, Reload: t.reload, Duration: t.duration}, Success
}
