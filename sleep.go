package rk0

// sleep.go implements C4.5 (spec.md §4.5): delay and periodic-release
// sleeps, built on tagTimeEvent nodes in the task-timeout delta-list.

// Sleep blocks the calling task for exactly ticks system ticks. ticks
// must be in 1..MaxPeriod (spec.md's kSleep).
func (k *Kernel) Sleep(ticks Ticks) Result {
	k.mu.Lock()
	if ticks < 1 || ticks > MaxPeriod {
		res := k.faultLocked(ErrInvalidTimeout)
		k.mu.Unlock()
		return res
	}
	return k.blockOn(nil, StateSleepingDelay, tagTimeEvent, ticks)
}

// periodicStep is the shared anchor-advance arithmetic for SleepUntil
// and SleepPeriodic (spec.md §4.5): given the previous anchor, the
// period, and the current tick, compute the next grid-aligned target
// and the delay remaining until it. skipped is the number of whole
// periods that were overrun (0 means "on time or shortened, no full
// period skipped").
func periodicStep(anchor, period, now Ticks) (target, delay, skipped Ticks) {
	target = anchor + period
	if now <= target {
		return target, target - now, 0
	}
	overrun := now - target
	skipped = overrun / period
	remainder := overrun % period
	target += skipped * period
	return target, period - remainder, skipped
}

// SleepUntil blocks the calling task until *anchor + period, per-task
// and non-grid-aligned (spec.md's kSleepUntil). If the deadline has
// already passed by less than one period, the wait is shortened by the
// overrun; if it has passed by a full period or more, no wait happens
// and ERR_ELAPSED_PERIOD is returned without advancing *anchor. On
// success *anchor is advanced by exactly one period; after a shortened
// wait the task wakes one period after that new anchor.
func (k *Kernel) SleepUntil(anchor *Ticks, period Ticks) Result {
	k.mu.Lock()
	if anchor == nil {
		res := k.faultLocked(ErrObjectNull)
		k.mu.Unlock()
		return res
	}
	if period < 1 || period > MaxPeriod {
		res := k.faultLocked(ErrInvalidTimeout)
		k.mu.Unlock()
		return res
	}
	target, delay, skipped := periodicStep(*anchor, period, k.tick)
	if skipped > 0 {
		k.mu.Unlock()
		return ErrElapsedPeriod
	}
	*anchor = target
	if delay == 0 {
		k.mu.Unlock()
		return Success
	}
	return k.blockOn(nil, StateSleepingDelay, tagTimeEvent, delay)
}

// SleepPeriodic blocks the calling task until its own grid-aligned
// periodic anchor next advances by period (spec.md's kSleepPeriodic,
// alias kSleepRelease). The anchor is maintained inside the TCB,
// starting at the grid origin (tick 0) on the task's first call. Unlike
// SleepUntil, an overrun of a full period or more skips forward to the
// next grid slot instead of erroring.
func (k *Kernel) SleepPeriodic(period Ticks) Result {
	k.mu.Lock()
	if period < 1 || period > MaxPeriod {
		res := k.faultLocked(ErrInvalidTimeout)
		k.mu.Unlock()
		return res
	}
	self := k.running
	if !self.periodicAnchorSet {
		self.periodicAnchor = 0
		self.periodicAnchorSet = true
	}
	target, delay, _ := periodicStep(self.periodicAnchor, period, k.tick)
	self.periodicAnchor = target
	if delay == 0 {
		k.mu.Unlock()
		return Success
	}
	return k.blockOn(nil, StateSleepingDelay, tagTimeEvent, delay)
}
