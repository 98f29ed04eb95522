package rk0

// tick.go implements C7, the system tick handler (spec.md §4.4): the
// single entry point the port drives once per timer period. It expires
// due task timeouts and callout timers in O(1) amortized work and then
// decides whether the currently running task should be preempted.
//
// TickHandler never itself parks a goroutine - unlike every other
// kernel entry point, its caller is the port's timer driver, not a
// task's own goroutine, so it cannot hand off the CPU the way
// reschedule/blockOn do. It only readies tasks and callbacks; actual
// preemption happens the next time the running task reaches a
// kernel-call checkpoint (see sched.go's architecture note), which for
// every spec.md §8 scenario is effectively immediate since task bodies
// here re-enter the kernel (Sleep, Pend, ...) on every loop iteration.

// TickHandler advances the kernel's tick count and expires anything
// due. Must be called from the port's timer ISR/driver, never from a
// task.
func (k *Kernel) TickHandler() {
	k.mu.Lock()
	k.tick++
	if k.tick == 0 {
		k.wraps++
	}
	k.taskTimeouts.Tick(k.expireTaskTimeout)
	k.calloutTimers.TickPhase(k.expireCallout)

	if k.running != nil {
		hp := k.ready.HighestPriority()
		if hp >= 0 && Priority(hp) < k.running.effectivePriority && k.running.preempt && k.schedLck == 0 {
			k.pendSwch = true
			k.port.PendContextSwitch()
		}
	}
	k.mu.Unlock()
}

// expireTaskTimeout is the taskTimeouts delta-list's expiry callback.
// Must be called with mu held.
func (k *Kernel) expireTaskTimeout(n *timeoutNode) {
	tcb := n.owner.(*TCB)
	switch n.tag {
	case tagTimeEvent:
		// Sleep/SleepUntil/SleepPeriodic: the timeout IS the wakeup,
		// not a failure, so timedOut stays false.
		k.unblockLocked(tcb, false)
	case tagBlocking:
		var mtx *Mutex
		if tcb.blockedOn != nil {
			mtx = tcb.blockedOn
			tcb.blockedOn = nil
		}
		mq := tcb.mesgQOwnerAdopt
		tcb.mesgQOwnerAdopt = nil
		k.unblockLocked(tcb, true)
		if mtx != nil && mtx.owner != nil {
			// spec.md §4.7: a timed-out mutex waiter must no longer
			// contribute to the current owner's inherited priority.
			mtx.recomputeEffectivePriority(mtx.owner)
		}
		if mq != nil {
			mq.recomputeOwnerPriorityLocked()
		}
	case tagEventFlags:
		k.unblockLocked(tcb, true)
	default:
		k.unblockLocked(tcb, true)
	}
}

// expireCallout is the calloutTimers delta-list's expiry callback: hand
// the fired timer to the post-processing task rather than invoking its
// callback here, since this runs on the tick driver's call stack, not a
// task's. Must be called with mu held.
func (k *Kernel) expireCallout(n *timeoutNode) {
	tm := n.owner.(*Timer)
	tm.active = false
	k.postProc.enqueueLocked(tm)
}
