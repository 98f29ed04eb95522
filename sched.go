package rk0

// sched.go implements C6, the high-level scheduler (spec.md §4.2):
// yield, the dispatch decision, scheduler lock/unlock, the preemption
// policy, and the shared blocking/waking machinery every
// synchronization primitive (C8-C12) is built from.
//
// Dispatch architecture. C5 (register save/restore, the PendSV trap) is
// explicitly out of scope (spec.md §1) and has no portable Go
// expression. This reference-model kernel substitutes: one goroutine per
// task (spawned by CreateTask/ensureSystemTasksLocked), parked on a
// per-TCB channel whenever it is not the RUNNING task, and Kernel.mu
// standing in for the original's PRIMASK-disable critical section. A
// task only gives up the CPU at a kernel-call checkpoint — exactly the
// set of points the original also reschedules at (blocking primitives,
// Yield, task return) — which is sufficient to reproduce every ordering
// guarantee in spec.md §5 and §8's scenarios, since task bodies in this
// model, like the original's, only change state by calling kernel APIs.
//
// Two internal primitives compose every public scheduling decision:
//
//   - reschedule(self): self keeps running unless a strictly
//     higher-priority task is now ready; if so, self is requeued and the
//     CPU handed to that task, and self's goroutine parks until later
//     redispatched. Used after any call that might have readied a
//     higher-priority task without self giving up the CPU outright
//     (semaphore post, mutex unlock, event set, queue send...).
//   - blockOn(...): self is moved off the ready table entirely, onto a
//     waiting queue (and optionally the timeout delta-list), and the CPU
//     is unconditionally handed to the next-highest-priority ready task.
//
// Both ALWAYS return with Kernel.mu unlocked; callers must not also
// defer an Unlock after invoking either.

// Yield implements spec.md §4.2's kYield: if another ready task at the
// running task's priority or higher exists, rotate the running task to
// the tail of its own ready queue and hand off the CPU.
func (k *Kernel) Yield() {
	k.mu.Lock()
	self := k.running
	if self == nil {
		k.mu.Unlock()
		return
	}
	hp := k.ready.HighestPriority()
	if hp < 0 || Priority(hp) > self.effectivePriority {
		k.mu.Unlock()
		return
	}
	self.state = StateReady
	k.requeueSelfLocked(self)
	next := k.ready.PopHighest()
	next.state = StateRunning
	k.running = next
	k.wakeTCB(next)
	k.mu.Unlock()
	<-self.wake
}

// requeueSelfLocked re-enqueues a preempted/yielding RUNNING task: tail
// for ordinary tasks, head for the post-processing task, so it always
// runs immediately after its own tick-driven signal rather than behind
// anything else already queued at priority 0 (spec.md §4.2's kSwtch
// re-enqueue rule). Must be called with mu held.
func (k *Kernel) requeueSelfLocked(self *TCB) {
	if k.postProc != nil && self == k.postProc.tcb {
		k.ready.PushReadyFront(self)
		return
	}
	k.ready.PushReady(self)
}

// reschedule checks whether a strictly higher-priority task than self is
// now ready and, if so, preempts self: self is requeued (still READY,
// not blocked on anything) and the CPU passes to the higher-priority
// task. Must be called with mu held; always returns with mu unlocked.
func (k *Kernel) reschedule(self *TCB) {
	hp := k.ready.HighestPriority()
	if hp < 0 || Priority(hp) >= self.effectivePriority || !self.preempt || k.schedLck > 0 {
		k.mu.Unlock()
		return
	}
	self.state = StateReady
	k.requeueSelfLocked(self)
	next := k.ready.PopHighest()
	next.state = StateRunning
	k.running = next
	k.wakeTCB(next)
	k.mu.Unlock()
	<-self.wake
}

// SchedLock increments the nested scheduler-lock counter, suppressing
// reschedule-driven preemption until the matching SchedUnlock.
func (k *Kernel) SchedLock() {
	k.mu.Lock()
	k.schedLck++
	k.mu.Unlock()
}

// SchedUnlock decrements the lock counter; at zero, always re-checks for
// a pending preemption, since any reschedule() attempt suppressed while
// locked (a tick-handler hint via pendSwch, but equally a semaphore
// post, mutex unlock, or task creation that ran while the count was
// still positive) never gets retried on its own.
func (k *Kernel) SchedUnlock() {
	k.mu.Lock()
	if k.schedLck == 0 {
		k.mu.Unlock()
		return
	}
	k.schedLck--
	if k.schedLck == 0 {
		k.pendSwch = false
		self := k.running
		if self != nil {
			k.reschedule(self)
			return
		}
	}
	k.mu.Unlock()
}

// blockOn is the shared suspend path used by every blocking primitive:
// move the running task into q (priority-ordered), optionally with a
// bounded timeout, and hand the CPU to the next-highest-priority ready
// task. Must be called with mu held; always returns with mu unlocked.
// Returns ErrISRPrimitiveViolation if called from ISR context with a
// non-NoWait timeout, ErrInvalidTimeout if timeout exceeds MaxPeriod
// (other than WaitForever), and the immediate ErrTimeout if timeout is
// NoWait (the caller should have already checked the fast path).
func (k *Kernel) blockOn(q *waitQueue, state State, tag timeoutTag, timeout Ticks) Result {
	return k.blockOnHook(q, state, tag, timeout, nil)
}

// blockOnHook is blockOn with an optional callback run immediately
// after self is enqueued (and before the CPU handoff), used by Mutex
// to perform its priority-inheritance walk while still holding mu.
func (k *Kernel) blockOnHook(q *waitQueue, state State, tag timeoutTag, timeout Ticks, hook func(*TCB)) Result {
	if timeout == NoWait {
		k.mu.Unlock()
		return ErrTimeout
	}
	if k.port.IsISR() {
		res := k.faultLocked(ErrISRPrimitiveViolation)
		k.mu.Unlock()
		return res
	}
	if timeout != WaitForever && timeout > MaxPeriod {
		res := k.faultLocked(ErrInvalidTimeout)
		k.mu.Unlock()
		return res
	}
	self := k.running
	self.state = state
	self.timedOut = false
	if q != nil {
		q.enqueue(self)
	}
	if hook != nil {
		hook(self)
	}
	if timeout != WaitForever {
		self.timeoutNode.tag = tag
		self.timeoutNode.waitQueue = q
		k.taskTimeouts.Insert(&self.timeoutNode, timeout)
	}
	next := k.ready.PopHighest()
	next.state = StateRunning
	k.running = next
	k.wakeTCB(next)
	k.mu.Unlock()
	<-self.wake
	if self.timedOut {
		return ErrTimeout
	}
	return Success
}

// unblockLocked removes tcb from whatever waiting/timeout state it is
// in and moves it to the ready table. It does not itself dispatch
// anything; the caller must follow up with reschedule(self) (if the
// caller is itself a still-running task) so a newly-readied
// higher-priority task actually gets the CPU. Must be called with mu
// held.
func (k *Kernel) unblockLocked(tcb *TCB, timedOut bool) {
	if tcb.waitQueue != nil {
		tcb.waitQueue.remove(tcb)
	}
	k.taskTimeouts.Remove(&tcb.timeoutNode)
	tcb.timedOut = timedOut
	tcb.state = StateReady
	k.ready.PushReady(tcb)
}

// finishLocked is the common tail of every non-blocking primitive that
// may have readied a higher-priority task without the caller itself
// blocking: reschedule if there's a running task to preempt, else just
// release the lock. Must be called with mu held; always returns with mu
// unlocked.
//
// From ISR context there is no task goroutine to park, so reschedule's
// handoff (which ends by parking the caller on the preempted task's
// wake channel) would block the interrupt itself forever. Mirror
// TickHandler's own rule instead: merely flag the pending switch and let
// the port arrange for it, the same way a real PendSV trap is only
// requested, never taken, from inside the ISR that requested it.
func (k *Kernel) finishLocked(res Result) Result {
	if k.running != nil {
		if k.port.IsISR() {
			k.pendSwch = true
			k.port.PendContextSwitch()
			k.mu.Unlock()
			return res
		}
		k.reschedule(k.running)
	} else {
		k.mu.Unlock()
	}
	return res
}

// wakeOneLocked wakes the highest-priority waiter in q, if any. Must be
// called with mu held; does not itself unlock or reschedule.
func (k *Kernel) wakeOneLocked(q *waitQueue) Result {
	tcb := q.front()
	if tcb == nil {
		return ErrEmptyWaitingQueue
	}
	k.unblockLocked(tcb, false)
	return Success
}

// wakeNLocked wakes up to n waiters (all, if n == 0). Must be called
// with mu held; does not itself unlock or reschedule.
func (k *Kernel) wakeNLocked(q *waitQueue, n int) Result {
	if q.Empty() {
		return ErrEmptyWaitingQueue
	}
	count := 0
	for !q.Empty() && (n == 0 || count < n) {
		k.unblockLocked(q.front(), false)
		count++
	}
	return Success
}

// readySpecificLocked wakes h if it is currently linked into q. Must be
// called with mu held; does not itself unlock or reschedule.
func (k *Kernel) readySpecificLocked(q *waitQueue, h Handle) Result {
	if h.tcb == nil {
		return k.faultLocked(ErrObjectNull)
	}
	if h.tcb.waitQueue != q {
		return k.faultLocked(ErrTaskWrongState)
	}
	k.unblockLocked(h.tcb, false)
	return Success
}

// suspendIntoLocked relocates a READY task into q as
// StateSleepingSuspended, with no timeout (spec.md §4.8 Suspend). Must
// be called with mu held; does not itself unlock or reschedule.
func (k *Kernel) suspendIntoLocked(q *waitQueue, h Handle) Result {
	if h.tcb == nil {
		return k.faultLocked(ErrObjectNull)
	}
	if h.tcb.state != StateReady {
		return k.faultLocked(ErrTaskWrongState)
	}
	k.ready.Remove(h.tcb)
	h.tcb.state = StateSleepingSuspended
	q.enqueue(h.tcb)
	return Success
}

// condWaitImpl implements spec.md §4.8's condvar-over-mutex dance: lock the
// scheduler, unlock the mutex, sleep on sq, unlock the scheduler (honors
// any deferred switch), then relock the mutex before returning.
func (sq *SleepQueue) condWaitImpl(m *Mutex, timeout Ticks) Result {
	k := sq.k
	k.SchedLock()
	if res := m.Unlock(); res.Fatal() {
		k.SchedUnlock()
		return res
	}
	k.mu.Lock()
	res := k.blockOn(&sq.q, StateBlocked, tagBlocking, timeout)
	k.SchedUnlock()
	if lres := m.Lock(WaitForever); lres.Fatal() && res.Success() {
		return lres
	}
	return res
}
