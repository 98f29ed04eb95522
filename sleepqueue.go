package rk0

// sleepqueue.go implements the waiting-queue primitive shared by every
// blocking object (spec.md §3 "waiting queue") and C8's sleep
// queue/condition-variable API built on top of it.

// waitQueue is a priority-ordered intrusive FIFO: entries at the same
// priority preserve arrival order, matching spec.md §5's ordering
// guarantee for synchronization objects.
type waitQueue struct {
	l list
}

// enqueue inserts tcb before the first waiter with a strictly lower
// priority (numerically larger), preserving FIFO among equal priorities.
func (q *waitQueue) enqueue(tcb *TCB) {
	tcb.waitNode.Value = tcb
	tcb.waitQueue = q
	mark := q.l.Front()
	for mark != nil {
		mt := mark.Value.(*TCB)
		if mt.effectivePriority > tcb.effectivePriority {
			break
		}
		mark = mark.next
	}
	q.l.InsertBefore(&tcb.waitNode, mark)
}

// remove detaches tcb from q if it is currently linked into it.
func (q *waitQueue) remove(tcb *TCB) {
	if tcb.waitQueue != q {
		return
	}
	q.l.Remove(&tcb.waitNode)
	tcb.waitQueue = nil
}

// front returns the highest-priority waiter without removing it.
func (q *waitQueue) front() *TCB {
	n := q.l.Front()
	if n == nil {
		return nil
	}
	return n.Value.(*TCB)
}

// popFront removes and returns the highest-priority waiter.
func (q *waitQueue) popFront() *TCB {
	tcb := q.front()
	if tcb == nil {
		return nil
	}
	q.remove(tcb)
	return tcb
}

func (q *waitQueue) Len() int    { return q.l.Len() }
func (q *waitQueue) Empty() bool { return q.l.Empty() }

// SleepQueue is a public condition-variable-like wait point: a bare
// waiting queue with no count or value, used for ad-hoc task
// coordination (spec.md §4.8).
type SleepQueue struct {
	k *Kernel
	q waitQueue
}

// NewSleepQueue creates an empty sleep queue.
func (k *Kernel) NewSleepQueue() *SleepQueue {
	return &SleepQueue{k: k}
}

// Wait blocks the calling task on sq until Signal/Wake/Ready targets it
// or timeout elapses. Must not be called from ISR context.
func (sq *SleepQueue) Wait(timeout Ticks) Result {
	sq.k.mu.Lock()
	return sq.k.blockOn(&sq.q, StateBlocked, tagBlocking, timeout)
}

// Signal wakes the single highest-priority waiter, if any.
func (sq *SleepQueue) Signal() Result {
	sq.k.mu.Lock()
	res := sq.k.wakeOneLocked(&sq.q)
	return sq.k.finishLocked(res)
}

// Wake wakes up to n waiters (all, if n == 0), highest priority first.
// A bulk wake (n == 0, meaning "all") requested from ISR context is
// deferred to the post-processing task (spec.md §4.13/§9's
// ISR-deferred-work contract), since an ISR path must stay bounded.
func (sq *SleepQueue) Wake(n int) Result {
	k := sq.k
	k.mu.Lock()
	if n == 0 && k.port.IsISR() {
		k.postProc.enqueueJobLocked(func() {
			k.mu.Lock()
			k.wakeNLocked(&sq.q, 0)
			k.mu.Unlock()
		})
		k.mu.Unlock()
		return Success
	}
	res := k.wakeNLocked(&sq.q, n)
	return k.finishLocked(res)
}

// Ready wakes a specific task if it is currently waiting on sq.
func (sq *SleepQueue) Ready(h Handle) Result {
	sq.k.mu.Lock()
	res := sq.k.readySpecificLocked(&sq.q, h)
	return sq.k.finishLocked(res)
}

// Suspend relocates a READY task into sq as StateSleepingSuspended,
// used by task-controlled suspension primitives (spec.md §4.8).
func (sq *SleepQueue) Suspend(h Handle) Result {
	sq.k.mu.Lock()
	res := sq.k.suspendIntoLocked(&sq.q, h)
	sq.k.mu.Unlock()
	return res
}

// CondWait implements the classic condvar-over-mutex dance (spec.md
// §4.8): lock the scheduler, unlock mutex, sleep on cv, unlock the
// scheduler on wake, then re-lock mutex before returning.
func (sq *SleepQueue) CondWait(m *Mutex, timeout Ticks) Result {
	return sq.condWaitImpl(m, timeout)
}

// CondSignal is an alias for Signal, named for condvar call sites.
func (sq *SleepQueue) CondSignal() Result { return sq.Signal() }

// CondBroadcast wakes every waiter.
func (sq *SleepQueue) CondBroadcast() Result { return sq.Wake(0) }
