package rk0

// mutex.go implements C10 (spec.md §4.7): lock/unlock with transitive
// priority inheritance.

// Mutex is a non-recursive lock with optional priority inheritance.
type Mutex struct {
	k        *Kernel
	locked   bool
	owner    *TCB
	q        waitQueue
	piOn     bool
	node     listNode // this mutex's node in owner.ownedMutexes
	initDone bool
}

// NewMutex creates a mutex. piEnabled selects whether locking under
// contention inherits priority (spec.md §4.7); disabling it is legal
// for objects that never see priority inversion.
func (k *Kernel) NewMutex(piEnabled bool) *Mutex {
	return &Mutex{k: k, piOn: piEnabled, initDone: true}
}

// Lock acquires m, inheriting priority to the current owner while
// blocked if piOn (spec.md §4.7). Re-locking by the owner is a fault
// (no recursion).
func (m *Mutex) Lock(timeout Ticks) Result {
	k := m.k
	k.mu.Lock()
	if !m.initDone {
		res := k.faultLocked(ErrObjectNotInit)
		k.mu.Unlock()
		return res
	}
	self := k.running
	if !m.locked {
		m.lockLocked(self)
		k.mu.Unlock()
		return Success
	}
	if m.owner == self {
		res := k.faultLocked(ErrMutexRecursiveLock)
		k.mu.Unlock()
		return res
	}
	self.blockedOn = m
	return k.blockOnHook(&m.q, StateBlocked, tagBlocking, timeout, func(waiter *TCB) {
		if m.piOn {
			m.inheritFrom(waiter)
		}
	})
}

func (m *Mutex) lockLocked(tcb *TCB) {
	m.locked = true
	m.owner = tcb
	tcb.ownedMutexes.PushBack(&m.node)
	m.node.Value = m
}

// inheritFrom walks the ownership chain, raising each owner's effective
// priority toward waiter's while waiter is blocked, recursing through
// owners that are themselves blocked on another mutex (spec.md §4.7).
// The walk terminates because a task is blocked on at most one mutex at
// a time, so the chain of "blocked on" edges cannot cycle.
func (m *Mutex) inheritFrom(waiter *TCB) {
	cur := m
	for cur != nil && cur.owner != nil {
		owner := cur.owner
		if waiter.effectivePriority < owner.effectivePriority {
			owner.effectivePriority = waiter.effectivePriority
			if owner.state == StateReady {
				m.k.ready.PushReady(owner) // re-home in the bitmap at the new priority
			}
		}
		cur = owner.blockedOn
	}
}

// Unlock releases m, handing it to the highest-priority waiter (FIFO
// among equals) if any, and recomputing the previous owner's effective
// priority from its remaining owned mutexes. Only the owner may unlock.
func (m *Mutex) Unlock() Result {
	k := m.k
	k.mu.Lock()
	if !m.initDone {
		res := k.faultLocked(ErrObjectNotInit)
		k.mu.Unlock()
		return res
	}
	self := k.running
	if !m.locked || m.owner != self {
		res := k.faultLocked(ErrMutexNotOwner)
		k.mu.Unlock()
		return res
	}
	prevOwner := m.owner
	prevOwner.ownedMutexes.Remove(&m.node)
	m.recomputeEffectivePriority(prevOwner)

	next := m.q.popFront()
	if next == nil {
		m.locked = false
		m.owner = nil
		return k.finishLocked(Success)
	}
	next.blockedOn = nil
	m.lockLocked(next)
	k.unblockLocked(next, false)
	return k.finishLocked(Success)
}

// recomputeEffectivePriority restores tcb's effective priority to the
// minimum of its nominal priority and the highest-priority waiter of
// every mutex it still owns (spec.md §4.7's invariant). Only re-homes
// tcb in the ready table if it is actually sitting there (StateReady);
// a StateRunning task is never ready-table-linked, and pushing it in
// anyway would let a later, unrelated PopHighest hand out a stale wake.
func (m *Mutex) recomputeEffectivePriority(tcb *TCB) {
	best := tcb.nominalPriority
	for n := tcb.ownedMutexes.Front(); n != nil; n = n.next {
		owned := n.Value.(*Mutex)
		if w := owned.q.front(); w != nil && w.effectivePriority < best {
			best = w.effectivePriority
		}
	}
	tcb.effectivePriority = best
	if tcb.state == StateReady {
		m.k.ready.PushReady(tcb)
	}
}

// MutexState is the rich introspection snapshot supplementing spec.md's
// bare query surface (SPEC_FULL.md §4).
type MutexState struct {
	Locked      bool
	Owner       string
	WaiterCount int
}

// Query returns a snapshot of m's state.
func (m *Mutex) Query() (MutexState, Result) {
	k := m.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if !m.initDone {
		return MutexState{}, k.faultLocked(ErrObjectNotInit)
	}
	owner := ""
	if m.owner != nil {
		owner = m.owner.name
	}
	return MutexState{Locked: m.locked, Owner: owner, WaiterCount: m.q.Len()}, Success
}
