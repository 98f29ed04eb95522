package rk0

// mesgqueue.go implements C12, the message queue family (spec.md §4.10):
// one polymorphic ring-buffer object covering the mailbox (N=1), mail
// queue (N pointers), stream queue (N×W words), and the port RPC
// extension (port_ipc.go), "parameterizing capacity, message size,
// owner flag, and a small set of feature flags... one data structure,
// [no] duplicate[d]... variants" (spec.md §9). Go generics give this
// polymorphism directly - T is []uint32 for a stream queue, a pointer
// type for a mail queue, or PortMessage for a port - rather than hand-
// rolled byte-array copying, which is the idiomatic Go rendition of
// the same unification the original expresses with void* and a word
// count.
//
// Waiters share one priority-ordered queue (spec.md §3's invariant: a
// non-empty ring with waiters implies they are all senders, or all
// receivers, never both), distinguished by TCB.state (StateSending vs
// StateReceiving, already the state machine's vocabulary).

// mesgQueueOwnerRecomputer lets TCB.mesgQOwnerAdopt name a blocked
// sender's owned queue without knowing its message type T.
type mesgQueueOwnerRecomputer interface {
	recomputeOwnerPriorityLocked()
}

// MesgQueue is the unified message queue object. The zero value is not
// ready to use; construct with NewMesgQueue.
type MesgQueue[T any] struct {
	k *Kernel

	capacity int
	buf      []T
	head     int
	tail     int
	count    int

	owner    *TCB
	notify   func(T)
	isServer bool

	q waitQueue

	// generation increments on Reset so a waiter woken by it (rather
	// than by room/data becoming available) can tell the difference
	// and fail fast instead of retrying forever.
	generation int

	initDone bool
}

// NewMesgQueue creates a queue of capacity slots, each holding one
// value of T (spec.md's kMesgQueueInit). capacity must be >= 1.
func NewMesgQueue[T any](k *Kernel, capacity int) (*MesgQueue[T], Result) {
	if capacity < 1 {
		return nil, k.faultStandalone(ErrInvalidQueueSize)
	}
	return &MesgQueue[T]{k: k, capacity: capacity, buf: make([]T, capacity), initDone: true}, Success
}

// NewMailbox creates a capacity-1 queue, the RK_MAILBOX specialization
// (spec.md §4.10).
func NewMailbox[T any](k *Kernel) (*MesgQueue[T], Result) {
	return NewMesgQueue[T](k, 1)
}

// SetNotify installs a callback invoked synchronously (under the
// kernel lock) whenever Send or Jam successfully enqueues a value, as
// long as the kernel was built with WithMesgQueueNotify(true), the
// default.
func (q *MesgQueue[T]) SetNotify(fn func(T)) {
	q.k.mu.Lock()
	q.notify = fn
	q.k.mu.Unlock()
}

// SetOwner installs the sole receiver task; once set, only the owner
// may Recv (spec.md's kMesgQueueSetOwner). Returns
// ERR_MESGQ_HAS_OWNER if already set.
func (q *MesgQueue[T]) SetOwner(h Handle) Result {
	k := q.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if !q.initDone {
		return k.faultLocked(ErrObjectNotInit)
	}
	if q.owner != nil {
		return k.faultLocked(ErrMesgQueueHasOwner)
	}
	if h.tcb == nil {
		return k.faultLocked(ErrObjectNull)
	}
	q.owner = h.tcb
	return Success
}

func (q *MesgQueue[T]) pushTailLocked(msg T) {
	q.buf[q.tail] = msg
	q.tail = (q.tail + 1) % q.capacity
	q.count++
}

// pushHeadLocked implements Jam: write at the head side by backing the
// read pointer up one slot (spec.md's kMesgQueueJam).
func (q *MesgQueue[T]) pushHeadLocked(msg T) {
	q.head = (q.head - 1 + q.capacity) % q.capacity
	q.buf[q.head] = msg
	q.count++
}

func (q *MesgQueue[T]) popHeadLocked() T {
	msg := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head = (q.head + 1) % q.capacity
	q.count--
	return msg
}

// recomputeOwnerPriorityLocked restores the owner's effective priority
// to the minimum of nominal and the highest-priority still-blocked
// sender's nominal priority (spec.md §4.10's priority-adopt-while-
// blocked clause). Must be called with mu held.
func (q *MesgQueue[T]) recomputeOwnerPriorityLocked() {
	if q.owner == nil {
		return
	}
	best := q.owner.nominalPriority
	for n := q.q.l.Front(); n != nil; n = n.next {
		tcb := n.Value.(*TCB)
		if tcb.state == StateSending && tcb.nominalPriority < best {
			best = tcb.nominalPriority
		}
	}
	q.owner.effectivePriority = best
	if q.owner.state == StateReady {
		q.k.ready.PushReady(q.owner)
	}
}

// send is Send/Jam's shared body; jam selects pushHeadLocked over
// pushTailLocked.
func (q *MesgQueue[T]) send(msg T, timeout Ticks, jam bool) Result {
	k := q.k
	for {
		k.mu.Lock()
		if !q.initDone {
			res := k.faultLocked(ErrObjectNotInit)
			k.mu.Unlock()
			return res
		}
		if q.count < q.capacity {
			if jam {
				q.pushHeadLocked(msg)
			} else {
				q.pushTailLocked(msg)
			}
			if q.notify != nil && k.opts.mesgQueueNotify {
				q.notify(msg)
			}
			if tcb := q.q.front(); tcb != nil && tcb.state == StateReceiving {
				k.unblockLocked(tcb, false)
			}
			return k.finishLocked(Success)
		}
		if timeout == NoWait {
			k.mu.Unlock()
			return ErrMesgQueueFull
		}
		self := k.running
		myGen := q.generation
		res := k.blockOnHook(&q.q, StateSending, tagBlocking, timeout, func(waiter *TCB) {
			if q.owner != nil {
				waiter.mesgQOwnerAdopt = q
				if waiter.nominalPriority < q.owner.effectivePriority {
					q.owner.effectivePriority = waiter.nominalPriority
					if q.owner.state == StateReady {
						k.ready.PushReady(q.owner)
					}
				}
			}
		})
		if res == ErrTimeout {
			return ErrTimeout
		}
		k.mu.Lock()
		reset := q.generation != myGen
		k.mu.Unlock()
		if reset {
			if self != nil {
				self.mesgQOwnerAdopt = nil
			}
			return ErrError
		}
	}
}

// Send enqueues msg at the tail, blocking up to timeout if full
// (spec.md's kMesgQueueSend). Mailbox (capacity 1) callers get the same
// path; no separate fast path is needed since the ring arithmetic is
// already O(1).
func (q *MesgQueue[T]) Send(msg T, timeout Ticks) Result {
	return q.send(msg, timeout, false)
}

// Jam enqueues msg at the head (urgent/priority message), same
// blocking semantics as Send (spec.md's kMesgQueueJam).
func (q *MesgQueue[T]) Jam(msg T, timeout Ticks) Result {
	return q.send(msg, timeout, true)
}

// Recv dequeues the head value, blocking up to timeout if empty
// (spec.md's kMesgQueueRecv). If an owner is set, only the owner task
// may call Recv; anyone else gets ERR_INVALID_RECEIVER.
func (q *MesgQueue[T]) Recv(timeout Ticks) (T, Result) {
	k := q.k
	var zero T
	for {
		k.mu.Lock()
		if !q.initDone {
			res := k.faultLocked(ErrObjectNotInit)
			k.mu.Unlock()
			return zero, res
		}
		if q.owner != nil && q.owner != k.running {
			res := k.faultLocked(ErrInvalidReceiver)
			k.mu.Unlock()
			return zero, res
		}
		if q.count > 0 {
			msg := q.popHeadLocked()
			if tcb := q.q.front(); tcb != nil && tcb.state == StateSending {
				k.unblockLocked(tcb, false)
				tcb.mesgQOwnerAdopt = nil
				q.recomputeOwnerPriorityLocked()
			}
			return msg, k.finishLocked(Success)
		}
		if timeout == NoWait {
			k.mu.Unlock()
			return zero, ErrMesgQueueEmpty
		}
		myGen := q.generation
		res := k.blockOn(&q.q, StateReceiving, tagBlocking, timeout)
		if res == ErrTimeout {
			return zero, ErrTimeout
		}
		k.mu.Lock()
		reset := q.generation != myGen
		k.mu.Unlock()
		if reset {
			return zero, ErrError
		}
	}
}

// Peek copies the head value without removing it (spec.md's
// kMesgQueuePeek). Never blocks.
func (q *MesgQueue[T]) Peek() (T, Result) {
	k := q.k
	k.mu.Lock()
	defer k.mu.Unlock()
	var zero T
	if !q.initDone {
		return zero, k.faultLocked(ErrObjectNotInit)
	}
	if q.count == 0 {
		return zero, ErrMesgQueueEmpty
	}
	return q.buf[q.head], Success
}

// PostOvw unconditionally replaces the current message, mailbox-only
// (capacity 1): if the mailbox was empty and a receiver is waiting, it
// is woken (spec.md's kMesgQueuePostOvw).
func (q *MesgQueue[T]) PostOvw(msg T) Result {
	k := q.k
	k.mu.Lock()
	if !q.initDone {
		res := k.faultLocked(ErrObjectNotInit)
		k.mu.Unlock()
		return res
	}
	if q.capacity != 1 {
		res := k.faultLocked(ErrWrongObjectType)
		k.mu.Unlock()
		return res
	}
	wasEmpty := q.count == 0
	q.buf[0] = msg
	q.head = 0
	q.tail = 0
	q.count = 1
	if wasEmpty {
		if tcb := q.q.front(); tcb != nil && tcb.state == StateReceiving {
			k.unblockLocked(tcb, false)
		}
	}
	return k.finishLocked(Success)
}

// Reset empties the queue and wakes every waiter, sender and receiver
// alike, with ERR_ERROR (spec.md's kMesgQueueReset). Called from ISR
// context, or with more than one waiter present, the actual work is
// deferred to the post-processing task (spec.md §4.10/§9's
// ISR-deferred-work contract) so the ISR path stays bounded.
func (q *MesgQueue[T]) Reset() Result {
	k := q.k
	k.mu.Lock()
	if !q.initDone {
		res := k.faultLocked(ErrObjectNotInit)
		k.mu.Unlock()
		return res
	}
	if k.port.IsISR() || q.q.Len() > 1 {
		k.postProc.enqueueJobLocked(func() {
			k.mu.Lock()
			q.resetLocked()
			k.mu.Unlock()
		})
		k.mu.Unlock()
		return Success
	}
	q.resetLocked()
	return k.finishLocked(Success)
}

// resetLocked is Reset's actual effect. Must be called with mu held.
func (q *MesgQueue[T]) resetLocked() {
	var zero T
	for i := range q.buf {
		q.buf[i] = zero
	}
	q.head, q.tail, q.count = 0, 0, 0
	q.generation++
	q.k.wakeNLocked(&q.q, 0)
}

// MesgQueueState is the rich introspection snapshot supplementing
// spec.md's bare query surface (SPEC_FULL.md §4).
type MesgQueueState struct {
	Count       int
	Capacity    int
	HasOwner    bool
	WaiterCount int
}

// Query returns a snapshot of q's state.
func (q *MesgQueue[T]) Query() (MesgQueueState, Result) {
	k := q.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if !q.initDone {
		return MesgQueueState{}, k.faultLocked(ErrObjectNotInit)
	}
	return MesgQueueState{Count: q.count, Capacity: q.capacity, HasOwner: q.owner != nil, WaiterCount: q.q.Len()}, Success
}
