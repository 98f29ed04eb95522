package rk0

import "math/bits"

// readyqueue.go implements the ready-queue half of C3 (spec.md §3/§4.2):
// one intrusive FIFO per priority level plus a bitmap of non-empty
// priorities, so the next runnable priority is a single ctz.

// maxPriorities is the width of the ready-bitmap word; spec.md §5 caps
// priority levels at 32 ("at most 32 priority levels... fits in one
// machine word").
const maxPriorities = 32

type readyTable struct {
	queues  [maxPriorities]list
	bitmap  uint32
	minPrio Priority // configured MIN_PRIO; idle lives at minPrio+1
}

func newReadyTable(minPrio Priority) *readyTable {
	return &readyTable{minPrio: minPrio}
}

// PushReady enqueues tcb at the tail of its effective priority's queue
// and marks that priority non-empty in the bitmap.
func (t *readyTable) PushReady(tcb *TCB) {
	t.Remove(tcb)
	p := tcb.effectivePriority
	tcb.readyNode.Value = tcb
	tcb.readyPriority = p
	t.queues[p].PushBack(&tcb.readyNode)
	t.bitmap |= 1 << uint(p)
}

// PushReadyFront enqueues tcb at the head of its queue, used for the
// post-processing task so it runs immediately after being signalled
// (spec.md §4.2 kSwtch re-enqueue rule).
func (t *readyTable) PushReadyFront(tcb *TCB) {
	t.Remove(tcb)
	p := tcb.effectivePriority
	tcb.readyNode.Value = tcb
	tcb.readyPriority = p
	t.queues[p].PushFront(&tcb.readyNode)
	t.bitmap |= 1 << uint(p)
}

// Remove detaches tcb from whatever ready queue it is linked into, if
// any, clearing the bitmap bit when that queue becomes empty. It uses
// tcb.readyPriority - the bucket the node was actually inserted at -
// rather than tcb.effectivePriority: a priority-inheritance re-home
// (mutex.go's recomputeEffectivePriority, mesgqueue.go's
// recomputeOwnerPriorityLocked and its send-path owner boost) mutates
// effectivePriority first and only then calls PushReady, so by the time
// Remove runs here (PushReady's own leading call) effectivePriority may
// already name a different bucket than the one readyNode is linked
// into. Using the stale live field there would look in the wrong
// queues[] slot, leave the real bucket's head/tail/size and bitmap bit
// untouched, and corrupt it when PushBack then splices the node out
// from under it.
func (t *readyTable) Remove(tcb *TCB) {
	if !tcb.readyNode.linked() {
		return
	}
	p := tcb.readyPriority
	q := &t.queues[p]
	q.Remove(&tcb.readyNode)
	if q.Empty() {
		t.bitmap &^= 1 << uint(p)
	}
}

// HighestPriority returns the numerically lowest non-empty priority, or
// -1 if no priority has a ready task.
func (t *readyTable) HighestPriority() int {
	if t.bitmap == 0 {
		return -1
	}
	return bits.TrailingZeros32(t.bitmap)
}

// PopHighest dequeues and returns the head of the highest-priority
// non-empty queue, or nil if every queue is empty.
func (t *readyTable) PopHighest() *TCB {
	p := t.HighestPriority()
	if p < 0 {
		return nil
	}
	q := &t.queues[p]
	n := q.PopFront()
	if q.Empty() {
		t.bitmap &^= 1 << uint(p)
	}
	if n == nil {
		return nil
	}
	return n.Value.(*TCB)
}

// Empty reports whether priority p's queue has any ready task.
func (t *readyTable) Empty(p Priority) bool {
	return t.bitmap&(1<<uint(p)) == 0
}
