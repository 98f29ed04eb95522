package rk0

// timeout.go implements C4, the timeout delta-list (spec.md §3/§4.4):
// a sorted-offset list where each node stores only the delta from its
// predecessor, so decrementing the head on every tick is O(1) regardless
// of list length. Two independent delta-lists exist (task timeouts and
// callout timers); deltaList is the shared mechanism, instantiated twice
// in kernel.go.

// timeoutNode is the intrusive node threaded into a deltaList. It is
// embedded once in TCB (for blocking/sleep timeouts) and once in Timer
// (for callout timers).
type timeoutNode struct {
	link  listNode
	dtick Ticks
	tag   timeoutTag

	// phase is the callout-timer-only initial offset (spec.md §4.12):
	// while positive, a tick decrements phase instead of dtick. Unused
	// (always zero) for task-timeout nodes.
	phase Ticks

	// owner is the TCB or *Timer this node belongs to, recovered via
	// link.Value the same way readyTable recovers TCBs.
	owner any

	// waitQueue is set only for tagBlocking nodes: the waiting queue the
	// task must also be unlinked from on timeout (spec.md §3).
	waitQueue *waitQueue
}

func (n *timeoutNode) linked() bool { return n.link.linked() }

// deltaList is a delta-encoded sorted list of timeoutNodes. Insertion
// walks from the head consuming dtick until the remainder is smaller
// than the next node's dtick (spec.md §4.4's stated algorithm); the
// walk is O(list length) but the per-tick head decrement stays O(1).
type deltaList struct {
	l list
}

// Insert threads n into the list so that the sum of dtick from the head
// through n equals duration. duration must already be validated by the
// caller (1..MaxPeriod).
func (d *deltaList) Insert(n *timeoutNode, duration Ticks) {
	remaining := duration
	cur := d.l.Front()
	for cur != nil {
		cn := cur.Value.(*timeoutNode)
		if remaining < cn.dtick {
			cn.dtick -= remaining
			break
		}
		remaining -= cn.dtick
		cur = cur.next
	}
	n.dtick = remaining
	n.link.Value = n
	d.l.InsertBefore(&n.link, cur)
}

// Remove detaches n, folding its dtick into its successor so the
// successor's offset from the (new) head is unchanged.
func (d *deltaList) Remove(n *timeoutNode) {
	if !n.linked() {
		return
	}
	if succ := n.link.next; succ != nil {
		succ.Value.(*timeoutNode).dtick += n.dtick
	}
	d.l.Remove(&n.link)
	n.dtick = 0
}

// Tick decrements the head's dtick by one and detaches every node whose
// dtick has reached zero, invoking expire for each. Per spec.md §4.4
// step 2/3, only the head (and any subsequent zero-delta nodes) are
// touched — the rest of the list is untouched, keeping this O(1) in the
// common case.
func (d *deltaList) Tick(expire func(*timeoutNode)) {
	head := d.l.Front()
	if head == nil {
		return
	}
	hn := head.Value.(*timeoutNode)
	hn.dtick--
	for {
		head = d.l.Front()
		if head == nil {
			return
		}
		hn = head.Value.(*timeoutNode)
		if hn.dtick != 0 {
			return
		}
		d.l.Remove(&hn.link)
		expire(hn)
	}
}

// TickPhase is Tick specialized for the callout-timer list (spec.md
// §4.12): while the head node has a positive phase (its one-time
// initial offset, applied only on the first countdown and never on
// reload), a tick decrements phase instead of dtick. Once phase
// reaches zero the list behaves exactly like Tick.
func (d *deltaList) TickPhase(expire func(*timeoutNode)) {
	head := d.l.Front()
	if head == nil {
		return
	}
	hn := head.Value.(*timeoutNode)
	if hn.phase > 0 {
		hn.phase--
		return
	}
	d.Tick(expire)
}

// Front returns the head node, or nil.
func (d *deltaList) Front() *timeoutNode {
	n := d.l.Front()
	if n == nil {
		return nil
	}
	return n.Value.(*timeoutNode)
}

func (d *deltaList) Empty() bool { return d.l.Empty() }
