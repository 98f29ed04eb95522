package rk0

// list.go implements C1: the intrusive doubly-linked list shared by
// every queue in the kernel (ready queues, waiting queues, the owned-
// mutex list, the timeout/callout delta-lists). Grounded on the
// teacher's own node-embedding style (eventloop's ChunkedIngress links
// tasks by index rather than pointer for cache locality); here nodes
// are embedded directly in owning structs, Go pointers standing in for
// the arena-index approach spec.md §9 allows when "safe pointer
// aliasing is hard to express" — it isn't, in Go, so plain pointers are
// used instead of indices.
//
// A listNode belongs to at most one list at a time. The zero value is
// a detached node.

// listNode is an intrusive link embedded in the owning struct. Value
// holds a back-reference to that owner, following container/list's
// Element.Value convention, since Go has no container_of to recover an
// owner from a bare embedded-field pointer.
type listNode struct {
	next, prev *listNode
	list       *list
	Value      any
}

// linked reports whether the node is currently inserted in a list.
func (n *listNode) linked() bool { return n.list != nil }

// list is an intrusive doubly-linked FIFO with an O(1) size counter.
// The zero value is a ready-to-use empty list.
type list struct {
	head, tail *listNode
	size       int
}

func (l *list) Len() int { return l.size }

func (l *list) Empty() bool { return l.size == 0 }

// PushBack appends n at the tail. n must be detached.
func (l *list) PushBack(n *listNode) {
	n.list = l
	n.prev = l.tail
	n.next = nil
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.size++
}

// PushFront inserts n at the head. n must be detached.
func (l *list) PushFront(n *listNode) {
	n.list = l
	n.next = l.head
	n.prev = nil
	if l.head != nil {
		l.head.prev = n
	} else {
		l.tail = n
	}
	l.head = n
	l.size++
}

// Front returns the head node, or nil if the list is empty.
func (l *list) Front() *listNode { return l.head }

// Remove detaches n from l. n must currently belong to l.
func (l *list) Remove(n *listNode) {
	if n.list != l {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.next, n.prev, n.list = nil, nil, nil
	l.size--
}

// PopFront removes and returns the head node, or nil if empty.
func (l *list) PopFront() *listNode {
	n := l.head
	if n == nil {
		return nil
	}
	l.Remove(n)
	return n
}

// InsertBefore inserts n immediately before mark, which must belong to l.
func (l *list) InsertBefore(n, mark *listNode) {
	if mark == nil {
		l.PushBack(n)
		return
	}
	n.list = l
	n.next = mark
	n.prev = mark.prev
	if mark.prev != nil {
		mark.prev.next = n
	} else {
		l.head = n
	}
	mark.prev = n
	l.size++
}
