package rk0

// mrm.go implements C13, most-recent-message buffers (spec.md §4.11):
// multi-reader latest-value pub/sub over a pool of reusable,
// reference-counted buffers. Grounded on pool.go's Block handle for
// the same O(1) allocate/free discipline, generalized over the
// published value's type the same way mesgqueue.go generalizes over
// message type.

// mrmBuffer is one header+data pair: the reference count and the
// published value.
type mrmBuffer[T any] struct {
	nUsers int
	data   T
	idx    int
}

// MRM is a most-recent-message object: Reserve a buffer, Publish a
// value into it, any number of readers Get the current value (bumping
// its refcount), and Unget releases a reader's hold. A reserved buffer
// that is not current and has no readers is returned to the free list.
type MRM[T any] struct {
	k *Kernel

	buffers  []mrmBuffer[T]
	freeNext []int
	freeHead int

	current  int // index into buffers, or -1 if never published
	initDone bool
}

// NewMRM creates an MRM object backed by depth reusable buffers.
// depth must be >= 2 so a writer can reserve a fresh buffer while
// readers still hold the previous one.
func NewMRM[T any](k *Kernel, depth int) (*MRM[T], Result) {
	if depth < 2 {
		return nil, k.faultStandalone(ErrInvalidParam)
	}
	m := &MRM[T]{
		k:        k,
		buffers:  make([]mrmBuffer[T], depth),
		freeNext: make([]int, depth),
		current:  -1,
		initDone: true,
	}
	for i := range m.buffers {
		m.buffers[i].idx = i
		m.freeNext[i] = i + 1
	}
	m.freeNext[depth-1] = -1
	return m, Success
}

// MRMHandle names a reserved or published buffer for Get/Unget.
type MRMHandle struct{ idx int }

// Valid reports whether h names a real buffer.
func (h MRMHandle) Valid() bool { return h.idx >= 0 }

// Reserve allocates a buffer to publish into (spec.md's kMRMReserve):
// if the current buffer has no readers, it is reused in place (its
// data zeroed); otherwise a fresh buffer is taken from the free list.
// Returns ERR_MEM_ALLOC if the pool is exhausted.
func (m *MRM[T]) Reserve() (MRMHandle, Result) {
	k := m.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if !m.initDone {
		return MRMHandle{-1}, k.faultLocked(ErrObjectNotInit)
	}
	if m.current >= 0 && m.buffers[m.current].nUsers == 0 {
		var zero T
		m.buffers[m.current].data = zero
		return MRMHandle{m.current}, Success
	}
	if m.freeHead == -1 {
		return MRMHandle{-1}, k.faultLocked(ErrMemAlloc)
	}
	idx := m.freeHead
	m.freeHead = m.freeNext[idx]
	m.freeNext[idx] = -2
	var zero T
	m.buffers[idx].data = zero
	m.buffers[idx].nUsers = 0
	return MRMHandle{idx}, Success
}

// Publish copies data into h's buffer and installs it as current
// (spec.md's kMRMPublish). Any previous current buffer that already
// has zero readers is released back to the free list.
func (m *MRM[T]) Publish(h MRMHandle, data T) Result {
	k := m.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if !m.initDone {
		return k.faultLocked(ErrObjectNotInit)
	}
	if h.idx < 0 || h.idx >= len(m.buffers) {
		return k.faultLocked(ErrInvalidParam)
	}
	m.buffers[h.idx].data = data
	prev := m.current
	m.current = h.idx
	if prev >= 0 && prev != h.idx && m.buffers[prev].nUsers == 0 {
		m.freeLocked(prev)
	}
	return Success
}

// Get copies the current buffer's value and bumps its reader count
// (spec.md's kMRMGet). Returns ERR_NOT_FOUND if nothing has been
// published yet.
func (m *MRM[T]) Get() (T, MRMHandle, Result) {
	k := m.k
	k.mu.Lock()
	defer k.mu.Unlock()
	var zero T
	if !m.initDone {
		return zero, MRMHandle{-1}, k.faultLocked(ErrObjectNotInit)
	}
	if m.current < 0 {
		return zero, MRMHandle{-1}, ErrNotFound
	}
	m.buffers[m.current].nUsers++
	return m.buffers[m.current].data, MRMHandle{m.current}, Success
}

// Unget releases a reader's hold on h, taken by an earlier Get
// (spec.md's kMRMUnget). If the count reaches zero and h is no longer
// the current buffer, it is returned to the free list.
func (m *MRM[T]) Unget(h MRMHandle) Result {
	k := m.k
	k.mu.Lock()
	defer k.mu.Unlock()
	if !m.initDone {
		return k.faultLocked(ErrObjectNotInit)
	}
	if h.idx < 0 || h.idx >= len(m.buffers) || m.buffers[h.idx].nUsers == 0 {
		return k.faultLocked(ErrInvalidParam)
	}
	m.buffers[h.idx].nUsers--
	if m.buffers[h.idx].nUsers == 0 && h.idx != m.current {
		m.freeLocked(h.idx)
	}
	return Success
}

func (m *MRM[T]) freeLocked(idx int) {
	var zero T
	m.buffers[idx].data = zero
	m.freeNext[idx] = m.freeHead
	m.freeHead = idx
}
