package rk0

// postproc.go implements C15, the post-processing system task
// (spec.md §4.13): a fixed priority-0, non-preemptible task that drains
// deferred work handed to it by the tick handler (expired callout
// timers) outside the tick handler's own critical-section call stack,
// so a timer callback is free to call back into the kernel (lock/post/
// signal...) without re-entering code already on the call stack.
// Grounded on the teacher's own separation between the hot ingest path
// and its deferred consumer loop (eventloop's ChunkedIngress feeding a
// drain loop rather than running consumer callbacks inline).

// postProcTimerFlag is the post-processing task's own private event-flag
// bit, set by the tick handler whenever a callout timer has expired and
// needs its callback invoked.
const postProcTimerFlag uint32 = 1

// postProcJobFlag is the post-processing task's event-flag bit for its
// deferred-job queue (spec.md §4.12's "POSTPROC-JOB" flag): message-
// queue reset and bulk sleep-queue wake, deferred here when called from
// ISR context or with more than one waiter so the ISR path stays bounded.
const postProcJobFlag uint32 = 2

// postProcTask is the kernel-private state backing the post-processing
// task's TCB.
type postProcTask struct {
	k   *Kernel
	tcb *TCB

	// due holds callout timers that fired this tick and are waiting for
	// their callback to run. Guarded by k.mu: the tick handler appends
	// to it (already holding mu), and run drains it under mu before
	// releasing the lock to actually invoke the callbacks.
	due []*Timer

	// jobs holds deferred work items (message-queue reset, bulk
	// sleep-queue wake) enqueued from contexts that must not do
	// unbounded work themselves. Guarded by k.mu.
	jobs []func()
}

// newPostProcTask creates the post-processing task at priority 0,
// non-preemptible (spec.md §4.13: it always runs to completion of its
// current drain pass once dispatched). Must be called with mu held.
func newPostProcTask(k *Kernel) *postProcTask {
	t := &postProcTask{k: k}
	t.tcb = k.newTaskLocked("postproc", 0, t.run, nil, k.opts.postProcStackWords, false)
	return t
}

// enqueueLocked hands a fired timer to the post-processing task and
// wakes it. Must be called with mu held (the tick handler's critical
// section).
func (t *postProcTask) enqueueLocked(tm *Timer) {
	t.due = append(t.due, tm)
	t.k.setEventFlagsLocked(t.tcb, postProcTimerFlag)
}

// drainLocked detaches and returns every timer queued since the last
// drain. Must be called with mu held.
func (t *postProcTask) drainLocked() []*Timer {
	if len(t.due) == 0 {
		return nil
	}
	due := t.due
	t.due = nil
	return due
}

// enqueueJobLocked hands a deferred job to the post-processing task and
// wakes it. Must be called with mu held.
func (t *postProcTask) enqueueJobLocked(fn func()) {
	t.jobs = append(t.jobs, fn)
	t.k.setEventFlagsLocked(t.tcb, postProcJobFlag)
}

// drainJobsLocked detaches and returns every deferred job queued since
// the last drain. Must be called with mu held.
func (t *postProcTask) drainJobsLocked() []func() {
	if len(t.jobs) == 0 {
		return nil
	}
	jobs := t.jobs
	t.jobs = nil
	return jobs
}

// run is the post-processing task's body: wait for work, drain both
// queues, run callbacks/jobs with no kernel lock held, reload periodic
// timers, repeat.
func (t *postProcTask) run(args any) {
	k := t.k
	for {
		if _, res := k.EventGet(postProcTimerFlag|postProcJobFlag, WaitAny, WaitForever); res.Fatal() {
			continue
		}
		k.mu.Lock()
		due := t.drainLocked()
		jobs := t.drainJobsLocked()
		k.mu.Unlock()
		for _, tm := range due {
			tm.callback(tm.arg)
			if tm.reload {
				k.mu.Lock()
				tm.rearmLocked()
				k.mu.Unlock()
			}
		}
		for _, fn := range jobs {
			fn()
		}
	}
}
