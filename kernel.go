package rk0

import "sync"

// kernel.go is the kernel object itself (C6's "high-level scheduler"
// state, plus boot): the single record collecting every piece of global
// mutable state spec.md §9 calls for ("Ready queues, tick counters, TCB
// pool, delta-list heads, scheduler lock counter... guarded by the
// critical-section primitive"). Grounded on the teacher's own top-level
// state record (eventloop's Loop holding its state machine, registries,
// and options together).
//
// Dispatch architecture (see sched.go for the full note): C5's register
// save/restore and PendSV trap are out of scope (spec.md §1) and cannot
// be expressed in portable Go. This reference-model kernel substitutes
// one goroutine per task, parked on a per-TCB channel whenever that task
// is not the RUNNING one, and a single mutex standing in for the
// original's PRIMASK-disable critical section. A task only relinquishes
// the CPU at a kernel-call checkpoint (blocking primitive, Yield, or
// return), exactly where the original also only reschedules.

// Version identifies this kernel implementation, supplementing the
// original's kversion.c (spec.md's distillation drops it, but
// original_source keeps a version/build-info surface; see SPEC_FULL.md §4).
const Version = "rk0-go/1.0.0"

// Kernel is the scheduler and synchronization-object factory: one
// instance models one running system.
type Kernel struct {
	mu sync.Mutex

	opts *kernelOptions
	log  *Logger
	port Port

	faults *faultHandler

	tick     Ticks
	wraps    uint64
	ready    *readyTable
	running  *TCB
	schedLck int
	pendSwch bool

	taskTimeouts  deltaList
	calloutTimers deltaList

	tasks     []*TCB
	nextPid   int
	userTasks int

	idle     *TCB
	postProc *postProcTask

	booted bool
}

// New constructs a Kernel. Call Boot once all system/user tasks needed
// at start-of-day have been created; CreateTask also accepts calls after
// Boot, up to the WithUserTaskCount limit.
func New(opts ...KernelOption) *Kernel {
	cfg := resolveKernelOptions(opts)
	if cfg.minPriority < 1 || cfg.minPriority > maxPriorities-2 {
		// priority 0 (post-processing) and minPriority+1 (idle) both
		// need their own slot in the 32-level ready bitmap.
		panic("rk0: min priority out of range")
	}
	k := &Kernel{
		opts: cfg,
		log:  cfg.log,
		port: noopPort{},
	}
	k.ready = newReadyTable(cfg.minPriority)
	k.faults = newFaultHandler(cfg.faultChecking, cfg.log, cfg.faultHalt)
	k.tasks = make([]*TCB, 0, cfg.userTaskCount+2)
	k.log.Info().Str("version", Version).Int("min_priority", int(cfg.minPriority)).
		Int("user_task_count", cfg.userTaskCount).Log("kernel constructed")
	return k
}

// Boot installs the port, creates the idle and post-processing system
// tasks if not already present, and dispatches the highest-priority
// ready task. Must be called exactly once.
func (k *Kernel) Boot(port Port) Result {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.booted {
		return k.faultLocked(ErrDoubleInit)
	}
	if port == nil {
		return k.faultLocked(ErrObjectNull)
	}
	k.port = port
	k.ensureSystemTasksLocked()
	next := k.ready.PopHighest()
	if next == nil {
		return k.faultLocked(ErrApplicationInit)
	}
	next.state = StateRunning
	k.running = next
	k.booted = true
	k.log.Info().Str("first_task", next.name).Log("kernel booted")
	k.wakeTCB(next)
	return Success
}

func (k *Kernel) ensureSystemTasksLocked() {
	if k.idle == nil {
		k.idle = k.newTaskLocked("idle", k.opts.minPriority+1, idleTaskBody, k, k.opts.idleStackWords, true)
		k.ready.PushReady(k.idle)
		go k.runLoop(k.idle)
	}
	if k.postProc == nil {
		k.postProc = newPostProcTask(k)
		k.ready.PushReady(k.postProc.tcb)
		go k.runLoop(k.postProc.tcb)
	}
}

func (k *Kernel) newTaskLocked(name string, prio Priority, fn TaskFunc, args any, stackWords int, preempt bool) *TCB {
	tcb := &TCB{
		pid:               k.nextPid,
		name:              name,
		entry:             fn,
		args:              args,
		stackWords:        stackWords,
		preempt:           preempt,
		state:             StateReady,
		nominalPriority:   prio,
		effectivePriority: prio,
		wake:              make(chan struct{}, 1),
	}
	k.nextPid++
	k.tasks = append(k.tasks, tcb)
	tcb.timeoutNode.owner = tcb
	return tcb
}

// CreateTask installs a new task in the TCB pool, enqueues it ready at
// priority, and spawns the goroutine that will run its body once
// dispatched (spec.md §4.2). priority must be in 0..=MinPriority;
// stackWords must be > 0; entry must not be nil.
func (k *Kernel) CreateTask(name string, entry TaskFunc, args any, stackWords int, priority Priority, preempt bool) (Handle, Result) {
	k.mu.Lock()
	if entry == nil {
		res := k.faultLocked(ErrObjectNull)
		k.mu.Unlock()
		return Handle{}, res
	}
	if priority < 0 || priority > k.opts.minPriority {
		res := k.faultLocked(ErrInvalidPriority)
		k.mu.Unlock()
		return Handle{}, res
	}
	if stackWords <= 0 {
		res := k.faultLocked(ErrInvalidParam)
		k.mu.Unlock()
		return Handle{}, res
	}
	k.ensureSystemTasksLocked()
	if k.userTasks >= k.opts.userTaskCount {
		res := k.faultLocked(ErrTaskCountMismatch)
		k.mu.Unlock()
		return Handle{}, res
	}
	tcb := k.newTaskLocked(name, priority, entry, args, stackWords, preempt)
	k.userTasks++
	k.ready.PushReady(tcb)
	go k.runLoop(tcb)
	k.log.Debug().Str("task", name).Int("priority", int(priority)).Log("task created")
	if k.running != nil && k.booted {
		// a live task created this one; the new arrival may outrank it
		k.reschedule(k.running)
	} else {
		k.mu.Unlock()
	}
	return Handle{k: k, tcb: tcb}, Success
}

// runLoop is the goroutine body spawned for every task: park until
// dispatched, run the task's entry function once (conventionally an
// infinite loop, per spec.md §8's scenarios), then retire on return.
func (k *Kernel) runLoop(tcb *TCB) {
	<-tcb.wake
	if tcb.entry != nil {
		tcb.entry(tcb.args)
	}
	k.mu.Lock()
	tcb.state = StateDormant
	if k.running == tcb {
		next := k.ready.PopHighest()
		if next != nil {
			next.state = StateRunning
			k.running = next
			k.wakeTCB(next)
		} else {
			k.running = nil
		}
	}
	k.mu.Unlock()
}

// wakeTCB signals tcb's parked goroutine. Must be called with mu held.
func (k *Kernel) wakeTCB(tcb *TCB) {
	select {
	case tcb.wake <- struct{}{}:
	default:
	}
}

// Tasks returns a snapshot of every live task handle, in pid order.
func (k *Kernel) Tasks() []Handle {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]Handle, len(k.tasks))
	for i, t := range k.tasks {
		out[i] = Handle{k: k, tcb: t}
	}
	return out
}

// Self returns the currently-running task's handle.
func (k *Kernel) Self() Handle {
	k.mu.Lock()
	defer k.mu.Unlock()
	return Handle{k: k, tcb: k.running}
}

// Tick returns the kernel's current monotonic tick count.
func (k *Kernel) Tick() Ticks {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.tick
}

// Logger returns the kernel's structured logger.
func (k *Kernel) Logger() *Logger { return k.log }

// Info is a diagnostic snapshot supplementing the original's
// kversion.c surface (SPEC_FULL.md §4): no behavioral meaning.
type Info struct {
	Version     string
	UptimeTicks Ticks
	WrapCount   uint64
	LiveTasks   int
	RunningTask string
	ReadyBitmap uint32
}

// Info returns a diagnostic snapshot of the kernel's state.
func (k *Kernel) Info() Info {
	k.mu.Lock()
	defer k.mu.Unlock()
	running := ""
	if k.running != nil {
		running = k.running.name
	}
	return Info{
		Version:     Version,
		UptimeTicks: k.tick,
		WrapCount:   k.wraps,
		LiveTasks:   len(k.tasks),
		RunningTask: running,
		ReadyBitmap: k.ready.bitmap,
	}
}

// faultLocked routes a fatal Result through the fault handler. Must be
// called with mu already held.
func (k *Kernel) faultLocked(res Result) Result {
	name := ""
	if k.running != nil {
		name = k.running.name
	}
	return k.faults.report(k.tick, name, res)
}
