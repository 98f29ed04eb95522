package rk0

// tcb.go implements the Task Control Block half of C3 (spec.md §3/§4.2):
// the per-task record and its state machine. The ready-queue table lives
// in readyqueue.go.

// Priority is a task priority: 0 is highest, larger numbers are lower.
// MinPriority+1 is reserved for the idle task; the post-processing task
// runs at 0, which user tasks may share.
type Priority int8

// Ticks counts system-timer periods. A Ticks value of WaitForever is a
// sentinel meaning "block indefinitely", never a duration.
type Ticks uint32

const (
	// NoWait means "try once, never block".
	NoWait Ticks = 0
	// WaitForever means "block with no timeout".
	WaitForever Ticks = 1<<32 - 1
	// MaxPeriod is the largest tick count accepted as an actual duration.
	MaxPeriod Ticks = 1<<31 - 1
)

// State is a task's position in the lifecycle state machine (spec.md §4.3).
type State uint8

const (
	StateReady State = iota
	StateRunning
	StateSleepingDelay      // kSleep/kSleepUntil/kSleepPeriodic
	StateSleepingSuspended  // parked by Suspend
	StateBlocked            // semaphore/mutex pend, queue full
	StateSending            // message queue full, blocked sender
	StateReceiving          // message queue empty, blocked receiver
	StatePending            // event-flag wait
	StateDormant            // TCB slot not (yet) used
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateSleepingDelay:
		return "SLEEPING_DELAY"
	case StateSleepingSuspended:
		return "SLEEPING_SUSPENDED"
	case StateBlocked:
		return "BLOCKED"
	case StateSending:
		return "SENDING"
	case StateReceiving:
		return "RECEIVING"
	case StatePending:
		return "PENDING"
	case StateDormant:
		return "DORMANT"
	default:
		return "UNKNOWN"
	}
}

// EventWaitMode selects how a task's required event-flag mask is
// evaluated against its current flags (spec.md §4.9).
type EventWaitMode uint8

const (
	WaitAny EventWaitMode = iota
	WaitAll
)

// timeoutTag discriminates what a timeout-list node means on expiry
// (spec.md §3 "timeout delta-list", §9 "timeout discriminant").
type timeoutTag uint8

const (
	tagBlocking timeoutTag = iota
	tagEventFlags
	tagTimeEvent
	tagCalloutTimer
)

// TaskFunc is a task body. Its argument is the opaque args value passed
// to CreateTask. The kernel runs it once, on the task's own goroutine,
// the first time the task is dispatched (see kernel.go's runLoop).
type TaskFunc func(args any)

// TCB is a Task Control Block (spec.md §3). Fields are kernel-private;
// callers interact with tasks via Handle and the Kernel's task API.
type TCB struct {
	pid  int
	name string

	entry TaskFunc
	args  any

	// stackWords and preempt stand in for the stack-frame/PendSV contract
	// of spec.md §4.1 (out of scope as an implementation, required as a
	// bookkeeping attribute).
	stackWords int
	preempt    bool

	state State

	nominalPriority   Priority
	effectivePriority Priority

	// event register (C11)
	eventCurrent  uint32
	eventRequired uint32
	eventMode     EventWaitMode
	eventGot      uint32 // pre-clear snapshot, latched by EventSet for a woken waiter

	wakeTick Ticks
	timedOut bool

	// periodic sleep anchor, maintained by SleepPeriodic (spec.md §4.5).
	periodicAnchor    Ticks
	periodicAnchorSet bool

	readyNode listNode
	// readyPriority is the priority bucket readyNode is actually linked
	// into, valid only while readyNode.linked(). Recorded at insertion
	// time rather than re-read from effectivePriority at removal time,
	// since a priority-inheritance re-home (mutex.go, mesgqueue.go)
	// mutates effectivePriority before calling PushReady, and by then
	// effectivePriority no longer names the bucket the node is in.
	readyPriority Priority
	timeoutNode   timeoutNode

	// mutexes currently owned by this task, for priority-inheritance
	// recalculation on unlock (spec.md §4.7).
	ownedMutexes list
	mutexNode    listNode // not linked anywhere: ownedMutexes holds each Mutex's own node

	// waitNode is this task's node within whatever waitQueue it is
	// currently linked into (sleep queue, semaphore, mutex, message
	// queue...). A task is in at most one waiting queue at a time
	// (spec.md §3's TCB invariant), so one node suffices for all of them.
	waitNode listNode

	// blockedOn names the mutex this task is blocked on, for the
	// transitive-inheritance walk; nil when not blocked on a mutex.
	blockedOn *Mutex

	// mesgQOwnerAdopt names the message queue this task is blocked on
	// as a sender, if that queue has an owner whose priority it is
	// temporarily boosting (spec.md §4.10); nil otherwise. Interface-
	// typed since MesgQueue is generic over its message type.
	mesgQOwnerAdopt mesgQueueOwnerRecomputer

	// waitQueue is the waiting queue (if any) this task is currently
	// linked into, for the unified unblock-path cleanup.
	waitQueue *waitQueue

	// wake stands in for C5's PendSV context restore: the goroutine
	// running this task's body parks on wake whenever the task is not
	// RUNNING, and the scheduler sends on it exactly when dispatching
	// this task. See sched.go's architecture note.
	wake chan struct{}
}

// Handle is an opaque, stable reference to a task, returned by
// CreateTask and accepted by every API that targets a specific task.
type Handle struct {
	k   *Kernel
	tcb *TCB
}

// Valid reports whether h refers to a live TCB.
func (h Handle) Valid() bool { return h.tcb != nil }

// Name returns the task's name.
func (h Handle) Name() string {
	if h.tcb == nil {
		return ""
	}
	return h.tcb.name
}

// Priority returns the task's current effective priority.
func (h Handle) Priority() Priority {
	if h.tcb == nil {
		return 0
	}
	return h.tcb.effectivePriority
}

// State returns the task's current lifecycle state.
func (h Handle) State() State {
	if h.tcb == nil {
		return StateDormant
	}
	return h.tcb.state
}
