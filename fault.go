package rk0

import (
	"fmt"
	"runtime"

	"github.com/rk0kernel/rk0/internal/faultrate"
)

// FaultTag symbolically identifies what kind of fault fired, independent
// of the Result that triggered it, for grep-friendly log lines and trace
// dedup keys.
type FaultTag string

const (
	FaultTagGeneric         FaultTag = "generic"
	FaultTagNullObject      FaultTag = "null_object"
	FaultTagNotInit         FaultTag = "not_init"
	FaultTagDoubleInit      FaultTag = "double_init"
	FaultTagWrongType       FaultTag = "wrong_type"
	FaultTagInvalidParam    FaultTag = "invalid_param"
	FaultTagISRViolation    FaultTag = "isr_violation"
	FaultTagMutexNotOwner   FaultTag = "mutex_not_owner"
	FaultTagMutexRecursive  FaultTag = "mutex_recursive"
	FaultTagWrongState      FaultTag = "wrong_state"
	FaultTagStackOverflow   FaultTag = "stack_overflow"
	FaultTagTaskCount       FaultTag = "task_count_mismatch"
	FaultTagKernelVersion   FaultTag = "kernel_version"
	FaultTagApplicationInit FaultTag = "application_init"
)

// faultTagFor maps a fatal Result to its symbolic tag (spec.md §7's
// "symbolic fault tag"). Called only for r.Fatal() results.
func faultTagFor(r Result) FaultTag {
	switch r {
	case ErrObjectNull:
		return FaultTagNullObject
	case ErrObjectNotInit:
		return FaultTagNotInit
	case ErrDoubleInit:
		return FaultTagDoubleInit
	case ErrWrongObjectType:
		return FaultTagWrongType
	case ErrInvalidParam, ErrInvalidPriority, ErrInvalidTimeout, ErrInvalidMesgSize, ErrInvalidQueueSize:
		return FaultTagInvalidParam
	case ErrISRPrimitiveViolation:
		return FaultTagISRViolation
	case ErrMutexNotOwner:
		return FaultTagMutexNotOwner
	case ErrMutexRecursiveLock:
		return FaultTagMutexRecursive
	case ErrTaskWrongState:
		return FaultTagWrongState
	case ErrStackOverflow:
		return FaultTagStackOverflow
	case ErrTaskCountMismatch:
		return FaultTagTaskCount
	case ErrKernelVersion:
		return FaultTagKernelVersion
	case ErrApplicationInit:
		return FaultTagApplicationInit
	default:
		return FaultTagGeneric
	}
}

// FaultTrace is the record captured on a fatal Result when fault checking
// is enabled (spec.md §4.14/§7): the running task's name, the tick at the
// time of fault, the symbolic tag, the triggering Result, and the Go call
// site standing in for the original's saved-LR/PC neighborhood.
type FaultTrace struct {
	Task string
	Tick Ticks
	Tag  FaultTag
	Res  Result
	File string
	Line int
}

func (t FaultTrace) String() string {
	return fmt.Sprintf("rk0 fault: task=%s tick=%d tag=%s result=%q at %s:%d",
		t.Task, t.Tick, t.Tag, t.Res.Error(), t.File, t.Line)
}

// faultHandler records fault traces and drives the configured halt
// function on every fault. Only the log line is throttled: repeated
// identical faults (same task, same tag) within a short tick window are
// rate-limited through internal/faultrate so a spinning caller cannot
// flood the log — the
// original C kernel just halts on first fault and never needs this, but
// a long-running Go host can keep calling a faulting API in a loop if the
// halt function has been overridden to return instead of panicking.
type faultHandler struct {
	enabled bool
	log     *Logger
	halt    func(FaultTrace)
	limiter *faultrate.Limiter
}

func newFaultHandler(enabled bool, log *Logger, halt func(FaultTrace)) *faultHandler {
	return &faultHandler{
		enabled: enabled,
		log:     log,
		halt:    halt,
		limiter: faultrate.NewLimiter(faultrate.Rates{
			// at most 3 identical (task, tag) faults logged per 50-tick window
			Window: 50,
			Count:  3,
		}),
	}
}

// report is called with the current tick, the task name of the caller,
// and the fatal Result. It always returns r unmodified, making the usual
// call site `return k.faults.report(tick, taskName, r)`.
func (h *faultHandler) report(tick Ticks, taskName string, r Result) Result {
	if !r.Fatal() || h == nil || !h.enabled {
		return r
	}
	tag := faultTagFor(r)
	trace := FaultTrace{Task: taskName, Tick: tick, Tag: tag, Res: r}
	if _, file, line, ok := runtime.Caller(2); ok {
		trace.File, trace.Line = file, line
	}
	if h.limiter.Allow(faultrate.Category{Task: taskName, Tag: string(tag)}, int64(tick)) {
		if h.log != nil {
			h.log.Err().Str("task", trace.Task).Int64("tick", int64(trace.Tick)).
				Str("tag", string(trace.Tag)).Str("result", trace.Res.Error()).
				Str("site", fmt.Sprintf("%s:%d", trace.File, trace.Line)).
				Log("kernel fault")
		}
	}
	if h.halt != nil {
		h.halt(trace)
	}
	return r
}
