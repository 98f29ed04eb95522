package rk0

import "fmt"

// Result is the discriminated return code every public kernel API
// produces, per spec.md §7. Zero is success, positive values are
// transient "can't proceed now" outcomes that are normal control flow
// for try-mode calls, negative values are programmer/system errors.
//
// The contract is the taxonomy (the sign and the grouping), not the
// numeric values themselves.
type Result int32

// Error implements error so a Result can be returned/compared with the
// standard errors package, while callers that only care about success
// can keep testing `res == rk0.Success`.
func (r Result) Error() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("rk0: unknown result %d", int32(r))
}

// Success reports whether r is the zero/success code.
func (r Result) Success() bool { return r == Success }

// Transient reports whether r is a non-fatal "try again" outcome.
func (r Result) Transient() bool { return r > Success }

// Fatal reports whether r is a programmer/system error.
func (r Result) Fatal() bool { return r < Success }

const (
	// Success indicates the call completed as requested.
	Success Result = 0
)

// Transient results: positive, normal control flow for try-mode calls.
const (
	ErrTimeout Result = iota + 1
	ErrElapsedPeriod
	ErrQueueFull
	ErrQueueEmpty
	ErrSemaBlocked
	ErrSemaFull
	ErrFlagsNotMet
	ErrEmptyWaitingQueue
	ErrMesgQueueEmpty
	ErrMesgQueueFull
)

// Fatal/programmer results: negative, recoverable at the API boundary
// but also eligible to invoke the fault handler (spec.md §4.14).
const (
	ErrError Result = -(iota + 1)
	ErrObjectNull
	ErrObjectNotInit
	ErrDoubleInit
	ErrWrongObjectType
	ErrInvalidParam
	ErrInvalidPriority
	ErrInvalidTimeout
	ErrInvalidMesgSize
	ErrInvalidQueueSize
	ErrISRPrimitiveViolation
	ErrMutexNotOwner
	ErrMutexRecursiveLock
	ErrTaskWrongState
	ErrMesgQueueHasOwner
	ErrInvalidReceiver
	ErrPortOwner
	ErrMemFree
	ErrMemAlloc
	ErrStackOverflow
	ErrTaskCountMismatch
	ErrKernelVersion
	ErrApplicationInit
	ErrNotFound
)

var resultNames = map[Result]string{
	Success:                  "success",
	ErrTimeout:               "timed out",
	ErrElapsedPeriod:         "sleep-until period already elapsed",
	ErrQueueFull:             "queue full",
	ErrQueueEmpty:            "queue empty",
	ErrSemaBlocked:           "semaphore pend would block",
	ErrSemaFull:              "semaphore post would exceed max",
	ErrFlagsNotMet:           "required event flags not met",
	ErrEmptyWaitingQueue:     "waiting queue is empty",
	ErrMesgQueueEmpty:        "message queue empty",
	ErrMesgQueueFull:         "message queue full",
	ErrError:                 "generic error",
	ErrObjectNull:            "object pointer is nil",
	ErrObjectNotInit:         "object not initialized",
	ErrDoubleInit:            "object already initialized",
	ErrWrongObjectType:       "wrong kernel object type",
	ErrInvalidParam:          "invalid parameter",
	ErrInvalidPriority:       "invalid priority",
	ErrInvalidTimeout:        "invalid timeout duration",
	ErrInvalidMesgSize:       "invalid message size",
	ErrInvalidQueueSize:      "invalid queue capacity",
	ErrISRPrimitiveViolation: "blocking primitive invoked from ISR context",
	ErrMutexNotOwner:         "unlock attempted by non-owner",
	ErrMutexRecursiveLock:    "recursive mutex lock",
	ErrTaskWrongState:        "task in wrong state for requested operation",
	ErrMesgQueueHasOwner:     "message queue already has an owner",
	ErrInvalidReceiver:       "receive attempted by non-owner",
	ErrPortOwner:             "port operation requires server role",
	ErrMemFree:               "double free of pool block",
	ErrMemAlloc:              "memory pool allocation failed",
	ErrStackOverflow:         "task stack guard word corrupted",
	ErrTaskCountMismatch:     "more tasks created than configured pool size",
	ErrKernelVersion:         "invalid kernel version",
	ErrApplicationInit:       "application init failed",
	ErrNotFound:              "object not found",
}
