package rk0

// kernelOptions holds the compile-time tunables of spec.md §6, resolved
// at construction time since this module has no actual compile step.
type kernelOptions struct {
	minPriority        Priority
	userTaskCount      int
	idleStackWords     int
	postProcStackWords int
	tickPeriod         Ticks
	faultChecking      bool
	log                *Logger
	mesgQueueNotify    bool
	ports            bool
	faultHalt        func(FaultTrace)
}

// KernelOption configures a Kernel at construction time. See New.
type KernelOption interface {
	applyKernel(*kernelOptions)
}

type kernelOptionFunc func(*kernelOptions)

func (f kernelOptionFunc) applyKernel(o *kernelOptions) { f(o) }

// WithMinPriority sets MIN_PRIO, the highest (numerically largest)
// priority available to user tasks; the idle task lives one below it.
// Must be in 1..30 (New panics otherwise): priority 0 and MIN_PRIO+1
// (idle) both need a slot in the one-word, 32-level ready-bitmap.
func WithMinPriority(p Priority) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.minPriority = p })
}

// WithUserTaskCount fixes the TCB pool size (spec.md §6 "user task count").
// Creating more tasks than this faults with ErrTaskCountMismatch.
func WithUserTaskCount(n int) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.userTaskCount = n })
}

// WithIdleStackWords sets the idle task's stack size in words.
func WithIdleStackWords(n int) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.idleStackWords = n })
}

// WithPostProcStackWords sets the post-processing task's stack size in words.
func WithPostProcStackWords(n int) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.postProcStackWords = n })
}

// WithTickPeriod records the nominal duration of one tick, for diagnostics
// and for callers converting wall-clock durations to tick counts. It has
// no effect on scheduling, which is always expressed in ticks.
func WithTickPeriod(d Ticks) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.tickPeriod = d })
}

// WithFaultChecking enables parameter/state validation whose failure
// (a negative Result) also invokes the fault handler (spec.md §4.14).
// When disabled, the same conditions just return the error code.
func WithFaultChecking(enabled bool) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.faultChecking = enabled })
}

// WithLogger installs a structured logger. Defaults to a stumpy-backed
// logiface logger writing JSON to stderr; pass a no-op logger to silence.
func WithLogger(l *Logger) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.log = l })
}

// WithFaultHalt overrides what happens after a fault trace is recorded
// with fault checking enabled. Defaults to panic(trace).
func WithFaultHalt(fn func(FaultTrace)) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.faultHalt = fn })
}

// WithMesgQueueNotify enables the optional send-notify callback feature
// of the message queue family (spec.md §3, C12).
func WithMesgQueueNotify(enabled bool) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.mesgQueueNotify = enabled })
}

// WithPorts records whether the RPC port extension of the message queue
// family is enabled. NewPort does not consult it: ports can be created
// whatever this is set to.
func WithPorts(enabled bool) KernelOption {
	return kernelOptionFunc(func(o *kernelOptions) { o.ports = enabled })
}

// resolveKernelOptions applies KernelOption instances over the defaults.
func resolveKernelOptions(opts []KernelOption) *kernelOptions {
	cfg := &kernelOptions{
		// 30, not 31: priority 0 holds the post-processing task and
		// minPriority+1 is reserved for idle, and both must still fit in
		// the 32-bit ready-bitmap (maxPriorities in readyqueue.go).
		minPriority:        30,
		userTaskCount:      16,
		idleStackWords:     64,
		postProcStackWords: 128,
		tickPeriod:         1,
		faultChecking:      true,
		mesgQueueNotify:    true,
		ports:              true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyKernel(cfg)
	}
	if cfg.log == nil {
		cfg.log = defaultLogger()
	}
	if cfg.faultHalt == nil {
		cfg.faultHalt = func(t FaultTrace) { panic(t) }
	}
	return cfg
}
