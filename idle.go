package rk0

// idle.go implements the idle task referenced by spec.md §4.13: the
// lowest-priority task, always runnable, dispatched only when every
// other task is blocked or sleeping. The original spins on a WFI
// instruction; WFI has no portable Go equivalent (it is a CPU sleep
// awaiting the next interrupt), so this reference model's idle body
// just yields repeatedly, which has the same scheduling effect - it
// never itself makes forward progress and hands the CPU back the
// instant anything else becomes ready.
func idleTaskBody(args any) {
	k := args.(*Kernel)
	for {
		k.Yield()
	}
}
