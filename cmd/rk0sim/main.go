// Command rk0sim is a software-driven simulator that exercises every one
// of spec.md §8's six end-to-end scenarios against a virtual tick source,
// standing in for the QEMU/UART demo apps the original repo ships
// (out of scope per spec.md §1). Each scenario boots its own Kernel, since
// a handful need distinct task counts and tick-driving strategies.
//
// Run with: go run ./cmd/rk0sim/
package main

import (
	"fmt"
	"sync"
	"time"

	rk0 "github.com/rk0kernel/rk0"
)

// staticPort is a Port with no background tick source, for scenarios that
// either need no ticks at all or drive them directly via k.TickHandler
// rather than a wall-clock goroutine.
type staticPort struct{}

func (staticPort) PendContextSwitch() {}
func (staticPort) IsISR() bool        { return false }

// tickPort drives rk0.Kernel.TickHandler on a fixed wall-clock interval,
// standing in for a real system timer (spec.md §4.1).
type tickPort struct {
	k      *rk0.Kernel
	stop   chan struct{}
	period time.Duration
}

func (p *tickPort) PendContextSwitch() {}
func (p *tickPort) IsISR() bool        { return false }

func (p *tickPort) run() {
	t := time.NewTicker(p.period)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			p.k.TickHandler()
		case <-p.stop:
			return
		}
	}
}

func must(res rk0.Result) {
	if !res.Success() {
		panic(res)
	}
}

func banner(title string) {
	fmt.Println()
	fmt.Println("=== " + title + " ===")
}

// scenarioThreeTaskPreemption covers spec.md §8's first scenario: three
// tasks at distinct priorities, each sleeping 10 ticks in a loop,
// preempting each other strictly by priority.
func scenarioThreeTaskPreemption() {
	banner("1. three-task priority preemption")

	k := rk0.New(
		rk0.WithUserTaskCount(3),
		rk0.WithLogger(rk0.NewNopLogger()),
	)

	var wg sync.WaitGroup
	wg.Add(3)
	body := func(name string) rk0.TaskFunc {
		return func(args any) {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				fmt.Printf("  %-2s running at tick %d\n", name, k.Tick())
				k.Sleep(10)
			}
		}
	}

	_, _ = k.CreateTask("T1", body("T1"), nil, 256, 1, true)
	_, _ = k.CreateTask("T2", body("T2"), nil, 256, 2, true)
	_, _ = k.CreateTask("T3", body("T3"), nil, 256, 3, true)

	port := &tickPort{k: k, stop: make(chan struct{}), period: time.Millisecond}
	go port.run()

	must(k.Boot(port))
	wg.Wait()
	close(port.stop)
	fmt.Printf("  final tick: %d\n", k.Tick())
}

// scenarioMutexPriorityInheritance covers spec.md §4.7/§8's classic
// three-task priority-inversion scenario: a low-priority task holds a
// mutex a high-priority task wants, and a middle-priority task that
// needs neither must not cut in while low's priority is boosted above
// it. Every step is driven by the kernel's own preemption decisions
// (high and mid are created dynamically from low's own body), so the
// ordering below is exactly deterministic.
func scenarioMutexPriorityInheritance() {
	banner("2. mutex priority inheritance")

	k := rk0.New(
		rk0.WithUserTaskCount(3),
		rk0.WithLogger(rk0.NewNopLogger()),
	)
	m := k.NewMutex(true)

	var wg sync.WaitGroup
	wg.Add(3)

	midBody := func(any) {
		defer wg.Done()
		fmt.Println("  mid:   ran (did not cut in front of boosted low)")
	}
	highBody := func(any) {
		defer wg.Done()
		fmt.Println("  high:  blocking on mutex held by low")
		must(m.Lock(rk0.WaitForever))
		fmt.Println("  high:  acquired mutex")
	}
	lowBody := func(any) {
		defer wg.Done()
		must(m.Lock(rk0.WaitForever))
		fmt.Println("  low:   acquired mutex")

		// Creating high (numerically smaller priority than low) preempts
		// low immediately; high blocks on m and inherits its priority
		// into low. low resumes here only once high is parked on m.
		_, res := k.CreateTask("high", highBody, nil, 256, 1, true)
		must(res)
		fmt.Printf("  low:   inherited priority %d from high\n", k.Self().Priority())

		// mid outranks low's nominal priority but not its inherited one;
		// creating it here must not preempt low.
		_, res = k.CreateTask("mid", midBody, nil, 256, 3, true)
		must(res)

		fmt.Println("  low:   releasing mutex")
		must(m.Unlock())
	}

	_, res := k.CreateTask("low", lowBody, nil, 256, 5, true)
	must(res)
	must(k.Boot(staticPort{}))
	wg.Wait()
}

// scenarioMailboxOverwrite covers spec.md §8's mailbox-overwrite
// scenario: PostOvw always succeeds and silently replaces the pending
// value, and Recv drains the latest one.
func scenarioMailboxOverwrite() {
	banner("3. mailbox overwrite semantics")

	k := rk0.New(rk0.WithUserTaskCount(0), rk0.WithLogger(rk0.NewNopLogger()))
	must(k.Boot(staticPort{}))

	mb, res := rk0.NewMailbox[int](k)
	must(res)

	must(mb.PostOvw(1))
	fmt.Println("  posted 1")
	must(mb.PostOvw(2))
	fmt.Println("  posted 2 (overwrites 1)")

	got, res := mb.Recv(rk0.NoWait)
	must(res)
	fmt.Printf("  received %d (only the last post survives)\n", got)

	if _, res := mb.Recv(rk0.NoWait); res == rk0.ErrMesgQueueEmpty {
		fmt.Println("  second receive correctly reports the mailbox empty")
	} else {
		panic(res)
	}
}

// scenarioSemaphoreFairness covers spec.md §8's mixed-priority counting
// semaphore scenario: TA (prio 2), TB (prio 1), TC (prio 2) created in
// that order all block on an empty semaphore; three posts must wake
// them in strict priority order (TB, then TA, then TC, preserving FIFO
// between the two priority-2 waiters). A dedicated poster task (lowest
// priority of the four) performs the three posts: creating it below
// TA/TB/TC guarantees it only runs once all three are already blocked,
// and each Post immediately preempts it in favor of the waiter it just
// woke, giving the same deterministic ordering without any ISR
// simulation.
func scenarioSemaphoreFairness() {
	banner("4. counting semaphore fairness")

	k := rk0.New(rk0.WithUserTaskCount(4), rk0.WithLogger(rk0.NewNopLogger()))
	s, res := k.NewSemaphore(0, 3)
	must(res)

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(4)

	waiter := func(name string) rk0.TaskFunc {
		return func(any) {
			defer wg.Done()
			must(s.Pend(rk0.WaitForever))
			record(name)
		}
	}
	poster := func(any) {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			must(s.Post())
		}
	}

	_, res = k.CreateTask("TA", waiter("TA"), nil, 256, 2, true)
	must(res)
	_, res = k.CreateTask("TB", waiter("TB"), nil, 256, 1, true)
	must(res)
	_, res = k.CreateTask("TC", waiter("TC"), nil, 256, 2, true)
	must(res)
	_, res = k.CreateTask("poster", poster, nil, 256, 10, true)
	must(res)

	must(k.Boot(staticPort{}))
	wg.Wait()

	fmt.Printf("  wake order: %v (expected [TB TA TC])\n", order)
	st, res := s.Query()
	must(res)
	fmt.Printf("  final semaphore value: %d\n", st.Value)
}

// scenarioCalloutTimerReload covers spec.md §8's reload-timer scenario:
// phase=5, duration=10, reload enabled, driven for 35 ticks, expecting
// fires at ticks 15, 25 and 35: the first after phase+duration ticks,
// then one every duration ticks.
func scenarioCalloutTimerReload() {
	banner("5. callout timer reload")

	k := rk0.New(rk0.WithUserTaskCount(0), rk0.WithLogger(rk0.NewNopLogger()))
	must(k.Boot(staticPort{}))

	var fires []rk0.Ticks
	var mu sync.Mutex
	_, res := k.NewTimer(5, 10, true, func(any) {
		mu.Lock()
		fires = append(fires, k.Tick())
		mu.Unlock()
	}, nil)
	must(res)

	// the post-processing task runs each callback (and re-arms the timer)
	// asynchronously; pace the ticks so it drains between them, and give
	// it a moment after the last one before reading fires.
	for i := 0; i < 35; i++ {
		k.TickHandler()
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	fmt.Printf("  fires at ticks %v (expected [15 25 35])\n", fires)
	mu.Unlock()
}

// scenarioEventFlags covers spec.md §8's event-flag scenario: a WaitAny
// waiter wakes on the first matching bit, a WaitAll waiter only wakes
// once every required bit has been set. Each half uses its own Kernel
// and a dedicated low-priority signaller task, which only runs (and
// calls EventSet) once the higher-priority waiter has already blocked.
func scenarioEventFlags() {
	banner("6. event flags: ANY vs ALL")

	runHalf := func(label string, mode rk0.EventWaitMode, required uint32, sets []uint32) {
		k := rk0.New(rk0.WithUserTaskCount(2), rk0.WithLogger(rk0.NewNopLogger()))

		var wg sync.WaitGroup
		wg.Add(2)
		var waiterHandle rk0.Handle

		waiterBody := func(any) {
			defer wg.Done()
			got, res := k.EventGet(required, mode, rk0.WaitForever)
			must(res)
			fmt.Printf("  %s: waiter woke with flags 0x%x\n", label, got)
		}
		signallerBody := func(any) {
			defer wg.Done()
			for _, mask := range sets {
				must(k.EventSet(waiterHandle, mask))
				fmt.Printf("  %s: signaller set 0x%x\n", label, mask)
			}
		}

		h, res := k.CreateTask("waiter", waiterBody, nil, 256, 1, true)
		must(res)
		waiterHandle = h
		_, res = k.CreateTask("signaller", signallerBody, nil, 256, 5, true)
		must(res)

		must(k.Boot(staticPort{}))
		wg.Wait()
	}

	// ANY: waiter requires bits 0b1010 and wakes as soon as any one bit
	// in that mask is set.
	runHalf("ANY", rk0.WaitAny, 0b1010, []uint32{0b0010})

	// ALL: waiter requires bits 0b1010 and must not wake until both bits
	// have been set across two separate EventSet calls.
	runHalf("ALL", rk0.WaitAll, 0b1010, []uint32{0b0010, 0b1000})
}

func main() {
	scenarioThreeTaskPreemption()
	scenarioMutexPriorityInheritance()
	scenarioMailboxOverwrite()
	scenarioSemaphoreFairness()
	scenarioCalloutTimerReload()
	scenarioEventFlags()
	fmt.Println()
	fmt.Println("all six spec.md §8 scenarios completed")
}
