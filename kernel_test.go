package rk0

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// driveTicks spawns a goroutine that calls k.TickHandler() at a fast,
// fixed wall-clock cadence until stop is closed, standing in for a
// hardware tick source the way cmd/rk0sim's tickPort does.
func driveTicks(k *Kernel, period time.Duration) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				k.TickHandler()
			case <-done:
				return
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

// waitOrTimeout fails the test instead of hanging forever if wg never
// completes, since a scheduling bug here manifests as deadlock, not a
// clean assertion failure.
func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for tasks to finish")
	}
}

// waitForCondition polls cond until it reports true or timeout elapses,
// failing the test in the latter case. Used to wait for a task's
// goroutine to actually reach a blocked state before a test drives the
// next step from outside any task (see toggleISRPort).
func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// toggleISRPort is a Port whose IsISR reports whatever the test last set,
// modelling a real ISR trampoline that flips an interrupt-context flag
// around the handler body. Tests use this to call a non-blocking kernel
// API (a semaphore Post, an EventSet...) directly from the test's own
// goroutine - one with no task identity of its own - without tripping
// finishLocked's task-context reschedule handoff, which has nothing to
// park a bare host goroutine on.
type toggleISRPort struct {
	isr atomic.Bool
}

func (p *toggleISRPort) PendContextSwitch() {}
func (p *toggleISRPort) IsISR() bool        { return p.isr.Load() }

// asISR runs fn with the port's IsISR flag raised, lowering it again
// before returning.
func (p *toggleISRPort) asISR(fn func()) {
	p.isr.Store(true)
	defer p.isr.Store(false)
	fn()
}

// TestThreeTaskPriorityPreemption covers spec.md §8's first scenario:
// three periodic tasks at distinct priorities always run in strict
// priority order each round, with idle only running in between.
func TestThreeTaskPriorityPreemption(t *testing.T) {
	k := New(WithUserTaskCount(3), WithLogger(NewNopLogger()))

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	wg.Add(3)

	const rounds = 3
	body := func(name string) TaskFunc {
		return func(any) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				require.True(t, k.Sleep(10).Success())
			}
		}
	}

	_, res := k.CreateTask("T1", body("T1"), nil, 64, 1, true)
	require.True(t, res.Success())
	_, res = k.CreateTask("T2", body("T2"), nil, 64, 2, true)
	require.True(t, res.Success())
	_, res = k.CreateTask("T3", body("T3"), nil, 64, 3, true)
	require.True(t, res.Success())

	stop := driveTicks(k, time.Millisecond)
	defer stop()

	require.True(t, k.Boot(noopPort{}).Success())

	waitOrTimeout(t, &wg, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 3*rounds)
	for r := 0; r < rounds; r++ {
		got := order[r*3 : r*3+3]
		require.Equal(t, []string{"T1", "T2", "T3"}, got, "round %d", r)
	}
}

// TestYieldRotatesEqualPriority checks that Yield hands off to another
// ready task at the same priority and rotates the yielding task to the
// tail of its own queue (spec.md §4.2's kYield).
func TestYieldRotatesEqualPriority(t *testing.T) {
	k := New(WithUserTaskCount(2), WithLogger(NewNopLogger()))

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	wg.Add(2)

	body := func(name string) TaskFunc {
		return func(any) {
			defer wg.Done()
			for i := 0; i < 2; i++ {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				k.Yield()
			}
		}
	}

	_, res := k.CreateTask("A", body("A"), nil, 64, 5, true)
	require.True(t, res.Success())
	_, res = k.CreateTask("B", body("B"), nil, 64, 5, true)
	require.True(t, res.Success())

	require.True(t, k.Boot(noopPort{}).Success())
	waitOrTimeout(t, &wg, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"A", "B", "A", "B"}, order)
}

// TestSchedLockDefersPreemption verifies that a higher-priority task
// readied while the scheduler is locked does not preempt, and is
// dispatched as soon as the matching SchedUnlock drops the lock count
// to zero (spec.md §4.2's scheduler lock).
func TestSchedLockDefersPreemption(t *testing.T) {
	k := New(WithUserTaskCount(2), WithLogger(NewNopLogger()))

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	unlockNow := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	highBody := func(any) {
		defer wg.Done()
		record("high:ran")
	}

	lowBody := func(any) {
		defer wg.Done()
		k.SchedLock()
		record("low:locked")
		// high has strictly greater priority (smaller number); readying
		// it while the scheduler is locked must not preempt low here.
		_, res := k.CreateTask("high", highBody, nil, 64, 1, true)
		require.True(t, res.Success())
		<-unlockNow
		record("low:before-unlock")
		k.SchedUnlock()
	}

	_, res := k.CreateTask("low", lowBody, nil, 64, 5, true)
	require.True(t, res.Success())

	require.True(t, k.Boot(noopPort{}).Success())

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	require.Equal(t, []string{"low:locked"}, order)
	mu.Unlock()

	close(unlockNow)
	waitOrTimeout(t, &wg, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"low:locked", "low:before-unlock", "high:ran"}, order)
}
