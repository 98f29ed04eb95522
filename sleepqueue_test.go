package rk0

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSleepQueueSignalWakesHighestPriorityFirst covers spec.md §4.8: a
// bare wait point with no count or value, waking its highest-priority
// waiter first regardless of block order.
func TestSleepQueueSignalWakesHighestPriorityFirst(t *testing.T) {
	k := New(WithUserTaskCount(2), WithLogger(NewNopLogger()))
	sq := k.NewSleepQueue()

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(2)

	highBody := func(any) {
		defer wg.Done()
		record("high:waiting")
		require.True(t, sq.Wait(WaitForever).Success())
		record("high:woke")
	}

	// low (priority 5) blocks first, then creates high (priority 1) from
	// within its own body; high blocks too before anything signals, so
	// the queue holds both, low enqueued first but high outranking it.
	lowBody := func(any) {
		defer wg.Done()
		record("low:waiting")
		_, hres := k.CreateTask("high", highBody, nil, 64, 1, true)
		require.True(t, hres.Success())
		require.True(t, sq.Wait(WaitForever).Success())
		record("low:woke")
	}

	_, res := k.CreateTask("low", lowBody, nil, 64, 5, true)
	require.True(t, res.Success())
	require.True(t, k.Boot(noopPort{}).Success())

	waitForCondition(t, 2*time.Second, func() bool { return sq.q.Len() == 2 })

	require.True(t, sq.Signal().Success())
	require.True(t, sq.Signal().Success())

	waitOrTimeout(t, &wg, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"low:waiting", "high:waiting", "high:woke", "low:woke"}, order)
}

// TestSleepQueueWakeAll covers spec.md §4.8's bulk Wake(0): every
// waiter is released, in FIFO-by-priority order.
func TestSleepQueueWakeAll(t *testing.T) {
	k := New(WithUserTaskCount(3), WithLogger(NewNopLogger()))
	sq := k.NewSleepQueue()

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(3)
	body := func(name string) TaskFunc {
		return func(any) {
			defer wg.Done()
			require.True(t, sq.Wait(WaitForever).Success())
			record(name)
		}
	}

	_, res := k.CreateTask("a", body("a"), nil, 64, 5, true)
	require.True(t, res.Success())
	_, res = k.CreateTask("b", body("b"), nil, 64, 5, true)
	require.True(t, res.Success())
	_, res = k.CreateTask("c", body("c"), nil, 64, 5, true)
	require.True(t, res.Success())

	require.True(t, k.Boot(noopPort{}).Success())

	waitForCondition(t, 2*time.Second, func() bool { return sq.q.Len() == 3 })

	require.True(t, sq.Wake(0).Success())

	waitOrTimeout(t, &wg, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"a", "b", "c"}, order)
}

// TestSleepQueueReadySpecificTarget covers spec.md §4.8's targeted
// wake: only the named task is released, the other stays parked.
func TestSleepQueueReadySpecificTarget(t *testing.T) {
	k := New(WithUserTaskCount(2), WithLogger(NewNopLogger()))
	sq := k.NewSleepQueue()

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(1)

	other := func(any) {
		require.True(t, sq.Wait(WaitForever).Success())
		record("other:woke")
	}
	target := func(any) {
		defer wg.Done()
		require.True(t, sq.Wait(WaitForever).Success())
		record("target:woke")
	}

	targetHandle, res := k.CreateTask("target", target, nil, 64, 5, true)
	require.True(t, res.Success())
	_, res = k.CreateTask("other", other, nil, 64, 5, true)
	require.True(t, res.Success())

	require.True(t, k.Boot(noopPort{}).Success())

	waitForCondition(t, 2*time.Second, func() bool { return sq.q.Len() == 2 })

	require.True(t, sq.Ready(targetHandle).Success())

	waitOrTimeout(t, &wg, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"target:woke"}, order)
	require.Equal(t, 1, sq.q.Len(), "other must still be parked")
}
