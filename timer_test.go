package rk0

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestTimerOneShotFires covers spec.md §4.12's kCalloutTimerInit: the
// callback runs exactly once, after phase+duration ticks, on the
// post-processing task rather than inline on the tick handler.
func TestTimerOneShotFires(t *testing.T) {
	k := New(WithUserTaskCount(0), WithLogger(NewNopLogger()))
	require.True(t, k.Boot(noopPort{}).Success())

	var fired atomic.Int32
	_, res := k.NewTimer(2, 3, false, func(any) { fired.Add(1) }, nil)
	require.True(t, res.Success())

	stop := driveTicks(k, time.Millisecond)
	defer stop()

	waitForCondition(t, 2*time.Second, func() bool { return fired.Load() == 1 })

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), fired.Load(), "a one-shot timer must not fire twice")
}

// TestTimerReloadFiresRepeatedly covers the reload case: duration
// re-arms every firing, phase is never reapplied (SPEC_FULL.md §4's
// Open-Question resolution).
func TestTimerReloadFiresRepeatedly(t *testing.T) {
	k := New(WithUserTaskCount(0), WithLogger(NewNopLogger()))
	require.True(t, k.Boot(noopPort{}).Success())

	var count atomic.Int32
	tm, res := k.NewTimer(0, 2, true, func(any) { count.Add(1) }, nil)
	require.True(t, res.Success())

	stop := driveTicks(k, time.Millisecond)

	waitForCondition(t, 2*time.Second, func() bool { return count.Load() >= 3 })

	require.True(t, tm.Cancel().Success())
	stop()

	st, res := tm.Query()
	require.True(t, res.Success())
	require.False(t, st.Active)
}

// TestTimerCancelPreventsFiring covers spec.md's kCalloutTimerCancel:
// canceling before expiry means the callback never runs.
func TestTimerCancelPreventsFiring(t *testing.T) {
	k := New(WithUserTaskCount(0), WithLogger(NewNopLogger()))
	require.True(t, k.Boot(noopPort{}).Success())

	var fired atomic.Bool
	tm, res := k.NewTimer(0, 5, false, func(any) { fired.Store(true) }, nil)
	require.True(t, res.Success())
	require.True(t, tm.Cancel().Success())

	stop := driveTicks(k, time.Millisecond)
	defer stop()
	time.Sleep(50 * time.Millisecond)

	require.False(t, fired.Load())
}

// TestTimerCancelAlreadyFiredReturnsNotFound covers the double-cancel /
// cancel-after-one-shot-fired case. ErrNotFound is a fatal Result, so
// fault checking is off to get it returned instead of halting.
func TestTimerCancelAlreadyFiredReturnsNotFound(t *testing.T) {
	k := New(WithUserTaskCount(0), WithLogger(NewNopLogger()), WithFaultChecking(false))
	require.True(t, k.Boot(noopPort{}).Success())

	var fired atomic.Bool
	tm, res := k.NewTimer(0, 2, false, func(any) { fired.Store(true) }, nil)
	require.True(t, res.Success())

	stop := driveTicks(k, time.Millisecond)

	waitForCondition(t, 2*time.Second, fired.Load)
	stop()

	require.Equal(t, ErrNotFound, tm.Cancel())
}
