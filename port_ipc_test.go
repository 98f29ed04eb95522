package rk0

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestPortSendRecvRoundTrip covers spec.md §4.10's port RPC extension:
// a client's SendRecv is satisfied end-to-end by a server's
// ServerRecv/Reply/ServerDone cycle. The server outranks the client, so
// no server-side priority adoption takes place here.
func TestPortSendRecvRoundTrip(t *testing.T) {
	k := New(WithUserTaskCount(2), WithLogger(NewNopLogger()))
	p, res := NewPort[int, int](k, 1)
	require.True(t, res.Success())

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(2)

	serverBody := func(any) {
		defer wg.Done()
		msg, res := p.ServerRecv(WaitForever)
		require.True(t, res.Success())
		record("server:recv")
		require.Equal(t, 5, msg.Payload)

		require.True(t, p.Reply(msg, msg.Payload*2).Success())
		p.ServerDone()
		record("server:done")
	}
	clientBody := func(any) {
		defer wg.Done()
		record("client:send")
		resp, res := p.SendRecv(5, WaitForever)
		require.True(t, res.Success())
		require.Equal(t, 10, resp)
		record("client:got")
	}

	// server outranks client (smaller priority number) so Boot dispatches
	// it first; it blocks immediately on the empty request queue, and the
	// client's subsequent Send both delivers the request and, by readying
	// the higher-priority server, preempts the client mid-SendRecv.
	_, res = k.CreateTask("server", serverBody, nil, 64, 1, true)
	require.True(t, res.Success())
	_, res = k.CreateTask("client", clientBody, nil, 64, 5, true)
	require.True(t, res.Success())

	require.True(t, k.Boot(noopPort{}).Success())
	waitOrTimeout(t, &wg, 5*time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"client:send", "server:recv", "server:done", "client:got"}, order)
}

// TestPortReplyAfterClientTimeoutIsStale covers spec.md §4.10's
// stale-reply guard: once a client's SendRecv has given up waiting on
// its private reply mailbox, a server's late Reply must fail with
// ERR_ERROR rather than post into a mailbox nobody reads anymore.
func TestPortReplyAfterClientTimeoutIsStale(t *testing.T) {
	k := New(WithUserTaskCount(2), WithLogger(NewNopLogger()), WithFaultChecking(false))
	p, res := NewPort[int, int](k, 1)
	require.True(t, res.Success())
	gate, res := k.NewSemaphore(0, 1)
	require.True(t, res.Success())

	var wg sync.WaitGroup
	wg.Add(2)
	var clientRes Result
	var replyRes Result

	serverBody := func(any) {
		defer wg.Done()
		msg, res := p.ServerRecv(WaitForever)
		require.True(t, res.Success())
		// hold the reply until the test says the client has already
		// given up, so the Reply below lands on a stale request.
		require.True(t, gate.Pend(WaitForever).Success())
		replyRes = p.Reply(msg, 99)
	}
	clientHandle, cres := k.CreateTask("client", func(any) {
		defer wg.Done()
		_, clientRes = p.SendRecv(7, 3)
	}, nil, 64, 5, true)
	require.True(t, cres.Success())
	_, res = k.CreateTask("server", serverBody, nil, 64, 1, true)
	require.True(t, res.Success())

	port := &toggleISRPort{}
	require.True(t, k.Boot(port).Success())

	waitForCondition(t, 2*time.Second, func() bool {
		k.mu.Lock()
		defer k.mu.Unlock()
		return clientHandle.tcb.state == StateReceiving
	})

	for i := 0; i < 3; i++ {
		k.TickHandler()
	}

	waitForCondition(t, 2*time.Second, func() bool {
		k.mu.Lock()
		defer k.mu.Unlock()
		return clientRes != 0
	})

	port.asISR(func() { require.True(t, gate.Post().Success()) })

	waitOrTimeout(t, &wg, 5*time.Second)
	require.Equal(t, ErrTimeout, clientRes)
	require.Equal(t, ErrError, replyRes)
}
