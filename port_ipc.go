package rk0

// port_ipc.go implements the RPC extension of C12 (spec.md §4.10): a
// message queue with the server flag set, where Recv adopts the
// sender's priority until the server marks the transaction done, and a
// client-side SendRecv/Reply request/response dance over a private
// reply mailbox. Named PortMessage/Port here to avoid colliding with
// port.go's C5 Port interface, which is an unrelated concept (the CPU
// dispatch contract, not the IPC pattern).
//
// The original expresses the request header (sender handle, reply
// mailbox pointer) as raw struct fields inside a void* message body;
// Go generics let PortMessage carry a strongly-typed request payload
// alongside that header instead of an untyped blob.

// PortMessage is one RPC request as seen by the server: the sender's
// identity (for a reply and for priority adoption), the request
// payload, and the private channel the reply is posted to.
type PortMessage[Req, Resp any] struct {
	Sender  Handle
	Payload Req

	replyBox *MesgQueue[portReply[Resp]]
	stale    *bool
}

// portReply is what SendRecv waits for.
type portReply[Resp any] struct {
	value Resp
}

// Port is a message queue specialized for request/reply RPC (spec.md's
// port object, `isServer` set).
type Port[Req, Resp any] struct {
	k *Kernel
	q *MesgQueue[PortMessage[Req, Resp]]
}

// NewPort creates a port with the given request-queue capacity.
func NewPort[Req, Resp any](k *Kernel, capacity int) (*Port[Req, Resp], Result) {
	q, res := NewMesgQueue[PortMessage[Req, Resp]](k, capacity)
	if res.Fatal() {
		return nil, res
	}
	q.isServer = true
	return &Port[Req, Resp]{k: k, q: q}, Success
}

// ServerRecv dequeues the next request, temporarily raising the
// calling (server) task's effective priority to the sender's nominal
// priority (server-side priority adoption, orthogonal to mutex
// priority inheritance - spec.md §4.10). Call ServerDone when the
// transaction is complete to restore nominal priority.
func (p *Port[Req, Resp]) ServerRecv(timeout Ticks) (PortMessage[Req, Resp], Result) {
	msg, res := p.q.Recv(timeout)
	if res.Success() {
		p.k.mu.Lock()
		self := p.k.running
		if msg.Sender.tcb != nil && msg.Sender.tcb.nominalPriority < self.effectivePriority {
			self.effectivePriority = msg.Sender.tcb.nominalPriority
		}
		p.k.mu.Unlock()
	}
	return msg, res
}

// ServerDone restores the calling task's effective priority to its
// nominal priority (spec.md's kPortServerDone).
func (p *Port[Req, Resp]) ServerDone() {
	k := p.k
	k.mu.Lock()
	if self := k.running; self != nil {
		self.effectivePriority = self.nominalPriority
	}
	k.mu.Unlock()
}

// SendRecv sends payload as a request and blocks on a private reply
// mailbox for the response (spec.md's kPortSendRecv). If the wait for
// either the request slot or the reply times out, a stale marker is
// left behind so a late server Reply fails fast instead of posting
// into a mailbox nobody is waiting on anymore.
func (p *Port[Req, Resp]) SendRecv(payload Req, timeout Ticks) (Resp, Result) {
	var zero Resp
	replyBox, res := NewMailbox[portReply[Resp]](p.k)
	if res.Fatal() {
		return zero, res
	}
	stale := new(bool)
	msg := PortMessage[Req, Resp]{Sender: p.k.Self(), Payload: payload, replyBox: replyBox, stale: stale}
	if res := p.q.Send(msg, timeout); !res.Success() {
		*stale = true
		return zero, res
	}
	reply, res := replyBox.Recv(timeout)
	if !res.Success() {
		*stale = true
		return zero, res
	}
	return reply.value, Success
}

// Reply posts value into msg's private reply mailbox (spec.md's
// kPortReply). Returns ERR_ERROR if the client already timed out and
// is no longer waiting.
func (p *Port[Req, Resp]) Reply(msg PortMessage[Req, Resp], value Resp) Result {
	if msg.stale != nil && *msg.stale {
		return ErrError
	}
	return msg.replyBox.PostOvw(portReply[Resp]{value: value})
}
