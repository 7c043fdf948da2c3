package checkout

import "sync"

// Transport carries messages between two frame contexts. Send is
// fire-and-forget: there is no acknowledgment or delivery guarantee, which
// is acceptable because the only peer is a cooperating frame in the same
// browsing session. Subscribe returns a cancel func that deregisters the
// handler; a subscription left registered after its session closes keeps
// receiving messages for unrelated sessions, which is a leak, so callers
// must cancel on close.
type Transport interface {
	Send(msg Message)
	Subscribe(fn func(Message)) (cancel func())
}

// NewPipe returns the two endpoints of an in-process transport: a message
// sent on one endpoint is delivered, in order, to handlers subscribed on
// the other.
func NewPipe() (Transport, Transport) {
	a := &pipeEndpoint{subs: make(map[int]func(Message))}
	b := &pipeEndpoint{subs: make(map[int]func(Message))}
	a.peer, b.peer = b, a
	return a, b
}

type pipeEndpoint struct {
	peer *pipeEndpoint

	mu     sync.Mutex
	subs   map[int]func(Message)
	nextID int
}

func (e *pipeEndpoint) Send(msg Message) {
	e.peer.dispatch(msg)
}

func (e *pipeEndpoint) Subscribe(fn func(Message)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

func (e *pipeEndpoint) dispatch(msg Message) {
	// Handlers are invoked outside the lock so they may subscribe,
	// cancel, or send without deadlocking.
	e.mu.Lock()
	handlers := make([]func(Message), 0, len(e.subs))
	for _, fn := range e.subs {
		handlers = append(handlers, fn)
	}
	e.mu.Unlock()

	for _, fn := range handlers {
		fn(msg)
	}
}
