package engine

import (
	"sync"

	"github.com/StitchDesign/Stitch-sub007/internal/eval"
	"github.com/StitchDesign/Stitch-sub007/internal/graph"
	"github.com/StitchDesign/Stitch-sub007/internal/value"
)

// RequestType distinguishes external requests.
type RequestType int

const (
	// RequestMarkDirty schedules a node for the next step.
	RequestMarkDirty RequestType = iota + 1
	// RequestSetInput injects a literal into an unconnected input.
	RequestSetInput
	// RequestGesture applies a state update to an interaction node.
	RequestGesture
	// RequestRestart resets every node's ephemeral state.
	RequestRestart
)

func (t RequestType) String() string {
	switch t {
	case RequestMarkDirty:
		return "mark_dirty"
	case RequestSetInput:
		return "set_input"
	case RequestGesture:
		return "gesture"
	case RequestRestart:
		return "restart"
	default:
		return "unknown"
	}
}

// Request is an event from outside the engine. Requests are applied by
// the actor between steps, never during one.
type Request struct {
	Type   RequestType
	Node   graph.NodeID
	Port   int
	Value  value.Loop
	Update func(eval.State) eval.State
}

// requestQueue is a thread-safe FIFO of requests.
//
// The queue is unbounded so gesture sources never block on a busy engine.
// A buffered signal channel lets the Run loop wait on the queue and a
// context at the same time.
type requestQueue struct {
	mu       sync.Mutex
	requests []Request
	closed   bool
	signal   chan struct{} // buffered, size 1
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		requests: make([]Request, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue. It returns false once
// the queue is closed.
func (q *requestQueue) Enqueue(r Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.requests = append(q.requests, r)

	// Non-blocking; the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Drain removes and returns every pending request in arrival order.
func (q *requestQueue) Drain() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return nil
	}
	out := q.requests
	q.requests = make([]Request, 0, cap(out))
	return out
}

// Wait returns a channel that signals when requests may be available. It
// is closed when the queue closes.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending requests.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Close stops the queue accepting requests and wakes any waiter.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Closed reports whether Close has been called.
func (q *requestQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
