package keepalive

import "time"

// requestHolder is a fully-decoded request waiting for its turn at the
// head of the pipeline. The request's body (if any) is a live
// io.Reader on req.req.Body — the reader goroutine gates parsing the
// next request on this one's body reaching EOF (see connection.go),
// so by the time a holder reaches the front of the queue its body has
// either not started or is still readable in full by the Handler.
type requestHolder struct {
	req     *requestHeadEvent
	arrival time.Time
}

// pipelineQueue is the connection's FIFO of requests that have been
// fully or partially decoded but not yet handed to the Handler. It is
// touched only by the executor goroutine (§5), so — unlike the
// teacher's pool.go, which reaches for sync.Pool/atomics because
// multiple goroutines share it — this is a plain slice with no
// synchronization at all.
type pipelineQueue struct {
	items []*requestHolder
}

// newPipelineQueue returns an empty queue with a little headroom for
// the common shallow-pipelining case (2-3 buffered requests).
func newPipelineQueue() *pipelineQueue {
	return &pipelineQueue{items: make([]*requestHolder, 0, 4)}
}

func (q *pipelineQueue) empty() bool {
	return len(q.items) == 0
}

func (q *pipelineQueue) len() int {
	return len(q.items)
}

// push enqueues a newly decoded request head.
func (q *pipelineQueue) push(h *requestHolder) {
	q.items = append(q.items, h)
}

// popFront removes and returns the oldest buffered request.
func (q *pipelineQueue) popFront() (*requestHolder, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	h := q.items[0]
	copy(q.items, q.items[1:])
	q.items[len(q.items)-1] = nil
	q.items = q.items[:len(q.items)-1]
	return h, true
}

// releaseAll drops every buffered request (used when the connection is
// closing with requests still pipelined and un-served).
func (q *pipelineQueue) releaseAll() {
	q.items = q.items[:0]
}
