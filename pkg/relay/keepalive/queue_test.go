package keepalive

import "testing"

func TestPipelineQueueFIFO(t *testing.T) {
	q := newPipelineQueue()
	if !q.empty() {
		t.Fatal("fresh queue should be empty")
	}

	a := &requestHolder{}
	b := &requestHolder{}
	c := &requestHolder{}
	q.push(a)
	q.push(b)
	q.push(c)

	if got := q.len(); got != 3 {
		t.Fatalf("len() = %d, want 3", got)
	}

	first, ok := q.popFront()
	if !ok || first != a {
		t.Fatalf("popFront() = %v, %v, want a, true", first, ok)
	}
	second, ok := q.popFront()
	if !ok || second != b {
		t.Fatalf("popFront() = %v, %v, want b, true", second, ok)
	}

	q.releaseAll()
	if !q.empty() {
		t.Fatal("releaseAll should empty the queue")
	}

	if _, ok := q.popFront(); ok {
		t.Fatal("popFront on an empty queue should report false")
	}
}
