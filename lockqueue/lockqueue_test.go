package lockqueue

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedLockQueueOrdersSameKey(t *testing.T) {
	lq := NewKeyedLockQueue()

	var mu sync.Mutex
	var order []int

	// Later operations finish faster; FIFO must hold regardless.
	delays := []time.Duration{30 * time.Millisecond, 10 * time.Millisecond, 0}
	for i, d := range delays {
		i, d := i, d
		lq.Enqueue("post-1", func() {
			time.Sleep(d)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	lq.Wait("post-1")

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Fatalf("completion order = %v, want [0 1 2]", order)
	}
}

func TestKeyedLockQueueKeysRunIndependently(t *testing.T) {
	lq := NewKeyedLockQueue()

	slowStarted := make(chan struct{})
	release := make(chan struct{})
	lq.Enqueue("slow", func() {
		close(slowStarted)
		<-release
	})
	<-slowStarted

	fastDone := make(chan struct{})
	lq.Enqueue("fast", func() { close(fastDone) })

	select {
	case <-fastDone:
	case <-time.After(time.Second):
		t.Fatalf("operation under a distinct key was blocked by another key's backlog")
	}
	close(release)
	lq.Wait("slow")
}

func TestKeyedLockQueueWaitOnIdleKey(t *testing.T) {
	lq := NewKeyedLockQueue()
	done := make(chan struct{})
	go func() {
		lq.Wait("never-used")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Wait on an unknown key did not return immediately")
	}
}

func TestKeyedLockQueueSurvivesPanic(t *testing.T) {
	lq := NewKeyedLockQueue()
	lq.Enqueue("post-2", func() { panic("boom") })

	done := make(chan struct{})
	lq.Enqueue("post-2", func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("a panicking operation wedged the queue for its key")
	}
}

func TestKeyedLockQueueRetiresDrainedKeys(t *testing.T) {
	lq := NewKeyedLockQueue()
	lq.Enqueue("post-3", func() {})
	lq.Wait("post-3")

	lq.mu.Lock()
	n := len(lq.queues)
	lq.mu.Unlock()
	if n != 0 {
		t.Fatalf("drained key still registered, %d queues live", n)
	}
}
