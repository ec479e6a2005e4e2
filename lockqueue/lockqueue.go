package lockqueue

import (
	"log"
	"sync"
)

// KeyedLockQueue serializes asynchronous operations per key: operations
// enqueued under the same key run one at a time in submission order, while
// operations under different keys run concurrently. A key's queue is created
// on first use and discarded once its backlog drains, so memory is bounded by
// in-flight keys.
type KeyedLockQueue struct {
	mu     sync.Mutex
	queues map[string]*keyState
}

type keyState struct {
	backlog Queue[func()]
	done    chan struct{} // closed when the backlog drains
}

// NewKeyedLockQueue returns an empty queue set.
func NewKeyedLockQueue() *KeyedLockQueue {
	return &KeyedLockQueue{queues: make(map[string]*keyState)}
}

// Enqueue schedules op to run after every previously enqueued operation for
// key has finished, and before any later one starts. Unknown keys are
// registered silently.
func (k *KeyedLockQueue) Enqueue(key string, op func()) {
	k.mu.Lock()
	state, running := k.queues[key]
	if !running {
		state = &keyState{done: make(chan struct{})}
		k.queues[key] = state
	}
	state.backlog.Enqueue(op)
	k.mu.Unlock()

	if !running {
		go k.drain(key, state)
	}
}

// Wait blocks until the backlog for key is empty. It returns immediately when
// the key has no queue.
func (k *KeyedLockQueue) Wait(key string) {
	k.mu.Lock()
	state, ok := k.queues[key]
	k.mu.Unlock()
	if !ok {
		return
	}
	<-state.done
}

// drain runs the backlog for one key to exhaustion, then retires the key.
func (k *KeyedLockQueue) drain(key string, state *keyState) {
	for {
		k.mu.Lock()
		op, ok := state.backlog.Dequeue()
		if !ok {
			delete(k.queues, key)
			close(state.done)
			k.mu.Unlock()
			return
		}
		k.mu.Unlock()
		run(key, op)
	}
}

// run executes one operation, recovering a panic so a misbehaving handler
// cannot wedge later operations for the same key.
func run(key string, op func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("lockqueue: operation for key %s panicked: %v", key, r)
		}
	}()
	op()
}
