package lockqueue

// Queue is a double-ended FIFO with amortized O(1) operations, backed by two
// stacks: pushes land on toPush, pops drain current, and when current runs
// dry toPush is reversed into it.
type Queue[T any] struct {
	toPush  []T
	current []T
}

// Enqueue appends v to the back of the queue.
func (q *Queue[T]) Enqueue(v T) {
	q.toPush = append(q.toPush, v)
}

// First returns the front element without removing it. The second return is
// false when the queue is empty.
func (q *Queue[T]) First() (T, bool) {
	if n := len(q.current); n > 0 {
		return q.current[n-1], true
	}
	if len(q.toPush) > 0 {
		return q.toPush[0], true
	}
	var zero T
	return zero, false
}

// Dequeue removes and returns the front element. The second return is false
// when the queue is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	if len(q.current) == 0 {
		for i, j := 0, len(q.toPush)-1; i < j; i, j = i+1, j-1 {
			q.toPush[i], q.toPush[j] = q.toPush[j], q.toPush[i]
		}
		q.toPush, q.current = q.current, q.toPush
	}
	n := len(q.current)
	if n == 0 {
		var zero T
		return zero, false
	}
	v := q.current[n-1]
	var zero T
	q.current[n-1] = zero
	q.current = q.current[:n-1]
	return v, true
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	return len(q.toPush) + len(q.current)
}
