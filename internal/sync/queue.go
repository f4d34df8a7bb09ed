package sync

import (
	stdsync "sync"
)

// OpQueue is an ordered, size-bounded queue of unconfirmed mutations. When
// full, the oldest entry is evicted to make room for the newest.
type OpQueue struct {
	mu    stdsync.Mutex
	limit int
	ops   []QueuedOperation
}

func NewOpQueue(limit int) *OpQueue {
	if limit <= 0 {
		limit = 100
	}
	return &OpQueue{limit: limit}
}

// Push appends an operation, evicting the oldest entries past the bound.
func (q *OpQueue) Push(op QueuedOperation) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ops = append(q.ops, op)
	if excess := len(q.ops) - q.limit; excess > 0 {
		q.ops = q.ops[excess:]
	}
}

// Drain applies each queued operation in order. Entries that fail are kept,
// with their attempt count bumped, for a later drain. The number of
// successfully applied operations is returned.
func (q *OpQueue) Drain(apply func(QueuedOperation) error) int {
	q.mu.Lock()
	pending := q.ops
	q.ops = nil
	q.mu.Unlock()

	applied := 0
	var retry []QueuedOperation
	for _, op := range pending {
		if err := apply(op); err != nil {
			op.Attempts++
			retry = append(retry, op)
			continue
		}
		applied++
	}

	if len(retry) > 0 {
		q.mu.Lock()
		// Re-queued entries go ahead of anything pushed mid-drain.
		q.ops = append(retry, q.ops...)
		if excess := len(q.ops) - q.limit; excess > 0 {
			q.ops = q.ops[excess:]
		}
		q.mu.Unlock()
	}
	return applied
}

func (q *OpQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Snapshot copies the current contents, oldest first.
func (q *OpQueue) Snapshot() []QueuedOperation {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueuedOperation, len(q.ops))
	copy(out, q.ops)
	return out
}

// Restore replaces the contents, trimming from the front if over the bound.
func (q *OpQueue) Restore(ops []QueuedOperation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if excess := len(ops) - q.limit; excess > 0 {
		ops = ops[excess:]
	}
	q.ops = make([]QueuedOperation, len(ops))
	copy(q.ops, ops)
}
