package sync

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func op(id string) QueuedOperation {
	return QueuedOperation{ID: id, Type: OpUpsertDocument, CreatedAt: time.Now()}
}

func TestOpQueueEvictsOldestPastBound(t *testing.T) {
	q := NewOpQueue(3)
	for i := 1; i <= 5; i++ {
		q.Push(op(fmt.Sprintf("op-%d", i)))
	}

	if q.Len() != 3 {
		t.Fatalf("len = %d, want 3", q.Len())
	}
	snap := q.Snapshot()
	if snap[0].ID != "op-3" || snap[2].ID != "op-5" {
		t.Fatalf("wrong survivors: %s .. %s", snap[0].ID, snap[2].ID)
	}
}

func TestOpQueueDrainInOrder(t *testing.T) {
	q := NewOpQueue(10)
	q.Push(op("a"))
	q.Push(op("b"))
	q.Push(op("c"))

	var seen []string
	applied := q.Drain(func(o QueuedOperation) error {
		seen = append(seen, o.ID)
		return nil
	})

	if applied != 3 || q.Len() != 0 {
		t.Fatalf("applied=%d len=%d", applied, q.Len())
	}
	if seen[0] != "a" || seen[1] != "b" || seen[2] != "c" {
		t.Fatalf("drain out of order: %v", seen)
	}
}

func TestOpQueueDrainRequeuesFailures(t *testing.T) {
	q := NewOpQueue(10)
	q.Push(op("good"))
	q.Push(op("bad"))

	applied := q.Drain(func(o QueuedOperation) error {
		if o.ID == "bad" {
			return errors.New("remote down")
		}
		return nil
	})

	if applied != 1 {
		t.Fatalf("applied = %d, want 1", applied)
	}
	snap := q.Snapshot()
	if len(snap) != 1 || snap[0].ID != "bad" {
		t.Fatalf("failed op not re-queued: %+v", snap)
	}
	if snap[0].Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", snap[0].Attempts)
	}
}

func TestOpQueueRestoreTrimsOverBound(t *testing.T) {
	q := NewOpQueue(2)
	q.Restore([]QueuedOperation{op("1"), op("2"), op("3")})

	snap := q.Snapshot()
	if len(snap) != 2 || snap[0].ID != "2" {
		t.Fatalf("restore did not trim from the front: %+v", snap)
	}
}
