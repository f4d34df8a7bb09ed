package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	stdsync "sync"
	"time"
)

const (
	defaultFlushDelay = 2 * time.Second
	staleQueueEntry   = 24 * time.Hour
)

// LocalStore persists the engine's snapshot as a single JSON file so state
// survives a restart. Writes are debounced; Close flushes whatever is
// pending.
type LocalStore struct {
	mu         stdsync.Mutex
	path       string
	state      LocalState
	dirty      bool
	flushDelay time.Duration
	timer      *time.Timer
}

// NewLocalStore loads the snapshot at path, starting empty if the file does
// not exist yet.
func NewLocalStore(path string) (*LocalStore, error) {
	s := &LocalStore{
		path:       path,
		state:      newLocalState(),
		flushDelay: defaultFlushDelay,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local state: %w", err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("parse local state: %w", err)
	}
	s.state.ensureMaps()
	return s, nil
}

// View calls fn with the current state under the lock. fn must not retain
// references past the call.
func (s *LocalStore) View(fn func(*LocalState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
}

// Update mutates the state under the lock and schedules a debounced flush.
func (s *LocalStore) Update(fn func(*LocalState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.dirty = true
	if s.timer == nil {
		s.timer = time.AfterFunc(s.flushDelay, func() {
			if err := s.Flush(); err != nil {
				log.Printf("[sync] flush failed: %v", err)
			}
		})
	} else {
		s.timer.Reset(s.flushDelay)
	}
}

// Flush writes the snapshot to disk if it changed. A failed write triggers a
// stale-queue cleanup and one retry; if that also fails the write is dropped
// and logged, leaving the previous file intact.
func (s *LocalStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	if err := s.writeLocked(); err != nil {
		s.pruneStaleLocked()
		if err2 := s.writeLocked(); err2 != nil {
			log.Printf("[sync] dropping state write after retry: %v", err2)
			return err2
		}
	}
	s.dirty = false
	return nil
}

// Close flushes pending state and stops the debounce timer.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return s.Flush()
}

// writeLocked marshals and writes atomically via a temp file rename.
func (s *LocalStore) writeLocked() error {
	data, err := json.Marshal(&s.state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// pruneStaleLocked drops queue entries older than a day to shrink the
// snapshot before retrying a failed write.
func (s *LocalStore) pruneStaleLocked() {
	cutoff := time.Now().Add(-staleQueueEntry)
	kept := s.state.Queue[:0]
	for _, op := range s.state.Queue {
		if op.CreatedAt.After(cutoff) {
			kept = append(kept, op)
		}
	}
	if dropped := len(s.state.Queue) - len(kept); dropped > 0 {
		log.Printf("[sync] pruned %d stale queued operations", dropped)
	}
	s.state.Queue = kept
}
