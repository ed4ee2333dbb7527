// Package inmem is a volatile store used by tests.
package inmem

import (
	"sync"
	"time"

	"github.com/mvberkel/pipster/pkg/order"
	"github.com/mvberkel/pipster/pkg/signal"
)

type Store struct {
	mu       sync.Mutex
	messages map[string][]string
	orders   map[int64][]*order.Submission
}

func New() *Store {
	return &Store{
		messages: make(map[string][]string),
		orders:   make(map[int64][]*order.Submission),
	}
}

func (s *Store) RecordNew(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[id]; ok {
		return signal.ErrDuplicate
	}
	s.messages[id] = []string{text}
	return nil
}

func (s *Store) RecordEdit(id, text string) (signal.Outcome, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions, ok := s.messages[id]
	if !ok {
		return signal.Untracked, "", nil
	}
	last := versions[len(versions)-1]
	if last == text {
		return signal.Unchanged, "", nil
	}
	s.messages[id] = append(versions, text)
	return signal.Revised, last, nil
}

func (s *Store) Latest(id string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions, ok := s.messages[id]
	if !ok {
		return "", false, nil
	}
	return versions[len(versions)-1], true, nil
}

func (s *Store) Append(at time.Time, subs []*order.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[at.UTC().UnixNano()] = subs
	return nil
}

// Versions returns the stored revision history for a message id.
func (s *Store) Versions(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages[id]...)
}
