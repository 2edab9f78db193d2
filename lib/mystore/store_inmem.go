package mystore

import (
	"context"
	"maps"
	"sync"
)

type inMemoryTransactionKey struct{}

type InMemoryStore[T any] struct {
	sync.Mutex
	Items map[string]T
}

func NewInMemoryStore[T any](c context.Context) (*InMemoryStore[T], func(), error) {
	return &InMemoryStore[T]{
		Items: make(map[string]T),
	}, func() {}, nil
}

func (s *InMemoryStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	// Start transaction
	s.Lock()
	defer s.Unlock()

	snapshot := maps.Clone(s.Items)

	ctx := context.WithValue(c, inMemoryTransactionKey{}, s)

	err := f(ctx)
	if err != nil {
		// Rollback
		s.Items = snapshot
		return err
	}

	// Commit
	return nil
}

func (s *InMemoryStore[T]) inTransaction(c context.Context) bool {
	owner, ok := c.Value(inMemoryTransactionKey{}).(*InMemoryStore[T])
	return ok && owner == s
}

func (s *InMemoryStore[T]) Put(c context.Context, uid string, value T) error {
	if !s.inTransaction(c) {
		s.Lock()
		defer s.Unlock()
	}

	s.Items[uid] = value

	return nil
}

func (s *InMemoryStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	if !s.inTransaction(c) {
		s.Lock()
		defer s.Unlock()
	}

	result, exists := s.Items[uid]

	return result, exists, nil
}
