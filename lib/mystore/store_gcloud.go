package mystore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"cloud.google.com/go/datastore"
)

const maxTransactionAttempts = 3

type gcloudTransactionKey struct{}

type gcloudStore[T any] struct {
	client *datastore.Client
	kind   string
}

func newGcloudStore[T any](c context.Context, projectID string) (*gcloudStore[T], func(), error) {
	client, err := datastore.NewClient(c, projectID)
	if err != nil {
		return nil, func() {}, fmt.Errorf("error creating datastore-client: %s", err)
	}

	return &gcloudStore[T]{
			client: client,
			kind:   kindOf[T](),
		}, func() {
			client.Close()
		}, nil
}

// kindOf derives the entity kind from the type name without package prefix.
func kindOf[T any]() string {
	kind := fmt.Sprintf("%T", *new(T))
	if idx := strings.LastIndex(kind, "."); idx >= 0 {
		kind = kind[idx+1:]
	}
	return kind
}

func (s *gcloudStore[T]) RunInTransaction(c context.Context, f func(c context.Context) error) error {
	var err error
	for i := 1; i <= maxTransactionAttempts; i++ {
		err = s.runInTransaction(c, f)
		if err != nil {
			if errors.Is(err, datastore.ErrConcurrentTransaction) {
				log.Printf("Concurrent transaction error, retrying (%d of %d): %s", i, maxTransactionAttempts, err)
				// retry requires idempotent business logic
				continue
			}

			return err
		}
		return nil
	}
	return err
}

func (s *gcloudStore[T]) runInTransaction(c context.Context, f func(c context.Context) error) error {
	// Start transaction
	t, err := s.client.NewTransaction(c)
	if err != nil {
		return fmt.Errorf("error creating transaction: %w", err)
	}

	// Shadow original context with new transactional context
	err = f(context.WithValue(c, gcloudTransactionKey{}, t))
	if err != nil {
		// Rollback
		rollbackError := t.Rollback()
		if rollbackError != nil {
			log.Printf("error rolling-back transaction %p: %s", t, rollbackError)
		}
		return err
	}

	// Commit
	_, err = t.Commit()
	if err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

func (s *gcloudStore[T]) Put(c context.Context, uid string, value T) error {
	key := datastore.NameKey(s.kind, uid, nil)

	transaction, ok := c.Value(gcloudTransactionKey{}).(*datastore.Transaction)
	if ok {
		_, err := transaction.Put(key, &value)
		if err != nil {
			return fmt.Errorf("error transactionally storing entity %s with uid %s: %s", s.kind, uid, err)
		}
		return nil
	}

	_, err := s.client.Put(c, key, &value)
	if err != nil {
		return fmt.Errorf("error storing entity %s with uid %s: %s", s.kind, uid, err)
	}

	return nil
}

func (s *gcloudStore[T]) Get(c context.Context, uid string) (T, bool, error) {
	key := datastore.NameKey(s.kind, uid, nil)
	value := new(T)

	var err error
	transaction, ok := c.Value(gcloudTransactionKey{}).(*datastore.Transaction)
	if ok {
		err = transaction.Get(key, value)
	} else {
		err = s.client.Get(c, key, value)
	}
	if err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return *value, false, nil
		}
		return *value, false, fmt.Errorf("error fetching entity %s with uid %s: %s", s.kind, uid, err)
	}

	return *value, true, nil
}
