package mystore

import (
	"context"
	"fmt"

	"github.com/MarcGrol/shopcart/lib/myconfig"
)

//go:generate mockgen -source=api.go -package mystore -destination store_mock.go Store
type Store[T any] interface {
	RunInTransaction(c context.Context, f func(c context.Context) error) error
	Put(c context.Context, uid string, value T) error
	Get(c context.Context, uid string) (T, bool, error)
}

// New opens the backend selected by the configuration. The returned func
// releases the underlying resources.
func New[T any](c context.Context, cfg myconfig.Config) (Store[T], func(), error) {
	switch cfg.ResolvedBackend() {
	case myconfig.BackendDatastore:
		return newGcloudStore[T](c, cfg.GoogleCloudProject)
	case myconfig.BackendSQLite:
		return NewSQLiteStore[T](c, cfg.SQLitePath)
	case myconfig.BackendMemory:
		return NewInMemoryStore[T](c)
	default:
		return nil, func() {}, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}
