package cart

import (
	"context"
	"errors"

	"github.com/MarcGrol/shopcart/lib/myerrors"
	"github.com/MarcGrol/shopcart/lib/mylog"
)

type service struct {
	store  *Store
	logger mylog.Logger
}

// Use dependency injection to isolate the infrastructure and ease testing
func newService(store *Store, logger mylog.Logger) (*service, error) {
	if store == nil {
		return nil, ErrStoreNotProvided
	}
	return &service{
		store:  store,
		logger: logger,
	}, nil
}

func (s *service) getCart(c context.Context) (Cart, error) {
	select {
	case <-s.store.Ready():
	case <-c.Done():
		return nil, myerrors.NewUnavailableError(c.Err())
	}

	return s.store.Products(), nil
}

func (s *service) addToCart(c context.Context, product Product) (Cart, error) {
	s.logger.Log(c, product.ID, mylog.SeverityInfo, "Add product %s to cart", product.ID)

	current, err := s.store.AddToCart(c, product)
	if err != nil {
		return nil, asHTTPError(err)
	}
	return current, nil
}

func (s *service) increment(c context.Context, productID string) (Cart, error) {
	s.logger.Log(c, productID, mylog.SeverityInfo, "Increment product %s", productID)

	current, err := s.store.Increment(c, productID)
	if err != nil {
		return nil, asHTTPError(err)
	}
	return current, nil
}

func (s *service) decrement(c context.Context, productID string) (Cart, error) {
	s.logger.Log(c, productID, mylog.SeverityInfo, "Decrement product %s", productID)

	current, err := s.store.Decrement(c, productID)
	if err != nil {
		return nil, asHTTPError(err)
	}
	return current, nil
}

func asHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidProduct):
		return myerrors.NewInvalidInputError(err)
	case errors.Is(err, ErrClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return myerrors.NewUnavailableError(err)
	default:
		return myerrors.NewInternalError(err)
	}
}
