package cart

import (
	"context"
	"fmt"

	"github.com/MarcGrol/shopcart/lib/myevents"
	"github.com/MarcGrol/shopcart/lib/mylog"
	"github.com/MarcGrol/shopcart/lib/mypubsub"
	"github.com/MarcGrol/shopcart/lib/mytime"
	"github.com/MarcGrol/shopcart/lib/myuuid"
	"github.com/MarcGrol/shopcart/services/cart/cartevents"
)

// Relay publishes every persisted cart change as a cart.changed event.
// Hydration is not a change and is never published.
type Relay struct {
	store     *Store
	pubsub    mypubsub.PubSub
	enveloper myevents.Enveloper
	logger    mylog.Logger
	changes   <-chan Cart
	cancel    func()
}

func NewRelay(store *Store, pubsub mypubsub.PubSub, nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) (*Relay, error) {
	if store == nil {
		return nil, ErrStoreNotProvided
	}

	// changes made between construction and Run are not lost
	changes, cancel := store.Changes()

	return &Relay{
		store:     store,
		pubsub:    pubsub,
		enveloper: myevents.NewEnveloper(nower, uuider),
		logger:    logger,
		changes:   changes,
		cancel:    cancel,
	}, nil
}

// Run blocks until c is cancelled or the store is closed.
func (r *Relay) Run(c context.Context) error {
	defer r.cancel()

	err := r.pubsub.CreateTopic(c, cartevents.TopicName)
	if err != nil {
		return fmt.Errorf("error creating topic %s: %s", cartevents.TopicName, err)
	}

	for {
		select {
		case <-c.Done():
			return nil
		case current, ok := <-r.changes:
			if !ok {
				return nil
			}
			err := r.publish(c, current)
			if err != nil {
				// a lost notification is superseded by the next one
				r.logger.Log(c, r.store.SlotKey(), mylog.SeverityError, "Error publishing cart change: %s", err)
			}
		}
	}
}

func (r *Relay) publish(c context.Context, current Cart) error {
	event := cartevents.CartChanged{
		SlotKey:   r.store.SlotKey(),
		Lines:     make([]cartevents.Line, 0, len(current)),
		ItemCount: current.Count(),
		Total:     current.Total().StringFixed(2),
	}
	for _, li := range current {
		event.Lines = append(event.Lines, cartevents.Line{
			ProductID: li.ID,
			Title:     li.Title,
			Price:     li.Price,
			Quantity:  li.Quantity,
		})
	}

	envelope, data, err := r.enveloper.Wrap(cartevents.TopicName, event)
	if err != nil {
		return err
	}

	err = r.pubsub.Publish(c, cartevents.TopicName, data)
	if err != nil {
		return err
	}

	r.logger.Log(c, r.store.SlotKey(), mylog.SeverityDebug, "Published %s", envelope.String())

	return nil
}
