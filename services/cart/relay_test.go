package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/shopcart/lib/myevents"
	"github.com/MarcGrol/shopcart/lib/mylog"
	"github.com/MarcGrol/shopcart/lib/mypubsub"
	"github.com/MarcGrol/shopcart/lib/mytime"
	"github.com/MarcGrol/shopcart/lib/myuuid"
	"github.com/MarcGrol/shopcart/services/cart/cartevents"
)

func TestRelay(t *testing.T) {

	t.Run("Publishes cart changes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, slots, _ := setupSlots(t)
		store, _ := startStore(t, ctx, slots)
		pubsub := mypubsub.NewFake()
		sut := newTestRelay(t, ctrl, store, pubsub)

		relayCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stopped := make(chan error, 1)
		go func() {
			stopped <- sut.Run(relayCtx)
		}()

		// when
		_, err := store.AddToCart(ctx, apple)
		assert.NoError(t, err)
		_, err = store.AddToCart(ctx, apple)
		assert.NoError(t, err)

		// then
		assert.Eventually(t, func() bool {
			publications := pubsub.Publications()
			if len(publications) == 0 {
				return false
			}
			envelope, event := decodePublication(t, publications[len(publications)-1])
			return envelope.UID == "event-uid" && event.ItemCount == 2
		}, time.Second, 5*time.Millisecond)

		envelope, event := decodePublication(t, pubsub.Publications()[len(pubsub.Publications())-1])
		assert.Equal(t, cartevents.TopicName, envelope.Topic)
		assert.Equal(t, DefaultSlotKey, envelope.AggregateUID)
		assert.Equal(t, mytime.ExampleTime, envelope.CreatedAt)
		assert.Equal(t, cartevents.CartChanged{
			SlotKey:   DefaultSlotKey,
			Lines:     []cartevents.Line{{ProductID: "a", Title: "Apple", Price: 1.25, Quantity: 2}},
			ItemCount: 2,
			Total:     "2.50",
		}, event)

		// when
		cancel()

		// then
		assert.NoError(t, <-stopped)
	})

	t.Run("Publishes only real changes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, slots, _ := setupSlots(t)
		putSlot(t, ctx, slots, `[{"id":"b","title":"Banana","image_url":"","price":0.5,"quantity":1}]`, 1)
		store, _ := startStore(t, ctx, slots)
		pubsub := mypubsub.NewFake()
		sut := newTestRelay(t, ctrl, store, pubsub)

		relayCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go sut.Run(relayCtx)

		// when
		_, err := store.Increment(ctx, "missing")
		assert.NoError(t, err)
		_, err = store.Decrement(ctx, "missing")
		assert.NoError(t, err)
		_, err = store.AddToCart(ctx, apple)
		assert.NoError(t, err)

		// then
		assert.Eventually(t, func() bool {
			return len(pubsub.Publications()) > 0
		}, time.Second, 5*time.Millisecond)
		assert.NoError(t, store.Flush(ctx))
		time.Sleep(20 * time.Millisecond)

		publications := pubsub.Publications()
		assert.Len(t, publications, 1)
		_, event := decodePublication(t, publications[0])
		assert.Equal(t, 2, event.ItemCount)
		assert.Equal(t, int64(3), getSlot(t, ctx, slots).Version, "unknown increment is still written")
	})

	t.Run("Stops when store closes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, slots, _ := setupSlots(t)
		store, _ := startStore(t, ctx, slots)
		sut := newTestRelay(t, ctrl, store, mypubsub.NewFake())

		stopped := make(chan error, 1)
		go func() {
			stopped <- sut.Run(ctx)
		}()

		// when
		store.Close()

		// then
		select {
		case err := <-stopped:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			assert.Fail(t, "relay did not stop")
		}
	})

	t.Run("Topic creation fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, slots, _ := setupSlots(t)
		store, _ := startStore(t, ctx, slots)
		pubsub := mypubsub.NewMockPubSub(ctrl)
		pubsub.EXPECT().CreateTopic(gomock.Any(), cartevents.TopicName).Return(fmt.Errorf("permission denied"))
		sut, err := NewRelay(store, pubsub, mytime.RealNower{}, myuuid.RealUUIDer{}, mylog.NewRecorder())
		assert.NoError(t, err)

		// when
		err = sut.Run(ctx)

		// then
		assert.ErrorContains(t, err, "permission denied")
	})

	t.Run("Publish failure is logged", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, slots, _ := setupSlots(t)
		store, _ := startStore(t, ctx, slots)
		pubsub := mypubsub.NewMockPubSub(ctrl)
		pubsub.EXPECT().CreateTopic(gomock.Any(), cartevents.TopicName).Return(nil)
		pubsub.EXPECT().Publish(gomock.Any(), cartevents.TopicName, gomock.Any()).Return(fmt.Errorf("broker down"))
		recorder := mylog.NewRecorder()
		sut, err := NewRelay(store, pubsub, mytime.RealNower{}, myuuid.RealUUIDer{}, recorder)
		assert.NoError(t, err)

		relayCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go sut.Run(relayCtx)

		// when
		_, err = store.AddToCart(ctx, apple)
		assert.NoError(t, err)

		// then
		assert.Eventually(t, func() bool {
			return len(recorder.Records(mylog.SeverityError)) == 1
		}, time.Second, 5*time.Millisecond)
		assert.Contains(t, recorder.Records(mylog.SeverityError)[0].Message, "broker down")
	})

	t.Run("Store is required", func(t *testing.T) {
		_, err := NewRelay(nil, mypubsub.NewFake(), mytime.RealNower{}, myuuid.RealUUIDer{}, mylog.NewRecorder())

		assert.ErrorIs(t, err, ErrStoreNotProvided)
	})
}

func TestDispatchCartChanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	uuider := myuuid.NewMockUUIDer(ctrl)
	uuider.EXPECT().Create().Return("event-uid")
	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime)

	published := cartevents.CartChanged{
		SlotKey:   DefaultSlotKey,
		Lines:     []cartevents.Line{{ProductID: "b", Title: "Banana", Price: 0.5, Quantity: 3}},
		ItemCount: 3,
		Total:     "1.50",
	}
	_, data, err := myevents.NewEnveloper(nower, uuider).Wrap(cartevents.TopicName, published)
	assert.NoError(t, err)

	receiver := &receivingService{}
	err = cartevents.DispatchEvent(context.TODO(), []byte(data), receiver)
	assert.NoError(t, err)

	assert.Equal(t, []cartevents.CartChanged{published}, receiver.received)

	err = cartevents.DispatchEvent(context.TODO(), []byte(`{"EventTypeName":"cart.emptied"}`), receiver)
	assert.ErrorContains(t, err, "unsupported event type")
}

type receivingService struct {
	sync.Mutex
	received []cartevents.CartChanged
}

func (s *receivingService) OnCartChanged(c context.Context, topic string, event cartevents.CartChanged) error {
	s.Lock()
	defer s.Unlock()

	s.received = append(s.received, event)
	return nil
}

func newTestRelay(t *testing.T, ctrl *gomock.Controller, store *Store, pubsub mypubsub.PubSub) *Relay {
	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
	uuider := myuuid.NewMockUUIDer(ctrl)
	uuider.EXPECT().Create().Return("event-uid").AnyTimes()

	sut, err := NewRelay(store, pubsub, nower, uuider, mylog.NewRecorder())
	assert.NoError(t, err)
	return sut
}

func decodePublication(t *testing.T, publication mypubsub.Publication) (myevents.EventEnvelope, cartevents.CartChanged) {
	envelope := myevents.EventEnvelope{}
	err := json.Unmarshal([]byte(publication.Data), &envelope)
	assert.NoError(t, err)

	event := cartevents.CartChanged{}
	err = json.Unmarshal([]byte(envelope.EventPayload), &event)
	assert.NoError(t, err)

	return envelope, event
}
