package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MarcGrol/shopcart/lib/mylog"
	"github.com/MarcGrol/shopcart/lib/mystore"
	"github.com/MarcGrol/shopcart/lib/mytime"
)

const DefaultSlotKey = "@goMarketplace:products"

// outcome tells the actor what to do with the cart a mutation produced.
type outcome struct {
	persist bool
	publish bool
}

var (
	unchanged = outcome{}
	changed   = outcome{persist: true, publish: true}
	// touched carts are written but not reported as changed
	touched = outcome{persist: true}
)

type command struct {
	// A nil apply only acknowledges, which makes it a flush barrier.
	apply func(current Cart) (Cart, outcome)
	reply chan Cart
}

type subscriber struct {
	ch chan Cart
	// changesOnly subscribers skip the snapshots of hydration and subscription
	changesOnly bool
}

// Store owns the cart of one device. All mutations and their persistence
// writes are executed one after the other by a single goroutine, so the slot
// always ends up holding the most recently committed cart.
type Store struct {
	slots   mystore.Store[Slot]
	slotKey string
	nower   mytime.Nower
	logger  mylog.Logger

	commands  chan command
	quit      chan struct{}
	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by the actor goroutine
	version int64

	mu               sync.RWMutex
	products         Cart
	hydrated         bool
	hydrationErr     error
	persistFailures  int
	subscribers      map[int]subscriber
	nextSubscriberID int
}

type Option func(s *Store)

func WithSlotKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.slotKey = key
		}
	}
}

func WithNower(nower mytime.Nower) Option {
	return func(s *Store) {
		s.nower = nower
	}
}

func WithLogger(logger mylog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore starts the store and begins hydrating it from the slot. The
// returned store is usable right away: mutations issued while hydrating are
// applied once the persisted cart has been loaded.
func NewStore(c context.Context, slots mystore.Store[Slot], opts ...Option) (*Store, error) {
	if slots == nil {
		return nil, fmt.Errorf("slot storage is required")
	}

	s := &Store{
		slots:       slots,
		slotKey:     DefaultSlotKey,
		nower:       mytime.RealNower{},
		commands:    make(chan command),
		quit:        make(chan struct{}),
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
		products:    Cart{},
		subscribers: map[int]subscriber{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = mylog.New("cart")
	}

	// writes must outlive the request that happened to create the store
	go s.run(context.WithoutCancel(c))

	return s, nil
}

func (s *Store) SlotKey() string {
	return s.slotKey
}

// AddToCart adds one unit of product. An existing line-item takes over the
// descriptive fields of product.
func (s *Store) AddToCart(c context.Context, product Product) (Cart, error) {
	err := validateProduct(product)
	if err != nil {
		return nil, err
	}

	return s.submit(c, func(current Cart) (Cart, outcome) {
		return addToCart(current, product), changed
	})
}

// Increment adds one unit to the line-item with id. An unknown id leaves the
// cart as is, but the cart is still written.
func (s *Store) Increment(c context.Context, id string) (Cart, error) {
	return s.submit(c, func(current Cart) (Cart, outcome) {
		_, found := current.Find(id)
		if !found {
			return current.clone(), touched
		}
		return increment(current, id), changed
	})
}

// Decrement removes one unit from the line-item with id and drops the
// line-item when no units remain. An unknown id is ignored without a write.
func (s *Store) Decrement(c context.Context, id string) (Cart, error) {
	return s.submit(c, func(current Cart) (Cart, outcome) {
		next, found := decrement(current, id)
		if !found {
			return next, unchanged
		}
		return next, changed
	})
}

// Flush returns once every mutation submitted before it has been persisted.
func (s *Store) Flush(c context.Context) error {
	_, err := s.submit(c, nil)
	return err
}

// Products returns a snapshot of the cart. While hydrating this is the empty cart.
func (s *Store) Products() Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.products.clone()
}

// Ready is closed once hydration has finished, successfully or not.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

func (s *Store) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Err reports why hydration fell back to an empty cart, if it did.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.hydrationErr
}

func (s *Store) PersistFailures() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.persistFailures
}

// Subscribe delivers the current cart, the hydrated cart and the cart after
// every persisted change. A slow subscriber only sees the most recent
// snapshot. The channel is closed by the returned cancel func or when the
// store is closed.
func (s *Store) Subscribe() (<-chan Cart, func()) {
	return s.subscribe(false)
}

// Changes is like Subscribe, but only delivers carts produced by a persisted
// change.
func (s *Store) Changes() (<-chan Cart, func()) {
	return s.subscribe(true)
}

func (s *Store) subscribe(changesOnly bool) (<-chan Cart, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubscriberID
	s.nextSubscriberID++

	ch := make(chan Cart, 1)
	select {
	case <-s.done:
		close(ch)
		return ch, func() {}
	default:
	}

	s.subscribers[id] = subscriber{ch: ch, changesOnly: changesOnly}
	if s.hydrated && !changesOnly {
		ch <- s.products.clone()
	}

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		sub, found := s.subscribers[id]
		if found {
			delete(s.subscribers, id)
			close(sub.ch)
		}
	}
}

// Close stops accepting mutations, waits for the pending ones to be persisted
// and closes all subscriptions.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sub := range s.subscribers {
		delete(s.subscribers, id)
		close(sub.ch)
	}
}

func (s *Store) submit(c context.Context, apply func(current Cart) (Cart, outcome)) (Cart, error) {
	cmd := command{
		apply: apply,
		reply: make(chan Cart, 1),
	}

	err := c.Err()
	if err != nil {
		return nil, err
	}

	select {
	case <-s.quit:
		return nil, ErrClosed
	default:
	}

	select {
	case s.commands <- cmd:
	case <-s.quit:
		return nil, ErrClosed
	case <-c.Done():
		return nil, c.Err()
	}

	// an accepted mutation is always applied, so its result is always returned
	return <-cmd.reply, nil
}

func (s *Store) run(c context.Context) {
	defer close(s.done)

	s.hydrate(c)

	for {
		select {
		case cmd := <-s.commands:
			s.handle(c, cmd)
		case <-s.quit:
			for {
				select {
				case cmd := <-s.commands:
					s.handle(c, cmd)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) hydrate(c context.Context) {
	defer close(s.ready)

	loaded, version, err := s.load(c)
	if err != nil {
		s.logger.Log(c, s.slotKey, mylog.SeverityError, "Error hydrating cart, starting empty: %s", err)
		loaded = Cart{}
	} else {
		s.logger.Log(c, s.slotKey, mylog.SeverityInfo, "Hydrated cart with %d line-items", len(loaded))
	}
	s.version = version

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = loaded
	s.hydrationErr = err
	s.hydrated = true
	s.notify(loaded, false)
}

func (s *Store) load(c context.Context) (Cart, int64, error) {
	slot, found, err := s.slots.Get(c, s.slotKey)
	if err != nil {
		return nil, 0, fmt.Errorf("error reading cart slot %s: %w", s.slotKey, err)
	}
	if !found {
		return Cart{}, 0, nil
	}

	loaded, err := decodePayload(s.slotKey, slot.Payload)
	if err != nil {
		// keep the version so the next write replaces the corrupt payload
		return nil, slot.Version, err
	}

	return loaded, slot.Version, nil
}

func (s *Store) handle(c context.Context, cmd command) {
	if cmd.apply == nil {
		cmd.reply <- s.Products()
		return
	}

	s.mu.Lock()
	next, result := cmd.apply(s.products)
	s.products = next
	s.mu.Unlock()

	cmd.reply <- next.clone()

	if !result.persist {
		return
	}
	persisted := s.persist(c, next)
	if persisted && result.publish {
		s.mu.Lock()
		s.notify(next, true)
		s.mu.Unlock()
	}
}

// notify expects the write-lock to be held.
func (s *Store) notify(current Cart, mutation bool) {
	for _, sub := range s.subscribers {
		if sub.changesOnly && !mutation {
			continue
		}
		snapshot := current.clone()
		select {
		case sub.ch <- snapshot:
		default:
			// replace the stale snapshot nobody picked up yet
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snapshot:
			default:
			}
		}
	}
}

func (s *Store) persist(c context.Context, snapshot Cart) bool {
	payload, err := encodePayload(snapshot)
	if err != nil {
		s.persistFailed(c, err)
		return false
	}

	err = s.write(c, payload)
	if errors.Is(err, ErrVersionConflict) {
		s.logger.Log(c, s.slotKey, mylog.SeverityWarn, "Cart slot was modified elsewhere, overwriting: %s", err)
		err = s.write(c, payload)
	}
	if err != nil {
		s.persistFailed(c, err)
		return false
	}
	return true
}

// write stores payload as the next version of the slot. On a version
// conflict the store adopts the version found so a retry wins.
func (s *Store) write(c context.Context, payload string) error {
	var next int64
	err := s.slots.RunInTransaction(c, func(c context.Context) error {
		current, found, err := s.slots.Get(c, s.slotKey)
		if err != nil {
			return err
		}
		if found && current.Version != s.version {
			conflict := fmt.Errorf("%w: slot %s is at version %d, expected %d", ErrVersionConflict, s.slotKey, current.Version, s.version)
			s.version = current.Version
			return conflict
		}

		next = s.version + 1
		return s.slots.Put(c, s.slotKey, Slot{
			Key:          s.slotKey,
			Payload:      payload,
			Version:      next,
			LastModified: s.nower.Now(),
		})
	})
	if err != nil {
		return err
	}

	s.version = next
	return nil
}

func (s *Store) persistFailed(c context.Context, err error) {
	s.logger.Log(c, s.slotKey, mylog.SeverityError, "Error persisting cart: %s", err)

	s.mu.Lock()
	s.persistFailures++
	s.mu.Unlock()
}
