// Package instruments keeps the client-side view of a user's saved payment
// cards.
//
// A Cache is created per user session and disposed with Close; it is never a
// package-level singleton. It pulls the full list from a Store, applies
// optimistic primary switches, and absorbs CardStatusChanged push events.
// At most one cached instrument is primary at any time.
package instruments

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/uafrontender/newnew-sub010/push"
)

var (
	// ErrNotAuthenticated is returned by Fetch and mutations for guests.
	ErrNotAuthenticated = errors.New("instruments: user not authenticated")

	// ErrUnknownInstrument is returned when an id is not in the cache.
	ErrUnknownInstrument = errors.New("instruments: unknown instrument")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("instruments: cache closed")
)

// Store is the backend holding saved cards.
type Store interface {
	ListCards(ctx context.Context) ([]Instrument, error)
	SetPrimaryCard(ctx context.Context, id string) error
	DeleteCard(ctx context.Context, id string) error
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithAuthenticated sets the predicate gating backend access. Without it the
// cache assumes an authenticated user.
func WithAuthenticated(fn func() bool) Option {
	return func(c *Cache) {
		if fn != nil {
			c.authenticated = fn
		}
	}
}

// Cache is the saved-instruments view for one session.
type Cache struct {
	store         Store
	authenticated func() bool
	log           *zap.Logger
	sf            singleflight.Group

	mu      sync.RWMutex
	items   []Instrument
	gen     uint64
	closed  bool
	nextSub uint64
	subs    map[uint64]func([]Instrument)
	detach  []func()
}

// NewCache builds an empty Cache backed by store.
func NewCache(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:         store,
		authenticated: func() bool { return true },
		log:           zap.NewNop(),
		subs:          make(map[uint64]func([]Instrument)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Items returns a copy of the cached instruments in backend order.
func (c *Cache) Items() []Instrument {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Instrument(nil), c.items...)
}

// Primary returns the primary instrument, if any.
func (c *Cache) Primary() (Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if it.IsPrimary {
			return it, true
		}
	}
	return Instrument{}, false
}

const listKey = "list"

// Fetch replaces the cache with the backend list. Concurrent calls share one
// request; a caller whose ctx ends stops waiting without failing the others.
// A list that was requested before the last local mutation is discarded.
func (c *Cache) Fetch(ctx context.Context) ([]Instrument, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}

	shared := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(listKey, func() (any, error) {
		gen := c.generation()
		list, err := c.store.ListCards(shared)
		if err != nil {
			return nil, err
		}
		if !c.replaceAt(gen, list) {
			c.log.Debug("discarding stale card list")
		}
		return nil, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.log.Warn("fetch cards failed", zap.Error(res.Err))
			return nil, res.Err
		}
	}
	return c.Items(), nil
}

// invalidate marks every list request started so far as stale and makes the
// next Fetch start a new one.
func (c *Cache) invalidate() {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
	c.sf.Forget(listKey)
}

func (c *Cache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// SetPrimary makes id the only primary instrument. The cache changes before
// the backend answers; if the backend call fails the cache is reconciled by
// refetching, and restored to its previous content when that fails too.
func (c *Cache) SetPrimary(ctx context.Context, id string) error {
	if err := c.usable(); err != nil {
		return err
	}

	c.mu.Lock()
	idx := indexOf(c.items, id)
	if idx < 0 {
		c.mu.Unlock()
		return ErrUnknownInstrument
	}
	snapshot := append([]Instrument(nil), c.items...)
	for i := range c.items {
		c.items[i].IsPrimary = i == idx
	}
	c.gen++
	c.mu.Unlock()
	c.sf.Forget(listKey)
	c.notify()

	err := c.store.SetPrimaryCard(ctx, id)
	if err == nil {
		return nil
	}

	c.log.Warn("set primary failed, reconciling", zap.String("card_uuid", id), zap.Error(err))
	c.invalidate()
	if _, ferr := c.Fetch(ctx); ferr != nil {
		c.log.Warn("reconcile fetch failed, restoring snapshot", zap.Error(ferr))
		c.replace(snapshot)
	}
	return err
}

// Remove deletes id on the backend and then refetches the list.
func (c *Cache) Remove(ctx context.Context, id string) error {
	if err := c.usable(); err != nil {
		return err
	}
	if err := c.store.DeleteCard(ctx, id); err != nil {
		c.log.Warn("delete card failed", zap.String("card_uuid", id), zap.Error(err))
		return err
	}
	c.invalidate()
	_, err := c.Fetch(ctx)
	return err
}

// Add inserts inst unless an instrument with the same ID is cached. It reports
// whether the cache changed. A primary addition clears other primaries.
func (c *Cache) Add(inst Instrument) bool {
	c.mu.Lock()
	if c.closed || inst.ID == "" || indexOf(c.items, inst.ID) >= 0 {
		c.mu.Unlock()
		return false
	}
	if inst.IsPrimary {
		for i := range c.items {
			c.items[i].IsPrimary = false
		}
	}
	c.items = append(c.items, inst)
	c.gen++
	c.mu.Unlock()
	c.sf.Forget(listKey)

	c.notify()
	return true
}

// HandleEvent applies a CardStatusChanged push event. Undecodable payloads
// are logged and dropped.
func (c *Cache) HandleEvent(_ context.Context, ev push.Event) {
	if ev.Name != push.EventCardStatusChanged {
		return
	}
	msg, err := UnmarshalCardStatusChanged(ev.Payload)
	if err != nil {
		c.log.Warn("dropping card status event", zap.Error(err))
		return
	}
	if msg.Status != StatusAdded || msg.Card == nil {
		return
	}
	if c.Add(*msg.Card) {
		c.log.Debug("card added from push", zap.String("card_uuid", msg.Card.ID))
	}
}

// Attach subscribes the cache to hub until Close.
func (c *Cache) Attach(hub *push.Hub) {
	off := hub.On(push.EventCardStatusChanged, c.HandleEvent)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		off()
		return
	}
	c.detach = append(c.detach, off)
}

// Subscribe calls fn with a copy of the list after every change.
func (c *Cache) Subscribe(fn func([]Instrument)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close detaches push handlers and drops subscribers.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	detach := c.detach
	c.detach = nil
	c.subs = map[uint64]func([]Instrument){}
	c.mu.Unlock()

	for _, off := range detach {
		off()
	}
	return nil
}

func (c *Cache) usable() error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !c.authenticated() {
		return ErrNotAuthenticated
	}
	return nil
}

func (c *Cache) replace(list []Instrument) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	c.sf.Forget(listKey)
	c.replaceAt(gen, list)
}

// replaceAt installs list unless the cache was mutated after generation gen.
func (c *Cache) replaceAt(gen uint64, list []Instrument) bool {
	items := make([]Instrument, 0, len(list))
	seenPrimary := false
	for _, it := range list {
		if it.IsPrimary {
			if seenPrimary {
				it.IsPrimary = false
			}
			seenPrimary = true
		}
		items = append(items, it)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	c.items = items
	c.mu.Unlock()
	c.notify()
	return true
}

func (c *Cache) notify() {
	c.mu.RLock()
	snapshot := append([]Instrument(nil), c.items...)
	subs := make([]func([]Instrument), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.RUnlock()

	for _, fn := range subs {
		fn(append([]Instrument(nil), snapshot...))
	}
}

func indexOf(items []Instrument, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
