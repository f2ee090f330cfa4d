// Package session owns the authoritative in-memory cart of one client session
// and sequences the local store, the merge and catalog validation around
// login, logout and checkout.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/example/cart-sync/internal/account"
	"github.com/example/cart-sync/internal/cart"
	"github.com/example/cart-sync/internal/catalog"
	"github.com/example/cart-sync/internal/localstore"
	"github.com/google/uuid"
)

var (
	ErrAccountUnavailable   = errors.New("account cart unavailable")
	ErrAlreadyAuthenticated = errors.New("session already authenticated")
	ErrNotAuthenticated     = errors.New("session is not authenticated")
	ErrItemNotFound         = errors.New("item not found in cart")
)

type State int

const (
	StateGuest State = iota
	StateMerging
	StateReady
	StateValidating
)

func (s State) String() string {
	switch s {
	case StateGuest:
		return "guest"
	case StateMerging:
		return "merging"
	case StateReady:
		return "ready"
	case StateValidating:
		return "validating"
	default:
		return "unknown"
	}
}

// Validator checks a cart against the live catalog
type Validator interface {
	Validate(ctx context.Context, items []cart.LineItem) catalog.Outcome
}

// LoginResult describes a completed guest-to-account merge
type LoginResult struct {
	Items        []cart.LineItem
	GuestLines   int
	AccountLines int
}

// Report is the result of a validation pass. Removed is meant to be shown to
// the user.
type Report struct {
	Items     []cart.LineItem
	Removed   []catalog.Removal
	Warnings  []string
	Summary   cart.Summary
	Abandoned bool
}

type Controller struct {
	// tx serializes transitions and mutations; mu guards the fields below
	tx sync.Mutex
	mu sync.RWMutex

	// events queued under tx, delivered by flush once tx is released
	outMu  sync.Mutex
	outbox []Event
	pubMu  sync.Mutex

	state    State
	items    []cart.LineItem
	identity *account.Identity
	pending  []catalog.Removal

	store     *localstore.Store
	validator Validator
	accounts  account.CartSource
	publisher Publisher
	sessionID string
	now       func() time.Time
}

type Option func(*Controller)

func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

func WithSessionID(id string) Option {
	return func(c *Controller) { c.sessionID = id }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(store *localstore.Store, validator Validator, accounts account.CartSource, opts ...Option) *Controller {
	c := &Controller{
		state:     StateGuest,
		items:     []cart.LineItem{},
		store:     store,
		validator: validator,
		accounts:  accounts,
		publisher: NopPublisher{},
		sessionID: uuid.New().String(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start puts the session in the guest state with the locally stored cart and
// reports how the load went
func (c *Controller) Start(ctx context.Context) localstore.Fault {
	c.tx.Lock()
	defer c.tx.Unlock()

	items, fault := c.store.Load(ctx)
	if fault != localstore.FaultNone && fault != localstore.FaultMissing {
		log.Printf("[Session] %s started with empty cart (%s)", c.sessionID, fault)
	}

	c.mu.Lock()
	c.state = StateGuest
	c.identity = nil
	c.items = items
	c.mu.Unlock()
	return fault
}

// Login merges the guest cart into the user's account cart and retires the
// guest cart. If the account cart cannot be fetched the session stays guest
// and nothing is cleared.
func (c *Controller) Login(ctx context.Context, id account.Identity) (LoginResult, error) {
	defer c.flush(ctx)
	c.tx.Lock()
	defer c.tx.Unlock()

	if c.State() == StateReady {
		return LoginResult{}, ErrAlreadyAuthenticated
	}
	c.setState(StateMerging)

	accountItems, err := c.accounts.FetchCart(ctx, id)
	if err != nil {
		log.Printf("[Session] %s failed to fetch account cart for user %s: %v", c.sessionID, id.UserID, err)
		c.setState(StateGuest)
		return LoginResult{}, fmt.Errorf("%w: %v", ErrAccountUnavailable, err)
	}

	guestItems := c.Items()
	merged := cart.Merge(guestItems, accountItems)
	c.store.Clear(ctx)

	c.mu.Lock()
	c.items = merged
	c.identity = &id
	c.state = StateReady
	c.mu.Unlock()

	log.Printf("[Session] %s merged %d guest lines into %d account lines for user %s",
		c.sessionID, len(guestItems), len(accountItems), id.UserID)

	c.publish(ctx, EventCartMerged, CartMerged{
		SessionID:    c.sessionID,
		UserID:       id.UserID,
		GuestLines:   len(guestItems),
		AccountLines: len(accountItems),
		Items:        cart.Clone(merged),
		MergedAt:     c.now(),
	})

	return LoginResult{
		Items:        cart.Clone(merged),
		GuestLines:   len(guestItems),
		AccountLines: len(accountItems),
	}, nil
}

// Logout demotes the current cart to a guest cart
func (c *Controller) Logout(ctx context.Context) error {
	defer c.flush(ctx)
	c.tx.Lock()
	defer c.tx.Unlock()

	if c.State() != StateReady {
		return ErrNotAuthenticated
	}

	items := c.Items()
	c.store.Save(ctx, items)

	c.mu.Lock()
	userID := c.identity.UserID
	c.identity = nil
	c.state = StateGuest
	c.mu.Unlock()

	c.publish(ctx, EventCartDemoted, CartDemoted{
		SessionID: c.sessionID,
		UserID:    userID,
		Items:     items,
		DemotedAt: c.now(),
	})
	return nil
}

// Validate revalidates the cart against the catalog and keeps only the items
// that are still purchasable, at their current price. An abandoned pass
// (cancelled ctx) leaves the cart as it was.
func (c *Controller) Validate(ctx context.Context) Report {
	defer c.flush(ctx)
	c.tx.Lock()
	defer c.tx.Unlock()

	prev := c.State()
	c.setState(StateValidating)
	defer c.setState(prev)

	outcome := c.validator.Validate(ctx, c.Items())
	if outcome.Abandoned {
		log.Printf("[Session] %s validation abandoned", c.sessionID)
		items := c.Items()
		return Report{Items: items, Summary: cart.Summarize(items), Abandoned: true}
	}

	c.mu.Lock()
	c.items = outcome.Valid
	c.pending = append(c.pending, outcome.Removed...)
	identity := c.identity
	c.mu.Unlock()

	c.store.Save(ctx, outcome.Valid)

	if len(outcome.Removed) > 0 {
		log.Printf("[Session] %s removed %d unavailable items", c.sessionID, len(outcome.Removed))
		e := CartItemsRemoved{
			SessionID: c.sessionID,
			Removed:   outcome.Removed,
			RemovedAt: c.now(),
		}
		if identity != nil {
			e.UserID = identity.UserID
			e.Email = identity.Email
		}
		c.publish(ctx, EventCartItemsRemoved, e)
	}

	return Report{
		Items:    cart.Clone(outcome.Valid),
		Removed:  outcome.Removed,
		Warnings: outcome.Warnings,
		Summary:  cart.Summarize(outcome.Valid),
	}
}

// AddItem adds a line or, if the key is already present, adds to its quantity
// and takes the newer price
func (c *Controller) AddItem(ctx context.Context, item cart.LineItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	defer c.flush(ctx)
	c.tx.Lock()
	defer c.tx.Unlock()

	c.mu.Lock()
	if i := cart.IndexOf(c.items, item.Key()); i >= 0 {
		c.items[i].Quantity += item.Quantity
		c.items[i].Price = item.Price
	} else {
		c.items = append(c.items, item)
	}
	c.mu.Unlock()

	c.commit(ctx)
	return nil
}

// SetQuantity changes the quantity of a line; a quantity below 1 removes it
func (c *Controller) SetQuantity(ctx context.Context, key cart.Key, quantity int) error {
	defer c.flush(ctx)
	c.tx.Lock()
	defer c.tx.Unlock()

	c.mu.Lock()
	i := cart.IndexOf(c.items, key)
	if i < 0 {
		c.mu.Unlock()
		return ErrItemNotFound
	}
	if quantity < 1 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	} else {
		c.items[i].Quantity = quantity
	}
	c.mu.Unlock()

	c.commit(ctx)
	return nil
}

func (c *Controller) RemoveItem(ctx context.Context, key cart.Key) error {
	return c.SetQuantity(ctx, key, 0)
}

// Clear empties the cart and removes the local snapshot, e.g. after an order
// is placed
func (c *Controller) Clear(ctx context.Context) {
	defer c.flush(ctx)
	c.tx.Lock()
	defer c.tx.Unlock()

	c.mu.Lock()
	c.items = []cart.LineItem{}
	c.pending = nil
	c.mu.Unlock()

	c.store.Clear(ctx)
	c.publishUpdated(ctx)
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Items returns a copy of the authoritative cart
func (c *Controller) Items() []cart.LineItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cart.Clone(c.items)
}

func (c *Controller) Summary() cart.Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cart.Summarize(c.items)
}

func (c *Controller) Identity() (account.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return account.Identity{}, false
	}
	return *c.identity, true
}

func (c *Controller) SessionID() string {
	return c.sessionID
}

// PendingRemovals returns removals the user has not acknowledged yet
func (c *Controller) PendingRemovals() []catalog.Removal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]catalog.Removal{}, c.pending...)
}

func (c *Controller) AcknowledgeRemovals() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// commit persists the cart after a mutation and announces it
func (c *Controller) commit(ctx context.Context) {
	c.store.Save(ctx, c.Items())
	c.publishUpdated(ctx)
}

func (c *Controller) publishUpdated(ctx context.Context) {
	e := CartUpdated{SessionID: c.sessionID, Items: c.Items(), UpdatedAt: c.now()}
	if id, ok := c.Identity(); ok {
		e.UserID = id.UserID
	}
	c.publish(ctx, EventCartUpdated, e)
}

// publish queues an event; callers hold tx so the queue is in transition order
func (c *Controller) publish(_ context.Context, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Session] Failed to marshal %s: %v", eventType, err)
		return
	}
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		SessionID: c.sessionID,
		Data:      payload,
		Timestamp: c.now(),
	}
	c.outMu.Lock()
	c.outbox = append(c.outbox, event)
	c.outMu.Unlock()
}

// flush delivers queued events outside tx. Only one caller delivers at a time;
// the others leave their events to it and return.
func (c *Controller) flush(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for c.queued() {
		if !c.pubMu.TryLock() {
			return
		}
		for events := c.takeOutbox(); len(events) > 0; events = c.takeOutbox() {
			for _, event := range events {
				if err := c.publisher.Publish(ctx, c.sessionID, event); err != nil {
					log.Printf("[Session] Failed to publish %s for %s: %v", event.Type, c.sessionID, err)
				}
			}
		}
		c.pubMu.Unlock()
	}
}

func (c *Controller) queued() bool {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	return len(c.outbox) > 0
}

func (c *Controller) takeOutbox() []Event {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	events := c.outbox
	c.outbox = nil
	return events
}
