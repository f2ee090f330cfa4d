package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/example/cart-sync/internal/account"
	"github.com/example/cart-sync/internal/infrastructure/storage"
	"github.com/example/cart-sync/internal/localstore"
)

const DefaultIdleTimeout = 30 * time.Minute

var ErrStorageUnavailable = errors.New("cart storage unavailable")

type entry struct {
	mu         sync.Mutex // held while starting
	started    bool
	controller *Controller
	lastSeen   time.Time // guarded by Registry.mu
}

// Registry hands out one controller per device, each with its own scope of
// the shared storage backend. Controllers idle for longer than the idle
// timeout are dropped by Sweep; their stored carts stay.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry

	backend     storage.Storage
	validator   Validator
	accounts    account.CartSource
	storeOpts   []localstore.Option
	sessionOpts []Option
	idle        time.Duration
	now         func() time.Time
}

type RegistryOption func(*Registry)

func WithStoreOptions(opts ...localstore.Option) RegistryOption {
	return func(r *Registry) { r.storeOpts = append(r.storeOpts, opts...) }
}

func WithControllerOptions(opts ...Option) RegistryOption {
	return func(r *Registry) { r.sessionOpts = append(r.sessionOpts, opts...) }
}

func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idle = d }
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(backend storage.Storage, validator Validator, accounts account.CartSource, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions:  make(map[string]*entry),
		backend:   backend,
		validator: validator,
		accounts:  accounts,
		idle:      DefaultIdleTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the started controller for deviceID, creating it on first use.
// If the stored cart cannot be read the controller is not handed out and the
// next Get retries the load.
func (r *Registry) Get(ctx context.Context, deviceID string) (*Controller, error) {
	r.mu.Lock()
	e, ok := r.sessions[deviceID]
	if !ok {
		store := localstore.New(storage.NewScoped(r.backend, deviceID), r.storeOpts...)
		opts := append([]Option{WithSessionID(deviceID)}, r.sessionOpts...)
		e = &entry{controller: NewController(store, r.validator, r.accounts, opts...)}
		r.sessions[deviceID] = e
	}
	e.lastSeen = r.now()
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		// The load must not be cut short by the request that happens to come first
		if fault := e.controller.Start(context.WithoutCancel(ctx)); fault == localstore.FaultStorage {
			return nil, ErrStorageUnavailable
		}
		e.started = true
	}
	return e.controller, nil
}

// Forget drops the in-memory controller of a device; its stored cart stays
func (r *Registry) Forget(deviceID string) {
	r.mu.Lock()
	delete(r.sessions, deviceID)
	r.mu.Unlock()
}

// Sweep drops controllers not used within the idle timeout and returns how
// many were dropped
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps every interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				log.Printf("[Session] Evicted %d idle sessions, %d active", n, r.Len())
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
