// Package localstore keeps the guest cart on the device across restarts.
//
// Every operation is total: storage and decoding problems are reported as a
// Fault value and logged, never returned as an error, so callers can load the
// cart eagerly on every start.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/example/cart-sync/internal/cart"
	"github.com/example/cart-sync/internal/infrastructure/storage"
)

const (
	// DefaultKey is the reserved storage key for the cart namespace
	DefaultKey    = "sweets_cart"
	DefaultMaxAge = 7 * 24 * time.Hour
)

// Fault describes why an operation degraded to its default result
type Fault int

const (
	FaultNone Fault = iota
	FaultMissing
	FaultExpired
	FaultCorrupt
	FaultStorage
	FaultEncode
)

func (f Fault) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultMissing:
		return "missing"
	case FaultExpired:
		return "expired"
	case FaultCorrupt:
		return "corrupt"
	case FaultStorage:
		return "storage"
	case FaultEncode:
		return "encode"
	default:
		return "unknown"
	}
}

type Store struct {
	storage storage.Storage
	key     string
	maxAge  time.Duration
	now     func() time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithMaxAge(d time.Duration) Option {
	return func(s *Store) { s.maxAge = d }
}

func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

func New(st storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage: st,
		key:     DefaultKey,
		maxAge:  DefaultMaxAge,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save overwrites the stored snapshot with items stamped at the current time
func (s *Store) Save(ctx context.Context, items []cart.LineItem) Fault {
	if items == nil {
		items = []cart.LineItem{}
	}
	data, err := json.Marshal(cart.Snapshot{Items: items, Timestamp: s.now()})
	if err != nil {
		log.Printf("[Store] Failed to encode cart snapshot: %v", err)
		return FaultEncode
	}
	if err := s.storage.Set(ctx, s.key, data); err != nil {
		log.Printf("[Store] Failed to save cart snapshot: %v", err)
		return FaultStorage
	}
	return FaultNone
}

// Load returns the stored items, or an empty slice when there is no usable
// snapshot. Snapshots older than the max age are cleared.
func (s *Store) Load(ctx context.Context) ([]cart.LineItem, Fault) {
	data, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return []cart.LineItem{}, FaultMissing
	}
	if err != nil {
		log.Printf("[Store] Failed to read cart snapshot: %v", err)
		return []cart.LineItem{}, FaultStorage
	}

	var snapshot cart.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		log.Printf("[Store] Discarding corrupt cart snapshot: %v", err)
		return []cart.LineItem{}, FaultCorrupt
	}

	if s.ageInDays(snapshot.Timestamp) > s.maxAge.Hours()/24 {
		log.Printf("[Store] Cart snapshot from %s expired, clearing", snapshot.Timestamp.Format(time.RFC3339))
		s.Clear(ctx)
		return []cart.LineItem{}, FaultExpired
	}

	if snapshot.Items == nil {
		return []cart.LineItem{}, FaultNone
	}
	return snapshot.Items, FaultNone
}

// Clear removes the stored snapshot
func (s *Store) Clear(ctx context.Context) Fault {
	if err := s.storage.Remove(ctx, s.key); err != nil {
		log.Printf("[Store] Failed to clear cart snapshot: %v", err)
		return FaultStorage
	}
	return FaultNone
}

func (s *Store) ageInDays(ts time.Time) float64 {
	return s.now().Sub(ts).Hours() / 24
}
