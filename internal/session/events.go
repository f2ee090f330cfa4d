package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/example/cart-sync/internal/cart"
	"github.com/example/cart-sync/internal/catalog"
)

const (
	EventCartMerged       = "CartMerged"
	EventCartDemoted      = "CartDemoted"
	EventCartItemsRemoved = "CartItemsRemoved"
	EventCartUpdated      = "CartUpdated"
)

// Publisher delivers session events, keyed by session ID
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// Event is the envelope written to the event stream
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"event_type"`
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e Event) EventType() string { return e.Type }

type CartMerged struct {
	SessionID    string          `json:"session_id"`
	UserID       string          `json:"user_id"`
	GuestLines   int             `json:"guest_lines"`
	AccountLines int             `json:"account_lines"`
	Items        []cart.LineItem `json:"items"`
	MergedAt     time.Time       `json:"merged_at"`
}

type CartDemoted struct {
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	Items     []cart.LineItem `json:"items"`
	DemotedAt time.Time       `json:"demoted_at"`
}

type CartItemsRemoved struct {
	SessionID string            `json:"session_id"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	Removed   []catalog.Removal `json:"removed"`
	RemovedAt time.Time         `json:"removed_at"`
}

type CartUpdated struct {
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id,omitempty"`
	Items     []cart.LineItem `json:"items"`
	UpdatedAt time.Time       `json:"updated_at"`
}
