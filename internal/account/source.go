package account

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/example/cart-sync/internal/cart"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodySize = 1 << 20 // 1MB

// Identity is an authenticated storefront user
type Identity struct {
	UserID string
	Email  string
	Token  string
}

// CartSource returns the cart the Account Service holds for a user.
// A user without a cart yields an empty slice, not an error.
type CartSource interface {
	FetchCart(ctx context.Context, id Identity) ([]cart.LineItem, error)
}

// HTTPSource fetches GET <base>/api/cart with the user's bearer token
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type cartResponse struct {
	UserID string          `json:"user_id"`
	Items  []cart.LineItem `json:"items"`
}

func (s *HTTPSource) FetchCart(ctx context.Context, id Identity) ([]cart.LineItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/cart", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build account cart request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+id.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("account cart request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return []cart.LineItem{}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("account service returned status %d", resp.StatusCode)
	}

	var body cartResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode account cart: %w", err)
	}
	if body.Items == nil {
		return []cart.LineItem{}, nil
	}
	return body.Items, nil
}

// Static holds account carts in memory, keyed by user ID
type Static struct {
	mu    sync.RWMutex
	carts map[string][]cart.LineItem
	Err   error
}

func NewStatic() *Static {
	return &Static{carts: make(map[string][]cart.LineItem)}
}

func (s *Static) Put(userID string, items []cart.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = cart.Clone(items)
}

func (s *Static) FetchCart(_ context.Context, id Identity) ([]cart.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return cart.Clone(s.carts[id.UserID]), nil
}
