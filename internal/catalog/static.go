package catalog

import (
	"context"
	"sync"
)

// Static is an in-memory Lookup
type Static struct {
	mu       sync.RWMutex
	products map[string]Product
	errs     map[string]error
	calls    int
}

func NewStatic(products ...Product) *Static {
	s := &Static{
		products: make(map[string]Product),
		errs:     make(map[string]error),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *Static) Product(ctx context.Context, productID string) (*Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err, ok := s.errs[productID]; ok {
		return nil, err
	}
	p, ok := s.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	p.Variants = append([]Variant(nil), p.Variants...)
	return &p, nil
}

// Put adds or replaces a product
func (s *Static) Put(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

// Fail makes lookups of productID return err
func (s *Static) Fail(productID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[productID] = err
}

// Calls returns the number of lookups served
func (s *Static) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}
