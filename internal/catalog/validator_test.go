package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/cart-sync/internal/cart"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(productID, weight string, qty int, price int64) cart.LineItem {
	return cart.LineItem{
		ProductID:     productID,
		VariantWeight: weight,
		Quantity:      qty,
		Price:         decimal.NewFromInt(price),
	}
}

func sweet(id string, variants ...Variant) Product {
	return Product{ID: id, Name: "Sweet " + id, IsAvailable: true, Variants: variants}
}

func variant(weight string, price int64, stock int) Variant {
	return Variant{Weight: weight, Price: decimal.NewFromInt(price), Stock: stock, IsAvailable: true}
}

func keys(items []cart.LineItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Key().String()
	}
	return out
}

// ============================================
// Classification Tests
// ============================================

func TestValidate_SoldOutMiddleItemRemoved(t *testing.T) {
	soldOut := sweet("P2", variant("500g", 340, 10))
	soldOut.IsSoldOut = true
	lookup := NewStatic(
		sweet("P1", variant("250g", 100, 10)),
		soldOut,
		sweet("P3", variant("1kg", 650, 10)),
	)
	items := []cart.LineItem{line("P1", "250g", 1, 100), line("P2", "500g", 1, 340), line("P3", "1kg", 1, 650)}

	out := NewValidator(lookup).Validate(context.Background(), items)

	assert.Equal(t, []string{"P1-250g", "P3-1kg"}, keys(out.Valid))
	require.Len(t, out.Removed, 1)
	assert.Equal(t, "P2-500g", out.Removed[0].Item.Key().String())
	assert.Equal(t, ReasonProductUnavailable, out.Removed[0].Reason)
	assert.False(t, out.Abandoned)
}

func TestValidate_LookupFailureIsIsolated(t *testing.T) {
	lookup := NewStatic(sweet("P2", variant("500g", 340, 5)))
	lookup.Fail("P1", errors.New("connection reset"))
	items := []cart.LineItem{line("P1", "250g", 1, 100), line("P2", "500g", 1, 340)}

	out := NewValidator(lookup).Validate(context.Background(), items)

	assert.Equal(t, []string{"P2-500g"}, keys(out.Valid))
	require.Len(t, out.Removed, 1)
	assert.Equal(t, ReasonLookupFailed, out.Removed[0].Reason)
}

func TestValidate_Reasons(t *testing.T) {
	unavailable := sweet("UNAVAILABLE", variant("250g", 100, 5))
	unavailable.IsAvailable = false
	variantOff := sweet("VARIANT_OFF", Variant{Weight: "250g", Price: decimal.NewFromInt(100), Stock: 5, IsAvailable: false})

	lookup := NewStatic(
		unavailable,
		variantOff,
		sweet("NO_VARIANT", variant("500g", 100, 5)),
		sweet("NO_STOCK", variant("250g", 100, 0)),
		sweet("NEG_STOCK", variant("250g", 100, -3)),
	)

	tests := []struct {
		name      string
		productID string
		reason    Reason
	}{
		{"product not found", "MISSING", ReasonProductNotFound},
		{"product unavailable", "UNAVAILABLE", ReasonProductUnavailable},
		{"variant unavailable", "VARIANT_OFF", ReasonOutOfStock},
		{"variant not found", "NO_VARIANT", ReasonVariantNotFound},
		{"zero stock", "NO_STOCK", ReasonOutOfStock},
		{"negative stock", "NEG_STOCK", ReasonOutOfStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewValidator(lookup).Validate(context.Background(), []cart.LineItem{line(tt.productID, "250g", 1, 100)})

			assert.Empty(t, out.Valid)
			require.Len(t, out.Removed, 1)
			assert.Equal(t, tt.reason, out.Removed[0].Reason)
		})
	}
}

func TestValidate_StockBelowQuantityIsKept(t *testing.T) {
	lookup := NewStatic(sweet("P1", variant("250g", 100, 1)))

	out := NewValidator(lookup).Validate(context.Background(), []cart.LineItem{line("P1", "250g", 5, 100)})

	assert.Len(t, out.Valid, 1)
	assert.Equal(t, 5, out.Valid[0].Quantity)
}

// ============================================
// Price Refresh Tests
// ============================================

func TestValidate_RefreshesPriceAndWarns(t *testing.T) {
	lookup := NewStatic(sweet("P1", variant("250g", 120, 5)), sweet("P2", variant("500g", 340, 5)))
	items := []cart.LineItem{line("P1", "250g", 1, 100), line("P2", "500g", 1, 340)}

	out := NewValidator(lookup).Validate(context.Background(), items)

	require.Len(t, out.Valid, 2)
	assert.True(t, out.Valid[0].Price.Equal(decimal.NewFromInt(120)))
	assert.True(t, out.Valid[1].Price.Equal(decimal.NewFromInt(340)))
	assert.Equal(t, []string{"price updated for Sweet P1 (250g)"}, out.Warnings)

	// Input is untouched
	assert.True(t, items[0].Price.Equal(decimal.NewFromInt(100)))
}

func TestValidate_EmptyCart(t *testing.T) {
	out := NewValidator(NewStatic()).Validate(context.Background(), nil)

	assert.NotNil(t, out.Valid)
	assert.Empty(t, out.Valid)
	assert.Empty(t, out.Removed)
	assert.Empty(t, out.RemovedItems())
}

func TestValidate_AllFail(t *testing.T) {
	items := []cart.LineItem{line("A", "1", 1, 1), line("B", "1", 1, 1)}

	out := NewValidator(NewStatic()).Validate(context.Background(), items)

	assert.Empty(t, out.Valid)
	assert.Equal(t, []string{"A-1", "B-1"}, keys(out.RemovedItems()))
}

// ============================================
// Concurrency Tests
// ============================================

// delayedLookup finishes lookups in reverse order of arrival
type delayedLookup struct {
	inner    Lookup
	delays   map[string]time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (d *delayedLookup) Product(ctx context.Context, id string) (*Product, error) {
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(d.delays[id]):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return d.inner.Product(ctx, id)
}

func TestValidate_OrderFollowsInputNotCompletion(t *testing.T) {
	soldOut := sweet("B", variant("1", 1, 1))
	soldOut.IsSoldOut = true
	inner := NewStatic(sweet("A", variant("1", 1, 1)), soldOut, sweet("C", variant("1", 1, 1)), sweet("D", variant("1", 1, 1)))
	lookup := &delayedLookup{inner: inner, delays: map[string]time.Duration{
		"A": 40 * time.Millisecond,
		"B": 30 * time.Millisecond,
		"C": 20 * time.Millisecond,
		"D": 1 * time.Millisecond,
	}}
	items := []cart.LineItem{line("A", "1", 1, 1), line("B", "1", 1, 1), line("C", "1", 1, 1), line("D", "1", 1, 1)}

	out := NewValidator(lookup).Validate(context.Background(), items)

	assert.Equal(t, []string{"A-1", "C-1", "D-1"}, keys(out.Valid))
	assert.Equal(t, []string{"B-1"}, keys(out.RemovedItems()))
}

func TestValidate_ConcurrencyLimit(t *testing.T) {
	inner := NewStatic()
	delays := make(map[string]time.Duration)
	var items []cart.LineItem
	for _, id := range []string{"A", "B", "C", "D", "E", "F"} {
		inner.Put(sweet(id, variant("1", 1, 1)))
		delays[id] = 10 * time.Millisecond
		items = append(items, line(id, "1", 1, 1))
	}
	lookup := &delayedLookup{inner: inner, delays: delays}

	out := NewValidator(lookup, WithConcurrency(2)).Validate(context.Background(), items)

	assert.Len(t, out.Valid, 6)
	assert.LessOrEqual(t, lookup.peak.Load(), int32(2))
}

func TestValidate_CancelledContextAbandons(t *testing.T) {
	inner := NewStatic(sweet("A", variant("1", 1, 1)))
	lookup := &delayedLookup{inner: inner, delays: map[string]time.Duration{"A": time.Second}}
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	var out Outcome
	go func() {
		defer wg.Done()
		out = NewValidator(lookup).Validate(ctx, []cart.LineItem{line("A", "1", 1, 1)})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	wg.Wait()

	assert.True(t, out.Abandoned)
	require.Len(t, out.Removed, 1)
	assert.Equal(t, ReasonLookupFailed, out.Removed[0].Reason)
}
