package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/cart-sync/internal/cart"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 8

// Reason explains why a line item was removed during validation
type Reason string

const (
	ReasonProductNotFound    Reason = "product_not_found"
	ReasonLookupFailed       Reason = "lookup_failed"
	ReasonProductUnavailable Reason = "product_unavailable"
	ReasonVariantNotFound    Reason = "variant_not_found"
	ReasonOutOfStock         Reason = "out_of_stock"
)

// Removal is a line item dropped by validation
type Removal struct {
	Item   cart.LineItem `json:"item"`
	Reason Reason        `json:"reason"`
}

// Outcome partitions a cart into kept and removed items, both in input order
type Outcome struct {
	Valid    []cart.LineItem `json:"valid_items"`
	Removed  []Removal       `json:"removed_items"`
	Warnings []string        `json:"warnings"`
	// Abandoned is set when the context ended before every lookup finished
	Abandoned bool `json:"abandoned,omitempty"`
}

// RemovedItems returns the removed line items without reasons
func (o Outcome) RemovedItems() []cart.LineItem {
	items := make([]cart.LineItem, len(o.Removed))
	for i, r := range o.Removed {
		items[i] = r.Item
	}
	return items
}

type Validator struct {
	lookup      Lookup
	concurrency int
}

type ValidatorOption func(*Validator)

func WithConcurrency(n int) ValidatorOption {
	return func(v *Validator) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

func NewValidator(lookup Lookup, opts ...ValidatorOption) *Validator {
	v := &Validator{lookup: lookup, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

type verdict struct {
	item    cart.LineItem
	reason  Reason
	warning string
}

// Validate checks every item against the catalog and refreshes prices of the
// items it keeps. Lookups run concurrently; a failed lookup only removes its
// own item. Validate never fails.
func (v *Validator) Validate(ctx context.Context, items []cart.LineItem) Outcome {
	verdicts := make([]verdict, len(items))

	g := new(errgroup.Group)
	g.SetLimit(v.concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			verdicts[i] = v.check(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	out := Outcome{
		Valid:    make([]cart.LineItem, 0, len(items)),
		Removed:  make([]Removal, 0),
		Warnings: make([]string, 0),
	}
	for _, vd := range verdicts {
		if vd.warning != "" {
			out.Warnings = append(out.Warnings, vd.warning)
		}
		if vd.reason != "" {
			out.Removed = append(out.Removed, Removal{Item: vd.item, Reason: vd.reason})
			continue
		}
		out.Valid = append(out.Valid, vd.item)
	}
	out.Abandoned = ctx.Err() != nil
	return out
}

func (v *Validator) check(ctx context.Context, item cart.LineItem) verdict {
	if ctx.Err() != nil {
		return verdict{item: item, reason: ReasonLookupFailed}
	}

	product, err := v.lookup.Product(ctx, item.ProductID)
	if errors.Is(err, ErrProductNotFound) {
		return verdict{item: item, reason: ReasonProductNotFound}
	}
	if err != nil || product == nil {
		log.Printf("[Catalog] Error validating cart item %s: %v", item.ProductID, err)
		return verdict{item: item, reason: ReasonLookupFailed}
	}

	if !product.IsAvailable || product.IsSoldOut {
		return verdict{item: item, reason: ReasonProductUnavailable}
	}

	variant, ok := product.Variant(item.VariantWeight)
	if !ok {
		return verdict{item: item, reason: ReasonVariantNotFound}
	}
	if !variant.IsAvailable || variant.Stock <= 0 {
		return verdict{item: item, reason: ReasonOutOfStock}
	}

	var warning string
	if !item.Price.Equal(variant.Price) {
		name := product.Name
		if name == "" {
			name = product.ID
		}
		warning = fmt.Sprintf("price updated for %s (%s)", name, item.VariantWeight)
	}
	item.Price = variant.Price
	return verdict{item: item, warning: warning}
}
