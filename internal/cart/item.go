package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("product_id is required")
	ErrInvalidVariant  = errors.New("variant_weight is required")
)

// Key identifies a purchasable thing inside a cart
type Key struct {
	ProductID     string `json:"product_id"`
	VariantWeight string `json:"variant_weight"`
}

func (k Key) String() string {
	return k.ProductID + "-" + k.VariantWeight
}

// LineItem is one (product, variant, quantity, price) tuple.
// Price is a cache of the catalog price at last validation.
type LineItem struct {
	ProductID     string          `json:"product_id"`
	VariantWeight string          `json:"variant_weight"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
}

func (i LineItem) Key() Key {
	return Key{ProductID: i.ProductID, VariantWeight: i.VariantWeight}
}

// Subtotal returns price * quantity
func (i LineItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Validate checks the line item contract: identity present, quantity >= 1
func (i LineItem) Validate() error {
	if i.ProductID == "" {
		return ErrInvalidProduct
	}
	if i.VariantWeight == "" {
		return ErrInvalidVariant
	}
	if i.Quantity < 1 {
		return ErrInvalidQuantity
	}
	return nil
}

// Snapshot is the persisted unit of a guest cart
type Snapshot struct {
	Items     []LineItem `json:"items"`
	Timestamp time.Time  `json:"timestamp"`
}

// Summary aggregates cart totals
type Summary struct {
	Lines       int             `json:"lines"`
	TotalItems  int             `json:"total_items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

func Summarize(items []LineItem) Summary {
	s := Summary{Lines: len(items), TotalAmount: decimal.Zero}
	for _, item := range items {
		s.TotalItems += item.Quantity
		s.TotalAmount = s.TotalAmount.Add(item.Subtotal())
	}
	return s
}

// Clone returns a copy of items that shares no backing array with the input
func Clone(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// IndexOf returns the position of the line with the given key, or -1
func IndexOf(items []LineItem, key Key) int {
	for i := range items {
		if items[i].Key() == key {
			return i
		}
	}
	return -1
}
