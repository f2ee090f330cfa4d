package catalog

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

// Lookup fetches the current catalog record of a product
type Lookup interface {
	Product(ctx context.Context, productID string) (*Product, error)
}

type Variant struct {
	Weight      string          `json:"weight"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsAvailable bool            `json:"is_available"`
}

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsAvailable bool      `json:"is_available"`
	IsSoldOut   bool      `json:"is_sold_out"`
	Variants    []Variant `json:"variants"`
}

// UnmarshalJSON defaults is_available to true when the field is absent
func (v *Variant) UnmarshalJSON(data []byte) error {
	type alias Variant
	a := alias{IsAvailable: true}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*v = Variant(a)
	return nil
}

// UnmarshalJSON defaults is_available to true when the field is absent
func (p *Product) UnmarshalJSON(data []byte) error {
	type alias Product
	a := alias{IsAvailable: true}
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = Product(a)
	return nil
}

// Variant returns the variant with the given weight label
func (p *Product) Variant(weight string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.Weight == weight {
			return v, true
		}
	}
	return Variant{}, false
}
