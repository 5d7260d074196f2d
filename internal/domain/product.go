package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Product is a catalog record as the storefront receives it. Fields the cart
// does not know about are kept in Extra and travel with the record untouched.
type Product struct {
	ID     string
	Name   string
	Image  string
	Weight string
	Price  decimal.Decimal
	MRP    decimal.Decimal
	Extra  map[string]json.RawMessage
}

type productFields struct {
	ID     string          `json:"_id"`
	Name   string          `json:"name"`
	Image  string          `json:"image"`
	Weight string          `json:"weight"`
	Price  decimal.Decimal `json:"price"`
	MRP    decimal.Decimal `json:"mrp"`
}

var knownProductKeys = []string{"_id", "name", "image", "weight", "price", "mrp"}

func (p *Product) UnmarshalJSON(data []byte) error {
	var f productFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownProductKeys {
		delete(raw, k)
	}
	if len(raw) == 0 {
		raw = nil
	}

	*p = Product{
		ID:     f.ID,
		Name:   f.Name,
		Image:  f.Image,
		Weight: f.Weight,
		Price:  f.Price,
		MRP:    f.MRP,
		Extra:  raw,
	}
	return nil
}

func (p Product) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+len(knownProductKeys))
	for k, v := range p.Extra {
		out[k] = v
	}
	out["_id"] = p.ID
	out["name"] = p.Name
	out["image"] = p.Image
	out["weight"] = p.Weight
	out["price"] = p.Price
	if !p.MRP.IsZero() {
		out["mrp"] = p.MRP
	}
	return json.Marshal(out)
}

// Snapshot captures the display and price fields of the product.
func (p Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		Name:   p.Name,
		Image:  p.Image,
		Weight: p.Weight,
		Price:  p.Price,
		MRP:    p.MRP,
		Extra:  cloneExtra(p.Extra),
	}
}

// ProductSnapshot is the part of a product a cart line keeps, frozen at the
// time the line was created or last added to.
type ProductSnapshot struct {
	Name   string                     `json:"name"`
	Image  string                     `json:"image"`
	Weight string                     `json:"weight"`
	Price  decimal.Decimal            `json:"price"`
	MRP    decimal.Decimal            `json:"mrp"`
	Extra  map[string]json.RawMessage `json:"extra,omitempty"`
}

// ListPrice is the MRP when it is above the selling price, otherwise the price.
func (s ProductSnapshot) ListPrice() decimal.Decimal {
	if s.MRP.GreaterThan(s.Price) {
		return s.MRP
	}
	return s.Price
}

// Discount returns the whole percentage off MRP, 0 when there is none.
func (s ProductSnapshot) Discount() int64 {
	if !s.MRP.GreaterThan(s.Price) {
		return 0
	}
	return s.MRP.Sub(s.Price).Div(s.MRP).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (s ProductSnapshot) Clone() ProductSnapshot {
	s.Extra = cloneExtra(s.Extra)
	return s
}

// cloneExtra deep-copies the extras. Empty maps become nil, which is also
// what decoding a snapshot without extras yields.
func cloneExtra(in map[string]json.RawMessage) map[string]json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
