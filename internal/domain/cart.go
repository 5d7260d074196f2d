package domain

import "github.com/shopspring/decimal"

type CartLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Snapshot  ProductSnapshot `json:"snapshot"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Snapshot.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Snapshot is a detached copy of a cart: changing it never touches the store
// it came from.
type Snapshot struct {
	Lines     []CartLine      `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	Savings   decimal.Decimal `json:"savings"`
	ItemCount int             `json:"item_count"`
	LineCount int             `json:"line_count"`
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}
