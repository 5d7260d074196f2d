package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "INR"

type CheckoutItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Weight      string          `json:"weight"`
	Image       string          `json:"image"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// CheckoutRequest is what the storefront hands to order creation. Once it is
// published the cart has no further say in what happens to it.
type CheckoutRequest struct {
	CheckoutID  string          `json:"checkout_id"`
	SessionID   string          `json:"session_id"`
	Items       []CheckoutItem  `json:"items"`
	ItemCount   int             `json:"item_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Currency    string          `json:"currency"`
	CapturedAt  time.Time       `json:"captured_at"`
}
