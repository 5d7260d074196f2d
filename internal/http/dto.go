package http

import (
	"encoding/json"

	"github.com/fjod/zapit-cart/internal/domain"
	"github.com/shopspring/decimal"
)

type AddItemRequestDTO struct {
	ProductID string          `json:"product_id"`
	Product   *domain.Product `json:"product"`
	Quantity  *int            `json:"quantity"`
}

type QuantitiesRequestDTO struct {
	ProductIDs []string `json:"product_ids"`
}

type QuantityResponseDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type QuantitiesResponseDTO struct {
	Quantities map[string]int `json:"quantities"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type CartItemDTO struct {
	ProductID       string                     `json:"product_id"`
	Name            string                     `json:"name"`
	Image           string                     `json:"image"`
	Weight          string                     `json:"weight"`
	Quantity        int                        `json:"quantity"`
	Price           decimal.Decimal            `json:"price"`
	MRP             decimal.Decimal            `json:"mrp"`
	DiscountPercent int64                      `json:"discount_percent"`
	Subtotal        decimal.Decimal            `json:"subtotal"`
	Extra           map[string]json.RawMessage `json:"extra,omitempty"`
}

// CartDTO is the bill the cart drawer renders.
type CartDTO struct {
	SessionID   string          `json:"session_id"`
	Items       []CartItemDTO   `json:"items"`
	ItemCount   int             `json:"item_count"`
	LineCount   int             `json:"line_count"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Savings     decimal.Decimal `json:"savings"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	ToPay       decimal.Decimal `json:"to_pay"`
	Currency    string          `json:"currency"`
}

func toCartDTO(sessionID string, snap domain.Snapshot) CartDTO {
	items := make([]CartItemDTO, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		items = append(items, CartItemDTO{
			ProductID:       l.ProductID,
			Name:            l.Snapshot.Name,
			Image:           l.Snapshot.Image,
			Weight:          l.Snapshot.Weight,
			Quantity:        l.Quantity,
			Price:           l.Snapshot.Price,
			MRP:             l.Snapshot.ListPrice(),
			DiscountPercent: l.Snapshot.Discount(),
			Subtotal:        l.Subtotal(),
			Extra:           l.Snapshot.Extra,
		})
	}

	// delivery is free for now
	fee := decimal.Zero
	return CartDTO{
		SessionID:   sessionID,
		Items:       items,
		ItemCount:   snap.ItemCount,
		LineCount:   snap.LineCount,
		Subtotal:    snap.Total,
		Savings:     snap.Savings,
		DeliveryFee: fee,
		ToPay:       snap.Total.Add(fee),
		Currency:    domain.DefaultCurrency,
	}
}
