package checkout

import (
	"time"

	"github.com/fjod/zapit-cart/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BuildRequest turns a cart snapshot into the payload handed to order
// creation. Delivery is free, so the amount to pay is the cart total.
func BuildRequest(sessionID string, snap domain.Snapshot, capturedAt time.Time) *domain.CheckoutRequest {
	req := &domain.CheckoutRequest{
		CheckoutID:  uuid.NewString(),
		SessionID:   sessionID,
		Items:       make([]domain.CheckoutItem, 0, len(snap.Lines)),
		ItemCount:   snap.ItemCount,
		TotalAmount: snap.Total,
		DeliveryFee: decimal.Zero,
		Currency:    domain.DefaultCurrency,
		CapturedAt:  capturedAt,
	}

	for _, l := range snap.Lines {
		req.Items = append(req.Items, domain.CheckoutItem{
			ProductID:   l.ProductID,
			ProductName: l.Snapshot.Name,
			Weight:      l.Snapshot.Weight,
			Image:       l.Snapshot.Image,
			Quantity:    l.Quantity,
			UnitPrice:   l.Snapshot.Price,
			Subtotal:    l.Subtotal(),
		})
	}

	return req
}
