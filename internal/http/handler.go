package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/zapit-cart/internal/cart"
	"github.com/fjod/zapit-cart/internal/catalog"
	"github.com/fjod/zapit-cart/internal/domain"
	"github.com/fjod/zapit-cart/internal/session"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

const (
	maxQuantityPerRequest = 99
	maxBatchProductIDs    = 100
	maxRequestBodySize    = 1 << 20 // 1MB
)

type SessionStores interface {
	Open(ctx context.Context, sessionID string) (*cart.Store, error)
	Checkout(ctx context.Context, sessionID string) (*domain.CheckoutRequest, error)
}

type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

type CartHandler struct {
	sessions SessionStores
	catalog  ProductCatalog
	timeout  time.Duration
}

func NewCartHandler(sessions SessionStores, catalog ProductCatalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		catalog:  catalog,
		timeout:  timeout,
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(ctx)
	st, err := h.sessions.Open(ctx, sessionID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartDTO(sessionID, st.Snapshot()))
}

// AddItem accepts either a full product record or a bare product id, in
// which case the product is looked up in the catalog first.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity <= 0 || quantity > maxQuantityPerRequest {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := h.resolveProduct(ctx, req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	sessionID := getSessionID(ctx)
	st, err := h.sessions.Open(ctx, sessionID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if err := st.Add(product, quantity); err != nil {
		handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toCartDTO(sessionID, st.Snapshot()))
}

func (h *CartHandler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(st *cart.Store, productID string) {
		st.RemoveOne(productID)
	})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(st *cart.Store, productID string) {
		st.RemoveLine(productID)
	})
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(ctx)
	st, err := h.sessions.Open(ctx, sessionID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	st.Clear()
	respondJSON(w, http.StatusOK, toCartDTO(sessionID, st.Snapshot()))
}

func (h *CartHandler) GetQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := strings.TrimSpace(chi.URLParam(r, "product_id"))
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	st, err := h.sessions.Open(ctx, getSessionID(ctx))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, QuantityResponseDTO{ProductID: productID, Quantity: st.QuantityOf(productID)})
}

// GetQuantities answers a listing page's product cards in one round trip.
func (h *CartHandler) GetQuantities(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req QuantitiesRequestDTO
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if len(req.ProductIDs) > maxBatchProductIDs {
		respondError(w, http.StatusBadRequest, "too_many_products", "at most 100 product_ids per request")
		return
	}

	st, err := h.sessions.Open(ctx, getSessionID(ctx))
	if err != nil {
		handleError(w, r, err)
		return
	}

	quantities := make(map[string]int, len(req.ProductIDs))
	for _, id := range req.ProductIDs {
		quantities[id] = st.QuantityOf(id)
	}
	respondJSON(w, http.StatusOK, QuantitiesResponseDTO{Quantities: quantities})
}

func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req, err := h.sessions.Checkout(ctx, getSessionID(ctx))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, req)
}

func (h *CartHandler) mutate(w http.ResponseWriter, r *http.Request, apply func(st *cart.Store, productID string)) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := strings.TrimSpace(chi.URLParam(r, "product_id"))
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	sessionID := getSessionID(ctx)
	st, err := h.sessions.Open(ctx, sessionID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	apply(st, productID)
	respondJSON(w, http.StatusOK, toCartDTO(sessionID, st.Snapshot()))
}

func (h *CartHandler) resolveProduct(ctx context.Context, req AddItemRequestDTO) (domain.Product, error) {
	if req.Product != nil {
		if req.ProductID != "" && req.ProductID != req.Product.ID {
			return domain.Product{}, cart.ErrInvalidProduct
		}
		return *req.Product, nil
	}
	id := strings.TrimSpace(req.ProductID)
	if id == "" {
		return domain.Product{}, cart.ErrInvalidProduct
	}
	return h.catalog.GetProduct(ctx, id)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, cart.ErrInvalidProduct):
		respondError(w, http.StatusBadRequest, "invalid_product", err.Error())
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, session.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, catalog.ErrUnavailable), errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		respondError(w, http.StatusServiceUnavailable, "catalog_unavailable", "product catalog is unavailable, try again later")
	default:
		log.WithError(err).WithFields(log.Fields{
			"request_id": getRequestID(r.Context()),
			"session_id": getSessionID(r.Context()),
		}).Error("request failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
