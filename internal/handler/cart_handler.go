package handler

import (
	"context"
	"net/http"

	"fsanano/inventory/internal/cart"
	"fsanano/inventory/internal/model"
)

// CartStore is implemented by cart.Store.
type CartStore interface {
	Get(ctx context.Context, userID int64) (*model.Cart, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int) (*model.Cart, error)
	RemoveItem(ctx context.Context, userID, productID int64) (*model.Cart, error)
	Clear(ctx context.Context, userID int64) error
}

type AddCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CartCheckoutRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Cart.Get(r.Context(), currentUser(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if req.ProductID <= 0 || req.Quantity <= 0 {
		h.respondServiceError(w, r, cart.ErrInvalidItem)
		return
	}
	if _, err := h.svc.Products.Get(r.Context(), req.ProductID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	c, err := h.svc.Cart.AddItem(r.Context(), currentUser(r), req.ProductID, req.Quantity)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "product_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	c, err := h.svc.Cart.RemoveItem(r.Context(), currentUser(r), productID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cart.Clear(r.Context(), currentUser(r)); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckoutCart checks out the stored cart and clears it once the order exists.
func (h *Handler) CheckoutCart(w http.ResponseWriter, r *http.Request) {
	var req CartCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_cart", err.Error())
		return
	}

	userID := currentUser(r)
	c, err := h.svc.Cart.Get(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	if !h.checkout(w, r, c.Items, req.PaymentMethod) {
		return
	}
	if err := h.svc.Cart.Clear(r.Context(), userID); err != nil {
		h.logger.WarnContext(r.Context(), "failed to clear cart after checkout", "user_id", userID, "error", err)
	}
}
