package handler

import (
	"net/http"
	"time"

	"fsanano/inventory/internal/model"
	"fsanano/inventory/internal/service"
)

type CheckoutRequest struct {
	Items         []model.CartLine `json:"items"`
	PaymentMethod string           `json:"payment_method"`
}

type CheckoutResponse struct {
	OrderID       int64             `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	TotalAmount   string            `json:"total_amount"`
	PaymentMethod string            `json:"payment_method"`
	CreatedAt     time.Time         `json:"created_at"`
	Items         []model.OrderLine `json:"items"`
}

var checkoutStatus = map[string]int{
	service.KindEmptyCart:         http.StatusBadRequest,
	service.KindInvalidCart:       http.StatusBadRequest,
	service.KindProductNotFound:   http.StatusNotFound,
	service.KindInsufficientStock: http.StatusConflict,
	service.KindCheckoutFailed:    http.StatusInternalServerError,
}

// Checkout buys the lines in the request body for the authenticated user.
// Prices and names sent by the client are ignored.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, service.KindInvalidCart, err.Error())
		return
	}

	h.checkout(w, r, req.Items, req.PaymentMethod)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request, lines []model.CartLine, paymentMethod string) bool {
	order, err := h.svc.Checkout.Checkout(r.Context(), currentUser(r), lines, paymentMethod)
	if err != nil {
		kind := service.CheckoutErrorKind(err)
		message := err.Error()
		if kind == service.KindCheckoutFailed {
			message = "checkout failed, no changes were made"
		}
		respondError(w, checkoutStatus[kind], kind, message)
		return false
	}

	respondJSON(w, http.StatusCreated, CheckoutResponse{
		OrderID:       order.ID,
		OrderNumber:   order.Number(),
		TotalAmount:   order.TotalAmount.StringFixed(2),
		PaymentMethod: order.PaymentMethod,
		CreatedAt:     order.CreatedAt,
		Items:         order.Lines,
	})
	return true
}
