package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fsanano/inventory/internal/model"
	"fsanano/inventory/internal/service"
)

type OrderResponse struct {
	ID            int64               `json:"id"`
	OrderNumber   string              `json:"order_number"`
	TotalAmount   string              `json:"total_amount"`
	PaymentMethod string              `json:"payment_method"`
	Status        string              `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	ItemsCount    int                 `json:"items_count"`
	Items         []OrderItemResponse `json:"items"`
}

type OrderItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	Subtotal  string `json:"subtotal"`
	// Product is the product as it is now; nil once it has been deleted.
	Product *CurrentProduct `json:"product"`
}

type CurrentProduct struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	CurrentPrice string `json:"current_price"`
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.Orders.List(r.Context(), currentUser(r))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	resp, err := h.orderResponses(r.Context(), orders...)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.svc.Orders.Get(r.Context(), currentUser(r), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	resp, err := h.orderResponses(r.Context(), *order)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp[0])
}

func (h *Handler) orderResponses(ctx context.Context, orders ...model.Order) ([]OrderResponse, error) {
	current := map[int64]*CurrentProduct{}
	out := make([]OrderResponse, 0, len(orders))

	for _, o := range orders {
		resp := OrderResponse{
			ID:            o.ID,
			OrderNumber:   o.Number(),
			TotalAmount:   o.TotalAmount.StringFixed(2),
			PaymentMethod: o.PaymentMethod,
			Status:        o.Status,
			CreatedAt:     o.CreatedAt,
			ItemsCount:    len(o.Lines),
			Items:         make([]OrderItemResponse, 0, len(o.Lines)),
		}

		for _, l := range o.Lines {
			p, seen := current[l.ProductID]
			if !seen {
				var err error
				if p, err = h.currentProduct(ctx, l.ProductID); err != nil {
					return nil, err
				}
				current[l.ProductID] = p
			}
			resp.Items = append(resp.Items, OrderItemResponse{
				ID:        l.ID,
				ProductID: l.ProductID,
				Name:      l.ProductNameAtPurchase,
				Quantity:  l.Quantity,
				Price:     l.UnitPriceAtPurchase.StringFixed(2),
				Subtotal:  l.Subtotal().StringFixed(2),
				Product:   p,
			})
		}
		out = append(out, resp)
	}
	return out, nil
}

func (h *Handler) currentProduct(ctx context.Context, id int64) (*CurrentProduct, error) {
	p, err := h.svc.Products.Get(ctx, id)
	if errors.Is(err, service.ErrProductNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &CurrentProduct{ID: p.ID, Name: p.Description, CurrentPrice: p.UnitPrice.StringFixed(2)}, nil
}
