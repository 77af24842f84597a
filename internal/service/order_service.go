package service

import (
	"context"
	"errors"

	"fsanano/inventory/internal/model"
	"fsanano/inventory/internal/repository"
)

type OrderService struct {
	orders OrderStore
}

func NewOrderService(orders OrderStore) *OrderService {
	return &OrderService{orders: orders}
}

func (s *OrderService) List(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.orders.ListByPurchaser(ctx, userID)
}

// Get returns the order only when it belongs to userID.
func (s *OrderService) Get(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.PurchaserUserID != userID {
		return nil, ErrForbidden
	}
	return o, nil
}
