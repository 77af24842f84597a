package service

import (
	"context"

	"fsanano/inventory/internal/model"
	"fsanano/inventory/internal/repository"

	"github.com/shopspring/decimal"
)

// Transactor runs fn inside one database transaction.
type Transactor interface {
	RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProductStore interface {
	FindByID(ctx context.Context, id int64) (*model.Product, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*model.Product, error)
	DecrementStock(ctx context.Context, id int64, amount int) error
	Create(ctx context.Context, p *model.Product) error
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id int64) error
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Product, error)
	List(ctx context.Context, f repository.CatalogFilter) ([]model.CatalogEntry, int, error)
	ListAll(ctx context.Context) ([]model.CatalogEntry, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o *model.Order) error
	CreateOrderLine(ctx context.Context, l *model.OrderLine) error
	UpdateOrderTotal(ctx context.Context, orderID int64, amount decimal.Decimal) error
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	ListByPurchaser(ctx context.Context, userID int64) ([]model.Order, error)
}

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

type CategoryStore interface {
	List(ctx context.Context) ([]model.Category, error)
}

type ActivityStore interface {
	Record(ctx context.Context, e *model.ActivityEntry) error
	ListAll(ctx context.Context) ([]model.ActivityEntry, error)
}

type EventOutbox interface {
	Insert(ctx context.Context, topic, key string, payload any) (string, error)
}

// CheckoutObserver receives the outcome of every checkout attempt.
type CheckoutObserver interface {
	ObserveCheckout(kind string, seconds float64)
}

const (
	ActionPurchase       = "purchase"
	ActionPurchaseFailed = "purchase_failed"
	ActionProductCreated = "product_created"
	ActionProductUpdated = "product_updated"
	ActionProductDeleted = "product_deleted"

	relatedOrder   = "order"
	relatedProduct = "product"
)

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }
