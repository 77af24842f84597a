package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const OrderStatusCompleted = "completed"

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID            int64           `json:"id"`
	Description   string          `json:"description"`
	UnitPrice     decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock"`
	OwnerUserID   int64           `json:"owner_user_id"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	ImageURL      *string         `json:"image_url,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CatalogEntry is a product as shown in the global catalog.
type CatalogEntry struct {
	Product
	OwnerName    string  `json:"owner_name"`
	CategoryName *string `json:"category_name,omitempty"`
}

type Order struct {
	ID              int64           `json:"id"`
	PurchaserUserID int64           `json:"purchaser_user_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	PaymentMethod   string          `json:"payment_method"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	Lines           []OrderLine     `json:"items,omitempty"`
}

// Number is the display reference of the order, e.g. ORD-000042.
func (o *Order) Number() string {
	return OrderNumber(o.ID)
}

func OrderNumber(id int64) string {
	return fmt.Sprintf("ORD-%06d", id)
}

type OrderLine struct {
	ID                    int64           `json:"id"`
	OrderID               int64           `json:"order_id"`
	ProductID             int64           `json:"product_id"`
	Quantity              int             `json:"quantity"`
	UnitPriceAtPurchase   decimal.Decimal `json:"price"`
	ProductNameAtPurchase string          `json:"name"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPriceAtPurchase.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type ActivityEntry struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	UserName    string    `json:"user_name,omitempty"`
	Action      string    `json:"action"`
	RelatedType *string   `json:"related_type,omitempty"`
	RelatedID   *int64    `json:"related_id,omitempty"`
	Details     *string   `json:"details,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type OutboxEvent struct {
	ID        int64      `json:"id"`
	EventID   string     `json:"event_id"`
	Topic     string     `json:"topic"`
	Key       string     `json:"key"`
	Payload   []byte     `json:"payload"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}
