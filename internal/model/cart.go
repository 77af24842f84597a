package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is a client-requested (product, quantity) pair. Price and Name
// are whatever the client echoed back and are never used for pricing.
type CartLine struct {
	ProductID int64            `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Name      string           `json:"name,omitempty"`
}

// Cart is the server-side cart kept per user.
type Cart struct {
	UserID    int64      `json:"user_id"`
	Items     []CartLine `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}
