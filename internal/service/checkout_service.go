package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"fsanano/inventory/internal/model"
	"fsanano/inventory/internal/repository"

	"github.com/shopspring/decimal"
)

var DefaultTaxRate = decimal.RequireFromString("0.15")

// OrderCompletedEvent is published for every committed checkout.
type OrderCompletedEvent struct {
	OrderID         int64             `json:"order_id"`
	OrderNumber     string            `json:"order_number"`
	PurchaserUserID int64             `json:"purchaser_user_id"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	PaymentMethod   string            `json:"payment_method"`
	Items           []model.OrderLine `json:"items"`
	CreatedAt       time.Time         `json:"created_at"`
}

type CheckoutService struct {
	tx       Transactor
	products ProductStore
	orders   OrderStore
	activity ActivityStore
	taxRate  decimal.Decimal
	logger   *slog.Logger

	outbox      EventOutbox
	outboxTopic string
	observer    CheckoutObserver
}

type CheckoutOption func(*CheckoutService)

func WithTaxRate(rate decimal.Decimal) CheckoutOption {
	return func(s *CheckoutService) { s.taxRate = rate }
}

func WithLogger(l *slog.Logger) CheckoutOption {
	return func(s *CheckoutService) { s.logger = l }
}

// WithOutbox enqueues an OrderCompletedEvent on topic inside the checkout transaction.
func WithOutbox(outbox EventOutbox, topic string) CheckoutOption {
	return func(s *CheckoutService) {
		s.outbox = outbox
		s.outboxTopic = topic
	}
}

func WithObserver(o CheckoutObserver) CheckoutOption {
	return func(s *CheckoutService) { s.observer = o }
}

func NewCheckoutService(tx Transactor, products ProductStore, orders OrderStore, activity ActivityStore, opts ...CheckoutOption) *CheckoutService {
	s := &CheckoutService{
		tx:       tx,
		products: products,
		orders:   orders,
		activity: activity,
		taxRate:  DefaultTaxRate,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyTax returns subtotal*(1+rate) rounded to cents. Tax is applied once
// on the order total, never per line.
func ApplyTax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(decimal.NewFromInt(1).Add(rate)).Round(2)
}

// Checkout validates the cart, decrements stock and records the order in a
// single transaction. On error nothing is persisted except a best-effort
// purchase_failed activity entry.
//
// Rows are locked in the order the lines were supplied.
func (s *CheckoutService) Checkout(ctx context.Context, purchaserID int64, lines []model.CartLine, paymentMethod string) (*model.Order, error) {
	start := time.Now()
	order, err := s.checkout(ctx, purchaserID, lines, strings.TrimSpace(paymentMethod))

	kind := "success"
	if err != nil {
		kind = CheckoutErrorKind(err)
	}
	if s.observer != nil {
		s.observer.ObserveCheckout(kind, time.Since(start).Seconds())
	}

	if err != nil {
		level := slog.LevelWarn
		if kind == KindCheckoutFailed {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "checkout rejected",
			"user_id", purchaserID, "kind", kind, "lines", len(lines), "error", err)
		s.recordFailure(ctx, purchaserID, err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout completed",
		"user_id", purchaserID, "order_id", order.ID, "total", order.TotalAmount.StringFixed(2),
		"payment_method", order.PaymentMethod, "lines", len(order.Lines))
	return order, nil
}

func (s *CheckoutService) checkout(ctx context.Context, purchaserID int64, lines []model.CartLine, paymentMethod string) (*model.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if paymentMethod == "" {
		return nil, ErrMissingPaymentMethod
	}
	for i, l := range lines {
		if l.ProductID <= 0 || l.Quantity <= 0 {
			return nil, &InvalidCartLineError{Index: i, ProductID: l.ProductID, Quantity: l.Quantity}
		}
	}

	var order *model.Order
	err := s.tx.RunAtomic(ctx, func(ctx context.Context) error {
		locked, err := s.reserve(ctx, lines)
		if err != nil {
			return err
		}
		order, err = s.commit(ctx, purchaserID, lines, paymentMethod, locked)
		return err
	})
	if err != nil {
		var (
			notFound *ProductNotFoundError
			stock    *InsufficientStockError
		)
		if errors.As(err, &notFound) || errors.As(err, &stock) {
			return nil, err
		}
		return nil, &CheckoutFailedError{Err: err}
	}
	return order, nil
}

// reserve locks every referenced product and checks that the accumulated
// requested quantity per product fits in its stock.
func (s *CheckoutService) reserve(ctx context.Context, lines []model.CartLine) (map[int64]*model.Product, error) {
	locked := make(map[int64]*model.Product, len(lines))
	requested := make(map[int64]int, len(lines))

	for _, l := range lines {
		p, ok := locked[l.ProductID]
		if !ok {
			var err error
			p, err = s.products.FindByIDForUpdate(ctx, l.ProductID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil, &ProductNotFoundError{ProductID: l.ProductID}
			}
			if err != nil {
				return nil, err
			}
			locked[l.ProductID] = p
		}

		already := requested[l.ProductID]
		if l.Quantity > p.StockQuantity-already {
			total := already + l.Quantity
			if total < already {
				total = math.MaxInt
			}
			return nil, &InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Description,
				Available: p.StockQuantity,
				Requested: total,
			}
		}
		requested[l.ProductID] = already + l.Quantity
	}
	return locked, nil
}

func (s *CheckoutService) commit(ctx context.Context, purchaserID int64, lines []model.CartLine, paymentMethod string, locked map[int64]*model.Product) (*model.Order, error) {
	order := &model.Order{
		PurchaserUserID: purchaserID,
		TotalAmount:     decimal.Zero,
		PaymentMethod:   paymentMethod,
		Status:          model.OrderStatusCompleted,
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		p := locked[l.ProductID]
		line := model.OrderLine{
			OrderID:               order.ID,
			ProductID:             p.ID,
			Quantity:              l.Quantity,
			UnitPriceAtPurchase:   p.UnitPrice,
			ProductNameAtPurchase: p.Description,
		}
		if err := s.orders.CreateOrderLine(ctx, &line); err != nil {
			return nil, err
		}
		if err := s.products.DecrementStock(ctx, p.ID, l.Quantity); err != nil {
			return nil, fmt.Errorf("decrement stock of product %d: %w", p.ID, err)
		}
		subtotal = subtotal.Add(line.Subtotal())
		order.Lines = append(order.Lines, line)
	}

	order.TotalAmount = ApplyTax(subtotal, s.taxRate)
	if err := s.orders.UpdateOrderTotal(ctx, order.ID, order.TotalAmount); err != nil {
		return nil, err
	}

	details := fmt.Sprintf("%s: %d items, total %s, paid with %s",
		order.Number(), len(order.Lines), order.TotalAmount.StringFixed(2), paymentMethod)
	err := s.activity.Record(ctx, &model.ActivityEntry{
		UserID:      purchaserID,
		Action:      ActionPurchase,
		RelatedType: strPtr(relatedOrder),
		RelatedID:   int64Ptr(order.ID),
		Details:     &details,
	})
	if err != nil {
		return nil, err
	}

	if s.outbox != nil {
		_, err := s.outbox.Insert(ctx, s.outboxTopic, strconv.FormatInt(order.ID, 10), OrderCompletedEvent{
			OrderID:         order.ID,
			OrderNumber:     order.Number(),
			PurchaserUserID: purchaserID,
			TotalAmount:     order.TotalAmount,
			PaymentMethod:   paymentMethod,
			Items:           order.Lines,
			CreatedAt:       order.CreatedAt,
		})
		if err != nil {
			return nil, err
		}
	}

	return order, nil
}

func (s *CheckoutService) recordFailure(ctx context.Context, purchaserID int64, cause error) {
	// The request context may already be cancelled; the entry still belongs in the log.
	ctx = context.WithoutCancel(ctx)
	details := cause.Error()
	if kind := CheckoutErrorKind(cause); kind == KindCheckoutFailed {
		details = kind + ": checkout could not be completed"
	}
	err := s.activity.Record(ctx, &model.ActivityEntry{
		UserID:  purchaserID,
		Action:  ActionPurchaseFailed,
		Details: &details,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record checkout failure", "user_id", purchaserID, "error", err)
	}
}
