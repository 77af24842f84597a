package repository

import (
	"context"
	"errors"
	"fmt"

	"fsanano/inventory/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type OrderRepository struct {
	db *pgxpool.Pool
}

func NewOrderRepository(db *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrder inserts a new order and fills in its id and creation time
func (r *OrderRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	err := executor(ctx, r.db).QueryRow(ctx,
		`INSERT INTO orders (purchaser_user_id, total_amount, payment_method, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		o.PurchaserUserID, o.TotalAmount, o.PaymentMethod, o.Status,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// CreateOrderLine inserts a line snapshot for an existing order
func (r *OrderRepository) CreateOrderLine(ctx context.Context, l *model.OrderLine) error {
	err := executor(ctx, r.db).QueryRow(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity, price, name)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		l.OrderID, l.ProductID, l.Quantity, l.UnitPriceAtPurchase, l.ProductNameAtPurchase,
	).Scan(&l.ID)
	if err != nil {
		return fmt.Errorf("failed to create order line: %w", err)
	}
	return nil
}

func (r *OrderRepository) UpdateOrderTotal(ctx context.Context, orderID int64, amount decimal.Decimal) error {
	tag, err := executor(ctx, r.db).Exec(ctx, "UPDATE orders SET total_amount = $1 WHERE id = $2", amount, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const orderColumns = `id, purchaser_user_id, total_amount, payment_method, status, created_at`

func scanOrder(row pgx.Row, o *model.Order) error {
	return row.Scan(&o.ID, &o.PurchaserUserID, &o.TotalAmount, &o.PaymentMethod, &o.Status, &o.CreatedAt)
}

// GetByID returns the order with its lines, or ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	var o model.Order
	err := scanOrder(executor(ctx, r.db).QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id), &o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	lines, err := r.linesFor(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[o.ID]
	return &o, nil
}

// ListByPurchaser returns the user's orders, newest first, with their lines.
func (r *OrderRepository) ListByPurchaser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := executor(ctx, r.db).Query(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE purchaser_user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	var ids []int64
	for rows.Next() {
		var o model.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order row iteration: %w", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

func (r *OrderRepository) linesFor(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderLine, error) {
	rows, err := executor(ctx, r.db).Query(ctx,
		`SELECT id, order_id, product_id, quantity, price, name
		 FROM order_items WHERE order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]model.OrderLine, len(orderIDs))
	for rows.Next() {
		var l model.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPriceAtPurchase, &l.ProductNameAtPurchase); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	return out, rows.Err()
}
