package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fsanano/inventory/internal/model"
	"fsanano/inventory/internal/repository"
	"fsanano/inventory/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("inventory"),
		postgres.WithUsername("inventory"),
		postgres.WithPassword("inventory"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, repository.RunMigrations(dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

type stores struct {
	tx       *repository.TxManager
	users    *repository.UserRepository
	products *repository.ProductRepository
	orders   *repository.OrderRepository
	activity *repository.ActivityRepository
	outbox   *repository.OutboxRepository
}

func newStores(pool *pgxpool.Pool) stores {
	return stores{
		tx:       repository.NewTxManager(pool),
		users:    repository.NewUserRepository(pool),
		products: repository.NewProductRepository(pool),
		orders:   repository.NewOrderRepository(pool),
		activity: repository.NewActivityRepository(pool),
		outbox:   repository.NewOutboxRepository(pool),
	}
}

func (s stores) seedUser(t *testing.T, email string) *model.User {
	t.Helper()
	u := &model.User{Name: email, Email: email, PasswordHash: "x"}
	require.NoError(t, s.users.Create(context.Background(), u))
	return u
}

func (s stores) seedProduct(t *testing.T, owner int64, price string, stock int) *model.Product {
	t.Helper()
	p := &model.Product{
		Description:   "Product " + price,
		UnitPrice:     decimal.RequireFromString(price),
		StockQuantity: stock,
		OwnerUserID:   owner,
	}
	require.NoError(t, s.products.Create(context.Background(), p))
	return p
}

func (s stores) checkout() *service.CheckoutService {
	return service.NewCheckoutService(s.tx, s.products, s.orders, s.activity,
		service.WithOutbox(s.outbox, "orders.completed"))
}

func TestCheckout_Postgres(t *testing.T) {
	s := newStores(setupTestDB(t))
	ctx := context.Background()

	seller := s.seedUser(t, "seller@example.com")
	buyer := s.seedUser(t, "buyer@example.com")
	p := s.seedProduct(t, seller.ID, "10.00", 5)

	order, err := s.checkout().Checkout(ctx, buyer.ID, []model.CartLine{{ProductID: p.ID, Quantity: 3}}, "card")
	require.NoError(t, err)
	assert.Equal(t, "34.50", order.TotalAmount.StringFixed(2))

	stored, err := s.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("34.50")))
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, 3, stored.Lines[0].Quantity)
	assert.Equal(t, p.Description, stored.Lines[0].ProductNameAtPurchase)

	got, err := s.products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.StockQuantity)

	pending, err := s.outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, s.outbox.MarkSent(ctx, pending[0].ID))
	pending, err = s.outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Order history survives product deletion.
	require.NoError(t, s.products.Delete(ctx, p.ID))
	stored, err = s.orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Description, stored.Lines[0].ProductNameAtPurchase)
}

func TestCheckout_PostgresRollback(t *testing.T) {
	s := newStores(setupTestDB(t))
	ctx := context.Background()

	seller := s.seedUser(t, "seller@example.com")
	buyer := s.seedUser(t, "buyer@example.com")
	a := s.seedProduct(t, seller.ID, "10.00", 10)
	b := s.seedProduct(t, seller.ID, "3.00", 5)

	_, err := s.checkout().Checkout(ctx, buyer.ID, []model.CartLine{
		{ProductID: a.ID, Quantity: 1},
		{ProductID: b.ID, Quantity: 6},
	}, "card")
	var stockErr *service.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	_, err = s.checkout().Checkout(ctx, buyer.ID, []model.CartLine{{ProductID: 999, Quantity: 1}}, "card")
	var notFound *service.ProductNotFoundError
	require.ErrorAs(t, err, &notFound)

	gotA, err := s.products.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, gotA.StockQuantity)

	orders, err := s.orders.ListByPurchaser(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)

	activity, err := s.activity.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, service.ActionPurchaseFailed, activity[0].Action)
}

func TestCheckout_PostgresRowLocks(t *testing.T) {
	s := newStores(setupTestDB(t))
	ctx := context.Background()

	seller := s.seedUser(t, "seller@example.com")
	buyer := s.seedUser(t, "buyer@example.com")
	p := s.seedProduct(t, seller.ID, "1.00", 5)
	svc := s.checkout()

	const goroutines = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(ctx, buyer.ID, []model.CartLine{{ProductID: p.ID, Quantity: 1}}, "card")
			var stockErr *service.InsufficientStockError
			if err != nil && !errors.As(err, &stockErr) {
				t.Errorf("unexpected checkout error: %v", err)
			}
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, successes)
	got, err := s.products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.StockQuantity)

	orders, err := s.orders.ListByPurchaser(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 5)
}

func TestProductRepository(t *testing.T) {
	s := newStores(setupTestDB(t))
	ctx := context.Background()
	owner := s.seedUser(t, "owner@example.com")

	unknown := int64(9999)
	err := s.products.Create(ctx, &model.Product{
		Description: "Ghost", UnitPrice: decimal.NewFromInt(1), OwnerUserID: owner.ID, CategoryID: &unknown,
	})
	assert.ErrorIs(t, err, repository.ErrUnknownCategory)

	home := int64(1)
	lamp := &model.Product{Description: "Desk lamp", UnitPrice: decimal.RequireFromString("19.90"), StockQuantity: 2, OwnerUserID: owner.ID, CategoryID: &home}
	require.NoError(t, s.products.Create(ctx, lamp))
	s.seedProduct(t, owner.ID, "5.00", 1)

	entries, total, err := s.products.List(ctx, repository.CatalogFilter{Search: "LAMP", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "owner@example.com", entries[0].OwnerName)
	require.NotNil(t, entries[0].CategoryName)
	assert.Equal(t, "Hogar", *entries[0].CategoryName)

	_, total, err = s.products.List(ctx, repository.CatalogFilter{CategoryID: &home, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	lamp.StockQuantity = 7
	require.NoError(t, s.products.Update(ctx, lamp))
	got, err := s.products.FindByID(ctx, lamp.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.StockQuantity)

	assert.ErrorIs(t, s.products.DecrementStock(ctx, 424242, 1), repository.ErrNotFound)
	assert.Error(t, s.products.DecrementStock(ctx, lamp.ID, 8), "stock check constraint")

	require.NoError(t, s.products.Delete(ctx, lamp.ID))
	_, err = s.products.FindByID(ctx, lamp.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	s := newStores(setupTestDB(t))
	ctx := context.Background()

	s.seedUser(t, "ana@example.com")
	err := s.users.Create(ctx, &model.User{Name: "Ana", Email: "ana@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, repository.ErrDuplicateEmail)

	_, err = s.users.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
