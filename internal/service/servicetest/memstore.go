// Package servicetest provides an in-memory implementation of the service
// stores for tests. Transactions are serialized by a single lock and roll
// back by restoring a snapshot.
package servicetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fsanano/inventory/internal/model"
	"fsanano/inventory/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNegativeStock = errors.New("stock would become negative")

type state struct {
	products   map[int64]model.Product
	orders     map[int64]model.Order
	lines      []model.OrderLine
	users      map[int64]model.User
	categories []model.Category
	activity   []model.ActivityEntry
	outbox     []model.OutboxEvent
	nextID     int64
}

func (s *state) clone() *state {
	c := &state{
		products:   make(map[int64]model.Product, len(s.products)),
		orders:     make(map[int64]model.Order, len(s.orders)),
		lines:      append([]model.OrderLine(nil), s.lines...),
		users:      make(map[int64]model.User, len(s.users)),
		categories: append([]model.Category(nil), s.categories...),
		activity:   append([]model.ActivityEntry(nil), s.activity...),
		outbox:     append([]model.OutboxEvent(nil), s.outbox...),
		nextID:     s.nextID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

type DB struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *state

	failures map[string]error
}

func NewDB() *DB {
	return &DB{
		st: &state{
			products: map[int64]model.Product{},
			orders:   map[int64]model.Order{},
			users:    map[int64]model.User{},
			categories: []model.Category{
				{ID: 1, Name: "Hogar"},
				{ID: 2, Name: "Electrónica"},
			},
			nextID: 100,
		},
		failures: map[string]error{},
	}
}

type txKey struct{}

// RunAtomic implements service.Transactor.
func (db *DB) RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	snapshot := db.st.clone()
	db.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		db.mu.Lock()
		db.st = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}

// Fail makes the named operation return err until cleared with a nil err.
func (db *DB) Fail(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.failures, op)
		return
	}
	db.failures[op] = err
}

func (db *DB) with(op string, fn func(st *state) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.failures[op]; err != nil {
		return err
	}
	return fn(db.st)
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

// Seeding and inspection helpers.

func (db *DB) SeedUser(name, email string) model.User {
	var u model.User
	_ = db.with("", func(st *state) error {
		u = model.User{ID: st.id(), Name: name, Email: email, CreatedAt: time.Now()}
		st.users[u.ID] = u
		return nil
	})
	return u
}

func (db *DB) SeedProduct(p model.Product) model.Product {
	_ = db.with("", func(st *state) error {
		if p.ID == 0 {
			p.ID = st.id()
		}
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt
		st.products[p.ID] = p
		return nil
	})
	return p
}

func (db *DB) Product(id int64) (model.Product, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.st.products[id]
	return p, ok
}

func (db *DB) Orders() []model.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]model.Order, 0, len(db.st.orders))
	for _, o := range db.st.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (db *DB) OrderLines() []model.OrderLine {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]model.OrderLine(nil), db.st.lines...)
}

func (db *DB) ActivityEntries() []model.ActivityEntry {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]model.ActivityEntry(nil), db.st.activity...)
}

func (db *DB) OutboxEvents() []model.OutboxEvent {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]model.OutboxEvent(nil), db.st.outbox...)
}

// ProductStore implements service.ProductStore.
type ProductStore struct{ db *DB }

func (db *DB) Products() *ProductStore { return &ProductStore{db: db} }

func (s *ProductStore) FindByID(_ context.Context, id int64) (*model.Product, error) {
	var out *model.Product
	err := s.db.with("FindByID", func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (s *ProductStore) FindByIDForUpdate(ctx context.Context, id int64) (*model.Product, error) {
	if err := s.db.with("FindByIDForUpdate", func(*state) error { return nil }); err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

func (s *ProductStore) DecrementStock(_ context.Context, id int64, amount int) error {
	return s.db.with("DecrementStock", func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return repository.ErrNotFound
		}
		if p.StockQuantity-amount < 0 {
			return ErrNegativeStock
		}
		p.StockQuantity -= amount
		p.UpdatedAt = time.Now()
		st.products[id] = p
		return nil
	})
}

func (s *ProductStore) Create(_ context.Context, p *model.Product) error {
	return s.db.with("CreateProduct", func(st *state) error {
		if p.CategoryID != nil && !st.hasCategory(*p.CategoryID) {
			return repository.ErrUnknownCategory
		}
		p.ID = st.id()
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt
		st.products[p.ID] = *p
		return nil
	})
}

func (s *ProductStore) Update(_ context.Context, p *model.Product) error {
	return s.db.with("UpdateProduct", func(st *state) error {
		if _, ok := st.products[p.ID]; !ok {
			return repository.ErrNotFound
		}
		if p.CategoryID != nil && !st.hasCategory(*p.CategoryID) {
			return repository.ErrUnknownCategory
		}
		p.UpdatedAt = time.Now()
		st.products[p.ID] = *p
		return nil
	})
}

func (s *ProductStore) Delete(_ context.Context, id int64) error {
	return s.db.with("DeleteProduct", func(st *state) error {
		if _, ok := st.products[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.products, id)
		return nil
	})
}

func (s *ProductStore) ListByOwner(_ context.Context, ownerID int64) ([]model.Product, error) {
	out := []model.Product{}
	err := s.db.with("ListByOwner", func(st *state) error {
		for _, p := range st.sortedProducts() {
			if p.OwnerUserID == ownerID {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

func (s *ProductStore) List(_ context.Context, f repository.CatalogFilter) ([]model.CatalogEntry, int, error) {
	out := []model.CatalogEntry{}
	total := 0
	err := s.db.with("ListCatalog", func(st *state) error {
		var matched []model.CatalogEntry
		for _, p := range st.sortedProducts() {
			if f.Search != "" && !strings.Contains(strings.ToLower(p.Description), strings.ToLower(f.Search)) {
				continue
			}
			if f.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *f.CategoryID) {
				continue
			}
			matched = append(matched, st.catalogEntry(p))
		}
		total = len(matched)
		for i := f.Offset; i < len(matched) && len(out) < f.Limit; i++ {
			out = append(out, matched[i])
		}
		return nil
	})
	return out, total, err
}

func (s *ProductStore) ListAll(_ context.Context) ([]model.CatalogEntry, error) {
	out := []model.CatalogEntry{}
	err := s.db.with("ListCatalog", func(st *state) error {
		for _, p := range st.sortedProducts() {
			out = append(out, st.catalogEntry(p))
		}
		return nil
	})
	return out, err
}

func (st *state) sortedProducts() []model.Product {
	out := make([]model.Product, 0, len(st.products))
	for _, p := range st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (st *state) catalogEntry(p model.Product) model.CatalogEntry {
	e := model.CatalogEntry{Product: p}
	if u, ok := st.users[p.OwnerUserID]; ok {
		e.OwnerName = u.Name
	}
	if p.CategoryID != nil {
		for _, c := range st.categories {
			if c.ID == *p.CategoryID {
				name := c.Name
				e.CategoryName = &name
			}
		}
	}
	return e
}

func (st *state) hasCategory(id int64) bool {
	for _, c := range st.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// OrderStore implements service.OrderStore.
type OrderStore struct{ db *DB }

func (db *DB) OrderStore() *OrderStore { return &OrderStore{db: db} }

func (s *OrderStore) CreateOrder(_ context.Context, o *model.Order) error {
	return s.db.with("CreateOrder", func(st *state) error {
		o.ID = st.id()
		o.CreatedAt = time.Now()
		stored := *o
		stored.Lines = nil
		st.orders[o.ID] = stored
		return nil
	})
}

func (s *OrderStore) CreateOrderLine(_ context.Context, l *model.OrderLine) error {
	return s.db.with("CreateOrderLine", func(st *state) error {
		if _, ok := st.orders[l.OrderID]; !ok {
			return fmt.Errorf("order %d does not exist", l.OrderID)
		}
		l.ID = st.id()
		st.lines = append(st.lines, *l)
		return nil
	})
}

func (s *OrderStore) UpdateOrderTotal(_ context.Context, orderID int64, amount decimal.Decimal) error {
	return s.db.with("UpdateOrderTotal", func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok {
			return repository.ErrNotFound
		}
		o.TotalAmount = amount
		st.orders[orderID] = o
		return nil
	})
}

func (s *OrderStore) GetByID(_ context.Context, id int64) (*model.Order, error) {
	var out *model.Order
	err := s.db.with("GetOrder", func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return repository.ErrNotFound
		}
		o.Lines = st.linesOf(o.ID)
		out = &o
		return nil
	})
	return out, err
}

func (s *OrderStore) ListByPurchaser(_ context.Context, userID int64) ([]model.Order, error) {
	out := []model.Order{}
	err := s.db.with("ListOrders", func(st *state) error {
		for _, o := range st.orders {
			if o.PurchaserUserID == userID {
				o.Lines = st.linesOf(o.ID)
				out = append(out, o)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, err
}

func (st *state) linesOf(orderID int64) []model.OrderLine {
	var out []model.OrderLine
	for _, l := range st.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out
}

// UserStore implements service.UserStore.
type UserStore struct{ db *DB }

func (db *DB) Users() *UserStore { return &UserStore{db: db} }

func (s *UserStore) Create(_ context.Context, u *model.User) error {
	return s.db.with("CreateUser", func(st *state) error {
		for _, existing := range st.users {
			if existing.Email == u.Email {
				return repository.ErrDuplicateEmail
			}
		}
		u.ID = st.id()
		u.CreatedAt = time.Now()
		st.users[u.ID] = *u
		return nil
	})
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	var out *model.User
	err := s.db.with("FindUser", func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				out = &u
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (s *UserStore) FindByID(_ context.Context, id int64) (*model.User, error) {
	var out *model.User
	err := s.db.with("FindUser", func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

// CategoryStore implements service.CategoryStore.
type CategoryStore struct{ db *DB }

func (db *DB) Categories() *CategoryStore { return &CategoryStore{db: db} }

func (s *CategoryStore) List(_ context.Context) ([]model.Category, error) {
	var out []model.Category
	err := s.db.with("ListCategories", func(st *state) error {
		out = append([]model.Category(nil), st.categories...)
		return nil
	})
	return out, err
}

// ActivityStore implements service.ActivityStore.
type ActivityStore struct{ db *DB }

func (db *DB) Activity() *ActivityStore { return &ActivityStore{db: db} }

func (s *ActivityStore) Record(_ context.Context, e *model.ActivityEntry) error {
	return s.db.with("RecordActivity", func(st *state) error {
		e.ID = st.id()
		e.CreatedAt = time.Now()
		st.activity = append(st.activity, *e)
		return nil
	})
}

func (s *ActivityStore) ListAll(_ context.Context) ([]model.ActivityEntry, error) {
	var out []model.ActivityEntry
	err := s.db.with("ListActivity", func(st *state) error {
		for i := len(st.activity) - 1; i >= 0; i-- {
			e := st.activity[i]
			e.UserName = st.users[e.UserID].Name
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// Outbox implements service.EventOutbox and events.OutboxSource.
type Outbox struct{ db *DB }

func (db *DB) Outbox() *Outbox { return &Outbox{db: db} }

func (s *Outbox) Insert(_ context.Context, topic, key string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	eventID := uuid.NewString()
	err = s.db.with("InsertOutbox", func(st *state) error {
		st.outbox = append(st.outbox, model.OutboxEvent{
			ID: st.id(), EventID: eventID, Topic: topic, Key: key, Payload: data, CreatedAt: time.Now(),
		})
		return nil
	})
	return eventID, err
}

func (s *Outbox) FetchPending(_ context.Context, limit int) ([]model.OutboxEvent, error) {
	var out []model.OutboxEvent
	err := s.db.with("FetchOutbox", func(st *state) error {
		for _, e := range st.outbox {
			if e.SentAt == nil && len(out) < limit {
				out = append(out, e)
			}
		}
		return nil
	})
	return out, err
}

func (s *Outbox) MarkSent(_ context.Context, id int64) error {
	return s.db.with("MarkOutboxSent", func(st *state) error {
		for i := range st.outbox {
			if st.outbox[i].ID == id {
				now := time.Now()
				st.outbox[i].SentAt = &now
				return nil
			}
		}
		return repository.ErrNotFound
	})
}
