package repository

import (
	"context"
	"errors"
	"fmt"

	"fsanano/inventory/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = `p.id, p.description, p.price, p.stock, COALESCE(p.owner_user_id, 0), p.category_id, p.image_url, p.created_at, p.updated_at`

type ProductRepository struct {
	db *pgxpool.Pool
}

func NewProductRepository(db *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: db}
}

// CatalogFilter narrows the global catalog listing. Zero values mean "no filter".
type CatalogFilter struct {
	Search     string
	CategoryID *int64
	Limit      int
	Offset     int
}

func scanProduct(row pgx.Row, p *model.Product, extra ...any) error {
	dest := []any{
		&p.ID, &p.Description, &p.UnitPrice, &p.StockQuantity, &p.OwnerUserID,
		&p.CategoryID, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func (r *ProductRepository) findOne(ctx context.Context, query string, id int64) (*model.Product, error) {
	var p model.Product
	err := scanProduct(executor(ctx, r.db).QueryRow(ctx, query, id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// FindByID returns the product or ErrNotFound.
func (r *ProductRepository) FindByID(ctx context.Context, id int64) (*model.Product, error) {
	return r.findOne(ctx, "SELECT "+productColumns+" FROM products p WHERE p.id = $1", id)
}

// FindByIDForUpdate locks the product row until the enclosing transaction ends.
func (r *ProductRepository) FindByIDForUpdate(ctx context.Context, id int64) (*model.Product, error) {
	return r.findOne(ctx, "SELECT "+productColumns+" FROM products p WHERE p.id = $1 FOR UPDATE", id)
}

// DecrementStock updates the stock of a product
func (r *ProductRepository) DecrementStock(ctx context.Context, id int64, amount int) error {
	tag, err := executor(ctx, r.db).Exec(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2", amount, id)
	if err != nil {
		return fmt.Errorf("failed to update product stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Create inserts a new product and fills in its generated fields
func (r *ProductRepository) Create(ctx context.Context, p *model.Product) error {
	err := executor(ctx, r.db).QueryRow(ctx,
		`INSERT INTO products (description, price, stock, owner_user_id, category_id, image_url)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		p.Description, p.UnitPrice, p.StockQuantity, p.OwnerUserID, p.CategoryID, p.ImageURL,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err, "products_category_id_fkey") {
			return ErrUnknownCategory
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// Update saves the editable fields of a product
func (r *ProductRepository) Update(ctx context.Context, p *model.Product) error {
	err := executor(ctx, r.db).QueryRow(ctx,
		`UPDATE products
		 SET description = $1, price = $2, stock = $3, category_id = $4, image_url = $5, updated_at = NOW()
		 WHERE id = $6
		 RETURNING updated_at`,
		p.Description, p.UnitPrice, p.StockQuantity, p.CategoryID, p.ImageURL, p.ID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if isForeignKeyViolation(err, "products_category_id_fkey") {
			return ErrUnknownCategory
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := executor(ctx, r.db).Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProductRepository) ListByOwner(ctx context.Context, ownerID int64) ([]model.Product, error) {
	rows, err := executor(ctx, r.db).Query(ctx,
		"SELECT "+productColumns+" FROM products p WHERE p.owner_user_id = $1 ORDER BY p.id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const catalogSelect = `SELECT ` + productColumns + `, u.name, c.name
	FROM products p
	LEFT JOIN users u ON u.id = p.owner_user_id
	LEFT JOIN categories c ON c.id = p.category_id`

const catalogWhere = `
	WHERE ($1::text = '' OR p.description ILIKE '%' || $1 || '%')
	  AND ($2::bigint IS NULL OR p.category_id = $2)`

// List returns one page of the global catalog and the total number of matches.
func (r *ProductRepository) List(ctx context.Context, f CatalogFilter) ([]model.CatalogEntry, int, error) {
	ex := executor(ctx, r.db)

	var total int
	if err := ex.QueryRow(ctx, "SELECT COUNT(*) FROM products p"+catalogWhere, f.Search, f.CategoryID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	rows, err := ex.Query(ctx, catalogSelect+catalogWhere+" ORDER BY p.id LIMIT $3 OFFSET $4",
		f.Search, f.CategoryID, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query catalog: %w", err)
	}
	entries, err := scanCatalog(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ListAll returns the whole catalog, used by the PDF report.
func (r *ProductRepository) ListAll(ctx context.Context) ([]model.CatalogEntry, error) {
	rows, err := executor(ctx, r.db).Query(ctx, catalogSelect+" ORDER BY p.id")
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	return scanCatalog(rows)
}

func scanCatalog(rows pgx.Rows) ([]model.CatalogEntry, error) {
	defer rows.Close()

	entries := []model.CatalogEntry{}
	for rows.Next() {
		var e model.CatalogEntry
		var owner *string
		if err := scanProduct(rows, &e.Product, &owner, &e.CategoryName); err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		if owner != nil {
			e.OwnerName = *owner
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog row iteration: %w", err)
	}
	return entries, nil
}
