package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"fsanano/inventory/internal/model"
	"fsanano/inventory/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	DefaultPerPage = 12
	MaxPerPage     = 100
	MaxPage        = 100000

	unknownOwner = "Unknown user"
)

type ProductInput struct {
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CategoryID  *int64          `json:"category_id"`
	ImageURL    *string         `json:"image_url"`
}

func (in *ProductInput) validate() error {
	in.Description = strings.TrimSpace(in.Description)
	switch {
	case in.Description == "":
		return &ValidationError{Field: "description", Message: "is required"}
	case utf8.RuneCountInString(in.Description) > 255:
		return &ValidationError{Field: "description", Message: "must be at most 255 characters"}
	case in.Price.IsNegative():
		return &ValidationError{Field: "price", Message: "must be greater than or equal to 0"}
	case in.Stock < 0:
		return &ValidationError{Field: "stock", Message: "must be greater than or equal to 0"}
	}
	return nil
}

type CatalogQuery struct {
	Search     string
	CategoryID *int64
	Page       int
	PerPage    int
}

type CatalogPage struct {
	Items   []model.CatalogEntry `json:"items"`
	Page    int                  `json:"page"`
	PerPage int                  `json:"per_page"`
	Total   int                  `json:"total"`
	Pages   int                  `json:"pages"`
}

type ProductService struct {
	tx         Transactor
	products   ProductStore
	categories CategoryStore
	activity   ActivityStore
}

func NewProductService(tx Transactor, products ProductStore, categories CategoryStore, activity ActivityStore) *ProductService {
	return &ProductService{tx: tx, products: products, categories: categories, activity: activity}
}

func (s *ProductService) Create(ctx context.Context, ownerID int64, in ProductInput) (*model.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	p := &model.Product{
		Description:   in.Description,
		UnitPrice:     in.Price,
		StockQuantity: in.Stock,
		OwnerUserID:   ownerID,
		CategoryID:    in.CategoryID,
		ImageURL:      in.ImageURL,
	}
	err := s.tx.RunAtomic(ctx, func(ctx context.Context) error {
		if err := s.products.Create(ctx, p); err != nil {
			return err
		}
		return s.record(ctx, ownerID, ActionProductCreated, p)
	})
	if err != nil {
		return nil, mapProductErr(err)
	}
	return p, nil
}

// Update edits a product owned by ownerID.
func (s *ProductService) Update(ctx context.Context, ownerID, productID int64, in ProductInput) (*model.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var p *model.Product
	err := s.tx.RunAtomic(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.products.FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if p.OwnerUserID != ownerID {
			return ErrForbidden
		}

		p.Description = in.Description
		p.UnitPrice = in.Price
		p.StockQuantity = in.Stock
		p.CategoryID = in.CategoryID
		p.ImageURL = in.ImageURL
		if err := s.products.Update(ctx, p); err != nil {
			return err
		}
		return s.record(ctx, ownerID, ActionProductUpdated, p)
	})
	if err != nil {
		return nil, mapProductErr(err)
	}
	return p, nil
}

// Delete removes a product owned by ownerID. Order history keeps its snapshot.
func (s *ProductService) Delete(ctx context.Context, ownerID, productID int64) error {
	err := s.tx.RunAtomic(ctx, func(ctx context.Context) error {
		p, err := s.products.FindByIDForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if p.OwnerUserID != ownerID {
			return ErrForbidden
		}
		if err := s.products.Delete(ctx, productID); err != nil {
			return err
		}
		return s.record(ctx, ownerID, ActionProductDeleted, p)
	})
	return mapProductErr(err)
}

func (s *ProductService) Get(ctx context.Context, productID int64) (*model.Product, error) {
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, mapProductErr(err)
	}
	return p, nil
}

func (s *ProductService) ListOwned(ctx context.Context, ownerID int64) ([]model.Product, error) {
	return s.products.ListByOwner(ctx, ownerID)
}

func (s *ProductService) Categories(ctx context.Context) ([]model.Category, error) {
	return s.categories.List(ctx)
}

// Catalog returns one page of every user's products.
func (s *ProductService) Catalog(ctx context.Context, q CatalogQuery) (*CatalogPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}

	items, total, err := s.products.List(ctx, repository.CatalogFilter{
		Search:     strings.TrimSpace(q.Search),
		CategoryID: q.CategoryID,
		Limit:      q.PerPage,
		Offset:     (q.Page - 1) * q.PerPage,
	})
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].OwnerName == "" {
			items[i].OwnerName = unknownOwner
		}
	}

	return &CatalogPage{
		Items:   items,
		Page:    q.Page,
		PerPage: q.PerPage,
		Total:   total,
		Pages:   (total + q.PerPage - 1) / q.PerPage,
	}, nil
}

func (s *ProductService) record(ctx context.Context, userID int64, action string, p *model.Product) error {
	details := fmt.Sprintf("%s (price %s, stock %d)", p.Description, p.UnitPrice.StringFixed(2), p.StockQuantity)
	return s.activity.Record(ctx, &model.ActivityEntry{
		UserID:      userID,
		Action:      action,
		RelatedType: strPtr(relatedProduct),
		RelatedID:   int64Ptr(p.ID),
		Details:     &details,
	})
}

func mapProductErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrProductNotFound
	case errors.Is(err, repository.ErrUnknownCategory):
		return &ValidationError{Field: "category_id", Message: "does not exist"}
	default:
		return err
	}
}
