package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fsanano/inventory/internal/model"
	"fsanano/inventory/internal/service"
	"fsanano/inventory/internal/service/servicetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureRenderer struct {
	catalog  []model.CatalogEntry
	activity []model.ActivityEntry
	err      error
}

func (r *captureRenderer) Catalog(entries []model.CatalogEntry, _ time.Time) ([]byte, error) {
	r.catalog = entries
	return []byte("%PDF-catalog"), r.err
}

func (r *captureRenderer) Activity(entries []model.ActivityEntry, _ time.Time) ([]byte, error) {
	r.activity = entries
	return []byte("%PDF-activity"), r.err
}

func TestReportService(t *testing.T) {
	db := servicetest.NewDB()
	owner := db.SeedUser("Owner", "owner@example.com")
	db.SeedProduct(model.Product{Description: "Lamp", UnitPrice: dec("9.99"), StockQuantity: 1, OwnerUserID: owner.ID})
	db.SeedProduct(model.Product{Description: "Ghost", UnitPrice: dec("1.00"), OwnerUserID: 12345})
	_, err := service.NewProductService(db, db.Products(), db.Categories(), db.Activity()).
		Create(context.Background(), owner.ID, service.ProductInput{Description: "Rug", Price: dec("40")})
	require.NoError(t, err)

	renderer := &captureRenderer{}
	svc := service.NewReportService(db.Products(), db.Activity(), renderer)

	catalog, err := svc.Catalog(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(catalog.Filename, "catalog_"))
	assert.True(t, strings.HasSuffix(catalog.Filename, ".pdf"))
	require.Len(t, renderer.catalog, 3)
	assert.Equal(t, "Owner", renderer.catalog[0].OwnerName)
	assert.Equal(t, "Unknown user", renderer.catalog[1].OwnerName)

	activity, err := svc.Activity(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(activity.Filename, "activity_report_"))
	require.Len(t, renderer.activity, 1)
	assert.Equal(t, "Owner", renderer.activity[0].UserName)

	renderer.err = errors.New("font missing")
	_, err = svc.Catalog(context.Background())
	assert.ErrorContains(t, err, "render catalog report")
}
