package service

import (
	"context"
	"fmt"
	"time"

	"fsanano/inventory/internal/model"
)

type ReportRenderer interface {
	Catalog(entries []model.CatalogEntry, generatedAt time.Time) ([]byte, error)
	Activity(entries []model.ActivityEntry, generatedAt time.Time) ([]byte, error)
}

// Report is a rendered PDF ready to be downloaded.
type Report struct {
	Filename string
	Content  []byte
}

type ReportService struct {
	products ProductStore
	activity ActivityStore
	renderer ReportRenderer
	now      func() time.Time
}

func NewReportService(products ProductStore, activity ActivityStore, renderer ReportRenderer) *ReportService {
	return &ReportService{products: products, activity: activity, renderer: renderer, now: time.Now}
}

func (s *ReportService) Catalog(ctx context.Context) (*Report, error) {
	entries, err := s.products.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].OwnerName == "" {
			entries[i].OwnerName = unknownOwner
		}
	}

	now := s.now()
	content, err := s.renderer.Catalog(entries, now)
	if err != nil {
		return nil, fmt.Errorf("render catalog report: %w", err)
	}
	return &Report{Filename: "catalog_" + now.Format("20060102_150405") + ".pdf", Content: content}, nil
}

func (s *ReportService) Activity(ctx context.Context) (*Report, error) {
	entries, err := s.activity.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	content, err := s.renderer.Activity(entries, now)
	if err != nil {
		return nil, fmt.Errorf("render activity report: %w", err)
	}
	return &Report{Filename: "activity_report_" + now.Format("20060102_150405") + ".pdf", Content: content}, nil
}
