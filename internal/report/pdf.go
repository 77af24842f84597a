// Package report renders the catalog and the activity log as PDF documents.
package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"fsanano/inventory/internal/model"

	"github.com/go-pdf/fpdf"
)

const (
	CatalogTitle  = "Product Catalog"
	ActivityTitle = "Global System Activity Report"

	dateLayout = "02/01/2006 15:04:05"
)

type column struct {
	header string
	width  float64
	align  string
}

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) Catalog(entries []model.CatalogEntry, generatedAt time.Time) ([]byte, error) {
	cols := []column{
		{"ID", 14, "R"},
		{"Description", 78, "L"},
		{"Price", 24, "R"},
		{"Stock", 18, "R"},
		{"Owner", 56, "L"},
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Description,
			e.UnitPrice.StringFixed(2),
			strconv.Itoa(e.StockQuantity),
			e.OwnerName,
		})
	}
	return render(CatalogTitle, generatedAt, cols, rows, fmt.Sprintf("%d products", len(entries)))
}

func (r *Renderer) Activity(entries []model.ActivityEntry, generatedAt time.Time) ([]byte, error) {
	cols := []column{
		{"Date", 36, "L"},
		{"User", 36, "L"},
		{"Action", 32, "L"},
		{"Related", 24, "L"},
		{"Details", 62, "L"},
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		related := ""
		if e.RelatedType != nil {
			related = *e.RelatedType
			if e.RelatedID != nil {
				related += " #" + strconv.FormatInt(*e.RelatedID, 10)
			}
		}
		details := ""
		if e.Details != nil {
			details = *e.Details
		}
		rows = append(rows, []string{e.CreatedAt.Format(dateLayout), e.UserName, e.Action, related, details})
	}
	return render(ActivityTitle, generatedAt, cols, rows, fmt.Sprintf("%d entries", len(entries)))
}

func render(title string, generatedAt time.Time, cols []column, rows [][]string, summary string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range cols {
			pdf.CellFormat(c.width, 7, c.header, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, "Generated "+generatedAt.Format(dateLayout)+" - "+summary, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	header()
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range rows {
		if pdf.GetY()+6 > pageHeight-bottom-10 {
			pdf.AddPage()
			header()
		}
		for i, c := range cols {
			pdf.CellFormat(c.width, 6, tr(fit(pdf, row[i], c.width-2)), "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// fit shortens s with an ellipsis until it fits in width at the current font.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
