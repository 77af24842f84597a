package handler

import (
	"net/http"

	"fsanano/inventory/internal/service"
)

func (h *Handler) CatalogReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reports.Catalog(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writePDF(w, report)
}

func (h *Handler) ActivityReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reports.Activity(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writePDF(w, report)
}

func writePDF(w http.ResponseWriter, report *service.Report) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(report.Content)
}
