// backend/src/handlers/finance_handler.go
package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/models"
	"github.com/username/hermes/backend/src/services"
	"github.com/username/hermes/backend/src/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type FinanceHandler struct {
	financeService services.FinanceService
	exportService  *services.ExportService
	loc            *time.Location
	now            func() time.Time
}

func NewFinanceHandler(financeService services.FinanceService, exportService *services.ExportService, loc *time.Location) *FinanceHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &FinanceHandler{
		financeService: financeService,
		exportService:  exportService,
		loc:            loc,
		now:            time.Now,
	}
}

// periodFromRequest reads ?start=YYYY-MM-DD&end=YYYY-MM-DD in the report timezone.
func (h *FinanceHandler) periodFromRequest(r *http.Request) (models.Period, error) {
	q := r.URL.Query()
	return utils.ParsePeriod(q.Get("start"), q.Get("end"), h.now().In(h.loc))
}

// writeServiceError maps service errors onto status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidPeriod):
		sendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrReportParsing):
		sendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, services.ErrSalesUnavailable):
		logger.FromContext(r.Context()).Error("Sales source unavailable", "error", err)
		sendJSONError(w, "Não foi possível obter as vendas. Tente novamente em instantes.", http.StatusBadGateway)
	default:
		logger.FromContext(r.Context()).Error("Unexpected service error", "error", err)
		sendJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *FinanceHandler) loadReport(w http.ResponseWriter, r *http.Request) (*models.FinanceReport, bool) {
	period, err := h.periodFromRequest(r)
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	report, err := h.financeService.GetReport(r.Context(), period)
	if err != nil {
		writeServiceError(w, r, err)
		return nil, false
	}
	return report, true
}

func (h *FinanceHandler) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	utils.WriteJSONWithETag(w, r, report)
}

func (h *FinanceHandler) HandleGetItems(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	utils.WriteJSONWithETag(w, r, map[string]interface{}{
		"period":      report.Period,
		"generatedAt": report.GeneratedAt,
		"items":       report.Items,
		"totals":      report.Totals,
		"warnings":    report.Warnings,
	})
}

func (h *FinanceHandler) HandleExportItems(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.exportService.WriteItemsXLSX(&buf, report); err != nil {
		logger.FromContext(r.Context()).Error("Failed to render items spreadsheet", "error", err)
		sendJSONError(w, "Failed to export items", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("hermes-itens-%s.xlsx", report.Period.Key())
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *FinanceHandler) HandleGetReleases(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	uploads, err := h.financeService.ListReleaseReports(10)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list release report uploads", "error", err)
		uploads = []models.ReleaseReport{}
	}
	utils.WriteJSONWithETag(w, r, map[string]interface{}{
		"period":   report.Period,
		"source":   report.ReleaseSource,
		"releases": report.Releases,
		"uploads":  uploads,
	})
}

func (h *FinanceHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	h.financeService.InvalidateCache()
	logger.FromContext(r.Context()).Info("Finance cache cleared on request")
	utils.SendJSON(w, map[string]string{"message": "Cache limpo"}, http.StatusOK)
}
