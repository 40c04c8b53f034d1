package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/username/hermes/backend/src/database"
	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/model"
	"github.com/username/hermes/backend/src/models"
	"github.com/username/hermes/backend/src/security/validation"
	"github.com/username/hermes/backend/src/services"
	"github.com/username/hermes/backend/src/utils"
)

const (
	maxAdvertisingRows = 10000
	maxDailyAdCost     = 1_000_000.0
	maxDailyAdCount    = 10_000_000
)

type AdvertisingHandler struct {
	financeService services.FinanceService
	loc            *time.Location
	now            func() time.Time
}

func NewAdvertisingHandler(financeService services.FinanceService, loc *time.Location) *AdvertisingHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AdvertisingHandler{financeService: financeService, loc: loc, now: time.Now}
}

func (h *AdvertisingHandler) HandleListAdvertising(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period, err := utils.ParsePeriod(q.Get("start"), q.Get("end"), h.now().In(h.loc))
	if err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := model.ListAdvertising(database.DB, period)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list advertising", "error", err)
		sendJSONError(w, "Failed to list advertising", http.StatusInternalServerError)
		return
	}

	byItem := models.AggregateAdvertising(rows)
	items := make([]models.AdvertisingItem, 0, len(byItem))
	for _, it := range byItem {
		it.Cost = utils.RoundMoney(it.Cost)
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })

	utils.WriteJSONWithETag(w, r, map[string]interface{}{
		"period": period,
		"daily":  rows,
		"items":  items,
	})
}

type advertisingRowRequest struct {
	ItemID string  `json:"itemId"`
	Date   string  `json:"date"`
	Cost   float64 `json:"cost"`
	Units  int     `json:"units"`
	Clicks int     `json:"clicks"`
}

// HandleUpsertAdvertising stores daily rows posted as a JSON array.
func (h *AdvertisingHandler) HandleUpsertAdvertising(w http.ResponseWriter, r *http.Request) {
	var req []advertisingRowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body: expected a JSON array of daily rows", http.StatusBadRequest)
		return
	}
	if len(req) == 0 || len(req) > maxAdvertisingRows {
		sendJSONError(w, "Between 1 and 10000 rows are required", http.StatusBadRequest)
		return
	}

	rows := make([]models.AdvertisingDaily, 0, len(req))
	for _, in := range req {
		row, err := h.validateRow(in)
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		rows = append(rows, row)
	}

	if err := model.UpsertAdvertisingDaily(database.DB, rows); err != nil {
		logger.FromContext(r.Context()).Error("Failed to store advertising rows", "error", err)
		sendJSONError(w, "Failed to store advertising", http.StatusInternalServerError)
		return
	}
	h.financeService.InvalidateCache()
	utils.SendJSON(w, map[string]int{"stored": len(rows)}, http.StatusOK)
}

func (h *AdvertisingHandler) validateRow(in advertisingRowRequest) (models.AdvertisingDaily, error) {
	itemID := strings.ToUpper(strings.TrimSpace(in.ItemID))
	if err := validation.ValidateItemID(itemID); err != nil {
		return models.AdvertisingDaily{}, err
	}
	date, err := validation.ValidateDateString(in.Date, "Date", h.loc)
	if err != nil {
		return models.AdvertisingDaily{}, err
	}
	if err := validation.ValidateFloat(in.Cost, "Cost", false, 0, maxDailyAdCost); err != nil {
		return models.AdvertisingDaily{}, err
	}
	if err := validation.ValidateInt(in.Units, "Units", false, true, 0, maxDailyAdCount); err != nil {
		return models.AdvertisingDaily{}, err
	}
	if err := validation.ValidateInt(in.Clicks, "Clicks", false, true, 0, maxDailyAdCount); err != nil {
		return models.AdvertisingDaily{}, err
	}
	return models.AdvertisingDaily{ItemID: itemID, Date: date, Cost: in.Cost, Units: in.Units, Clicks: in.Clicks}, nil
}
