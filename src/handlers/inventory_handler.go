package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/username/hermes/backend/src/database"
	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/model"
	"github.com/username/hermes/backend/src/models"
	"github.com/username/hermes/backend/src/security/validation"
	"github.com/username/hermes/backend/src/services"
	"github.com/username/hermes/backend/src/utils"
)

const (
	maxPurchaseQuantity = 1_000_000
	maxUnitCost         = 1_000_000.0
)

// InventoryHandler manages the purchase history used for cost basis.
type InventoryHandler struct {
	financeService services.FinanceService
	loc            *time.Location
}

func NewInventoryHandler(financeService services.FinanceService, loc *time.Location) *InventoryHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &InventoryHandler{financeService: financeService, loc: loc}
}

func (h *InventoryHandler) HandleListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := model.ListInventory(database.DB)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list inventory", "error", err)
		sendJSONError(w, "Failed to list inventory", http.StatusInternalServerError)
		return
	}
	utils.WriteJSONWithETag(w, r, items)
}

func (h *InventoryHandler) HandleUpsertItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID string `json:"itemId"`
		Title  string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	itemID := strings.ToUpper(strings.TrimSpace(req.ItemID))
	if err := validation.ValidateItemID(itemID); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	title := validation.SanitizeText(strings.TrimSpace(req.Title))
	if err := validation.ValidateTitle(title, itemID); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := model.UpsertInventoryItem(database.DB, itemID, title); err != nil {
		logger.FromContext(r.Context()).Error("Failed to upsert inventory item", "itemID", itemID, "error", err)
		sendJSONError(w, "Failed to save item", http.StatusInternalServerError)
		return
	}
	h.financeService.InvalidateCache()
	utils.SendJSON(w, map[string]string{"itemId": itemID, "title": title}, http.StatusOK)
}

func (h *InventoryHandler) HandleAddPurchase(w http.ResponseWriter, r *http.Request) {
	itemID := strings.ToUpper(chi.URLParam(r, "itemID"))
	if err := validation.ValidateItemID(itemID); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req struct {
		Quantity  int     `json:"quantity"`
		UnitCost  float64 `json:"unitCost"`
		TotalCost float64 `json:"totalCost"`
		SourceID  string  `json:"sourceId"`
		Date      string  `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Negative quantities record withdrawals.
	if err := validation.ValidateInt(req.Quantity, "Quantity", true, false, -maxPurchaseQuantity, maxPurchaseQuantity); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateFloat(req.UnitCost, "Unit cost", false, 0, maxUnitCost); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateFloat(req.TotalCost, "Total cost", true, -maxUnitCost*maxPurchaseQuantity, maxUnitCost*maxPurchaseQuantity); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Quantity > 0 && req.UnitCost == 0 && req.TotalCost == 0 {
		sendJSONError(w, "Unit cost or total cost is required for a purchase", http.StatusBadRequest)
		return
	}
	sourceID := strings.TrimSpace(req.SourceID)
	if err := validation.ValidateSourceID(sourceID); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	purchase := &models.Purchase{
		ItemID:    itemID,
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		TotalCost: req.TotalCost,
		SourceID:  sourceID,
	}
	if strings.TrimSpace(req.Date) != "" {
		date, err := validation.ValidateDateString(req.Date, "Date", h.loc)
		if err != nil {
			sendJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		purchase.Date = date
	}

	if err := model.AddPurchase(database.DB, purchase); err != nil {
		logger.FromContext(r.Context()).Error("Failed to add purchase", "itemID", itemID, "error", err)
		sendJSONError(w, "Failed to save purchase", http.StatusInternalServerError)
		return
	}
	logger.FromContext(r.Context()).Info("Purchase recorded", "itemID", itemID, "quantity", purchase.Quantity, "purchaseID", purchase.ID)

	h.financeService.InvalidateCache()
	utils.SendJSON(w, purchase, http.StatusCreated)
}

func (h *InventoryHandler) HandleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := strconv.ParseInt(chi.URLParam(r, "purchaseID"), 10, 64)
	if err != nil || purchaseID <= 0 {
		sendJSONError(w, "Invalid purchase ID", http.StatusBadRequest)
		return
	}

	if err := model.DeletePurchase(database.DB, purchaseID); err != nil {
		if errors.Is(err, model.ErrPurchaseNotFound) {
			sendJSONError(w, "Purchase not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to delete purchase", "purchaseID", purchaseID, "error", err)
		sendJSONError(w, "Failed to delete purchase", http.StatusInternalServerError)
		return
	}

	h.financeService.InvalidateCache()
	w.WriteHeader(http.StatusNoContent)
}
