// backend/src/handlers/upload_handler.go
package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/username/hermes/backend/src/config"
	"github.com/username/hermes/backend/src/database"
	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/model"
	"github.com/username/hermes/backend/src/parsers/mercadolivre"
	"github.com/username/hermes/backend/src/security/validation"
	"github.com/username/hermes/backend/src/services"
	"github.com/username/hermes/backend/src/utils"
)

type UploadHandler struct {
	financeService services.FinanceService
	loc            *time.Location
}

func NewUploadHandler(financeService services.FinanceService, loc *time.Location) *UploadHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &UploadHandler{financeService: financeService, loc: loc}
}

// readUploadedFile parses the multipart form and returns the "file" part.
func readUploadedFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	ctxLogger := logger.FromContext(r.Context())
	limit := config.Cfg.MaxUploadSizeBytes

	r.Body = http.MaxBytesReader(w, r.Body, limit+1024*1024)
	if err := r.ParseMultipartForm(limit); err != nil {
		ctxLogger.Warn("Failed to parse multipart form or request too large", "error", err, "limit", limit)
		sendJSONError(w, fmt.Sprintf("Falha ao processar ou o ficheiro é demasiado grande (max %d MB)", limit/(1024*1024)), http.StatusBadRequest)
		return nil, nil, false
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		ctxLogger.Warn("Failed to retrieve file from request", "error", err)
		sendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return nil, nil, false
	}
	if fileHeader.Size > limit {
		file.Close()
		ctxLogger.Warn("Uploaded file too large", "fileSize", fileHeader.Size, "limit", limit)
		sendJSONError(w, fmt.Sprintf("Ficheiro demasiado grande, max %d MB", limit/(1024*1024)), http.StatusBadRequest)
		return nil, nil, false
	}
	return file, fileHeader, true
}

// HandleReleaseUpload stores a release report exported from the seller panel.
func (h *UploadHandler) HandleReleaseUpload(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	file, fileHeader, ok := readUploadedFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		ctxLogger.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctxLogger.Info("Release report content validated", "filename", fileHeader.Filename, "clientType", clientContentType, "detectedType", detectedContentType)

	filename := validation.StripUnprintable(filepath.Base(fileHeader.Filename))
	report, err := h.financeService.UploadReleaseReport(r.Context(), file, filename, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	utils.SendJSON(w, report, http.StatusCreated)
}

// HandleAdvertisingImport reads daily ad spend from an XLSX export.
func (h *UploadHandler) HandleAdvertisingImport(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	file, fileHeader, ok := readUploadedFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	if err := validation.ValidateSpreadsheetUpload(file, fileHeader.Filename); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := mercadolivre.ParseAdvertisingXLSX(file, h.loc)
	if err != nil {
		if errors.Is(err, mercadolivre.ErrMalformedAdvertising) {
			sendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		ctxLogger.Error("Failed to read advertising spreadsheet", "error", err)
		sendJSONError(w, "Failed to read spreadsheet", http.StatusInternalServerError)
		return
	}
	for _, row := range result.Rows {
		if err := validation.ValidateItemID(row.ItemID); err != nil {
			sendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
	}

	if err := model.UpsertAdvertisingDaily(database.DB, result.Rows); err != nil {
		ctxLogger.Error("Failed to store imported advertising", "error", err)
		sendJSONError(w, "Failed to store advertising", http.StatusInternalServerError)
		return
	}
	ctxLogger.Info("Advertising imported", "filename", fileHeader.Filename, "rows", len(result.Rows), "skipped", result.Skipped)

	h.financeService.InvalidateCache()
	utils.SendJSON(w, map[string]int{"stored": len(result.Rows), "skipped": result.Skipped}, http.StatusOK)
}
