package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/username/hermes/backend/src/database"
	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/model"
)

var passwordRegex = regexp.MustCompile(`^.{8,128}$`)

type ChangePasswordRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

// ChangePasswordHandler updates the caller's password and signs out their other sessions.
func (h *UserHandler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.NewPassword != req.ConfirmNewPassword {
		sendJSONError(w, "New passwords do not match", http.StatusBadRequest)
		return
	}
	if !passwordRegex.MatchString(req.NewPassword) {
		sendJSONError(w, "New password must be between 8 and 128 characters long", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		ctxLogger.Error("Failed to get user for password change", "error", err)
		sendJSONError(w, "Failed to retrieve user information", http.StatusInternalServerError)
		return
	}

	if err := user.CheckPassword(req.CurrentPassword); err != nil {
		ctxLogger.Warn("Current password mismatch for password change")
		sendJSONError(w, "Incorrect current password", http.StatusForbidden)
		return
	}

	hashedNewPassword, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		ctxLogger.Error("Failed to hash new password", "error", err)
		sendJSONError(w, "Failed to process new password", http.StatusInternalServerError)
		return
	}

	if err := user.UpdatePassword(database.DB, hashedNewPassword); err != nil {
		ctxLogger.Error("Failed to update password in DB", "error", err)
		sendJSONError(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	revoked, err := model.DeleteOtherSessions(database.DB, userID, bearerToken(r))
	if err != nil {
		ctxLogger.Error("Failed to revoke other sessions after password change", "error", err)
	}

	ctxLogger.Info("Password changed successfully", "revokedSessions", revoked)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Password changed successfully."})
}
