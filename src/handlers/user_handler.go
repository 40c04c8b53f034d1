// backend/src/handlers/user_handler.go

package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/username/hermes/backend/src/database"
	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/model"
	"github.com/username/hermes/backend/src/security"
	"github.com/username/hermes/backend/src/services"
	"github.com/username/hermes/backend/src/utils"
)

type contextKey string

const userIDContextKey contextKey = "userID"

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

type UserHandler struct {
	authService *security.AuthService
	mfaService  *services.MFAService
}

func NewUserHandler(authService *security.AuthService, mfaService *services.MFAService) *UserHandler {
	return &UserHandler{
		authService: authService,
		mfaService:  mfaService,
	}
}

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	utils.SendJSONError(w, message, statusCode)
}

func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

// EnsureAdminUser creates the configured admin when the users table is empty.
func EnsureAdminUser(db *sql.DB, email, password string) error {
	count, err := model.CountUsers(db)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		logger.L.Warn("No users exist and ADMIN_EMAIL/ADMIN_PASSWORD are not set; nobody can log in")
		return nil
	}
	if !emailRegex.MatchString(email) {
		return errors.New("ADMIN_EMAIL is not a valid email address")
	}

	user := &model.User{
		Username: strings.Split(email, "@")[0],
		Email:    email,
		IsAdmin:  true,
	}
	if err := user.HashPassword(password); err != nil {
		return err
	}
	if err := user.CreateUser(db); err != nil {
		return err
	}
	logger.L.Info("Seeded admin user", "userID", user.ID, "email", email)
	return nil
}

func (h *UserHandler) AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserIDFromContext(r.Context())
		if !ok {
			sendJSONError(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		user, err := model.GetUserByID(database.DB, userID)
		if err != nil {
			sendJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		if !user.IsAdmin {
			logger.FromContext(r.Context()).Warn("Non-admin user attempted to access admin route", "path", r.URL.Path)
			sendJSONError(w, "Forbidden: Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *UserHandler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	utils.SendJSON(w, user, http.StatusOK)
}

// HandleSetupMFA stores a fresh TOTP secret for the admin without enabling it.
func (h *UserHandler) HandleSetupMFA(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if user.MfaEnabled {
		sendJSONError(w, "MFA is already enabled", http.StatusConflict)
		return
	}

	setup, err := h.mfaService.GenerateSetup(user.Email)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to generate MFA secret", "error", err)
		sendJSONError(w, "Failed to generate MFA", http.StatusInternalServerError)
		return
	}
	if err := user.UpdateMfaSecret(database.DB, setup.Secret); err != nil {
		sendJSONError(w, "Failed to save MFA secret", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, setup, http.StatusOK)
}

func (h *UserHandler) HandleEnableMFA(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if user.MfaSecret == "" {
		sendJSONError(w, "Run MFA setup first", http.StatusBadRequest)
		return
	}
	if !h.mfaService.ValidateCode(user.MfaSecret, req.Code) {
		sendJSONError(w, "Código inválido", http.StatusUnauthorized)
		return
	}

	if err := user.UpdateMfaEnabled(database.DB, true); err != nil {
		sendJSONError(w, "Failed to enable MFA", http.StatusInternalServerError)
		return
	}
	logger.FromContext(r.Context()).Info("MFA enabled")
	utils.SendJSON(w, map[string]string{"message": "MFA ativado com sucesso"}, http.StatusOK)
}
