package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/username/hermes/backend/src/config"
	"github.com/username/hermes/backend/src/database"
	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/model"
	"github.com/username/hermes/backend/src/security/validation"
)

const refreshTokenCookie = "hermes_refresh"

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return authHeader
}

func setRefreshCookie(w http.ResponseWriter, r *http.Request, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    token,
		Path:     "/api/auth",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// issueSession creates a session row for a new access/refresh token pair.
func (h *UserHandler) issueSession(w http.ResponseWriter, r *http.Request, userID int64) (string, string, bool) {
	ctxLogger := logger.FromContext(r.Context())

	accessToken, err := h.authService.GenerateToken(userID)
	if err != nil {
		ctxLogger.Error("Failed to generate access token", "userID", userID, "error", err)
		sendJSONError(w, "Failed to generate access token", http.StatusInternalServerError)
		return "", "", false
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		ctxLogger.Error("Failed to generate refresh token", "userID", userID, "error", err)
		sendJSONError(w, "Failed to generate refresh token", http.StatusInternalServerError)
		return "", "", false
	}

	session := &model.Session{
		UserID:       userID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     clientIP(r),
		ExpiresAt:    time.Now().Add(config.Cfg.RefreshTokenExpiry),
	}
	if err := model.CreateSession(database.DB, session); err != nil {
		ctxLogger.Error("Failed to create session", "userID", userID, "error", err)
		sendJSONError(w, "Failed to create session", http.StatusInternalServerError)
		return "", "", false
	}

	setRefreshCookie(w, r, refreshToken, int(config.Cfg.RefreshTokenExpiry.Seconds()))
	return accessToken, refreshToken, true
}

func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		MfaCode  string `json:"mfa_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		ctxLogger.Warn("Invalid request body for login", "error", err)
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	credentials.Email = strings.ToLower(validation.SanitizeText(strings.TrimSpace(credentials.Email)))

	user, err := model.GetUserByEmail(database.DB, credentials.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			ctxLogger.Warn("Login failed: user not found", "email", credentials.Email)
		} else {
			ctxLogger.Error("User lookup by email failed for login", "error", err)
		}
		sendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if err := user.CheckPassword(credentials.Password); err != nil {
		ctxLogger.Warn("Password check failed for login", "userID", user.ID)
		sendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if user.MfaEnabled {
		if strings.TrimSpace(credentials.MfaCode) == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "Código MFA necessário",
				"code":  "MFA_REQUIRED",
			})
			return
		}
		if !h.mfaService.ValidateCode(user.MfaSecret, credentials.MfaCode) {
			ctxLogger.Warn("Failed MFA attempt on login", "userID", user.ID)
			sendJSONError(w, "Código MFA inválido", http.StatusUnauthorized)
			return
		}
	}

	if err := user.RecordLogin(database.DB, clientIP(r)); err != nil {
		ctxLogger.Error("Failed to record login", "userID", user.ID, "error", err)
	}

	accessToken, refreshToken, ok := h.issueSession(w, r, user.ID)
	if !ok {
		return
	}
	ctxLogger.Info("User login successful", "userID", user.ID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user":          user,
	})
}

// RefreshTokenHandler rotates the session. The refresh token comes from the
// cookie or, for API clients, from the JSON body.
func (h *UserHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	token := ""
	if c, err := r.Cookie(refreshTokenCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&body)
		}
		token = body.RefreshToken
	}
	if token == "" {
		sendJSONError(w, "Refresh token is required", http.StatusBadRequest)
		return
	}

	oldSession, err := model.GetSessionByRefreshToken(database.DB, token)
	if err != nil {
		ctxLogger.Warn("Refresh token lookup failed or token invalid/expired", "error", err)
		sendJSONError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}
	if err := model.DeleteSessionByRefreshToken(database.DB, token); err != nil {
		ctxLogger.Error("Failed to delete old session during refresh", "userID", oldSession.UserID, "error", err)
	}

	accessToken, refreshToken, ok := h.issueSession(w, r, oldSession.UserID)
	if !ok {
		return
	}
	ctxLogger.Info("Token refreshed successfully", "userID", oldSession.UserID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

func (h *UserHandler) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	if tokenString := bearerToken(r); tokenString != "" {
		if err := model.DeleteSessionByToken(database.DB, tokenString); err != nil {
			ctxLogger.Warn("Failed to delete session on logout", "error", err)
		} else {
			ctxLogger.Info("Session invalidated on logout")
		}
	}
	setRefreshCookie(w, r, "", -1)
	w.WriteHeader(http.StatusNoContent)
}
