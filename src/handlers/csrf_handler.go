package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/utils"
)

const (
	csrfCookieName = "hermes_csrf"
	csrfHeaderName = "X-CSRF-Token"
)

// CSRF implements the double-submit cookie pattern. Tokens are a random nonce
// signed with the configured key, so a cookie planted by a sibling subdomain
// without the key is rejected.
type CSRF struct {
	key []byte
}

func NewCSRF(key []byte) *CSRF {
	return &CSRF{key: key}
}

func (c *CSRF) sign(nonce string) string {
	mac := hmac.New(sha256.New, c.key)
	mac.Write([]byte(nonce))
	return nonce + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (c *CSRF) verify(token string) bool {
	nonce, _, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return false
	}
	return hmac.Equal([]byte(c.sign(nonce)), []byte(token))
}

func (c *CSRF) GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logger.FromContext(r.Context()).Error("Error generating random bytes for CSRF token", "error", err)
		utils.SendJSONError(w, "Failed to generate CSRF token", http.StatusInternalServerError)
		return
	}
	token := c.sign(base64.RawURLEncoding.EncodeToString(b))

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		MaxAge:   3600,
	})
	w.Header().Set(csrfHeaderName, token)
	utils.SendJSON(w, map[string]string{"csrfToken": token}, http.StatusOK)
}

func (c *CSRF) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		headerToken := r.Header.Get(csrfHeaderName)
		cookie, errCookie := r.Cookie(csrfCookieName)
		if headerToken != "" && errCookie == nil &&
			subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookie.Value)) == 1 &&
			c.verify(headerToken) {
			next.ServeHTTP(w, r)
			return
		}

		logger.FromContext(r.Context()).Warn("CSRF Validation Failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Bool("headerTokenExists", headerToken != ""),
			slog.Bool("cookieExists", errCookie == nil),
			slog.String("origin", r.Header.Get("Origin")),
		)
		utils.SendJSONError(w, "CSRF token validation failed", http.StatusForbidden)
	})
}
