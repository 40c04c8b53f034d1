package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/username/hermes/backend/src/config"
	"github.com/username/hermes/backend/src/database"
	"github.com/username/hermes/backend/src/handlers"
	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/parsers/mercadolivre"
	"github.com/username/hermes/backend/src/processors"
	"github.com/username/hermes/backend/src/security"
	"github.com/username/hermes/backend/src/services"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(allowed []string) func(http.Handler) http.Handler {
	allowedOrigins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		allowedOrigins[strings.TrimRight(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowedOrigins[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Requested-With, Cookie, If-None-Match")
				w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token, ETag, Content-Disposition, X-Request-ID")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// buildSources picks the sales source and the ordered list of release report sources.
func buildSources(cfg *config.AppConfig) (services.SalesSource, []services.ReleaseSource, services.ItemCatalog) {
	releaseSources := []services.ReleaseSource{services.StoredReleaseSource{DB: database.DB}}

	var backend *services.BackendClient
	if cfg.BackendBaseURL != "" {
		var err error
		backend, err = services.NewBackendClient(cfg.BackendBaseURL, cfg.BackendAuthCookie, cfg.MLRequestTimeout)
		if err != nil {
			logger.L.Error("Backend client disabled", "error", err)
		} else {
			releaseSources = append(releaseSources, backend)
		}
	}

	if cfg.SalesSource == "backend" {
		if backend == nil {
			logger.L.Error("SALES_SOURCE=backend requires a valid BACKEND_BASE_URL")
			os.Exit(1)
		}
		logger.L.Info("Using the Hermes backend as sales source", "baseURL", cfg.BackendBaseURL)
		return backend, releaseSources, nil
	}

	if cfg.MLRefreshToken == "" || cfg.MLSellerID == "" {
		logger.L.Warn("ML_REFRESH_TOKEN or ML_SELLER_ID not set; marketplace requests will fail")
	}
	ml := services.NewMercadoLivreClient(services.MercadoLivreConfig{
		BaseURL:        cfg.MLAPIBaseURL,
		TokenURL:       cfg.MLTokenURL,
		ClientID:       cfg.MLClientID,
		ClientSecret:   cfg.MLClientSecret,
		RefreshToken:   cfg.MLRefreshToken,
		SellerID:       cfg.MLSellerID,
		RequestsPerSec: cfg.MLRequestsPerSec,
		Timeout:        cfg.MLRequestTimeout,
	})
	logger.L.Info("Using the Mercado Livre API as sales source", "baseURL", cfg.MLAPIBaseURL, "sellerID", cfg.MLSellerID)
	return ml, releaseSources, ml
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Hermes backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	if err := handlers.EnsureAdminUser(database.DB, config.Cfg.AdminEmail, config.Cfg.AdminPassword); err != nil {
		logger.L.Error("Failed to seed admin user", "error", err)
		os.Exit(1)
	}

	loc := config.Cfg.Location()
	sales, releaseSources, catalog := buildSources(config.Cfg)

	reportCache := cache.New(config.Cfg.ReportCacheExpiration, services.CacheCleanupInterval)

	financeService := services.NewFinanceService(
		database.DB,
		sales,
		releaseSources,
		catalog,
		processors.NewSettlementProcessor(config.Cfg.EstimatedNetRatio),
		processors.NewReleaseProcessor(),
		processors.NewItemJoiner(config.Cfg.TaxRate),
		mercadolivre.NewReleaseParser(loc),
		reportCache,
		config.Cfg.ReportCacheExpiration,
	)
	exportService := services.NewExportService()
	authService := security.NewAuthService(config.Cfg.JWTSecret, config.Cfg.AccessTokenExpiry)
	mfaService := services.NewMFAService("Hermes")

	userHandler := handlers.NewUserHandler(authService, mfaService)
	csrf := handlers.NewCSRF(config.Cfg.CSRFAuthKey)
	financeHandler := handlers.NewFinanceHandler(financeService, exportService, loc)
	inventoryHandler := handlers.NewInventoryHandler(financeService, loc)
	advertisingHandler := handlers.NewAdvertisingHandler(financeService, loc)
	uploadHandler := handlers.NewUploadHandler(financeService, loc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	refresher := services.NewReportRefresher(financeService, config.Cfg.ReportRefreshInterval, loc)
	go refresher.Run(ctx)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS(config.Cfg.AllowedOrigins))
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Hermes backend is running"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/csrf", csrf.GetCSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(csrf.Middleware)
			r.Post("/auth/login", userHandler.LoginUserHandler)
			r.Post("/auth/refresh", userHandler.RefreshTokenHandler)
			r.With(userHandler.AuthMiddleware).Post("/auth/logout", userHandler.LogoutUserHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(csrf.Middleware)
			r.Use(userHandler.AuthMiddleware)

			r.Get("/auth/me", userHandler.HandleGetMe)
			r.Post("/auth/password", userHandler.ChangePasswordHandler)

			r.Get("/finance/report", financeHandler.HandleGetReport)
			r.Get("/finance/items", financeHandler.HandleGetItems)
			r.Get("/finance/items/export", financeHandler.HandleExportItems)
			r.Get("/finance/releases", financeHandler.HandleGetReleases)
			r.Post("/finance/releases/upload", uploadHandler.HandleReleaseUpload)
			r.Post("/finance/cache/clear", financeHandler.HandleClearCache)

			r.Get("/inventory", inventoryHandler.HandleListInventory)
			r.Post("/inventory", inventoryHandler.HandleUpsertItem)
			r.Post("/inventory/{itemID}/purchases", inventoryHandler.HandleAddPurchase)
			r.Delete("/inventory/purchases/{purchaseID}", inventoryHandler.HandleDeletePurchase)

			r.Get("/advertising", advertisingHandler.HandleListAdvertising)
			r.Post("/advertising", advertisingHandler.HandleUpsertAdvertising)
			r.Post("/advertising/import", uploadHandler.HandleAdvertisingImport)

			r.Group(func(r chi.Router) {
				r.Use(userHandler.AdminMiddleware)
				r.Get("/admin/mfa/setup", userHandler.HandleSetupMFA)
				r.Post("/admin/mfa/enable", userHandler.HandleEnableMFA)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "Not found"})
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.L.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("Graceful shutdown failed", "error", err)
		}
	}()

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
	logger.L.Info("Server stopped")
}
