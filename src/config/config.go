package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Security settings
	JWTSecret          string
	CSRFAuthKey        []byte
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	MaxUploadSizeBytes int64

	// Dashboard admin seeded on startup when the users table is empty
	AdminEmail    string
	AdminPassword string

	// Frontend URL and allowed CORS origins
	FrontendBaseURL string
	AllowedOrigins  []string

	// Sales source: "mercadolivre" or "backend"
	SalesSource string

	// Mercado Livre API
	MLAPIBaseURL      string
	MLTokenURL        string
	MLClientID        string
	MLClientSecret    string
	MLRefreshToken    string
	MLSellerID        string
	MLRequestsPerSec  int
	MLRequestTimeout  time.Duration
	ReportTimezone    string
	BackendBaseURL    string
	BackendAuthCookie string

	// Business constants
	EstimatedNetRatio float64
	TaxRate           float64

	// Report building
	ReportRefreshInterval time.Duration
	ReportCacheExpiration time.Duration
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		// Common when running from /backend
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getRequiredEnv("JWT_SECRET")
	csrfAuthKeyStr := getRequiredEnv("CSRF_AUTH_KEY")

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760") // 10MB default
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	frontendBaseURL := getEnv("APP_BASE_URL", "http://localhost:3000")

	salesSource := strings.ToLower(getEnv("SALES_SOURCE", "mercadolivre"))
	if salesSource != "mercadolivre" && salesSource != "backend" {
		log.Printf("WARNING: Unknown SALES_SOURCE '%s', using mercadolivre.", salesSource)
		salesSource = "mercadolivre"
	}

	Cfg = &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./hermes.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		JWTSecret:          jwtSecret,
		CSRFAuthKey:        []byte(csrfAuthKeyStr),
		AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 60*time.Minute),
		RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 168*time.Hour),
		MaxUploadSizeBytes: maxUploadSizeBytes,

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		FrontendBaseURL: frontendBaseURL,
		AllowedOrigins:  getList("ALLOWED_ORIGINS", frontendBaseURL),

		SalesSource: salesSource,

		MLAPIBaseURL:      getEnv("ML_API_BASE_URL", "https://api.mercadolibre.com"),
		MLTokenURL:        getEnv("ML_TOKEN_URL", "https://api.mercadolibre.com/oauth/token"),
		MLClientID:        getEnv("ML_CLIENT_ID", ""),
		MLClientSecret:    getEnv("ML_CLIENT_SECRET", ""),
		MLRefreshToken:    getEnv("ML_REFRESH_TOKEN", ""),
		MLSellerID:        getEnv("ML_SELLER_ID", ""),
		MLRequestsPerSec:  getEnvAsInt("ML_REQUESTS_PER_SECOND", 5),
		MLRequestTimeout:  getEnvAsDuration("ML_REQUEST_TIMEOUT", 20*time.Second),
		ReportTimezone:    getEnv("REPORT_TIMEZONE", "America/Sao_Paulo"),
		BackendBaseURL:    getEnv("BACKEND_BASE_URL", "http://localhost:5000"),
		BackendAuthCookie: getEnv("BACKEND_AUTH_COOKIE", ""),

		EstimatedNetRatio: getEnvAsFloat("ESTIMATED_NET_RATIO", 0.70),
		TaxRate:           getEnvAsFloat("TAX_RATE", 0.10),

		ReportRefreshInterval: getEnvAsDuration("REPORT_REFRESH_INTERVAL", 5*time.Minute),
		ReportCacheExpiration: getEnvAsDuration("REPORT_CACHE_EXPIRATION", 15*time.Minute),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, SalesSource=%s, FrontendURL=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.SalesSource, Cfg.FrontendBaseURL)
}

// Location resolves ReportTimezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		log.Printf("Invalid REPORT_TIMEZONE '%s', using UTC: %v", c.ReportTimezone, err)
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getRequiredEnv retrieves an environment variable or terminates the application if not set.
func getRequiredEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set or is empty. Application cannot start securely.", key)
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a fallback.
func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %g", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getList parses a comma-separated variable, dropping empty entries.
func getList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
