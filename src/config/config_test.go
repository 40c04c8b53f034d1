package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CSRF_AUTH_KEY", "csrf-key")
	t.Setenv("SALES_SOURCE", "Backend")
	t.Setenv("TAX_RATE", "not-a-number")
	t.Setenv("ESTIMATED_NET_RATIO", "0.75")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("REPORT_REFRESH_INTERVAL", "30s")

	LoadConfig()
	require.NotNil(t, Cfg)

	assert.Equal(t, "backend", Cfg.SalesSource)
	assert.Equal(t, 0.10, Cfg.TaxRate)
	assert.Equal(t, 0.75, Cfg.EstimatedNetRatio)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, Cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Second, Cfg.ReportRefreshInterval)
	assert.Equal(t, 15*time.Minute, Cfg.ReportCacheExpiration)
	assert.Equal(t, []byte("csrf-key"), Cfg.CSRFAuthKey)
}

func TestLocation(t *testing.T) {
	c := &AppConfig{ReportTimezone: "America/Sao_Paulo"}
	assert.Equal(t, "America/Sao_Paulo", c.Location().String())

	c.ReportTimezone = "Nowhere/Invalid"
	assert.Equal(t, time.UTC, c.Location())
}
