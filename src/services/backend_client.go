// backend/src/services/backend_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/models"
)

const maxReleaseReportBytes = 32 << 20

// BackendClient talks to the legacy Hermes backend, which proxies the
// marketplace and serves the latest releases.txt.
type BackendClient struct {
	baseURL    *url.URL
	httpClient http.Client
}

// NewBackendClient creates the client. authCookie, when set as "name=value",
// is placed in the cookie jar for the backend host.
func NewBackendClient(baseURL, authCookie string, timeout time.Duration) (*BackendClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend base URL %q: %w", baseURL, err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}
	if jar != nil && authCookie != "" {
		if name, value, ok := strings.Cut(authCookie, "="); ok {
			jar.SetCookies(u, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
		}
	}

	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &BackendClient{
		baseURL:    u,
		httpClient: http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

func (c *BackendClient) Name() string { return "backend" }

func (c *BackendClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	// ngrok interstitial page
	req.Header.Set("ngrok-skip-browser-warning", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call backend %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReleaseReportBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read backend %s response: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: backend %s returned %d", ErrUpstreamStatus, path, resp.StatusCode)
	}
	return body, nil
}

// decodeList accepts either a bare JSON array or an object wrapping it in "results".
func decodeList(body []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return err
		}
		if len(wrapper.Results) == 0 {
			return nil
		}
		trimmed = wrapper.Results
	}
	return json.Unmarshal(trimmed, out)
}

func (c *BackendClient) FetchOrders(ctx context.Context, period models.Period) ([]models.RawOrder, error) {
	q := url.Values{}
	q.Set("start", period.Start.Format(models.PeriodDateLayout))
	q.Set("end", period.End.Format(models.PeriodDateLayout))

	body, err := c.get(ctx, "/vendas_adm", q)
	if err != nil {
		return nil, err
	}
	var orders []models.RawOrder
	if err := decodeList(body, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode backend orders: %w", err)
	}
	return orders, nil
}

// FetchOrderNets returns the backend's exact nets restricted to the given orders.
func (c *BackendClient) FetchOrderNets(ctx context.Context, orders []models.RawOrder) (map[string]float64, error) {
	body, err := c.get(ctx, "/pagamentos_adm", nil)
	if err != nil {
		return nil, err
	}
	var rows []models.OrderNet
	if err := decodeList(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode backend payments: %w", err)
	}

	wanted := make(map[string]bool, len(orders))
	for _, o := range orders {
		wanted[o.ID.String()] = true
	}
	nets := make(map[string]float64, len(rows))
	for _, r := range rows {
		id := r.OrderID.String()
		if wanted[id] {
			nets[id] = r.NetReceivedAmount
		}
	}
	return nets, nil
}

func (c *BackendClient) FetchReleaseReport(ctx context.Context) ([]byte, error) {
	return c.get(ctx, "/releases.txt", nil)
}
