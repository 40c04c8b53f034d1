// backend/src/services/mercadolivre_client.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/models"
	"github.com/username/hermes/backend/src/processors"
)

const (
	mlOrdersPageSize   = 50
	mlMaxOrdersOffset  = 10000 // search API refuses offsets past this
	mlItemsBatchSize   = 20
	mlPaymentWorkers   = 4
	mlDateFilterLayout = "2006-01-02T15:04:05.000-07:00"
)

// --- API Response Structs ---

type mlOrdersSearchResponse struct {
	Results []models.RawOrder `json:"results"`
	Paging  struct {
		Total  int `json:"total"`
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
	} `json:"paging"`
}

type mlPaymentResponse struct {
	ID                 models.FlexibleID `json:"id"`
	TransactionDetails struct {
		NetReceivedAmount float64 `json:"net_received_amount"`
	} `json:"transaction_details"`
}

type mlItemsMultiGetEntry struct {
	Code int `json:"code"`
	Body struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"body"`
}

// MercadoLivreConfig holds what the client needs to reach the marketplace API.
type MercadoLivreConfig struct {
	BaseURL        string
	TokenURL       string
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	SellerID       string
	RequestsPerSec int
	Timeout        time.Duration
}

// MercadoLivreClient reads orders, payments and items from the marketplace API.
type MercadoLivreClient struct {
	baseURL         string
	sellerID        string
	httpClient      *http.Client
	limiter         *rate.Limiter
	maxOrdersOffset int
}

// NewMercadoLivreClient builds a client that authenticates with the seller's
// refresh token. Without a refresh token requests go out unauthenticated.
func NewMercadoLivreClient(cfg MercadoLivreConfig) *MercadoLivreClient {
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.RefreshToken != "" {
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		ts := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = cfg.Timeout
	}

	return &MercadoLivreClient{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		sellerID:        cfg.SellerID,
		httpClient:      httpClient,
		limiter:         rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.RequestsPerSec),
		maxOrdersOffset: mlMaxOrdersOffset,
	}
}

func (c *MercadoLivreClient) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", ErrUpstreamStatus, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// FetchOrders pages through the seller's orders created inside the period.
// The search API stops paging at a fixed offset; orders beyond it are logged
// as truncated and left out.
func (c *MercadoLivreClient) FetchOrders(ctx context.Context, period models.Period) ([]models.RawOrder, error) {
	var orders []models.RawOrder
	total := 0
	for offset := 0; offset < c.maxOrdersOffset; {
		q := url.Values{}
		q.Set("seller", c.sellerID)
		q.Set("order.date_created.from", period.Start.Format(mlDateFilterLayout))
		q.Set("order.date_created.to", period.End.Format(mlDateFilterLayout))
		q.Set("sort", "date_asc")
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(mlOrdersPageSize))

		var page mlOrdersSearchResponse
		if err := c.getJSON(ctx, "/orders/search", q, &page); err != nil {
			return nil, err
		}
		orders = append(orders, page.Results...)
		total = page.Paging.Total

		offset += len(page.Results)
		if len(page.Results) == 0 || offset >= page.Paging.Total {
			break
		}
	}
	if total > len(orders) && len(orders) >= c.maxOrdersOffset {
		upstreamFailures.WithLabelValues("orders_truncated").Inc()
		logger.L.Warn("Order search truncated at the API offset limit",
			"period", period.Key(),
			"total", total,
			"fetched", len(orders),
			"missing", total-len(orders))
	}
	logger.L.Debug("Fetched orders from Mercado Livre", "count", len(orders), "period", period.Key())
	return orders, nil
}

// FetchOrderNets sums net_received_amount over every valid payment of each
// order. Orders whose payments could not all be fetched are left out.
func (c *MercadoLivreClient) FetchOrderNets(ctx context.Context, orders []models.RawOrder) (map[string]float64, error) {
	var (
		mu       sync.Mutex
		nets     = make(map[string]float64, len(orders))
		failed   int
		firstErr error
	)

	g := new(errgroup.Group)
	g.SetLimit(mlPaymentWorkers)
	for _, order := range orders {
		g.Go(func() error {
			net, ok, err := c.orderNet(ctx, order)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			if ok {
				nets[order.ID.String()] = net
			}
			return nil
		})
	}
	g.Wait()

	if failed > 0 {
		return nets, fmt.Errorf("%d of %d order net lookups failed: %w", failed, len(orders), firstErr)
	}
	return nets, nil
}

func (c *MercadoLivreClient) orderNet(ctx context.Context, order models.RawOrder) (float64, bool, error) {
	var total float64
	found := false
	for _, p := range order.Payments {
		if !processors.IsValidPayment(p) || p.ID.String() == "" {
			continue
		}
		var payment mlPaymentResponse
		if err := c.getJSON(ctx, "/v1/payments/"+url.PathEscape(p.ID.String()), nil, &payment); err != nil {
			return 0, false, err
		}
		total += payment.TransactionDetails.NetReceivedAmount
		found = true
	}
	return total, found, nil
}

// FetchItemTitles resolves titles with the items multi-get endpoint.
func (c *MercadoLivreClient) FetchItemTitles(ctx context.Context, itemIDs []string) (map[string]string, error) {
	titles := make(map[string]string, len(itemIDs))
	for start := 0; start < len(itemIDs); start += mlItemsBatchSize {
		end := min(start+mlItemsBatchSize, len(itemIDs))

		q := url.Values{}
		q.Set("ids", strings.Join(itemIDs[start:end], ","))
		q.Set("attributes", "id,title")

		var entries []mlItemsMultiGetEntry
		if err := c.getJSON(ctx, "/items", q, &entries); err != nil {
			return titles, err
		}
		for _, e := range entries {
			if e.Code == http.StatusOK && e.Body.ID != "" {
				titles[e.Body.ID] = e.Body.Title
			}
		}
	}
	return titles, nil
}
