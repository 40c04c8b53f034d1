package services

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/hermes/backend/src/logger"
	"github.com/username/hermes/backend/src/models"
)

func newMercadoLivreTestServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var paymentCalls atomic.Int32
	mux := http.NewServeMux()

	mux.HandleFunc("/orders/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("seller"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("offset") {
		case "0":
			fmt.Fprint(w, `{"results":[{"id":2000001,"payments":[{"id":91,"transaction_amount":100,"status":"approved"}]},
				{"id":2000002,"payments":[{"id":92,"transaction_amount":50,"status":"rejected"}]}],
				"paging":{"total":3,"offset":0,"limit":50}}`)
		case "2":
			fmt.Fprint(w, `{"results":[{"id":"2000003","payments":[{"id":93,"transaction_amount":10,"status":"approved"}]}],
				"paging":{"total":3,"offset":2,"limit":50}}`)
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	})
	mux.HandleFunc("/v1/payments/", func(w http.ResponseWriter, r *http.Request) {
		paymentCalls.Add(1)
		id := strings.TrimPrefix(r.URL.Path, "/v1/payments/")
		if id == "93" {
			http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"id":%s,"transaction_details":{"net_received_amount":81.5}}`, id)
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		var parts []string
		for _, id := range ids {
			parts = append(parts, fmt.Sprintf(`{"code":200,"body":{"id":%q,"title":"Title %s"}}`, id, id))
		}
		fmt.Fprintf(w, "[%s]", strings.Join(parts, ","))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &paymentCalls
}

func TestMercadoLivreClient_FetchOrdersPaginates(t *testing.T) {
	srv, _ := newMercadoLivreTestServer(t)
	client := NewMercadoLivreClient(MercadoLivreConfig{BaseURL: srv.URL, SellerID: "42", RequestsPerSec: 100})

	orders, err := client.FetchOrders(context.Background(), januaryPeriod())
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "2000001", orders[0].ID.String())
	assert.Equal(t, "2000003", orders[2].ID.String())
}

func TestMercadoLivreClient_FetchOrdersWarnsWhenTruncated(t *testing.T) {
	var next atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/orders/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		a, b := next.Add(1), next.Add(1)
		fmt.Fprintf(w, `{"results":[{"id":%d},{"id":%d}],"paging":{"total":9,"offset":%s,"limit":2}}`,
			a, b, r.URL.Query().Get("offset"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var buf bytes.Buffer
	previous := logger.L
	logger.InitLoggerWithWriter("warn", &buf)
	t.Cleanup(func() { logger.L = previous })

	truncated := upstreamFailures.WithLabelValues("orders_truncated")
	before := testutil.ToFloat64(truncated)

	client := NewMercadoLivreClient(MercadoLivreConfig{BaseURL: srv.URL, SellerID: "42", RequestsPerSec: 100})
	client.maxOrdersOffset = 4

	orders, err := client.FetchOrders(context.Background(), januaryPeriod())
	require.NoError(t, err)
	assert.Len(t, orders, 4)
	assert.Equal(t, before+1, testutil.ToFloat64(truncated))
	assert.Contains(t, buf.String(), "Order search truncated")
	assert.Contains(t, buf.String(), `"total":9`)
	assert.Contains(t, buf.String(), `"fetched":4`)
}

func TestMercadoLivreClient_FetchOrderNetsPartialFailure(t *testing.T) {
	srv, paymentCalls := newMercadoLivreTestServer(t)
	client := NewMercadoLivreClient(MercadoLivreConfig{BaseURL: srv.URL, SellerID: "42", RequestsPerSec: 100})

	orders, err := client.FetchOrders(context.Background(), januaryPeriod())
	require.NoError(t, err)

	nets, err := client.FetchOrderNets(context.Background(), orders)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamStatus)
	assert.Contains(t, err.Error(), "1 of 3")

	assert.Equal(t, map[string]float64{"2000001": 81.5}, nets)
	// The rejected payment is never looked up.
	assert.Equal(t, int32(2), paymentCalls.Load())
}

func TestMercadoLivreClient_FetchItemTitlesBatches(t *testing.T) {
	srv, _ := newMercadoLivreTestServer(t)
	client := NewMercadoLivreClient(MercadoLivreConfig{BaseURL: srv.URL, RequestsPerSec: 100})

	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("MLB%d", i)
	}
	titles, err := client.FetchItemTitles(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, titles, 25)
	assert.Equal(t, "Title MLB24", titles["MLB24"])
}

func TestMercadoLivreClient_UsesRefreshToken(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "TG-refresh", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"APP_USR-abc","token_type":"bearer","expires_in":21600}`)
	})
	mux.HandleFunc("/items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer APP_USR-abc", r.Header.Get("Authorization"))
		fmt.Fprint(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewMercadoLivreClient(MercadoLivreConfig{
		BaseURL:      srv.URL,
		TokenURL:     srv.URL + "/oauth/token",
		ClientID:     "app",
		ClientSecret: "secret",
		RefreshToken: "TG-refresh",
	})
	_, err := client.FetchItemTitles(context.Background(), []string{"MLB1"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestBackendClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/vendas_adm", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("start"))
		assert.Equal(t, "true", r.Header.Get("ngrok-skip-browser-warning"))
		cookie, err := r.Cookie("session")
		if assert.NoError(t, err) {
			assert.Equal(t, "abc", cookie.Value)
		}
		fmt.Fprint(w, `[{"id":"1","payments":[]},{"id":2,"payments":[]}]`)
	})
	mux.HandleFunc("/pagamentos_adm", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"order_id":1,"net_received_amount":10.5},{"order_id":"9","net_received_amount":3}]}`)
	})
	mux.HandleFunc("/releases.txt", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewBackendClient(srv.URL, "session=abc", time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	orders, err := client.FetchOrders(ctx, januaryPeriod())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "2", orders[1].ID.String())

	nets, err := client.FetchOrderNets(ctx, orders)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"1": 10.5}, nets)

	_, err = client.FetchReleaseReport(ctx)
	assert.ErrorIs(t, err, ErrUpstreamStatus)
}

func TestDecodeList(t *testing.T) {
	var orders []models.RawOrder
	require.NoError(t, decodeList([]byte(`{"results":null}`), &orders))
	assert.Empty(t, orders)

	require.NoError(t, decodeList([]byte(` [{"id":7}] `), &orders))
	require.Len(t, orders, 1)
}
