package utils

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.005, 1.01},
		{2.675, 2.68},
		{-5.455, -5.46},
		{10, 10},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundMoney(tt.in))
	}
}

func TestSumMoney(t *testing.T) {
	values := make([]float64, 10)
	for i := range values {
		values[i] = 0.1
	}
	assert.Equal(t, 1.0, SumMoney(values...))
	assert.Equal(t, 3.0, SumMoney(1, math.NaN(), 2))
}

func TestParsePeriod(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	now := time.Date(2024, 3, 17, 15, 4, 5, 0, loc)

	t.Run("defaults to month to date", func(t *testing.T) {
		p, err := ParsePeriod("", "", now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, loc), p.Start)
		assert.Equal(t, 17, p.End.Day())
		assert.Equal(t, 23, p.End.Hour())
		assert.Equal(t, 59, p.End.Second())
	})

	t.Run("explicit range", func(t *testing.T) {
		p, err := ParsePeriod("2024-01-05", "2024-01-05", now)
		require.NoError(t, err)
		assert.True(t, p.Contains(time.Date(2024, 1, 5, 0, 0, 0, 0, loc)))
		assert.True(t, p.Contains(time.Date(2024, 1, 5, 23, 59, 59, 0, loc)))
		assert.False(t, p.Contains(time.Date(2024, 1, 6, 0, 0, 0, 0, loc)))
		assert.Equal(t, "2024-01-05_2024-01-05", p.Key())
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParsePeriod("05/01/2024", "", now)
		assert.True(t, errors.Is(err, ErrInvalidPeriod))

		_, err = ParsePeriod("2024-02-10", "2024-02-01", now)
		assert.True(t, errors.Is(err, ErrInvalidPeriod))
	})
}

func TestWriteJSONWithETag(t *testing.T) {
	data := map[string]int{"items": 3}

	rec := httptest.NewRecorder()
	WriteJSONWithETag(rec, httptest.NewRequest(http.MethodGet, "/", nil), data)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var body map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 3, body["items"])

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("If-None-Match", "\"other\", "+etag)
	rec = httptest.NewRecorder()
	WriteJSONWithETag(rec, req, data)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestSendJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	SendJSONError(rec, "boom", http.StatusBadGateway)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"boom"}`, rec.Body.String())
}
