package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/maltedev/listing-toolkit/internal/config"
	"github.com/maltedev/listing-toolkit/internal/dedup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(keySet dedup.KeySet) http.Handler {
	pricing := config.PricingConfig{Multiplier: 2, Fallback: config.FallbackZero}
	return NewRouter(NewHandlers(pricing, keySet, 1<<20, slog.Default()), 0)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(nil), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	rec := do(t, newTestServer(nil), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "listing_price_fallbacks_total")
}

func TestNormalizePrices(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		expected PricesResponse
	}{
		{
			name:     "config multiplier",
			body:     `{"prices":["$15.74","","1.234,56"]}`,
			status:   http.StatusOK,
			expected: PricesResponse{Prices: []string{"31.48", "0.00", "2469.12"}, Multiplier: 2},
		},
		{
			name:     "request multiplier",
			body:     `{"prices":["$15.74 to $150.00"],"multiplier":200}`,
			status:   http.StatusOK,
			expected: PricesResponse{Prices: []string{"30000.00"}, Multiplier: 200},
		},
		{
			name:     "original fallback",
			body:     `{"prices":["call us"],"fallback":"original"}`,
			status:   http.StatusOK,
			expected: PricesResponse{Prices: []string{"call us"}, Multiplier: 2, Fallbacks: 1},
		},
		{
			name:   "negative multiplier",
			body:   `{"prices":["1"],"multiplier":-1}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "multiplier out of range",
			body:   `{"prices":["1"],"multiplier":1e400}`,
			status: http.StatusBadRequest,
		},
		{
			name:     "overflowing product falls back",
			body:     `{"prices":["9` + strings.Repeat("0", 307) + `"],"multiplier":200}`,
			status:   http.StatusOK,
			expected: PricesResponse{Prices: []string{"0.00"}, Multiplier: 200, Fallbacks: 1},
		},
		{
			name:   "unknown fallback",
			body:   `{"prices":["1"],"fallback":"guess"}`,
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid json",
			body:   `{"prices":`,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/prices", tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				return
			}

			var resp PricesResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.expected, resp)
		})
	}
}

func TestNormalizePrices_NonFiniteConfigMultiplier(t *testing.T) {
	pricing := config.PricingConfig{Multiplier: math.Inf(1), Fallback: config.FallbackZero}
	srv := NewRouter(NewHandlers(pricing, nil, 1<<20, slog.Default()), 0)

	rec := do(t, srv, http.MethodPost, "/api/v1/prices", `{"prices":["$1"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "finite")
}

func TestGenerateSlugs(t *testing.T) {
	t.Run("titles only", func(t *testing.T) {
		rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/slugs", `{"titles":["Fishing Reel","!!!"]}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp SlugsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"fishing-reel", ""}, resp.Slugs)
	})

	t.Run("id fallback", func(t *testing.T) {
		rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/slugs", `{"titles":["Fishing Reel","!!!"],"ids":["1","2"]}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp SlugsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{"fishing-reel", "product-2"}, resp.Slugs)
	})

	t.Run("mismatched ids", func(t *testing.T) {
		rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/slugs", `{"titles":["a"],"ids":["1","2"]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

const productsCSV = "id,Title\n1,Lamp\n2,Chair\n3,Lamp\n4,lamp!\n"

func TestDedup(t *testing.T) {
	t.Run("drop by column", func(t *testing.T) {
		rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/dedup?columns=Title", productsCSV)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		assert.Equal(t, "id,Title\n1,Lamp\n2,Chair\n4,lamp!\n", rec.Body.String())
		assert.Equal(t, "4", rec.Header().Get("X-Dedup-Total"))
		assert.Equal(t, "1", rec.Header().Get("X-Dedup-Internal"))
		assert.Equal(t, "1", rec.Header().Get("X-Dedup-Removed"))
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	})

	t.Run("append id by slug", func(t *testing.T) {
		rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/dedup?columns=B&id=A&key=slug&strategy=append-id", productsCSV)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		assert.Equal(t, "id,Title\n1,Lamp\n2,Chair\n3,Lamp - 3\n4,lamp! - 4\n", rec.Body.String())
		assert.Equal(t, "2", rec.Header().Get("X-Dedup-Fixes"))
		assert.Equal(t, "0", rec.Header().Get("X-Dedup-Removed"))
	})

	t.Run("external keys remembered across requests", func(t *testing.T) {
		keys := dedup.NewMemoryKeySet()
		srv := newTestServer(keys)

		first := do(t, srv, http.MethodPost, "/api/v1/dedup?columns=Title&external=true", "id,Title\n1,Lamp\n")
		require.Equal(t, http.StatusOK, first.Code)

		second := do(t, srv, http.MethodPost, "/api/v1/dedup?columns=Title&external=true", "id,Title\n9,Lamp\n8,Desk\n")
		require.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, "id,Title\n8,Desk\n", second.Body.String())
		assert.Equal(t, "1", second.Header().Get("X-Dedup-External"))

		ok, err := keys.Contains(context.Background(), "Desk")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("external disabled", func(t *testing.T) {
		rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/dedup?external=true", productsCSV)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing column", func(t *testing.T) {
		rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/dedup?columns=sku", productsCSV)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "sku")
	})

	t.Run("unknown strategy", func(t *testing.T) {
		rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/dedup?strategy=merge", productsCSV)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		rec := do(t, newTestServer(nil), http.MethodPost, "/api/v1/dedup", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("body too large", func(t *testing.T) {
		srv := NewRouter(NewHandlers(config.PricingConfig{Multiplier: 1}, nil, 16, slog.Default()), 0)
		rec := do(t, srv, http.MethodPost, "/api/v1/dedup", productsCSV)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}
