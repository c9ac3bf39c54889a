package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-checkout/internal/config"
	"github.com/noah-isme/toko-checkout/internal/obs"
)

func memoryConfig() *config.Config {
	return &config.Config{
		AppEnv:               "test",
		CatalogBackend:       config.BackendMemory,
		CatalogSeedDir:       "../../data",
		CatalogCacheTTL:      time.Minute,
		CatalogLookupTimeout: time.Second,
		CircuitMinRequests:   10,
		CircuitFailureRatio:  0.5,
		CircuitOpenFor:       time.Second,
		CatalogRetryAttempts: 1,
		RateLimitCheckout:    "100-M",
		HTTPMaxBodyBytes:     1 << 16,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	deps, err := Build(context.Background(), cfg, Options{ServiceName: "checkout-test", Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	checkoutHandler, catalogHandler, err := deps.Handlers(logger)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	return NewRouter(RouterConfig{
		Logger:          logger,
		Checkout:        checkoutHandler,
		Catalog:         catalogHandler,
		Limiter:         deps.Limiter,
		HTTPMetrics:     obs.NewHTTPMetrics("router_test", nil, reg),
		MetricsGatherer: reg,
		MaxBodyBytes:    cfg.HTTPMaxBodyBytes,
		SecurityHeaders: true,
	})
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterCheckoutEndToEnd(t *testing.T) {
	h := newTestServer(t, memoryConfig())

	rec := do(h, http.MethodPost, "/checkout/", `[{"code":"a","quantity":3},{"code":"c","quantity":3}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Checkout complete","total":215}`, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.NotEmpty(t, rec.Header().Get("X-RateLimit-Limit"))

	rec = do(h, http.MethodPost, "/checkout/", `[{"code":"B","quant":5},{"code":"zz","quantity":4}]`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Checkout complete","total":155}`, rec.Body.String())

	rec = do(h, http.MethodPost, "/checkout/", `[]`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Checkout complete","total":0}`, rec.Body.String())
}

func TestRouterInfoAndListings(t *testing.T) {
	h := newTestServer(t, memoryConfig())

	rec := do(h, http.MethodGet, "/", "")
	require.JSONEq(t, `{"message":"API is running"}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/checkout/checkhealth", "")
	require.JSONEq(t, `{"message":"Checkout Route is working"}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/checkout/offers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"code":"a","amount":3,"offerprice":140},{"code":"b","amount":2,"offerprice":60}]`, rec.Body.String())

	rec = do(h, http.MethodGet, "/health/live", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "router_test_http_requests_total")
}

func TestRouterRejectsOversizedBody(t *testing.T) {
	cfg := memoryConfig()
	cfg.HTTPMaxBodyBytes = 16
	h := newTestServer(t, cfg)

	rec := do(h, http.MethodPost, "/checkout/", `[{"code":"a","quantity":3},{"code":"c","quantity":3}]`)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRouterRateLimitsCheckout(t *testing.T) {
	cfg := memoryConfig()
	cfg.RateLimitCheckout = "2-M"
	h := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(h, http.MethodPost, "/checkout/", `[]`).Code)
	}
	require.Equal(t, http.StatusTooManyRequests, do(h, http.MethodPost, "/checkout/", `[]`).Code)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/checkout/prices", "").Code)
}

func TestBuildWithRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := memoryConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	deps, err := Build(context.Background(), cfg, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })
	require.NotNil(t, deps.Redis)

	rec, err := deps.Lookup.Lookup(context.Background(), "a")
	require.NoError(t, err)
	require.EqualValues(t, 50, rec.UnitPrice)
	require.True(t, mr.Exists("catalog:price:a"))

	checker := deps.Checker()
	require.NoError(t, checker.PingRedis(context.Background(), time.Second))
}

func TestBuildFailsOnMissingSeedDir(t *testing.T) {
	cfg := memoryConfig()
	cfg.CatalogSeedDir = t.TempDir()
	_, err := Build(context.Background(), cfg, Options{Logger: zerolog.Nop()})
	require.Error(t, err)
}

func TestInvalidateCacheDropsCachedEntries(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := memoryConfig()
	cfg.RedisURL = "redis://" + mr.Addr()
	deps, err := Build(context.Background(), cfg, Options{Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	ctx := context.Background()
	_, err = deps.Lookup.Lookup(ctx, "b")
	require.NoError(t, err)
	_, err = deps.Catalog.Prices(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists("catalog:price:b"))

	require.NoError(t, deps.InvalidateCache(ctx))
	require.False(t, mr.Exists("catalog:price:b"))
	require.False(t, mr.Exists("catalog:list:prices"))
}
