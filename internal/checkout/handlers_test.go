package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, catalog *stubCatalog) http.Handler {
	t.Helper()
	h := NewHandler(newTestService(t, catalog, zerolog.Nop()))
	r := chi.NewRouter()
	r.Get("/", h.Root)
	r.Route("/checkout", func(c chi.Router) {
		c.Get("/checkhealth", h.CheckHealth)
		c.Post("/", h.Checkout)
	})
	return r
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func TestHandlerCheckout(t *testing.T) {
	router := newTestRouter(t, sampleCatalog())

	body := `[{"code":"a","quantity":3},{"code":"C","quant":3}]`
	req := httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Checkout complete","total":215}`, rec.Body.String())
}

func TestHandlerCheckoutInvalidQuantity(t *testing.T) {
	router := newTestRouter(t, sampleCatalog())

	req := httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(`[{"code":"a","quantity":-1}]`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "INVALID_INPUT", env.Error.Code)
	require.Equal(t, "quantity", env.Error.Details["field"])
	require.EqualValues(t, 0, env.Error.Details["line"])
}

func TestHandlerCheckoutStoreUnavailable(t *testing.T) {
	catalog := sampleCatalog()
	catalog.fail["a"] = errors.New("dial tcp: connection refused")
	router := newTestRouter(t, catalog)

	req := httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(`[{"code":"a","quantity":1}]`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "CATALOG_UNAVAILABLE", env.Error.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestHandlerCheckoutMalformedPayload(t *testing.T) {
	router := newTestRouter(t, sampleCatalog())

	req := httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(`{"code":"a"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "BAD_REQUEST")
}

func TestHandlerCheckoutRejectsTrailingData(t *testing.T) {
	router := newTestRouter(t, sampleCatalog())

	for _, body := range []string{
		`[{"code":"a","quantity":3}]garbage`,
		`[{"code":"a","quantity":3}][{"code":"c","quantity":1}]`,
		`[] {}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code, body)
		require.Contains(t, rec.Body.String(), "BAD_REQUEST", body)
	}

	req := httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader("[{\"code\":\"a\",\"quantity\":3}]\n  "))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Checkout complete","total":140}`, rec.Body.String())
}

func TestHandlerCheckoutTooManyLines(t *testing.T) {
	router := newTestRouter(t, sampleCatalog())

	lines := make([]string, MaxLines+1)
	for i := range lines {
		lines[i] = `{"code":"c","quantity":1}`
	}
	req := httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader("["+strings.Join(lines, ",")+"]"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), `"field":"lines"`)
}

func TestHandlerCheckoutBodyTooLarge(t *testing.T) {
	h := NewHandler(newTestService(t, sampleCatalog(), zerolog.Nop()))
	body := `[{"code":"a","quantity":3},{"code":"c","quantity":3}]`
	req := httptest.NewRequest(http.MethodPost, "/checkout/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 8)

	h.Checkout(rec, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandlerInfoRoutes(t *testing.T) {
	router := newTestRouter(t, sampleCatalog())

	for path, msg := range map[string]string{
		"/":                     "API is running",
		"/checkout/checkhealth": "Checkout Route is working",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.JSONEq(t, `{"message":"`+msg+`"}`, rec.Body.String())
	}
}
