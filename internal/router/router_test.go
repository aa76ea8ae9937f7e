package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paysync/internal/form"
	"paysync/internal/middleware"
	"paysync/internal/models"
	"paysync/internal/payment"
	"paysync/internal/repository"
)

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	db, err := repository.NewTestConnection()
	require.NoError(t, err)

	orders := repository.NewOrderRepository(db)
	registry := payment.NewStripeRegistry(payment.Dependencies{
		Orders:    orders,
		Reference: repository.NewReferenceRepository(db),
		BaseURL:   "https://pay.example.com",
	})
	svc := payment.NewService(registry, orders, repository.NewSettingRepository(db), zap.NewNop())
	deduper, err := middleware.NewEventDeduper("", "", 0, time.Minute)
	require.NoError(t, err)

	e := echo.New()
	Setup(e, Deps{
		Payments: svc,
		Renderer: form.NewRenderer(),
		Deduper:  deduper,
		Logger:   zap.NewNop(),
		APIKey:   "secret",
	})
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(newServer(t), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestAPIRequiresToken(t *testing.T) {
	e := newServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/payments", strings.NewReader(`{"actions":"reconcile"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/payments", strings.NewReader(`{"actions":"reconcile"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Token", "wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)
}

func TestAPIReconcile(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/payments", strings.NewReader(`{"actions":"reconcile","limit":10}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Token", "secret")
	rec := serve(newServer(t), req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Status)
}

func TestFormUnknownProvider(t *testing.T) {
	rec := serve(newServer(t), httptest.NewRequest(http.MethodGet, "/payment/paypal/form/CART-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
