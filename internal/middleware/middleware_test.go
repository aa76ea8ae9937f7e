package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestAPIAuth(t *testing.T) {
	e := echo.New()
	h := APIAuth("secret")(okHandler)

	cases := []struct {
		token string
		code  int
	}{
		{"", http.StatusUnauthorized},
		{"wrong", http.StatusUnauthorized},
		{"secret", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/payments", nil)
		if tc.token != "" {
			req.Header.Set("Token", tc.token)
		}
		rec := httptest.NewRecorder()
		require.NoError(t, h(e.NewContext(req, rec)))
		assert.Equal(t, tc.code, rec.Code, "token %q", tc.token)
	}
}

func TestAPIAuth_EmptyKeyRejects(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/payments", nil)
	req.Header.Set("Token", "anything")
	rec := httptest.NewRecorder()

	require.NoError(t, APIAuth("")(okHandler)(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestID(t *testing.T) {
	e := echo.New()
	h := RequestID()(RequestLogger(zap.NewNop())(func(c echo.Context) error {
		return c.String(http.StatusOK, GetRequestID(c))
	}))

	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)))
	generated := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec = httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	assert.Equal(t, "req-42", rec.Body.String())
}
