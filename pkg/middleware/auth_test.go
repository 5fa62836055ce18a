package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthTestServer(token string) *echo.Echo {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.POST("/v1/sync", func(c echo.Context) error {
		return c.NoContent(http.StatusAccepted)
	}, SharedSecretAuth(logger, token))
	return e
}

func TestSharedSecretAuth(t *testing.T) {
	e := newAuthTestServer("s3cret")

	req := httptest.NewRequest(http.MethodPost, "/v1/sync", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSharedSecretAuthRejectsBadToken(t *testing.T) {
	e := newAuthTestServer("s3cret")

	req := httptest.NewRequest(http.MethodPost, "/v1/sync", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSharedSecretAuthRejectsMissingHeader(t *testing.T) {
	e := newAuthTestServer("s3cret")

	req := httptest.NewRequest(http.MethodPost, "/v1/sync", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSharedSecretAuthDisabledWhenTokenEmpty(t *testing.T) {
	e := newAuthTestServer("")

	req := httptest.NewRequest(http.MethodPost, "/v1/sync", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
