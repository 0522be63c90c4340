package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/witw-events/server/internal/config"
)

func TestCORSAllowedOrigin(t *testing.T) {
	h := CORS(config.CORSConfig{AllowedOrigins: []string{"https://app.witw.events"}}, zerolog.Nop())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://APP.witw.events")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "https://APP.witw.events", res.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, res.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestCORSRejectedOriginIsLogged(t *testing.T) {
	var buf bytes.Buffer
	h := CORS(config.CORSConfig{AllowedOrigins: []string{"https://app.witw.events"}}, zerolog.New(&buf))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://evil.example")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	require.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, buf.String(), "https://evil.example")
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(config.CORSConfig{AllowAllOrigins: true}, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	require.Equal(t, http.StatusNoContent, res.Code)
	require.False(t, called)
	require.Equal(t, "http://localhost:3000", res.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSNoOrigin(t *testing.T) {
	h := CORS(config.CORSConfig{}, zerolog.Nop())(okHandler())
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Empty(t, res.Header().Get("Access-Control-Allow-Origin"))
}
