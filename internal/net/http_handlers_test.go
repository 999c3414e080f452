package net

import (
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewHTTPHandler(HTTPHandlerConfig{Logger: zerolog.Nop()}))
	defer srv.Close()

	resp, err := nethttp.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestDiagnosticsEndpoint(t *testing.T) {
	handler := NewHTTPHandler(HTTPHandlerConfig{
		TickRate:    30,
		Diagnostics: func() any { return map[string]int{"connections": 2} },
		Logger:      zerolog.Nop(),
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/diagnostics", nil))
	require.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got struct {
		Status     string         `json:"status"`
		ServerTime int64          `json:"serverTime"`
		TickRate   int            `json:"tickRate"`
		State      map[string]int `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, 30, got.TickRate)
	assert.Positive(t, got.ServerTime)
	assert.Equal(t, 2, got.State["connections"])
}

func TestRoutesWithoutProviders(t *testing.T) {
	handler := NewHTTPHandler(HTTPHandlerConfig{Logger: zerolog.Nop()})
	for _, path := range []string{"/diagnostics", "/ws"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, path, nil))
		assert.Equal(t, nethttp.StatusNotFound, rec.Code, path)
	}
}
