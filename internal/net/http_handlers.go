package net

import (
	nethttp "net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

type HTTPHandlerConfig struct {
	// WebSocket serves /ws.
	WebSocket nethttp.Handler
	// Diagnostics produces the /diagnostics body. Nil disables the route.
	Diagnostics func() any
	TickRate    int
	Logger      zerolog.Logger
}

func NewHTTPHandler(cfg HTTPHandlerConfig) nethttp.Handler {
	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	if cfg.Diagnostics != nil {
		mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
			payload := struct {
				Status     string `json:"status"`
				ServerTime int64  `json:"serverTime"`
				TickRate   int    `json:"tickRate"`
				State      any    `json:"state"`
			}{
				Status:     "ok",
				ServerTime: time.Now().UnixMilli(),
				TickRate:   cfg.TickRate,
				State:      cfg.Diagnostics(),
			}

			data, err := json.Marshal(payload)
			if err != nil {
				cfg.Logger.Error().Err(err).Msg("failed to encode diagnostics")
				httpError(w, "failed to encode", nethttp.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write(data)
		})
	}

	if cfg.WebSocket != nil {
		mux.Handle("/ws", cfg.WebSocket)
	}

	return mux
}

func httpError(w nethttp.ResponseWriter, message string, status int) {
	nethttp.Error(w, message, status)
}
