package httpapi

import (
	"net/http"
	"time"

	"weathervision/internal/config"
	"weathervision/internal/metrics"
)

func NewServer(cfg config.Config, mux *http.ServeMux, m *metrics.Recorder) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestLogger(mux, m),
		ReadHeaderTimeout: 10 * time.Second,
		// Writes may wait on the provider call.
		WriteTimeout: cfg.OpenWeatherTimeout + 20*time.Second,
	}
}
