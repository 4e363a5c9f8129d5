package weather

import (
	"database/sql"
	"log/slog"
	"net/http"

	"weathervision/internal/config"
	"weathervision/internal/metrics"
	"weathervision/internal/modules/weather/controller"
	"weathervision/internal/modules/weather/provider"
	"weathervision/internal/modules/weather/repository"
	"weathervision/internal/modules/weather/service"
	"weathervision/internal/mqtt"
)

// RegisterFeature wires the weather records module onto mux. subscriber may
// be nil when MQTT ingest is disabled.
func RegisterFeature(mux *http.ServeMux, db *sql.DB, cfg config.Config, m *metrics.Recorder, subscriber mqtt.MQTTSubscriber) {
	logger := slog.Default()

	weatherRepository := repository.NewRepository(db)
	weatherProvider := provider.NewClient(cfg, provider.WithMetrics(m), provider.WithLogger(logger))
	weatherService := service.NewService(weatherRepository, weatherProvider, m)

	weatherController := controller.NewWeatherController(weatherService)
	weatherController.RegisterRoutes(mux)

	if subscriber != nil {
		registerMQTTHandler(subscriber, weatherService, logger)
	}
}
