package weather

import (
	"context"
	"log/slog"

	"weathervision/internal/metrics"
	"weathervision/internal/modules/weather/service"
	"weathervision/internal/modules/weather/types"
	"weathervision/internal/mqtt"
)

// registerMQTTHandler routes records received over MQTT through the same
// create path as the HTTP API. Failures are returned to the subscriber,
// which logs and drops the message.
func registerMQTTHandler(subscriber mqtt.MQTTSubscriber, svc *service.Service, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(ctx context.Context, in types.RecordInput) error {
		rec, err := svc.CreateRecord(ctx, in, metrics.SourceMQTT)
		if err != nil {
			return err
		}

		logger.Debug("stored mqtt record",
			"id", rec.ID,
			"city", rec.City,
		)
		return nil
	})
}
