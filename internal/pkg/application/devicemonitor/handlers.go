package devicemonitor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/diwise/device-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/device-monitor/pkg/types"
	"github.com/diwise/messaging-golang/pkg/messaging"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// TopicHandlers returns the message handlers for everything devices report over the bus,
// keyed by the topic they should be registered on.
func TopicHandlers(dm DeviceMonitor) map[string]messaging.TopicMessageHandler {
	return map[string]messaging.TopicMessageHandler{
		(&types.StatusReported{}).TopicName():      DeviceStatusHandler(dm),
		(&types.LocationReported{}).TopicName():    reportHandler(dm.AddLocation),
		(&types.CallReported{}).TopicName():        reportHandler(dm.AddCall),
		(&types.MessageReported{}).TopicName():     reportHandler(dm.AddMessage),
		(&types.PhotoReported{}).TopicName():       reportHandler(dm.AddPhoto),
		(&types.RecordingReported{}).TopicName():   reportHandler(dm.AddRecording),
		(&types.CommandAcknowledged{}).TopicName(): CommandAcknowledgedHandler(dm),
	}
}

func reportHandler[T any](add func(context.Context, T) error) messaging.TopicMessageHandler {
	return func(ctx context.Context, msg amqp.Delivery, logger zerolog.Logger) {
		var report T

		err := json.Unmarshal(msg.Body, &report)
		if err != nil {
			logger.Error().Err(err).Msgf("failed to unmarshal message from %s", msg.RoutingKey)
			return
		}

		err = add(ctx, report)
		if err != nil {
			logger.Error().Err(err).Msgf("could not store report from %s", msg.RoutingKey)
			return
		}

		logger.Debug().Msgf("%s handled", msg.RoutingKey)
	}
}

func DeviceStatusHandler(dm DeviceMonitor) messaging.TopicMessageHandler {
	return func(ctx context.Context, msg amqp.Delivery, logger zerolog.Logger) {
		status := types.StatusReported{}

		err := json.Unmarshal(msg.Body, &status)
		if err != nil {
			logger.Error().Err(err).Msgf("failed to unmarshal message from %s", msg.RoutingKey)
			return
		}

		if err = types.Validate(status); err != nil {
			logger.Error().Err(err).Msg("invalid device status")
			return
		}

		logger = logger.With().Uint("deviceID", status.DeviceID).Logger()

		lastActivity := status.Timestamp
		if lastActivity.IsZero() {
			lastActivity = time.Now().UTC()
		}

		_, err = dm.UpdateDevice(ctx, status.DeviceID, types.DevicePatch{
			Status:       &status.Status,
			Battery:      status.Battery,
			LastActivity: &lastActivity,
		})
		if err != nil {
			logger.Error().Err(err).Msg("could not update status on device")
			return
		}

		logger.Debug().Msgf("%s handled", msg.RoutingKey)
	}
}

func CommandAcknowledgedHandler(dm DeviceMonitor) messaging.TopicMessageHandler {
	return func(ctx context.Context, msg amqp.Delivery, logger zerolog.Logger) {
		ack := types.CommandAcknowledged{}

		err := json.Unmarshal(msg.Body, &ack)
		if err != nil {
			logger.Error().Err(err).Msgf("failed to unmarshal message from %s", msg.RoutingKey)
			return
		}

		if err = types.Validate(ack); err != nil {
			logger.Error().Err(err).Msg("invalid command acknowledgement")
			return
		}

		logger = logger.With().Uint("commandID", ack.CommandID).Logger()

		_, err = dm.CompleteCommand(ctx, ack.CommandID, ack.Status)
		if errors.Is(err, database.ErrCommandNotPending) {
			logger.Warn().Msg("ignoring acknowledgement for command that is not pending")
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("could not complete command")
			return
		}

		logger.Debug().Msgf("%s handled", msg.RoutingKey)
	}
}
