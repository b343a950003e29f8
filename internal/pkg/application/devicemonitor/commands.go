package devicemonitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diwise/device-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/device-monitor/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

var ErrInvalidStatus = fmt.Errorf("invalid command status")

// CompletionFunc moves a dispatched command to a terminal status.
type CompletionFunc func(ctx context.Context, commandID uint, status string)

// Dispatcher hands issued commands over to the device channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, command types.Command, done CompletionFunc) error
}

type simulatedDispatcher struct {
	delay time.Duration
}

// NewSimulatedDispatcher returns a dispatcher that reports every command as executed
// once delay has passed. Each command gets its own timer which is never cancelled.
func NewSimulatedDispatcher(delay time.Duration) Dispatcher {
	return &simulatedDispatcher{delay: delay}
}

func (s *simulatedDispatcher) Dispatch(ctx context.Context, command types.Command, done CompletionFunc) error {
	logger := logging.GetFromContext(ctx).With().Uint("commandID", command.ID).Logger()

	time.AfterFunc(s.delay, func() {
		done(logging.NewContextWithLogger(context.Background(), logger), command.ID, database.CommandStatusExecuted)
	})

	return nil
}

type messagingDispatcher struct {
	messenger Publisher
}

// NewMessagingDispatcher returns a dispatcher that publishes commands on the message bus.
// Completion is reported back by the device through a CommandAcknowledged message.
func NewMessagingDispatcher(messenger Publisher) Dispatcher {
	return &messagingDispatcher{messenger: messenger}
}

func (m *messagingDispatcher) Dispatch(ctx context.Context, command types.Command, _ CompletionFunc) error {
	return m.messenger.PublishOnTopic(ctx, &types.CommandIssued{
		CommandID:   command.ID,
		DeviceID:    command.DeviceID,
		CommandType: command.CommandType,
		Timestamp:   command.CreatedAt,
	})
}

func (d *deviceMonitor) GetCommand(ctx context.Context, commandID uint) (types.Command, error) {
	command, err := d.repo.GetCommand(ctx, commandID)
	if err != nil {
		return types.Command{}, err
	}
	return MapTo[types.Command](command)
}

func (d *deviceMonitor) GetCommands(ctx context.Context, deviceID uint, conditions ...database.ConditionFunc) ([]types.Command, error) {
	rows, err := d.repo.GetCommands(ctx, deviceID, conditions...)
	if err != nil {
		return nil, err
	}
	return mapAll[types.Command](rows)
}

func (d *deviceMonitor) GetCommandsByUser(ctx context.Context, userID string, conditions ...database.ConditionFunc) ([]types.Command, error) {
	rows, err := d.repo.GetCommandsByUser(ctx, userID, conditions...)
	if err != nil {
		return nil, err
	}
	return mapAll[types.Command](rows)
}

// CreateCommand stores a pending command and dispatches it. A failed dispatch leaves the
// command pending.
func (d *deviceMonitor) CreateCommand(ctx context.Context, deviceID uint, command types.NewCommand) (types.Command, error) {
	if err := types.Validate(command); err != nil {
		return types.Command{}, err
	}

	row, err := d.repo.CreateCommand(ctx, database.Command{
		DeviceID:    deviceID,
		CommandType: command.CommandType,
	})
	if err != nil {
		return types.Command{}, err
	}

	created, err := MapTo[types.Command](row)
	if err != nil {
		return types.Command{}, err
	}

	logger := logging.GetFromContext(ctx)

	if err := d.dispatcher.Dispatch(ctx, created, d.complete); err != nil {
		logger.Error().Err(err).Uint("commandID", created.ID).Msg("failed to dispatch command")
	}

	return created, nil
}

func (d *deviceMonitor) complete(ctx context.Context, commandID uint, status string) {
	logger := logging.GetFromContext(ctx)

	if _, err := d.CompleteCommand(ctx, commandID, status); err != nil {
		logger.Error().Err(err).Uint("commandID", commandID).Msgf("failed to set command status to %s", status)
	}
}

// CompleteCommand moves a pending command to executed or failed. Completing a command
// that is no longer pending returns database.ErrCommandNotPending.
func (d *deviceMonitor) CompleteCommand(ctx context.Context, commandID uint, status string) (types.Command, error) {
	if status != database.CommandStatusExecuted && status != database.CommandStatusFailed {
		return types.Command{}, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	row, err := d.repo.UpdateCommandStatus(ctx, commandID, status, time.Now().UTC())
	if err != nil {
		return types.Command{}, err
	}

	command, err := MapTo[types.Command](row)
	if err != nil {
		return types.Command{}, err
	}

	device, err := d.repo.GetDevice(ctx, command.DeviceID)
	if err != nil {
		return command, err
	}

	message := types.CommandStatusUpdated{
		CommandID:   command.ID,
		DeviceID:    command.DeviceID,
		UserID:      device.UserID,
		CommandType: command.CommandType,
		Status:      command.Status,
		ExecutedAt:  command.ExecutedAt,
		Timestamp:   time.Now().UTC(),
	}

	d.publish(ctx, &message)
	d.notify(ctx, device.UserID, message)

	return command, nil
}

func (d *deviceMonitor) notify(ctx context.Context, userID string, message types.CommandStatusUpdated) {
	logger := logging.GetFromContext(ctx)

	enabled := true

	settings, err := d.repo.GetSettings(ctx, userID)
	if err == nil {
		enabled = settings.NotificationsEnabled
	} else if !errors.Is(err, database.ErrNotFound) {
		logger.Error().Err(err).Msg("could not read notification settings")
		return
	}

	if !enabled {
		return
	}

	if err := d.notifier.CommandStatusUpdated(ctx, message); err != nil {
		logger.Error().Err(err).Uint("commandID", message.CommandID).Msg("failed to send notification")
	}
}
