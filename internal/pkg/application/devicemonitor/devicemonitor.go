package devicemonitor

import (
	"context"
	"errors"
	"time"

	"github.com/diwise/device-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/device-monitor/pkg/types"
	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

type DeviceMonitor interface {
	GetUser(ctx context.Context, userID string) (types.User, error)
	UpsertUser(ctx context.Context, user types.User) (types.User, error)

	GetDevices(ctx context.Context, userID string) ([]types.Device, error)
	GetDevice(ctx context.Context, deviceID uint) (types.Device, error)
	CreateDevice(ctx context.Context, userID string, device types.NewDevice) (types.Device, error)
	UpdateDevice(ctx context.Context, deviceID uint, patch types.DevicePatch) (types.Device, error)
	DeleteDevice(ctx context.Context, deviceID uint) error
	GetDevicesLastActiveBefore(ctx context.Context, t time.Time, statuses ...string) ([]types.Device, error)

	GetLocations(ctx context.Context, deviceID uint, conditions ...database.ConditionFunc) ([]types.Location, error)
	GetLocationsByDateRange(ctx context.Context, deviceID uint, start, end time.Time) ([]types.Location, error)
	GetCalls(ctx context.Context, deviceID uint, conditions ...database.ConditionFunc) ([]types.Call, error)
	GetMessages(ctx context.Context, deviceID uint, conditions ...database.ConditionFunc) ([]types.Message, error)
	GetPhotos(ctx context.Context, deviceID uint, conditions ...database.ConditionFunc) ([]types.Photo, error)
	GetRecordings(ctx context.Context, deviceID uint, conditions ...database.ConditionFunc) ([]types.Recording, error)

	AddLocation(ctx context.Context, location types.LocationReported) error
	AddCall(ctx context.Context, call types.CallReported) error
	AddMessage(ctx context.Context, message types.MessageReported) error
	AddPhoto(ctx context.Context, photo types.PhotoReported) error
	AddRecording(ctx context.Context, recording types.RecordingReported) error

	GetCommand(ctx context.Context, commandID uint) (types.Command, error)
	GetCommands(ctx context.Context, deviceID uint, conditions ...database.ConditionFunc) ([]types.Command, error)
	GetCommandsByUser(ctx context.Context, userID string, conditions ...database.ConditionFunc) ([]types.Command, error)
	CreateCommand(ctx context.Context, deviceID uint, command types.NewCommand) (types.Command, error)
	CompleteCommand(ctx context.Context, commandID uint, status string) (types.Command, error)

	GetSettings(ctx context.Context, userID string) (types.Settings, error)
	UpdateSettings(ctx context.Context, userID string, patch types.SettingsPatch) (types.Settings, error)
}

// Publisher is the part of a messaging.MsgContext used to emit domain events.
type Publisher interface {
	PublishOnTopic(ctx context.Context, message messaging.TopicMessage) error
}

// Notifier delivers command status changes to external subscribers.
type Notifier interface {
	CommandStatusUpdated(ctx context.Context, message types.CommandStatusUpdated) error
}

type deviceMonitor struct {
	repo       database.Repository
	messenger  Publisher
	dispatcher Dispatcher
	notifier   Notifier
}

func New(repo database.Repository, messenger Publisher, dispatcher Dispatcher, notifier Notifier) DeviceMonitor {
	if messenger == nil {
		messenger = discard{}
	}
	if notifier == nil {
		notifier = discard{}
	}

	return &deviceMonitor{
		repo:       repo,
		messenger:  messenger,
		dispatcher: dispatcher,
		notifier:   notifier,
	}
}

type discard struct{}

func (discard) PublishOnTopic(context.Context, messaging.TopicMessage) error {
	return nil
}

func (discard) CommandStatusUpdated(context.Context, types.CommandStatusUpdated) error {
	return nil
}

func (d *deviceMonitor) publish(ctx context.Context, message messaging.TopicMessage) {
	if err := d.messenger.PublishOnTopic(ctx, message); err != nil {
		logger := logging.GetFromContext(ctx)
		logger.Error().Err(err).Str("topic", message.TopicName()).Msg("failed to publish message")
	}
}

func (d *deviceMonitor) GetUser(ctx context.Context, userID string) (types.User, error) {
	user, err := d.repo.GetUser(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	return MapTo[types.User](user)
}

func (d *deviceMonitor) UpsertUser(ctx context.Context, user types.User) (types.User, error) {
	dataModel, err := MapTo[database.User](user)
	if err != nil {
		return types.User{}, err
	}

	saved, err := d.repo.UpsertUser(ctx, dataModel)
	if err != nil {
		return types.User{}, err
	}

	return MapTo[types.User](saved)
}

func (d *deviceMonitor) GetDevices(ctx context.Context, userID string) ([]types.Device, error) {
	devices, err := d.repo.GetDevices(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mapAll[types.Device](devices)
}

func (d *deviceMonitor) GetDevice(ctx context.Context, deviceID uint) (types.Device, error) {
	device, err := d.repo.GetDevice(ctx, deviceID)
	if err != nil {
		return types.Device{}, err
	}
	return MapTo[types.Device](device)
}

func (d *deviceMonitor) GetDevicesLastActiveBefore(ctx context.Context, t time.Time, statuses ...string) ([]types.Device, error) {
	devices, err := d.repo.GetDevicesLastActiveBefore(ctx, t, statuses...)
	if err != nil {
		return nil, err
	}
	return mapAll[types.Device](devices)
}

func (d *deviceMonitor) CreateDevice(ctx context.Context, userID string, device types.NewDevice) (types.Device, error) {
	if err := types.Validate(device); err != nil {
		return types.Device{}, err
	}

	dataModel := database.Device{
		UserID:       userID,
		Name:         device.Name,
		Description:  device.Description,
		DeviceType:   device.DeviceType,
		Platform:     device.Platform,
		LastActivity: device.LastActivity,
		Battery:      device.Battery,
	}
	if device.Status != nil {
		dataModel.Status = *device.Status
	}

	created, err := d.repo.CreateDevice(ctx, dataModel)
	if err != nil {
		return types.Device{}, err
	}

	d.publish(ctx, &types.DeviceCreated{
		DeviceID:  created.ID,
		UserID:    created.UserID,
		Timestamp: created.CreatedAt,
	})

	return MapTo[types.Device](created)
}

func (d *deviceMonitor) UpdateDevice(ctx context.Context, deviceID uint, patch types.DevicePatch) (types.Device, error) {
	if err := types.Validate(patch); err != nil {
		return types.Device{}, err
	}

	fields := map[string]any{}
	if patch.Name != nil {
		fields["name"] = *patch.Name
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.DeviceType != nil {
		fields["device_type"] = *patch.DeviceType
	}
	if patch.Platform != nil {
		fields["platform"] = *patch.Platform
	}
	if patch.Status != nil {
		fields["status"] = *patch.Status
	}
	if patch.LastActivity != nil {
		fields["last_activity"] = patch.LastActivity.UTC()
	}
	if patch.Battery != nil {
		fields["battery"] = *patch.Battery
	}

	updated, err := d.repo.UpdateDevice(ctx, deviceID, fields)
	if err != nil {
		return types.Device{}, err
	}

	d.publish(ctx, &types.DeviceUpdated{
		DeviceID:  updated.ID,
		UserID:    updated.UserID,
		Status:    updated.Status,
		Timestamp: updated.UpdatedAt,
	})

	return MapTo[types.Device](updated)
}

func (d *deviceMonitor) DeleteDevice(ctx context.Context, deviceID uint) error {
	device, err := d.repo.GetDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	err = d.repo.DeleteDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	d.publish(ctx, &types.DeviceDeleted{
		DeviceID:  device.ID,
		UserID:    device.UserID,
		Timestamp: time.Now().UTC(),
	})

	return nil
}

func (d *deviceMonitor) GetLocations(ctx context.Context, deviceID uint, conditions ...database.ConditionFunc) ([]types.Location, error) {
	rows, err := d.repo.GetLocations(ctx, deviceID, conditions...)
	if err != nil {
		return nil, err
	}
	return mapAll[types.Location](rows)
}

func (d *deviceMonitor) GetLocationsByDateRange(ctx context.Context, deviceID uint, start, end time.Time) ([]types.Location, error) {
	rows, err := d.repo.GetLocationsByDateRange(ctx, deviceID, start, end)
	if err != nil {
		return nil, err
	}
	return mapAll[types.Location](rows)
}

func (d *deviceMonitor) GetCalls(ctx context.Context, deviceID uint, conditions ...database.ConditionFunc) ([]types.Call, error) {
	rows, err := d.repo.GetCalls(ctx, deviceID, conditions...)
	if err != nil {
		return nil, err
	}
	return mapAll[types.Call](rows)
}

func (d *deviceMonitor) GetMessages(ctx context.Context, deviceID uint, conditions ...database.ConditionFunc) ([]types.Message, error) {
	rows, err := d.repo.GetMessages(ctx, deviceID, conditions...)
	if err != nil {
		return nil, err
	}
	return mapAll[types.Message](rows)
}

func (d *deviceMonitor) GetPhotos(ctx context.Context, deviceID uint, conditions ...database.ConditionFunc) ([]types.Photo, error) {
	rows, err := d.repo.GetPhotos(ctx, deviceID, conditions...)
	if err != nil {
		return nil, err
	}
	return mapAll[types.Photo](rows)
}

func (d *deviceMonitor) GetRecordings(ctx context.Context, deviceID uint, conditions ...database.ConditionFunc) ([]types.Recording, error) {
	rows, err := d.repo.GetRecordings(ctx, deviceID, conditions...)
	if err != nil {
		return nil, err
	}
	return mapAll[types.Recording](rows)
}

func (d *deviceMonitor) AddLocation(ctx context.Context, location types.LocationReported) error {
	if err := types.Validate(location); err != nil {
		return err
	}

	_, err := d.repo.AddLocation(ctx, database.Location{
		DeviceID:  location.DeviceID,
		Latitude:  location.Latitude,
		Longitude: location.Longitude,
		Address:   location.Address,
		Timestamp: location.Timestamp,
	})
	return err
}

func (d *deviceMonitor) AddCall(ctx context.Context, call types.CallReported) error {
	if err := types.Validate(call); err != nil {
		return err
	}

	_, err := d.repo.AddCall(ctx, database.Call{
		DeviceID:    call.DeviceID,
		PhoneNumber: call.PhoneNumber,
		CallType:    call.CallType,
		Duration:    call.Duration,
		Timestamp:   call.Timestamp,
	})
	return err
}

func (d *deviceMonitor) AddMessage(ctx context.Context, message types.MessageReported) error {
	if err := types.Validate(message); err != nil {
		return err
	}

	_, err := d.repo.AddMessage(ctx, database.Message{
		DeviceID:    message.DeviceID,
		PhoneNumber: message.PhoneNumber,
		MessageType: message.MessageType,
		Content:     message.Content,
		Timestamp:   message.Timestamp,
	})
	return err
}

func (d *deviceMonitor) AddPhoto(ctx context.Context, photo types.PhotoReported) error {
	if err := types.Validate(photo); err != nil {
		return err
	}

	_, err := d.repo.AddPhoto(ctx, database.Photo{
		DeviceID:  photo.DeviceID,
		PhotoURL:  photo.PhotoURL,
		Source:    photo.Source,
		Timestamp: photo.Timestamp,
	})
	return err
}

func (d *deviceMonitor) AddRecording(ctx context.Context, recording types.RecordingReported) error {
	if err := types.Validate(recording); err != nil {
		return err
	}

	_, err := d.repo.AddRecording(ctx, database.Recording{
		DeviceID:     recording.DeviceID,
		RecordingURL: recording.RecordingURL,
		Duration:     recording.Duration,
		Timestamp:    recording.Timestamp,
	})
	return err
}

// GetSettings returns the settings of a user. Default settings are stored on first read.
func (d *deviceMonitor) GetSettings(ctx context.Context, userID string) (types.Settings, error) {
	settings, err := d.repo.GetSettings(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		settings, err = d.repo.CreateOrUpdateSettings(ctx, userID, database.SettingsUpdate{})
	}
	if err != nil {
		return types.Settings{}, err
	}

	return MapTo[types.Settings](settings)
}

func (d *deviceMonitor) UpdateSettings(ctx context.Context, userID string, patch types.SettingsPatch) (types.Settings, error) {
	if err := types.Validate(patch); err != nil {
		return types.Settings{}, err
	}

	settings, err := d.repo.CreateOrUpdateSettings(ctx, userID, database.SettingsUpdate{
		StealthMode:          patch.StealthMode,
		NotificationsEnabled: patch.NotificationsEnabled,
		TrackingInterval:     patch.TrackingInterval,
	})
	if err != nil {
		return types.Settings{}, err
	}

	return MapTo[types.Settings](settings)
}
