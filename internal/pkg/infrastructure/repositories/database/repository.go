package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var ErrNotFound = fmt.Errorf("not found")
var ErrCommandNotPending = fmt.Errorf("command is not pending")
var ErrRepositoryError = fmt.Errorf("could not fetch data from repository")

type Repository interface {
	GetUser(ctx context.Context, userID string) (User, error)
	UpsertUser(ctx context.Context, user User) (User, error)

	GetDevices(ctx context.Context, userID string) ([]Device, error)
	GetDevice(ctx context.Context, deviceID uint) (Device, error)
	GetDevicesLastActiveBefore(ctx context.Context, t time.Time, statuses ...string) ([]Device, error)
	CreateDevice(ctx context.Context, device Device) (Device, error)
	UpdateDevice(ctx context.Context, deviceID uint, fields map[string]any) (Device, error)
	DeleteDevice(ctx context.Context, deviceID uint) error

	GetLocations(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Location, error)
	GetLocationsByDateRange(ctx context.Context, deviceID uint, start, end time.Time) ([]Location, error)
	AddLocation(ctx context.Context, location Location) (Location, error)

	GetCalls(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Call, error)
	AddCall(ctx context.Context, call Call) (Call, error)

	GetMessages(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Message, error)
	AddMessage(ctx context.Context, message Message) (Message, error)

	GetPhotos(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Photo, error)
	AddPhoto(ctx context.Context, photo Photo) (Photo, error)

	GetRecordings(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Recording, error)
	AddRecording(ctx context.Context, recording Recording) (Recording, error)

	GetCommand(ctx context.Context, commandID uint) (Command, error)
	GetCommands(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Command, error)
	GetCommandsByUser(ctx context.Context, userID string, conditions ...ConditionFunc) ([]Command, error)
	CreateCommand(ctx context.Context, command Command) (Command, error)
	UpdateCommandStatus(ctx context.Context, commandID uint, status string, at time.Time) (Command, error)

	GetSettings(ctx context.Context, userID string) (Settings, error)
	CreateOrUpdateSettings(ctx context.Context, userID string, update SettingsUpdate) (Settings, error)

	Seed(ctx context.Context, reader io.Reader) error
}

type repository struct {
	db  *gorm.DB
	log zerolog.Logger
}

func New(connect ConnectorFunc) (Repository, error) {
	impl, log, err := connect()
	if err != nil {
		return nil, err
	}

	err = impl.AutoMigrate(
		&User{}, &Device{},
		&Location{}, &Call{}, &Message{}, &Photo{}, &Recording{},
		&Command{}, &Settings{},
	)
	if err != nil {
		return nil, err
	}

	return &repository{
		db:  impl,
		log: log,
	}, nil
}

func (r *repository) mapError(result *gorm.DB) error {
	if result.Error == nil {
		return nil
	}

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	r.log.Error().Err(result.Error).Msg("gorm error")
	return fmt.Errorf("%w: %s", ErrRepositoryError, result.Error.Error())
}
