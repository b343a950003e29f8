package database

import (
	"context"
	"time"
)

// listByDevice returns rows of T that belong to a device, newest first.
func listByDevice[T any](ctx context.Context, r *repository, deviceID uint, orderBy string, conditions ...ConditionFunc) ([]T, error) {
	c := newCondition(conditions...)
	if c.empty() {
		return []T{}, nil
	}

	var rows []T

	query := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order(orderBy + " DESC").
		Order("id DESC")

	result := c.scope(query).Find(&rows)

	return rows, r.mapError(result)
}

func add[T any](ctx context.Context, r *repository, row *T) error {
	return r.mapError(r.db.WithContext(ctx).Create(row))
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func (r *repository) GetLocations(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Location, error) {
	return listByDevice[Location](ctx, r, deviceID, "timestamp", conditions...)
}

// GetLocationsByDateRange returns the locations with start <= timestamp <= end in ascending order.
func (r *repository) GetLocationsByDateRange(ctx context.Context, deviceID uint, start, end time.Time) ([]Location, error) {
	var locations []Location

	result := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Where("timestamp >= ? AND timestamp <= ?", start.UTC(), end.UTC()).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&locations)

	return locations, r.mapError(result)
}

func (r *repository) AddLocation(ctx context.Context, location Location) (Location, error) {
	location.ID = 0
	location.Timestamp = timestampOrNow(location.Timestamp)

	err := add(ctx, r, &location)
	return location, err
}

func (r *repository) GetCalls(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Call, error) {
	return listByDevice[Call](ctx, r, deviceID, "timestamp", conditions...)
}

func (r *repository) AddCall(ctx context.Context, call Call) (Call, error) {
	call.ID = 0
	call.Timestamp = timestampOrNow(call.Timestamp)

	err := add(ctx, r, &call)
	return call, err
}

func (r *repository) GetMessages(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Message, error) {
	return listByDevice[Message](ctx, r, deviceID, "timestamp", conditions...)
}

func (r *repository) AddMessage(ctx context.Context, message Message) (Message, error) {
	message.ID = 0
	message.Timestamp = timestampOrNow(message.Timestamp)

	err := add(ctx, r, &message)
	return message, err
}

func (r *repository) GetPhotos(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Photo, error) {
	return listByDevice[Photo](ctx, r, deviceID, "timestamp", conditions...)
}

func (r *repository) AddPhoto(ctx context.Context, photo Photo) (Photo, error) {
	photo.ID = 0
	photo.Timestamp = timestampOrNow(photo.Timestamp)

	err := add(ctx, r, &photo)
	return photo, err
}

func (r *repository) GetRecordings(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Recording, error) {
	return listByDevice[Recording](ctx, r, deviceID, "timestamp", conditions...)
}

func (r *repository) AddRecording(ctx context.Context, recording Recording) (Recording, error) {
	recording.ID = 0
	recording.Timestamp = timestampOrNow(recording.Timestamp)

	err := add(ctx, r, &recording)
	return recording, err
}
