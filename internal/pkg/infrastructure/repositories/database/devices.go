package database

import (
	"context"
	"time"
)

func (r *repository) GetDevices(ctx context.Context, userID string) ([]Device, error) {
	var devices []Device

	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_activity DESC NULLS LAST").
		Order("id DESC").
		Find(&devices)

	return devices, r.mapError(result)
}

func (r *repository) GetDevice(ctx context.Context, deviceID uint) (Device, error) {
	device := Device{}

	result := r.db.WithContext(ctx).First(&device, deviceID)

	return device, r.mapError(result)
}

// GetDevicesLastActiveBefore returns devices in any of the given statuses whose last
// activity is known and older than t.
func (r *repository) GetDevicesLastActiveBefore(ctx context.Context, t time.Time, statuses ...string) ([]Device, error) {
	var devices []Device

	query := r.db.WithContext(ctx).
		Where("last_activity IS NOT NULL AND last_activity < ?", t.UTC())

	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	result := query.Order("id").Find(&devices)

	return devices, r.mapError(result)
}

func (r *repository) CreateDevice(ctx context.Context, device Device) (Device, error) {
	device.ID = 0
	if device.Status == "" {
		device.Status = DeviceStatusOffline
	}
	if device.LastActivity != nil {
		lastActivity := device.LastActivity.UTC()
		device.LastActivity = &lastActivity
	}

	result := r.db.WithContext(ctx).Create(&device)
	if err := r.mapError(result); err != nil {
		return Device{}, err
	}

	return r.GetDevice(ctx, device.ID)
}

// UpdateDevice applies the given column values to a device. updated_at is always refreshed,
// also when fields is empty.
func (r *repository) UpdateDevice(ctx context.Context, deviceID uint, fields map[string]any) (Device, error) {
	updates := map[string]any{}
	for k, v := range fields {
		updates[k] = v
	}
	delete(updates, "id")
	delete(updates, "user_id")
	updates["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&Device{}).
		Where("id = ?", deviceID).
		Updates(updates)
	if err := r.mapError(result); err != nil {
		return Device{}, err
	}
	if result.RowsAffected == 0 {
		return Device{}, ErrNotFound
	}

	return r.GetDevice(ctx, deviceID)
}

func (r *repository) DeleteDevice(ctx context.Context, deviceID uint) error {
	result := r.db.WithContext(ctx).Delete(&Device{}, deviceID)
	if err := r.mapError(result); err != nil {
		return err
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
