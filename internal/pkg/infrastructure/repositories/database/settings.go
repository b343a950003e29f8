package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm/clause"
)

func (r *repository) GetSettings(ctx context.Context, userID string) (Settings, error) {
	settings := Settings{}

	result := r.db.WithContext(ctx).First(&settings, "user_id = ?", userID)

	return settings, r.mapError(result)
}

func defaultSettings(userID string) Settings {
	return Settings{
		UserID:               userID,
		StealthMode:          false,
		NotificationsEnabled: true,
		TrackingInterval:     DefaultTrackingInterval,
	}
}

// CreateOrUpdateSettings upserts the settings of a user. An existing row keeps its id and
// only the fields set in update change. A new row starts from the defaults.
func (r *repository) CreateOrUpdateSettings(ctx context.Context, userID string, update SettingsUpdate) (Settings, error) {
	existing, err := r.GetSettings(ctx, userID)

	if errors.Is(err, ErrNotFound) {
		settings := defaultSettings(userID)
		if update.StealthMode != nil {
			settings.StealthMode = *update.StealthMode
		}
		if update.NotificationsEnabled != nil {
			settings.NotificationsEnabled = *update.NotificationsEnabled
		}
		if update.TrackingInterval != nil {
			settings.TrackingInterval = *update.TrackingInterval
		}
		settings.UpdatedAt = time.Now().UTC()

		result := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
			Create(&settings)
		if err := r.mapError(result); err != nil {
			return Settings{}, err
		}

		if result.RowsAffected == 1 {
			return r.GetSettings(ctx, userID)
		}

		// someone else inserted the row first, merge into theirs
		existing, err = r.GetSettings(ctx, userID)
	}

	if err != nil {
		return Settings{}, err
	}

	fields := update.columns()
	fields["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&Settings{}).
		Where("id = ?", existing.ID).
		Updates(fields)
	if err := r.mapError(result); err != nil {
		return Settings{}, err
	}

	return r.GetSettings(ctx, userID)
}
