package database

import (
	"context"
	"time"

	"gorm.io/gorm/clause"
)

func (r *repository) GetUser(ctx context.Context, userID string) (User, error) {
	user := User{}

	result := r.db.WithContext(ctx).First(&user, "id = ?", userID)

	return user, r.mapError(result)
}

// UpsertUser inserts the user or, if a user with the same id exists, refreshes its
// profile fields while keeping createdAt.
func (r *repository) UpsertUser(ctx context.Context, user User) (User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "first_name", "last_name", "profile_image_url", "updated_at"}),
	}).Create(&user)
	if err := r.mapError(result); err != nil {
		return User{}, err
	}

	return r.GetUser(ctx, user.ID)
}
