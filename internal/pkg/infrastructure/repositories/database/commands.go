package database

import (
	"context"
	"errors"
	"time"
)

func (r *repository) GetCommand(ctx context.Context, commandID uint) (Command, error) {
	command := Command{}

	result := r.db.WithContext(ctx).First(&command, commandID)

	return command, r.mapError(result)
}

func (r *repository) GetCommands(ctx context.Context, deviceID uint, conditions ...ConditionFunc) ([]Command, error) {
	return listByDevice[Command](ctx, r, deviceID, "created_at", conditions...)
}

// GetCommandsByUser returns the commands of every device owned by the user, newest first.
func (r *repository) GetCommandsByUser(ctx context.Context, userID string, conditions ...ConditionFunc) ([]Command, error) {
	c := newCondition(conditions...)
	if c.empty() {
		return []Command{}, nil
	}

	var commands []Command

	query := r.db.WithContext(ctx).
		Model(&Command{}).
		Select("commands.*").
		Joins("JOIN devices ON devices.id = commands.device_id").
		Where("devices.user_id = ?", userID).
		Order("commands.created_at DESC").
		Order("commands.id DESC")

	result := c.scope(query).Find(&commands)

	return commands, r.mapError(result)
}

func (r *repository) CreateCommand(ctx context.Context, command Command) (Command, error) {
	command.ID = 0
	command.Status = CommandStatusPending
	command.ExecutedAt = nil
	command.CreatedAt = timestampOrNow(command.CreatedAt)

	err := add(ctx, r, &command)
	return command, err
}

// UpdateCommandStatus moves a pending command to status. Only pending commands are updated,
// so concurrent completions of the same command succeed at most once. executedAt is set to
// at when status is executed.
func (r *repository) UpdateCommandStatus(ctx context.Context, commandID uint, status string, at time.Time) (Command, error) {
	fields := map[string]any{
		"status": status,
	}
	if status == CommandStatusExecuted {
		fields["executed_at"] = at.UTC()
	}

	result := r.db.WithContext(ctx).
		Model(&Command{}).
		Where("id = ? AND status = ?", commandID, CommandStatusPending).
		Updates(fields)
	if err := r.mapError(result); err != nil {
		return Command{}, err
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetCommand(ctx, commandID); errors.Is(err, ErrNotFound) {
			return Command{}, ErrNotFound
		}
		return Command{}, ErrCommandNotPending
	}

	return r.GetCommand(ctx, commandID)
}
