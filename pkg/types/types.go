package types

import (
	"time"
)

type User struct {
	ID              string    `json:"id"`
	Email           *string   `json:"email"`
	FirstName       *string   `json:"firstName"`
	LastName        *string   `json:"lastName"`
	ProfileImageURL *string   `json:"profileImageUrl"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Device struct {
	ID           uint       `json:"id"`
	UserID       string     `json:"userId"`
	Name         string     `json:"name"`
	Description  *string    `json:"description"`
	DeviceType   string     `json:"deviceType"`
	Platform     string     `json:"platform"`
	Status       string     `json:"status"`
	LastActivity *time.Time `json:"lastActivity"`
	Battery      *int       `json:"battery"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Location struct {
	ID        uint      `json:"id"`
	DeviceID  uint      `json:"deviceId"`
	Latitude  string    `json:"latitude"`
	Longitude string    `json:"longitude"`
	Address   *string   `json:"address"`
	Timestamp time.Time `json:"timestamp"`
}

type Call struct {
	ID          uint      `json:"id"`
	DeviceID    uint      `json:"deviceId"`
	PhoneNumber string    `json:"phoneNumber"`
	CallType    string    `json:"callType"`
	Duration    *int      `json:"duration"`
	Timestamp   time.Time `json:"timestamp"`
}

type Message struct {
	ID          uint      `json:"id"`
	DeviceID    uint      `json:"deviceId"`
	PhoneNumber string    `json:"phoneNumber"`
	MessageType string    `json:"messageType"`
	Content     *string   `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

type Photo struct {
	ID        uint      `json:"id"`
	DeviceID  uint      `json:"deviceId"`
	PhotoURL  string    `json:"photoUrl"`
	Source    *string   `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

type Recording struct {
	ID           uint      `json:"id"`
	DeviceID     uint      `json:"deviceId"`
	RecordingURL string    `json:"recordingUrl"`
	Duration     *int      `json:"duration"`
	Timestamp    time.Time `json:"timestamp"`
}

type Command struct {
	ID          uint       `json:"id"`
	DeviceID    uint       `json:"deviceId"`
	CommandType string     `json:"commandType"`
	Status      string     `json:"status"`
	ExecutedAt  *time.Time `json:"executedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Settings struct {
	ID                   uint      `json:"id"`
	UserID               string    `json:"userId"`
	StealthMode          bool      `json:"stealthMode"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	TrackingInterval     int       `json:"trackingInterval"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// NewDevice is the body of a request to register a device.
type NewDevice struct {
	Name         string     `json:"name" validate:"required"`
	Description  *string    `json:"description,omitempty"`
	DeviceType   string     `json:"deviceType" validate:"required"`
	Platform     string     `json:"platform" validate:"required"`
	Status       *string    `json:"status,omitempty" validate:"omitempty,oneof=online offline idle"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
	Battery      *int       `json:"battery,omitempty" validate:"omitempty,min=0,max=100"`
}

// DevicePatch is a partial device update. Fields left out of the request are nil.
type DevicePatch struct {
	Name         *string    `json:"name,omitempty" validate:"omitempty,min=1"`
	Description  *string    `json:"description,omitempty"`
	DeviceType   *string    `json:"deviceType,omitempty" validate:"omitempty,min=1"`
	Platform     *string    `json:"platform,omitempty" validate:"omitempty,min=1"`
	Status       *string    `json:"status,omitempty" validate:"omitempty,oneof=online offline idle"`
	LastActivity *time.Time `json:"lastActivity,omitempty"`
	Battery      *int       `json:"battery,omitempty" validate:"omitempty,min=0,max=100"`
}

type NewCommand struct {
	CommandType string `json:"commandType" validate:"required"`
}

type SettingsPatch struct {
	StealthMode          *bool `json:"stealthMode,omitempty"`
	NotificationsEnabled *bool `json:"notificationsEnabled,omitempty"`
	TrackingInterval     *int  `json:"trackingInterval,omitempty" validate:"omitempty,min=1"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non 2xx api response.
type ErrorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}
