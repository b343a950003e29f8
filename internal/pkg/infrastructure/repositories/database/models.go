package database

import "time"

const (
	DeviceStatusOnline  string = "online"
	DeviceStatusOffline string = "offline"
	DeviceStatusIdle    string = "idle"
)

const (
	CommandStatusPending  string = "pending"
	CommandStatusExecuted string = "executed"
	CommandStatusFailed   string = "failed"
)

const (
	DefaultTrackingInterval int = 15
)

type User struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	Email           *string   `gorm:"uniqueIndex" json:"email"`
	FirstName       *string   `json:"firstName"`
	LastName        *string   `json:"lastName"`
	ProfileImageURL *string   `json:"profileImageUrl"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type Device struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       string     `gorm:"index;not null" json:"userId"`
	User         *User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Name         string     `gorm:"not null" json:"name"`
	Description  *string    `json:"description"`
	DeviceType   string     `gorm:"not null" json:"deviceType"`
	Platform     string     `gorm:"not null" json:"platform"`
	Status       string     `gorm:"not null" json:"status"`
	LastActivity *time.Time `json:"lastActivity"`
	Battery      *int       `json:"battery"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

type Location struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DeviceID  uint      `gorm:"index;not null" json:"deviceId"`
	Device    *Device   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Latitude  string    `gorm:"not null" json:"latitude"`
	Longitude string    `gorm:"not null" json:"longitude"`
	Address   *string   `json:"address"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
}

type Call struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DeviceID    uint      `gorm:"index;not null" json:"deviceId"`
	Device      *Device   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PhoneNumber string    `gorm:"not null" json:"phoneNumber"`
	CallType    string    `gorm:"not null" json:"callType"`
	Duration    *int      `json:"duration"`
	Timestamp   time.Time `json:"timestamp"`
}

type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DeviceID    uint      `gorm:"index;not null" json:"deviceId"`
	Device      *Device   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PhoneNumber string    `gorm:"not null" json:"phoneNumber"`
	MessageType string    `gorm:"not null" json:"messageType"`
	Content     *string   `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
}

type Photo struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	DeviceID  uint      `gorm:"index;not null" json:"deviceId"`
	Device    *Device   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	PhotoURL  string    `gorm:"not null" json:"photoUrl"`
	Source    *string   `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

type Recording struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DeviceID     uint      `gorm:"index;not null" json:"deviceId"`
	Device       *Device   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	RecordingURL string    `gorm:"not null" json:"recordingUrl"`
	Duration     *int      `json:"duration"`
	Timestamp    time.Time `json:"timestamp"`
}

type Command struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	DeviceID    uint       `gorm:"index;not null" json:"deviceId"`
	Device      *Device    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CommandType string     `gorm:"not null" json:"commandType"`
	Status      string     `gorm:"not null" json:"status"`
	ExecutedAt  *time.Time `json:"executedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type Settings struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               string    `gorm:"uniqueIndex;not null" json:"userId"`
	User                 *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	StealthMode          bool      `json:"stealthMode"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	TrackingInterval     int       `json:"trackingInterval"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// SettingsUpdate carries the fields of a partial settings update. Nil fields are left as is.
type SettingsUpdate struct {
	StealthMode          *bool
	NotificationsEnabled *bool
	TrackingInterval     *int
}

func (u SettingsUpdate) columns() map[string]any {
	fields := map[string]any{}

	if u.StealthMode != nil {
		fields["stealth_mode"] = *u.StealthMode
	}
	if u.NotificationsEnabled != nil {
		fields["notifications_enabled"] = *u.NotificationsEnabled
	}
	if u.TrackingInterval != nil {
		fields["tracking_interval"] = *u.TrackingInterval
	}

	return fields
}
