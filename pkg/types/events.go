package types

import (
	"encoding/json"
	"time"
)

const contentTypeJSON string = "application/json"

func body(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

type DeviceCreated struct {
	DeviceID  uint      `json:"deviceID"`
	UserID    string    `json:"userID"`
	Timestamp time.Time `json:"timestamp"`
}

func (d *DeviceCreated) ContentType() string {
	return contentTypeJSON
}
func (d *DeviceCreated) TopicName() string {
	return "device.created"
}
func (d *DeviceCreated) Body() []byte {
	return body(d)
}

type DeviceUpdated struct {
	DeviceID  uint      `json:"deviceID"`
	UserID    string    `json:"userID"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (d *DeviceUpdated) ContentType() string {
	return contentTypeJSON
}
func (d *DeviceUpdated) TopicName() string {
	return "device.updated"
}
func (d *DeviceUpdated) Body() []byte {
	return body(d)
}

type DeviceDeleted struct {
	DeviceID  uint      `json:"deviceID"`
	UserID    string    `json:"userID"`
	Timestamp time.Time `json:"timestamp"`
}

func (d *DeviceDeleted) ContentType() string {
	return contentTypeJSON
}
func (d *DeviceDeleted) TopicName() string {
	return "device.deleted"
}
func (d *DeviceDeleted) Body() []byte {
	return body(d)
}

// CommandIssued is sent to the device channel when a user issues a command.
type CommandIssued struct {
	CommandID   uint      `json:"commandID"`
	DeviceID    uint      `json:"deviceID"`
	CommandType string    `json:"commandType"`
	Timestamp   time.Time `json:"timestamp"`
}

func (c *CommandIssued) ContentType() string {
	return contentTypeJSON
}
func (c *CommandIssued) TopicName() string {
	return "device.command"
}
func (c *CommandIssued) Body() []byte {
	return body(c)
}

type CommandStatusUpdated struct {
	CommandID   uint       `json:"commandID"`
	DeviceID    uint       `json:"deviceID"`
	UserID      string     `json:"userID"`
	CommandType string     `json:"commandType"`
	Status      string     `json:"status"`
	ExecutedAt  *time.Time `json:"executedAt,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

func (c *CommandStatusUpdated) ContentType() string {
	return contentTypeJSON
}
func (c *CommandStatusUpdated) TopicName() string {
	return "command.statusUpdated"
}
func (c *CommandStatusUpdated) Body() []byte {
	return body(c)
}

// CommandAcknowledged is reported by a device when it has acted on a command.
type CommandAcknowledged struct {
	CommandID uint      `json:"commandID" validate:"required"`
	Status    string    `json:"status" validate:"required,oneof=executed failed"`
	Timestamp time.Time `json:"timestamp"`
}

func (c *CommandAcknowledged) ContentType() string {
	return contentTypeJSON
}
func (c *CommandAcknowledged) TopicName() string {
	return "device.commandAcknowledged"
}
func (c *CommandAcknowledged) Body() []byte {
	return body(c)
}

type StatusReported struct {
	DeviceID  uint      `json:"deviceID" validate:"required"`
	Status    string    `json:"status" validate:"required,oneof=online offline idle"`
	Battery   *int      `json:"battery,omitempty" validate:"omitempty,min=0,max=100"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *StatusReported) ContentType() string {
	return contentTypeJSON
}
func (s *StatusReported) TopicName() string {
	return "device.status"
}
func (s *StatusReported) Body() []byte {
	return body(s)
}

type LocationReported struct {
	DeviceID  uint      `json:"deviceID" validate:"required"`
	Latitude  string    `json:"latitude" validate:"required"`
	Longitude string    `json:"longitude" validate:"required"`
	Address   *string   `json:"address,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (l *LocationReported) ContentType() string {
	return contentTypeJSON
}
func (l *LocationReported) TopicName() string {
	return "device.location"
}
func (l *LocationReported) Body() []byte {
	return body(l)
}

type CallReported struct {
	DeviceID    uint      `json:"deviceID" validate:"required"`
	PhoneNumber string    `json:"phoneNumber" validate:"required"`
	CallType    string    `json:"callType" validate:"required,oneof=incoming outgoing missed"`
	Duration    *int      `json:"duration,omitempty" validate:"omitempty,min=0"`
	Timestamp   time.Time `json:"timestamp"`
}

func (c *CallReported) ContentType() string {
	return contentTypeJSON
}
func (c *CallReported) TopicName() string {
	return "device.call"
}
func (c *CallReported) Body() []byte {
	return body(c)
}

type MessageReported struct {
	DeviceID    uint      `json:"deviceID" validate:"required"`
	PhoneNumber string    `json:"phoneNumber" validate:"required"`
	MessageType string    `json:"messageType" validate:"required,oneof=incoming outgoing"`
	Content     *string   `json:"content,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func (m *MessageReported) ContentType() string {
	return contentTypeJSON
}
func (m *MessageReported) TopicName() string {
	return "device.message"
}
func (m *MessageReported) Body() []byte {
	return body(m)
}

type PhotoReported struct {
	DeviceID  uint      `json:"deviceID" validate:"required"`
	PhotoURL  string    `json:"photoUrl" validate:"required"`
	Source    *string   `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (p *PhotoReported) ContentType() string {
	return contentTypeJSON
}
func (p *PhotoReported) TopicName() string {
	return "device.photo"
}
func (p *PhotoReported) Body() []byte {
	return body(p)
}

type RecordingReported struct {
	DeviceID     uint      `json:"deviceID" validate:"required"`
	RecordingURL string    `json:"recordingUrl" validate:"required"`
	Duration     *int      `json:"duration,omitempty" validate:"omitempty,min=0"`
	Timestamp    time.Time `json:"timestamp"`
}

func (r *RecordingReported) ContentType() string {
	return contentTypeJSON
}
func (r *RecordingReported) TopicName() string {
	return "device.recording"
}
func (r *RecordingReported) Body() []byte {
	return body(r)
}
