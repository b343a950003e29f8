package events

import (
	"context"
	"errors"
	"fmt"
	"io"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/diwise/device-monitor/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"golang.org/x/sys/unix"
	yaml "gopkg.in/yaml.v2"
)

const CommandStatusUpdatedType string = "devicemonitor.command.statusUpdated"

type EventSender interface {
	CommandStatusUpdated(ctx context.Context, message types.CommandStatusUpdated) error
}

type eventSender struct {
	subscribers map[string][]SubscriberConfig
}

func New(cfg *Config) EventSender {
	e := &eventSender{
		subscribers: make(map[string][]SubscriberConfig),
	}

	if cfg != nil {
		for _, s := range cfg.Notifications {
			e.subscribers[s.Type] = append(e.subscribers[s.Type], s.Subscribers...)
		}
	}

	return e
}

func (e *eventSender) CommandStatusUpdated(ctx context.Context, message types.CommandStatusUpdated) error {
	subscribers, ok := e.subscribers[CommandStatusUpdatedType]
	if !ok || len(subscribers) == 0 {
		return nil
	}

	c, err := cloudevents.NewClientHTTP()
	if err != nil {
		return err
	}

	event := cloudevents.NewEvent()
	event.SetID(fmt.Sprintf("command:%d:%s", message.CommandID, message.Status))
	event.SetTime(message.Timestamp)
	event.SetSource("github.com/diwise/device-monitor")
	event.SetType(CommandStatusUpdatedType)
	event.SetSubject(fmt.Sprintf("device:%d", message.DeviceID))

	err = event.SetData(cloudevents.ApplicationJSON, message)
	if err != nil {
		return err
	}

	logger := logging.GetFromContext(ctx)

	for _, s := range subscribers {
		ctxWithTarget := cloudevents.ContextWithTarget(ctx, s.Endpoint)

		result := c.Send(ctxWithTarget, event)
		if cloudevents.IsUndelivered(result) || errors.Is(result, unix.ECONNREFUSED) {
			logger.Error().Err(result).Msgf("failed to send event to %s", s.Endpoint)
			err = fmt.Errorf("%w", result)
		}
	}

	return err
}

type SubscriberConfig struct {
	ID       string `yaml:"id"`
	Endpoint string `yaml:"endpoint"`
}

type Notification struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Type        string             `yaml:"type"`
	Subscribers []SubscriberConfig `yaml:"subscribers"`
}

type Config struct {
	Notifications []Notification `yaml:"notifications"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := Config{}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
