package watchdog

import (
	"context"
	"io"
	"time"

	"github.com/diwise/device-monitor/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	yaml "gopkg.in/yaml.v2"
)

const (
	statusOnline  string = "online"
	statusIdle    string = "idle"
	statusOffline string = "offline"
)

type Watchdog interface {
	Start(ctx context.Context)
	Stop()
}

// DeviceStore is the part of the application the watchdog needs.
type DeviceStore interface {
	GetDevicesLastActiveBefore(ctx context.Context, t time.Time, statuses ...string) ([]types.Device, error)
	UpdateDevice(ctx context.Context, deviceID uint, patch types.DevicePatch) (types.Device, error)
}

type Settings struct {
	Interval     time.Duration `yaml:"interval"`
	IdleAfter    time.Duration `yaml:"idleAfter"`
	OfflineAfter time.Duration `yaml:"offlineAfter"`
}

type Config struct {
	Watchdog Settings `yaml:"watchdog"`
}

// Enabled reports whether the watchdog should run at all.
func (s Settings) Enabled() bool {
	return s.Interval > 0 && s.IdleAfter > 0 && s.OfflineAfter >= s.IdleAfter
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

type watchdogImpl struct {
	store    DeviceStore
	settings Settings
	done     chan bool
}

func New(store DeviceStore, settings Settings) Watchdog {
	return &watchdogImpl{
		store:    store,
		settings: settings,
		done:     make(chan bool),
	}
}

func (w *watchdogImpl) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *watchdogImpl) Stop() {
	close(w.done)
}

func (w *watchdogImpl) run(ctx context.Context) {
	logger := logging.GetFromContext(ctx)
	logger.Info().Msgf("watching device presence every %s", w.settings.Interval)

	ticker := time.NewTicker(w.settings.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.check(ctx, time.Now().UTC())
		}
	}
}

// check downgrades every device that has been quiet for too long.
func (w *watchdogImpl) check(ctx context.Context, now time.Time) {
	logger := logging.GetFromContext(ctx)

	devices, err := w.store.GetDevicesLastActiveBefore(ctx, now.Add(-w.settings.IdleAfter), statusOnline, statusIdle)
	if err != nil {
		logger.Error().Err(err).Msg("could not list quiet devices")
		return
	}

	for _, d := range devices {
		status, changed := nextStatus(d, now, w.settings)
		if !changed {
			continue
		}

		if _, err := w.store.UpdateDevice(ctx, d.ID, types.DevicePatch{Status: &status}); err != nil {
			logger.Error().Err(err).Uint("deviceID", d.ID).Msgf("could not set status %s", status)
			continue
		}

		logger.Debug().Uint("deviceID", d.ID).Msgf("device is now %s", status)
	}
}

func nextStatus(d types.Device, now time.Time, s Settings) (string, bool) {
	if d.LastActivity == nil || d.Status == statusOffline {
		return d.Status, false
	}

	quiet := now.Sub(*d.LastActivity)

	switch {
	case quiet >= s.OfflineAfter:
		return statusOffline, true
	case quiet >= s.IdleAfter && d.Status == statusOnline:
		return statusIdle, true
	default:
		return d.Status, false
	}
}
