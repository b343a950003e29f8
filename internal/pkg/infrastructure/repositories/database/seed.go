package database

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

// Seed loads demo devices from a ';' separated file with a header row and the columns
// userId;email;name;description;deviceType;platform;status;battery
// Users are created when missing. A device whose name already exists for the user is skipped.
func (r *repository) Seed(ctx context.Context, reader io.Reader) error {
	c := csv.NewReader(reader)
	c.Comma = ';'

	rows, err := c.ReadAll()
	if err != nil {
		return err
	}

	records, err := getRecordsFromRows(rows)
	if err != nil {
		return err
	}

	log := logging.GetFromContext(ctx)
	log.Info().Msgf("loaded %d devices from file", len(records))

	for _, record := range records {
		logger := log.With().Str("userID", record.userID).Str("name", record.name).Logger()

		if _, err := r.GetUser(ctx, record.userID); errors.Is(err, ErrNotFound) {
			if _, err = r.UpsertUser(ctx, record.User()); err != nil {
				logger.Error().Err(err).Msg("could not seed user")
				continue
			}
		} else if err != nil {
			logger.Error().Err(err).Msg("unable to check if user exists")
			continue
		}

		var count int64
		result := r.db.WithContext(ctx).Model(&Device{}).
			Where("user_id = ? AND name = ?", record.userID, record.name).
			Count(&count)
		if result.Error != nil {
			logger.Error().Err(result.Error).Msg("unable to check if device exists")
			continue
		}
		if count > 0 {
			continue
		}

		if _, err := r.CreateDevice(ctx, record.Device()); err != nil {
			logger.Error().Err(err).Msg("could not seed device")
		}
	}

	return nil
}

type deviceRecord struct {
	userID      string
	email       string
	name        string
	description string
	deviceType  string
	platform    string
	status      string
	battery     *int
}

func (dr deviceRecord) User() User {
	u := User{ID: dr.userID}
	if dr.email != "" {
		email := dr.email
		u.Email = &email
	}
	return u
}

func (dr deviceRecord) Device() Device {
	d := Device{
		UserID:     dr.userID,
		Name:       dr.name,
		DeviceType: dr.deviceType,
		Platform:   dr.platform,
		Status:     dr.status,
		Battery:    dr.battery,
	}
	if dr.description != "" {
		description := dr.description
		d.Description = &description
	}
	return d
}

func newDeviceRecord(r []string) (deviceRecord, error) {
	if len(r) != 8 {
		return deviceRecord{}, fmt.Errorf("expected 8 columns, found %d", len(r))
	}

	dr := deviceRecord{
		userID:      strings.TrimSpace(r[0]),
		email:       strings.TrimSpace(r[1]),
		name:        strings.TrimSpace(r[2]),
		description: strings.TrimSpace(r[3]),
		deviceType:  strings.ToLower(strings.TrimSpace(r[4])),
		platform:    strings.TrimSpace(r[5]),
		status:      strings.ToLower(strings.TrimSpace(r[6])),
	}

	if b := strings.TrimSpace(r[7]); b != "" {
		battery, err := strconv.Atoi(b)
		if err != nil {
			return deviceRecord{}, fmt.Errorf("row for %s contains invalid battery %s", dr.name, b)
		}
		dr.battery = &battery
	}

	err := validateDeviceRecord(dr)
	if err != nil {
		return deviceRecord{}, err
	}

	return dr, nil
}

func validateDeviceRecord(r deviceRecord) error {
	if r.userID == "" || r.name == "" || r.deviceType == "" || r.platform == "" {
		return fmt.Errorf("row for %q is missing a required column", r.name)
	}

	switch r.status {
	case "", DeviceStatusOnline, DeviceStatusOffline, DeviceStatusIdle:
	default:
		return fmt.Errorf("row for %s contains invalid status %s", r.name, r.status)
	}

	if r.battery != nil && (*r.battery < 0 || *r.battery > 100) {
		return fmt.Errorf("row for %s contains battery level out of range", r.name)
	}

	return nil
}

func getRecordsFromRows(rows [][]string) ([]deviceRecord, error) {
	records := []deviceRecord{}

	for i, row := range rows {
		if i == 0 {
			continue
		}
		rec, err := newDeviceRecord(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}
