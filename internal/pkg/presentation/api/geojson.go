package api

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/diwise/device-monitor/pkg/types"
)

type GeoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
}

func (fc GeoJSONFeatureCollection) Byte() ([]byte, error) {
	return json.Marshal(fc)
}

func NewFeatureCollection() *GeoJSONFeatureCollection {
	fc := &GeoJSONFeatureCollection{Type: "FeatureCollection", Features: []GeoJSONFeature{}}
	return fc
}

type GeoJSONFeature struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Geometry   any            `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// NewFeatureCollectionWithLocations converts locations into point features. Coordinates are
// stored as text, so locations whose coordinates are not numbers are left out.
func NewFeatureCollectionWithLocations(locations []types.Location) *GeoJSONFeatureCollection {
	fc := NewFeatureCollection()

	for _, l := range locations {
		f, ok := ConvertLocation(l)
		if ok {
			fc.Features = append(fc.Features, *f)
		}
	}

	return fc
}

func ConvertLocation(l types.Location) (*GeoJSONFeature, bool) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(l.Latitude), 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, false
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(l.Longitude), 64)
	if err != nil || lon < -180 || lon > 180 {
		return nil, false
	}

	properties := map[string]any{
		"deviceId":  l.DeviceID,
		"timestamp": l.Timestamp,
	}
	if l.Address != nil {
		properties["address"] = *l.Address
	}

	return &GeoJSONFeature{
		ID:         strconv.FormatUint(uint64(l.ID), 10),
		Type:       "Feature",
		Geometry:   NewPoint(lon, lat),
		Properties: properties,
	}, true
}

// GeoJSONPropertyPoint is used as the value object for a GeoJSON point geometry
type GeoJSONPropertyPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewPoint creates a point from a WGS84 coordinate
func NewPoint(longitude, latitude float64) GeoJSONPropertyPoint {
	return GeoJSONPropertyPoint{
		Type:        "Point",
		Coordinates: [2]float64{longitude, latitude},
	}
}

func writeCsvWithDevices(w io.Writer, devices []types.Device) error {
	c := csv.NewWriter(w)
	c.Comma = ';'

	err := c.Write([]string{"id", "name", "description", "deviceType", "platform", "status", "battery", "lastActivity"})
	if err != nil {
		return err
	}

	for _, d := range devices {
		description := ""
		if d.Description != nil {
			description = *d.Description
		}

		battery := ""
		if d.Battery != nil {
			battery = strconv.Itoa(*d.Battery)
		}

		lastActivity := ""
		if d.LastActivity != nil {
			lastActivity = d.LastActivity.UTC().Format(time.RFC3339)
		}

		err = c.Write([]string{
			strconv.FormatUint(uint64(d.ID), 10),
			d.Name,
			description,
			d.DeviceType,
			d.Platform,
			d.Status,
			battery,
			lastActivity,
		})
		if err != nil {
			return err
		}
	}

	c.Flush()

	return c.Error()
}
