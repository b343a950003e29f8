package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/diwise/device-monitor/internal/pkg/application/devicemonitor"
	"github.com/diwise/device-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/device-monitor/internal/pkg/presentation/api/auth"
	"github.com/diwise/device-monitor/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/rs/zerolog"
)

// listHandler serves the newest first rows of one of the sub resources of a device.
func listHandler[T any](log zerolog.Logger, resource string, list func(context.Context, uint, ...database.ConditionFunc) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span, requestLogger := startRequest(r, log, "list-"+resource)
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		rows, err := fetchRows(ctx, w, r, requestLogger, resource, list)
		if err != nil {
			return
		}

		writeJSON(w, http.StatusOK, rows)
	}
}

// fetchRows applies the limit of the request to list. When it returns an error the response
// has already been written.
func fetchRows[T any](ctx context.Context, w http.ResponseWriter, r *http.Request, logger zerolog.Logger, resource string, list func(context.Context, uint, ...database.ConditionFunc) ([]T, error)) ([]T, error) {
	device, _ := auth.DeviceFromContext(ctx)

	conditions, err := limitFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return nil, err
	}

	rows, err := list(ctx, device.ID, conditions...)
	if err != nil {
		logger.Error().Err(err).Msgf("unable to fetch %s", resource)
		writeError(w, http.StatusInternalServerError, "Failed to fetch "+resource)
		return nil, err
	}

	return rows, nil
}

func listLocationsHandler(log zerolog.Logger, svc devicemonitor.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span, requestLogger := startRequest(r, log, "list-locations")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		locations, err := fetchRows(ctx, w, r, requestLogger, "locations", svc.GetLocations)
		if err != nil {
			return
		}

		writeLocations(w, r, locations)
	}
}

type dateRangeCtxKey struct{}

type dateRange struct {
	start time.Time
	end   time.Time
}

// requireDateRange rejects requests without a valid startDate and endDate before the device
// is looked up, and stores the parsed range in the request context.
func requireDateRange(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, end, err := dateRangeFromQuery(r)
		if errors.Is(err, errMissingDates) {
			writeError(w, http.StatusBadRequest, "Both startDate and endDate parameters are required")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format")
			return
		}

		ctx := context.WithValue(r.Context(), dateRangeCtxKey{}, dateRange{start: start, end: end})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func locationRangeHandler(log zerolog.Logger, svc devicemonitor.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span, requestLogger := startRequest(r, log, "list-locations-in-range")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		device, _ := auth.DeviceFromContext(ctx)

		between, ok := ctx.Value(dateRangeCtxKey{}).(dateRange)
		if !ok {
			err = errMissingDates
			writeError(w, http.StatusBadRequest, "Both startDate and endDate parameters are required")
			return
		}

		locations, err := svc.GetLocationsByDateRange(ctx, device.ID, between.start, between.end)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to fetch locations")
			writeError(w, http.StatusInternalServerError, "Failed to fetch locations")
			return
		}

		writeLocations(w, r, locations)
	}
}

func writeLocations(w http.ResponseWriter, r *http.Request, locations []types.Location) {
	if !acceptsGeoJSON(r) {
		writeJSON(w, http.StatusOK, locations)
		return
	}

	fc := NewFeatureCollectionWithLocations(locations)

	b, err := fc.Byte()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode locations")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
