package api

import (
	"errors"
	"net/http"

	"github.com/diwise/device-monitor/internal/pkg/application/devicemonitor"
	"github.com/diwise/device-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/device-monitor/internal/pkg/presentation/api/auth"
	"github.com/diwise/device-monitor/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/rs/zerolog"
)

func getCurrentUserHandler(log zerolog.Logger, svc devicemonitor.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span, requestLogger := startRequest(r, log, "get-current-user")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		userID, _ := auth.UserIDFromContext(ctx)

		user, err := svc.GetUser(ctx, userID)
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to fetch user")
			writeError(w, http.StatusInternalServerError, "Failed to fetch user")
			return
		}

		writeJSON(w, http.StatusOK, user)
	}
}

func listDevicesHandler(log zerolog.Logger, svc devicemonitor.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span, requestLogger := startRequest(r, log, "list-devices")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		userID, _ := auth.UserIDFromContext(ctx)

		devices, err := svc.GetDevices(ctx, userID)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to fetch devices")
			writeError(w, http.StatusInternalServerError, "Failed to fetch devices")
			return
		}

		if r.Header.Get("Accept") == "text/csv" {
			w.Header().Set("Content-Type", "text/csv")
			w.WriteHeader(http.StatusOK)
			err = writeCsvWithDevices(w, devices)
			if err != nil {
				requestLogger.Error().Err(err).Msg("unable to write csv")
			}
			return
		}

		writeJSON(w, http.StatusOK, devices)
	}
}

func createDeviceHandler(log zerolog.Logger, svc devicemonitor.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span, requestLogger := startRequest(r, log, "create-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		userID, _ := auth.UserIDFromContext(ctx)

		var device types.NewDevice
		err = decodeBody(r, &device)
		if err != nil {
			writeBadRequest(w, "Invalid device data", err)
			return
		}

		created, err := svc.CreateDevice(ctx, userID, device)
		if isValidationError(err) {
			writeBadRequest(w, "Invalid device data", err)
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to create device")
			writeError(w, http.StatusInternalServerError, "Failed to create device")
			return
		}

		requestLogger.Info().Uint("deviceID", created.ID).Msg("device created")

		writeJSON(w, http.StatusCreated, created)
	}
}

func getDeviceHandler(log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		device, _ := auth.DeviceFromContext(r.Context())
		writeJSON(w, http.StatusOK, device)
	}
}

func updateDeviceHandler(log zerolog.Logger, svc devicemonitor.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span, requestLogger := startRequest(r, log, "update-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		device, _ := auth.DeviceFromContext(ctx)

		var patch types.DevicePatch
		err = decodeBody(r, &patch)
		if err != nil {
			writeBadRequest(w, "Invalid device data", err)
			return
		}

		updated, err := svc.UpdateDevice(ctx, device.ID, patch)
		if isValidationError(err) {
			writeBadRequest(w, "Invalid device data", err)
			return
		}
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Device not found")
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to update device")
			writeError(w, http.StatusInternalServerError, "Failed to update device")
			return
		}

		writeJSON(w, http.StatusOK, updated)
	}
}

func deleteDeviceHandler(log zerolog.Logger, svc devicemonitor.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span, requestLogger := startRequest(r, log, "delete-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		device, _ := auth.DeviceFromContext(ctx)

		err = svc.DeleteDevice(ctx, device.ID)
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Device not found")
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to delete device")
			writeError(w, http.StatusInternalServerError, "Failed to delete device")
			return
		}

		requestLogger.Info().Msg("device deleted")

		w.WriteHeader(http.StatusNoContent)
	}
}
