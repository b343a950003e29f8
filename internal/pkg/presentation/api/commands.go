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

func createCommandHandler(log zerolog.Logger, svc devicemonitor.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span, requestLogger := startRequest(r, log, "create-command")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		device, _ := auth.DeviceFromContext(ctx)

		var command types.NewCommand
		err = decodeBody(r, &command)
		if err != nil {
			writeBadRequest(w, "Invalid command data", err)
			return
		}

		created, err := svc.CreateCommand(ctx, device.ID, command)
		if isValidationError(err) {
			writeBadRequest(w, "Invalid command data", err)
			return
		}
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Device not found")
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to create command")
			writeError(w, http.StatusInternalServerError, "Failed to create command")
			return
		}

		requestLogger.Info().Uint("commandID", created.ID).Str("commandType", created.CommandType).Msg("command created")

		writeJSON(w, http.StatusCreated, created)
	}
}

func listUserCommandsHandler(log zerolog.Logger, svc devicemonitor.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span, requestLogger := startRequest(r, log, "list-user-commands")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		userID, _ := auth.UserIDFromContext(ctx)

		conditions, err := limitFromQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}

		commands, err := svc.GetCommandsByUser(ctx, userID, conditions...)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to fetch commands")
			writeError(w, http.StatusInternalServerError, "Failed to fetch commands")
			return
		}

		writeJSON(w, http.StatusOK, commands)
	}
}
