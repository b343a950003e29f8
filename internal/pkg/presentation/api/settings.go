package api

import (
	"net/http"

	"github.com/diwise/device-monitor/internal/pkg/application/devicemonitor"
	"github.com/diwise/device-monitor/internal/pkg/presentation/api/auth"
	"github.com/diwise/device-monitor/pkg/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/rs/zerolog"
)

func getSettingsHandler(log zerolog.Logger, svc devicemonitor.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span, requestLogger := startRequest(r, log, "get-settings")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		userID, _ := auth.UserIDFromContext(ctx)

		settings, err := svc.GetSettings(ctx, userID)
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to fetch settings")
			writeError(w, http.StatusInternalServerError, "Failed to fetch settings")
			return
		}

		writeJSON(w, http.StatusOK, settings)
	}
}

func updateSettingsHandler(log zerolog.Logger, svc devicemonitor.DeviceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span, requestLogger := startRequest(r, log, "update-settings")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		userID, _ := auth.UserIDFromContext(ctx)

		var patch types.SettingsPatch
		err = decodeBody(r, &patch)
		if err != nil {
			writeBadRequest(w, "Invalid settings data", err)
			return
		}

		settings, err := svc.UpdateSettings(ctx, userID, patch)
		if isValidationError(err) {
			writeBadRequest(w, "Invalid settings data", err)
			return
		}
		if err != nil {
			requestLogger.Error().Err(err).Msg("unable to update settings")
			writeError(w, http.StatusInternalServerError, "Failed to update settings")
			return
		}

		writeJSON(w, http.StatusOK, settings)
	}
}
