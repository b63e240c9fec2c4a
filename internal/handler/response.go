package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/roomsense/telemetry-relay/internal/errors"
	"github.com/roomsense/telemetry-relay/internal/httputil"
	"github.com/roomsense/telemetry-relay/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeError logs server-side causes and writes the client-safe body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if appErr, ok := apperrors.AsAppError(err); ok {
		status = httputil.StatusFromCode(appErr.Code)
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	httputil.WriteError(w, err)
}

// RouteNotFound answers unmatched paths with the JSON error envelope.
func RouteNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, apperrors.NotFound("Route"))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatDeviceLog(entry model.DeviceLog) map[string]any {
	return map[string]any{
		"timestamp":   formatTime(entry.RecordedAt),
		"mq2":         entry.MQ2,
		"mq135":       entry.MQ135,
		"occupancy":   entry.Occupancy,
		"circulation": entry.Circulation,
	}
}
