package handler

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/roomsense/telemetry-relay/internal/audit"
	apperrors "github.com/roomsense/telemetry-relay/internal/errors"
	"github.com/roomsense/telemetry-relay/internal/middleware"
	"github.com/roomsense/telemetry-relay/internal/service"
)

type DeviceLogHandler struct {
	logService *service.DeviceLogService
}

func NewDeviceLogHandler(logService *service.DeviceLogService) *DeviceLogHandler {
	return &DeviceLogHandler{logService: logService}
}

// POST /add-log
// Device role. Accepts JSON or form-encoded device_id and values.
func (h *DeviceLogHandler) AddLog(w http.ResponseWriter, r *http.Request) {
	req, err := decodeAppendLog(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := h.logService.Append(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventLogAppend,
		Role:     middleware.GetRole(r.Context()).String(),
		DeviceID: entry.DeviceID,
		Details:  map[string]interface{}{"log_id": entry.ID},
	})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /device-log?device_id=
// Client role. At most one page, newest first.
func (h *DeviceLogHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.logService.Recent(r.Context(), r.URL.Query().Get("device_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	result := make([]map[string]any, 0, len(logs))
	for _, entry := range logs {
		result = append(result, formatDeviceLog(entry))
	}

	writeJSON(w, http.StatusOK, result)
}

func decodeAppendLog(r *http.Request) (service.AppendLogRequest, error) {
	var req service.AppendLogRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, apperrors.ValidationError("Invalid request body").WithCause(err)
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, apperrors.ValidationError("Invalid request body").WithCause(err)
	}
	req.DeviceID = r.FormValue("device_id")
	req.Values = r.FormValue("values")
	return req, nil
}
