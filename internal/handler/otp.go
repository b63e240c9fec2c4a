package handler

import (
	"net/http"

	"github.com/roomsense/telemetry-relay/internal/audit"
	apperrors "github.com/roomsense/telemetry-relay/internal/errors"
	"github.com/roomsense/telemetry-relay/internal/middleware"
	"github.com/roomsense/telemetry-relay/internal/service"
)

type OTPHandler struct {
	otpService *service.OTPService
}

func NewOTPHandler(otpService *service.OTPService) *OTPHandler {
	return &OTPHandler{otpService: otpService}
}

// GET /connect-id/otp?device_id=
// Device role. Replaces any code the device held before.
func (h *OTPHandler) IssueOTP(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device_id")

	rec, err := h.otpService.Issue(r.Context(), deviceID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventOTPIssue,
		Role:     middleware.GetRole(r.Context()).String(),
		DeviceID: rec.DeviceID,
		Details:  map[string]interface{}{"otp": service.MaskOTP(rec.OTP)},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"otp":       rec.OTP,
		"expiresAt": formatTime(rec.ExpiresAt(h.otpService.TTL())),
	})
}

// GET /connect-id/uid?otp=
// Client role. Expired and unknown codes are both 404.
func (h *OTPHandler) ResolveOTP(w http.ResponseWriter, r *http.Request) {
	otp := r.URL.Query().Get("otp")

	deviceID, err := h.otpService.Resolve(r.Context(), otp)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeInvalidOTP) {
			audit.LogFromRequest(r, audit.Event{
				Type: audit.EventOTPResolveFailure,
				Role: middleware.GetRole(r.Context()).String(),
			})
		}
		writeError(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventOTPResolve,
		Role:     middleware.GetRole(r.Context()).String(),
		DeviceID: deviceID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"device_id": deviceID})
}
