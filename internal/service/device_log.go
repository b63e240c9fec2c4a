package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/roomsense/telemetry-relay/internal/clock"
	"github.com/roomsense/telemetry-relay/internal/config"
	apperrors "github.com/roomsense/telemetry-relay/internal/errors"
	"github.com/roomsense/telemetry-relay/internal/model"
	"github.com/roomsense/telemetry-relay/internal/repository"
)

// Accepted layouts for the leading timestamp field of a log line, tried in order.
var logTimestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
}

const logValueFields = 5

// AppendLogRequest is the body of POST /add-log, either JSON or form encoded.
type AppendLogRequest struct {
	DeviceID string `json:"device_id" form:"device_id" validate:"required"`
	Values   string `json:"values" form:"values" validate:"required"`
}

type DeviceLogService struct {
	repo         repository.DeviceLogRepository
	clock        clock.Clocker
	validate     *validator.Validate
	storeTimeout time.Duration
	retention    time.Duration
}

func NewDeviceLogService(
	repo repository.DeviceLogRepository,
	clk clock.Clocker,
	storeTimeout time.Duration,
	retention time.Duration,
) *DeviceLogService {
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}
	return &DeviceLogService{
		repo:         repo,
		clock:        clk,
		validate:     newValidator(),
		storeTimeout: storeTimeout,
		retention:    retention,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Append stores one reading line for a device.
func (s *DeviceLogService) Append(ctx context.Context, req AppendLogRequest) (*model.DeviceLog, error) {
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	req.Values = strings.TrimSpace(req.Values)

	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}

	params, err := ParseLogValues(req.Values)
	if err != nil {
		return nil, err
	}
	params.DeviceID = req.DeviceID

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	entry, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("create device log: %w", err))
	}

	log.Debug().
		Str("deviceId", entry.DeviceID).
		Str("logId", entry.ID).
		Time("recordedAt", entry.RecordedAt).
		Msg("device log stored")

	return entry, nil
}

// Recent returns up to config.DeviceLogPageSize rows for deviceID, newest first.
func (s *DeviceLogService) Recent(ctx context.Context, deviceID string) ([]model.DeviceLog, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, apperrors.MissingRequired("device_id")
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	logs, err := s.repo.FindRecentByDeviceID(ctx, deviceID, config.DeviceLogPageSize)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("find device logs: %w", err))
	}
	return logs, nil
}

// PruneExpired removes rows older than the retention window. Zero retention keeps everything.
func (s *DeviceLogService) PruneExpired(ctx context.Context) (int64, error) {
	if s.retention <= 0 {
		return 0, nil
	}
	return s.repo.DeleteOlderThan(ctx, s.clock.Now().Add(-s.retention))
}

func (s *DeviceLogService) RetentionEnabled() bool {
	return s.retention > 0
}

// ParseLogValues splits "timestamp,mq2,mq135,occupancy,circulation".
func ParseLogValues(values string) (model.CreateDeviceLogParams, error) {
	var params model.CreateDeviceLogParams

	fields := strings.Split(values, ",")
	if len(fields) < logValueFields {
		return params, apperrors.InvalidInput("values",
			fmt.Sprintf("expected %d comma separated fields, got %d", logValueFields, len(fields)))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	ts, err := parseLogTimestamp(fields[0])
	if err != nil {
		return params, apperrors.InvalidInput("timestamp", "unrecognized format")
	}
	params.RecordedAt = ts

	readings := []struct {
		name string
		dst  *float64
	}{
		{"mq2", &params.MQ2},
		{"mq135", &params.MQ135},
		{"occupancy", &params.Occupancy},
		{"circulation", &params.Circulation},
	}
	for i, r := range readings {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return params, apperrors.InvalidInput(r.name, "must be numeric")
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return params, apperrors.InvalidInput(r.name, "must be finite")
		}
		*r.dst = v
	}

	return params, nil
}

func parseLogTimestamp(raw string) (time.Time, error) {
	for _, layout := range logTimestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.ValidationError("Invalid request").WithCause(err)
	}

	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fe.Tag()
	}

	if len(fieldErrs) == 1 && fieldErrs[0].Tag() == "required" {
		return apperrors.MissingRequired(fieldErrs[0].Field())
	}
	return apperrors.ValidationError("Invalid request").WithDetails(details)
}
