package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/roomsense/telemetry-relay/internal/database"
	"github.com/roomsense/telemetry-relay/internal/model"
)

type DeviceLogRepository interface {
	Create(ctx context.Context, params model.CreateDeviceLogParams) (*model.DeviceLog, error)
	FindRecentByDeviceID(ctx context.Context, deviceID string, limit int) ([]model.DeviceLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type deviceLogRepo struct {
	db database.DBTX
}

func NewDeviceLogRepository(db database.DBTX) DeviceLogRepository {
	return &deviceLogRepo{db: db}
}

func (r *deviceLogRepo) Create(ctx context.Context, params model.CreateDeviceLogParams) (*model.DeviceLog, error) {
	var entry model.DeviceLog
	err := r.db.GetContext(ctx, &entry, `
		INSERT INTO device_logs (id, device_id, recorded_at, mq2, mq135, occupancy, circulation)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *
	`, uuid.NewString(), params.DeviceID, params.RecordedAt,
		params.MQ2, params.MQ135, params.Occupancy, params.Circulation)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindRecentByDeviceID returns newest rows first.
func (r *deviceLogRepo) FindRecentByDeviceID(ctx context.Context, deviceID string, limit int) ([]model.DeviceLog, error) {
	logs := []model.DeviceLog{}
	err := r.db.SelectContext(ctx, &logs, `
		SELECT * FROM device_logs
		WHERE device_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`, deviceID, limit)
	return logs, err
}

func (r *deviceLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM device_logs
		WHERE recorded_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
