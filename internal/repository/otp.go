package repository

import (
	"context"
	"time"

	"github.com/roomsense/telemetry-relay/internal/database"
	"github.com/roomsense/telemetry-relay/internal/model"
)

// OTPRepository is the credential store. Every operation is a single
// statement so concurrent issuers, resolvers and the reaper never race on a
// read-modify-write sequence.
type OTPRepository interface {
	Upsert(ctx context.Context, params model.UpsertOTPParams) (*model.OTPRecord, error)
	FindLiveByOTP(ctx context.Context, otp int, cutoff time.Time) (*model.OTPRecord, error)
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type otpRepo struct {
	db database.DBTX
}

func NewOTPRepository(db database.DBTX) OTPRepository {
	return &otpRepo{db: db}
}

// Upsert replaces whatever record the device had.
func (r *otpRepo) Upsert(ctx context.Context, params model.UpsertOTPParams) (*model.OTPRecord, error) {
	var rec model.OTPRecord
	err := r.db.GetContext(ctx, &rec, `
		INSERT INTO device_otp (device_id, otp, issued_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_id) DO UPDATE SET
			otp = EXCLUDED.otp,
			issued_at = EXCLUDED.issued_at
		RETURNING device_id, otp, issued_at
	`, params.DeviceID, params.OTP, params.IssuedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindLiveByOTP returns the record issued at or after cutoff. When several
// devices hold the same code the most recently issued one wins, then the
// lowest device_id.
func (r *otpRepo) FindLiveByOTP(ctx context.Context, otp int, cutoff time.Time) (*model.OTPRecord, error) {
	var rec model.OTPRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT device_id, otp, issued_at FROM device_otp
		WHERE otp = $1 AND issued_at >= $2
		ORDER BY issued_at DESC, device_id ASC
		LIMIT 1
	`, otp, cutoff)
	return HandleNotFound(&rec, err)
}

func (r *otpRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM device_otp
		WHERE issued_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
