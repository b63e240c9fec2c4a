package model

import "time"

const (
	OTPMin = 100000
	OTPMax = 999999
)

// OTPRecord is the single live pairing code for a device. device_id is the key.
type OTPRecord struct {
	DeviceID string    `db:"device_id" json:"deviceId"`
	OTP      int       `db:"otp" json:"otp"`
	IssuedAt time.Time `db:"issued_at" json:"issuedAt"`
}

// ExpiresAt is the last instant at which the record is still live.
func (r OTPRecord) ExpiresAt(ttl time.Duration) time.Time {
	return r.IssuedAt.Add(ttl)
}

// IsLive reports whether now - issued_at <= ttl.
func (r OTPRecord) IsLive(now time.Time, ttl time.Duration) bool {
	return !now.After(r.ExpiresAt(ttl))
}

type UpsertOTPParams struct {
	DeviceID string
	OTP      int
	IssuedAt time.Time
}
