package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/roomsense/telemetry-relay/internal/model"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type mockOTPRepo struct {
	mock.Mock
}

func (m *mockOTPRepo) Upsert(ctx context.Context, params model.UpsertOTPParams) (*model.OTPRecord, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OTPRecord), args.Error(1)
}

func (m *mockOTPRepo) FindLiveByOTP(ctx context.Context, otp int, cutoff time.Time) (*model.OTPRecord, error) {
	args := m.Called(ctx, otp, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OTPRecord), args.Error(1)
}

func (m *mockOTPRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type mockDeviceLogRepo struct {
	mock.Mock
}

func (m *mockDeviceLogRepo) Create(ctx context.Context, params model.CreateDeviceLogParams) (*model.DeviceLog, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DeviceLog), args.Error(1)
}

func (m *mockDeviceLogRepo) FindRecentByDeviceID(ctx context.Context, deviceID string, limit int) ([]model.DeviceLog, error) {
	args := m.Called(ctx, deviceID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DeviceLog), args.Error(1)
}

func (m *mockDeviceLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(ctx context.Context) error { return s.err }
