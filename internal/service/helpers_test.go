package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/roomsense/telemetry-relay/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memOTPRepo mirrors the SQL statements of the postgres repository.
type memOTPRepo struct {
	mu      sync.Mutex
	records map[string]model.OTPRecord
	calls   int
}

func newMemOTPRepo() *memOTPRepo {
	return &memOTPRepo{records: make(map[string]model.OTPRecord)}
}

func (m *memOTPRepo) Upsert(ctx context.Context, params model.UpsertOTPParams) (*model.OTPRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	rec := model.OTPRecord{DeviceID: params.DeviceID, OTP: params.OTP, IssuedAt: params.IssuedAt}
	m.records[params.DeviceID] = rec
	return &rec, nil
}

func (m *memOTPRepo) FindLiveByOTP(ctx context.Context, otp int, cutoff time.Time) (*model.OTPRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	var best *model.OTPRecord
	for _, rec := range m.records {
		if rec.OTP != otp || rec.IssuedAt.Before(cutoff) {
			continue
		}
		if best == nil ||
			rec.IssuedAt.After(best.IssuedAt) ||
			(rec.IssuedAt.Equal(best.IssuedAt) && rec.DeviceID < best.DeviceID) {
			r := rec
			best = &r
		}
	}
	return best, nil
}

func (m *memOTPRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	var n int64
	for id, rec := range m.records {
		if rec.IssuedAt.Before(cutoff) {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *memOTPRepo) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

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

// sequence returns a generator that yields codes in order.
func sequence(codes ...int) OTPGenerator {
	var mu sync.Mutex
	i := 0
	return func() (int, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
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
