package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/roomsense/telemetry-relay/internal/clock"
	apperrors "github.com/roomsense/telemetry-relay/internal/errors"
	"github.com/roomsense/telemetry-relay/internal/model"
	"github.com/roomsense/telemetry-relay/internal/repository"
	"github.com/roomsense/telemetry-relay/internal/util"
)

const (
	DefaultOTPTTL       = 10 * time.Minute
	DefaultStoreTimeout = 5 * time.Second

	otpDigits = 6
)

// OTPGenerator returns a code in [model.OTPMin, model.OTPMax].
type OTPGenerator func() (int, error)

// OTPService issues pairing codes for devices and resolves them back to a
// device identifier for clients. Resolution never consumes the code.
type OTPService struct {
	repo         repository.OTPRepository
	clock        clock.Clocker
	ttl          time.Duration
	storeTimeout time.Duration
	generate     OTPGenerator
}

type OTPServiceOption func(*OTPService)

func WithOTPGenerator(gen OTPGenerator) OTPServiceOption {
	return func(s *OTPService) {
		s.generate = gen
	}
}

func WithStoreTimeout(d time.Duration) OTPServiceOption {
	return func(s *OTPService) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

func NewOTPService(
	repo repository.OTPRepository,
	clk clock.Clocker,
	ttl time.Duration,
	opts ...OTPServiceOption,
) *OTPService {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	s := &OTPService{
		repo:         repo,
		clock:        clk,
		ttl:          ttl,
		storeTimeout: DefaultStoreTimeout,
		generate:     GenerateOTP,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *OTPService) TTL() time.Duration {
	return s.ttl
}

// Issue generates a fresh code for deviceID and overwrites any previous one.
// Retrying after a storage error is safe.
func (s *OTPService) Issue(ctx context.Context, deviceID string) (*model.OTPRecord, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, apperrors.MissingRequired("device_id")
	}

	code, err := s.generate()
	if err != nil {
		return nil, apperrors.Internal("Failed to generate OTP").WithCause(err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rec, err := s.repo.Upsert(ctx, model.UpsertOTPParams{
		DeviceID: deviceID,
		OTP:      code,
		IssuedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("upsert otp: %w", err))
	}

	log.Info().
		Str("deviceId", deviceID).
		Str("otp", MaskOTP(code)).
		Time("expiresAt", rec.ExpiresAt(s.ttl)).
		Msg("otp issued")

	return rec, nil
}

// Resolve returns the device that currently holds otp. Unknown and expired
// codes produce the same InvalidOTP error.
func (s *OTPService) Resolve(ctx context.Context, otp string) (string, error) {
	code, err := ParseOTP(otp)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	cutoff := s.clock.Now().Add(-s.ttl)
	rec, err := s.repo.FindLiveByOTP(ctx, code, cutoff)
	if err != nil {
		return "", apperrors.Database(fmt.Errorf("find otp: %w", err))
	}

	if rec == nil {
		log.Warn().Str("otp", MaskOTP(code)).Msg("otp expired or invalid")
		return "", apperrors.InvalidOTP()
	}

	log.Info().
		Str("deviceId", rec.DeviceID).
		Str("otp", MaskOTP(code)).
		Msg("otp resolved")

	return rec.DeviceID, nil
}

// SweepExpired deletes every record older than the TTL.
func (s *OTPService) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now().Add(-s.ttl))
}

// ParseOTP validates user input. Empty input, non-digits and anything other
// than exactly six digits are bad requests. "012345" is well-formed but lies
// outside the issued range, so it simply never matches.
func ParseOTP(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, apperrors.MissingRequired("otp")
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, apperrors.InvalidInput("otp", "must be numeric")
		}
	}
	if len(raw) != otpDigits {
		return 0, apperrors.InvalidInput("otp", "must be a 6-digit number")
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.InvalidInput("otp", "must be numeric")
	}
	return code, nil
}

// GenerateOTP draws uniformly from [100000, 999999] using crypto/rand.
func GenerateOTP() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(model.OTPMax-model.OTPMin+1))
	if err != nil {
		return 0, err
	}
	return model.OTPMin + int(n.Int64()), nil
}

func MaskOTP(code int) string {
	return util.MaskCode(strconv.Itoa(code))
}
