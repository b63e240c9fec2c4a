package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roomsense/telemetry-relay/internal/clock"
	"github.com/roomsense/telemetry-relay/internal/config"
	"github.com/roomsense/telemetry-relay/internal/database"
	"github.com/roomsense/telemetry-relay/internal/handler"
	"github.com/roomsense/telemetry-relay/internal/jobs"
	"github.com/roomsense/telemetry-relay/internal/middleware"
	"github.com/roomsense/telemetry-relay/internal/redis"
	"github.com/roomsense/telemetry-relay/internal/repository"
	"github.com/roomsense/telemetry-relay/internal/server"
	"github.com/roomsense/telemetry-relay/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(cfg.IsProduction()); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(rootCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(rootCtx, config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	if cfg.AutoMigrate {
		if err := db.Migrate(rootCtx); err != nil {
			log.Fatal().Err(err).Msg("failed to apply schema")
		}
		log.Info().Msg("schema applied")
	}

	var limiter middleware.Limiter = middleware.NewRateLimiter()
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(rootCtx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		limiter = middleware.NewRedisRateLimiter(redisClient)
		log.Info().Msg("redis connected, using shared rate limits")
	} else {
		log.Info().Msg("REDIS_URL not set, using in-process rate limits")
	}

	clk := clock.New()

	otpRepo := repository.NewOTPRepository(db.DB)
	deviceLogRepo := repository.NewDeviceLogRepository(db.DB)

	otpService := service.NewOTPService(otpRepo, clk, cfg.OTPTTL(),
		service.WithStoreTimeout(cfg.StoreTimeout()))
	logService := service.NewDeviceLogService(deviceLogRepo, clk, cfg.StoreTimeout(), cfg.LogRetention())

	router := server.NewRouter(server.Deps{
		Gate:         middleware.NewRoleGate(cfg.DeviceCredential(), cfg.ClientCredential()),
		Limiter:      limiter,
		OTP:          handler.NewOTPHandler(otpService),
		DeviceLogs:   handler.NewDeviceLogHandler(logService),
		Health:       handler.NewHealthHandler(db),
		ResolveLimit: cfg.ResolveRateLimitPerMin,
		DeviceLimit:  cfg.DeviceRateLimitPerMin,
		IsProduction: cfg.IsProduction(),
	})

	var pruneLogs jobs.SweepFunc
	if logService.RetentionEnabled() {
		pruneLogs = logService.PruneExpired
	}
	reaper := jobs.NewReaperJob(otpService.SweepExpired, pruneLogs, cfg.ReaperInterval())
	reaper.Start(rootCtx)
	defer reaper.Stop()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Dur("otpTTL", cfg.OTPTTL()).
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
