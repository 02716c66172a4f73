package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"careerbook/internal/api"
	"careerbook/internal/config"
	"careerbook/internal/database"
	"careerbook/internal/domain"
	"careerbook/internal/events"
	"careerbook/internal/google"
	"careerbook/internal/logging"
	"careerbook/internal/metrics"
	"careerbook/internal/models"
	"careerbook/internal/notifier"
	"careerbook/internal/repository"
	"careerbook/internal/service"
	"careerbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	consultants, err := loadConsultants(cfg, &logger)
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, consultants, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	stateRepo := initStateRepository(redisClient, &logger)

	mailer := initMailer(cfg, &logger)
	sheetsService := initGoogleSheets(ctx, cfg, &logger)

	eventBus := events.NewEventBus()

	jobWorker := worker.NewJobWorker(db, mailer, sheetsService, eventBus, redisClient, worker.RetryPolicy{
		MaxRetries:    5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
	}, &logger)
	go jobWorker.Start(ctx)

	bookingService := service.NewBookingService(db, stateRepo, jobWorker, mailer, eventBus, service.BookingServiceOptions{
		Location:       cfg.App.Location(),
		ReminderLead:   cfg.ReminderLead(),
		SendTimeout:    cfg.Notifier.Timeout(),
		MaxBookingDays: cfg.Booking.MaxBookingDays,
		RateLimit:      cfg.Booking.RateLimitAttempts,
		RateWindow:     time.Duration(cfg.Booking.RateLimitWindow) * time.Second,
	}, &logger)
	entitlementService := service.NewEntitlementService(db, mailer, eventBus, cfg.Notifier.AdminEmail, cfg.Notifier.Timeout(), &logger)
	consultantService := service.NewConsultantService(db)
	userService := service.NewUserService(db)

	startMetrics(ctx, cfg, &logger)

	exporter := api.NewExporter(cfg.Exports.Path, &logger)
	httpServer := api.NewHTTPServer(cfg.API, bookingService, entitlementService, consultantService, userService, exporter, &logger)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.Port).Msg("service started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := logging.Component(baseLogger, "api-main")

	return cfg, logger, closer, nil
}

// loadConsultants reads the directory from consultants.yaml, falling back to
// the inline config list when the file is absent.
func loadConsultants(cfg *config.Config, logger *zerolog.Logger) ([]models.Consultant, error) {
	path := os.Getenv("CONSULTANTS_PATH")
	if path == "" {
		path = "configs/consultants.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && len(cfg.Consultants) > 0 {
			return cfg.Consultants, nil
		}
		logger.Error().Err(err).Str("consultants_path", path).Msg("read consultants")
		return nil, err
	}

	var parsed struct {
		Consultants []models.Consultant `yaml:"consultants"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		logger.Error().Err(err).Str("consultants_path", path).Msg("parse consultants")
		return nil, err
	}

	if err := config.ValidateConsultants(parsed.Consultants); err != nil {
		logger.Error().Err(err).Msg("consultants validation failed")
		return nil, err
	}

	return parsed.Consultants, nil
}

func initDatabase(cfg *config.Config, consultants []models.Consultant, logger *zerolog.Logger) (*database.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return nil, err
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	pointers := make([]*models.Consultant, len(consultants))
	for i := range consultants {
		pointers[i] = &consultants[i]
	}
	db.SetConsultants(pointers)
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initStateRepository(redisClient *redis.Client, logger *zerolog.Logger) domain.StateRepository {
	fallback := repository.NewMemoryStateRepository()
	if redisClient == nil {
		return fallback
	}
	primary := repository.NewRedisStateRepository(redisClient)
	return repository.NewFailoverStateRepository(primary, fallback, logger)
}

func initMailer(cfg *config.Config, logger *zerolog.Logger) domain.Mailer {
	if cfg.Notifier.SMTPHost == "" {
		logger.Warn().Msg("smtp host not configured, email delivery is log-only")
		return notifier.NewLogMailer(logger)
	}
	return notifier.NewSMTPMailer(cfg.Notifier, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.SheetsWriter {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingsSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
