package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"salon/internal/api"
	"salon/internal/config"
	"salon/internal/docstore"
	"salon/internal/domain"
	"salon/internal/events"
	"salon/internal/google"
	"salon/internal/logging"
	"salon/internal/metrics"
	"salon/internal/models"
	"salon/internal/notify"
	"salon/internal/repository"
	"salon/internal/service"
	"salon/internal/tracing"
	"salon/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
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

	if err := prepareDirectories(cfg, logger); err != nil {
		return err
	}

	location, err := cfg.Schedule.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, cfg.App)
	if err != nil {
		logger.Error().Err(err).Msg("init tracing")
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	store, err := docstore.Open(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("open document store")
		return err
	}
	defer store.Close()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	eventBus := events.NewEventBus(logger)
	initKafka(ctx, cfg, eventBus, logger)
	initTelegram(cfg, eventBus, location, logger)

	syncWorker := initSheetsSync(ctx, cfg, store, redisClient, logger)

	catalog := service.NewCatalogService(store, logger)
	seedCatalog(ctx, cfg, catalog, logger)

	clients := service.NewClientService(store, logger)
	eventBus.Subscribe(events.EventAppointmentCompleted, clients.HandleCompleted)

	schedule := service.Schedule{
		Slots:           cfg.Schedule.Slots,
		Location:        location,
		DefaultDuration: cfg.Schedule.DefaultDuration,
		ClosedWeekdays:  cfg.Schedule.Weekdays(),
	}
	services := api.Services{
		Appointments: service.NewAppointmentService(store, catalog, eventBus, syncWorker, schedule, logger),
		Catalog:      catalog,
		Clients:      clients,
		Finance:      service.NewFinanceService(store, eventBus, syncWorker, location, logger),
		Drafts:       initDrafts(cfg, redisClient, logger),
		Store:        store,
	}

	if cfg.Backup.Enabled {
		backupService := docstore.NewBackupService(store, cfg.Backup, logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, logger)

	httpServer := api.NewHTTPServer(cfg.API, services, logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, store, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, &logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}
	return nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(redisClient)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initDrafts keeps booking drafts in Redis with an in-memory fallback.
func initDrafts(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) *service.DraftService {
	ttl := time.Duration(cfg.Booking.DraftTTL) * time.Second
	window := time.Duration(cfg.Booking.RateLimitWindow) * time.Second

	var drafts domain.DraftRepository = repository.NewMemoryDraftRepository(ttl)
	if redisClient != nil {
		drafts = repository.NewFailoverDraftRepository(
			repository.NewRedisDraftRepository(redisClient, ttl),
			drafts,
			logger,
		)
	}
	return service.NewDraftService(drafts, cfg.Booking.RateLimitRequests, window, logger)
}

func initKafka(ctx context.Context, cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	brokers := events.SplitBrokers(cfg.Kafka.Brokers)
	if len(brokers) == 0 {
		return
	}

	writer := events.NewKafkaWriter(brokers, cfg.Kafka.Topic)
	forwarder := events.NewKafkaForwarder(writer, models.WorkerQueueSize, logger)
	forwarder.Register(bus,
		events.EventAppointmentCreated,
		events.EventAppointmentUpdated,
		events.EventAppointmentCancelled,
		events.EventAppointmentCompleted,
		events.EventTransactionRecorded,
	)
	go forwarder.Run(ctx)

	logger.Info().Strs("brokers", brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka event forwarding enabled")
}

func initTelegram(cfg *config.Config, bus *events.EventBus, location *time.Location, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.ChatIDs) == 0 {
		return
	}

	botAPI, err := notify.NewBotAPI(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}

	notify.NewTelegramNotifier(botAPI, cfg.Telegram.ChatIDs, location, logger).Register(bus)
	logger.Info().Int("chats", len(cfg.Telegram.ChatIDs)).Msg("telegram notifications enabled")
}

// initSheetsSync returns nil when Google Sheets is not configured.
func initSheetsSync(ctx context.Context, cfg *config.Config, store *docstore.Store, redisClient *redis.Client, logger *zerolog.Logger) domain.SyncWorker {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.SpreadsheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.SpreadsheetID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without sheets")
		return nil
	}
	go sheetsService.Start(ctx, models.SheetsCacheTTL*time.Second)

	sheetsWorker := worker.NewSheetsWorker(store, sheetsService, redisClient, worker.DefaultRetryPolicy(), logger)
	go sheetsWorker.Start(ctx)

	logger.Info().Msg("google sheets sync enabled")
	return sheetsWorker
}

func seedCatalog(ctx context.Context, cfg *config.Config, catalog *service.CatalogService, logger *zerolog.Logger) {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = cfg.CatalogPath
	}
	if catalogPath == "" {
		return
	}

	services, err := service.LoadCatalog(catalogPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info().Str("catalog_path", catalogPath).Msg("no seed catalog")
			return
		}
		logger.Warn().Err(err).Str("catalog_path", catalogPath).Msg("load seed catalog")
		return
	}
	added, err := catalog.Seed(ctx, services)
	if err != nil {
		logger.Warn().Err(err).Msg("seed catalog")
		return
	}
	if added > 0 {
		logger.Info().Int("services", added).Msg("catalog seeded")
	}
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

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go grpcServer.WatchHealth(ctx, 15*time.Second)
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error().Err(runErr).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
