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
	"syscall"
	"time"

	"barberbook/internal/api"
	"barberbook/internal/app"
	"barberbook/internal/bot"
	"barberbook/internal/config"
	"barberbook/internal/database"
	"barberbook/internal/domain"
	"barberbook/internal/events"
	"barberbook/internal/logging"
	"barberbook/internal/metrics"
	"barberbook/internal/notify"
	"barberbook/internal/repository"
	"barberbook/internal/seed"
	"barberbook/internal/service"
	"barberbook/internal/worker"

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
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("init store")
		return err
	}
	defer store.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient := app.ConnectRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	if err := seedCatalog(ctx, cfg, store, app.SlotCache(cfg.Booking, redisClient), logger); err != nil {
		return err
	}

	bus, kafkaSink := initEvents(cfg, logger)
	if kafkaSink != nil {
		defer kafkaSink.Close()
	}
	initTelegram(cfg, bus, logger)

	sheetsWorker := initSheetsWorker(ctx, cfg, store, redisClient, logger)
	startBackups(ctx, cfg, store, logger)
	startMetrics(ctx, cfg, logger)

	services, drafts := buildServices(cfg, store, redisClient, bus, sheetsWorker, logger)
	startBookingBot(ctx, cfg, services, drafts, logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, services, logging.Component(logger, "grpc"))
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}
	httpServer := api.NewHTTPServer(cfg.API, services, logging.Component(logger, "http"))

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
	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

// seedCatalog applies catalog.seed_path on startup when it is set.
func seedCatalog(ctx context.Context, cfg *config.Config, store app.Store, cache domain.SlotCache, logger *zerolog.Logger) error {
	if cfg.Catalog.SeedPath == "" {
		return nil
	}
	catalog, err := seed.Load(cfg.Catalog.SeedPath)
	if err != nil {
		logger.Error().Err(err).Str("seed_path", cfg.Catalog.SeedPath).Msg("load catalog")
		return err
	}
	if _, err := seed.Apply(ctx, store, catalog, cache, logger); err != nil {
		logger.Error().Err(err).Msg("apply catalog")
		return err
	}
	return nil
}

func initEvents(cfg *config.Config, logger *zerolog.Logger) (*events.EventBus, *events.KafkaSink) {
	bus := events.NewEventBus(logging.Component(logger, "events"))

	brokers := events.SplitBrokers(cfg.Kafka.Brokers)
	if len(brokers) == 0 {
		return bus, nil
	}
	sink := events.NewKafkaSink(events.NewKafkaWriter(brokers, cfg.Kafka.Topic), logging.Component(logger, "kafka"))
	bus.SubscribeAll(sink.Handle)
	logger.Info().Strs("brokers", brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka sink enabled")
	return bus, sink
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	tg := cfg.Notify.Telegram
	if !tg.Enabled || len(tg.ChatIDs) == 0 {
		return
	}
	sender, err := notify.NewBotAPI(tg.BotToken, tg.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without staff notifications")
		return
	}
	notify.NewTelegramNotifier(sender, tg.ChatIDs, logging.Component(logger, "telegram")).Subscribe(bus)
	logger.Info().Int("chats", len(tg.ChatIDs)).Msg("telegram notifications enabled")
}

// initSheetsWorker returns nil when Sheets is not configured.
func initSheetsWorker(ctx context.Context, cfg *config.Config, store app.Store, redisClient *redis.Client, logger *zerolog.Logger) *worker.SheetsWorker {
	sheets := app.ConnectSheets(ctx, cfg.Google, logger)
	if sheets == nil {
		return nil
	}
	if err := sheets.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("sheets row cache warm-up failed")
	}

	retry := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
	w := worker.NewSheetsWorker(store, sheets, redisClient, retry, logging.Component(logger, "sheets-worker"))
	w.SetObserver(metrics.SyncObserver{})
	go w.Start(ctx)
	return w
}

func startBackups(ctx context.Context, cfg *config.Config, store app.Store, logger *zerolog.Logger) {
	if !cfg.Backup.Enabled {
		return
	}
	db, ok := store.(*database.DB)
	if !ok {
		logger.Info().Msg("scheduled backups cover the sqlite driver only")
		return
	}
	go database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup")).Start(ctx)
}

func buildServices(
	cfg *config.Config,
	store app.Store,
	redisClient *redis.Client,
	bus *events.EventBus,
	sheetsWorker *worker.SheetsWorker,
	logger *zerolog.Logger,
) (api.Services, domain.DraftRepository) {
	opts := service.OptionsFromConfig(cfg)
	draftTTL := time.Duration(cfg.Booking.DraftTTL) * time.Second

	cache := app.SlotCache(cfg.Booking, redisClient)
	var drafts domain.DraftRepository = repository.NewMemoryDraftRepository(draftTTL)
	if redisClient != nil {
		drafts = repository.NewFailoverDraftRepository(
			repository.NewRedisDraftRepository(redisClient, draftTTL),
			drafts,
			logging.Component(logger, "drafts"),
		)
	}

	var syncer domain.SyncWorker
	if sheetsWorker != nil {
		syncer = sheetsWorker
	}

	svcLogger := logging.Component(logger, "booking")
	catalog := service.NewCatalogService(store, opts, svcLogger)
	booking := service.NewBookingService(store, catalog, cache, drafts, bus, syncer, opts, svcLogger)

	return api.Services{
		Availability: service.NewAvailabilityService(store, catalog, cache, opts, svcLogger),
		Booking:      booking,
		Catalog:      catalog,
		Drafts:       service.NewDraftService(drafts, booking, svcLogger),
		Health:       store.Ping,
	}, drafts
}

// startBookingBot runs the client Telegram bot until ctx is done.
func startBookingBot(ctx context.Context, cfg *config.Config, svc api.Services, drafts domain.DraftRepository, logger *zerolog.Logger) {
	if !cfg.Bot.Enabled {
		return
	}
	tg, err := notify.NewBotAPI(cfg.Bot.Token, cfg.Bot.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("booking bot init failed, continuing without it")
		return
	}
	opts := service.OptionsFromConfig(cfg)
	b := bot.NewBot(tg, cfg.Bot, opts.Location, svc.Catalog, svc.Availability, svc.Drafts, drafts, logging.Component(logger, "bot"))
	go b.Start(ctx)
	logger.Info().Str("username", tg.Self.UserName).Msg("booking bot enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
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
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	ev := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		ev = ev.Str("grpc_addr", grpcServer.Addr())
	}
	ev.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
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
