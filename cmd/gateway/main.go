package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/Bridge-Point/anonamoose-sub001/internal/client"
	"github.com/Bridge-Point/anonamoose-sub001/internal/config"
	"github.com/Bridge-Point/anonamoose-sub001/internal/detector"
	"github.com/Bridge-Point/anonamoose-sub001/internal/events"
	"github.com/Bridge-Point/anonamoose-sub001/internal/handler"
	"github.com/Bridge-Point/anonamoose-sub001/internal/metrics"
	"github.com/Bridge-Point/anonamoose-sub001/internal/repository"
	"github.com/Bridge-Point/anonamoose-sub001/internal/service"
	"github.com/Bridge-Point/anonamoose-sub001/internal/store"
	"github.com/Bridge-Point/anonamoose-sub001/internal/telemetry"
	"github.com/Bridge-Point/anonamoose-sub001/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx := context.Background()

	// --- OpenTelemetry ---
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		tp, err := telemetry.InitTracer(ctx, "anonamoose-gateway", endpoint)
		if err != nil {
			logger.Error("failed to init OTel tracer", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
			logger.Info("OTel tracer initialized", zap.String("endpoint", endpoint))
		}
	}

	// --- Configuration ---
	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("configuration failed", zap.Error(err))
	}

	// --- Database ---
	db, err := repository.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err), zap.String("path", cfg.DBPath))
	}
	defer db.Close()

	settings, err := service.LoadStoredSettings(ctx, db)
	if err != nil {
		logger.Fatal("failed to load stored settings", zap.Error(err))
	}
	entries, err := db.ListDictionary(ctx)
	if err != nil {
		logger.Fatal("failed to load dictionary", zap.Error(err))
	}
	holder := service.NewSnapshotHolder(settings, entries)
	logger.Info("settings and dictionary loaded", zap.Int("dictionaryTerms", len(entries)))

	prefix, suffix := settings.Sentinels()

	// --- Session Store ---
	// Redis when configured and reachable, otherwise in-process. The
	// fallback is a single warning, not a fatal: sessions are
	// TTL-bounded and need not survive a restart.
	var st store.Store
	var local *store.Local
	if cfg.RedisURL != "" {
		redis, err := store.NewRedis(ctx, cfg.RedisURL, prefix, suffix, logger)
		if err != nil {
			logger.Warn("redis unavailable, using local session store", zap.Error(err))
		} else {
			st = redis
			logger.Info("redis session store connected")
		}
	}
	if st == nil {
		local = store.NewLocal(prefix, suffix, cfg.MaxLocalSessions)
		st = local
		logger.Info("local session store active", zap.Int("maxSessions", cfg.MaxLocalSessions))
	}

	// --- NER ---
	var ner *detector.NERDetector
	var breaker *detector.Breaker
	if cfg.NERServiceURL != "" {
		breaker = detector.NewBreaker(0, 0)
		ner = detector.NewNERDetector(client.NewInferenceClient(cfg.NERServiceURL, cfg.NERModelCache), breaker, logger)
		logger.Info("NER inference client configured", zap.String("url", cfg.NERServiceURL))
	} else {
		logger.Info("NER_SERVICE_URL unset, NER layer disabled")
	}

	// --- Name Gazetteer ---
	names := detector.NewNameDetector()
	if cfg.NamesListPath != "" {
		f, err := os.Open(cfg.NamesListPath)
		if err != nil {
			logger.Fatal("failed to open names list", zap.Error(err), zap.String("path", cfg.NamesListPath))
		}
		loaded, err := detector.LoadNames(f)
		f.Close()
		if err != nil {
			logger.Fatal("failed to parse names list", zap.Error(err), zap.String("path", cfg.NamesListPath))
		}
		names = detector.NewNameDetectorWith(loaded)
		logger.Info("names gazetteer loaded", zap.Int("names", len(loaded)), zap.String("path", cfg.NamesListPath))
	}

	// --- Audit Events ---
	var audit *events.Publisher
	if cfg.NATSURL != "" {
		audit, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Fatal("NATS initialization failed", zap.Error(err))
		}
		defer audit.Close()
	}

	// --- Services ---
	counters := metrics.New()
	redactionSvc := service.NewRedactionService(
		holder, st, ner,
		detector.NewRegexDetector(logger),
		names,
		cfg.SessionTTL,
		counters, audit, logger,
	)
	settingsSvc := service.NewSettingsService(db, holder, st, logger)
	dictionarySvc := service.NewDictionaryService(db, holder, logger)

	// --- Background Jobs ---
	var sweeper *worker.Sweeper
	if local != nil {
		sweeper = worker.NewSweeper(local, logger)
		if err := sweeper.Start(); err != nil {
			logger.Fatal("failed to start session sweeper", zap.Error(err))
		}
	}

	// --- Proxy Listener ---
	proxy := echo.New()
	proxy.HideBanner = true
	proxy.Use(otelecho.Middleware("anonamoose-gateway"))
	proxy.Use(middleware.Recover())
	proxy.Use(requestLogging(logger))
	proxy.Use(handler.OptionsMiddleware())

	handler.NewProxyHandler(
		redactionSvc, st, holder,
		client.NewUpstream(),
		cfg.UpstreamURL, cfg.AnthropicUpstreamURL,
		counters, logger,
	).Register(proxy)
	handler.NewDirectHandler(redactionSvc).Register(proxy)

	// --- Management Listener ---
	mgmt := echo.New()
	mgmt.HideBanner = true
	mgmt.Use(middleware.Recover())
	mgmt.Use(requestLogging(logger))

	handler.NewManagementHandler(
		dictionarySvc, settingsSvc, st,
		counters, breaker,
		cfg.APIToken, cfg.StatsToken,
	).Register(mgmt)

	go func() {
		logger.Info("proxy listening", zap.Int("port", cfg.Port))
		if err := proxy.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Fatal("proxy server failure", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("management API listening", zap.Int("port", cfg.MgmtPort))
		if err := mgmt.Start(fmt.Sprintf(":%d", cfg.MgmtPort)); err != nil && err != http.ErrServerClosed {
			logger.Fatal("management server failure", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if sweeper != nil {
		sweeper.Stop()
	}
	if err := proxy.Shutdown(shutdownCtx); err != nil {
		logger.Error("proxy shutdown error", zap.Error(err))
	}
	if err := mgmt.Shutdown(shutdownCtx); err != nil {
		logger.Error("management shutdown error", zap.Error(err))
	}
	logger.Info("gateway shut down cleanly")
}

func requestLogging(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("HTTP request",
				zap.String("URI", v.URI),
				zap.Int("status", v.Status),
			)
			return nil
		},
	})
}
