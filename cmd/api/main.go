package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "inapp-messaging/docs" // Import generated docs
	"inapp-messaging/internal/campaign"
	"inapp-messaging/internal/config"
	"inapp-messaging/internal/platform/httpapi"
	inappKafka "inapp-messaging/internal/platform/kafka"
	"inapp-messaging/internal/platform/memory"
	inappPostgres "inapp-messaging/internal/platform/postgres"
	inappRedis "inapp-messaging/internal/platform/redis"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// @title           In-App Messaging API
// @version         1.0
// @description     Event-triggered in-app campaign engine with Redis, PostgreSQL or in-memory caching.
// @host            localhost:8080
// @BasePath        /
func main() {
	path := flag.String("config", envOr("INAPP_CONFIG", "config/inapp.yaml"), "path to YAML config")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(*path)
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Cache (Infra)
	cache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		log.Fatalf("Could not initialize %s cache: %v", cfg.CacheDriver, err)
	}
	defer closeCache()
	log.Printf("✅ Cache ready (%s)", cfg.CacheDriver)

	// 3. Backend + impressions
	var svc *campaign.Service
	identity := func() []campaign.UserIdentifier { return svc.Repository().UserIdentifiers() }

	backend := httpapi.NewClient(httpapi.Config{
		PingURL:        cfg.PingURL,
		PermissionURL:  cfg.PermissionURL,
		ImpressionURL:  cfg.ImpressionURL,
		SubscriptionID: cfg.SubscriptionID,
		DeviceID:       cfg.DeviceID,
		AppVersion:     cfg.AppVersion,
		HTTPClient:     &http.Client{Timeout: cfg.HTTPTimeout},
		Identity:       identity,
	})

	var impressions campaign.ImpressionSink = backend
	if cfg.ImpressionSink == config.SinkKafka {
		writer := inappKafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer writer.Close()
		impressions = inappKafka.NewImpressionSink(writer, identity)
		log.Printf("✅ Impressions published to kafka topic %s", cfg.KafkaTopic)
	}

	// 4. Engine
	router := newDisplayRouter(cfg.DisplayDuration, logger)
	svc = campaign.NewService(campaign.Deps{
		Ping:        backend,
		Permission:  backend,
		Impressions: impressions,
		Cache:       cache,
		Loader:      backend,
		Router:      router,
		Errors:      errorLogger{logger: logger},
		Metrics:     campaign.NewMetrics(prometheus.DefaultRegisterer),
		Logger:      logger,
	}, campaign.Options{
		MaxPersistentEvents: cfg.MaxPersistentEvents,
		Retry: campaign.RetryPolicy{
			InitialInterval: cfg.RetryInitial,
			MaxInterval:     cfg.RetryMax,
			Multiplier:      cfg.RetryMultiplier,
			Jitter:          cfg.RetryJitter,
		},
		AdvanceOnAssetFailure: cfg.AdvanceOnAssetFailure,
	})
	go svc.Start()
	defer svc.Close()

	handler := NewHandler(svc, router)

	// 5. Routes
	mux := newMux(handler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// 6. Start Server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("🚀 In-app messaging service listening on %s", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func newMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/events", h.LogEvent)
	mux.HandleFunc("PUT /v1/users", h.SetUser)
	mux.HandleFunc("GET /v1/campaigns", h.ListCampaigns)
	mux.HandleFunc("POST /v1/campaigns/opt-out", h.OptOut)
	mux.HandleFunc("GET /v1/displays", h.ListDisplays)
	mux.HandleFunc("POST /v1/displays/dismiss", h.Dismiss)
	mux.HandleFunc("POST /debug/ping", h.Ping)
	return mux
}

func openCache(ctx context.Context, cfg config.Config) (campaign.Cache, func(), error) {
	switch cfg.CacheDriver {
	case config.CacheRedis:
		rdb, err := inappRedis.NewClient(ctx, inappRedis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, 5*time.Second)
		if err != nil {
			return nil, nil, err
		}
		return inappRedis.NewCache(rdb, cfg.CacheTTL), func() { rdb.Close() }, nil

	case config.CachePostgres:
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		cache := inappPostgres.NewCache(db)
		if err := cache.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return cache, func() { db.Close() }, nil

	default:
		return memory.NewCache(), func() {}, nil
	}
}

type errorLogger struct {
	logger *slog.Logger
}

func (e errorLogger) DidReceiveError(sender string, err error) {
	e.logger.Error("engine error",
		"module", sender,
		"outcome", "failure",
		"error", err,
	)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
