package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chairup/chairup/libs/auth"
	"github.com/chairup/chairup/libs/config"
	"github.com/chairup/chairup/libs/db"
	"github.com/chairup/chairup/libs/httpx"
	"github.com/chairup/chairup/libs/kafkax"
	otelx "github.com/chairup/chairup/libs/otel"
	"github.com/chairup/chairup/libs/runtime"
	"github.com/chairup/chairup/services/booking-service/internal/availability"
	"github.com/chairup/chairup/services/booking-service/internal/handlers"
	"github.com/chairup/chairup/services/booking-service/internal/identity"
	"github.com/chairup/chairup/services/booking-service/internal/idempotency"
	"github.com/chairup/chairup/services/booking-service/internal/matcher"
	"github.com/chairup/chairup/services/booking-service/internal/outbox"
	"github.com/chairup/chairup/services/booking-service/internal/payments"
	"github.com/chairup/chairup/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	loc, err := time.LoadLocation(config.String("BUSINESS_TIMEZONE", "UTC"))
	if err != nil {
		panic(err)
	}
	defaultWindow, err := parseWindow(config.String("DEFAULT_WINDOW", "09:00-18:00"))
	if err != nil {
		panic(err)
	}

	var (
		repo   handlers.Repository
		events handlers.EventSink
		ready  func(context.Context) error
		checks []runtime.ReadyCheck
	)
	brokers := config.String("KAFKA_BROKERS", "")
	if dbURL := strings.TrimSpace(config.String("DATABASE_URL", "")); dbURL != "" {
		pool, err := db.Open(ctx, dbURL)
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		pgRepo := storage.NewBookingRepository(pool)
		outboxRepo := outbox.NewRepository(pool)
		publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   brokers,
			PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
			BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
		})
		go publisher.Run(ctx)

		repo, events, ready = pgRepo, outboxRepo, pgRepo.Ready
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
		if len(kafkax.SplitBrokers(brokers)) > 0 {
			checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		}
	} else {
		mem := storage.NewMemoryStore()
		if path := strings.TrimSpace(config.String("SEED_FILE", "")); path != "" {
			raw, err := os.ReadFile(path)
			if err != nil {
				panic(err)
			}
			if err := mem.LoadSeed(raw); err != nil {
				panic(err)
			}
			logger.Info("memory store seeded", "path", path)
		}
		logger.Warn("DATABASE_URL not set; using in-memory store")
		repo, events, ready = mem, outbox.NewMemory(logger), mem.Ready
	}

	var idem idempotency.Store
	var rateLimitMW httpx.Middleware
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		idem = idempotency.NewRedisStore(rdb, config.Seconds("IDEMPOTENCY_TTL_SECONDS", idempotency.DefaultTTL), "booking:idem")
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "booking:rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		idem = idempotency.NewMemoryStore(config.Seconds("IDEMPOTENCY_TTL_SECONDS", idempotency.DefaultTTL))
		rateLimitMW = httpx.NewRateLimiter(limitPerMinute, time.Minute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	var classifier matcher.Classifier
	if key := strings.TrimSpace(config.String("GEMINI_API_KEY", "")); key != "" {
		gemini, err := matcher.NewGeminiClassifier(ctx, key, config.String("GEMINI_MODEL", matcher.DefaultGeminiModel))
		if err != nil {
			logger.Error("gemini classifier init failed; using heuristic matcher", "err", err)
		} else {
			defer func() { _ = gemini.Close() }()
			classifier = gemini
		}
	}

	linker := payments.NewStripeLinker(payments.StripeConfig{
		SecretKey:  config.String("STRIPE_SECRET_KEY", ""),
		SuccessURL: config.String("CHECKOUT_SUCCESS_URL", ""),
		CancelURL:  config.String("CHECKOUT_CANCEL_URL", ""),
		Currency:   config.String("CHECKOUT_CURRENCY", "usd"),
	})

	var jwks *auth.JWKSClient
	if url := strings.TrimSpace(config.String("JWKS_URL", "")); url != "" {
		jwks = auth.NewJWKSClient(url, config.Seconds("JWKS_CACHE_SECONDS", 5*time.Minute))
	}
	verifier := auth.NewVerifier(config.String("JWT_SECRET", "dev-secret"), jwks)

	bookingHandler := handlers.NewBookingHandler(repo, events, idem, linker, matcher.New(classifier, logger), logger, handlers.Config{
		DefaultWindow:   defaultWindow,
		Location:        loc,
		GranularityMins: config.Int("SLOT_GRANULARITY_MINUTES", availability.DefaultGranularityMinutes),
	})

	if err := startHealthServer(ctx, logger, ready); err != nil {
		logger.Error("grpc health server failed to start", "err", err)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	bookingHandler.Register(mux)
	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           config.Seconds("CORS_MAX_AGE_SECONDS", 10*time.Minute),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second)),
		rateLimitMW,
		identity.Middleware(verifier, logger),
	)
	handler = otelhttp.NewHandler(handler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
