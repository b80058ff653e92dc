package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/cvangysel/gondri/internal/analytics"
	"github.com/cvangysel/gondri/internal/repository"
	"github.com/cvangysel/gondri/internal/retrieval"
	"github.com/cvangysel/gondri/internal/searcher/cache"
	"github.com/cvangysel/gondri/internal/searcher/handler"
	"github.com/cvangysel/gondri/pkg/config"
	"github.com/cvangysel/gondri/pkg/health"
	"github.com/cvangysel/gondri/pkg/kafka"
	"github.com/cvangysel/gondri/pkg/logger"
	"github.com/cvangysel/gondri/pkg/metrics"
	"github.com/cvangysel/gondri/pkg/middleware"
	pkgredis "github.com/cvangysel/gondri/pkg/redis"
	"github.com/cvangysel/gondri/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	repoPath := flag.String("repository", "", "repository directory (defaults to repository.path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *repoPath != "" {
		cfg.Repository.Path = *repoPath
	}
	log := logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("search service failed", "error", err)
		os.Exit(1)
	}
	log.Info("search service stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg, log)
		defer shutdownMetrics(context.WithoutCancel(ctx))
	}

	model, err := retrieval.ParseModel(cfg.Query.Model)
	if err != nil {
		return fmt.Errorf("query.model: %w", err)
	}
	repo, err := repository.Open(cfg.Repository.Path,
		repository.WithLogger(log),
		repository.WithMetrics(m),
		repository.WithDefaultModel(model),
		repository.WithDocumentCacheSize(cfg.Repository.DocumentCacheSize),
	)
	if err != nil {
		return err
	}
	defer repo.Close()
	log.Info("repository opened", "repository", repo.String(), "model", retrieval.Describe(model))

	checker := health.NewChecker(log)
	checker.Register("repository", health.PingCheck(func(context.Context) error {
		_, err := repo.DocumentCount()
		return err
	}))

	var store cache.Store
	if cfg.Redis.Enabled {
		client, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, falling back to in-process cache", "error", err)
		} else {
			defer client.Close()
			breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{}, log)
			store = cache.NewGuardedStore(cache.NewRedisStore(client, cfg.Redis.CacheTTL), breaker)
			checker.Register("redis", health.Degradable(client.Ping))
		}
	}
	if store == nil && cfg.Query.CacheSize > 0 {
		store = cache.NewLRUStore(cfg.Query.CacheSize, cfg.Redis.CacheTTL)
	}
	var queryCache *cache.QueryCache
	if store != nil {
		queryCache = cache.New(store, m, log)
		log.Info("result cache enabled", "store", store.Name(), "ttl", cfg.Redis.CacheTTL)
	}

	aggregator := analytics.NewAggregator(log)
	var publisher analytics.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.QueryTopic, log)
		defer producer.Close()
		publisher = producer
		log.Info("publishing query events", "topic", cfg.Kafka.QueryTopic, "brokers", cfg.Kafka.Brokers)
	}
	collector := analytics.NewCollector(publisher, aggregator, analytics.CollectorOptions{
		BufferSize: cfg.Kafka.BufferSize,
		Workers:    cfg.Kafka.WorkerCount,
		Retry:      resilience.RetryConfig{MaxAttempts: 3, Jitter: 0.1},
		Metrics:    m,
		Logger:     log,
	})
	collector.Start(ctx)
	defer collector.Close()

	h, err := handler.New(repo, handler.Options{
		DefaultModel:   model,
		DefaultResults: cfg.Query.DefaultResults,
		MaxResults:     cfg.Query.MaxResults,
		Cache:          queryCache,
		Collector:      collector,
		Logger:         log,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	h.Register(mux)
	analytics.NewHandler(aggregator, log).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)
		go pruneLimiter(ctx, limiter, cfg.Server.RateWindow)
	}
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.Server.CORSOrigins

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Query.Timeout)(chain)
	chain = middleware.AdminKey(cfg.Server.AdminKeys)(chain)
	chain = middleware.RateLimit(limiter)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(corsCfg)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	}()

	log.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func pruneLimiter(ctx context.Context, l *middleware.Limiter, window time.Duration) {
	ticker := time.NewTicker(2 * window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Prune()
		case <-ctx.Done():
			return
		}
	}
}
