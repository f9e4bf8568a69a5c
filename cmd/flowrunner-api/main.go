package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/flowrunner/internal/api"
	"github.com/shaiso/flowrunner/internal/config"
	"github.com/shaiso/flowrunner/internal/mq"
	"github.com/shaiso/flowrunner/internal/orchestrator"
	"github.com/shaiso/flowrunner/internal/redisbus"
	"github.com/shaiso/flowrunner/internal/repo"
	"github.com/shaiso/flowrunner/internal/telemetry"
)

var (
	startTime = time.Now()
	reqTotal  = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flowrunner_api_http_requests_total",
		Help: "Total HTTP requests handled by flowrunner-api",
	})
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting flowrunner-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// База данных
	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Шины событий
	var sinks []orchestrator.Sink

	if cfg.RabbitMQURL != "" {
		conn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			logger.Error("failed to setup topology", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, mq.NewEventSink(mq.NewPublisher(conn, logger)))
		logger.Info("connected to rabbitmq")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redisbus.NewClient(cfg.RedisAddr)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, redisbus.NewSink(rdb, logger))
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
	}

	runner := orchestrator.New(orchestrator.Config{
		Metrics: telemetry.NewMetrics(prometheus.DefaultRegisterer),
		Sinks:   sinks,
		Logger:  logger,
	})

	handler := api.NewHandler(api.Config{
		Flows:     repo.NewFlowRepo(pool),
		Schedules: repo.NewScheduleRepo(pool),
		Runner:    runner,
		Redis:     rdb,
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		reqTotal.Inc()
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.APIAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdown(server, logger)

	logger.Info("stopped")
}

// shutdown останавливает сервер с таймаутом 10 секунд.
func shutdown(server *http.Server, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
