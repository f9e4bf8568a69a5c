package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/flowrunner/internal/config"
	"github.com/shaiso/flowrunner/internal/mq"
	"github.com/shaiso/flowrunner/internal/orchestrator"
	"github.com/shaiso/flowrunner/internal/redisbus"
	"github.com/shaiso/flowrunner/internal/repo"
	"github.com/shaiso/flowrunner/internal/scheduler"
	"github.com/shaiso/flowrunner/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger().With("service", "scheduler")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("db connect", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Error("apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("db connected")

	var sinks []orchestrator.Sink

	if cfg.RabbitMQURL != "" {
		conn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Error("rabbitmq connect", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := mq.SetupTopology(ctx, conn); err != nil {
			logger.Error("rabbitmq topology", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, mq.NewEventSink(mq.NewPublisher(conn, logger)))
	}

	if cfg.RedisAddr != "" {
		rdb := redisbus.NewClient(cfg.RedisAddr)
		defer rdb.Close()
		sinks = append(sinks, redisbus.NewSink(rdb, logger))
	}

	sched := scheduler.New(scheduler.Config{
		Schedules: repo.NewScheduleRepo(pool),
		Flows:     repo.NewFlowRepo(pool),
		Runner: orchestrator.New(orchestrator.Config{
			Metrics: telemetry.NewMetrics(prometheus.DefaultRegisterer),
			Sinks:   sinks,
			Logger:  logger,
		}),
		Logger: logger,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	leader := scheduler.NewLeader(pool, scheduler.LockKey)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop(ctx, sched, leader, cfg.SchedTick, logger)
	}()

	server := &http.Server{
		Addr:              cfg.SchedAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr, "tick", cfg.SchedTick)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	<-loopDone
	leader.Release(shutdownCtx)
	sched.Wait()

	logger.Info("stopped")
}

// loop на каждом тике пытается стать лидером (или подтвердить лидерство)
// и только лидер обрабатывает расписания.
func loop(ctx context.Context, sched *scheduler.Scheduler, leader *scheduler.Leader, tick time.Duration, logger *slog.Logger) {
	tk := time.NewTicker(tick)
	defer tk.Stop()

	var wasLeader bool
	for {
		select {
		case <-tk.C:
			ok, err := leader.TryAcquire(ctx)
			if err != nil {
				logger.Error("leader election", "error", err)
				continue
			}
			if ok != wasLeader {
				logger.Info("leadership changed", "leader", ok)
				wasLeader = ok
			}
			if !ok {
				continue
			}

			if err := sched.Tick(ctx); err != nil {
				logger.Error("tick failed", "error", err)
			}

		case <-ctx.Done():
			return
		}
	}
}
