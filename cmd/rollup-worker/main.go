// Rollup Worker — хост rollup-активностей.
//
// Worker:
//   - Получает события record.changed из RabbitMQ
//   - Запускает активности по зарегистрированным bindings
//   - Повторяет запуск при сбоях хранилища
//   - Публикует каскадные события для изменённых записей
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/rollup/internal/config"
	"github.com/shaiso/rollup/internal/mq"
	"github.com/shaiso/rollup/internal/repo"
	"github.com/shaiso/rollup/internal/rollup"
	"github.com/shaiso/rollup/internal/sqlite"
	"github.com/shaiso/rollup/internal/telemetry"
	"github.com/shaiso/rollup/internal/worker"
)

const healthTimeout = 2 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("ROLLUP_CONFIG_DIR"))
	if err != nil {
		telemetry.SetupLogger(telemetry.LogOptions{}).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(telemetry.LogOptions{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logger.Info("starting rollup-worker", "store_driver", cfg.Store.Driver)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool: bindings и invocations всегда в PostgreSQL
	pool, err := repo.NewPool(ctx, cfg.Store.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.RunMigrations(ctx, pool, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// Хранилище записей
	var records rollup.ServiceFactory = repo.NewRecordRepo(pool)
	var liteDB *sqlite.DB
	if cfg.Store.Driver == config.DriverSQLite {
		db, err := sqlite.New(cfg.Store.SQLitePath)
		if err != nil {
			logger.Error("failed to open sqlite", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to migrate sqlite", "error", err)
			os.Exit(1)
		}
		records = sqlite.NewRecordStore(db)
		liteDB = db
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// RabbitMQ
	wcfg := worker.Config{
		Bindings:     repo.NewBindingRepo(pool),
		Invocations:  repo.NewInvocationRepo(pool),
		Registry:     worker.NewDefaultRegistry(records, metrics, logger),
		Metrics:      metrics,
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		Logger:       logger,
	}

	health := []telemetry.HealthCheck{{Name: "postgres", Check: pool.Ping}}
	if cfg.Store.Driver == config.DriverSQLite {
		health = append(health, telemetry.HealthCheck{Name: "sqlite", Check: liteDB.PingContext})
	}

	mqConn, err := mq.Dial(mq.ConnectionConfig{URL: cfg.RabbitMQ.URL, Logger: logger})
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		logger.Debug(mq.TopologyInfo())

		health = append(health, telemetry.HealthCheck{Name: "rabbitmq", Check: mqConn.Check})
		wcfg.Conn = mqConn
		wcfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	w := worker.New(wcfg)
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.Handle("/healthz", telemetry.HealthHandler(healthTimeout, health...))
	mux.Handle("/metrics", promhttp.Handler())

	port := ":" + cfg.Worker.Port

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	w.Stop()
	logger.Info("rollup-worker stopped")
}
