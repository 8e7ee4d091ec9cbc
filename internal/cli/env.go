package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/rollup/internal/config"
	"github.com/shaiso/rollup/internal/mq"
	"github.com/shaiso/rollup/internal/repo"
	"github.com/shaiso/rollup/internal/rollup"
	"github.com/shaiso/rollup/internal/seed"
	"github.com/shaiso/rollup/internal/sqlite"
)

// Env — ленивые подключения к хранилищам и брокеру для команд CLI.
// Подключение открывается при первом обращении и закрывается в Close.
type Env struct {
	cfg    config.Config
	logger *slog.Logger

	pool   *pgxpool.Pool
	lite   *sqlite.DB
	mqConn *mq.Connection
}

// NewEnv создаёт Env.
func NewEnv(cfg config.Config, logger *slog.Logger) *Env {
	if logger == nil {
		logger = slog.Default()
	}
	return &Env{cfg: cfg, logger: logger}
}

// RecordStore — хранилище записей: доступ для активности и запись данных.
type RecordStore interface {
	rollup.ServiceFactory
	seed.RecordWriter
}

// RecordFactory возвращает хранилище записей согласно store.driver.
func (e *Env) RecordFactory(ctx context.Context) (RecordStore, error) {
	if e.cfg.Store.Driver == config.DriverSQLite {
		db, err := e.sqlite(ctx)
		if err != nil {
			return nil, err
		}
		return sqlite.NewRecordStore(db), nil
	}

	pool, err := e.postgres(ctx)
	if err != nil {
		return nil, err
	}
	return repo.NewRecordRepo(pool), nil
}

// Bindings возвращает репозиторий bindings (только PostgreSQL).
func (e *Env) Bindings(ctx context.Context) (*repo.BindingRepo, error) {
	pool, err := e.postgres(ctx)
	if err != nil {
		return nil, err
	}
	return repo.NewBindingRepo(pool), nil
}

// Invocations возвращает репозиторий invocations (только PostgreSQL).
func (e *Env) Invocations(ctx context.Context) (*repo.InvocationRepo, error) {
	pool, err := e.postgres(ctx)
	if err != nil {
		return nil, err
	}
	return repo.NewInvocationRepo(pool), nil
}

// Publisher подключается к RabbitMQ и возвращает Publisher.
func (e *Env) Publisher(ctx context.Context) (*mq.Publisher, error) {
	if e.mqConn == nil {
		conn, err := mq.Dial(mq.ConnectionConfig{URL: e.cfg.RabbitMQ.URL, Logger: e.logger})
		if err != nil {
			return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
		}
		if err := mq.SetupTopology(ctx, conn); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setup topology: %w", err)
		}
		e.mqConn = conn
	}
	return mq.NewPublisher(e.mqConn, e.logger), nil
}

// Close закрывает открытые подключения.
func (e *Env) Close() {
	if e.mqConn != nil {
		e.mqConn.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
	if e.lite != nil {
		e.lite.Close()
	}
}

func (e *Env) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if e.pool != nil {
		return e.pool, nil
	}
	pool, err := repo.NewPool(ctx, e.cfg.Store.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := repo.RunMigrations(ctx, pool, e.logger); err != nil {
		pool.Close()
		return nil, err
	}
	e.pool = pool
	return pool, nil
}

func (e *Env) sqlite(ctx context.Context) (*sqlite.DB, error) {
	if e.lite != nil {
		return e.lite, nil
	}
	db, err := sqlite.New(e.cfg.Store.SQLitePath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	e.lite = db
	return db, nil
}
