package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/mq"
	"github.com/shaiso/rollup/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
	defaultPrefetch     = 5
)

// BindingStore — источник bindings (repo.BindingRepo).
type BindingStore interface {
	ListByEntity(ctx context.Context, entityName string) ([]domain.Binding, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Binding, error)
}

// InvocationStore — хранилище invocations (repo.InvocationRepo).
type InvocationStore interface {
	Create(ctx context.Context, inv *domain.Invocation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invocation, error)
	Update(ctx context.Context, inv *domain.Invocation) error
	// Claim переводит QUEUED → RUNNING только если invocation ещё в QUEUED.
	Claim(ctx context.Context, inv *domain.Invocation) error
	ListQueued(ctx context.Context, limit int) ([]domain.Invocation, error)
}

// EventPublisher публикует каскадные события (mq.Publisher).
type EventPublisher interface {
	PublishRecordChanged(ctx context.Context, payload mq.RecordChangedPayload) error
}

// Worker — хост активностей.
//
// Worker — stateless компонент, который:
//   - Получает события record.changed из RabbitMQ (event-driven)
//   - Создаёт invocation для каждого подходящего binding
//   - Периодически проверяет queued invocations в БД (polling fallback)
//   - Повторяет запуск только при транспортных ошибках хранилища
//   - Публикует каскадные события для записей, изменённых активностью
//
// Workers масштабируются горизонтально: несколько экземпляров
// могут потреблять из одной очереди.
type Worker struct {
	bindings    BindingStore
	invocations InvocationStore

	// MQ
	publisher EventPublisher
	conn      *mq.Connection
	consumer  *mq.Consumer

	registry *Registry
	metrics  *telemetry.Metrics

	// Configuration
	pollInterval time.Duration
	batchSize    int

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Bindings    BindingStore
	Invocations InvocationStore

	// MQ. Без Conn воркер работает только через polling,
	// без Publisher каскадные события не публикуются.
	Publisher EventPublisher
	Conn      *mq.Connection

	// Registry — executor'ы по типу активности (если nil — пустой реестр).
	Registry *Registry

	// Metrics — опционально.
	Metrics *telemetry.Metrics

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество invocations за один poll (default: 50)

	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Worker{
		bindings:     cfg.Bindings,
		invocations:  cfg.Invocations,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		registry:     registry,
		metrics:      cfg.Metrics,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Worker.
//
// Запускает:
//   - Consumer для records.changed (если есть соединение с RabbitMQ)
//   - Polling горутину для fallback
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, mq.ConsumerConfig{
			Queue:    string(mq.QueueRecordsChanged),
			Handler:  w.handleRecordChanged,
			Prefetch: defaultPrefetch,
			Logger:   w.logger,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("record consumer error", "error", err)
			}
		}()
	} else {
		w.logger.Warn("no RabbitMQ connection, running in polling-only mode")
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем invocations, оставшиеся после падения)
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (w *Worker) poll(ctx context.Context) {
	invocations, err := w.invocations.ListQueued(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list queued invocations", "error", err)
		return
	}

	if len(invocations) == 0 {
		return
	}

	w.logger.Debug("poll found queued invocations", "count", len(invocations))

	for i := range invocations {
		inv := &invocations[i]

		if err := w.processInvocation(ctx, inv.ID); err != nil && !isExpected(err) {
			w.logger.Error("failed to process invocation from poll",
				"invocation_id", inv.ID,
				"error", err,
			)
		}
	}
}
