package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/telemetry"
)

// Activity — rollup-активность: находит родителя изменившейся записи,
// считает сумму по активным "соседям" и записывает её в родителя.
//
// Activity не хранит состояния между вызовами: каждый Run — отдельный,
// полный пересчёт по текущим данным хранилища.
type Activity struct {
	factory ServiceFactory
	logger  *slog.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// Config — конфигурация Activity.
type Config struct {
	// Factory создаёт доступ к данным от имени инициатора изменения.
	Factory ServiceFactory

	// Metrics — опционально.
	Metrics *telemetry.Metrics

	// Logger
	Logger *slog.Logger
}

// New создаёт Activity.
func New(cfg Config) *Activity {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Activity{
		factory: cfg.Factory,
		logger:  logger,
		metrics: cfg.Metrics,
		now:     time.Now,
	}
}

// Run выполняет один rollup.
//
// Возвращает ошибку хосту только если:
//   - конфигурация невалидна или хост не смог выдать RecordService;
//   - debug mode включён и не удалось найти родителя или записать результат (*HostError);
//   - хранилище упало при агрегации (*TransportError, независимо от debug mode).
//
// При выключенном debug mode и глубине вызова больше cfg.DepthLimit()
// ничего не читается и не пишется.
func (a *Activity) Run(ctx context.Context, cfg domain.RollupConfig, wctx WorkflowContext) (*Outcome, error) {
	out := newOutcome()
	policy := PolicyFor(cfg.DebugMode)
	logger := a.logger.With(
		"entity", wctx.PrimaryEntityName(),
		"record_id", wctx.PrimaryEntityID(),
		"depth", wctx.Depth(),
		"policy", policy.String(),
	)

	out.enter(StateGuarding)
	if !cfg.DebugMode && wctx.Depth() > cfg.DepthLimit() {
		out.Skipped = true
		out.enter(StateDone)
		logger.Debug("rollup skipped, invocation depth exceeded", "max_depth", cfg.DepthLimit())
		return a.finish(out, nil)
	}

	if err := cfg.Validate(); err != nil {
		out.enter(StateFailed)
		return a.finish(out, &HostError{Message: "rollup failed: " + err.Error(), Err: err})
	}

	svc, err := a.factory.CreateService(ctx, wctx.InitiatingUserID())
	if err != nil {
		out.enter(StateFailed)
		return a.finish(out, fmt.Errorf("create record service: %w", err))
	}

	// 1. Родитель
	out.enter(StateResolving)
	started := a.now()
	parentID, err := NewParentResolver(svc).Resolve(ctx, wctx.PrimaryEntityName(), wctx.PrimaryEntityID(), cfg.ChildLookupField)
	a.metrics.StageFinished("resolving", a.now().Sub(started))
	if err != nil {
		return a.fail(out, policy, err, logger)
	}
	out.ParentID = parentID

	// 2. Сумма по активным дочерним записям
	out.enter(StateAggregating)
	started = a.now()
	total, err := NewAggregator(svc).Sum(ctx, domain.SumQuery{
		EntityName:  wctx.PrimaryEntityName(),
		SumField:    cfg.ChildRollupField,
		LookupField: cfg.ChildLookupField,
		ParentID:    parentID,
		ActiveOnly:  true,
	})
	a.metrics.StageFinished("aggregating", a.now().Sub(started))
	if err != nil {
		out.enter(StateFailed)
		return a.finish(out, err)
	}
	out.Total = total

	// 3. Запись в родителя
	out.enter(StateUpdating)
	started = a.now()
	err = NewParentUpdater(svc).Apply(ctx, cfg.ParentEntityName, parentID, cfg.ParentResultField, total)
	a.metrics.StageFinished("updating", a.now().Sub(started))
	if err != nil {
		return a.fail(out, policy, err, logger)
	}

	out.enter(StateDone)
	logger.Debug("rollup applied",
		"parent_entity", cfg.ParentEntityName,
		"parent_id", parentID,
		"field", cfg.ParentResultField,
		"total", out.Outputs()["total"],
	)
	return a.finish(out, nil)
}

// fail применяет ErrorPolicy к ошибке разрешения родителя или записи результата.
func (a *Activity) fail(out *Outcome, policy ErrorPolicy, err error, logger *slog.Logger) (*Outcome, error) {
	if policy == PolicySurface {
		out.enter(StateFailed)
		return a.finish(out, newHostError(err))
	}

	out.Suppressed = err
	out.enter(StateDone)
	logger.Debug("rollup error suppressed", "error", err)
	return a.finish(out, nil)
}

func (a *Activity) finish(out *Outcome, err error) (*Outcome, error) {
	a.metrics.RunFinished(out.Result())
	return out, err
}
