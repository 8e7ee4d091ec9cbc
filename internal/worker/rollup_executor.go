package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/rollup"
	"github.com/shaiso/rollup/internal/telemetry"
)

// RollupExecutor выполняет активность rollup для invocation.
type RollupExecutor struct {
	factory rollup.ServiceFactory
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewRollupExecutor создаёт RollupExecutor поверх хранилища записей.
func NewRollupExecutor(factory rollup.ServiceFactory, metrics *telemetry.Metrics, logger *slog.Logger) *RollupExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RollupExecutor{factory: factory, metrics: metrics, logger: logger}
}

// Execute разбирает Binding.Config и запускает rollup.Activity.
func (e *RollupExecutor) Execute(ctx context.Context, inv *domain.Invocation, binding *domain.Binding) (*ExecutionResult, error) {
	cfg, err := domain.ParseRollupConfig(binding.Config)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", binding.Name, err)
	}

	tracker := newWriteTracker(e.factory)
	activity := rollup.New(rollup.Config{
		Factory: tracker,
		Metrics: e.metrics,
		Logger:  telemetry.WithInvocationID(e.logger, inv.ID.String()),
	})

	wctx := rollup.FixedContext{
		EntityName: inv.EntityName,
		RecordID:   inv.RecordID,
		CallDepth:  inv.Depth,
		UserID:     inv.InitiatingUserID,
	}

	out, err := activity.Run(ctx, cfg, wctx)
	if err != nil {
		return nil, err
	}

	return &ExecutionResult{
		Outputs: out.Outputs(),
		Skipped: out.Skipped,
		Written: tracker.Written(),
	}, nil
}

// NewDefaultRegistry создаёт реестр с executor'ом rollup.
func NewDefaultRegistry(factory rollup.ServiceFactory, metrics *telemetry.Metrics, logger *slog.Logger) *Registry {
	r := NewRegistry()
	r.Register(domain.ActivityTypeRollup, NewRollupExecutor(factory, metrics, logger))
	return r
}
