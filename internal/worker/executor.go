package worker

import (
	"context"
	"fmt"

	"github.com/shaiso/rollup/internal/domain"
)

// Executor — интерфейс для выполнения конкретного типа активности.
//
// Ошибка из Execute означает неуспешный запуск. Повторяется только
// транспортная ошибка (см. isRetryable), остальные финальны.
type Executor interface {
	Execute(ctx context.Context, inv *domain.Invocation, binding *domain.Binding) (*ExecutionResult, error)
}

// ExecutionResult — результат выполнения invocation.
type ExecutionResult struct {
	// Outputs — сводка для Invocation.Outputs.
	Outputs map[string]any

	// Skipped — активность не выполнялась (защита от рекурсии).
	Skipped bool

	// Written — записи, изменённые активностью. Для каждой публикуется
	// каскадное событие record.changed.
	Written []domain.EntityReference
}

// Registry — реестр executor'ов по типу активности.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register добавляет executor для типа активности.
func (r *Registry) Register(activityType string, executor Executor) {
	r.executors[activityType] = executor
}

// Get возвращает executor для типа активности.
func (r *Registry) Get(activityType string) (Executor, error) {
	executor, ok := r.executors[activityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActivityType, activityType)
	}
	return executor, nil
}
