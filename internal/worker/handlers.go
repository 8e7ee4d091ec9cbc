package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/mq"
	"github.com/shaiso/rollup/internal/repo"
	"github.com/shaiso/rollup/internal/rollup"
	"github.com/shaiso/rollup/internal/telemetry"
)

// handleRecordChanged обрабатывает событие из очереди records.changed.
func (w *Worker) handleRecordChanged(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RecordChangedPayload](&delivery.Message)
	if err != nil {
		w.logger.Error("failed to parse record.changed payload", "error", err)
		return mq.Reject(err)
	}
	if payload.EntityName == "" || payload.RecordID == uuid.Nil || payload.EventID == uuid.Nil {
		return mq.Reject(fmt.Errorf("record.changed: incomplete payload %+v", payload))
	}

	return w.HandleEvent(ctx, payload)
}

// HandleEvent создаёт и выполняет invocations для всех bindings, подходящих под событие.
//
// Повторная доставка того же события не запускает активность второй раз:
// invocation уникален по (binding, event).
func (w *Worker) HandleEvent(ctx context.Context, event mq.RecordChangedPayload) error {
	logger := telemetry.WithRecord(w.logger, event.EntityName, event.RecordID.String())

	bindings, err := w.bindings.ListByEntity(ctx, event.EntityName)
	if err != nil {
		return fmt.Errorf("list bindings: %w", err)
	}

	var errs []error
	for i := range bindings {
		b := &bindings[i]
		if !b.Matches(event.EntityName, event.Message) {
			continue
		}

		inv := newInvocation(b, event)
		if err := w.invocations.Create(ctx, inv); err != nil {
			if errors.Is(err, repo.ErrAlreadyExists) {
				logger.Debug("duplicate event, invocation already exists",
					"binding", b.Name,
					"event_id", event.EventID,
				)
				continue
			}
			errs = append(errs, fmt.Errorf("create invocation for %s: %w", b.Name, err))
			continue
		}

		logger.Debug("invocation created",
			"invocation_id", inv.ID,
			"binding", b.Name,
			"depth", inv.Depth,
		)

		if err := w.processInvocation(ctx, inv.ID); err != nil && !isExpected(err) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// newInvocation создаёт invocation в статусе QUEUED.
func newInvocation(b *domain.Binding, event mq.RecordChangedPayload) *domain.Invocation {
	depth := event.Depth
	if depth <= 0 {
		depth = 1
	}
	message := event.Message
	if message == "" {
		message = domain.MessageUpdate
	}

	return &domain.Invocation{
		ID:               uuid.New(),
		BindingID:        b.ID,
		EventID:          event.EventID,
		EntityName:       event.EntityName,
		RecordID:         event.RecordID,
		Message:          message,
		Depth:            depth,
		InitiatingUserID: event.InitiatingUserID,
		CorrelationID:    event.CorrelationID,
		Status:           domain.InvocationStatusQueued,
		CreatedAt:        time.Now(),
	}
}

// processInvocation загружает invocation, выполняет его и сохраняет результат.
//
// Неуспешный запуск активности — не ошибка обработки: он записывается
// в invocation со статусом FAILED. Ошибка возвращается только при проблемах с БД.
func (w *Worker) processInvocation(ctx context.Context, id uuid.UUID) error {
	inv, err := w.invocations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrInvocationNotFound, id)
		}
		return fmt.Errorf("get invocation: %w", err)
	}

	if inv.Status != domain.InvocationStatusQueued {
		return ErrInvocationNotQueued
	}

	logger := telemetry.WithRecord(telemetry.WithInvocationID(w.logger, inv.ID.String()),
		inv.EntityName, inv.RecordID.String())

	binding, err := w.bindings.GetByID(ctx, inv.BindingID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("get binding: %w", err)
		}
		if err := w.claim(ctx, inv); err != nil {
			return err
		}
		inv.MarkFailed(fmt.Sprintf("%s: %s", ErrBindingNotFound, inv.BindingID))
		w.metrics.InvocationFinished(string(inv.Status))
		return w.invocations.Update(ctx, inv)
	}

	if err := w.claim(ctx, inv); err != nil {
		return err
	}

	logger.Info("invocation started",
		"binding", binding.Name,
		"depth", inv.Depth,
		"attempt", inv.Attempt,
	)

	result, execErr := w.executeWithRetry(ctx, inv, binding)

	if execErr != nil {
		inv.MarkFailed(execErr.Error())
		if err := w.invocations.Update(ctx, inv); err != nil {
			return fmt.Errorf("update invocation to failed: %w", err)
		}
		w.metrics.InvocationFinished(string(inv.Status))

		logger.Warn("invocation failed",
			"binding", binding.Name,
			"attempt", inv.Attempt,
			"error", execErr,
		)
		return nil
	}

	if result.Skipped {
		inv.MarkSkipped(result.Outputs)
	} else {
		inv.MarkSucceeded(result.Outputs)
	}
	if err := w.invocations.Update(ctx, inv); err != nil {
		return fmt.Errorf("update invocation to %s: %w", inv.Status, err)
	}
	w.metrics.InvocationFinished(string(inv.Status))

	logger.Info("invocation finished",
		"binding", binding.Name,
		"status", inv.Status,
		"attempt", inv.Attempt,
		"duration", inv.Duration(),
	)

	w.publishCascade(ctx, inv, result.Written)
	return nil
}

// claim переводит invocation в RUNNING. Если его уже забрал другой
// обработчик, возвращает ErrInvocationNotQueued.
func (w *Worker) claim(ctx context.Context, inv *domain.Invocation) error {
	inv.MarkRunning()
	if err := w.invocations.Claim(ctx, inv); err != nil {
		if errors.Is(err, repo.ErrStateChanged) {
			return fmt.Errorf("%w: %s", ErrInvocationNotQueued, inv.ID)
		}
		return fmt.Errorf("claim invocation: %w", err)
	}
	return nil
}

// publishCascade публикует record.changed для каждой записи, изменённой активностью.
//
// Глубина события на единицу больше глубины invocation. EventID детерминирован
// по (invocation, запись), поэтому повторная публикация не создаёт новых invocations.
func (w *Worker) publishCascade(ctx context.Context, inv *domain.Invocation, written []domain.EntityReference) {
	if len(written) == 0 {
		return
	}
	if w.publisher == nil {
		w.logger.Warn("publisher not available, skipping cascade events",
			"invocation_id", inv.ID,
			"records", len(written),
		)
		return
	}

	published := 0
	for _, ref := range written {
		payload := CascadeEvent(inv, ref)
		if err := w.publisher.PublishRecordChanged(ctx, payload); err != nil {
			w.logger.Warn("failed to publish cascade event",
				"invocation_id", inv.ID,
				"record", ref.String(),
				"error", err,
			)
			continue
		}
		published++
	}
	w.metrics.CascadePublished(published)
}

// CascadeEvent строит событие об изменении ref, сделанном в рамках inv.
func CascadeEvent(inv *domain.Invocation, ref domain.EntityReference) mq.RecordChangedPayload {
	return mq.RecordChangedPayload{
		EventID:          uuid.NewSHA1(inv.ID, []byte(ref.String())),
		EntityName:       ref.EntityName,
		RecordID:         ref.ID,
		Message:          domain.MessageUpdate,
		Depth:            inv.Depth + 1,
		InitiatingUserID: inv.InitiatingUserID,
		CorrelationID:    inv.CorrelationID,
	}
}

// executeWithRetry выполняет invocation с retry согласно RetryPolicy binding'а.
func (w *Worker) executeWithRetry(ctx context.Context, inv *domain.Invocation, binding *domain.Binding) (*ExecutionResult, error) {
	executor, err := w.registry.Get(binding.ActivityType)
	if err != nil {
		return nil, err
	}

	policy := binding.Retry
	maxAttempts := 1
	if policy != nil && policy.MaxAttempts > 0 {
		maxAttempts = policy.MaxAttempts
	}

	for {
		result, execErr := executor.Execute(ctx, inv, binding)
		if execErr == nil {
			return result, nil
		}

		if !isRetryable(execErr) || !inv.CanRetry(maxAttempts) {
			return nil, execErr
		}

		delay := calculateBackoff(inv.Attempt, policy)

		w.logger.Debug("retrying invocation",
			"invocation_id", inv.ID,
			"attempt", inv.Attempt,
			"delay", delay,
			"error", execErr,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		inv.ResetForRetry()
		inv.MarkRunning()
		if err := w.invocations.Update(ctx, inv); err != nil {
			return nil, fmt.Errorf("update invocation for retry: %w", err)
		}
	}
}

// isRetryable — повторяются только сбои связи с хранилищем.
// Ошибки активности (*rollup.HostError) и конфигурации финальны.
func isRetryable(err error) bool {
	var transportErr *rollup.TransportError
	return errors.As(err, &transportErr)
}

// isExpected — ситуации, при которых событие просто подтверждается.
func isExpected(err error) bool {
	return errors.Is(err, ErrInvocationNotFound) || errors.Is(err, ErrInvocationNotQueued)
}

// calculateBackoff вычисляет задержку перед retry.
func calculateBackoff(attempt int, policy *domain.RetryPolicy) time.Duration {
	if policy == nil {
		return time.Second
	}

	initialDelay := time.Duration(policy.InitialDelayMs) * time.Millisecond
	if initialDelay <= 0 {
		initialDelay = time.Second
	}

	maxDelay := time.Duration(policy.MaxDelayMs) * time.Millisecond
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	delay := initialDelay
	if policy.Backoff == "exponential" {
		// delay = initialDelay * 2^(attempt-1)
		for i := 1; i < attempt && delay < maxDelay; i++ {
			delay *= 2
		}
	}

	return min(delay, maxDelay)
}
