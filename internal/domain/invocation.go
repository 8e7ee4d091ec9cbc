package domain

import (
	"time"

	"github.com/google/uuid"
)

// Invocation — один запуск активности по одному событию изменения записи.
//
// Invocation создаётся Worker'ом для каждого binding, подходящего под событие,
// и выполняется ровно один раз (retry только для транспортных ошибок).
type Invocation struct {
	// ID — уникальный идентификатор invocation.
	ID uuid.UUID `json:"id"`

	// BindingID — binding, по которому выполняется активность.
	BindingID uuid.UUID `json:"binding_id"`

	// EventID — идентификатор события record.changed.
	// Пара (BindingID, EventID) уникальна: повторная доставка события не создаёт дубликат.
	EventID uuid.UUID `json:"event_id"`

	// EntityName, RecordID — изменившаяся (дочерняя) запись.
	EntityName string    `json:"entity_name"`
	RecordID   uuid.UUID `json:"record_id"`

	// Message — "create" или "update".
	Message string `json:"message"`

	// Depth — глубина каскада: 1 для изменения от пользователя,
	// +1 для каждого изменения, сделанного активностью.
	Depth int `json:"depth"`

	// InitiatingUserID — пользователь, от имени которого работает активность.
	InitiatingUserID uuid.UUID `json:"initiating_user_id"`

	// CorrelationID — общий идентификатор для всей цепочки каскада.
	CorrelationID uuid.UUID `json:"correlation_id"`

	// Attempt — номер попытки (начиная с 1).
	Attempt int `json:"attempt"`

	// Status — текущий статус.
	Status InvocationStatus `json:"status"`

	// Outputs — сводка результата (состояние, родитель, итог).
	Outputs map[string]any `json:"outputs,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
func (i *Invocation) Duration() time.Duration {
	if i.StartedAt == nil || i.FinishedAt == nil {
		return 0
	}
	return i.FinishedAt.Sub(*i.StartedAt)
}

// IsFinished возвращает true, если invocation завершён.
func (i *Invocation) IsFinished() bool {
	return i.Status.IsTerminal()
}

// MarkRunning переводит invocation в статус RUNNING.
func (i *Invocation) MarkRunning() {
	now := time.Now()
	i.Status = InvocationStatusRunning
	i.StartedAt = &now
	i.Attempt++
}

// MarkSucceeded переводит invocation в статус SUCCEEDED.
func (i *Invocation) MarkSucceeded(outputs map[string]any) {
	i.finish(InvocationStatusSucceeded, outputs, "")
}

// MarkSkipped переводит invocation в статус SKIPPED (сработала защита от рекурсии).
func (i *Invocation) MarkSkipped(outputs map[string]any) {
	i.finish(InvocationStatusSkipped, outputs, "")
}

// MarkFailed переводит invocation в статус FAILED с ошибкой.
func (i *Invocation) MarkFailed(err string) {
	i.finish(InvocationStatusFailed, i.Outputs, err)
}

func (i *Invocation) finish(status InvocationStatus, outputs map[string]any, err string) {
	now := time.Now()
	i.Status = status
	i.FinishedAt = &now
	i.Outputs = outputs
	i.Error = err
}

// ResetForRetry подготавливает invocation для повторной попытки.
func (i *Invocation) ResetForRetry() {
	i.Status = InvocationStatusQueued
	i.StartedAt = nil
	i.FinishedAt = nil
	i.Error = ""
	// Attempt увеличится при следующем MarkRunning()
}

// CanRetry проверяет, можно ли сделать ещё одну попытку.
func (i *Invocation) CanRetry(maxAttempts int) bool {
	return i.Attempt < maxAttempts
}
