package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ActivityTypeRollup — тип активности rollup.
const ActivityTypeRollup = "rollup"

// Сообщения, на которые может реагировать binding.
const (
	MessageCreate = "create"
	MessageUpdate = "update"
)

// Binding — регистрация активности на изменения записей определённого типа.
//
// Binding — аналог шага бизнес-процесса: "при create/update записи order
// выполнить rollup с такой-то конфигурацией".
type Binding struct {
	// ID — уникальный идентификатор binding.
	ID uuid.UUID `json:"id"`

	// Name — имя binding (например, "order-total-to-customer").
	Name string `json:"name"`

	// EntityName — тип записей, изменения которых запускают активность.
	EntityName string `json:"entity_name"`

	// Messages — события, на которые реагирует binding: "create", "update".
	Messages []string `json:"messages"`

	// ActivityType — тип активности (сейчас только "rollup").
	ActivityType string `json:"activity_type"`

	// Config — конфигурация активности (для rollup см. ParseRollupConfig).
	Config map[string]any `json:"config"`

	// Retry — политика повторов при транспортных ошибках.
	Retry *RetryPolicy `json:"retry,omitempty"`

	// Enabled — отключённые binding игнорируются воркером.
	Enabled bool `json:"enabled"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// Matches проверяет, должен ли binding сработать на событие.
func (b *Binding) Matches(entityName, message string) bool {
	if !b.Enabled || b.EntityName != entityName {
		return false
	}
	if len(b.Messages) == 0 {
		return true
	}
	return slices.Contains(b.Messages, message)
}

// RetryPolicy — политика повторных попыток.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts,omitempty"`

	// Backoff — стратегия задержки: "fixed", "exponential".
	Backoff string `json:"backoff,omitempty"`

	// InitialDelayMs — начальная задержка в миллисекундах.
	InitialDelayMs int `json:"initial_delay_ms,omitempty"`

	// MaxDelayMs — максимальная задержка в миллисекундах.
	MaxDelayMs int `json:"max_delay_ms,omitempty"`
}
