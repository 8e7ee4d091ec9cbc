package rollup

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State — состояние одного запуска rollup.
//
// Переходы:
//
//	Idle → Guarding → Resolving → Aggregating → Updating → Done
//	          ↘ Done (глубина превышена)
//	Failed достижим из любого состояния, кроме Idle.
type State string

const (
	StateIdle        State = "IDLE"
	StateGuarding    State = "GUARDING"
	StateResolving   State = "RESOLVING"
	StateAggregating State = "AGGREGATING"
	StateUpdating    State = "UPDATING"
	StateDone        State = "DONE"
	StateFailed      State = "FAILED"
)

// IsTerminal возвращает true для Done и Failed.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Итог запуска для метрик и outputs.
const (
	OutcomeSucceeded  = "succeeded"
	OutcomeSkipped    = "skipped"
	OutcomeSuppressed = "suppressed"
	OutcomeFailed     = "failed"
)

// Outcome — результат запуска.
type Outcome struct {
	// State — финальное состояние (Done или Failed).
	State State

	// Trace — пройденные состояния по порядку, начиная с Idle.
	Trace []State

	// Skipped — сработала защита от рекурсии, ничего не читалось и не писалось.
	Skipped bool

	// ParentID — найденный родитель (uuid.Nil, если не дошли до Aggregating).
	ParentID uuid.UUID

	// Total — посчитанная сумма. Valid == false — дочерних записей нет.
	Total decimal.NullDecimal

	// Suppressed — ошибка, проглоченная по PolicySuppress.
	Suppressed error
}

func newOutcome() *Outcome {
	return &Outcome{State: StateIdle, Trace: []State{StateIdle}}
}

// enter переводит запуск в новое состояние.
func (o *Outcome) enter(s State) {
	o.State = s
	o.Trace = append(o.Trace, s)
}

// Result возвращает итог запуска: succeeded, skipped, suppressed или failed.
func (o *Outcome) Result() string {
	switch {
	case o.State == StateFailed:
		return OutcomeFailed
	case o.Skipped:
		return OutcomeSkipped
	case o.Suppressed != nil:
		return OutcomeSuppressed
	default:
		return OutcomeSucceeded
	}
}

// Outputs возвращает сводку для сохранения в Invocation.Outputs.
func (o *Outcome) Outputs() map[string]any {
	trace := make([]string, len(o.Trace))
	for i, s := range o.Trace {
		trace[i] = string(s)
	}

	out := map[string]any{
		"state":   string(o.State),
		"result":  o.Result(),
		"trace":   trace,
		"skipped": o.Skipped,
	}
	if o.ParentID != uuid.Nil {
		out["parent_id"] = o.ParentID.String()
	}
	if o.Total.Valid {
		out["total"] = o.Total.Decimal.String()
	} else if o.State == StateDone && !o.Skipped && o.Suppressed == nil {
		out["total"] = nil
	}
	if o.Suppressed != nil {
		out["suppressed_error"] = o.Suppressed.Error()
	}
	return out
}
