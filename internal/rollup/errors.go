package rollup

import (
	"errors"
	"fmt"
)

// ErrLookupEmpty — поле-ссылка дочерней записи пустое или не является ссылкой.
var ErrLookupEmpty = errors.New("lookup field is empty")

// ResolutionError — не удалось определить родителя по дочерней записи.
type ResolutionError struct {
	// Field — имя поля-ссылки из конфигурации.
	Field string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve parent via %q: %v", e.Field, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// UpdateError — не удалось записать результат в родителя.
type UpdateError struct {
	Entity string
	Field  string
	Err    error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update %s.%s: %v", e.Entity, e.Field, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// TransportError — ошибка хранилища при агрегации. Не перехватывается активностью.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HostError — ошибка, показываемая хосту (и пользователю) в debug mode.
//
// Message подсказывает, какое из настроенных имён полей скорее всего неверно.
type HostError struct {
	Message string
	Err     error
}

func (e *HostError) Error() string { return e.Message }

func (e *HostError) Unwrap() error { return e.Err }

// newHostError строит HostError с подсказкой по типу исходной ошибки.
func newHostError(err error) *HostError {
	var resErr *ResolutionError
	var updErr *UpdateError

	switch {
	case errors.As(err, &resErr):
		return &HostError{
			Message: fmt.Sprintf("rollup failed: make sure the child lookup field (%q) is correct: %v", resErr.Field, resErr.Err),
			Err:     err,
		}
	case errors.As(err, &updErr):
		return &HostError{
			Message: fmt.Sprintf("rollup failed: make sure the parent entity name (%q) and parent result field (%q) are correct: %v",
				updErr.Entity, updErr.Field, updErr.Err),
			Err: err,
		}
	default:
		return &HostError{Message: "rollup failed: " + err.Error(), Err: err}
	}
}
