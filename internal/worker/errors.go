package worker

import "errors"

// Ошибки воркера.
var (
	// ErrInvocationNotFound — invocation не найден в БД.
	ErrInvocationNotFound = errors.New("invocation not found")

	// ErrInvocationNotQueued — invocation не в статусе QUEUED.
	ErrInvocationNotQueued = errors.New("invocation is not in QUEUED status")

	// ErrBindingNotFound — binding invocation'а удалён.
	ErrBindingNotFound = errors.New("binding not found")

	// ErrUnknownActivityType — нет executor'а для данного типа активности.
	ErrUnknownActivityType = errors.New("unknown activity type")
)
