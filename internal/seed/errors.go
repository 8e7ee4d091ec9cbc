package seed

import "errors"

var (
	// ErrInvalidFixture — fixture не прошла разбор или проверку.
	ErrInvalidFixture = errors.New("invalid fixture")

	// ErrNoBindingStore — в fixture есть bindings, а хранилище bindings не подключено.
	ErrNoBindingStore = errors.New("fixture has bindings but no binding store")
)
