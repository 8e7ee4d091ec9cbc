package store

import "errors"

// Ошибки хранилищ записей.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownEntity — тип записи не описан в attributes.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrUnknownAttribute — поле не описано в attributes для данного типа.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrPermissionDenied — поле недоступно для записи.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidValue — значение не подходит к типу поля.
	ErrInvalidValue = errors.New("invalid attribute value")
)
