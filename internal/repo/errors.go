package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrStateChanged — запись уже не в ожидаемом статусе (её забрал другой обработчик).
	ErrStateChanged = errors.New("state changed")
)
