// Package store содержит общее для хранилищ записей (Postgres и SQLite).
//
// Включает:
//   - errors.go — ошибки хранилищ (ErrNotFound, ErrUnknownAttribute, ...)
//   - schema.go — типы атрибутов и проверка полей по схеме
//   - values.go — кодирование значений полей в JSON
//
// Схема хранения одинакова для обеих реализаций:
//
//	records(id, entity_name, state_code, fields, created_at, modified_at, modified_by)
//	attributes(entity_name, name, type, writable)
//
// fields — JSON-объект. Ссылки хранятся как {"entity": "customer", "id": "..."}.
package store
