// Package cli реализует инструмент командной строки rollup.
//
// # Обзор
//
// CLI работает напрямую с хранилищами: запускает rollup для одной записи,
// публикует события record.changed для воркера и показывает bindings и invocations.
//
// # Ключевые компоненты
//
// ## Env
//
// Ленивые подключения к PostgreSQL, SQLite и RabbitMQ. Команда открывает
// только то, что ей нужно: run в режиме sqlite не требует ни PostgreSQL, ни брокера.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: rollup invocation list --json | jq .
//
// ## Commands
//
//   - run: однократный rollup для записи (флаги повторяют конфигурацию binding)
//   - trigger: публикация record.changed
//   - seed FILE: загрузка fixture (схема, записи, bindings)
//   - record set-state: активация и деактивация записи
//   - binding list
//   - invocation list [--status]
//
// Каждая команда создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую envFn и outputFn — замыкания для ленивого создания
// Env и Output после парсинга PersistentFlags.
package cli
