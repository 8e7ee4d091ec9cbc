// Package telemetry — логирование и метрики для worker и CLI.
//
//   - logging.go — slog-логгер (LOG_LEVEL, LOG_FORMAT) и поля invocation/record
//   - metrics.go — счётчики запусков rollup, длительность стадий, статусы invocations
//   - health.go — /healthz по набору проверок зависимостей
//
// Метрики отдаются воркером на /metrics.
package telemetry
