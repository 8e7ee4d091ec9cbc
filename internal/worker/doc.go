// Package worker — хост активностей: выполняет bindings по событиям изменения записей.
//
// # Обзор
//
// Worker получает события record.changed, находит bindings, зарегистрированные
// на тип записи и сообщение (create/update), и для каждого создаёт Invocation.
// Invocation выполняется через Executor по типу активности (сейчас только rollup).
//
//	w := worker.New(worker.Config{
//	    Bindings:    bindingRepo,
//	    Invocations: invocationRepo,
//	    Publisher:   publisher,
//	    Conn:        mqConn,
//	    Registry:    worker.NewDefaultRegistry(recordRepo, metrics, logger),
//	    Logger:      logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
//
// # Обработка invocation
//
//  1. Событие из очереди records.changed (или invocation из polling)
//  2. Invocation уникален по (binding, event): повторная доставка игнорируется
//  3. Перевод в RUNNING, инкремент Attempt
//  4. Выполнение через executeWithRetry
//  5. SUCCEEDED / SKIPPED / FAILED
//  6. Для каждой записи, изменённой активностью, публикуется record.changed с Depth+1
//
// # Глубина
//
// Depth события пользователя — 1. Изменения, сделанные активностью, порождают
// события с глубиной на единицу больше. Rollup при выключенном debug mode не выполняется
// на глубине больше max_depth, так что цепочка каскада конечна.
//
// # Retry
//
// Повторяются только *rollup.TransportError (сбой хранилища при агрегации).
// Ошибки конфигурации и *rollup.HostError финальны: каждый запуск активности —
// одна полная попытка.
//
// Стратегии backoff:
//   - "exponential": delay = initialDelay * 2^(attempt-1), capped at maxDelay
//   - "fixed": delay = initialDelay
package worker
