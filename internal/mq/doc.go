// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с переподключением и Check для /healthz
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий record.changed
//   - consumer.go   — потребление очереди: ack, requeue или DLQ по ошибке обработчика
//
// Типы сообщений:
//   - record.changed — запись создана или изменена (пользователем или активностью)
//
// Exchanges:
//   - rollup.records — события изменения записей
//   - rollup.dlq     — dead letter queue
package mq
