package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// MessageTypeRecordChanged — запись создана или изменена.
const MessageTypeRecordChanged MessageType = "record.changed"

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RecordChangedPayload — payload события изменения записи.
type RecordChangedPayload struct {
	// EventID — идентификатор события. Повторная доставка несёт тот же EventID.
	EventID uuid.UUID `json:"event_id"`

	// EntityName, RecordID — изменённая запись.
	EntityName string    `json:"entity_name"`
	RecordID   uuid.UUID `json:"record_id"`

	// Message — "create" или "update".
	Message string `json:"message"`

	// Depth — глубина каскада (1 — изменение пользователя).
	Depth int `json:"depth"`

	// InitiatingUserID — пользователь, начавший цепочку изменений.
	InitiatingUserID uuid.UUID `json:"initiating_user_id"`

	// CorrelationID — общий идентификатор цепочки.
	CorrelationID uuid.UUID `json:"correlation_id"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishRecordChanged публикует событие изменения записи.
// Пустые EventID и CorrelationID генерируются. Потребитель: Worker.
func (p *Publisher) PublishRecordChanged(ctx context.Context, payload RecordChangedPayload) error {
	msg, err := NewRecordChangedMessage(payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeRecords, RoutingKeyChanged, msg)
}

// NewRecordChangedMessage собирает сообщение record.changed и заполняет значения по умолчанию.
func NewRecordChangedMessage(payload RecordChangedPayload) (*Message, error) {
	if payload.EntityName == "" || payload.RecordID == uuid.Nil {
		return nil, fmt.Errorf("record.changed: entity name and record id are required")
	}
	if payload.EventID == uuid.Nil {
		payload.EventID = uuid.New()
	}
	if payload.CorrelationID == uuid.Nil {
		payload.CorrelationID = payload.EventID
	}
	if payload.Depth <= 0 {
		payload.Depth = 1
	}
	if payload.Message == "" {
		payload.Message = "update"
	}

	return &Message{
		ID:        payload.EventID.String(),
		Type:      MessageTypeRecordChanged,
		Payload:   payload,
		Timestamp: time.Now(),
	}, nil
}
