package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrReject — сообщение не может быть обработано никогда (битый payload и т.п.).
var ErrReject = errors.New("message rejected")

// Reject оборачивает err так, что consumer отправит сообщение в DLQ.
func Reject(err error) error {
	return fmt.Errorf("%w: %w", ErrReject, err)
}

// Handler обрабатывает одно сообщение.
//
// nil — ack; ошибка с ErrReject — в DLQ; любая другая ошибка — вернуть в очередь.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — разобранное сообщение из очереди.
type Delivery struct {
	Message Message

	// Redelivered — сообщение уже доставлялось и не было подтверждено.
	Redelivered bool
}

// Settlement — чем закончилась обработка сообщения.
type Settlement int

const (
	SettleAck Settlement = iota
	SettleRequeue
	SettleDeadLetter
)

func (s Settlement) String() string {
	switch s {
	case SettleAck:
		return "ack"
	case SettleRequeue:
		return "requeue"
	case SettleDeadLetter:
		return "dead-letter"
	default:
		return fmt.Sprintf("Settlement(%d)", int(s))
	}
}

// Settle выбирает исход по ошибке обработчика.
func Settle(err error) Settlement {
	switch {
	case err == nil:
		return SettleAck
	case errors.Is(err, ErrReject):
		return SettleDeadLetter
	default:
		return SettleRequeue
	}
}

// DecodeDelivery разбирает тело AMQP сообщения.
// Нечитаемое тело оборачивается в ErrReject.
func DecodeDelivery(body []byte, redelivered bool) (*Delivery, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, Reject(fmt.Errorf("decode message: %w", err))
	}
	return &Delivery{Message: msg, Redelivered: redelivered}, nil
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue   string
	Handler Handler

	// Prefetch — сколько неподтверждённых сообщений держать. По умолчанию 1.
	Prefetch int

	Logger *slog.Logger
}

// Consumer читает очередь и передаёт сообщения Handler'у.
// После разрыва соединения подписка восстанавливается автоматически.
type Consumer struct {
	conn   *Connection
	cfg    ConsumerConfig
	logger *slog.Logger
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Consumer{
		conn:   conn,
		cfg:    cfg,
		logger: cfg.Logger.With("queue", cfg.Queue),
	}
}

// Run потребляет сообщения до отмены ctx.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		// подписываемся на переподключение до попытки, чтобы не пропустить его
		reconnected := c.conn.Reconnected()

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Warn("subscribe failed, waiting for reconnect", "error", err)
		} else {
			c.logger.Info("consuming")
			c.drain(ctx, deliveries)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reconnected:
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery
	err := c.conn.WithChannel(func(ch *amqp.Channel) error {
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
		d, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
		}
		deliveries = d
		return nil
	})
	return deliveries, err
}

// drain обрабатывает сообщения, пока канал доставки открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery channel closed")
				return
			}
			c.settle(raw, c.handle(ctx, raw))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) error {
	d, err := DecodeDelivery(raw.Body, raw.Redelivered)
	if err != nil {
		return err
	}
	c.logger.Debug("received message", "message_id", d.Message.ID, "type", d.Message.Type, "redelivered", d.Redelivered)
	return c.cfg.Handler(ctx, d)
}

func (c *Consumer) settle(raw amqp.Delivery, handlerErr error) {
	s := Settle(handlerErr)
	if handlerErr != nil {
		c.logger.Error("message not processed",
			"message_id", raw.MessageId,
			"settlement", s,
			"error", handlerErr,
		)
	}

	var err error
	switch s {
	case SettleAck:
		err = raw.Ack(false)
	case SettleRequeue:
		err = raw.Nack(false, true)
	case SettleDeadLetter:
		err = raw.Nack(false, false)
	}
	if err != nil {
		c.logger.Warn("settle failed", "message_id", raw.MessageId, "settlement", s, "error", err)
	}
}

// ParsePayload приводит payload сообщения к типу T.
// После json.Unmarshal в Message payload — map[string]any, поэтому он перекодируется.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
