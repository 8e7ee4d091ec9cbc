package rollup

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shaiso/rollup/internal/domain"
)

// RecordService — доступ к данным, который хост выдаёт активности.
//
// Реализации: repo.RecordRepo (Postgres), sqlite.RecordStore.
type RecordService interface {
	// Retrieve возвращает запись только с перечисленными полями.
	Retrieve(ctx context.Context, entityName string, id uuid.UUID, columns ...string) (*domain.Record, error)

	// AggregateSum считает сумму на стороне хранилища.
	// Невалидный результат (Valid == false) — записей нет или поле нигде не заполнено.
	AggregateSum(ctx context.Context, q domain.SumQuery) (decimal.NullDecimal, error)

	// Update записывает одно поле одной записи. nil очищает поле.
	Update(ctx context.Context, entityName string, id uuid.UUID, field string, value any) error
}

// ServiceFactory создаёт RecordService от имени пользователя.
type ServiceFactory interface {
	CreateService(ctx context.Context, userID uuid.UUID) (RecordService, error)
}

// ServiceFactoryFunc — адаптер функции к ServiceFactory.
type ServiceFactoryFunc func(ctx context.Context, userID uuid.UUID) (RecordService, error)

// CreateService вызывает f.
func (f ServiceFactoryFunc) CreateService(ctx context.Context, userID uuid.UUID) (RecordService, error) {
	return f(ctx, userID)
}

// WorkflowContext — данные вызова, которые передаёт хост.
type WorkflowContext interface {
	// PrimaryEntityName — тип изменившейся записи.
	PrimaryEntityName() string

	// PrimaryEntityID — идентификатор изменившейся записи.
	PrimaryEntityID() uuid.UUID

	// Depth — глубина каскада вызовов, считается хостом.
	Depth() int

	// InitiatingUserID — пользователь, инициировавший изменение.
	InitiatingUserID() uuid.UUID
}

// FixedContext — WorkflowContext с заранее известными значениями.
type FixedContext struct {
	EntityName string
	RecordID   uuid.UUID
	CallDepth  int
	UserID     uuid.UUID
}

func (c FixedContext) PrimaryEntityName() string   { return c.EntityName }
func (c FixedContext) PrimaryEntityID() uuid.UUID  { return c.RecordID }
func (c FixedContext) Depth() int                  { return c.CallDepth }
func (c FixedContext) InitiatingUserID() uuid.UUID { return c.UserID }
