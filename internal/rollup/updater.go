package rollup

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ParentUpdater записывает результат в родительскую запись.
type ParentUpdater struct {
	svc RecordService
}

// NewParentUpdater создаёт ParentUpdater.
func NewParentUpdater(svc RecordService) *ParentUpdater {
	return &ParentUpdater{svc: svc}
}

// Apply обновляет ровно одно поле родителя. Невалидный value очищает поле.
func (u *ParentUpdater) Apply(ctx context.Context, parentType string, parentID uuid.UUID, field string, value decimal.NullDecimal) error {
	var v any
	if value.Valid {
		v = value.Decimal
	}

	if err := u.svc.Update(ctx, parentType, parentID, field, v); err != nil {
		return &UpdateError{Entity: parentType, Field: field, Err: err}
	}
	return nil
}
