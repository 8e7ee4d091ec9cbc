package rollup

import (
	"context"

	"github.com/google/uuid"
)

// ParentResolver определяет родителя по дочерней записи.
type ParentResolver struct {
	svc RecordService
}

// NewParentResolver создаёт ParentResolver.
func NewParentResolver(svc RecordService) *ParentResolver {
	return &ParentResolver{svc: svc}
}

// Resolve читает у дочерней записи только lookupField и возвращает id родителя.
//
// Любая ошибка (запись не найдена, поле неизвестно, поле пустое) — *ResolutionError.
func (r *ParentResolver) Resolve(ctx context.Context, childType string, childID uuid.UUID, lookupField string) (uuid.UUID, error) {
	record, err := r.svc.Retrieve(ctx, childType, childID, lookupField)
	if err != nil {
		return uuid.Nil, &ResolutionError{Field: lookupField, Err: err}
	}

	ref, ok := record.Reference(lookupField)
	if !ok {
		return uuid.Nil, &ResolutionError{Field: lookupField, Err: ErrLookupEmpty}
	}
	return ref.ID, nil
}
