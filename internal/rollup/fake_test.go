package rollup

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/store"
)

// fakeService — RecordService в памяти, записывает все вызовы.
type fakeService struct {
	records map[uuid.UUID]*domain.Record

	retrieveErr error
	sumErr      error
	updateErr   error

	calls []string
}

func newFakeService() *fakeService {
	return &fakeService{records: make(map[uuid.UUID]*domain.Record)}
}

func (f *fakeService) add(entity string, state domain.StateCode, fields map[string]any) uuid.UUID {
	id := uuid.New()
	f.records[id] = &domain.Record{EntityName: entity, ID: id, StateCode: state, Fields: fields}
	return id
}

func (f *fakeService) Retrieve(_ context.Context, entityName string, id uuid.UUID, columns ...string) (*domain.Record, error) {
	f.calls = append(f.calls, "retrieve")
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	rec, ok := f.records[id]
	if !ok || rec.EntityName != entityName {
		return nil, fmt.Errorf("%w: %s %s", store.ErrNotFound, entityName, id)
	}

	projected := &domain.Record{EntityName: rec.EntityName, ID: rec.ID, StateCode: rec.StateCode, Fields: map[string]any{}}
	for _, col := range columns {
		if v, ok := rec.Fields[col]; ok {
			projected.Fields[col] = v
		}
	}
	return projected, nil
}

func (f *fakeService) AggregateSum(_ context.Context, q domain.SumQuery) (decimal.NullDecimal, error) {
	f.calls = append(f.calls, "sum")
	if f.sumErr != nil {
		return decimal.NullDecimal{}, f.sumErr
	}

	var total decimal.NullDecimal
	for _, rec := range f.records {
		if rec.EntityName != q.EntityName {
			continue
		}
		if q.ActiveOnly && !rec.StateCode.IsActive() {
			continue
		}
		ref, ok := rec.Reference(q.LookupField)
		if !ok || ref.ID != q.ParentID {
			continue
		}
		amount, ok := rec.Fields[q.SumField].(decimal.Decimal)
		if !ok {
			continue
		}
		total.Decimal = total.Decimal.Add(amount)
		total.Valid = true
	}
	return total, nil
}

func (f *fakeService) Update(_ context.Context, entityName string, id uuid.UUID, field string, value any) error {
	f.calls = append(f.calls, "update")
	if f.updateErr != nil {
		return f.updateErr
	}
	rec, ok := f.records[id]
	if !ok || rec.EntityName != entityName {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, entityName, id)
	}
	if value == nil {
		delete(rec.Fields, field)
		return nil
	}
	rec.Fields[field] = value
	return nil
}

// factoryFor возвращает фабрику, которая всегда отдаёт svc и запоминает пользователя.
func factoryFor(svc RecordService, users *[]uuid.UUID) ServiceFactory {
	return ServiceFactoryFunc(func(_ context.Context, userID uuid.UUID) (RecordService, error) {
		if users != nil {
			*users = append(*users, userID)
		}
		return svc, nil
	})
}

func ref(entity string, id uuid.UUID) domain.EntityReference {
	return domain.EntityReference{EntityName: entity, ID: id}
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}
