package rollup

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/shaiso/rollup/internal/domain"
)

// Aggregator считает сумму поля по дочерним записям родителя.
//
// Сумма считается хранилищем (SUM в запросе), строки в память не загружаются.
type Aggregator struct {
	svc RecordService
}

// NewAggregator создаёт Aggregator.
func NewAggregator(svc RecordService) *Aggregator {
	return &Aggregator{svc: svc}
}

// Sum возвращает сумму или невалидный NullDecimal, если подходящих записей нет.
// Ошибки хранилища возвращаются как *TransportError.
func (a *Aggregator) Sum(ctx context.Context, q domain.SumQuery) (decimal.NullDecimal, error) {
	total, err := a.svc.AggregateSum(ctx, q)
	if err != nil {
		return decimal.NullDecimal{}, &TransportError{Op: "aggregate " + q.EntityName + "." + q.SumField, Err: err}
	}
	return total, nil
}
