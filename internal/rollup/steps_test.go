package rollup

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/store"
)

func TestParentResolver_Resolve(t *testing.T) {
	svc := newFakeService()
	customerID, orders := seedOrders(svc, []int64{1})
	resolver := NewParentResolver(svc)

	first, err := resolver.Resolve(context.Background(), "order", orders[0], "customerId")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := resolver.Resolve(context.Background(), "order", orders[0], "customerId")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first != customerID || second != customerID {
		t.Errorf("expected %s twice, got %s and %s", customerID, first, second)
	}
}

func TestParentResolver_EmptyLookup(t *testing.T) {
	svc := newFakeService()
	orderID := svc.add("order", domain.StateActive, map[string]any{"customerId": nil})

	_, err := NewParentResolver(svc).Resolve(context.Background(), "order", orderID, "customerId")

	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	if !errors.Is(err, ErrLookupEmpty) {
		t.Errorf("expected ErrLookupEmpty, got %v", err)
	}
}

func TestParentResolver_NotFound(t *testing.T) {
	_, err := NewParentResolver(newFakeService()).Resolve(context.Background(), "order", uuid.New(), "customerId")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected wrapped ErrNotFound, got %v", err)
	}
}

func TestAggregator_Sum_Absent(t *testing.T) {
	svc := newFakeService()

	total, err := NewAggregator(svc).Sum(context.Background(), domain.SumQuery{
		EntityName:  "order",
		SumField:    "amount",
		LookupField: "customerId",
		ParentID:    uuid.New(),
		ActiveOnly:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total.Valid {
		t.Errorf("expected absent total, got %s", total.Decimal)
	}
}

func TestParentUpdater_Apply(t *testing.T) {
	svc := newFakeService()
	customerID := svc.add("customer", domain.StateActive, map[string]any{})
	updater := NewParentUpdater(svc)

	value := decimal.NewNullDecimal(decimal.RequireFromString("12.50"))
	if err := updater.Apply(context.Background(), "customer", customerID, "lifetimeTotal", value); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := svc.records[customerID].Fields["lifetimeTotal"].(decimal.Decimal)
	if !got.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("expected 12.5, got %s", got)
	}

	if err := updater.Apply(context.Background(), "customer", customerID, "lifetimeTotal", decimal.NullDecimal{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := svc.records[customerID].Fields["lifetimeTotal"]; ok {
		t.Error("null value should clear the field")
	}
}

func TestParentUpdater_MissingParent(t *testing.T) {
	err := NewParentUpdater(newFakeService()).Apply(context.Background(), "customer", uuid.New(), "lifetimeTotal", decimal.NullDecimal{})

	var updErr *UpdateError
	if !errors.As(err, &updErr) {
		t.Fatalf("expected UpdateError, got %v", err)
	}
	if updErr.Entity != "customer" || updErr.Field != "lifetimeTotal" {
		t.Errorf("unexpected error fields: %+v", updErr)
	}
}

func TestPolicyFor(t *testing.T) {
	if PolicyFor(true) != PolicySurface {
		t.Error("debug mode should surface errors")
	}
	if PolicyFor(false) != PolicySuppress {
		t.Error("non-debug mode should suppress errors")
	}
}

func TestOutcome_Outputs(t *testing.T) {
	out := newOutcome()
	out.enter(StateGuarding)
	out.Skipped = true
	out.enter(StateDone)

	outputs := out.Outputs()
	if outputs["result"] != OutcomeSkipped {
		t.Errorf("expected skipped, got %v", outputs["result"])
	}
	if _, ok := outputs["total"]; ok {
		t.Error("skipped run should not report a total")
	}

	out = newOutcome()
	out.ParentID = uuid.New()
	out.Total = decimal.NewNullDecimal(decimal.NewFromInt(400))
	out.enter(StateDone)

	outputs = out.Outputs()
	if outputs["total"] != "400" {
		t.Errorf("expected total 400, got %v", outputs["total"])
	}
	if outputs["parent_id"] != out.ParentID.String() {
		t.Errorf("expected parent_id, got %v", outputs["parent_id"])
	}
}
