package sqlite

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/rollup"
	"github.com/shaiso/rollup/internal/store"
)

func createCustomer(t *testing.T, s *RecordStore) uuid.UUID {
	t.Helper()
	rec := &domain.Record{EntityName: "customer", Fields: map[string]any{"name": "C1"}}
	require.NoError(t, s.Create(context.Background(), rec))
	return rec.ID
}

func createOrder(t *testing.T, s *RecordStore, customerID uuid.UUID, amount string, state domain.StateCode) uuid.UUID {
	t.Helper()
	rec := &domain.Record{
		EntityName: "order",
		StateCode:  state,
		Fields: map[string]any{
			"customerId": domain.EntityReference{EntityName: "customer", ID: customerID},
			"amount":     decimal.RequireFromString(amount),
			"note":       "n/a",
		},
	}
	require.NoError(t, s.Create(context.Background(), rec))
	return rec.ID
}

func service(t *testing.T, s *RecordStore) rollup.RecordService {
	t.Helper()
	svc, err := s.CreateService(context.Background(), uuid.New())
	require.NoError(t, err)
	return svc
}

func TestRetrieve_Projection(t *testing.T) {
	s := newOrderStore(t)
	customerID := createCustomer(t, s)
	orderID := createOrder(t, s, customerID, "100", domain.StateActive)

	rec, err := service(t, s).Retrieve(context.Background(), "order", orderID, "customerId")
	require.NoError(t, err)

	require.Equal(t, orderID, rec.ID)
	require.Len(t, rec.Fields, 1, "only the requested column should be returned")

	ref, ok := rec.Reference("customerId")
	require.True(t, ok)
	require.Equal(t, customerID, ref.ID)
	require.Equal(t, "customer", ref.EntityName)
}

func TestRetrieve_MoneyDecodedAsDecimal(t *testing.T) {
	s := newOrderStore(t)
	orderID := createOrder(t, s, createCustomer(t, s), "12.34", domain.StateActive)

	rec, err := service(t, s).Retrieve(context.Background(), "order", orderID, "amount", "note")
	require.NoError(t, err)

	amount, ok := rec.Fields["amount"].(decimal.Decimal)
	require.True(t, ok, "amount should be decimal, got %T", rec.Fields["amount"])
	require.True(t, amount.Equal(decimal.RequireFromString("12.34")))
	require.Equal(t, "n/a", rec.Fields["note"])
}

func TestRetrieve_Errors(t *testing.T) {
	s := newOrderStore(t)
	orderID := createOrder(t, s, createCustomer(t, s), "1", domain.StateActive)
	svc := service(t, s)
	ctx := context.Background()

	_, err := svc.Retrieve(ctx, "order", uuid.New(), "customerId")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Retrieve(ctx, "order", orderID, "custmerId")
	require.ErrorIs(t, err, store.ErrUnknownAttribute)

	_, err = svc.Retrieve(ctx, "invoice", orderID, "customerId")
	require.ErrorIs(t, err, store.ErrUnknownEntity)
}

func TestAggregateSum_ActiveOnly(t *testing.T) {
	s := newOrderStore(t)
	customerID := createCustomer(t, s)
	createOrder(t, s, customerID, "10", domain.StateActive)
	createOrder(t, s, customerID, "5", domain.StateInactive)
	createOrder(t, s, customerID, "7", domain.StateActive)

	// Заказ другого клиента не должен попасть в сумму
	createOrder(t, s, createCustomer(t, s), "1000", domain.StateActive)

	q := domain.SumQuery{
		EntityName:  "order",
		SumField:    "amount",
		LookupField: "customerId",
		ParentID:    customerID,
		ActiveOnly:  true,
	}

	total, err := service(t, s).AggregateSum(context.Background(), q)
	require.NoError(t, err)
	require.True(t, total.Valid)
	require.True(t, total.Decimal.Equal(decimal.NewFromInt(17)), "got %s", total.Decimal)

	q.ActiveOnly = false
	total, err = service(t, s).AggregateSum(context.Background(), q)
	require.NoError(t, err)
	require.True(t, total.Decimal.Equal(decimal.NewFromInt(22)), "got %s", total.Decimal)
}

func TestAggregateSum_FractionalAmounts(t *testing.T) {
	s := newOrderStore(t)
	customerID := createCustomer(t, s)
	for range 3 {
		createOrder(t, s, customerID, "0.10", domain.StateActive)
	}
	createOrder(t, s, customerID, "19.99", domain.StateActive)

	total, err := service(t, s).AggregateSum(context.Background(), domain.SumQuery{
		EntityName:  "order",
		SumField:    "amount",
		LookupField: "customerId",
		ParentID:    customerID,
		ActiveOnly:  true,
	})
	require.NoError(t, err)
	require.True(t, total.Valid)
	require.Equal(t, "20.29", total.Decimal.String())
}

func TestAggregateSum_NoRowsIsAbsent(t *testing.T) {
	s := newOrderStore(t)
	customerID := createCustomer(t, s)
	createOrder(t, s, customerID, "5", domain.StateInactive)

	total, err := service(t, s).AggregateSum(context.Background(), domain.SumQuery{
		EntityName:  "order",
		SumField:    "amount",
		LookupField: "customerId",
		ParentID:    customerID,
		ActiveOnly:  true,
	})
	require.NoError(t, err)
	require.False(t, total.Valid)
}

func TestAggregateSum_InvalidFields(t *testing.T) {
	s := newOrderStore(t)
	svc := service(t, s)

	_, err := svc.AggregateSum(context.Background(), domain.SumQuery{
		EntityName: "order", SumField: "amout", LookupField: "customerId", ParentID: uuid.New(),
	})
	require.ErrorIs(t, err, store.ErrUnknownAttribute)

	_, err = svc.AggregateSum(context.Background(), domain.SumQuery{
		EntityName: "order", SumField: "note", LookupField: "customerId", ParentID: uuid.New(),
	})
	require.ErrorIs(t, err, store.ErrInvalidValue)
}

func TestUpdate(t *testing.T) {
	s := newOrderStore(t)
	customerID := createCustomer(t, s)
	svc := service(t, s)
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, "customer", customerID, "lifetimeTotal", decimal.NewFromInt(400)))

	rec, err := svc.Retrieve(ctx, "customer", customerID, "lifetimeTotal", "name")
	require.NoError(t, err)
	require.True(t, rec.Fields["lifetimeTotal"].(decimal.Decimal).Equal(decimal.NewFromInt(400)))
	require.Equal(t, "C1", rec.Fields["name"], "other fields must be preserved")

	// nil очищает поле
	require.NoError(t, svc.Update(ctx, "customer", customerID, "lifetimeTotal", nil))
	rec, err = svc.Retrieve(ctx, "customer", customerID, "lifetimeTotal")
	require.NoError(t, err)
	require.NotContains(t, rec.Fields, "lifetimeTotal")
}

func TestUpdate_Errors(t *testing.T) {
	s := newOrderStore(t)
	customerID := createCustomer(t, s)
	svc := service(t, s)
	ctx := context.Background()

	require.ErrorIs(t, svc.Update(ctx, "customer", customerID, "creditLimit", decimal.NewFromInt(1)), store.ErrPermissionDenied)
	require.ErrorIs(t, svc.Update(ctx, "customer", customerID, "lifetimeTotl", nil), store.ErrUnknownAttribute)
	require.ErrorIs(t, svc.Update(ctx, "custmer", customerID, "lifetimeTotal", nil), store.ErrUnknownEntity)
	require.ErrorIs(t, svc.Update(ctx, "customer", uuid.New(), "lifetimeTotal", nil), store.ErrNotFound)
}

func TestUpdate_RecordsModifiedBy(t *testing.T) {
	s := newOrderStore(t)
	customerID := createCustomer(t, s)
	userID := uuid.New()

	svc, err := s.CreateService(context.Background(), userID)
	require.NoError(t, err)
	require.NoError(t, svc.Update(context.Background(), "customer", customerID, "lifetimeTotal", decimal.NewFromInt(1)))

	var modifiedBy string
	require.NoError(t, s.db.QueryRow("SELECT modified_by FROM records WHERE id = ?", customerID.String()).Scan(&modifiedBy))
	require.Equal(t, userID.String(), modifiedBy)
}

// --- Activity over SQLite ---

func TestActivity_OrderTotalsToCustomer(t *testing.T) {
	s := newOrderStore(t)
	customerID := createCustomer(t, s)
	var orders []uuid.UUID
	for _, amount := range []string{"100", "250", "50"} {
		orders = append(orders, createOrder(t, s, customerID, amount, domain.StateActive))
	}

	activity := rollup.New(rollup.Config{Factory: s})
	cfg := domain.RollupConfig{
		ChildRollupField:  "amount",
		ChildLookupField:  "customerId",
		ParentEntityName:  "customer",
		ParentResultField: "lifetimeTotal",
	}
	wctx := rollup.FixedContext{EntityName: "order", RecordID: orders[2], CallDepth: 1, UserID: uuid.New()}

	out, err := activity.Run(context.Background(), cfg, wctx)
	require.NoError(t, err)
	require.Equal(t, rollup.StateDone, out.State)

	rec, err := service(t, s).Retrieve(context.Background(), "customer", customerID, "lifetimeTotal")
	require.NoError(t, err)
	require.True(t, rec.Fields["lifetimeTotal"].(decimal.Decimal).Equal(decimal.NewFromInt(400)))

	// Деактивация заказа и повторный запуск пересчитывают сумму
	require.NoError(t, s.SetState(context.Background(), "order", orders[1], domain.StateInactive))
	_, err = activity.Run(context.Background(), cfg, wctx)
	require.NoError(t, err)

	rec, err = service(t, s).Retrieve(context.Background(), "customer", customerID, "lifetimeTotal")
	require.NoError(t, err)
	require.True(t, rec.Fields["lifetimeTotal"].(decimal.Decimal).Equal(decimal.NewFromInt(150)))
}

func TestActivity_InvalidNamesDebugMode(t *testing.T) {
	s := newOrderStore(t)
	customerID := createCustomer(t, s)
	orderID := createOrder(t, s, customerID, "100", domain.StateActive)
	activity := rollup.New(rollup.Config{Factory: s})
	wctx := rollup.FixedContext{EntityName: "order", RecordID: orderID, CallDepth: 1, UserID: uuid.New()}

	cfg := domain.RollupConfig{
		ChildRollupField:  "amount",
		ChildLookupField:  "custId",
		ParentEntityName:  "customer",
		ParentResultField: "lifetimeTotal",
		DebugMode:         true,
	}

	_, err := activity.Run(context.Background(), cfg, wctx)
	var hostErr *rollup.HostError
	require.ErrorAs(t, err, &hostErr)
	require.Contains(t, hostErr.Message, "custId")

	cfg.ChildLookupField = "customerId"
	cfg.ParentResultField = "creditLimit"
	_, err = activity.Run(context.Background(), cfg, wctx)
	require.ErrorAs(t, err, &hostErr)
	require.ErrorIs(t, err, store.ErrPermissionDenied)

	cfg.DebugMode = false
	out, err := activity.Run(context.Background(), cfg, wctx)
	require.NoError(t, err)
	require.Equal(t, rollup.OutcomeSuppressed, out.Result())
}
