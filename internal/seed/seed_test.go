package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/sqlite"
)

const ordersFixture = `
attributes:
  - {entity: customer, name: name, type: string}
  - {entity: customer, name: lifetimeTotal, type: money}
  - {entity: order, name: customerId, type: lookup}
  - {entity: order, name: amount, type: money}
records:
  - key: c1
    entity: customer
    fields: {name: Contoso}
  - key: o1
    entity: order
    fields: {amount: 100.25}
    lookups: {customerId: c1}
  - key: o2
    entity: order
    inactive: true
    fields: {amount: "40"}
    lookups: {customerId: c1}
bindings:
  - name: order-total-to-customer
    entity: order
    messages: [create, update]
    config:
      child_rollup_field: amount
      child_lookup_field: customerId
      parent_entity_name: customer
      parent_result_field: lifetimeTotal
      debug_mode: false
    retry: {max_attempts: 5, backoff: exponential}
`

type fakeBindings struct {
	created []domain.Binding
}

func (f *fakeBindings) Create(_ context.Context, b *domain.Binding) error {
	f.created = append(f.created, *b)
	return nil
}

func newRecordStore(t *testing.T) *sqlite.RecordStore {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return sqlite.NewRecordStore(db)
}

func TestApply(t *testing.T) {
	f, err := Parse([]byte(ordersFixture))
	require.NoError(t, err)

	ctx := context.Background()
	records := newRecordStore(t)
	bindings := &fakeBindings{}

	res, err := Apply(ctx, f, records, bindings, nil)
	require.NoError(t, err)
	require.Equal(t, 4, res.Attributes)
	require.Len(t, res.Records, 3)

	customer := res.Records["c1"]
	require.Equal(t, "customer", customer.EntityName)

	svc, err := records.CreateService(ctx, uuid.Nil)
	require.NoError(t, err)

	order, err := svc.Retrieve(ctx, "order", res.Records["o1"].ID, "customerId", "amount")
	require.NoError(t, err)
	ref, ok := order.Reference("customerId")
	require.True(t, ok)
	require.Equal(t, customer, ref)
	require.True(t, order.Fields["amount"].(decimal.Decimal).Equal(decimal.RequireFromString("100.25")))

	total, err := svc.AggregateSum(ctx, domain.SumQuery{
		EntityName:  "order",
		SumField:    "amount",
		LookupField: "customerId",
		ParentID:    customer.ID,
		ActiveOnly:  true,
	})
	require.NoError(t, err)
	require.Equal(t, "100.25", total.Decimal.String(), "inactive order must not be summed")

	require.Len(t, bindings.created, 1)
	b := bindings.created[0]
	require.Equal(t, domain.ActivityTypeRollup, b.ActivityType)
	require.True(t, b.Enabled)
	require.True(t, b.Matches("order", domain.MessageUpdate))
	require.Equal(t, 5, b.Retry.MaxAttempts)

	cfg, err := domain.ParseRollupConfig(b.Config)
	require.NoError(t, err)
	require.False(t, cfg.DebugMode)
}

func TestApply_BindingsNeedStore(t *testing.T) {
	f, err := Parse([]byte(ordersFixture))
	require.NoError(t, err)

	_, err = Apply(context.Background(), f, newRecordStore(t), nil, nil)
	require.ErrorIs(t, err, ErrNoBindingStore)
}

func TestApply_ExplicitReference(t *testing.T) {
	orderID, customerID := uuid.New(), uuid.New()
	f, err := Parse([]byte(`
attributes:
  - {entity: order, name: customerId, type: lookup}
records:
  - id: ` + orderID.String() + `
    entity: order
    lookups: {customerId: customer/` + customerID.String() + `}
`))
	require.NoError(t, err)

	records := newRecordStore(t)
	_, err = Apply(context.Background(), f, records, nil, nil)
	require.NoError(t, err)

	svc, err := records.CreateService(context.Background(), uuid.Nil)
	require.NoError(t, err)
	rec, err := svc.Retrieve(context.Background(), "order", orderID, "customerId")
	require.NoError(t, err)
	ref, ok := rec.Reference("customerId")
	require.True(t, ok)
	require.Equal(t, customerID, ref.ID)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":          "records: [",
		"unknown type":      "attributes: [{entity: order, name: amount, type: float}]",
		"missing entity":    "records: [{key: c1}]",
		"unknown key":       "records: [{entity: order, lookups: {customerId: c9}}]",
		"forward reference": "records: [{entity: order, lookups: {customerId: c1}}, {key: c1, entity: customer}]",
		"duplicate key":     "records: [{key: c1, entity: customer}, {key: c1, entity: customer}]",
		"unknown message":   "bindings: [{name: b, entity: order, messages: [delete], config: {}}]",
		"rollup config":     "bindings: [{name: b, entity: order, config: {child_rollup_field: amount}}]",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			require.ErrorIs(t, err, ErrInvalidFixture)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ordersFixture), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Records, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
