package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/mq"
	"github.com/shaiso/rollup/internal/repo"
	"github.com/shaiso/rollup/internal/rollup"
	"github.com/shaiso/rollup/internal/sqlite"
	"github.com/shaiso/rollup/internal/store"
)

// --- In-memory stores ---

type fakeBindings struct {
	items []domain.Binding
}

func (f *fakeBindings) ListByEntity(_ context.Context, entityName string) ([]domain.Binding, error) {
	var out []domain.Binding
	for _, b := range f.items {
		if b.EntityName == entityName && b.Enabled {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBindings) GetByID(_ context.Context, id uuid.UUID) (*domain.Binding, error) {
	for i := range f.items {
		if f.items[i].ID == id {
			b := f.items[i]
			return &b, nil
		}
	}
	return nil, repo.ErrNotFound
}

type fakeInvocations struct {
	mu    sync.Mutex
	items map[uuid.UUID]domain.Invocation
	order []uuid.UUID
}

func newFakeInvocations() *fakeInvocations {
	return &fakeInvocations{items: make(map[uuid.UUID]domain.Invocation)}
}

func (f *fakeInvocations) Create(_ context.Context, inv *domain.Invocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.items {
		if existing.BindingID == inv.BindingID && existing.EventID == inv.EventID {
			return repo.ErrAlreadyExists
		}
	}
	f.items[inv.ID] = *inv
	f.order = append(f.order, inv.ID)
	return nil
}

func (f *fakeInvocations) GetByID(_ context.Context, id uuid.UUID) (*domain.Invocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.items[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &inv, nil
}

func (f *fakeInvocations) Update(_ context.Context, inv *domain.Invocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[inv.ID]; !ok {
		return repo.ErrNotFound
	}
	f.items[inv.ID] = *inv
	return nil
}

func (f *fakeInvocations) Claim(_ context.Context, inv *domain.Invocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.items[inv.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if stored.Status != domain.InvocationStatusQueued {
		return repo.ErrStateChanged
	}
	stored.Status = domain.InvocationStatusRunning
	stored.Attempt = inv.Attempt
	stored.StartedAt = inv.StartedAt
	f.items[inv.ID] = stored
	return nil
}

func (f *fakeInvocations) ListQueued(_ context.Context, limit int) ([]domain.Invocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Invocation
	for _, id := range f.order {
		if inv := f.items[id]; inv.Status == domain.InvocationStatusQueued && len(out) < limit {
			out = append(out, inv)
		}
	}
	return out, nil
}

// racingInvocations отдаёт снимок invocation, а затем сразу забирает его
// "другим обработчиком" — как consumer и poll loop, прочитавшие одну строку.
type racingInvocations struct {
	*fakeInvocations
}

func (r racingInvocations) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invocation, error) {
	snapshot, err := r.fakeInvocations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	other := *snapshot
	other.MarkRunning()
	if err := r.fakeInvocations.Claim(ctx, &other); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (f *fakeInvocations) all() []domain.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Invocation, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.items[id])
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []mq.RecordChangedPayload
	err    error
}

func (f *fakePublisher) PublishRecordChanged(_ context.Context, payload mq.RecordChangedPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, payload)
	return nil
}

// --- Record store ---

// flakyFactory возвращает ошибку хранилища при первых failures вызовах AggregateSum.
type flakyFactory struct {
	rollup.ServiceFactory
	failures int

	mu    sync.Mutex
	calls int
}

func (f *flakyFactory) CreateService(ctx context.Context, userID uuid.UUID) (rollup.RecordService, error) {
	svc, err := f.ServiceFactory.CreateService(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &flakyService{RecordService: svc, factory: f}, nil
}

type flakyService struct {
	rollup.RecordService
	factory *flakyFactory
}

func (s *flakyService) AggregateSum(ctx context.Context, q domain.SumQuery) (decimal.NullDecimal, error) {
	s.factory.mu.Lock()
	s.factory.calls++
	fail := s.factory.calls <= s.factory.failures
	s.factory.mu.Unlock()

	if fail {
		return decimal.NullDecimal{}, errors.New("connection reset by peer")
	}
	return s.RecordService.AggregateSum(ctx, q)
}

type fixture struct {
	store       *sqlite.RecordStore
	customerID  uuid.UUID
	orderIDs    []uuid.UUID
	bindings    *fakeBindings
	invocations *fakeInvocations
	publisher   *fakePublisher
}

// newFixture создаёт SQLite-хранилище с клиентом и тремя заказами на 100, 250, 50.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	s := sqlite.NewRecordStore(db)
	for _, attr := range []store.Attribute{
		{EntityName: "customer", Name: "lifetimeTotal", Type: store.AttributeMoney, Writable: true},
		{EntityName: "order", Name: "customerId", Type: store.AttributeLookup, Writable: true},
		{EntityName: "order", Name: "amount", Type: store.AttributeMoney, Writable: true},
	} {
		if err := s.DefineAttribute(ctx, attr); err != nil {
			t.Fatalf("define attribute: %v", err)
		}
	}

	customer := &domain.Record{EntityName: "customer", Fields: map[string]any{}}
	if err := s.Create(ctx, customer); err != nil {
		t.Fatalf("create customer: %v", err)
	}

	f := &fixture{
		store:       s,
		customerID:  customer.ID,
		bindings:    &fakeBindings{},
		invocations: newFakeInvocations(),
		publisher:   &fakePublisher{},
	}

	for _, amount := range []int64{100, 250, 50} {
		order := &domain.Record{EntityName: "order", Fields: map[string]any{
			"customerId": domain.EntityReference{EntityName: "customer", ID: customer.ID},
			"amount":     decimal.NewFromInt(amount),
		}}
		if err := s.Create(ctx, order); err != nil {
			t.Fatalf("create order: %v", err)
		}
		f.orderIDs = append(f.orderIDs, order.ID)
	}

	return f
}

func (f *fixture) addBinding(config map[string]any, retry *domain.RetryPolicy) domain.Binding {
	b := domain.Binding{
		ID:           uuid.New(),
		Name:         "order-total-to-customer",
		EntityName:   "order",
		Messages:     []string{domain.MessageCreate, domain.MessageUpdate},
		ActivityType: domain.ActivityTypeRollup,
		Config:       config,
		Retry:        retry,
		Enabled:      true,
	}
	f.bindings.items = append(f.bindings.items, b)
	return b
}

func (f *fixture) worker(factory rollup.ServiceFactory) *Worker {
	return New(Config{
		Bindings:    f.bindings,
		Invocations: f.invocations,
		Publisher:   f.publisher,
		Registry:    NewDefaultRegistry(factory, nil, nil),
	})
}

func (f *fixture) lifetimeTotal(t *testing.T) (decimal.Decimal, bool) {
	t.Helper()
	svc, err := f.store.CreateService(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	rec, err := svc.Retrieve(context.Background(), "customer", f.customerID, "lifetimeTotal")
	if err != nil {
		t.Fatalf("retrieve customer: %v", err)
	}
	v, ok := rec.Fields["lifetimeTotal"].(decimal.Decimal)
	return v, ok
}

func rollupConfig(debug bool) map[string]any {
	return map[string]any{
		"child_rollup_field":  "amount",
		"child_lookup_field":  "customerId",
		"parent_entity_name":  "customer",
		"parent_result_field": "lifetimeTotal",
		"debug_mode":          debug,
	}
}

func orderEvent(orderID uuid.UUID, depth int) mq.RecordChangedPayload {
	eventID := uuid.New()
	return mq.RecordChangedPayload{
		EventID:          eventID,
		EntityName:       "order",
		RecordID:         orderID,
		Message:          domain.MessageUpdate,
		Depth:            depth,
		InitiatingUserID: uuid.New(),
		CorrelationID:    eventID,
	}
}
