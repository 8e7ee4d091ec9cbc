package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/store"
)

// RecordWriter — запись схемы и данных (sqlite.RecordStore, repo.RecordRepo).
type RecordWriter interface {
	DefineAttribute(ctx context.Context, attr store.Attribute) error
	Create(ctx context.Context, record *domain.Record) error
	SetState(ctx context.Context, entityName string, id uuid.UUID, state domain.StateCode) error
}

// BindingWriter — регистрация bindings (repo.BindingRepo).
type BindingWriter interface {
	Create(ctx context.Context, b *domain.Binding) error
}

// Result — что создано.
type Result struct {
	// Records — key записи → ссылка на неё. Записи без key не попадают.
	Records map[string]domain.EntityReference `json:"records"`

	Attributes int              `json:"attributes"`
	Bindings   []domain.Binding `json:"bindings,omitempty"`
}

// Apply записывает fixture: сначала схему, затем записи по порядку, затем bindings.
// bindings может быть nil, если в fixture нет bindings.
func Apply(ctx context.Context, f *Fixture, records RecordWriter, bindings BindingWriter, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(f.Bindings) > 0 && bindings == nil {
		return nil, ErrNoBindingStore
	}

	res := &Result{Records: make(map[string]domain.EntityReference)}

	for _, a := range f.Attributes {
		t, err := attributeType(a.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
		}
		attr := store.Attribute{EntityName: a.Entity, Name: a.Name, Type: t, Writable: !a.ReadOnly}
		if err := records.DefineAttribute(ctx, attr); err != nil {
			return nil, err
		}
		res.Attributes++
	}

	for i, r := range f.Records {
		rec, err := buildRecord(r, res.Records)
		if err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		if err := records.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
		if r.Key != "" {
			res.Records[r.Key] = domain.EntityReference{EntityName: rec.EntityName, ID: rec.ID}
		}
		logger.Debug("seeded record", "key", r.Key, "entity", rec.EntityName, "record_id", rec.ID)
	}

	for _, b := range f.Bindings {
		binding := buildBinding(b)
		if err := bindings.Create(ctx, &binding); err != nil {
			return nil, fmt.Errorf("binding %s: %w", b.Name, err)
		}
		res.Bindings = append(res.Bindings, binding)
	}

	logger.Info("fixture applied",
		"attributes", res.Attributes,
		"records", len(f.Records),
		"bindings", len(res.Bindings),
	)
	return res, nil
}

func buildRecord(r Record, keys map[string]domain.EntityReference) (*domain.Record, error) {
	rec := &domain.Record{
		EntityName: r.Entity,
		Fields:     make(map[string]any, len(r.Fields)+len(r.Lookups)),
	}
	if r.ID != "" {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: id %q: %v", ErrInvalidFixture, r.ID, err)
		}
		rec.ID = id
	}
	if r.Inactive {
		rec.StateCode = domain.StateInactive
	}
	for k, v := range r.Fields {
		rec.Fields[k] = v
	}
	for field, target := range r.Lookups {
		ref, err := resolveLookup(target, keys)
		if err != nil {
			return nil, fmt.Errorf("lookups.%s: %w", field, err)
		}
		rec.Fields[field] = ref
	}
	return rec, nil
}

// resolveLookup понимает key записи из fixture или "entity/uuid".
func resolveLookup(target string, keys map[string]domain.EntityReference) (domain.EntityReference, error) {
	if ref, ok := keys[target]; ok {
		return ref, nil
	}
	entity, rawID, ok := strings.Cut(target, "/")
	if !ok {
		return domain.EntityReference{}, fmt.Errorf("%w: unknown key %q", ErrInvalidFixture, target)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return domain.EntityReference{}, fmt.Errorf("%w: %q: %v", ErrInvalidFixture, target, err)
	}
	return domain.EntityReference{EntityName: entity, ID: id}, nil
}

func buildBinding(b Binding) domain.Binding {
	binding := domain.Binding{
		ID:           uuid.New(),
		Name:         b.Name,
		EntityName:   b.Entity,
		Messages:     b.Messages,
		ActivityType: b.activity(),
		Config:       b.Config,
		Enabled:      !b.Disabled,
		CreatedAt:    time.Now().UTC(),
	}
	if b.Retry != nil {
		binding.Retry = &domain.RetryPolicy{
			MaxAttempts:    b.Retry.MaxAttempts,
			Backoff:        b.Retry.Backoff,
			InitialDelayMs: b.Retry.InitialDelayMs,
			MaxDelayMs:     b.Retry.MaxDelayMs,
		}
	}
	return binding
}
