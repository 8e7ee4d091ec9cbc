package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/rollup"
)

// writeTracker оборачивает ServiceFactory и запоминает записи,
// успешно изменённые через выданные RecordService.
type writeTracker struct {
	factory rollup.ServiceFactory

	mu      sync.Mutex
	written []domain.EntityReference
}

func newWriteTracker(factory rollup.ServiceFactory) *writeTracker {
	return &writeTracker{factory: factory}
}

// CreateService реализует rollup.ServiceFactory.
func (t *writeTracker) CreateService(ctx context.Context, userID uuid.UUID) (rollup.RecordService, error) {
	svc, err := t.factory.CreateService(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &trackedService{RecordService: svc, tracker: t}, nil
}

// Written возвращает изменённые записи без повторов, в порядке первой записи.
func (t *writeTracker) Written() []domain.EntityReference {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]domain.EntityReference, len(t.written))
	copy(out, t.written)
	return out
}

func (t *writeTracker) record(ref domain.EntityReference) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, w := range t.written {
		if w == ref {
			return
		}
	}
	t.written = append(t.written, ref)
}

type trackedService struct {
	rollup.RecordService
	tracker *writeTracker
}

func (s *trackedService) Update(ctx context.Context, entityName string, id uuid.UUID, field string, value any) error {
	if err := s.RecordService.Update(ctx, entityName, id, field, value); err != nil {
		return err
	}
	s.tracker.record(domain.EntityReference{EntityName: entityName, ID: id})
	return nil
}
