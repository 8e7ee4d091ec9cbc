package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/rollup/internal/domain"
)

// InvocationRepo — репозиторий для работы с invocations.
type InvocationRepo struct {
	pool *pgxpool.Pool
}

// NewInvocationRepo создаёт новый InvocationRepo.
func NewInvocationRepo(pool *pgxpool.Pool) *InvocationRepo {
	return &InvocationRepo{pool: pool}
}

const invocationColumns = `id, binding_id, event_id, entity_name, record_id, message, depth,
		       initiating_user_id, correlation_id, attempt, status, outputs,
		       started_at, finished_at, error, created_at`

// Create создаёт invocation.
//
// Если invocation для пары (binding_id, event_id) уже есть, возвращает ErrAlreadyExists:
// повторная доставка события не запускает активность второй раз.
func (r *InvocationRepo) Create(ctx context.Context, inv *domain.Invocation) error {
	query := `
		INSERT INTO invocations (id, binding_id, event_id, entity_name, record_id, message, depth,
		                         initiating_user_id, correlation_id, attempt, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (binding_id, event_id) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		inv.ID,
		inv.BindingID,
		inv.EventID,
		inv.EntityName,
		inv.RecordID,
		inv.Message,
		inv.Depth,
		inv.InitiatingUserID,
		inv.CorrelationID,
		inv.Attempt,
		inv.Status,
		inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetByID возвращает invocation по ID.
func (r *InvocationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invocation, error) {
	query := `SELECT ` + invocationColumns + ` FROM invocations WHERE id = $1`

	inv, err := scanInvocation(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inv, err
}

// Update обновляет invocation.
func (r *InvocationRepo) Update(ctx context.Context, inv *domain.Invocation) error {
	outputsJSON, err := json.Marshal(inv.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}

	query := `
		UPDATE invocations
		SET attempt = $2, status = $3, outputs = $4,
		    started_at = $5, finished_at = $6, error = $7
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		inv.ID,
		inv.Attempt,
		inv.Status,
		outputsJSON,
		inv.StartedAt,
		inv.FinishedAt,
		nullString(inv.Error),
	)
	if err != nil {
		return fmt.Errorf("update invocation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim атомарно переводит invocation из QUEUED в RUNNING.
//
// Если invocation уже забран другим обработчиком (consumer и poll loop
// видят одни и те же invocations), возвращает ErrStateChanged.
func (r *InvocationRepo) Claim(ctx context.Context, inv *domain.Invocation) error {
	query := `
		UPDATE invocations
		SET status = $2, attempt = $3, started_at = $4
		WHERE id = $1 AND status = $5
	`
	result, err := r.pool.Exec(ctx, query,
		inv.ID,
		domain.InvocationStatusRunning,
		inv.Attempt,
		inv.StartedAt,
		domain.InvocationStatusQueued,
	)
	if err != nil {
		return fmt.Errorf("claim invocation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: invocation %s", ErrStateChanged, inv.ID)
	}
	return nil
}

// ListQueued возвращает invocations в статусе QUEUED.
func (r *InvocationRepo) ListQueued(ctx context.Context, limit int) ([]domain.Invocation, error) {
	query := `
		SELECT ` + invocationColumns + `
		FROM invocations
		WHERE status = 'QUEUED'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued invocations: %w", err)
	}
	return collectInvocations(rows)
}

// InvocationFilter — фильтр для List.
type InvocationFilter struct {
	Status domain.InvocationStatus
	Limit  int
	Offset int
}

// List возвращает invocations, новые первыми.
func (r *InvocationRepo) List(ctx context.Context, filter InvocationFilter) ([]domain.Invocation, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `
		SELECT ` + invocationColumns + `
		FROM invocations
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, nullString(string(filter.Status)), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list invocations: %w", err)
	}
	return collectInvocations(rows)
}

// --- Helpers ---

func collectInvocations(rows pgx.Rows) ([]domain.Invocation, error) {
	defer rows.Close()

	var invocations []domain.Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, *inv)
	}
	return invocations, rows.Err()
}

func scanInvocation(row pgx.Row) (*domain.Invocation, error) {
	var inv domain.Invocation
	var outputsJSON []byte
	var invError *string

	err := row.Scan(
		&inv.ID,
		&inv.BindingID,
		&inv.EventID,
		&inv.EntityName,
		&inv.RecordID,
		&inv.Message,
		&inv.Depth,
		&inv.InitiatingUserID,
		&inv.CorrelationID,
		&inv.Attempt,
		&inv.Status,
		&outputsJSON,
		&inv.StartedAt,
		&inv.FinishedAt,
		&invError,
		&inv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan invocation: %w", err)
	}

	if outputsJSON != nil {
		if err := json.Unmarshal(outputsJSON, &inv.Outputs); err != nil {
			return nil, fmt.Errorf("unmarshal outputs: %w", err)
		}
	}
	if invError != nil {
		inv.Error = *invError
	}

	return &inv, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
