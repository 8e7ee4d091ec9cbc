package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/rollup/internal/domain"
)

// BindingRepo — репозиторий для работы с bindings.
type BindingRepo struct {
	pool *pgxpool.Pool
}

// NewBindingRepo создаёт новый BindingRepo.
func NewBindingRepo(pool *pgxpool.Pool) *BindingRepo {
	return &BindingRepo{pool: pool}
}

const bindingColumns = `id, name, entity_name, messages, activity_type, config, retry, enabled, created_at`

// Create создаёт новый binding.
func (r *BindingRepo) Create(ctx context.Context, b *domain.Binding) error {
	configJSON, err := json.Marshal(b.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var retryJSON []byte
	if b.Retry != nil {
		if retryJSON, err = json.Marshal(b.Retry); err != nil {
			return fmt.Errorf("marshal retry: %w", err)
		}
	}
	messages := b.Messages
	if messages == nil {
		messages = []string{}
	}

	query := `
		INSERT INTO bindings (` + bindingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		b.ID,
		b.Name,
		b.EntityName,
		messages,
		b.ActivityType,
		configJSON,
		retryJSON,
		b.Enabled,
		b.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: binding %q", ErrAlreadyExists, b.Name)
		}
		return fmt.Errorf("insert binding: %w", err)
	}
	return nil
}

// GetByID возвращает binding по ID.
func (r *BindingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Binding, error) {
	query := `SELECT ` + bindingColumns + ` FROM bindings WHERE id = $1`

	b, err := scanBinding(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// ListByEntity возвращает включённые bindings для типа записи.
func (r *BindingRepo) ListByEntity(ctx context.Context, entityName string) ([]domain.Binding, error) {
	query := `
		SELECT ` + bindingColumns + `
		FROM bindings
		WHERE entity_name = $1 AND enabled
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, entityName)
	if err != nil {
		return nil, fmt.Errorf("list bindings by entity: %w", err)
	}
	return collectBindings(rows)
}

// List возвращает все bindings.
func (r *BindingRepo) List(ctx context.Context) ([]domain.Binding, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bindingColumns+` FROM bindings ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list bindings: %w", err)
	}
	return collectBindings(rows)
}

// --- Helpers ---

func collectBindings(rows pgx.Rows) ([]domain.Binding, error) {
	defer rows.Close()

	var bindings []domain.Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, *b)
	}
	return bindings, rows.Err()
}

// scanBinding читает binding из pgx.Row или pgx.Rows.
func scanBinding(row pgx.Row) (*domain.Binding, error) {
	var b domain.Binding
	var configJSON, retryJSON []byte

	err := row.Scan(
		&b.ID,
		&b.Name,
		&b.EntityName,
		&b.Messages,
		&b.ActivityType,
		&configJSON,
		&retryJSON,
		&b.Enabled,
		&b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan binding: %w", err)
	}

	if configJSON != nil {
		if err := json.Unmarshal(configJSON, &b.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	if retryJSON != nil {
		b.Retry = &domain.RetryPolicy{}
		if err := json.Unmarshal(retryJSON, b.Retry); err != nil {
			return nil, fmt.Errorf("unmarshal retry: %w", err)
		}
	}

	return &b, nil
}
