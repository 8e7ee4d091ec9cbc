package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/rollup"
	"github.com/shaiso/rollup/internal/store"
)

// RecordRepo — репозиторий записей в PostgreSQL.
//
// Поля записи хранятся в колонке fields (JSONB). Сумма считается на стороне БД
// в numeric, поэтому денежные значения не теряют точность.
type RecordRepo struct {
	pool *pgxpool.Pool
}

// NewRecordRepo создаёт новый RecordRepo.
func NewRecordRepo(pool *pgxpool.Pool) *RecordRepo {
	return &RecordRepo{pool: pool}
}

// CreateService возвращает доступ к записям от имени userID.
func (r *RecordRepo) CreateService(_ context.Context, userID uuid.UUID) (rollup.RecordService, error) {
	return &RecordService{repo: r, userID: userID}, nil
}

// DefineAttribute добавляет или заменяет описание поля.
func (r *RecordRepo) DefineAttribute(ctx context.Context, attr store.Attribute) error {
	query := `
		INSERT INTO attributes (entity_name, name, type, writable)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_name, name) DO UPDATE SET type = EXCLUDED.type, writable = EXCLUDED.writable
	`
	_, err := r.pool.Exec(ctx, query, attr.EntityName, attr.Name, string(attr.Type), attr.Writable)
	if err != nil {
		return fmt.Errorf("define attribute %s.%s: %w", attr.EntityName, attr.Name, err)
	}
	return nil
}

// Create создаёт новую запись. Пустой ID генерируется.
func (r *RecordRepo) Create(ctx context.Context, record *domain.Record) error {
	attrs, err := r.attributes(ctx, record.EntityName)
	if err != nil {
		return err
	}

	fields, err := store.EncodeFields(record.EntityName, record.Fields, attrs)
	if err != nil {
		return err
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	query := `
		INSERT INTO records (id, entity_name, state_code, fields, created_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`
	_, err = r.pool.Exec(ctx, query, record.ID, record.EntityName, int(record.StateCode), string(fields), time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: record %s", ErrAlreadyExists, record.ID)
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// SetState меняет статус записи.
func (r *RecordRepo) SetState(ctx context.Context, entityName string, id uuid.UUID, state domain.StateCode) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE records SET state_code = $3, modified_at = now()
		WHERE entity_name = $1 AND id = $2
	`, entityName, id, int(state))
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, entityName, id)
	}
	return nil
}

// attributes загружает схему типа записи.
func (r *RecordRepo) attributes(ctx context.Context, entityName string) (store.Attributes, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT name, type, writable FROM attributes WHERE entity_name = $1
	`, entityName)
	if err != nil {
		return nil, fmt.Errorf("load attributes: %w", err)
	}
	defer rows.Close()

	attrs := make(store.Attributes)
	for rows.Next() {
		attr := store.Attribute{EntityName: entityName}
		var attrType string
		if err := rows.Scan(&attr.Name, &attrType, &attr.Writable); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		attr.Type = store.AttributeType(attrType)
		attrs[attr.Name] = attr
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load attributes: %w", err)
	}

	if len(attrs) == 0 {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownEntity, entityName)
	}
	return attrs, nil
}

// RecordService — доступ к записям PostgreSQL от имени пользователя.
type RecordService struct {
	repo   *RecordRepo
	userID uuid.UUID
}

// Retrieve возвращает запись только с полями columns.
func (s *RecordService) Retrieve(ctx context.Context, entityName string, id uuid.UUID, columns ...string) (*domain.Record, error) {
	attrs, err := s.repo.attributes(ctx, entityName)
	if err != nil {
		return nil, err
	}
	if err := attrs.CheckColumns(entityName, columns); err != nil {
		return nil, err
	}
	if columns == nil {
		columns = []string{}
	}

	query := `
		SELECT state_code,
		       COALESCE((SELECT jsonb_object_agg(key, value)
		                 FROM jsonb_each(fields) WHERE key = ANY($3)), '{}'::jsonb)
		FROM records
		WHERE entity_name = $1 AND id = $2
	`
	var state int
	var raw []byte
	err = s.repo.pool.QueryRow(ctx, query, entityName, id, columns).Scan(&state, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", store.ErrNotFound, entityName, id)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", entityName, err)
	}

	fields, err := store.DecodeFields(raw, attrs)
	if err != nil {
		return nil, err
	}

	return &domain.Record{
		EntityName: entityName,
		ID:         id,
		StateCode:  domain.StateCode(state),
		Fields:     fields,
	}, nil
}

// AggregateSum считает SUM(q.SumField) в numeric по записям, ссылающимся на q.ParentID.
func (s *RecordService) AggregateSum(ctx context.Context, q domain.SumQuery) (decimal.NullDecimal, error) {
	attrs, err := s.repo.attributes(ctx, q.EntityName)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if _, err := attrs.CheckSum(q.EntityName, q.SumField, q.LookupField); err != nil {
		return decimal.NullDecimal{}, err
	}

	query := `
		SELECT SUM((fields->>$2::text)::numeric)::text
		FROM records
		WHERE entity_name = $1 AND fields->($3::text)->>'id' = $4`
	if q.ActiveOnly {
		query += ` AND state_code = 0`
	}

	var total *string
	err = s.repo.pool.QueryRow(ctx, query, q.EntityName, q.SumField, q.LookupField, q.ParentID.String()).Scan(&total)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("sum %s.%s: %w", q.EntityName, q.SumField, err)
	}
	if total == nil {
		return decimal.NullDecimal{}, nil
	}

	d, err := decimal.NewFromString(*total)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse sum %q: %w", *total, err)
	}
	return decimal.NewNullDecimal(d), nil
}

// Update записывает одно поле. nil записывается как JSON null.
func (s *RecordService) Update(ctx context.Context, entityName string, id uuid.UUID, field string, value any) error {
	attrs, err := s.repo.attributes(ctx, entityName)
	if err != nil {
		return err
	}
	attr, err := attrs.CheckWritable(entityName, field)
	if err != nil {
		return err
	}

	encoded, err := store.EncodeValue(attr, value)
	if err != nil {
		return err
	}

	query := `
		UPDATE records
		SET fields = jsonb_set(fields, ARRAY[$3::text], $4::jsonb, true),
		    modified_at = now(), modified_by = $5
		WHERE entity_name = $1 AND id = $2
	`
	result, err := s.repo.pool.Exec(ctx, query, entityName, id, field, string(encoded), s.userID)
	if err != nil {
		return fmt.Errorf("update %s.%s: %w", entityName, field, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, entityName, id)
	}
	return nil
}
