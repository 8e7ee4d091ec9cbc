package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/rollup"
	"github.com/shaiso/rollup/internal/store"
)

// RecordStore — хранилище записей в SQLite.
//
// Используется CLI в локальном режиме и тестами. Поля записи хранятся
// JSON-объектом, сумма считается запросом SUM(json_extract(...)).
// Сумма считается в REAL и округляется до точности поля (store.AttributeType.Scale).
type RecordStore struct {
	db *DB
}

// NewRecordStore создаёт RecordStore.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// CreateService возвращает доступ к данным от имени userID.
// userID записывается в modified_by при обновлении.
func (s *RecordStore) CreateService(_ context.Context, userID uuid.UUID) (rollup.RecordService, error) {
	return &RecordService{store: s, userID: userID}, nil
}

// DefineAttribute добавляет или заменяет описание поля.
func (s *RecordStore) DefineAttribute(ctx context.Context, attr store.Attribute) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attributes (entity_name, name, type, writable)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (entity_name, name) DO UPDATE SET type = excluded.type, writable = excluded.writable
	`, attr.EntityName, attr.Name, string(attr.Type), attr.Writable)
	if err != nil {
		return fmt.Errorf("define attribute %s.%s: %w", attr.EntityName, attr.Name, err)
	}
	return nil
}

// Create сохраняет новую запись. Пустой ID генерируется.
func (s *RecordStore) Create(ctx context.Context, record *domain.Record) error {
	attrs, err := s.attributes(ctx, record.EntityName)
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, entity_name, state_code, fields)
		VALUES (?, ?, ?, ?)
	`, record.ID.String(), record.EntityName, int(record.StateCode), string(fields))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// SetState меняет статус записи (активна / деактивирована).
func (s *RecordStore) SetState(ctx context.Context, entityName string, id uuid.UUID, state domain.StateCode) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE records SET state_code = ?, modified_at = ?
		WHERE entity_name = ? AND id = ?
	`, int(state), time.Now().UTC(), entityName, id.String())
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return requireAffected(result, entityName, id)
}

// attributes загружает схему типа записи.
func (s *RecordStore) attributes(ctx context.Context, entityName string) (store.Attributes, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, writable FROM attributes WHERE entity_name = ?
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

// RecordService — доступ к записям SQLite от имени пользователя.
type RecordService struct {
	store  *RecordStore
	userID uuid.UUID
}

// Retrieve возвращает запись с полями columns.
func (r *RecordService) Retrieve(ctx context.Context, entityName string, id uuid.UUID, columns ...string) (*domain.Record, error) {
	attrs, err := r.store.attributes(ctx, entityName)
	if err != nil {
		return nil, err
	}
	if err := attrs.CheckColumns(entityName, columns); err != nil {
		return nil, err
	}

	// Проекция делается в запросе: из fields выбираются только нужные ключи.
	args := []any{}
	projection := `'{}'`
	if len(columns) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")
		projection = `(SELECT json_group_object(key, CASE WHEN type IN ('object', 'array') THEN json(value) ELSE value END)
			FROM json_each(records.fields) WHERE key IN (` + placeholders + `))`
		for _, col := range columns {
			args = append(args, col)
		}
	}
	args = append(args, entityName, id.String())

	query := `SELECT state_code, ` + projection + ` FROM records WHERE entity_name = ? AND id = ?`

	var state int
	var raw sql.NullString
	err = r.store.db.QueryRowContext(ctx, query, args...).Scan(&state, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", store.ErrNotFound, entityName, id)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", entityName, err)
	}

	fields, err := store.DecodeFields([]byte(raw.String), attrs)
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

// AggregateSum считает SUM(q.SumField) по записям, ссылающимся на q.ParentID.
func (r *RecordService) AggregateSum(ctx context.Context, q domain.SumQuery) (decimal.NullDecimal, error) {
	attrs, err := r.store.attributes(ctx, q.EntityName)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	attr, err := attrs.CheckSum(q.EntityName, q.SumField, q.LookupField)
	if err != nil {
		return decimal.NullDecimal{}, err
	}

	query := `
		SELECT SUM(CAST(json_extract(fields, ?) AS REAL))
		FROM records
		WHERE entity_name = ? AND json_extract(fields, ?) = ?`
	if q.ActiveOnly {
		query += ` AND state_code = 0`
	}

	var total sql.NullFloat64
	err = r.store.db.QueryRowContext(ctx, query,
		jsonPath(q.SumField),
		q.EntityName,
		jsonPath(q.LookupField)+".id",
		q.ParentID.String(),
	).Scan(&total)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("sum %s.%s: %w", q.EntityName, q.SumField, err)
	}

	if !total.Valid {
		return decimal.NullDecimal{}, nil
	}
	// SUM по REAL даёт погрешность float64; приводим к точности поля.
	return decimal.NewNullDecimal(decimal.NewFromFloat(total.Float64).Round(attr.Type.Scale())), nil
}

// Update записывает одно поле. nil записывается как JSON null.
func (r *RecordService) Update(ctx context.Context, entityName string, id uuid.UUID, field string, value any) error {
	attrs, err := r.store.attributes(ctx, entityName)
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

	result, err := r.store.db.ExecContext(ctx, `
		UPDATE records
		SET fields = json_set(fields, ?, json(?)), modified_at = ?, modified_by = ?
		WHERE entity_name = ? AND id = ?
	`, jsonPath(field), string(encoded), time.Now().UTC(), r.userID.String(), entityName, id.String())
	if err != nil {
		return fmt.Errorf("update %s.%s: %w", entityName, field, err)
	}
	return requireAffected(result, entityName, id)
}

// --- Helpers ---

// jsonPath строит путь json_extract для ключа верхнего уровня.
// Имена полей проверены по attributes до построения запроса.
func jsonPath(field string) string {
	return `$."` + field + `"`
}

func requireAffected(result sql.Result, entityName string, id uuid.UUID) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, entityName, id)
	}
	return nil
}
