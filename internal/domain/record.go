package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// StateCode — статус записи.
//
// В агрегацию попадают только записи в статусе StateActive.
type StateCode int

const (
	// StateActive — запись активна.
	StateActive StateCode = 0

	// StateInactive — запись деактивирована (архив, отмена и т.п.).
	StateInactive StateCode = 1
)

// IsActive возвращает true для активной записи.
func (s StateCode) IsActive() bool {
	return s == StateActive
}

// EntityReference — ссылка на другую запись (lookup-поле).
//
// В хранилище сериализуется как {"entity": "customer", "id": "..."}.
type EntityReference struct {
	EntityName string    `json:"entity"`
	ID         uuid.UUID `json:"id"`
}

// String возвращает ссылку в виде entity:id.
func (r EntityReference) String() string {
	return fmt.Sprintf("%s:%s", r.EntityName, r.ID)
}

// Record — запись внешнего хранилища.
//
// Fields содержит только запрошенные колонки (проекция).
// Отсутствующее в Fields поле означает "не заполнено" или "не запрошено".
type Record struct {
	EntityName string         `json:"entity_name"`
	ID         uuid.UUID      `json:"id"`
	StateCode  StateCode      `json:"state_code"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Reference извлекает ссылку из поля записи.
//
// Возвращает false, если поля нет, оно null или не является ссылкой.
func (r *Record) Reference(field string) (EntityReference, bool) {
	if r == nil || r.Fields == nil {
		return EntityReference{}, false
	}

	switch v := r.Fields[field].(type) {
	case EntityReference:
		return v, v.ID != uuid.Nil
	case *EntityReference:
		if v == nil {
			return EntityReference{}, false
		}
		return *v, v.ID != uuid.Nil
	case map[string]any:
		return referenceFromMap(v)
	default:
		return EntityReference{}, false
	}
}

// referenceFromMap разбирает ссылку, прочитанную из JSON.
func referenceFromMap(m map[string]any) (EntityReference, bool) {
	rawID, ok := m["id"].(string)
	if !ok {
		return EntityReference{}, false
	}
	id, err := uuid.Parse(rawID)
	if err != nil || id == uuid.Nil {
		return EntityReference{}, false
	}
	entity, _ := m["entity"].(string)
	return EntityReference{EntityName: entity, ID: id}, true
}

// SumQuery — запрос агрегата по дочерним записям.
//
// Эквивалент:
//
//	SELECT SUM(<SumField>) FROM <EntityName>
//	WHERE <LookupField> = <ParentID> [AND state_code = 0]
type SumQuery struct {
	// EntityName — тип дочерних записей.
	EntityName string

	// SumField — суммируемое поле.
	SumField string

	// LookupField — поле-ссылка на родителя.
	LookupField string

	// ParentID — идентификатор родителя.
	ParentID uuid.UUID

	// ActiveOnly — учитывать только активные записи.
	ActiveOnly bool
}
