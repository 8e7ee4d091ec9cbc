package store

import "fmt"

// AttributeType — тип поля записи.
type AttributeType string

const (
	// AttributeLookup — ссылка на другую запись.
	AttributeLookup AttributeType = "lookup"

	// AttributeMoney — денежная сумма.
	AttributeMoney AttributeType = "money"

	// AttributeDecimal — десятичное число.
	AttributeDecimal AttributeType = "decimal"

	// AttributeString — строка.
	AttributeString AttributeType = "string"
)

// IsNumeric возвращает true для типов, которые можно суммировать.
func (t AttributeType) IsNumeric() bool {
	return t == AttributeMoney || t == AttributeDecimal
}

// Scale — количество знаков после запятой, с которым хранятся значения типа.
func (t AttributeType) Scale() int32 {
	switch t {
	case AttributeMoney:
		return 4
	case AttributeDecimal:
		return 10
	default:
		return 0
	}
}

// Attribute — описание поля типа записи.
type Attribute struct {
	EntityName string        `json:"entity_name"`
	Name       string        `json:"name"`
	Type       AttributeType `json:"type"`
	Writable   bool          `json:"writable"`
}

// Attributes — поля одного типа записи, по имени.
type Attributes map[string]Attribute

// Get возвращает описание поля или ErrUnknownAttribute.
func (a Attributes) Get(entityName, field string) (Attribute, error) {
	attr, ok := a[field]
	if !ok {
		return Attribute{}, fmt.Errorf("%w: %s.%s", ErrUnknownAttribute, entityName, field)
	}
	return attr, nil
}

// CheckColumns проверяет, что все запрошенные колонки существуют.
func (a Attributes) CheckColumns(entityName string, columns []string) error {
	for _, col := range columns {
		if _, err := a.Get(entityName, col); err != nil {
			return err
		}
	}
	return nil
}

// CheckSum проверяет поля запроса агрегата: sumField числовое, lookupField — ссылка.
// Возвращает описание суммируемого поля.
func (a Attributes) CheckSum(entityName, sumField, lookupField string) (Attribute, error) {
	sum, err := a.Get(entityName, sumField)
	if err != nil {
		return Attribute{}, err
	}
	if !sum.Type.IsNumeric() {
		return Attribute{}, fmt.Errorf("%w: %s.%s is %s, not numeric", ErrInvalidValue, entityName, sumField, sum.Type)
	}
	lookup, err := a.Get(entityName, lookupField)
	if err != nil {
		return Attribute{}, err
	}
	if lookup.Type != AttributeLookup {
		return Attribute{}, fmt.Errorf("%w: %s.%s is %s, not lookup", ErrInvalidValue, entityName, lookupField, lookup.Type)
	}
	return sum, nil
}

// CheckWritable проверяет, что поле существует и доступно для записи.
func (a Attributes) CheckWritable(entityName, field string) (Attribute, error) {
	attr, err := a.Get(entityName, field)
	if err != nil {
		return Attribute{}, err
	}
	if !attr.Writable {
		return Attribute{}, fmt.Errorf("%w: %s.%s is read-only", ErrPermissionDenied, entityName, field)
	}
	return attr, nil
}
