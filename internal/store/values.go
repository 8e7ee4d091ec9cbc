package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shaiso/rollup/internal/domain"
)

// EncodeValue кодирует значение поля в JSON согласно типу атрибута.
//
// nil и невалидный decimal.NullDecimal кодируются как null (поле очищается).
// Денежные значения пишутся JSON-числом, без кавычек.
func EncodeValue(attr Attribute, value any) ([]byte, error) {
	if value == nil {
		return []byte("null"), nil
	}

	switch attr.Type {
	case AttributeMoney, AttributeDecimal:
		d, ok, err := toDecimal(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, attr.Name, err)
		}
		if !ok {
			return []byte("null"), nil
		}
		return []byte(d.String()), nil

	case AttributeLookup:
		ref, ok := value.(domain.EntityReference)
		if !ok || ref.ID == uuid.Nil {
			return nil, fmt.Errorf("%w: %s expects entity reference, got %T", ErrInvalidValue, attr.Name, value)
		}
		return json.Marshal(ref)

	case AttributeString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects string, got %T", ErrInvalidValue, attr.Name, value)
		}
		return json.Marshal(s)

	default:
		return json.Marshal(value)
	}
}

// toDecimal приводит значение к decimal. ok=false означает null.
func toDecimal(value any) (decimal.Decimal, bool, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true, nil
	case *decimal.Decimal:
		if v == nil {
			return decimal.Decimal{}, false, nil
		}
		return *v, true, nil
	case decimal.NullDecimal:
		return v.Decimal, v.Valid, nil
	case int:
		return decimal.NewFromInt(int64(v)), true, nil
	case int64:
		return decimal.NewFromInt(v), true, nil
	case float64:
		return decimal.NewFromFloat(v), true, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil, err
	case string:
		d, err := decimal.NewFromString(v)
		return d, err == nil, err
	default:
		return decimal.Decimal{}, false, fmt.Errorf("unsupported type %T", value)
	}
}

// DecodeFields разбирает JSON-объект полей записи.
//
// Числовые поля возвращаются как decimal.Decimal, ссылки — как domain.EntityReference.
// Поля со значением null в результат не попадают.
func DecodeFields(raw []byte, attrs Attributes) (map[string]any, error) {
	fields := make(map[string]any)
	if len(raw) == 0 {
		return fields, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}

	for name, v := range values {
		if v == nil {
			continue
		}
		attr, known := attrs[name]
		if !known {
			fields[name] = v
			continue
		}

		switch attr.Type {
		case AttributeMoney, AttributeDecimal:
			d, ok, err := toDecimal(v)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", name, err)
			}
			if ok {
				fields[name] = d
			}
		case AttributeLookup:
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			rec := domain.Record{Fields: map[string]any{name: m}}
			if ref, ok := rec.Reference(name); ok {
				fields[name] = ref
			}
		default:
			fields[name] = v
		}
	}
	return fields, nil
}

// EncodeFields кодирует поля новой записи в JSON-объект.
// Все поля должны быть описаны в attrs.
func EncodeFields(entityName string, fields map[string]any, attrs Attributes) ([]byte, error) {
	encoded := make(map[string]json.RawMessage, len(fields))
	for name, value := range fields {
		attr, err := attrs.Get(entityName, name)
		if err != nil {
			return nil, err
		}
		raw, err := EncodeValue(attr, value)
		if err != nil {
			return nil, err
		}
		encoded[name] = raw
	}
	return json.Marshal(encoded)
}
