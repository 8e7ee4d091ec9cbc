package seed

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/rollup/internal/domain"
	"github.com/shaiso/rollup/internal/store"
)

// Fixture — начальные данные локального окружения: схема, записи, bindings.
//
// Пример:
//
//	attributes:
//	  - {entity: customer, name: lifetimeTotal, type: money}
//	  - {entity: order, name: customerId, type: lookup}
//	  - {entity: order, name: amount, type: money}
//	records:
//	  - {key: c1, entity: customer}
//	  - key: o1
//	    entity: order
//	    fields: {amount: 100}
//	    lookups: {customerId: c1}
//	bindings:
//	  - name: order-total
//	    entity: order
//	    messages: [create, update]
//	    config: {child_rollup_field: amount, ...}
type Fixture struct {
	Attributes []Attribute `yaml:"attributes"`
	Records    []Record    `yaml:"records"`
	Bindings   []Binding   `yaml:"bindings"`
}

// Attribute — описание поля типа записи.
type Attribute struct {
	Entity   string `yaml:"entity"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	ReadOnly bool   `yaml:"read_only"`
}

// Record — запись. Key — имя для ссылок из lookups других записей.
type Record struct {
	Key      string         `yaml:"key"`
	ID       string         `yaml:"id"`
	Entity   string         `yaml:"entity"`
	Inactive bool           `yaml:"inactive"`
	Fields   map[string]any `yaml:"fields"`

	// Lookups — поле → key ранее описанной записи или "entity/uuid".
	Lookups map[string]string `yaml:"lookups"`
}

// Binding — регистрация активности.
type Binding struct {
	Name     string         `yaml:"name"`
	Entity   string         `yaml:"entity"`
	Messages []string       `yaml:"messages"`
	Activity string         `yaml:"activity"`
	Config   map[string]any `yaml:"config"`
	Disabled bool           `yaml:"disabled"`
	Retry    *Retry         `yaml:"retry"`
}

// Retry — политика повторов binding.
type Retry struct {
	MaxAttempts    int    `yaml:"max_attempts"`
	Backoff        string `yaml:"backoff"`
	InitialDelayMs int    `yaml:"initial_delay_ms"`
	MaxDelayMs     int    `yaml:"max_delay_ms"`
}

// Load читает fixture из YAML-файла.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

// Parse разбирает и проверяет fixture.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate проверяет обязательные поля и ссылки между записями.
func (f *Fixture) Validate() error {
	for i, a := range f.Attributes {
		if a.Entity == "" || a.Name == "" {
			return fmt.Errorf("%w: attributes[%d]: entity and name are required", ErrInvalidFixture, i)
		}
		if _, err := attributeType(a.Type); err != nil {
			return fmt.Errorf("%w: attributes[%d]: %v", ErrInvalidFixture, i, err)
		}
	}

	keys := make(map[string]bool, len(f.Records))
	for i, r := range f.Records {
		if r.Entity == "" {
			return fmt.Errorf("%w: records[%d]: entity is required", ErrInvalidFixture, i)
		}
		for field, target := range r.Lookups {
			if !keys[target] && !strings.Contains(target, "/") {
				return fmt.Errorf("%w: records[%d].lookups.%s: unknown key %q", ErrInvalidFixture, i, field, target)
			}
		}
		if r.Key != "" {
			if keys[r.Key] {
				return fmt.Errorf("%w: records[%d]: duplicate key %q", ErrInvalidFixture, i, r.Key)
			}
			keys[r.Key] = true
		}
	}

	for i, b := range f.Bindings {
		if b.Name == "" || b.Entity == "" {
			return fmt.Errorf("%w: bindings[%d]: name and entity are required", ErrInvalidFixture, i)
		}
		for _, m := range b.Messages {
			if m != domain.MessageCreate && m != domain.MessageUpdate {
				return fmt.Errorf("%w: bindings[%d]: unknown message %q", ErrInvalidFixture, i, m)
			}
		}
		if b.activity() == domain.ActivityTypeRollup {
			if _, err := domain.ParseRollupConfig(b.Config); err != nil {
				return fmt.Errorf("%w: bindings[%d]: %w", ErrInvalidFixture, i, err)
			}
		}
	}
	return nil
}

func (b Binding) activity() string {
	if b.Activity == "" {
		return domain.ActivityTypeRollup
	}
	return b.Activity
}

func attributeType(s string) (store.AttributeType, error) {
	switch t := store.AttributeType(s); t {
	case store.AttributeLookup, store.AttributeMoney, store.AttributeDecimal, store.AttributeString:
		return t, nil
	default:
		return "", fmt.Errorf("unknown attribute type %q", s)
	}
}
