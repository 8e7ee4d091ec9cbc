package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Ключи конфигурации rollup-активности в Binding.Config.
const (
	ConfigChildRollupField  = "child_rollup_field"
	ConfigChildLookupField  = "child_lookup_field"
	ConfigParentEntityName  = "parent_entity_name"
	ConfigParentResultField = "parent_result_field"
	ConfigDebugMode         = "debug_mode"
	ConfigMaxDepth          = "max_depth"
)

// DefaultMaxDepth — глубина вызова, выше которой rollup не выполняется (если DebugMode выключен).
const DefaultMaxDepth = 1

// ErrInvalidRollupConfig — конфигурация rollup не прошла валидацию.
var ErrInvalidRollupConfig = errors.New("invalid rollup config")

// RollupConfig — параметры одного запуска rollup.
//
// Не хранится отдельно: приходит вместе с каждым вызовом из Binding.Config.
type RollupConfig struct {
	// ChildRollupField — суммируемое поле дочерней записи (например, amount).
	ChildRollupField string `json:"child_rollup_field"`

	// ChildLookupField — поле-ссылка дочерней записи на родителя (например, customerId).
	ChildLookupField string `json:"child_lookup_field"`

	// ParentEntityName — тип родительской записи (например, customer).
	ParentEntityName string `json:"parent_entity_name"`

	// ParentResultField — поле родителя для результата (например, lifetimeTotal).
	ParentResultField string `json:"parent_result_field"`

	// DebugMode — ошибки показываются хосту, защита от рекурсии отключена.
	DebugMode bool `json:"debug_mode"`

	// MaxDepth — максимальная глубина вызова. 0 — DefaultMaxDepth.
	MaxDepth int `json:"max_depth,omitempty"`
}

// DepthLimit возвращает эффективный порог глубины.
func (c RollupConfig) DepthLimit() int {
	if c.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return c.MaxDepth
}

// Validate проверяет, что все обязательные поля заданы.
func (c RollupConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ChildRollupField) == "" {
		missing = append(missing, ConfigChildRollupField)
	}
	if strings.TrimSpace(c.ChildLookupField) == "" {
		missing = append(missing, ConfigChildLookupField)
	}
	if strings.TrimSpace(c.ParentEntityName) == "" {
		missing = append(missing, ConfigParentEntityName)
	}
	if strings.TrimSpace(c.ParentResultField) == "" {
		missing = append(missing, ConfigParentResultField)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRollupConfig, strings.Join(missing, ", "))
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidRollupConfig, ConfigMaxDepth)
	}
	return nil
}

// ParseRollupConfig собирает RollupConfig из конфигурации binding.
//
// debug_mode по умолчанию true: без явного выключения ошибки видны оператору.
// Нераспознанные значения debug_mode и max_depth — ошибка, а не значение по умолчанию.
func ParseRollupConfig(raw map[string]any) (RollupConfig, error) {
	debug, err := configBool(raw, ConfigDebugMode, true)
	if err != nil {
		return RollupConfig{}, err
	}
	maxDepth, err := configInt(raw, ConfigMaxDepth)
	if err != nil {
		return RollupConfig{}, err
	}

	cfg := RollupConfig{
		ChildRollupField:  configString(raw, ConfigChildRollupField),
		ChildLookupField:  configString(raw, ConfigChildLookupField),
		ParentEntityName:  configString(raw, ConfigParentEntityName),
		ParentResultField: configString(raw, ConfigParentResultField),
		DebugMode:         debug,
		MaxDepth:          maxDepth,
	}
	if err := cfg.Validate(); err != nil {
		return RollupConfig{}, err
	}
	return cfg, nil
}

// ToMap возвращает конфигурацию в виде Binding.Config.
func (c RollupConfig) ToMap() map[string]any {
	m := map[string]any{
		ConfigChildRollupField:  c.ChildRollupField,
		ConfigChildLookupField:  c.ChildLookupField,
		ConfigParentEntityName:  c.ParentEntityName,
		ConfigParentResultField: c.ParentResultField,
		ConfigDebugMode:         c.DebugMode,
	}
	if c.MaxDepth > 0 {
		m[ConfigMaxDepth] = c.MaxDepth
	}
	return m
}

func configString(config map[string]any, key string) string {
	if s, ok := config[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func configInt(config map[string]any, key string) (int, error) {
	switch n := config[key].(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		// JSONB отдаёт числа как float64
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrInvalidRollupConfig, key, n)
		}
		return int(n), nil
	case string:
		v, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidRollupConfig, key, n)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrInvalidRollupConfig, key, n)
	}
}

func configBool(config map[string]any, key string, defaultVal bool) (bool, error) {
	switch b := config[key].(type) {
	case nil:
		return defaultVal, nil
	case bool:
		return b, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", ErrInvalidRollupConfig, key, b)
	default:
		return false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrInvalidRollupConfig, key, b)
	}
}
