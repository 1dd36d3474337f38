package model

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/pkg/errors"
)

// Attrs maps attribute names to values. Attrs held by a Node must be treated
// as read-only; use With or Clone to derive new values.
type Attrs map[string]any

// Validator is a pure predicate over an attribute value.
type Validator func(value any) error

// AttrSpec declares one attribute of a node or mark type.
type AttrSpec struct {
	Default  any
	Required bool
	Validate Validator
	// Presentational attributes describe view state only. Text codecs do not
	// carry them and they come back with their default on parse.
	Presentational bool
}

// Number accepts any Go numeric value, including json.Number.
func Number(value any) error {
	if _, ok := toFloat(value); !ok {
		return errors.New("must be a number")
	}
	return nil
}

// String accepts string values.
func String(value any) error {
	if _, ok := value.(string); !ok {
		return errors.New("must be a string")
	}
	return nil
}

// Bool accepts boolean values.
func Bool(value any) error {
	if _, ok := value.(bool); !ok {
		return errors.New("must be a boolean")
	}
	return nil
}

// Optional wraps v so that nil is accepted as well.
func Optional(v Validator) Validator {
	return func(value any) error {
		if value == nil {
			return nil
		}
		return v(value)
	}
}

// OneOf accepts exactly the listed values.
func OneOf(values ...any) Validator {
	return func(value any) error {
		for _, candidate := range values {
			if valuesEqual(candidate, value) {
				return nil
			}
		}
		return errors.Errorf("must be one of %v", values)
	}
}

// IntRange accepts whole numbers in [min, max].
func IntRange(min, max int) Validator {
	return func(value any) error {
		f, ok := toFloat(value)
		if !ok || f != math.Trunc(f) {
			return errors.New("must be a whole number")
		}
		if int(f) < min || int(f) > max {
			return errors.Errorf("must be between %d and %d", min, max)
		}
		return nil
	}
}

// Int reads a numeric attribute as int, returning 0 when absent.
func (a Attrs) Int(key string) int {
	f, _ := toFloat(a[key])
	return int(f)
}

// String reads a string attribute, returning "" when absent.
func (a Attrs) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Bool reads a boolean attribute, returning false when absent.
func (a Attrs) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// Clone returns a shallow copy.
func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// With returns a copy with key set to value.
func (a Attrs) With(key string, value any) Attrs {
	out := a.Clone()
	out[key] = value
	return out
}

// Merge returns a copy with every entry of other applied on top.
func (a Attrs) Merge(other Attrs) Attrs {
	out := a.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// AttrsEqual compares attribute maps, treating numbers of different Go types
// as equal when their values are.
func AttrsEqual(a, b Attrs) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// computeAttrs fills defaults and validates given against specs.
func computeAttrs(typeName string, specs map[string]AttrSpec, given Attrs) (Attrs, error) {
	keys := make([]string, 0, len(given))
	for key := range given {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, ok := specs[key]; !ok {
			return nil, &AttributeValidationError{Type: typeName, Attr: key, Value: given[key], Err: ErrUnknownAttribute}
		}
	}

	out := make(Attrs, len(specs))
	for _, name := range sortedSpecNames(specs) {
		spec := specs[name]
		value, ok := given[name]
		if !ok {
			if spec.Required {
				return nil, &AttributeValidationError{Type: typeName, Attr: name, Err: ErrMissingAttribute}
			}
			out[name] = spec.Default
			continue
		}
		if spec.Validate != nil && !valuesEqual(value, spec.Default) {
			if err := spec.Validate(value); err != nil {
				return nil, &AttributeValidationError{Type: typeName, Attr: name, Value: value, Err: err}
			}
		}
		out[name] = value
	}
	return out, nil
}

func sortedSpecNames(specs map[string]AttrSpec) []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatAttrs(attrs Attrs) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := "("
	for i, k := range keys {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s=%v", k, attrs[k])
	}
	return out + ")"
}
