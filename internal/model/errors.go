package model

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrSchemaSealed     = errors.New("schema is sealed")
	ErrSchemaNotSealed  = errors.New("schema is not sealed")
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrMissingAttribute = errors.New("missing required attribute")
	ErrOutOfRange       = errors.New("position out of range")
)

// DuplicateTypeError is returned when a node or mark name is registered twice.
type DuplicateTypeError struct {
	Kind string
	Name string
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("duplicate %s type %q", e.Kind, e.Name)
}

// UnknownTypeError is returned for lookups of names the schema does not know,
// including names referenced from content expressions.
type UnknownTypeError struct {
	Kind string
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown %s type %q", e.Kind, e.Name)
}

type AttributeValidationError struct {
	Type  string
	Attr  string
	Value any
	Err   error
}

func (e *AttributeValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("%s.%s: %v", e.Type, e.Attr, e.Err)
	}
	return fmt.Sprintf("%s.%s=%v: %v", e.Type, e.Attr, e.Value, e.Err)
}

func (e *AttributeValidationError) Unwrap() error { return e.Err }

// ContentError reports a fragment that the parent's content expression or
// mark set does not admit.
type ContentError struct {
	Type   string
	Reason string
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("invalid content for %s: %s", e.Type, e.Reason)
}

type ReplaceError struct {
	Reason string
}

func (e *ReplaceError) Error() string {
	return "replace: " + e.Reason
}

func replaceErrorf(format string, args ...any) error {
	return errors.WithStack(&ReplaceError{Reason: fmt.Sprintf(format, args...)})
}

// ExpressionError reports a content expression that cannot be compiled.
type ExpressionError struct {
	Type       string
	Expression string
	Reason     string
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("content expression %q of %s: %s", e.Expression, e.Type, e.Reason)
}
