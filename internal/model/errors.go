package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Typed errors below match these with errors.Is.
var (
	ErrParse            = errors.New("parse error")
	ErrTypeCoercion     = errors.New("type coercion error")
	ErrMissingColumn    = errors.New("missing column")
	ErrSchemaValidation = errors.New("schema validation error")
	ErrIngestion        = errors.New("ingestion failure")
	ErrInsufficientData = errors.New("insufficient data")
	ErrConfiguration    = errors.New("configuration error")
	ErrFitFailure       = errors.New("fit failure")
	ErrCapability       = errors.New("capability error")
)

// ParseError is returned when a timestamp does not match the configured layout.
type ParseError struct {
	Column string
	Row    int
	Value  string
	Layout string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: column %q row %d: value %q does not match layout %q", e.Column, e.Row, e.Value, e.Layout)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// TypeCoercionError is returned when a cell cannot be cast to its target type.
type TypeCoercionError struct {
	Column string
	Row    int
	Value  any
	Target string
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("type coercion error: column %q row %d: cannot convert %v to %s", e.Column, e.Row, e.Value, e.Target)
}

func (e *TypeCoercionError) Is(target error) bool { return target == ErrTypeCoercion }

// MissingColumnError is returned when a step needs a column the batch lacks.
type MissingColumnError struct {
	Step   string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing required column %q", e.Step, e.Column)
}

func (e *MissingColumnError) Is(target error) bool { return target == ErrMissingColumn }

// FieldViolation is one schema rule broken by one sampled row.
type FieldViolation struct {
	Row      int    `json:"row"`
	Field    string `json:"field"`
	Expected string `json:"expected"`
	Value    any    `json:"value"`
	Rule     string `json:"rule,omitempty"`
}

// SchemaValidationError describes every violation found in the sample.
// It is advisory: the batch it describes still flows downstream.
type SchemaValidationError struct {
	Schema     string           `json:"schema"`
	Violations []FieldViolation `json:"violations"`
}

func (e *SchemaValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("row %d field %s: expected %s, got %v", v.Row, v.Field, v.Expected, v.Value))
	}
	return fmt.Sprintf("schema %s: %d violation(s): %s", e.Schema, len(e.Violations), strings.Join(parts, "; "))
}

func (e *SchemaValidationError) Is(target error) bool { return target == ErrSchemaValidation }

// JSON renders the error in its serialized form.
func (e *SchemaValidationError) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return e.Error()
	}
	return string(data)
}

// IngestionFailure wraps whatever went wrong while loading or transforming one file.
type IngestionFailure struct {
	File  string
	Stage string
	Err   error
}

func (e *IngestionFailure) Error() string {
	return fmt.Sprintf("ingestion failure: %s (%s): %v", e.File, e.Stage, e.Err)
}

func (e *IngestionFailure) Unwrap() error { return e.Err }

func (e *IngestionFailure) Is(target error) bool { return target == ErrIngestion }

// InsufficientDataError is returned when a series is too short to split or fit.
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d point(s), need at least %d", e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// ConfigurationError reports an invalid or missing configuration value.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Key, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// FitFailure wraps an error raised while training a forecaster.
type FitFailure struct {
	Model string
	Err   error
}

func (e *FitFailure) Error() string {
	return fmt.Sprintf("fit failure: %s: %v", e.Model, e.Err)
}

func (e *FitFailure) Unwrap() error { return e.Err }

func (e *FitFailure) Is(target error) bool { return target == ErrFitFailure }

// CapabilityError reports an operation the forecaster handle cannot perform
// in its current state.
type CapabilityError struct {
	Operation string
	State     string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability error: %s not allowed in state %s", e.Operation, e.State)
}

func (e *CapabilityError) Is(target error) bool { return target == ErrCapability }
