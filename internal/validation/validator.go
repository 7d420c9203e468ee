package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"sales-pipeline/internal/model"
)

// DefaultSampleSize is how many leading rows are checked when no size is given.
const DefaultSampleSize = 5

var timeType = reflect.TypeOf(time.Time{})

// OutputValidator checks a bounded sample of a batch against a schema struct.
//
// A schema is a struct whose fields are pointers (every field is optional),
// tagged with the batch column they read (`col:"OrderID"`) and optional
// validator rules (`validate:"omitempty,gte=0"`). A cell whose Go type does
// not fit the field type is a violation with rule "type".
type OutputValidator struct {
	name       string
	schema     reflect.Type
	sampleSize int
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewOutputValidator creates a validator for the schema struct of which
// schema is a zero value (e.g. SalesRow{}).
func NewOutputValidator(schema any, sampleSize int, logger *slog.Logger) (*OutputValidator, error) {
	t := reflect.TypeOf(schema)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, &model.ConfigurationError{Key: "schema", Reason: fmt.Sprintf("schema must be a struct, got %T", schema)}
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type.Kind() != reflect.Pointer {
			return nil, &model.ConfigurationError{Key: "schema." + f.Name, Reason: "schema fields must be pointers"}
		}
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	v := validator.New()
	// Report violations under the column name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return columnName(fld)
	})

	return &OutputValidator{
		name:       t.Name(),
		schema:     t,
		sampleSize: sampleSize,
		validate:   v,
		logger:     logger.With(slog.String("component", "output_validator"), slog.String("schema", t.Name())),
	}, nil
}

// Validate checks the first rows of b. It returns b untouched together with
// nil or a *model.SchemaValidationError; it never drops data.
func (v *OutputValidator) Validate(b *model.Batch) (*model.Batch, *model.SchemaValidationError) {
	n := v.sampleSize
	if b.Len() < n {
		n = b.Len()
	}

	var violations []model.FieldViolation
	for i := 0; i < n; i++ {
		violations = append(violations, v.checkRecord(i, b.Records[i])...)
	}
	if len(violations) == 0 {
		return b, nil
	}

	verr := &model.SchemaValidationError{Schema: v.name, Violations: violations}
	v.logger.Warn("output failed schema validation",
		slog.String("source", b.Source),
		slog.Int("violations", len(violations)),
		slog.String("details", verr.JSON()))
	return b, verr
}

func (v *OutputValidator) checkRecord(row int, rec model.Record) []model.FieldViolation {
	var violations []model.FieldViolation

	target := reflect.New(v.schema).Elem()
	for i := 0; i < v.schema.NumField(); i++ {
		field := v.schema.Field(i)
		col := columnName(field)
		value := rec[col]
		if value == nil {
			continue
		}
		elem := field.Type.Elem()
		converted, ok := assignable(value, elem)
		if !ok {
			violations = append(violations, model.FieldViolation{
				Row:      row,
				Field:    col,
				Expected: typeName(elem),
				Value:    value,
				Rule:     "type",
			})
			continue
		}
		ptr := reflect.New(elem)
		ptr.Elem().Set(converted)
		target.Field(i).Set(ptr)
	}

	if err := v.validate.Struct(target.Interface()); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return append(violations, model.FieldViolation{Row: row, Field: "*", Expected: v.name, Value: nil, Rule: err.Error()})
		}
		for _, fe := range verrs {
			violations = append(violations, model.FieldViolation{
				Row:      row,
				Field:    fe.Field(),
				Expected: expectation(fe),
				Value:    fe.Value(),
				Rule:     fe.Tag(),
			})
		}
	}
	return violations
}

// assignable converts value to t when the conversion loses nothing: integers
// widen to floats, whole floats never narrow to integers.
func assignable(value any, t reflect.Type) (reflect.Value, bool) {
	rv := reflect.ValueOf(value)
	if rv.Type() == t {
		return rv, true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Convert(t), true
		}
	case reflect.Float32, reflect.Float64:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Float32, reflect.Float64:
			return rv.Convert(t), true
		}
	}
	return reflect.Value{}, false
}

func columnName(f reflect.StructField) string {
	if col := f.Tag.Get("col"); col != "" {
		return col
	}
	return f.Name
}

func typeName(t reflect.Type) string {
	if t == timeType {
		return "datetime"
	}
	return t.Kind().String()
}

func expectation(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return strings.TrimSpace(fe.Tag() + " " + fe.Param())
}
