package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"sales-pipeline/internal/config"
	"sales-pipeline/internal/model"
	"sales-pipeline/pkg/utils"
)

// Step is one named transformation. Transform takes ownership of b and
// returns the batch the next step receives; it touches nothing but the batch.
type Step interface {
	Name() string
	Transform(b *model.Batch) (*model.Batch, error)
}

// BuildSteps constructs the ordered steps described by cfgs.
func BuildSteps(cfgs []config.StepConfig) ([]Step, error) {
	steps := make([]Step, 0, len(cfgs))
	for i, c := range cfgs {
		step, err := buildStep(c)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, c.Kind, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func buildStep(c config.StepConfig) (Step, error) {
	switch strings.ToLower(c.Kind) {
	case config.StepClean:
		return NewDataCleaner(c.Column)
	case config.StepRename:
		return NewColumnRenaming(c.Mapping)
	case config.StepConvert:
		return NewDataTypeConverter(c.Mapping, c.Layout)
	case config.StepSales:
		return NewSalesColumnAdder(c.Left, c.Right, c.Output)
	case config.StepDate:
		return NewDateFeatureEngineering(c.Column, c.Layout)
	case config.StepAddress:
		return NewAddressFeatureEngineering(c.Column, c.Delimiter, c.Targets)
	default:
		return nil, &model.ConfigurationError{Key: "transform.steps.kind", Reason: fmt.Sprintf("unknown transformation: %s", c.Kind)}
	}
}

// ------------------- DataCleaner -------------------

// DataCleaner drops rows holding any null cell, then rows whose category
// column equals its own header label (a header row ingested as data).
type DataCleaner struct {
	CategoryColumn string
}

// NewDataCleaner creates a cleaner keyed on categoryColumn ("Product" if empty).
func NewDataCleaner(categoryColumn string) (*DataCleaner, error) {
	if categoryColumn == "" {
		categoryColumn = "Product"
	}
	return &DataCleaner{CategoryColumn: categoryColumn}, nil
}

func (s *DataCleaner) Name() string { return config.StepClean }

func (s *DataCleaner) Transform(b *model.Batch) (*model.Batch, error) {
	if err := b.RequireColumns(s.Name(), s.CategoryColumn); err != nil {
		return nil, err
	}

	kept := b.Records[:0]
	for _, rec := range b.Records {
		if hasNull(rec, b.Columns) {
			continue
		}
		if label, ok := rec[s.CategoryColumn].(string); ok && label == s.CategoryColumn {
			continue
		}
		kept = append(kept, rec)
	}
	b.Records = kept
	return b, nil
}

func hasNull(rec model.Record, columns []string) bool {
	for _, c := range columns {
		if rec.IsNull(c) {
			return true
		}
	}
	return false
}

// ------------------- ColumnRenaming -------------------

// ColumnRenaming applies a fixed old-name to new-name mapping. Unmapped
// columns pass through unchanged.
type ColumnRenaming struct {
	Mapping map[string]string
}

// NewColumnRenaming creates a renaming step. The mapping must not send two
// columns to the same name.
func NewColumnRenaming(mapping map[string]string) (*ColumnRenaming, error) {
	seen := make(map[string]string, len(mapping))
	for old, renamed := range mapping {
		if renamed == "" {
			return nil, &model.ConfigurationError{Key: "rename." + old, Reason: "empty target name"}
		}
		if prev, dup := seen[renamed]; dup {
			return nil, &model.ConfigurationError{Key: "rename." + old, Reason: fmt.Sprintf("target %q already used by %q", renamed, prev)}
		}
		seen[renamed] = old
	}
	m := make(map[string]string, len(mapping))
	for k, v := range mapping {
		m[k] = v
	}
	return &ColumnRenaming{Mapping: m}, nil
}

func (s *ColumnRenaming) Name() string { return config.StepRename }

func (s *ColumnRenaming) Transform(b *model.Batch) (*model.Batch, error) {
	renamed := make([]string, len(b.Columns))
	owner := make(map[string]string, len(b.Columns))
	moved := false
	for i, col := range b.Columns {
		name := col
		if to, ok := s.Mapping[col]; ok {
			name = to
			moved = moved || to != col
		}
		if prev, dup := owner[name]; dup {
			return nil, fmt.Errorf("%s: renaming %q and %q both yield column %q", s.Name(), prev, col, name)
		}
		owner[name] = col
		renamed[i] = name
	}
	if !moved {
		return b, nil
	}

	// Every mapping is applied against the original names, so {A:B, B:C} is
	// a rename of both columns and not a collision.
	for _, rec := range b.Records {
		old := make(map[string]any, len(b.Columns))
		for _, col := range b.Columns {
			if v, present := rec[col]; present {
				old[col] = v
				delete(rec, col)
			}
		}
		for i, col := range b.Columns {
			if v, present := old[col]; present {
				rec[renamed[i]] = v
			}
		}
	}
	b.Columns = renamed
	return b, nil
}

// ------------------- DataTypeConverter -------------------

// Target types understood by DataTypeConverter.
const (
	TypeInt      = "int"
	TypeFloat    = "float"
	TypeString   = "string"
	TypeBool     = "bool"
	TypeDatetime = "datetime"
)

// DataTypeConverter casts each configured column to its target type.
type DataTypeConverter struct {
	Types  map[string]string
	Layout string // used by datetime targets
	order  []string
}

// NewDataTypeConverter creates a converter. layout is the time layout for
// datetime targets (RFC 3339 if empty).
func NewDataTypeConverter(types map[string]string, layout string) (*DataTypeConverter, error) {
	if layout == "" {
		layout = time.RFC3339
	}
	t := make(map[string]string, len(types))
	order := make([]string, 0, len(types))
	for col, target := range types {
		target = strings.ToLower(target)
		switch target {
		case TypeInt, TypeFloat, TypeString, TypeBool, TypeDatetime:
		default:
			return nil, &model.ConfigurationError{Key: "convert." + col, Reason: fmt.Sprintf("unsupported target type %q", target)}
		}
		t[col] = target
		order = append(order, col)
	}
	sort.Strings(order)
	return &DataTypeConverter{Types: t, Layout: layout, order: order}, nil
}

func (s *DataTypeConverter) Name() string { return config.StepConvert }

func (s *DataTypeConverter) Transform(b *model.Batch) (*model.Batch, error) {
	if err := b.RequireColumns(s.Name(), s.order...); err != nil {
		return nil, err
	}
	for _, col := range s.order {
		target := s.Types[col]
		for row, rec := range b.Records {
			converted, err := s.convert(rec[col], target)
			if err != nil {
				return nil, &model.TypeCoercionError{Column: col, Row: row, Value: rec[col], Target: target}
			}
			rec[col] = converted
		}
	}
	return b, nil
}

func (s *DataTypeConverter) convert(v any, target string) (any, error) {
	if v == nil {
		if target == TypeString {
			return nil, nil
		}
		return nil, fmt.Errorf("null value")
	}
	switch target {
	case TypeInt:
		if i, ok := utils.Integer(v); ok {
			return i, nil
		}
	case TypeFloat:
		if f, ok := utils.Numeric(v); ok {
			return f, nil
		}
	case TypeBool:
		if bv, ok := utils.Boolean(v); ok {
			return bv, nil
		}
	case TypeString:
		return utils.Text(v), nil
	case TypeDatetime:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
		if t, err := time.Parse(s.Layout, strings.TrimSpace(utils.Text(v))); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("cannot convert %v to %s", v, target)
}

// ------------------- SalesColumnAdder -------------------

// SalesColumnAdder adds Output = Left * Right.
type SalesColumnAdder struct {
	Left   string
	Right  string
	Output string
}

// NewSalesColumnAdder creates the derived-product step. output defaults to "Sales".
func NewSalesColumnAdder(left, right, output string) (*SalesColumnAdder, error) {
	if left == "" || right == "" {
		return nil, &model.ConfigurationError{Key: "sales", Reason: "both source columns are required"}
	}
	if output == "" {
		output = "Sales"
	}
	return &SalesColumnAdder{Left: left, Right: right, Output: output}, nil
}

func (s *SalesColumnAdder) Name() string { return config.StepSales }

func (s *SalesColumnAdder) Transform(b *model.Batch) (*model.Batch, error) {
	if err := b.RequireColumns(s.Name(), s.Left, s.Right); err != nil {
		return nil, err
	}
	for row, rec := range b.Records {
		l, ok := utils.Numeric(rec[s.Left])
		if !ok {
			return nil, &model.TypeCoercionError{Column: s.Left, Row: row, Value: rec[s.Left], Target: TypeFloat}
		}
		r, ok := utils.Numeric(rec[s.Right])
		if !ok {
			return nil, &model.TypeCoercionError{Column: s.Right, Row: row, Value: rec[s.Right], Target: TypeFloat}
		}
		rec[s.Output] = l * r
	}
	b.AddColumn(s.Output)
	return b, nil
}

// ------------------- DateFeatureEngineering -------------------

// DefaultDateLayout matches order dates such as "04/19/19 08:46" and their
// unpadded form "4/9/19 8:46".
const DefaultDateLayout = "1/2/06 15:04"

// DateFeatureEngineering parses a timestamp column and derives Hour, Month,
// Day, DayName and Year.
type DateFeatureEngineering struct {
	Column string
	Layout string
}

// NewDateFeatureEngineering creates the date step.
func NewDateFeatureEngineering(column, layout string) (*DateFeatureEngineering, error) {
	if column == "" {
		return nil, &model.ConfigurationError{Key: "date.column", Reason: "column is required"}
	}
	if layout == "" {
		layout = DefaultDateLayout
	}
	return &DateFeatureEngineering{Column: column, Layout: layout}, nil
}

func (s *DateFeatureEngineering) Name() string { return config.StepDate }

func (s *DateFeatureEngineering) Transform(b *model.Batch) (*model.Batch, error) {
	if err := b.RequireColumns(s.Name(), s.Column); err != nil {
		return nil, err
	}
	for row, rec := range b.Records {
		var t time.Time
		switch v := rec[s.Column].(type) {
		case time.Time:
			t = v
		case string:
			parsed, err := time.Parse(s.Layout, strings.TrimSpace(v))
			if err != nil {
				return nil, &model.ParseError{Column: s.Column, Row: row, Value: v, Layout: s.Layout}
			}
			t = parsed
		default:
			return nil, &model.ParseError{Column: s.Column, Row: row, Value: fmt.Sprintf("%v", v), Layout: s.Layout}
		}
		rec[s.Column] = t
		rec["Hour"] = int64(t.Hour())
		rec["Month"] = int64(t.Month())
		rec["Day"] = int64(t.Day())
		rec["DayName"] = t.Weekday().String()
		rec["Year"] = int64(t.Year())
	}
	for _, c := range []string{"Hour", "Month", "Day", "DayName", "Year"} {
		b.AddColumn(c)
	}
	return b, nil
}

// ------------------- AddressFeatureEngineering -------------------

// DefaultAddressTargets are the columns an address is split into.
var DefaultAddressTargets = []string{"StreetAddress", "CityName", "ZipAddress"}

// AddressFeatureEngineering splits a composite address into target columns,
// then splits the first target into StreetNumber/StreetName and the last
// target into StateCode/ZipCode.
type AddressFeatureEngineering struct {
	Column    string
	Delimiter string
	Targets   []string
}

// NewAddressFeatureEngineering creates the address step. delimiter defaults
// to ", " and targets to DefaultAddressTargets.
func NewAddressFeatureEngineering(column, delimiter string, targets []string) (*AddressFeatureEngineering, error) {
	if column == "" {
		return nil, &model.ConfigurationError{Key: "address.column", Reason: "column is required"}
	}
	if delimiter == "" {
		delimiter = ", "
	}
	if len(targets) == 0 {
		targets = DefaultAddressTargets
	}
	t := make([]string, len(targets))
	copy(t, targets)
	return &AddressFeatureEngineering{Column: column, Delimiter: delimiter, Targets: t}, nil
}

func (s *AddressFeatureEngineering) Name() string { return config.StepAddress }

func (s *AddressFeatureEngineering) Transform(b *model.Batch) (*model.Batch, error) {
	if err := b.RequireColumns(s.Name(), s.Column); err != nil {
		return nil, err
	}

	splits := make([][]string, len(b.Records))
	widest := 0
	for i, rec := range b.Records {
		v := rec[s.Column]
		if v == nil {
			continue
		}
		splits[i] = strings.Split(utils.Text(v), s.Delimiter)
		if len(splits[i]) > widest {
			widest = len(splits[i])
		}
	}

	n := min(len(s.Targets), widest)
	targets := s.Targets[:n]
	first, last := s.Targets[0], s.Targets[len(s.Targets)-1]

	for i, rec := range b.Records {
		for j, col := range targets {
			if j < len(splits[i]) {
				rec[col] = splits[i][j]
			} else {
				rec[col] = nil
			}
		}
		rec["StreetNumber"], rec["StreetName"] = splitHeadTail(rec[first])
		rec["StateCode"], rec["ZipCode"] = splitStateZip(rec[last])
	}

	for _, c := range targets {
		b.AddColumn(c)
	}
	for _, c := range []string{"StreetName", "StreetNumber", "ZipCode", "StateCode"} {
		b.AddColumn(c)
	}
	return b, nil
}

// splitHeadTail splits "123 Apple St" into "123" and "Apple St". Missing
// parts are nil.
func splitHeadTail(v any) (head, tail any) {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil, nil
	}
	parts := strings.Split(s, " ")
	head = parts[0]
	if len(parts) > 1 {
		tail = strings.Join(parts[1:], " ")
	}
	return head, tail
}

// splitStateZip splits "TX 75001" into "TX" and "75001". Tokens after the zip
// code are dropped. Missing parts are nil.
func splitStateZip(v any) (state, zip any) {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil, nil
	}
	parts := strings.Split(s, " ")
	state = parts[0]
	if len(parts) > 1 {
		zip = parts[1]
	}
	return state, zip
}
