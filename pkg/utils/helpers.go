package utils

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// ParseValue turns a raw text cell into a cell value: empty (after trimming)
// becomes nil, anything else stays a trimmed string. Typing is left to the
// type conversion step.
func ParseValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

// Numeric safely converts supported types to float64.
func Numeric(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		rv := reflect.ValueOf(v)
		if rv.IsValid() && rv.Kind() >= reflect.Int && rv.Kind() <= reflect.Float64 {
			return rv.Convert(reflect.TypeOf(float64(0))).Float(), true
		}
		return 0, false
	}
}

// Integer converts v to int64. Floats are accepted only when they hold a
// whole number, so "2.5" is rejected while "2" and 2.0 are not.
func Integer(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int64:
		return val, true
	case string:
		s := strings.TrimSpace(val)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return wholeNumber(f)
	default:
		f, ok := Numeric(v)
		if !ok {
			return 0, false
		}
		return wholeNumber(f)
	}
}

// Boolean converts v to bool using strconv.ParseBool rules for strings.
func Boolean(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		return b, err == nil
	default:
		f, ok := Numeric(v)
		if !ok || (f != 0 && f != 1) {
			return false, false
		}
		return f == 1, true
	}
}

// Text converts v to its string form.
func Text(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func wholeNumber(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
