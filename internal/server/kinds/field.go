package kinds

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldType is the storage and validation type of a column.
type FieldType int

const (
	Text FieldType = iota
	Int
	// Ref is an opaque reference to another row. References are not checked.
	Ref
	Decimal
	// Date is a calendar day, carried as "2006-01-02".
	Date
	// Clock is a time of day, carried as "15:04:05".
	Clock
	Timestamp
	Bool
	Enum
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04:05"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	DateLayout,
}

// Field describes one column of a kind.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	// Default is stored when an optional field is absent. It must already be
	// of the field's Go type.
	Default any
	// Options lists the accepted values of an Enum field.
	Options []string
}

// Coerce converts a decoded JSON value into the field's Go type. Numbers are
// expected as json.Number (decoder with UseNumber) but float64 is accepted
// too. A nil input stays nil.
func (f Field) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch f.Type {
	case Text:
		switch x := v.(type) {
		case string:
			return x, nil
		case json.Number:
			return x.String(), nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		}
	case Int, Ref:
		return coerceInt(v)
	case Decimal:
		switch x := v.(type) {
		case decimal.Decimal:
			return x, nil
		case json.Number:
			return decimal.NewFromString(x.String())
		case string:
			return decimal.NewFromString(strings.TrimSpace(x))
		case float64:
			return decimal.NewFromFloat(x), nil
		case int64:
			return decimal.NewFromInt(x), nil
		}
	case Date:
		if s, ok := v.(string); ok {
			t, err := parseTimestamp(s)
			if err != nil {
				return nil, err
			}
			return t.Format(DateLayout), nil
		}
		if t, ok := v.(time.Time); ok {
			return t.Format(DateLayout), nil
		}
	case Clock:
		if s, ok := v.(string); ok {
			return parseClock(s)
		}
	case Timestamp:
		switch x := v.(type) {
		case string:
			return parseTimestamp(x)
		case time.Time:
			return x, nil
		}
	case Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case json.Number:
			return x.String() != "0", nil
		case string:
			return strconv.ParseBool(x)
		}
	case Enum:
		if s, ok := v.(string); ok {
			if slices.Contains(f.Options, s) {
				return s, nil
			}
			return nil, fmt.Errorf("must be one of %s", strings.Join(f.Options, ", "))
		}
	}

	return nil, fmt.Errorf("unexpected value of type %T", v)
}

func coerceInt(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case json.Number:
		return x.Int64()
	case float64:
		if x != float64(int64(x)) {
			return nil, fmt.Errorf("not an integer: %v", x)
		}
		return int64(x), nil
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	}
	return nil, fmt.Errorf("unexpected value of type %T", v)
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date/time %q", s)
}

func parseClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{ClockLayout, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ClockLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time %q", s)
}
