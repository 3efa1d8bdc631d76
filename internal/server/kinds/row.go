package kinds

import (
	"database/sql"
	"time"

	"github.com/dmitrijs2005/bizdesk/internal/server/models"
	"github.com/shopspring/decimal"
)

// ScanTargets returns one nullable scan destination per field, in order.
func (k *Kind) ScanTargets() []any {
	out := make([]any, len(k.Fields))
	for i, f := range k.Fields {
		switch f.Type {
		case Int, Ref:
			out[i] = &sql.NullInt64{}
		case Decimal:
			out[i] = &decimal.NullDecimal{}
		case Date, Timestamp:
			out[i] = &sql.NullTime{}
		case Bool:
			out[i] = &sql.NullBool{}
		default:
			out[i] = &sql.NullString{}
		}
	}
	return out
}

// ValuesFrom converts filled scan targets back into typed values.
func (k *Kind) ValuesFrom(targets []any) models.Values {
	out := make(models.Values, len(k.Fields))
	for i, f := range k.Fields {
		var v any
		switch t := targets[i].(type) {
		case *sql.NullInt64:
			if t.Valid {
				v = t.Int64
			}
		case *decimal.NullDecimal:
			if t.Valid {
				v = t.Decimal
			}
		case *sql.NullTime:
			if t.Valid {
				v = t.Time
				if f.Type == Date {
					v = t.Time.Format(DateLayout)
				}
			}
		case *sql.NullBool:
			if t.Valid {
				v = t.Bool
			}
		case *sql.NullString:
			if t.Valid {
				v = t.String
				if f.Type == Clock {
					v = normalizeClock(t.String)
				}
			}
		}
		out[f.Name] = v
	}
	return out
}

// Args returns the values in column order, ready to bind.
func (k *Kind) Args(values models.Values) []any {
	out := make([]any, len(k.Fields))
	for i, f := range k.Fields {
		out[i] = values[f.Name]
	}
	return out
}

func normalizeClock(s string) string {
	if t, err := time.Parse(ClockLayout, s); err == nil {
		return t.Format(ClockLayout)
	}
	if len(s) >= len(ClockLayout) {
		return s[:len(ClockLayout)]
	}
	return s
}
