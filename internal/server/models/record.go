package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Operation is the kind of mutation a history row records.
type Operation string

const (
	OpCreation Operation = "CREATION"
	OpUpdate   Operation = "UPDATE"
	OpDeletion Operation = "DELETION"
)

// Values maps column names to typed values: string, int64, bool,
// decimal.Decimal, time.Time or nil.
type Values map[string]any

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// jsonValue renders decimals as JSON numbers so amounts keep the type they
// were sent with.
func jsonValue(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return json.Number(d.String())
	}
	return v
}

// Record is one row of a business entity table. OwnerID is nil for global
// kinds.
type Record struct {
	ID        int64
	OwnerID   *int64
	Values    Values
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnedBy reports whether userID owns the record.
func (r *Record) OwnedBy(userID int64) bool {
	return r.OwnerID != nil && *r.OwnerID == userID
}

// MarshalJSON renders the record as a flat row object.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Values)+4)
	for k, v := range r.Values {
		out[k] = jsonValue(v)
	}
	out["id"] = r.ID
	if r.OwnerID != nil {
		out["user_id"] = *r.OwnerID
	}
	out["created_at"] = r.CreatedAt
	out["updated_at"] = r.UpdatedAt
	return json.Marshal(out)
}

// HistoryEntry is an immutable snapshot of an entity row taken at a
// mutation.
type HistoryEntry struct {
	HistoryID int64
	EntityID  int64
	OwnerID   *int64
	Values    Values
	ChangedBy int64
	ChangedAt time.Time
	Operation Operation
}

func (h HistoryEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(h.Values)+6)
	for k, v := range h.Values {
		out[k] = jsonValue(v)
	}
	out["history_id"] = h.HistoryID
	out["entity_id"] = h.EntityID
	out["user_id"] = h.OwnerID
	out["changed_by"] = h.ChangedBy
	out["changed_at"] = h.ChangedAt
	out["operation_type"] = h.Operation
	return json.Marshal(out)
}
