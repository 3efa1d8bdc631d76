package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_MarshalJSONFlattensValues(t *testing.T) {
	owner := int64(9)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := Record{
		ID:      3,
		OwnerID: &owner,
		Values: Values{
			"business_name": "Acme",
			"amount":        decimal.RequireFromString("10.50"),
			"brand_file_id": nil,
		},
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, float64(3), got["id"])
	assert.Equal(t, float64(9), got["user_id"])
	assert.Equal(t, "Acme", got["business_name"])
	assert.Equal(t, 10.5, got["amount"])
	assert.Contains(t, got, "brand_file_id")
	assert.Nil(t, got["brand_file_id"])
	assert.Equal(t, "2024-05-01T10:00:00Z", got["created_at"])
}

func TestRecord_GlobalHasNoOwner(t *testing.T) {
	b, err := json.Marshal(Record{ID: 1, Values: Values{"label": "Pendiente"}})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.NotContains(t, got, "user_id")

	r := Record{ID: 1}
	assert.False(t, r.OwnedBy(1))
}

func TestHistoryEntry_MarshalJSON(t *testing.T) {
	owner := int64(2)
	h := HistoryEntry{
		HistoryID: 11,
		EntityID:  4,
		OwnerID:   &owner,
		Values:    Values{"name": "Main", "final_balance": decimal.RequireFromString("-3.25")},
		ChangedBy: 1,
		Operation: OpDeletion,
	}

	b, err := json.Marshal(h)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "DELETION", got["operation_type"])
	assert.Equal(t, float64(4), got["entity_id"])
	assert.Equal(t, "Main", got["name"])
	assert.Equal(t, -3.25, got["final_balance"])
}

func TestValuesClone(t *testing.T) {
	v := Values{"a": "x"}
	c := v.Clone()
	c["a"] = "y"
	assert.Equal(t, "x", v["a"])
}

func TestUserLockedAt(t *testing.T) {
	now := time.Now()
	u := &User{}
	assert.False(t, u.LockedAt(now))

	later := now.Add(time.Minute)
	u.LockedUntil = &later
	assert.True(t, u.LockedAt(now))
	assert.False(t, u.LockedAt(now.Add(2*time.Minute)))
}
