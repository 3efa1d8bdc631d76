// Package kinds declares the business entity kinds. Each Kind describes its
// table, history table, typed columns, ownership policy and permission
// sectors; one generic store and one generic history writer serve them all.
package kinds

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/server/models"
)

// Ownership decides how rows relate to the acting user.
type Ownership int

const (
	// OwnershipNone records the creator but lets any authorized user read
	// and mutate the row.
	OwnershipNone Ownership = iota
	// OwnershipStrict hides rows owned by other users; they read as missing.
	OwnershipStrict
	// OwnershipGlobal rows have no owner column at all.
	OwnershipGlobal
)

// Sectors names the permission sector of every operation on a kind.
type Sectors struct {
	List    string
	Get     string
	Create  string
	Update  string
	Delete  string
	History string
	Reorder string
}

type Kind struct {
	// Name is the route segment and registry key.
	Name  string
	Table string
	// HistoryTable is empty for kinds without audit trail.
	HistoryTable string
	// HistoryFK is the history column referencing the entity id.
	HistoryFK   string
	Fields      []Field
	Ownership   Ownership
	ListByOwner bool
	// OnePerOwner kinds hold at most one row per user.
	OnePerOwner bool
	// OrderBy is the natural list order column, "id" when empty.
	OrderBy string
	// Filters are the columns List accepts equality filters on.
	Filters []string
	Sectors Sectors
}

// Columns returns the kind-specific column names in declaration order.
func (k *Kind) Columns() []string {
	cols := make([]string, len(k.Fields))
	for i, f := range k.Fields {
		cols[i] = f.Name
	}
	return cols
}

func (k *Kind) Field(name string) (Field, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (k *Kind) HasHistory() bool {
	return k.HistoryTable != ""
}

func (k *Kind) HasOwner() bool {
	return k.Ownership != OwnershipGlobal
}

func (k *Kind) Order() string {
	if k.OrderBy == "" {
		return "id"
	}
	return k.OrderBy
}

// Validate turns a decoded JSON object into typed values for every column.
// Missing required fields are reported together; absent optional fields
// take their default. Unknown keys, including id and user_id, are ignored.
func (k *Kind) Validate(input map[string]any) (models.Values, error) {
	out := make(models.Values, len(k.Fields))
	var missing []string

	for _, f := range k.Fields {
		raw, present := input[f.Name]
		v, err := f.Coerce(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s: %v", common.ErrValidation, f.Name, err)
		}

		if !present || v == nil {
			if f.Required {
				missing = append(missing, f.Name)
				continue
			}
			if !present {
				v = f.Default
			}
		}
		out[f.Name] = v
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields: %s", common.ErrValidation, strings.Join(missing, ", "))
	}

	return out, nil
}

// Filter validates list filters against the declared filter columns.
func (k *Kind) Filter(query map[string]string) (models.Values, error) {
	out := models.Values{}
	for _, name := range k.Filters {
		raw, ok := query[name]
		if !ok || raw == "" {
			continue
		}
		f, _ := k.Field(name)
		v, err := f.Coerce(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: filter %s: %v", common.ErrValidation, name, err)
		}
		out[name] = v
	}
	return out, nil
}
