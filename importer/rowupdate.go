package importer

import (
	"github.com/ridoystarlord/discontented/codec"
)

// ConflictAction selects the ON CONFLICT clause of an upsert.
type ConflictAction string

const (
	OnConflictUpdate  ConflictAction = "update"
	OnConflictNothing ConflictAction = "nothing"
)

type Column struct {
	Name  string
	Value codec.Value
}

// RowUpdate is one row to upsert into Table.
type RowUpdate struct {
	Table      string
	UniqueKey  []string
	OnConflict ConflictAction
	Columns    []Column
}

// Set assigns a column, replacing an earlier value of the same name.
func (r *RowUpdate) Set(name string, v codec.Value) {
	if v == nil {
		v = codec.Null{}
	}
	for i := range r.Columns {
		if r.Columns[i].Name == name {
			r.Columns[i].Value = v
			return
		}
	}
	r.Columns = append(r.Columns, Column{Name: name, Value: v})
}

// Get returns the value of a column.
func (r RowUpdate) Get(name string) (codec.Value, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c.Value, true
		}
	}
	return nil, false
}

func (r RowUpdate) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// sameShape reports whether two rows can share one INSERT statement.
func (r RowUpdate) sameShape(o RowUpdate) bool {
	if r.OnConflict != o.OnConflict || !equalStrings(r.UniqueKey, o.UniqueKey) {
		return false
	}
	if len(r.Columns) != len(o.Columns) {
		return false
	}
	for i := range r.Columns {
		if r.Columns[i].Name != o.Columns[i].Name {
			return false
		}
	}
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TableRows holds the rows destined for one table, in insertion order.
type TableRows struct {
	Table string
	Rows  []RowUpdate
}

// LinkPrune removes the rows of a link table owned by Owner whose item is
// not in Keep. It must only run once the owner's link rows are written.
type LinkPrune struct {
	Table string
	Owner string
	Keep  []string
}

// tableSet accumulates rows per table, remembering first-seen table order.
type tableSet struct {
	order  []string
	rows   map[string][]RowUpdate
	prunes []LinkPrune
}

func newTableSet() *tableSet {
	return &tableSet{rows: map[string][]RowUpdate{}}
}

func (s *tableSet) add(row RowUpdate) error {
	existing, ok := s.rows[row.Table]
	if !ok {
		s.order = append(s.order, row.Table)
	} else if exemplar := existing[0]; !exemplar.sameShape(row) {
		return &HeterogeneousRowsError{
			Table: row.Table,
			Want:  exemplar.ColumnNames(),
			Got:   row.ColumnNames(),
		}
	}
	s.rows[row.Table] = append(existing, row)
	return nil
}

func (s *tableSet) tables() []TableRows {
	out := make([]TableRows, 0, len(s.order))
	for _, t := range s.order {
		out = append(out, TableRows{Table: t, Rows: s.rows[t]})
	}
	return out
}

func (s *tableSet) asMap() map[string][]RowUpdate {
	return s.rows
}
