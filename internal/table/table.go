// Package table provides a small typed, in-memory tabular representation used
// by the silver transformation core. Snapshots and accumulated history are
// passed around as *Table values; no I/O happens here.
package table

import (
	"time"

	"github.com/rotisserie/eris"
)

// Kind enumerates the value types a column may carry.
type Kind string

const (
	String     Kind = "string"
	StringList Kind = "string_list"
	Bool       Kind = "bool"
	Timestamp  Kind = "timestamp"
)

// Field describes a single column: its name and value kind.
type Field struct {
	Name string
	Kind Kind
}

// Schema is an ordered list of fields.
type Schema []Field

// Row maps column names to values. Legal value types are nil, string,
// []string, bool, and time.Time (pointer-free; nil means null).
type Row map[string]any

// Table couples a schema with its rows. Rows may carry extra working columns
// not present in the schema during intermediate pipeline steps; Cast enforces
// the schema at the boundary.
type Table struct {
	Schema Schema
	Rows   []Row
}

// ErrTypeMismatch signals that a row value is incompatible with the schema
// kind declared for its column. The merge fails loudly on this rather than
// coercing, so the append-only history can never be silently corrupted.
var ErrTypeMismatch = eris.New("table: value type does not match schema")

// New creates an empty table with the given schema.
func New(schema Schema) *Table {
	return &Table{Schema: schema}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool { return t.Len() == 0 }

// HasCol reports whether the schema declares a column with the given name.
func (s Schema) HasCol(name string) bool {
	for _, f := range s {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Col returns the field declaration for name.
func (s Schema) Col(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Append adds rows to the table. Rows are not validated here; Cast performs
// the type check at the end of a transformation.
func (t *Table) Append(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Filter returns a new table (sharing row maps) containing the rows for which
// keep returns true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := &Table{Schema: t.Schema}
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// CloneRow returns a shallow copy of a row. History rows are never mutated in
// place; closing a version copies it first.
func CloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// checkKind verifies that v is a legal value for kind. nil is legal for every
// kind.
func checkKind(v any, kind Kind) bool {
	if v == nil {
		return true
	}
	switch kind {
	case String:
		_, ok := v.(string)
		return ok
	case StringList:
		_, ok := v.([]string)
		return ok
	case Bool:
		_, ok := v.(bool)
		return ok
	case Timestamp:
		_, ok := v.(time.Time)
		return ok
	default:
		return false
	}
}

// Cast coerces the table to exactly the target schema: columns not declared
// by the schema are dropped, declared columns missing from a row become null,
// and a value whose type is incompatible with the declared kind fails with
// ErrTypeMismatch.
func (t *Table) Cast(schema Schema) (*Table, error) {
	out := &Table{Schema: schema, Rows: make([]Row, 0, len(t.Rows))}
	for i, r := range t.Rows {
		nr := make(Row, len(schema))
		for _, f := range schema {
			v, ok := r[f.Name]
			if !ok {
				nr[f.Name] = nil
				continue
			}
			if !checkKind(v, f.Kind) {
				return nil, eris.Wrapf(ErrTypeMismatch, "column %q row %d (want %s, got %T)", f.Name, i, f.Kind, v)
			}
			nr[f.Name] = v
		}
		out.Rows = append(out.Rows, nr)
	}
	return out, nil
}
