package table

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCast_DropsExtraColumns(t *testing.T) {
	tbl := New(Schema{{Name: "a", Kind: String}, {Name: "working", Kind: String}})
	tbl.Append(Row{"a": "x", "working": "scratch"})

	out, err := tbl.Cast(Schema{{Name: "a", Kind: String}})
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "x", out.Rows[0]["a"])
	_, present := out.Rows[0]["working"]
	assert.False(t, present)
}

func TestCast_MissingColumnBecomesNull(t *testing.T) {
	tbl := New(Schema{{Name: "a", Kind: String}})
	tbl.Append(Row{"a": "x"})

	out, err := tbl.Cast(Schema{{Name: "a", Kind: String}, {Name: "b", Kind: Bool}})
	require.NoError(t, err)
	assert.Nil(t, out.Rows[0]["b"])
}

func TestCast_TypeMismatch(t *testing.T) {
	tbl := New(Schema{{Name: "a", Kind: String}})
	tbl.Append(Row{"a": true})

	_, err := tbl.Cast(Schema{{Name: "a", Kind: String}})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrTypeMismatch))
}

func TestCast_NullIsLegalForEveryKind(t *testing.T) {
	schema := Schema{
		{Name: "s", Kind: String},
		{Name: "l", Kind: StringList},
		{Name: "b", Kind: Bool},
		{Name: "t", Kind: Timestamp},
	}
	tbl := New(schema)
	tbl.Append(Row{"s": nil, "l": nil, "b": nil, "t": nil})

	out, err := tbl.Cast(schema)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Len())
}

func TestCast_AcceptsAllKinds(t *testing.T) {
	schema := Schema{
		{Name: "s", Kind: String},
		{Name: "l", Kind: StringList},
		{Name: "b", Kind: Bool},
		{Name: "t", Kind: Timestamp},
	}
	tbl := New(schema)
	tbl.Append(Row{"s": "x", "l": []string{"a"}, "b": true, "t": time.Now()})

	_, err := tbl.Cast(schema)
	require.NoError(t, err)
}

func TestFilter(t *testing.T) {
	tbl := New(Schema{{Name: "n", Kind: String}})
	tbl.Append(Row{"n": "keep"}, Row{"n": "drop"})

	out := tbl.Filter(func(r Row) bool { return r["n"] == "keep" })
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "keep", out.Rows[0]["n"])
}

func TestCloneRow_Independent(t *testing.T) {
	r := Row{"a": "x"}
	c := CloneRow(r)
	c["a"] = "y"
	assert.Equal(t, "x", r["a"])
}

func TestSchemaHelpers(t *testing.T) {
	s := Schema{{Name: "a", Kind: String}, {Name: "b", Kind: Bool}}
	assert.True(t, s.HasCol("a"))
	assert.False(t, s.HasCol("z"))
	assert.Equal(t, []string{"a", "b"}, s.Names())

	f, ok := s.Col("b")
	require.True(t, ok)
	assert.Equal(t, Bool, f.Kind)

	assert.True(t, New(s).IsEmpty())
}
