package silver

import (
	"crypto/md5" //nolint:gosec // change-detection fingerprint, not a security boundary
	"encoding/hex"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/CoReason-AI/coreason-etl-epar/internal/table"
)

// Temporal and provenance columns appended by the merger. The merger is
// generic over the business schema; only these four names are reserved.
const (
	ColValidFrom = "valid_from"
	ColValidTo   = "valid_to"
	ColIsCurrent = "is_current"
	ColRowHash   = "row_hash"
)

// ErrColumnNotFound signals that a caller-declared hash column is absent from
// the snapshot schema entirely. This is a configuration/schema mismatch and
// fails fast; a present-but-null value is fine and hashes as empty string.
var ErrColumnNotFound = eris.New("silver: hash column not found")

// column and list separators for hash serialization; chosen to be unlikely in
// the data. Lists are joined after the cleaner sorted them, so element order
// can never change the digest.
const (
	hashColSep  = "|"
	hashListSep = ";"
)

// hashString serializes one cell for hashing. Null values become the empty
// string, making null and "" indistinguishable post-hash. That equivalence is
// an accepted contract the downstream change detection depends on. Any value
// outside the table's four legal kinds is a bug upstream of the hasher and
// fails with table.ErrTypeMismatch instead of hashing as "".
func hashString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case []string:
		return strings.Join(x, hashListSep), nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	default:
		return "", eris.Wrapf(table.ErrTypeMismatch, "unhashable value type %T", v)
	}
}

// HashRows computes the MD5 content fingerprint of the named columns for each
// row and returns a new table carrying it in the row_hash column. Every named
// column must exist in the snapshot schema or the call fails with
// ErrColumnNotFound.
func HashRows(t *table.Table, columns []string) (*table.Table, error) {
	for _, c := range columns {
		if !t.Schema.HasCol(c) {
			return nil, eris.Wrapf(ErrColumnNotFound, "column %q", c)
		}
	}

	schema := t.Schema
	if !schema.HasCol(ColRowHash) {
		schema = append(append(table.Schema{}, t.Schema...), table.Field{Name: ColRowHash, Kind: table.String})
	}

	out := &table.Table{Schema: schema, Rows: make([]table.Row, 0, t.Len())}
	for _, r := range t.Rows {
		parts := make([]string, len(columns))
		for i, c := range columns {
			s, err := hashString(r[c])
			if err != nil {
				return nil, eris.Wrapf(err, "column %q", c)
			}
			parts[i] = s
		}
		sum := md5.Sum([]byte(strings.Join(parts, hashColSep))) //nolint:gosec
		nr := table.CloneRow(r)
		nr[ColRowHash] = hex.EncodeToString(sum[:])
		out.Rows = append(out.Rows, nr)
	}
	return out, nil
}
