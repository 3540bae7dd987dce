package silver

import (
	"time"

	"github.com/CoReason-AI/coreason-etl-epar/internal/table"
)

// MergeParams configures one SCD2 merge run.
type MergeParams struct {
	// Key is the business-key column name (e.g. "product_number").
	Key string
	// IngestionTS stamps valid_from on inserts and valid_to on closures.
	// The merger must be invoked at most once per timestamp per history;
	// re-running with the same timestamp and different data produces a legal
	// zero-duration correction record.
	IngestionTS time.Time
	// HashColumns are the business columns tracked for change detection.
	HashColumns []string
}

// Merge applies SCD Type 2 logic: it merges a cleaned snapshot into the
// accumulated history, opening and closing validity intervals per business
// key. History rows are never mutated; closures clone the row first. The
// result is cast to the input history's schema, so snapshot-only working
// columns are dropped and incompatible value types fail loudly with
// table.ErrTypeMismatch.
func Merge(snapshot, history *table.Table, p MergeParams) (*table.Table, error) {
	snap := dedupeFirst(snapshot, p.Key)

	hashed, err := HashRows(snap, p.HashColumns)
	if err != nil {
		return nil, err
	}

	if history.IsEmpty() {
		return bootstrap(hashed, history.Schema, p.IngestionTS)
	}

	current := history.Filter(func(r table.Row) bool { b, _ := r[ColIsCurrent].(bool); return b })
	closed := history.Filter(func(r table.Row) bool { b, _ := r[ColIsCurrent].(bool); return !b })

	currentByKey := make(map[string]table.Row, current.Len())
	for _, r := range current.Rows {
		currentByKey[keyString(r[p.Key])] = r
	}

	// Classify the snapshot against the open versions: new keys insert,
	// changed hashes insert and close, identical hashes carry the existing
	// row forward, and keys missing from the snapshot close without insert.
	var inserts []table.Row
	closeKeys := make(map[string]bool)
	seen := make(map[string]bool, hashed.Len())

	for _, r := range hashed.Rows {
		key := keyString(r[p.Key])
		seen[key] = true
		cur, ok := currentByKey[key]
		switch {
		case !ok:
			inserts = append(inserts, r)
		case r[ColRowHash] != cur[ColRowHash]:
			inserts = append(inserts, r)
			closeKeys[key] = true
		}
	}
	for key := range currentByKey {
		if !seen[key] {
			closeKeys[key] = true
		}
	}

	result := &table.Table{Schema: history.Schema}
	result.Append(closed.Rows...)

	for _, r := range current.Rows {
		key := keyString(r[p.Key])
		if !closeKeys[key] {
			result.Append(r)
			continue
		}
		nr := table.CloneRow(r)
		nr[ColValidTo] = p.IngestionTS
		nr[ColIsCurrent] = false
		result.Append(nr)
	}

	for _, r := range inserts {
		result.Append(openVersion(r, p.IngestionTS))
	}

	return result.Cast(history.Schema)
}

// bootstrap handles the empty-history case: every snapshot row becomes a new
// current version. When the empty history carried a declared schema, the
// result is coerced to it so consumers see stable typing from the first run.
func bootstrap(hashed *table.Table, historySchema table.Schema, ts time.Time) (*table.Table, error) {
	out := &table.Table{Schema: withTemporal(hashed.Schema)}
	for _, r := range hashed.Rows {
		out.Append(openVersion(r, ts))
	}
	if len(historySchema) > 0 {
		return out.Cast(historySchema)
	}
	return out.Cast(out.Schema)
}

// openVersion stamps a snapshot row as a fresh current version.
func openVersion(r table.Row, ts time.Time) table.Row {
	nr := table.CloneRow(r)
	nr[ColValidFrom] = ts
	nr[ColValidTo] = nil
	nr[ColIsCurrent] = true
	return nr
}

// dedupeFirst deduplicates the snapshot on the business key, keeping the
// first occurrence. Duplicate keys are dirty but expected input; idempotent
// downstream behavior beats failing the ingestion run.
func dedupeFirst(t *table.Table, key string) *table.Table {
	seen := make(map[string]bool, t.Len())
	out := &table.Table{Schema: t.Schema}
	for _, r := range t.Rows {
		k := keyString(r[key])
		if seen[k] {
			continue
		}
		seen[k] = true
		out.Append(r)
	}
	return out
}

// keyString flattens a business-key cell for grouping. Keys are strings per
// the snapshot schema; a null key collapses to "".
func keyString(v any) string {
	s, _ := v.(string)
	return s
}

// withTemporal extends a snapshot schema with the SCD2 columns it is missing.
func withTemporal(s table.Schema) table.Schema {
	out := append(table.Schema{}, s...)
	for _, f := range []table.Field{
		{Name: ColValidFrom, Kind: table.Timestamp},
		{Name: ColValidTo, Kind: table.Timestamp},
		{Name: ColIsCurrent, Kind: table.Bool},
		{Name: ColRowHash, Kind: table.String},
	} {
		if !out.HasCol(f.Name) {
			out = append(out, f)
		}
	}
	return out
}
