package enrich

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/CoReason-AI/coreason-etl-epar/internal/model"
	"github.com/CoReason-AI/coreason-etl-epar/internal/table"
)

// MatchThreshold is the minimum similarity (exclusive) for accepting a
// holder-to-registry match.
const MatchThreshold = 0.90

// MinMatchRate is the aggregate match rate below which a run is flagged in
// the logs. Observability signal only, never a failure.
const MinMatchRate = 0.90

// Stats reports the aggregate outcome of one resolution run.
type Stats struct {
	TotalHolders   int
	MatchedHolders int
}

// MatchRate returns matched/total distinct holders, 0 when no holders.
func (s Stats) MatchRate() float64 {
	if s.TotalHolders == 0 {
		return 0.0
	}
	return float64(s.MatchedHolders) / float64(s.TotalHolders)
}

// Resolve maps each distinct holder name to the registry org id with the
// highest Jaro-Winkler similarity above MatchThreshold. Comparison is over
// lower-cased names; the registry side is deliberately not deduplicated, so
// duplicate registry names can tie. Ties break deterministically: highest
// score first, then lexicographically smallest org id. An empty registry
// resolves every holder to no match without error.
func Resolve(holders []string, registry []model.RegistryEntry) (map[string]string, Stats) {
	distinct := distinctNonEmpty(holders)
	stats := Stats{TotalHolders: len(distinct)}
	matches := make(map[string]string, len(distinct))

	if len(registry) == 0 {
		logMatchRate(stats)
		return matches, stats
	}

	for _, holder := range distinct {
		lh := strings.ToLower(holder)
		bestScore := MatchThreshold
		bestID := ""
		for _, entry := range registry {
			score := JaroWinkler(lh, strings.ToLower(entry.Name))
			if score > bestScore || (score == bestScore && bestID != "" && entry.OrgID < bestID) {
				bestScore = score
				bestID = entry.OrgID
			}
		}
		if bestID != "" {
			matches[holder] = bestID
			stats.MatchedHolders++
		}
	}

	logMatchRate(stats)
	return matches, stats
}

func logMatchRate(stats Stats) {
	rate := stats.MatchRate()
	zap.L().Info("SPOR match rate",
		zap.Float64("spor_match_rate", rate),
		zap.Int("matched", stats.MatchedHolders),
		zap.Int("total", stats.TotalHolders),
		zap.String("metric", "spor_match_rate"),
	)
	if stats.TotalHolders > 0 && rate < MinMatchRate {
		zap.L().Warn("SPOR match rate below threshold",
			zap.Float64("spor_match_rate", rate),
			zap.Float64("threshold", MinMatchRate),
		)
	}
}

// FilterMAH keeps only registry entries carrying the Marketing Authorisation
// Holder role (case-insensitive substring, the export spells it unevenly).
func FilterMAH(entries []model.RegistryEntry) []model.RegistryEntry {
	var out []model.RegistryEntry
	for _, e := range entries {
		for _, role := range e.Roles {
			if strings.Contains(strings.ToLower(role), model.MAHRole) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Attach resolves the distinct holder names present in a merged silver table
// and left-joins the resulting org ids back as the spor_mah_id column.
// Rows without a confident match keep a null spor_mah_id.
func Attach(t *table.Table, registry []model.RegistryEntry) (*table.Table, Stats) {
	holders := make([]string, 0, t.Len())
	for _, r := range t.Rows {
		if name, ok := r[model.ColMAH].(string); ok {
			holders = append(holders, name)
		}
	}

	matches, stats := Resolve(holders, registry)

	out := &table.Table{Schema: t.Schema, Rows: make([]table.Row, 0, t.Len())}
	for _, r := range t.Rows {
		nr := table.CloneRow(r)
		nr[model.ColSporMAHID] = nil
		if name, ok := r[model.ColMAH].(string); ok {
			if id, found := matches[name]; found {
				nr[model.ColSporMAHID] = id
			}
		}
		out.Rows = append(out.Rows, nr)
	}
	return out, stats
}

func distinctNonEmpty(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
