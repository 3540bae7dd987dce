// Package silver implements the silver transformation core: deterministic
// field cleaning, content hashing for change detection, and the SCD Type 2
// history merge. Everything here is a pure function over in-memory tables;
// persistence and ingestion live elsewhere.
package silver

import (
	"regexp"
	"sort"
	"strings"

	"github.com/CoReason-AI/coreason-etl-epar/internal/model"
)

// invisibleChars are zero-width and formatting code points that show up in
// the EPAR export and would otherwise trigger spurious history versions.
var invisibleChars = []string{
	"\u200B", // zero width space
	"\u200C", // zero width non-joiner
	"\u200D", // zero width joiner
	"\u2060", // word joiner
	"\uFEFF", // BOM
}

var (
	baseProcedureRe = regexp.MustCompile(`/(\d+)$`)
	substanceSplit  = regexp.MustCompile(`[+/]`)
	codeSplit       = regexp.MustCompile(`[,;]`)
	atcCodeRe       = regexp.MustCompile(`\b[A-Z][0-9]{2}[A-Z]{2}[0-9]{2}\b`)
)

func stripInvisible(s string) string {
	for _, c := range invisibleChars {
		s = strings.ReplaceAll(s, c, "")
	}
	return s
}

func stripInvisiblePtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := stripInvisible(*p)
	return &s
}

// BaseProcedureID extracts the trailing numeric segment of a product number
// ("EMEA/H/C/001234" yields "001234"). A key that does not match the shape
// yields nil, never an error; malformed keys are data-quality variance.
func BaseProcedureID(productNumber string) *string {
	m := baseProcedureRe.FindStringSubmatch(productNumber)
	if m == nil {
		return nil
	}
	return &m[1]
}

// SplitSubstances splits a multi-substance field on its alternate delimiters
// ("+" and "/"), trims segments, drops empties, and sorts the result so that
// element order never influences the row hash. A nil input stays nil; a
// present-but-empty field yields an empty list.
func SplitSubstances(raw *string) []string {
	if raw == nil {
		return nil
	}
	out := []string{}
	for _, part := range substanceSplit.Split(*raw, -1) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	sort.Strings(out)
	return out
}

// SplitATCCodes splits a multi-code field on "," and ";", uppercases each
// token, and extracts the strictly validated 7-character ATC shape (1 letter,
// 2 digits, 2 letters, 2 digits, on a word boundary). Tokens without a
// conforming code are dropped silently: "A01BC012" has no bounded match and
// disappears, while "A01BC01 (tablet)" yields "A01BC01". Duplicates are preserved
// and the list is sorted for order-invariant hashing. nil input stays nil.
func SplitATCCodes(raw *string) []string {
	if raw == nil {
		return nil
	}
	out := []string{}
	for _, token := range codeSplit.Split(*raw, -1) {
		token = strings.ToUpper(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		if code := atcCodeRe.FindString(token); code != "" {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

// Clean normalizes one snapshot record: strips invisible characters from all
// textual fields and derives base_procedure_id, the canonical substance and
// ATC lists, and the normalized status. Unrelated fields pass through
// untouched, and missing optional fields degrade to nil derived values.
func Clean(rec model.ProductRecord) model.ProductRecord {
	out := rec

	out.Category = stripInvisible(rec.Category)
	out.ProductNumber = stripInvisible(rec.ProductNumber)
	out.MedicineName = stripInvisible(rec.MedicineName)
	out.MarketingAuthorisationHolder = stripInvisible(rec.MarketingAuthorisationHolder)
	out.ActiveSubstance = stripInvisiblePtr(rec.ActiveSubstance)
	out.TherapeuticArea = stripInvisiblePtr(rec.TherapeuticArea)
	out.ATCCode = stripInvisiblePtr(rec.ATCCode)
	out.AuthorisationStatus = stripInvisiblePtr(rec.AuthorisationStatus)
	out.URL = stripInvisible(rec.URL)

	out.BaseProcedureID = BaseProcedureID(out.ProductNumber)
	out.ActiveSubstanceList = SplitSubstances(out.ActiveSubstance)
	out.ATCCodeList = SplitATCCodes(out.ATCCode)

	status := ""
	if out.AuthorisationStatus != nil {
		status = *out.AuthorisationStatus
	}
	out.StatusNormalized = NormalizeStatus(status)

	return out
}

// CleanAll applies Clean to every record in a snapshot.
func CleanAll(recs []model.ProductRecord) []model.ProductRecord {
	out := make([]model.ProductRecord, len(recs))
	for i, r := range recs {
		out[i] = Clean(r)
	}
	return out
}
