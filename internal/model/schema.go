package model

import (
	"time"

	"github.com/CoReason-AI/coreason-etl-epar/internal/table"
)

// Column names shared by the snapshot and history tables.
const (
	ColCategory                 = "category"
	ColProductNumber            = "product_number"
	ColMedicineName             = "medicine_name"
	ColMAH                      = "marketing_authorisation_holder"
	ColActiveSubstance          = "active_substance"
	ColTherapeuticArea          = "therapeutic_area"
	ColATCCode                  = "atc_code"
	ColGeneric                  = "generic"
	ColBiosimilar               = "biosimilar"
	ColOrphan                   = "orphan"
	ColConditionalApproval      = "conditional_approval"
	ColExceptionalCircumstances = "exceptional_circumstances"
	ColAuthorisationStatus      = "authorisation_status"
	ColRevisionDate             = "revision_date"
	ColURL                      = "url"

	ColBaseProcedureID     = "base_procedure_id"
	ColActiveSubstanceList = "active_substance_list"
	ColATCCodeList         = "atc_code_list"
	ColStatusNormalized    = "status_normalized"

	ColSporMAHID = "spor_mah_id"
	ColValidFrom = "valid_from"
	ColValidTo   = "valid_to"
	ColIsCurrent = "is_current"
	ColRowHash   = "row_hash"
)

// SnapshotSchema returns the schema of a cleaned snapshot table.
func SnapshotSchema() table.Schema {
	return table.Schema{
		{Name: ColCategory, Kind: table.String},
		{Name: ColProductNumber, Kind: table.String},
		{Name: ColMedicineName, Kind: table.String},
		{Name: ColMAH, Kind: table.String},
		{Name: ColActiveSubstance, Kind: table.String},
		{Name: ColTherapeuticArea, Kind: table.String},
		{Name: ColATCCode, Kind: table.String},
		{Name: ColGeneric, Kind: table.Bool},
		{Name: ColBiosimilar, Kind: table.Bool},
		{Name: ColOrphan, Kind: table.Bool},
		{Name: ColConditionalApproval, Kind: table.Bool},
		{Name: ColExceptionalCircumstances, Kind: table.Bool},
		{Name: ColAuthorisationStatus, Kind: table.String},
		{Name: ColRevisionDate, Kind: table.Timestamp},
		{Name: ColURL, Kind: table.String},
		{Name: ColBaseProcedureID, Kind: table.String},
		{Name: ColActiveSubstanceList, Kind: table.StringList},
		{Name: ColATCCodeList, Kind: table.StringList},
		{Name: ColStatusNormalized, Kind: table.String},
	}
}

// HistorySchema returns the fixed schema of the silver history table:
// the snapshot schema plus resolver output and SCD2 temporal columns.
func HistorySchema() table.Schema {
	s := SnapshotSchema()
	return append(s,
		table.Field{Name: ColSporMAHID, Kind: table.String},
		table.Field{Name: ColValidFrom, Kind: table.Timestamp},
		table.Field{Name: ColValidTo, Kind: table.Timestamp},
		table.Field{Name: ColIsCurrent, Kind: table.Bool},
		table.Field{Name: ColRowHash, Kind: table.String},
	)
}

// Row converts a cleaned product record into a snapshot table row.
func (p ProductRecord) Row() table.Row {
	return table.Row{
		ColCategory:                 p.Category,
		ColProductNumber:            p.ProductNumber,
		ColMedicineName:             p.MedicineName,
		ColMAH:                      p.MarketingAuthorisationHolder,
		ColActiveSubstance:          strVal(p.ActiveSubstance),
		ColTherapeuticArea:          strVal(p.TherapeuticArea),
		ColATCCode:                  strVal(p.ATCCode),
		ColGeneric:                  boolVal(p.Generic),
		ColBiosimilar:               boolVal(p.Biosimilar),
		ColOrphan:                   boolVal(p.Orphan),
		ColConditionalApproval:      boolVal(p.ConditionalApproval),
		ColExceptionalCircumstances: boolVal(p.ExceptionalCircumstances),
		ColAuthorisationStatus:      strVal(p.AuthorisationStatus),
		ColRevisionDate:             timeVal(p.RevisionDate),
		ColURL:                      p.URL,
		ColBaseProcedureID:          strVal(p.BaseProcedureID),
		ColActiveSubstanceList:      listVal(p.ActiveSubstanceList),
		ColATCCodeList:              listVal(p.ATCCodeList),
		ColStatusNormalized:         statusVal(p.StatusNormalized),
	}
}

// Row converts a silver record into a history table row.
func (r SilverRecord) Row() table.Row {
	row := r.ProductRecord.Row()
	row[ColSporMAHID] = strVal(r.SporMAHID)
	row[ColValidFrom] = r.ValidFrom
	row[ColValidTo] = timeVal(r.ValidTo)
	row[ColIsCurrent] = r.IsCurrent
	row[ColRowHash] = r.RowHash
	return row
}

// SilverFromRow converts a history table row back into a typed record. The
// row is expected to already conform to HistorySchema (post-Cast), so value
// assertions are lenient: absent or null cells map to zero/nil fields.
func SilverFromRow(row table.Row) SilverRecord {
	var rec SilverRecord
	rec.Category = str(row[ColCategory])
	rec.ProductNumber = str(row[ColProductNumber])
	rec.MedicineName = str(row[ColMedicineName])
	rec.MarketingAuthorisationHolder = str(row[ColMAH])
	rec.ActiveSubstance = strPtr(row[ColActiveSubstance])
	rec.TherapeuticArea = strPtr(row[ColTherapeuticArea])
	rec.ATCCode = strPtr(row[ColATCCode])
	rec.Generic = boolPtr(row[ColGeneric])
	rec.Biosimilar = boolPtr(row[ColBiosimilar])
	rec.Orphan = boolPtr(row[ColOrphan])
	rec.ConditionalApproval = boolPtr(row[ColConditionalApproval])
	rec.ExceptionalCircumstances = boolPtr(row[ColExceptionalCircumstances])
	rec.AuthorisationStatus = strPtr(row[ColAuthorisationStatus])
	rec.RevisionDate = timePtr(row[ColRevisionDate])
	rec.URL = str(row[ColURL])
	rec.BaseProcedureID = strPtr(row[ColBaseProcedureID])
	rec.ActiveSubstanceList = list(row[ColActiveSubstanceList])
	rec.ATCCodeList = list(row[ColATCCodeList])
	if s := strPtr(row[ColStatusNormalized]); s != nil {
		rec.StatusNormalized = Status(*s)
	}
	rec.SporMAHID = strPtr(row[ColSporMAHID])
	if t := timePtr(row[ColValidFrom]); t != nil {
		rec.ValidFrom = *t
	}
	rec.ValidTo = timePtr(row[ColValidTo])
	if b := boolPtr(row[ColIsCurrent]); b != nil {
		rec.IsCurrent = *b
	}
	rec.RowHash = str(row[ColRowHash])
	return rec
}

func strVal(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolVal(p *bool) any {
	if p == nil {
		return nil
	}
	return *p
}

func timeVal(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

func listVal(l []string) any {
	if l == nil {
		return nil
	}
	return l
}

func statusVal(s Status) any {
	if s == "" {
		return nil
	}
	return string(s)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strPtr(v any) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}

func boolPtr(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	return nil
}

func timePtr(v any) *time.Time {
	if t, ok := v.(time.Time); ok {
		return &t
	}
	return nil
}

func list(v any) []string {
	l, _ := v.([]string)
	return l
}
