// Package model holds the domain types shared across the ETL pipeline:
// EPAR product records, silver history rows, SPOR registry entries, and the
// run log. Tabular schemas for the SCD2 merge live here too, so every layer
// agrees on column names and kinds.
package model

import "time"

// ProductRecord is one EPAR index row as observed in the current snapshot.
// Pointer fields distinguish absent/null source values from present-but-empty
// ones; the cleaner preserves that distinction into the derived columns.
type ProductRecord struct {
	Category                     string     `json:"category"`
	ProductNumber                string     `json:"product_number"`
	MedicineName                 string     `json:"medicine_name"`
	MarketingAuthorisationHolder string     `json:"marketing_authorisation_holder"`
	ActiveSubstance              *string    `json:"active_substance,omitempty"`
	TherapeuticArea              *string    `json:"therapeutic_area,omitempty"`
	ATCCode                      *string    `json:"atc_code,omitempty"`
	Generic                      *bool      `json:"generic,omitempty"`
	Biosimilar                   *bool      `json:"biosimilar,omitempty"`
	Orphan                       *bool      `json:"orphan,omitempty"`
	ConditionalApproval          *bool      `json:"conditional_approval,omitempty"`
	ExceptionalCircumstances     *bool      `json:"exceptional_circumstances,omitempty"`
	AuthorisationStatus          *string    `json:"authorisation_status,omitempty"`
	RevisionDate                 *time.Time `json:"revision_date,omitempty"`
	URL                          string     `json:"url"`

	// Derived by the cleaner. ActiveSubstanceList and ATCCodeList stay nil
	// when the source column was null; a present-but-unparseable source
	// yields an empty (non-nil) list.
	BaseProcedureID     *string  `json:"base_procedure_id,omitempty"`
	ActiveSubstanceList []string `json:"active_substance_list,omitempty"`
	ATCCodeList         []string `json:"atc_code_list,omitempty"`
	StatusNormalized    Status   `json:"status_normalized,omitempty"`
}

// RegistryEntry is one SPOR organisation record. Only entries carrying the
// Marketing Authorisation Holder role reach the resolver.
type RegistryEntry struct {
	OrgID string   `json:"org_id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

// MAHRole is the SPOR role label that makes an organisation relevant to
// holder resolution. Matching is case-insensitive substring, as the export
// spells the role inconsistently.
const MAHRole = "marketing authorisation holder"

// SilverRecord is a versioned product record: a ProductRecord plus the SCD2
// temporal/provenance attributes and the resolved SPOR organisation id.
type SilverRecord struct {
	ProductRecord

	SporMAHID *string    `json:"spor_mah_id,omitempty"`
	ValidFrom time.Time  `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
	IsCurrent bool       `json:"is_current"`
	RowHash   string     `json:"row_hash"`
}

// RunStatus describes the outcome of one pipeline run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunLog is one entry in the pipeline run log.
type RunLog struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Status        RunStatus `json:"status"`
	SnapshotRows  int       `json:"snapshot_rows"`
	HistoryRows   int       `json:"history_rows"`
	UpdatedRows   int       `json:"updated_rows"`
	SporMatchRate float64   `json:"spor_match_rate"`
	Error         string    `json:"error,omitempty"`
}
