// Package gold derives the star-schema presentation tables from the silver
// history: a medicine dimension, the regulatory history fact table, and an
// entity-attribute-value bridge for searchable features.
package gold

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CoReason-AI/coreason-etl-epar/internal/model"
)

// NamespaceEMA is the UUID v5 namespace all coreason ids derive from.
var NamespaceEMA = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("ema.europa.eu"))

// Feature types carried by the bridge table.
const (
	FeatureATCCode         = "ATC_CODE"
	FeatureSubstance       = "SUBSTANCE"
	FeatureTherapeuticArea = "THERAPEUTIC_AREA"
)

// DimMedicine is one row of the medicine dimension: the stable attributes of
// a product, taken from its current version.
type DimMedicine struct {
	CoreasonID      string  `json:"coreason_id"`
	MedicineName    string  `json:"medicine_name"`
	BaseProcedureID *string `json:"base_procedure_id,omitempty"`
	BrandName       string  `json:"brand_name"`
	IsBiosimilar    bool    `json:"is_biosimilar"`
	IsGeneric       bool    `json:"is_generic"`
	IsOrphan        bool    `json:"is_orphan"`
	EMAProductURL   string  `json:"ema_product_url"`
}

// FactHistory is one row of the regulatory history fact table, one per
// silver version.
type FactHistory struct {
	HistoryID  string       `json:"history_id"`
	CoreasonID string       `json:"coreason_id"`
	Status     model.Status `json:"status"`
	ValidFrom  time.Time    `json:"valid_from"`
	ValidTo    *time.Time   `json:"valid_to,omitempty"`
	IsCurrent  bool         `json:"is_current"`
	SporMAHID  *string      `json:"spor_mah_id,omitempty"`
}

// BridgeFeature is one row of the medicine feature bridge.
type BridgeFeature struct {
	CoreasonID   string `json:"coreason_id"`
	FeatureType  string `json:"feature_type"`
	FeatureValue string `json:"feature_value"`
}

// Tables bundles the three gold tables produced from one silver state.
type Tables struct {
	DimMedicine           []DimMedicine
	FactRegulatoryHistory []FactHistory
	BridgeFeatures        []BridgeFeature
}

// CoreasonID derives the stable entity id for an EMA product number.
func CoreasonID(productNumber string) string {
	return uuid.NewSHA1(NamespaceEMA, []byte(productNumber)).String()
}

// historyID derives the surrogate key of one fact row from the entity id and
// version start.
func historyID(coreasonID string, validFrom time.Time) string {
	name := coreasonID + "_" + validFrom.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// Build derives the gold tables from the full silver history. The dimension
// and the bridge reflect each product's current version; when no version at
// all is current (every product withdrawn or deleted), the latest version by
// valid_from stands in.
func Build(records []model.SilverRecord) Tables {
	var out Tables

	facts := make([]FactHistory, 0, len(records))
	for _, r := range records {
		cid := CoreasonID(r.ProductNumber)
		facts = append(facts, FactHistory{
			HistoryID:  historyID(cid, r.ValidFrom),
			CoreasonID: cid,
			Status:     r.StatusNormalized,
			ValidFrom:  r.ValidFrom,
			ValidTo:    r.ValidTo,
			IsCurrent:  r.IsCurrent,
			SporMAHID:  r.SporMAHID,
		})
	}
	out.FactRegulatoryHistory = facts

	for _, r := range dimSource(records) {
		cid := CoreasonID(r.ProductNumber)
		out.DimMedicine = append(out.DimMedicine, DimMedicine{
			CoreasonID:      cid,
			MedicineName:    r.MedicineName,
			BaseProcedureID: r.BaseProcedureID,
			BrandName:       r.MedicineName,
			IsBiosimilar:    flag(r.Biosimilar),
			IsGeneric:       flag(r.Generic),
			IsOrphan:        flag(r.Orphan),
			EMAProductURL:   r.URL,
		})
		out.BridgeFeatures = append(out.BridgeFeatures, features(cid, r)...)
	}

	return out
}

// dimSource picks the representative version of each product: its current
// row, or, when the history holds no current rows at all, the version with
// the latest valid_from. Output is ordered by product number.
func dimSource(records []model.SilverRecord) []model.SilverRecord {
	byProduct := make(map[string]model.SilverRecord)
	anyCurrent := false
	for _, r := range records {
		if r.IsCurrent {
			anyCurrent = true
			byProduct[r.ProductNumber] = r
		}
	}
	if !anyCurrent {
		for _, r := range records {
			prev, seen := byProduct[r.ProductNumber]
			if !seen || r.ValidFrom.After(prev.ValidFrom) {
				byProduct[r.ProductNumber] = r
			}
		}
	}

	keys := make([]string, 0, len(byProduct))
	for k := range byProduct {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]model.SilverRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, byProduct[k])
	}
	return out
}

func features(cid string, r model.SilverRecord) []BridgeFeature {
	var out []BridgeFeature
	for _, code := range r.ATCCodeList {
		out = append(out, BridgeFeature{CoreasonID: cid, FeatureType: FeatureATCCode, FeatureValue: code})
	}
	for _, sub := range r.ActiveSubstanceList {
		out = append(out, BridgeFeature{CoreasonID: cid, FeatureType: FeatureSubstance, FeatureValue: sub})
	}
	if r.TherapeuticArea != nil {
		for _, area := range strings.Split(*r.TherapeuticArea, ";") {
			if v := strings.TrimSpace(area); v != "" {
				out = append(out, BridgeFeature{CoreasonID: cid, FeatureType: FeatureTherapeuticArea, FeatureValue: v})
			}
		}
	}
	return out
}

func flag(b *bool) bool {
	return b != nil && *b
}
