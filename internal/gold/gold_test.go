package gold

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CoReason-AI/coreason-etl-epar/internal/model"
)

func silverRec(number, name string, validFrom time.Time, validTo *time.Time, current bool) model.SilverRecord {
	orphan := true
	off := false
	area := "Cancer"
	mah := "ORG-1"
	base := "001"
	rec := model.SilverRecord{
		ValidFrom: validFrom,
		ValidTo:   validTo,
		IsCurrent: current,
		SporMAHID: &mah,
	}
	rec.ProductNumber = number
	rec.MedicineName = name
	rec.BaseProcedureID = &base
	rec.Biosimilar = &off
	rec.Generic = &off
	rec.Orphan = &orphan
	rec.URL = "http://a"
	rec.StatusNormalized = model.StatusApproved
	rec.ActiveSubstanceList = []string{"Sub A"}
	rec.ATCCodeList = []string{"A01"}
	rec.TherapeuticArea = &area
	return rec
}

func ts(m time.Month) time.Time {
	return time.Date(2024, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestCoreasonID_Deterministic(t *testing.T) {
	id1 := CoreasonID("EMEA/H/C/001")
	id2 := CoreasonID("EMEA/H/C/001")
	id3 := CoreasonID("EMEA/H/C/002")

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, id1, id3)
}

func TestBuild_StarSchema(t *testing.T) {
	feb := ts(time.February)
	old := silverRec("EMEA/H/C/001", "Med A", ts(time.January), &feb, false)
	old.StatusNormalized = model.StatusConditionalApproval
	cur := silverRec("EMEA/H/C/001", "Med A", feb, nil, true)

	gold := Build([]model.SilverRecord{old, cur})

	// Dimension deduplicates to the current version.
	require.Len(t, gold.DimMedicine, 1)
	dim := gold.DimMedicine[0]
	assert.Equal(t, "Med A", dim.MedicineName)
	assert.Equal(t, "Med A", dim.BrandName)
	assert.True(t, dim.IsOrphan)
	assert.False(t, dim.IsGeneric)
	assert.Equal(t, CoreasonID("EMEA/H/C/001"), dim.CoreasonID)

	// Fact table keeps the full history.
	require.Len(t, gold.FactRegulatoryHistory, 2)
	assert.Equal(t, model.StatusConditionalApproval, gold.FactRegulatoryHistory[0].Status)
	assert.NotNil(t, gold.FactRegulatoryHistory[0].ValidTo)
	assert.False(t, gold.FactRegulatoryHistory[0].IsCurrent)
	assert.Equal(t, model.StatusApproved, gold.FactRegulatoryHistory[1].Status)
	assert.True(t, gold.FactRegulatoryHistory[1].IsCurrent)
	assert.NotEqual(t, gold.FactRegulatoryHistory[0].HistoryID, gold.FactRegulatoryHistory[1].HistoryID)

	// Bridge carries one row per feature of the current version.
	require.Len(t, gold.BridgeFeatures, 3)
	types := make(map[string]string)
	for _, f := range gold.BridgeFeatures {
		types[f.FeatureType] = f.FeatureValue
	}
	assert.Equal(t, "A01", types[FeatureATCCode])
	assert.Equal(t, "Sub A", types[FeatureSubstance])
	assert.Equal(t, "Cancer", types[FeatureTherapeuticArea])
}

func TestBuild_TherapeuticAreaSplit(t *testing.T) {
	rec := silverRec("P1", "M1", ts(time.January), nil, true)
	area := "Area 1; Area 2"
	rec.TherapeuticArea = &area

	gold := Build([]model.SilverRecord{rec})

	var areas []string
	for _, f := range gold.BridgeFeatures {
		if f.FeatureType == FeatureTherapeuticArea {
			areas = append(areas, f.FeatureValue)
		}
	}
	assert.ElementsMatch(t, []string{"Area 1", "Area 2"}, areas)
}

func TestBuild_FallbackWhenNoCurrent(t *testing.T) {
	feb := ts(time.February)
	mar := ts(time.March)
	oldRow := silverRec("P1", "M1_old", ts(time.January), &feb, false)
	newRow := silverRec("P1", "M1_new", feb, &mar, false)
	newRow.StatusNormalized = model.StatusWithdrawn

	gold := Build([]model.SilverRecord{oldRow, newRow})

	require.Len(t, gold.DimMedicine, 1)
	assert.Equal(t, "M1_new", gold.DimMedicine[0].MedicineName)
}

func TestBuild_EmptyFeatures(t *testing.T) {
	rec := silverRec("P1", "M1", ts(time.January), nil, true)
	rec.ActiveSubstanceList = []string{}
	rec.ATCCodeList = []string{}
	rec.TherapeuticArea = nil

	gold := Build([]model.SilverRecord{rec})

	require.Len(t, gold.DimMedicine, 1)
	assert.Empty(t, gold.BridgeFeatures)
}

func TestBuild_NilFlagsDefaultFalse(t *testing.T) {
	rec := silverRec("P1", "M1", ts(time.January), nil, true)
	rec.Orphan = nil
	rec.Biosimilar = nil
	rec.Generic = nil

	gold := Build([]model.SilverRecord{rec})

	require.Len(t, gold.DimMedicine, 1)
	assert.False(t, gold.DimMedicine[0].IsOrphan)
	assert.False(t, gold.DimMedicine[0].IsBiosimilar)
	assert.False(t, gold.DimMedicine[0].IsGeneric)
}

func TestBuild_Empty(t *testing.T) {
	gold := Build(nil)
	assert.Empty(t, gold.DimMedicine)
	assert.Empty(t, gold.FactRegulatoryHistory)
	assert.Empty(t, gold.BridgeFeatures)
}

func TestHistoryID_DistinguishesVersions(t *testing.T) {
	cid := CoreasonID("P1")
	h1 := historyID(cid, ts(time.January))
	h2 := historyID(cid, ts(time.February))
	h3 := historyID(cid, ts(time.January))

	assert.NotEqual(t, h1, h2)
	assert.Equal(t, h1, h3)
}
