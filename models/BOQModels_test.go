package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeDoc(t *testing.T, raw string) BOQDocument {
	t.Helper()
	var doc BOQDocument
	require.NoError(t, doc.Scan([]byte(raw)))
	return doc
}

func asMap(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestBOQDocument_PreservesUnknownKeys(t *testing.T) {
	doc := decodeDoc(t, `{
		"version": 3,
		"notes": {"a": 1},
		"sections": [{"title": "Earthworks", "order": 2, "items": [
			{"description": "Excavation", "quantity": 10, "rate": 1500, "unit": "m3", "remarks": "by machine"}
		]}]
	}`)

	out := asMap(t, doc)
	assert.EqualValues(t, 3, out["version"])
	assert.Equal(t, map[string]interface{}{"a": float64(1)}, out["notes"])

	section := out["sections"].([]interface{})[0].(map[string]interface{})
	assert.EqualValues(t, 2, section["order"])
	item := section["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "by machine", item["remarks"])
	assert.Equal(t, "m3", item["unit"])
	assert.NotContains(t, item, "unit_id")
}

func TestBOQItem_ReadsLineFields(t *testing.T) {
	doc := decodeDoc(t, `{"sections": [{"title": "A", "items": [
		{"description": "Concrete", "quantity": "2.5", "rate": 400, "unit_name": "Cubic Meters", "unit_id": 17}
	]}]}`)

	item := doc.Sections[0].Items[0]
	assert.Equal(t, "Concrete", item.Description)
	assert.Equal(t, 2.5, item.Quantity)
	assert.Equal(t, 400.0, item.Rate)
	assert.Equal(t, 1000.0, item.LineTotal())
	assert.Equal(t, "Cubic Meters", item.LegacyToken())
	require.NotNil(t, item.UnitID)
	assert.Equal(t, "17", *item.UnitID)
}

func TestBOQItem_WritesOnlyChangedUnitKeys(t *testing.T) {
	doc := decodeDoc(t, `{"sections": [{"items": [
		{"description": "X", "quantity": 1, "rate": 1, "unit": "kg", "unit_id": 42, "unit_abbreviation": null}
	]}]}`)
	item := doc.Sections[0].Items[0]

	out := asMap(t, doc)
	got := out["sections"].([]interface{})[0].(map[string]interface{})["items"].([]interface{})[0].(map[string]interface{})
	assert.EqualValues(t, 42, got["unit_id"], "unchanged unit_id keeps its numeric encoding")
	assert.Contains(t, got, "unit_abbreviation")
	assert.Nil(t, got["unit_abbreviation"])

	item.Unit = nil
	item.UnitAbbreviation = StringPtr("kg")
	out = asMap(t, doc)
	got = out["sections"].([]interface{})[0].(map[string]interface{})["items"].([]interface{})[0].(map[string]interface{})
	assert.NotContains(t, got, "unit")
	assert.Equal(t, "kg", got["unit_abbreviation"])
}

func TestBOQDocument_ShapeAnomalies(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantSections bool
		wantItems    int
	}{
		{"null data", `null`, false, 0},
		{"scalar data", `"legacy"`, false, 0},
		{"no sections", `{"title": "draft"}`, false, 0},
		{"sections not a list", `{"sections": {"a": 1}}`, false, 0},
		{"items not a list", `{"sections": [{"title": "A", "items": "none"}]}`, true, 0},
		{"section not an object", `{"sections": ["oops", {"items": [{"unit": "kg"}]}]}`, true, 1},
		{"item not an object", `{"sections": [{"items": ["text", 3, {"unit": "kg"}]}]}`, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := decodeDoc(t, tt.raw)
			assert.Equal(t, tt.wantSections, doc.HasSections())

			count := 0
			require.NoError(t, doc.EachItem(func(_ *BOQSection, _ int, _ *BOQItem) error {
				count++
				return nil
			}))
			assert.Equal(t, tt.wantItems, count)

			b, err := json.Marshal(doc)
			require.NoError(t, err)
			assert.JSONEq(t, tt.raw, string(b))
		})
	}
}

func TestBOQDocument_ScanNil(t *testing.T) {
	var doc BOQDocument
	require.NoError(t, doc.Scan(nil))
	assert.False(t, doc.HasSections())

	v, err := doc.Value()
	require.NoError(t, err)
	assert.Equal(t, "null", v)
}

func TestBOQDocument_ScanRejectsUnknownType(t *testing.T) {
	var doc BOQDocument
	assert.Error(t, doc.Scan(42))
}

func TestEachItem_IndexIsPositionInSection(t *testing.T) {
	doc := decodeDoc(t, `{"sections": [
		{"items": [{"description": "a"}, "skip", {"description": "b"}]},
		{"items": [{"description": "c"}]}
	]}`)

	var seen []string
	var indexes []int
	require.NoError(t, doc.EachItem(func(_ *BOQSection, i int, item *BOQItem) error {
		seen = append(seen, item.Description)
		indexes = append(indexes, i)
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.Equal(t, []int{0, 2, 0}, indexes)
}

func TestBOQItem_EmptyStringsAreNotReferences(t *testing.T) {
	doc := decodeDoc(t, `{"sections": [{"items": [{"unit": "", "unit_name": "", "unit_id": "", "unit_abbreviation": ""}]}]}`)
	item := doc.Sections[0].Items[0]

	assert.False(t, item.HasUnitID())
	assert.False(t, item.HasUnitAbbreviation())
	assert.Equal(t, "", item.LegacyToken())
	assert.True(t, item.HasLegacyFields())
}

func TestUnit_DisplayAbbreviation(t *testing.T) {
	assert.Equal(t, "m³", Unit{Name: "Cubic Meters", Abbreviation: StringPtr("m³")}.DisplayAbbreviation())
	assert.Equal(t, "Cubic Meters", Unit{Name: "Cubic Meters", Abbreviation: StringPtr("")}.DisplayAbbreviation())
	assert.Equal(t, "Lot", Unit{Name: "Lot"}.DisplayAbbreviation())
}
