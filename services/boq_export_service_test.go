package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func exportFixture() *memStore {
	store := newMemStore()
	store.addBOQ("c-1", "b-1", "BOQ-001", `{"sections": [
		{"title": "Civil \"Phase 1\"", "items": [
			{"description": "Concrete, grade 40\nincl. pumping", "quantity": 2.5, "rate": 310.75, "unit_id": "u-m3", "unit_name": "Cubic Meters", "unit_abbreviation": "m³"},
			"not an item",
			{"description": "Say \"hi\"\r\nthere", "quantity": 1, "rate": 0.1, "unit": "ls"}
		]},
		{"items": [{"description": "Untitled", "quantity": 3, "rate": 4}]}
	]}`)
	store.addBOQ("c-2", "b-2", "BOQ-001", `{"sections": "broken"}`)
	return store
}

func TestWriteExportCSV_RoundTrip(t *testing.T) {
	store := exportFixture()
	svc := NewBOQExportService(store, zap.NewNop())

	rows, boqs, err := svc.CollectRows(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, boqs)
	require.Len(t, rows, 3)

	var buf bytes.Buffer
	require.NoError(t, WriteExportCSV(&buf, rows))

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4, "header plus one line per item; no embedded newlines survive")
	assert.Equal(t, ExportColumns, records[0])

	for i, row := range rows {
		rec := records[i+1]
		assert.Equal(t, row.BOQID, rec[0])
		assert.Equal(t, row.UnitID, rec[6])
		assert.Equal(t, row.UnitName, rec[7])
		assert.Equal(t, row.UnitAbbreviation, rec[8])

		rate, err := strconv.ParseFloat(rec[9], 64)
		require.NoError(t, err)
		assert.Equal(t, row.Rate, rate)
		qty, err := strconv.ParseFloat(rec[10], 64)
		require.NoError(t, err)
		assert.Equal(t, row.Quantity, qty)
	}

	first := records[1]
	assert.Equal(t, []string{
		"b-1", "BOQ-001", "c-1", `Civil "Phase 1"`, "0", "Concrete, grade 40 incl. pumping",
		"u-m3", "Cubic Meters", "m³", "310.75", "2.5", "776.875",
	}, first)

	second := records[2]
	assert.Equal(t, "2", second[4], "index is the position inside the section")
	assert.Equal(t, `Say "hi" there`, second[5])
	assert.Equal(t, "", second[6])

	third := records[3]
	assert.Equal(t, "", third[3])
	assert.Equal(t, "0", third[4])
	assert.Equal(t, "12", third[11])
}

func TestWriteExportCSV_QuotesEveryTextField(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteExportCSV(&buf, []ExportRow{{
		BOQID: "b", BOQNumber: "N-1", CompanyID: "c", ItemIndex: 4, ItemDescription: `a "b"`,
		Rate: 1e-7, Quantity: 1000000, LineTotal: 0.1,
	}}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"b","N-1","c","",4,"a ""b""","","","",0.0000001,1000000,0.1`, lines[1])
}

func TestExport_WritesCSVAndWorkbook(t *testing.T) {
	store := exportFixture()
	csvPath := filepath.Join(t.TempDir(), "nested", "boq_unit_items.csv")

	summary, err := NewBOQExportService(store, zap.NewNop()).Export(context.Background(), csvPath, []string{"c-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.BOQs)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, strings.TrimSuffix(csvPath, ".csv")+".xlsx", summary.XLSXPath)

	raw, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), strings.Join(ExportColumns, ",")+"\n"))

	f, err := excelize.OpenFile(summary.XLSXPath)
	require.NoError(t, err)
	defer f.Close()
	sheetRows, err := f.GetRows("BOQ Items")
	require.NoError(t, err)
	require.Len(t, sheetRows, 4)
	assert.Equal(t, ExportColumns, sheetRows[0])
	assert.Equal(t, "m³", sheetRows[1][8])
}
