package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"boqunits/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExportColumns is the header of the BOQ item export.
var ExportColumns = []string{
	"boq_id", "boq_number", "company_id", "section_title", "item_index", "item_description",
	"unit_id", "unit_name", "unit_abbreviation", "rate", "quantity", "line_total",
}

// ExportRow is one BOQ item flattened for the export.
type ExportRow struct {
	BOQID            string
	BOQNumber        string
	CompanyID        string
	SectionTitle     string
	ItemIndex        int
	ItemDescription  string
	UnitID           string
	UnitName         string
	UnitAbbreviation string
	Rate             float64
	Quantity         float64
	LineTotal        float64
}

// ExportSummary describes the files written by an export run.
type ExportSummary struct {
	CSVPath  string `json:"csv_path"`
	XLSXPath string `json:"xlsx_path"`
	BOQs     int    `json:"boqs"`
	Rows     int    `json:"rows"`
}

// BOQExportService writes every BOQ item as one CSV row, plus an XLSX copy.
type BOQExportService struct {
	source BOQSource
	logger *zap.Logger
}

func NewBOQExportService(source BOQSource, logger *zap.Logger) *BOQExportService {
	return &BOQExportService{source: source, logger: logger}
}

// CollectRows flattens all BOQs into export rows in store order.
func (s *BOQExportService) CollectRows(ctx context.Context, companyIDs []string) ([]ExportRow, int, error) {
	rows := []ExportRow{}
	boqs := 0
	err := s.source.ForEachBOQ(ctx, companyIDs, func(boq models.BOQ) error {
		boqs++
		return boq.Data.EachItem(func(section *models.BOQSection, index int, item *models.BOQItem) error {
			rows = append(rows, ExportRow{
				BOQID:            boq.ID,
				BOQNumber:        boq.Number,
				CompanyID:        boq.CompanyID,
				SectionTitle:     section.Title,
				ItemIndex:        index,
				ItemDescription:  item.Description,
				UnitID:           models.StringValue(item.UnitID),
				UnitName:         models.StringValue(item.UnitName),
				UnitAbbreviation: models.StringValue(item.UnitAbbreviation),
				Rate:             item.Rate,
				Quantity:         item.Quantity,
				LineTotal:        item.LineTotal(),
			})
			return nil
		})
	})
	if err != nil {
		return nil, 0, fmt.Errorf("collect export rows: %w", err)
	}
	return rows, boqs, nil
}

// Export writes csvPath and a sibling .xlsx workbook.
func (s *BOQExportService) Export(ctx context.Context, csvPath string, companyIDs []string) (*ExportSummary, error) {
	rows, boqs, err := s.CollectRows(ctx, companyIDs)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(csvPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create export directory: %w", err)
		}
	}

	f, err := os.Create(csvPath)
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	if err := WriteExportCSV(f, rows); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close export file: %w", err)
	}

	xlsxPath := strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".xlsx"
	workbook, err := GenerateExportWorkbook(rows)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(xlsxPath, workbook, 0o644); err != nil {
		return nil, fmt.Errorf("write export workbook: %w", err)
	}

	summary := &ExportSummary{CSVPath: csvPath, XLSXPath: xlsxPath, BOQs: boqs, Rows: len(rows)}
	s.logger.Info("boq unit export written",
		zap.String("csv_path", csvPath),
		zap.String("xlsx_path", xlsxPath),
		zap.Int("boqs", boqs),
		zap.Int("rows", len(rows)),
	)
	return summary, nil
}

// WriteExportCSV writes the header and rows. Text fields are always quoted,
// with quotes doubled and line breaks replaced by spaces; numbers are bare.
func WriteExportCSV(w io.Writer, rows []ExportRow) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(ExportColumns, ",") + "\n"); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, r := range rows {
		fields := []string{
			quoteCSV(r.BOQID),
			quoteCSV(r.BOQNumber),
			quoteCSV(r.CompanyID),
			quoteCSV(r.SectionTitle),
			strconv.Itoa(r.ItemIndex),
			quoteCSV(r.ItemDescription),
			quoteCSV(r.UnitID),
			quoteCSV(r.UnitName),
			quoteCSV(r.UnitAbbreviation),
			formatNumber(r.Rate),
			formatNumber(r.Quantity),
			formatNumber(r.LineTotal),
		}
		if _, err := bw.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
			return fmt.Errorf("write export row: %w", err)
		}
	}
	return bw.Flush()
}

var csvLineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func quoteCSV(s string) string {
	s = csvLineBreaks.Replace(s)
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// GenerateExportWorkbook renders rows into a single-sheet workbook.
func GenerateExportWorkbook(rows []ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "BOQ Items"
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	header := make([]interface{}, len(ExportColumns))
	for i, col := range ExportColumns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header row: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(ExportColumns), 1)
	if err := f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("style header row: %w", err)
	}

	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{
			r.BOQID, r.BOQNumber, r.CompanyID, r.SectionTitle, r.ItemIndex, r.ItemDescription,
			r.UnitID, r.UnitName, r.UnitAbbreviation, r.Rate, r.Quantity, r.LineTotal,
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(sheetName, "A", "C", 38); err != nil {
		return nil, fmt.Errorf("set col width: %w", err)
	}
	if err := f.SetColWidth(sheetName, "D", "F", 30); err != nil {
		return nil, fmt.Errorf("set col width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
