package services

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// GenerateBOQPDF renders a BOQ view as an A4 table with a reference QR code.
// Unit cells come from the view, so they follow DisplayUnit precedence.
func GenerateBOQPDF(view BOQView, w io.Writer) error {
	titleCaser := cases.Title(language.Und)

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	qrPNG, err := qrcode.Encode(fmt.Sprintf("boq:%s:%s", view.CompanyID, view.ID), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("generate boq qr code: %w", err)
	}
	pdf.RegisterImageOptionsReader("boq-qr", gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qrPNG))
	pdf.ImageOptions("boq-qr", 170, 10, 30, 30, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(150, 10, "BILL OF QUANTITIES")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(150, 6, tr(fmt.Sprintf("BOQ No: %s", view.Number)))
	pdf.Ln(6)
	if view.ClientName != "" {
		pdf.Cell(150, 6, tr(fmt.Sprintf("Client: %s", view.ClientName)))
		pdf.Ln(6)
	}
	if view.Currency != "" {
		pdf.Cell(150, 6, tr(fmt.Sprintf("Currency: %s", view.Currency)))
		pdf.Ln(6)
	}
	pdf.SetY(45)

	for _, section := range view.Sections {
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(190, 8, tr(titleCaser.String(section.Title)))
		pdf.Ln(9)

		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(80, 8, "Item", "1", 0, "L", true, 0, "")
		pdf.CellFormat(20, 8, "Qty", "1", 0, "C", true, 0, "")
		pdf.CellFormat(25, 8, "Unit", "1", 0, "C", true, 0, "")
		pdf.CellFormat(30, 8, "Rate", "1", 0, "C", true, 0, "")
		pdf.CellFormat(35, 8, "Total", "1", 1, "C", true, 0, "")

		pdf.SetFont("Arial", "", 10)
		for _, item := range section.Items {
			pdf.CellFormat(80, 8, tr(item.Description), "1", 0, "L", false, 0, "")
			pdf.CellFormat(20, 8, fmt.Sprintf("%.2f", item.Quantity), "1", 0, "C", false, 0, "")
			pdf.CellFormat(25, 8, tr(item.Unit), "1", 0, "C", false, 0, "")
			pdf.CellFormat(30, 8, fmt.Sprintf("%.2f", item.Rate), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 8, fmt.Sprintf("%.2f", item.LineTotal), "1", 1, "R", false, 0, "")
		}

		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(155, 8, "Section Subtotal")
		pdf.CellFormat(35, 8, fmt.Sprintf("%.2f", section.Subtotal), "1", 1, "R", false, 0, "")
		pdf.Ln(4)
	}

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(155, 8, "Total Amount")
	pdf.CellFormat(35, 8, fmt.Sprintf("%.2f", view.Total), "1", 1, "R", false, 0, "")

	pdf.SetY(-20)
	pdf.SetFont("Arial", "I", 8)
	pdf.Cell(190, 6, "Generated on: "+time.Now().Format("2006-01-02 15:04:05"))

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write boq pdf: %w", err)
	}
	return nil
}
