package receipt

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/warp/fee-ledger/ledger"
)

// Renderer turns receipt data into an opaque document.
type Renderer interface {
	Render(d ledger.ReceiptData) ([]byte, error)
	ContentType() string
}

// PDFRenderer renders an A4 receipt: the institute name as title and a
// bordered two-column table of Fields.
type PDFRenderer struct {
	Institute string
}

// NewPDFRenderer creates a renderer titled with the institute name.
func NewPDFRenderer(institute string) *PDFRenderer {
	return &PDFRenderer{Institute: institute}
}

func (r *PDFRenderer) ContentType() string { return "application/pdf" }

// Render builds the PDF. Core fonts are cp1252, which has no rupee sign,
// so amounts are printed with "Rs.".
func (r *PDFRenderer) Render(d ledger.ReceiptData) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(d.ReceiptNo, true)
	pdf.SetCreationDate(d.PaymentDate.Time)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	text := func(s string) string { return tr(strings.ReplaceAll(s, "₹", "Rs. ")) }

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, text(strings.ToUpper(r.Institute)), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, "Fee Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	for _, f := range Fields(d) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(60, 9, text(f.Label), "1", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(120, 9, text(f.Value), "1", 1, "L", false, 0, "")
	}

	pdf.Ln(12)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 6, "This is a computer generated receipt.", "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt %s: %w", d.ReceiptNo, err)
	}
	return buf.Bytes(), nil
}

// FileName is the download name of a rendered receipt.
func FileName(receiptNo string) string {
	return receiptNo + ".pdf"
}
