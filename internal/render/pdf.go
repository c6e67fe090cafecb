// Package render produces printable PDF documents for invoices.
package render

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/calculator"
	"github.com/vishwas4859/Ai-Invoice-Generator/internal/models"
)

// PDFRenderer draws invoices with gofpdf. Asset URLs that point at the local
// uploads directory are embedded; any other URL is ignored.
type PDFRenderer struct {
	uploadDir string
	uploadURL string
}

// NewPDFRenderer returns a renderer resolving "<publicBaseURL>/uploads/<name>"
// to files in uploadDir.
func NewPDFRenderer(uploadDir, publicBaseURL string) *PDFRenderer {
	return &PDFRenderer{
		uploadDir: uploadDir,
		uploadURL: strings.TrimRight(publicBaseURL, "/") + "/uploads/",
	}
}

const (
	pageMargin = 15.0
	lineHeight = 6.0
)

// Invoice writes inv as an A4 PDF to w.
func (r *PDFRenderer) Invoice(w io.Writer, inv *models.Invoice) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 2*pageMargin

	// Header
	if path, format := r.localAsset(inv.LogoURL); path != "" {
		pdf.ImageOptions(path, pageMargin, pageMargin, 0, 20, false, imageOptions(format), 0, "")
		pdf.SetY(pageMargin + 22)
	}
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(contentW, 10, "INVOICE", "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(contentW, lineHeight, tr(inv.InvoiceNumber), "", 1, "R", false, 0, "")
	pdf.CellFormat(contentW, lineHeight, "Status: "+strings.ToUpper(string(inv.Status)), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	// Parties
	half := contentW / 2
	top := pdf.GetY()
	block(pdf, tr, pageMargin, top, half, "From", []string{
		inv.FromBusinessName, inv.FromAddress, inv.FromEmail, inv.FromPhone, labelled("GST", inv.FromGST),
	})
	leftBottom := pdf.GetY()
	block(pdf, tr, pageMargin+half, top, half, "Bill To", []string{
		inv.Client.Name, inv.Client.Address, inv.Client.Email, inv.Client.Phone,
	})
	pdf.SetY(max(leftBottom, pdf.GetY()) + 2)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(half, lineHeight, "Issue date: "+inv.IssueDate, "", 0, "L", false, 0, "")
	pdf.CellFormat(half, lineHeight, labelled("Due date", inv.DueDate), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Items
	cols := []struct {
		title string
		width float64
		align string
	}{
		{"Description", contentW * 0.5, "L"},
		{"Qty", contentW * 0.12, "R"},
		{"Unit price", contentW * 0.19, "R"},
		{"Amount", contentW * 0.19, "R"},
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(235, 235, 235)
	for _, c := range cols {
		pdf.CellFormat(c.width, 8, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	money := func(v float64) string { return calculator.FormatAmount(v, inv.Currency) }
	for _, it := range inv.Items {
		row := []string{
			tr(it.Description),
			trimFloat(it.Quantity),
			money(it.UnitPrice),
			money(it.Amount()),
		}
		for i, c := range cols {
			pdf.CellFormat(c.width, 7, row[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(2)

	// Totals
	labelW := cols[0].width + cols[1].width + cols[2].width
	currency := strings.ToUpper(inv.Currency)
	for _, line := range []struct {
		label string
		value float64
		bold  bool
	}{
		{"Subtotal", inv.Subtotal, false},
		{fmt.Sprintf("Tax (%s%%)", trimFloat(inv.TaxPercent)), inv.Tax, false},
		{"Total", inv.Total, true},
	} {
		style := ""
		if line.bold {
			style = "B"
		}
		pdf.SetFont("Arial", style, 10)
		pdf.CellFormat(labelW, lineHeight, line.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(cols[3].width, lineHeight, currency+" "+money(line.value), "", 1, "R", false, 0, "")
	}

	if inv.Notes != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(contentW, lineHeight, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(contentW, 5, tr(inv.Notes), "", "L", false)
	}

	// Stamp and signature
	pdf.Ln(8)
	y := pdf.GetY()
	if path, format := r.localAsset(inv.StampURL); path != "" {
		pdf.ImageOptions(path, pageMargin, y, 0, 25, false, imageOptions(format), 0, "")
	}
	sigX := pageMargin + half
	if path, format := r.localAsset(inv.SignatureURL); path != "" {
		pdf.ImageOptions(path, sigX, y, 0, 18, false, imageOptions(format), 0, "")
	}
	if inv.SignatureName != "" || inv.SignatureTitle != "" {
		pdf.SetXY(sigX, y+20)
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(half, 5, tr(inv.SignatureName), "T", 2, "L", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(half, 5, tr(inv.SignatureTitle), "", 1, "L", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return nil
}

// block draws a titled list of non-empty lines in a column.
func block(pdf *gofpdf.Fpdf, tr func(string) string, x, y, w float64, title string, lines []string) {
	pdf.SetXY(x, y)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(w, lineHeight, title, "", 2, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	for _, l := range lines {
		if l == "" {
			continue
		}
		pdf.CellFormat(w, 5, tr(l), "", 2, "L", false, 0, "")
	}
}

// localAsset maps an upload URL to a decodable image file and its format.
// It returns empty strings when the URL is not a local upload or the file is
// not a PNG, JPEG or GIF image.
func (r *PDFRenderer) localAsset(url string) (path, format string) {
	if r.uploadDir == "" || !strings.HasPrefix(url, r.uploadURL) {
		return "", ""
	}
	name := filepath.Base(strings.TrimPrefix(url, r.uploadURL))
	path = filepath.Join(r.uploadDir, name)

	f, err := os.Open(path)
	if err != nil {
		return "", ""
	}
	defer f.Close()
	_, format, err = image.DecodeConfig(f)
	if err != nil {
		return "", ""
	}
	return path, format
}

func imageOptions(format string) gofpdf.ImageOptions {
	return gofpdf.ImageOptions{ImageType: format, ReadDpi: true}
}

func labelled(label, v string) string {
	if v == "" {
		return ""
	}
	return label + ": " + v
}

func trimFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}
