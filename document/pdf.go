// ABOUTME: PDF rendering for sponsorship contracts
// ABOUTME: Lays out block-structured rich text on A4 pages using fpdf
package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/harperreed/sponsordesk/render"
)

// A4 in points.
const (
	PageWidth  = 595.28
	PageHeight = 841.89

	margin     = 56.0
	bodySize   = 11.0
	lineHeight = 15.0
)

// Contract is the input to RenderContract.
type Contract struct {
	Title  string
	Blocks []render.Block
	Footer string
}

func newPDF() *fpdf.Fpdf {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: PageWidth, Ht: PageHeight},
	})
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	return pdf
}

// RenderContract lays the contract body out as a PDF.
func RenderContract(c Contract) ([]byte, error) {
	pdf := newPDF()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if c.Footer != "" {
		footer := tr(c.Footer)
		pdf.SetFooterFunc(func() {
			pdf.SetY(-margin + 16)
			pdf.SetFont("Helvetica", "I", 8)
			pdf.CellFormat(0, 10, fmt.Sprintf("%s  |  %d", footer, pdf.PageNo()), "", 0, "C", false, 0, "")
		})
	}

	pdf.AddPage()

	if c.Title != "" {
		pdf.SetFont("Helvetica", "B", 20)
		pdf.MultiCell(0, 26, tr(c.Title), "", "L", false)
		pdf.Ln(8)
	}

	for _, b := range c.Blocks {
		writeBlock(pdf, tr, b)
	}

	return output(pdf)
}

func writeBlock(pdf *fpdf.Fpdf, tr func(string) string, b render.Block) {
	switch b.Style {
	case render.StyleH1:
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "B", 16)
		pdf.MultiCell(0, 20, tr(b.Text()), "", "L", false)
		pdf.Ln(4)
		return
	case render.StyleH2:
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.MultiCell(0, 17, tr(b.Text()), "", "L", false)
		pdf.Ln(2)
		return
	case render.StyleH3:
		pdf.SetFont("Helvetica", "B", bodySize)
		pdf.MultiCell(0, lineHeight, tr(b.Text()), "", "L", false)
		return
	}

	if b.ListItem != "" {
		pdf.SetFont("Helvetica", "", bodySize)
		pdf.Write(lineHeight, tr("• "))
	}
	for _, span := range b.Children {
		pdf.SetFont("Helvetica", fontStyle(span.Marks), bodySize)
		pdf.Write(lineHeight, tr(span.Text))
	}
	pdf.Ln(lineHeight)
	pdf.Ln(4)
}

func fontStyle(marks []string) string {
	var style strings.Builder
	for _, m := range marks {
		switch m {
		case "strong", "bold":
			style.WriteString("B")
		case "em", "italic":
			style.WriteString("I")
		case "underline":
			style.WriteString("U")
		}
	}
	return style.String()
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
