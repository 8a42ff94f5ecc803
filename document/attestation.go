// ABOUTME: Signing attestation pages appended to contract PDFs
// ABOUTME: Renders the audit page with fpdf and merges it onto the document with pdfcpu
package document

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu would otherwise create a config directory under the user's home.
	api.DisableConfigDir()
}

// Attestation events.
const (
	EventContractSent   = "Contract sent for signature"
	EventContractSigned = "Contract signed"
)

// Attestation is the audit record printed on one appended page.
type Attestation struct {
	Event          string
	AgreementName  string
	TransactionID  string
	SignerName     string
	SignerEmail    string
	OrganizerName  string
	ContractSentAt *time.Time
	SignedAt       *time.Time
	// The counter-sign block is printed only when both are set.
	OrganizerSignedBy string
	OrganizerSignedAt *time.Time
}

type line struct {
	label string
	value string
}

// HasOrganizerBlock reports whether the organizer counter-sign block applies.
func (a Attestation) HasOrganizerBlock() bool {
	return a.OrganizerSignedBy != "" && a.OrganizerSignedAt != nil
}

func stamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}

func (a Attestation) lines() []line {
	signer := a.SignerName
	if a.SignerEmail != "" {
		if signer != "" {
			signer += " <" + a.SignerEmail + ">"
		} else {
			signer = a.SignerEmail
		}
	}

	lines := []line{
		{"Agreement", a.AgreementName},
		{"Transaction ID", a.TransactionID},
		{"Signer", signer},
		{"Organizer", a.OrganizerName},
		{"Contract sent", stamp(a.ContractSentAt)},
		{"Signed", stamp(a.SignedAt)},
	}
	return lines
}

func (a Attestation) organizerLines() []line {
	if !a.HasOrganizerBlock() {
		return nil
	}
	return []line{
		{"Counter-signed by", a.OrganizerSignedBy},
		{"Counter-signed at", stamp(a.OrganizerSignedAt)},
	}
}

// RenderAttestationPage renders a single A4 page describing the event.
func RenderAttestationPage(a Attestation) ([]byte, error) {
	pdf := newPDF()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetAutoPageBreak(false, margin)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 24, tr("Signing attestation"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	event := a.Event
	if event == "" {
		event = EventContractSent
	}
	pdf.CellFormat(0, 18, tr(event), "", 1, "L", false, 0, "")
	pdf.Ln(12)

	writeLines := func(lines []line) {
		for _, l := range lines {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.CellFormat(130, 16, tr(l.label), "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			pdf.CellFormat(0, 16, tr(l.value), "", 1, "L", false, 0, "")
		}
	}

	writeLines(a.lines())

	if extra := a.organizerLines(); extra != nil {
		pdf.Ln(10)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 18, tr("Organizer counter-signature"), "", 1, "L", false, 0, "")
		writeLines(extra)
	}

	pdf.SetY(PageHeight - margin - 16)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 10, tr("Generated "+stamp(ptr(time.Now()))), "", 0, "L", false, 0, "")

	return output(pdf)
}

// AppendAttestation returns base with one attestation page added at the end.
// The base bytes are never modified; on error the caller still holds them.
func AppendAttestation(base []byte, a Attestation) ([]byte, error) {
	page, err := RenderAttestationPage(a)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	rsc := []io.ReadSeeker{bytes.NewReader(base), bytes.NewReader(page)}
	if err := api.MergeRaw(rsc, &out, false, conf()); err != nil {
		return nil, fmt.Errorf("failed to append attestation page: %w", err)
	}
	return out.Bytes(), nil
}

// PageCount returns the number of pages in a PDF.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), conf())
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

func conf() *model.Configuration {
	c := model.NewDefaultConfiguration()
	c.ValidationMode = model.ValidationRelaxed
	return c
}

func ptr[T any](v T) *T { return &v }
