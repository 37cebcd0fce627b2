// Package reporting renders engagement results as a PDF document.
package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/lcr-sec/dualstrike/internal/core/domain"
)

// Store provides the persisted engagement data the report is built from.
type Store interface {
	ListSessions() ([]domain.AttackSession, error)
	ListHandshakes() ([]domain.CapturedHandshake, error)
	ListCredentials() ([]domain.CapturedCredential, error)
}

// PDFReporter generates an engagement summary PDF from stored sessions,
// handshakes and credentials.
type PDFReporter struct {
	store Store
	title string
}

func NewPDFReporter(store Store) *PDFReporter {
	return &PDFReporter{store: store, title: "Wireless Engagement Report"}
}

// SetTitle overrides the default report title.
func (r *PDFReporter) SetTitle(title string) {
	r.title = title
}

// Write renders the report to w.
func (r *PDFReporter) Write(w io.Writer) error {
	sessions, err := r.store.ListSessions()
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}
	handshakes, err := r.store.ListHandshakes()
	if err != nil {
		return fmt.Errorf("loading handshakes: %w", err)
	}
	credentials, err := r.store.ListCredentials()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	r.addHeader(pdf)
	r.addOverview(pdf, sessions, handshakes, credentials)
	r.addSessions(pdf, sessions)
	r.addHandshakes(pdf, handshakes)
	r.addCredentials(pdf, credentials)
	r.addFooter(pdf)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to generate PDF: %w", err)
	}
	return nil
}

func (r *PDFReporter) addHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 15, r.title, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	dateStr := fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04"))
	pdf.CellFormat(0, 6, dateStr, "", 1, "L", false, 0, "")
	pdf.Ln(6)
}

func (r *PDFReporter) addOverview(pdf *gofpdf.Fpdf, sessions []domain.AttackSession,
	handshakes []domain.CapturedHandshake, credentials []domain.CapturedCredential) {

	succeeded := 0
	for _, s := range sessions {
		if s.Outcome == domain.OutcomeHandshakeCaptured || s.Outcome == domain.OutcomeCredentialCaptured {
			succeeded++
		}
	}

	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Engagement Overview", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	stats := []struct {
		label string
		value string
		color []int
	}{
		{"Attack Sessions", fmt.Sprintf("%d", len(sessions)), []int{0, 102, 204}},
		{"Successful", fmt.Sprintf("%d", succeeded), []int{52, 199, 89}},
		{"Handshakes Captured", fmt.Sprintf("%d", len(handshakes)), []int{0, 102, 204}},
		{"Credentials Captured", fmt.Sprintf("%d", len(credentials)), []int{220, 53, 69}},
	}

	colWidth := 85.0
	for i, stat := range stats {
		x := 20.0
		if i%2 == 1 {
			x = 105.0
		}
		pdf.SetXY(x, pdf.GetY())

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(50, 7, stat.label+":", "", 0, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(stat.color[0], stat.color[1], stat.color[2])
		pdf.CellFormat(colWidth-50, 7, stat.value, "", 0, "R", false, 0, "")

		if i%2 == 1 {
			pdf.Ln(7)
		}
	}
	pdf.Ln(10)
}

func (r *PDFReporter) addSessions(pdf *gofpdf.Fpdf, sessions []domain.AttackSession) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Attack Sessions", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(sessions) == 0 {
		r.addEmptyNote(pdf, "No attack sessions recorded")
		return
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(35, 8, "Target", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Kind", "1", 0, "C", true, 0, "")
	pdf.CellFormat(15, 8, "Ch", "1", 0, "C", true, 0, "")
	pdf.CellFormat(50, 8, "Interfaces", "1", 0, "L", true, 0, "")
	pdf.CellFormat(45, 8, "Outcome", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, s := range sessions {
		if pdf.GetY() > 260 {
			pdf.AddPage()
		}

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(35, 7, s.TargetBSSID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, string(s.Kind), "1", 0, "C", false, 0, "")
		pdf.CellFormat(15, 7, fmt.Sprintf("%d", s.Channel), "1", 0, "C", false, 0, "")

		ifaces := truncate(s.Assignment.Summary(), 34)
		pdf.CellFormat(50, 7, ifaces, "1", 0, "L", false, 0, "")

		cr, cg, cb := r.outcomeColor(s.Outcome)
		pdf.SetTextColor(cr, cg, cb)
		pdf.CellFormat(45, 7, string(s.Outcome), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(8)
}

func (r *PDFReporter) addHandshakes(pdf *gofpdf.Fpdf, handshakes []domain.CapturedHandshake) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Captured Handshakes", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(handshakes) == 0 {
		r.addEmptyNote(pdf, "No handshakes captured")
		return
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(35, 8, "BSSID", "1", 0, "L", true, 0, "")
	pdf.CellFormat(40, 8, "ESSID", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Backend", "1", 0, "C", true, 0, "")
	pdf.CellFormat(70, 8, "Capture File", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(60, 60, 60)
	for _, h := range handshakes {
		if pdf.GetY() > 260 {
			pdf.AddPage()
		}
		pdf.CellFormat(35, 7, h.BSSID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, truncate(h.ESSID, 26), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, string(h.Backend), "1", 0, "C", false, 0, "")
		pdf.CellFormat(70, 7, truncate(h.FilePath, 48), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(8)
}

func (r *PDFReporter) addCredentials(pdf *gofpdf.Fpdf, credentials []domain.CapturedCredential) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Captured Credentials", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(credentials) == 0 {
		r.addEmptyNote(pdf, "No credentials captured")
		return
	}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(40, 8, "ESSID", "1", 0, "L", true, 0, "")
	pdf.CellFormat(50, 8, "Passphrase", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "Client IP", "1", 0, "L", true, 0, "")
	pdf.CellFormat(45, 8, "Captured At", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, c := range credentials {
		if pdf.GetY() > 260 {
			pdf.AddPage()
		}
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(40, 7, truncate(c.ESSID, 26), "1", 0, "L", false, 0, "")

		pdf.SetTextColor(220, 53, 69)
		pdf.CellFormat(50, 7, truncate(c.Passphrase, 32), "1", 0, "L", false, 0, "")

		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(35, 7, c.ClientIP, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 7, c.CapturedAt.Format("2006-01-02 15:04"), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(8)
}

func (r *PDFReporter) outcomeColor(outcome domain.SessionOutcome) (cr, cg, cb int) {
	switch outcome {
	case domain.OutcomeHandshakeCaptured, domain.OutcomeCredentialCaptured:
		return 52, 199, 89
	case domain.OutcomeExhausted:
		return 255, 149, 0
	case domain.OutcomeFailed:
		return 220, 53, 69
	default:
		return 100, 100, 100
	}
}

func (r *PDFReporter) addEmptyNote(pdf *gofpdf.Fpdf, note string) {
	pdf.SetFont("Arial", "I", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 7, note, "", 1, "L", false, 0, "")
	pdf.Ln(5)
}

func (r *PDFReporter) addFooter(pdf *gofpdf.Fpdf) {
	pdf.SetY(-20)
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 5, "Generated by dualstrike", "", 1, "C", false, 0, "")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
