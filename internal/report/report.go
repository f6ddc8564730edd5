// Package report renders client progress reports as PDF documents.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"regulie/therapy-app/internal/domain"

	"github.com/go-pdf/fpdf"
)

const dateLayout = "2006-01-02"

// ProgressReport is everything printed in a client progress report.
type ProgressReport struct {
	AppName       string
	TherapistName string
	Client        domain.Client
	Sessions      []domain.Session // sorted by date, oldest first
	From          time.Time
	To            time.Time
	GeneratedAt   time.Time
}

// Render writes r to w as an A4 PDF.
func Render(w io.Writer, r ProgressReport) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Progress report: %s", r.Client.FullName()), true)
	pdf.SetCreator(r.AppName, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	writeHeader(pdf, tr, r)
	writeGoals(pdf, tr, r.Client.Goals)
	writeSessions(pdf, tr, r.Sessions)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return pdf.Output(w)
}

func writeHeader(pdf *fpdf.Fpdf, tr func(string) string, r ProgressReport) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr("Progress report: "+r.Client.FullName()), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	lines := []string{
		fmt.Sprintf("Therapist: %s", r.TherapistName),
		fmt.Sprintf("Period: %s to %s", r.From.Format(dateLayout), r.To.Format(dateLayout)),
		fmt.Sprintf("Generated: %s", r.GeneratedAt.UTC().Format("2006-01-02 15:04 MST")),
	}
	if r.Client.DateOfBirth != nil {
		lines = append(lines, "Date of birth: "+r.Client.DateOfBirth.Format(dateLayout))
	}
	if r.Client.Diagnosis != "" {
		lines = append(lines, "Diagnosis: "+r.Client.Diagnosis)
	}
	for _, l := range lines {
		pdf.CellFormat(0, 6, tr(l), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func writeGoals(pdf *fpdf.Fpdf, tr func(string) string, goals []domain.Goal) {
	sectionTitle(pdf, "Goals")
	if len(goals) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 6, "No goals recorded.", "", 1, "L", false, 0, "")
		pdf.Ln(4)
		return
	}

	widths := []float64{90, 35, 30, 25}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, h := range []string{"Goal", "Category", "Status", "Progress"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, g := range goals {
		pdf.CellFormat(widths[0], 6, tr(truncate(g.Description, 55)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, tr(truncate(g.Category, 20)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, strings.ReplaceAll(string(g.Status), "_", " "), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, fmt.Sprintf("%d%%", g.Progress), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func writeSessions(pdf *fpdf.Fpdf, tr func(string) string, sessions []domain.Session) {
	sectionTitle(pdf, fmt.Sprintf("Sessions (%d)", len(sessions)))
	if len(sessions) == 0 {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.CellFormat(0, 6, "No sessions in this period.", "", 1, "L", false, 0, "")
		return
	}

	for _, s := range sessions {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s  (%d min)", s.Date.Format(dateLayout), s.DurationMinutes), "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 9)
		for _, a := range s.Activities {
			line := "- " + a.Name
			if rate := a.SuccessRate(); rate >= 0 {
				line += fmt.Sprintf(": %d/%d trials (%d%%)", a.Successes, a.Trials, rate)
			}
			if a.PromptLevel != "" {
				line += ", prompt: " + a.PromptLevel
			}
			pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
		}
		if s.Observations != "" {
			pdf.MultiCell(0, 5, tr("Observations: "+s.Observations), "", "L", false)
		}
		pdf.Ln(2)
	}
}

func sectionTitle(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, title, "B", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
