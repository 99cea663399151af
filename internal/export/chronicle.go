// Package export renders the chronicle for reading outside the game.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/user/silent-god/internal/types"
)

// Chronicle writes the full chronicle of a world as a PDF
func Chronicle(w io.Writer, snap types.Snapshot) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("The Chronicle of the Silent God", true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Times", "B", 20)
	pdf.CellFormat(0, 12, "The Chronicle of the Silent God", "", 1, "C", false, 0, "")
	pdf.SetFont("Times", "I", 11)
	pdf.CellFormat(0, 8, tr(summaryLine(snap.Stats)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Factions", "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, f := range snap.Factions {
		line := fmt.Sprintf("%s  (power %d, faith %d)", f.Name, f.Power, f.Attitude)
		if len(f.Tenets) > 0 {
			line += "  " + strings.Join(f.Tenets, ", ")
		}
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Chronicle", "B", 1, "L", false, 0, "")
	for _, entry := range snap.Logs {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(0, 6, fmt.Sprintf("Year %d  %s", entry.Year, entry.Type), "", 1, "L", false, 0, "")

		pdf.SetFont("Times", fontStyle(entry.Type), 11)
		pdf.MultiCell(0, 5, tr(entry.Content), "", "L", false)
		if entry.Flavor != "" {
			pdf.SetFont("Times", "I", 9)
			pdf.MultiCell(0, 5, tr("- "+entry.Flavor), "", "R", false)
		}
		pdf.Ln(2)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render chronicle: %w", err)
	}
	return nil
}

func summaryLine(s types.WorldStats) string {
	return fmt.Sprintf("Year %d  |  Population %d  |  %s  |  %s  |  %s",
		s.Year, s.Population, s.TechnologicalLevel, s.CulturalVibe, s.DominantReligion)
}

func fontStyle(t types.LogType) string {
	switch t {
	case types.LogScripture, types.LogPetition:
		return "I"
	case types.LogRevelation:
		return "B"
	default:
		return ""
	}
}
