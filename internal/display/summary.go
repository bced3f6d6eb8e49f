package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/yegors/radar-pi/internal/adsb"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	boxStyle    = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

// Summary renders the console view used by the flights command: the record
// that would be displayed plus the search area.
func Summary(rec Record, wp adsb.Waypoint, fetched int) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Nearest aircraft"))
	b.WriteString("\n")

	rows := [][2]string{
		{"Flight", rec.FlightNumber},
		{"Model", rec.Model},
		{"Registration", rec.Registration},
		{"Ground speed", fmt.Sprintf("%.1f kt", rec.GroundSpeed)},
		{"Altitude", altitudeText(rec.Altitude)},
		{"Distance", fmt.Sprintf("%.1f nm", rec.DistanceNM)},
		{"In range", fmt.Sprintf("%d of %d", rec.TotalAircraft, fetched)},
		{"Updated", rec.LastUpdated.Format("2006-01-02 15:04:05")},
	}
	for _, row := range rows {
		b.WriteString(labelStyle.Render(row[0]))
		b.WriteString(valueStyle.Render(row[1]))
		b.WriteString("\n")
	}

	if rec.Error != "" {
		b.WriteString(errorStyle.Render(rec.Error))
		b.WriteString("\n")
	}
	b.WriteString(hintStyle.Render("Search area: " + wp.String()))

	return boxStyle.Render(b.String())
}

// AircraftList renders the in-range aircraft, nearest first, one line each.
// At most limit lines are shown; the footer always carries the full count.
func AircraftList(cands []adsb.Candidate, limit int) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Aircraft in range"))
	b.WriteString("\n")

	shown := min(len(cands), max(limit, 0))
	for i, c := range cands[:shown] {
		rec := Assemble(&c, len(cands), time.Time{})
		line := fmt.Sprintf("%2d  %-8s  %-6s  %-8s  %5.1f nm  %9s  %5.0f kt",
			i+1, rec.FlightNumber, rec.Model, rec.Registration,
			rec.DistanceNM, altitudeText(rec.Altitude), rec.GroundSpeed)
		b.WriteString(valueStyle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString(hintStyle.Render(fmt.Sprintf("Showing %d of %d aircraft in range", shown, len(cands))))

	return boxStyle.Render(b.String())
}

func altitudeText(alt string) string {
	if alt == UnknownText || alt == "ground" {
		return alt
	}
	return alt + " ft"
}
