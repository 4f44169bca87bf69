package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/cuidar/medstock/internal/storage"
)

type palette struct {
	title  lipgloss.Style
	low    lipgloss.Style
	excess lipgloss.Style
	normal lipgloss.Style
	unread lipgloss.Style
	muted  lipgloss.Style
}

// newPalette styles for out. lipgloss drops colors on its own when out is not
// a terminal; --no-color forces plain text everywhere.
func newPalette(out io.Writer, noColor bool) palette {
	if noColor {
		plain := lipgloss.NewStyle()
		return palette{title: plain, low: plain, excess: plain, normal: plain, unread: plain, muted: plain}
	}
	r := lipgloss.NewRenderer(out)
	return palette{
		title:  r.NewStyle().Bold(true),
		low:    r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		excess: r.NewStyle().Foreground(lipgloss.Color("11")),
		normal: r.NewStyle().Foreground(lipgloss.Color("10")),
		unread: r.NewStyle().Bold(true),
		muted:  r.NewStyle().Faint(true),
	}
}

func (p palette) status(status string) string {
	switch status {
	case storage.StockStatusLow:
		return p.low.Render(status)
	case storage.StockStatusExcess:
		return p.excess.Render(status)
	default:
		return p.normal.Render(status)
	}
}

func paletteFor(deps commandDeps) palette {
	return newPalette(deps.out, deps.globals.NoColor)
}

// relativeDate renders a calendar date with a rough distance from now, e.g.
// "2026-04-08 (3 weeks from now)".
func relativeDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", storage.FormatDate(*t), humanize.Time(*t))
}

func writeStockLine(w io.Writer, p palette, r storage.StockRecord) error {
	_, err := fmt.Fprintf(
		w,
		"%d %s qty=%s min=%d max=%d status=%s expiry=%s lot=%s\n",
		r.MedicationID,
		p.title.Render(r.MedicationName),
		humanize.Comma(int64(r.Quantity)),
		r.Minimum,
		r.Maximum,
		p.status(r.Status),
		relativeDate(r.ExpiryDate),
		valueOrDash(r.Lot),
	)
	return err
}

func writeScheduleLine(w io.Writer, p palette, s storage.Schedule) error {
	days := "-"
	if len(s.Weekdays) > 0 {
		days = strings.Join(s.Weekdays.Strings(), ",")
	}
	state := boolToState(s.Active, "active", p.muted.Render("inactive"))
	_, err := fmt.Fprintf(w, "%d %s %s days=%s %s\n", s.ID, s.Time, s.MedicationName, days, state)
	return err
}

func writeAlertLine(w io.Writer, p palette, a storage.Alert) error {
	marker := p.muted.Render("read")
	if !a.Read {
		marker = p.unread.Render("new")
	}
	_, err := fmt.Fprintf(w, "%d [%s] %s %s (%s)\n", a.ID, marker, a.Kind, a.Message, humanize.Time(a.Date))
	return err
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
