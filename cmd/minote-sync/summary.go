package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sleroq/minote-sync/internal/app/syncer"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

func renderSummary(stats syncer.Stats, vault string, elapsed time.Duration, interrupted bool) string {
	heading := "Sync finished"
	switch {
	case interrupted:
		heading = "Sync interrupted"
	case stats.Listed == 0:
		heading = "Nothing synced"
	}

	var b strings.Builder
	b.WriteString(headingStyle.Render(heading))
	b.WriteString(faintStyle.Render(fmt.Sprintf(" in %s", elapsed.Round(time.Millisecond))))
	b.WriteString("\n")

	row := func(label string, n int, style lipgloss.Style) {
		value := fmt.Sprintf("%d", n)
		if n > 0 {
			value = style.Render(value)
		}
		fmt.Fprintf(&b, "  %-12s %s\n", label, value)
	}
	row("listed", stats.Listed, lipgloss.NewStyle())
	row("synced", stats.Synced, okStyle)
	row("skipped", stats.Skipped, faintStyle)
	row("attachments", stats.Assets, okStyle)
	row("failed", stats.Failed, errStyle)
	row("cancelled", stats.Cancelled, warnStyle)
	fmt.Fprintf(&b, "  %-12s %s", "vault", vault)
	return b.String()
}
