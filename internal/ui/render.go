// Package ui renders retrieval results for the terminal and drives the
// interactive login form and poll spinner.
package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/otpmail/internal/model"
	"github.com/nhle/otpmail/internal/theme"
)

// RenderMatch renders one found code as a bordered panel.
func RenderMatch(m model.Match, now time.Time) string {
	lines := []string{
		theme.CodeStyle.Render(m.Code),
		"",
		m.Subject,
		theme.HelpStyle.Render(fmt.Sprintf("%s · %s · %s", m.From, m.Mailbox, sentLabel(m.SentAt, now))),
	}
	return theme.PanelStyle.Render(strings.Join(lines, "\n"))
}

// RenderMatches renders listing results as a table, newest first as given.
func RenderMatches(matches []model.Match, now time.Time) string {
	if len(matches) == 0 {
		return theme.HelpStyle.Render("No verification codes found.")
	}

	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		rows = append(rows, []string{m.Code, sentLabel(m.SentAt, now), m.Mailbox, m.From, m.Subject})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("CODE", "SENT", "FOLDER", "FROM", "SUBJECT").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return theme.HeaderStyle
			case col == 0:
				return theme.CodeStyle.PaddingRight(1).PaddingLeft(1)
			default:
				return theme.CellStyle.PaddingLeft(1)
			}
		})

	return t.Render()
}

// RenderHistory renders audit records as a table.
func RenderHistory(records []model.Retrieval, now time.Time) string {
	if len(records) == 0 {
		return theme.HelpStyle.Render("No retrievals recorded yet.")
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			relativeTime(r.StartedAt, now),
			string(r.Mode),
			r.Email,
			r.Outcome,
			strconv.Itoa(r.MatchCount),
			strconv.Itoa(r.Rounds),
			(time.Duration(r.DurationMS) * time.Millisecond).Round(100 * time.Millisecond).String(),
			r.Error,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(theme.ColorBorder)).
		Headers("WHEN", "MODE", "EMAIL", "OUTCOME", "CODES", "ROUNDS", "TOOK", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return theme.HeaderStyle
			case col == 3:
				return theme.OutcomeStyle(records[row].Outcome).PaddingLeft(1).PaddingRight(1)
			default:
				return theme.CellStyle.PaddingLeft(1)
			}
		})

	return t.Render()
}

func sentLabel(t *time.Time, now time.Time) string {
	if t == nil {
		return "date unknown"
	}
	return relativeTime(*t, now)
}

// relativeTime formats t relative to now, e.g. "3m ago".
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Local().Format("2006-01-02")
	}
}
