package ui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/Mshel/randomwalker/internal/arena"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const maxMovesShown = 16

var historyHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var historyCellStyle = lipgloss.NewStyle().Padding(0, 1)

// RenderHistory lays stored matches out as a table, one row per match.
func RenderHistory(results []arena.Result) string {
	if len(results) == 0 {
		return lipgloss.NewStyle().Faint(true).Render("No matches recorded yet.")
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return historyHeaderStyle
			}
			return historyCellStyle
		}).
		Headers("Finished", "Agent", "Map", "Ticks", "Explored", "Invalid", "Moves")

	for _, r := range results {
		t.Row(
			r.FinishedAt.Local().Format(time.DateTime),
			r.Agent,
			fmt.Sprintf("%dx%d", r.Width, r.Height),
			strconv.Itoa(r.Ticks),
			fmt.Sprintf("%.1f %%", r.Coverage()),
			strconv.Itoa(r.Invalid),
			abbreviate(r.Moves, maxMovesShown),
		)
	}
	return t.String()
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// RenderSummary shows the aggregate of a series of rounds.
func RenderSummary(s arena.Summary) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return historyHeaderStyle
			}
			return historyCellStyle
		}).
		Rows(
			[]string{"Rounds", strconv.Itoa(s.Rounds)},
			[]string{"Mean coverage", fmt.Sprintf("%5.1f %%", s.MeanCoverage)},
			[]string{"Median coverage", fmt.Sprintf("%5.1f %%", s.MedianCoverage)},
			[]string{"Coverage spread", fmt.Sprintf("%5.1f %%", s.CoverageSpread)},
			[]string{"Invalid replies", fmt.Sprintf("%5.1f / round", s.MeanInvalid)},
		).
		String()
}
