package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"TrendSentinel/internal/portfolio"
	"TrendSentinel/internal/recorder"
	"TrendSentinel/internal/screener"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	upStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	downStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func number(p *float64, digits int) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', digits, 64)
}

func percent(p *float64) string {
	if p == nil {
		return "-"
	}
	s := fmt.Sprintf("%+.2f%%", *p)
	if *p < 0 {
		return downStyle.Render(s)
	}
	return upStyle.Render(s)
}

func renderScreen(name string, rows []screener.Augmented) string {
	t := newTable("Symbol", "Name", "Last", "Var", "Trend", "Speed", "To breakout", "Vol x")
	for _, a := range rows {
		last := "-"
		if a.Instrument.Live != nil {
			last = strconv.FormatFloat(a.Instrument.Live.Last, 'f', -1, 64)
		}
		t.Row(
			a.Instrument.Symbol,
			a.Instrument.Name,
			last,
			percent(a.Percent),
			percent(a.TrendPerformance),
			number(a.TrendSpeed, 2),
			percent(a.ReversePercent),
			number(a.VolEvol, 1),
		)
	}
	title := titleStyle.Render(fmt.Sprintf("%s (%d)", name, len(rows)))
	return title + "\n" + t.String()
}

func renderRuns(runs ...recorder.RunRecord) string {
	t := newTable("Started", "Universe", "Job", "Action", "Selected", "Processed", "Failed", "Triggered", "Duration", "Error")
	for _, r := range runs {
		t.Row(
			r.StartedAt.Local().Format("01-02 15:04:05"),
			r.Universe,
			r.Job,
			r.Action,
			strconv.Itoa(r.Selected),
			strconv.Itoa(r.Processed),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Triggered),
			r.Duration.Round(time.Millisecond).String(),
			truncate(r.Error, 40),
		)
	}
	return t.String()
}

func renderSummary(uid string, s portfolio.Summary, points int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Portfolio " + uid))
	b.WriteString("\n")
	t := newTable("Invested", "Cash", "Total", "Initial capital", "Performance", "History points")
	perf := s.Performance
	t.Row(
		strconv.FormatFloat(s.Invested, 'f', 2, 64),
		strconv.FormatFloat(s.Cash, 'f', 2, 64),
		strconv.FormatFloat(s.Total, 'f', 2, 64),
		strconv.FormatFloat(s.InitialCapital, 'f', 2, 64),
		percent(&perf),
		strconv.Itoa(points),
	)
	b.WriteString(t.String())
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
