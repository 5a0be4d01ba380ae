package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/pomo/internal/clock"
	"github.com/sadopc/pomo/internal/stats"
)

// reportRanges are the chart windows in days, cycled with m or ←/→.
var reportRanges = []int{7, 14, 30}

const heatmapWeeks = 12

type reportsModel struct {
	analyzer *stats.Analyzer
	width    int
	height   int

	rangeIdx int
	series   []stats.Point
	summary  stats.Summary
	average  float64
	bestDay  time.Weekday
	hasBest  bool
	heat     []stats.HeatCell

	chart barchart.Model
}

func newReportsModel(a *stats.Analyzer) reportsModel {
	return reportsModel{
		analyzer: a,
		chart:    barchart.New(60, 10),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
	r.buildChart()
}

func (r reportsModel) days() int { return reportRanges[r.rangeIdx] }

type reportsDataMsg struct {
	days    int
	series  []stats.Point
	summary stats.Summary
	average float64
	bestDay time.Weekday
	hasBest bool
	heat    []stats.HeatCell
	err     error
}

func (r reportsModel) refresh() tea.Cmd {
	days := r.days()
	return func() tea.Msg {
		msg := reportsDataMsg{days: days}
		var err error
		if msg.series, err = r.analyzer.ChartSeries(days); err != nil {
			return reportsDataMsg{err: err}
		}
		if msg.summary, err = r.analyzer.Summary(days); err != nil {
			return reportsDataMsg{err: err}
		}
		if msg.average, err = r.analyzer.AveragePomodoros(days); err != nil {
			return reportsDataMsg{err: err}
		}
		if msg.bestDay, msg.hasBest, err = r.analyzer.MostProductiveDay(); err != nil {
			return reportsDataMsg{err: err}
		}
		if msg.heat, err = r.analyzer.Heatmap(heatmapWeeks * 7); err != nil {
			return reportsDataMsg{err: err}
		}
		return msg
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		if msg.err != nil {
			return r, errCmd(msg.err)
		}
		// Drop results for a range that is no longer selected.
		if msg.days != r.days() {
			return r, nil
		}
		r.series = msg.series
		r.summary = msg.summary
		r.average = msg.average
		r.bestDay = msg.bestDay
		r.hasBest = msg.hasBest
		r.heat = msg.heat
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Mode), key.Matches(msg, keys.Right):
			r.rangeIdx = (r.rangeIdx + 1) % len(reportRanges)
			return r, r.refresh()
		case key.Matches(msg, keys.Left):
			r.rangeIdx = (r.rangeIdx + len(reportRanges) - 1) % len(reportRanges)
			return r, r.refresh()
		}
	}
	return r, nil
}

func (r *reportsModel) buildChart() {
	chartWidth := max(r.width-8, 20)
	chartHeight := 10
	if r.height > 36 {
		chartHeight = 14
	}

	axisStyle := lipgloss.NewStyle().Foreground(colorMuted)
	labelStyle := lipgloss.NewStyle().Foreground(colorMuted)
	r.chart = barchart.New(chartWidth, chartHeight, barchart.WithStyles(axisStyle, labelStyle))

	if len(r.series) == 0 {
		r.chart.Draw()
		return
	}

	// Wide ranges only get a label every few bars.
	every := max(1, len(r.series)/10)
	bars := make([]barchart.BarData, 0, len(r.series))
	barStyle := lipgloss.NewStyle().Foreground(colorAccent)
	for i, p := range r.series {
		label := ""
		if i%every == 0 {
			label = chartLabel(p.Date, len(r.series))
		}
		bars = append(bars, barchart.BarData{
			Label: label,
			Values: []barchart.BarValue{{
				Name:  "pomodoros",
				Value: float64(p.Pomodoros),
				Style: barStyle,
			}},
		})
	}
	r.chart.PushAll(bars)
	r.chart.Draw()
}

func chartLabel(date string, n int) string {
	t, err := clock.ParseDateKey(date, time.Local)
	if err != nil {
		return date
	}
	if n <= 7 {
		return t.Format("Mon")
	}
	return t.Format("02")
}

func (r reportsModel) view() string {
	w := r.width - 4

	var tabs []string
	for i, d := range reportRanges {
		label := fmt.Sprintf("%dd", d)
		if i == r.rangeIdx {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ", lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...),
	)

	nav := mutedStyle.Render("  m or ←/→: change range")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "",
			r.chart.View(), "",
			r.renderSummary(), "",
			titleStyle.Render("Activity"),
			r.renderHeatmap(), "",
			nav,
		),
	)
}

func (r reportsModel) renderSummary() string {
	s := r.summary
	best := "-"
	if r.hasBest {
		best = r.bestDay.String()
	}
	rows := []string{
		fmt.Sprintf("  %-18s %d", "Pomodoros", s.TotalPomodoros),
		fmt.Sprintf("  %-18s %s", "Focused", formatMinutes(s.TotalMinutes)),
		fmt.Sprintf("  %-18s %d", "Tasks done", s.TotalTasks),
		fmt.Sprintf("  %-18s %.1f / day", "Average", r.average),
		fmt.Sprintf("  %-18s %.0f%%", "Active days", s.CompletionRate*100),
		fmt.Sprintf("  %-18s %s", "Best weekday", best),
		fmt.Sprintf("  %-18s %d (best %d)", "Streak", s.CurrentStreak, s.LongestStreak),
	}
	return strings.Join(rows, "\n")
}

// heatLevel buckets a day's pomodoro count into one of the heat colors.
func heatLevel(count int) int {
	switch {
	case count <= 0:
		return 0
	case count <= 2:
		return 1
	case count <= 4:
		return 2
	case count <= 7:
		return 3
	default:
		return 4
	}
}

// renderHeatmap lays the cells out as weekday rows by week columns.
func (r reportsModel) renderHeatmap() string {
	if len(r.heat) == 0 {
		return mutedStyle.Render("  No activity yet")
	}

	// Pad the front so the first column starts on a Monday.
	first, err := clock.ParseDateKey(r.heat[0].Date, time.Local)
	lead := 0
	if err == nil {
		lead = (int(first.Weekday()) + 6) % 7
	}

	var grid [7][]string
	for i := 0; i < lead; i++ {
		grid[i] = append(grid[i], " ")
	}
	for i, c := range r.heat {
		row := (lead + i) % 7
		cell := lipgloss.NewStyle().Foreground(heatColors[heatLevel(c.Count)]).Render("■")
		grid[row] = append(grid[row], cell)
	}

	names := []string{"Mon", "", "Wed", "", "Fri", "", "Sun"}
	lines := make([]string, 0, 7)
	for i, cells := range grid {
		lines = append(lines, fmt.Sprintf("  %-3s %s", names[i], strings.Join(cells, " ")))
	}
	return strings.Join(lines, "\n")
}
