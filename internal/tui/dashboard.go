package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/pomo/internal/clock"
	"github.com/sadopc/pomo/internal/stats"
	"github.com/sadopc/pomo/internal/store"
)

const recentSessions = 6

type dashboardModel struct {
	store    *store.Store
	analyzer *stats.Analyzer
	clock    clock.Clock
	width    int
	height   int

	today    store.DailyStat
	goal     int
	streaks  stats.Streaks
	week     stats.Summary
	recent   []store.Session
	taskName map[int64]string

	bar progress.Model
}

func newDashboardModel(s *store.Store, a *stats.Analyzer, c clock.Clock) dashboardModel {
	return dashboardModel{
		store:    s,
		analyzer: a,
		clock:    c,
		goal:     store.DefaultSettings().DailyGoal,
		bar:      progress.New(progress.WithSolidFill(string(colorSuccess))),
	}
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
	d.bar.Width = max(10, w-24)
}

type dashboardDataMsg struct {
	today    store.DailyStat
	goal     int
	streaks  stats.Streaks
	week     stats.Summary
	recent   []store.Session
	taskName map[int64]string
	err      error
}

func (d dashboardModel) loadData() tea.Cmd {
	return func() tea.Msg {
		var msg dashboardDataMsg
		var err error
		if msg.today, err = d.analyzer.Today(); err != nil {
			return dashboardDataMsg{err: err}
		}
		if msg.streaks, err = d.analyzer.Streaks(); err != nil {
			return dashboardDataMsg{err: err}
		}
		if msg.week, err = d.analyzer.WeekSummary(); err != nil {
			return dashboardDataMsg{err: err}
		}
		st, err := d.store.GetSettings()
		if err != nil {
			return dashboardDataMsg{err: err}
		}
		msg.goal = st.DailyGoal

		from := clock.StartOfDay(d.clock.Now())
		msg.recent, err = d.store.ListSessions(store.SessionFilter{From: &from, Limit: recentSessions})
		if err != nil {
			return dashboardDataMsg{err: err}
		}
		msg.taskName = make(map[int64]string)
		for _, s := range msg.recent {
			if s.TaskID == nil {
				continue
			}
			if _, ok := msg.taskName[*s.TaskID]; ok {
				continue
			}
			if t, err := d.store.GetTask(*s.TaskID); err == nil {
				msg.taskName[*s.TaskID] = t.Title
			}
		}
		return msg
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		if msg.err != nil {
			return d, errCmd(msg.err)
		}
		d.today = msg.today
		d.goal = msg.goal
		d.streaks = msg.streaks
		d.week = msg.week
		d.recent = msg.recent
		d.taskName = msg.taskName
		return d, nil
	}
	return d, nil
}

// goalFraction is today's progress toward the daily goal, capped at 1.
func (d dashboardModel) goalFraction() float64 {
	if d.goal <= 0 {
		return 0
	}
	return min(1, float64(d.today.CompletedPomodoros)/float64(d.goal))
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}
	w := d.width - 4
	return lipgloss.JoinVertical(lipgloss.Left,
		d.renderGoalPanel(w),
		d.renderRecentPanel(w),
	)
}

func (d dashboardModel) renderGoalPanel(w int) string {
	title := titleStyle.Render("Today")
	count := highlightStyle.Render(fmt.Sprintf("%d / %d pomodoros", d.today.CompletedPomodoros, d.goal))
	header := fmt.Sprintf("%s  %s", title, count)
	if d.today.CompletedPomodoros >= d.goal && d.goal > 0 {
		header += "  " + successStyle.Bold(true).Render("goal reached")
	}

	streak := fmt.Sprintf("%d day", d.streaks.Current)
	if d.streaks.Current != 1 {
		streak += "s"
	}

	lines := []string{
		header,
		"",
		d.bar.ViewAs(d.goalFraction()),
		"",
		fmt.Sprintf("  %-18s %s", "Focused", formatMinutes(d.today.MinutesFocused)),
		fmt.Sprintf("  %-18s %d", "Sessions", d.today.CompletedSessions),
		fmt.Sprintf("  %-18s %d", "Tasks done", d.today.TasksCompleted),
		fmt.Sprintf("  %-18s %s (best %d)", "Streak", streak, d.streaks.Longest),
		fmt.Sprintf("  %-18s %d pomodoros, %s", "This week", d.week.TotalPomodoros, formatMinutes(d.week.TotalMinutes)),
	}
	return panelStyle.Width(w).Render(strings.Join(lines, "\n"))
}

func (d dashboardModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Sessions Today")
	if len(d.recent) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No sessions yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	for _, s := range d.recent {
		status := successStyle.Render("✓")
		if s.Interrupted {
			status = warningStyle.Render("✗")
		}
		name := ""
		if s.TaskID != nil {
			name = d.taskName[*s.TaskID]
			if name == "" {
				name = mutedStyle.Render("(deleted task)")
			}
		}
		row := fmt.Sprintf("  %s %s  %-12s %-8s %s",
			status,
			s.StartTime.Local().Format("15:04"),
			sessionLabel(s.Type),
			formatMinutes(s.DurationMinutes),
			name,
		)
		rows = append(rows, row)
	}

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
