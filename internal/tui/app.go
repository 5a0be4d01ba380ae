package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/pomo/internal/clock"
	"github.com/sadopc/pomo/internal/export"
	"github.com/sadopc/pomo/internal/logging"
	"github.com/sadopc/pomo/internal/stats"
	"github.com/sadopc/pomo/internal/store"
	"github.com/sadopc/pomo/internal/timer"
)

const tickInterval = 250 * time.Millisecond

// App is the root Bubble Tea model.
type App struct {
	store  *store.Store
	engine *timer.Engine
	clock  clock.Clock
	width  int
	height int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	pomodoro  pomodoroModel
	tasks     tasksModel
	dashboard dashboardModel
	reports   reportsModel
	settings  settingsModel

	help      help.Model
	status    string
	statusErr bool
}

func NewApp(s *store.Store, e *timer.Engine, c clock.Clock) App {
	if c == nil {
		c = clock.Real()
	}
	h := help.New()
	h.ShowAll = false

	a := stats.NewAnalyzer(s, c)
	if st := e.Settings(); st != nil {
		applyTheme(st.Theme)
	}

	return App{
		store:      s,
		engine:     e,
		clock:      c,
		activeView: viewTimer,
		pomodoro:   newPomodoroModel(e),
		tasks:      newTasksModel(s, c),
		dashboard:  newDashboardModel(s, a, c),
		reports:    newReportsModel(a),
		settings:   newSettingsModel(s),
		help:       h,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		a.tasks.refresh(),
		a.dashboard.loadData(),
		a.settings.refresh(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.pomodoro.setSize(a.width, contentHeight)
		a.tasks.setSize(a.width, contentHeight)
		a.dashboard.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.FocusMsg:
		// Back from hidden or suspended: drop the backlog instead of catching up.
		a.engine.Resync(a.clock.Now())
		a.pomodoro.sync()
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Pause):
			// Space drives the timer from every view.
			var cmd tea.Cmd
			a.pomodoro, cmd = a.pomodoro.update(msg)
			return a, cmd
		case key.Matches(msg, keys.Tab1):
			return a.switchTo(viewTimer)
		case key.Matches(msg, keys.Tab2):
			return a.switchTo(viewTasks)
		case key.Matches(msg, keys.Tab3):
			return a.switchTo(viewDashboard)
		case key.Matches(msg, keys.Tab4):
			return a.switchTo(viewReports)
		case key.Matches(msg, keys.Tab5):
			return a.switchTo(viewSettings)
		case key.Matches(msg, keys.Tab):
			return a.switchTo((a.activeView + 1) % viewState(len(viewNames)))
		}

	case tickMsg:
		cmd := a.tick(time.Time(msg))
		return a, cmd

	case statusMsg:
		a.status = msg.text
		a.statusErr = msg.isError
		if msg.isError {
			logging.Logger.Warn("TUI error", "status", msg.text)
		}
		return a, nil

	case taskSelectedMsg:
		a.pomodoro, _ = a.pomodoro.update(msg)
		a.activeView = viewTimer
		a.status = "Focusing on " + msg.task.Title
		a.statusErr = false
		return a, nil

	case tasksDataMsg:
		a.pomodoro.refreshTask(msg.tasks)
		var cmd tea.Cmd
		a.tasks, cmd = a.tasks.update(msg)
		return a, cmd

	case tasksChangedMsg:
		return a, tea.Batch(a.dashboard.loadData(), a.reports.refresh())

	case settingsSavedMsg:
		applyTheme(msg.settings.Theme)
		if err := a.engine.ApplySettings(msg.settings); err != nil {
			return a, errCmd(err)
		}
		a.pomodoro.sync()
		return a, a.dashboard.loadData()

	case dashboardDataMsg:
		var cmd tea.Cmd
		a.dashboard, cmd = a.dashboard.update(msg)
		return a, cmd

	case reportsDataMsg:
		var cmd tea.Cmd
		a.reports, cmd = a.reports.update(msg)
		return a, cmd

	case settingsDataMsg:
		var cmd tea.Cmd
		a.settings, cmd = a.settings.update(msg)
		return a, cmd

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.statusErr = false
		a.exportPicking = false
		return a, nil
	}

	return a.updateActiveView(msg)
}

// tick advances the engine and reloads stats when a session has just been
// logged.
func (a *App) tick(now time.Time) tea.Cmd {
	cmds := []tea.Cmd{tickCmd()}
	before := a.pomodoro.state
	if err := a.engine.Tick(now); err != nil {
		cmds = append(cmds, errCmd(err))
	}
	a.pomodoro.sync()
	after := a.pomodoro.state

	if after.Completing && !before.Completing {
		a.status = sessionLabel(after.SessionType) + " complete"
		a.statusErr = false
		cmds = append(cmds, a.tasks.refresh(), a.dashboard.loadData(), a.reports.refresh())
	}
	return tea.Batch(cmds...)
}

func (a App) switchTo(v viewState) (tea.Model, tea.Cmd) {
	a.activeView = v
	return a, a.refreshCurrentView()
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewTimer:
		a.pomodoro, cmd = a.pomodoro.update(msg)
	case viewTasks:
		a.tasks, cmd = a.tasks.update(msg)
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewTasks:
		return a.tasks.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewTasks:
		return a.tasks.refresh()
	case viewDashboard:
		return a.dashboard.loadData()
	case viewReports:
		return a.reports.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewTimer:
		content = a.pomodoro.view()
	case viewTasks:
		content = a.tasks.view()
	case viewDashboard:
		content = a.dashboard.view()
	case viewReports:
		content = a.reports.view()
	case viewSettings:
		content = a.settings.view()
	}

	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	contentHeight := max(a.height-headerHeight-footerHeight, 1)

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		label := fmt.Sprintf("%d %s", i+1, name)
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("pomo")
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		style := mutedStyle
		if a.statusErr {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	// Timer indicator in footer
	timerInfo := ""
	st := a.pomodoro.state
	switch st.Status {
	case timer.Running:
		timerInfo = successStyle.Render(" ● " + formatClock(st.RemainingSeconds))
	case timer.Paused:
		timerInfo = warningStyle.Render(" ⏸ " + formatClock(st.RemainingSeconds))
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

var exportFormats = []string{"JSON", "CSV"}

func (a App) renderExportPicker() string {
	title := titleStyle.Render("Export Format")
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: export  esc: cancel"))

	w := a.width - 4
	return activePanelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back), key.Matches(msg, keys.Quit):
		a.exportPicking = false
	}
	return a, nil
}

// doExport writes the JSON backup or the sessions CSV to the home directory.
func (a App) doExport(format int) tea.Cmd {
	now := a.clock.Now()
	return func() tea.Msg {
		home, err := os.UserHomeDir()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		dateStr := clock.DateKey(now)

		var path string
		if format == 0 {
			path = filepath.Join(home, fmt.Sprintf("pomo-export-%s.json", dateStr))
			if err := export.ExportFile(context.Background(), a.store, path, now); err != nil {
				return statusMsg{text: fmt.Sprintf("JSON error: %v", err), isError: true}
			}
		} else {
			path = filepath.Join(home, fmt.Sprintf("pomo-sessions-%s.csv", dateStr))
			if err := a.exportCSV(path); err != nil {
				return statusMsg{text: fmt.Sprintf("CSV error: %v", err), isError: true}
			}
		}

		logging.Logger.Info("Exported data", "path", path)
		return exportDoneMsg{path: path}
	}
}

func (a App) exportCSV(path string) error {
	sessions, err := a.store.ListSessions(store.SessionFilter{})
	if err != nil {
		return err
	}
	tasks, err := a.store.ListTasks(store.TasksAll)
	if err != nil {
		return err
	}
	byID := make(map[int64]*store.Task, len(tasks))
	for i := range tasks {
		byID[tasks[i].ID] = &tasks[i]
	}
	return export.ToCSV(sessions, byID, path)
}
