package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/pomo/internal/store"
)

// viewState represents the currently active view.
type viewState int

const (
	viewTimer viewState = iota
	viewTasks
	viewDashboard
	viewReports
	viewSettings
)

var viewNames = []string{"Timer", "Tasks", "Today", "Reports", "Settings"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

// taskSelectedMsg binds a task to the next work session.
type taskSelectedMsg struct {
	task store.Task
}

// tasksChangedMsg is sent after a task edit that can move daily stats.
type tasksChangedMsg struct{}

type settingsSavedMsg struct {
	settings store.Settings
}

func errCmd(err error) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
	}
}

// --- Helpers ---

// formatClock renders a countdown as MM:SS.
func formatClock(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func formatMinutes(mins int) string {
	if mins < 60 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dh %02dm", mins/60, mins%60)
}

func sessionLabel(t store.SessionType) string {
	switch t {
	case store.SessionBreak:
		return "SHORT BREAK"
	case store.SessionLongBreak:
		return "LONG BREAK"
	default:
		return "FOCUS"
	}
}
