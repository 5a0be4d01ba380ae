package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/pomo/internal/store"
	"github.com/sadopc/pomo/internal/timer"
)

// pomodoroModel renders the engine state and forwards timer keys to it.
type pomodoroModel struct {
	engine *timer.Engine
	width  int
	height int

	state    timer.State
	settings store.Settings
	task     *store.Task // bound to the next Start

	bar progress.Model
}

func newPomodoroModel(e *timer.Engine) pomodoroModel {
	p := pomodoroModel{
		engine:   e,
		settings: store.DefaultSettings(),
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
	p.sync()
	return p
}

// sync copies the engine state for rendering.
func (p *pomodoroModel) sync() {
	p.state = p.engine.State()
	if st := p.engine.Settings(); st != nil {
		p.settings = *st
	}
}

func (p *pomodoroModel) setSize(w, h int) {
	p.width = w
	p.height = h
	p.bar.Width = max(10, w-16)
}

func (p pomodoroModel) update(msg tea.Msg) (pomodoroModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		p.sync()
		return p, nil

	case taskSelectedMsg:
		t := msg.task
		p.task = &t
		return p, nil

	case tea.KeyMsg:
		var err error
		switch {
		case key.Matches(msg, keys.Start):
			err = p.engine.Start(p.taskID())
		case key.Matches(msg, keys.Pause):
			if p.state.Status == timer.Running {
				err = p.engine.Pause()
			} else {
				err = p.engine.Start(p.taskID())
			}
		case key.Matches(msg, keys.Reset):
			err = p.engine.Reset()
		case key.Matches(msg, keys.Skip):
			err = p.engine.Skip()
		default:
			return p, nil
		}
		p.sync()
		if err != nil {
			return p, errCmd(err)
		}
	}
	return p, nil
}

// refreshTask picks up new counts for the bound task from a task reload.
func (p *pomodoroModel) refreshTask(tasks []store.Task) {
	if p.task == nil {
		return
	}
	for _, t := range tasks {
		if t.ID == p.task.ID {
			t := t
			p.task = &t
			return
		}
	}
}

func (p pomodoroModel) taskID() *int64 {
	if p.task == nil || p.task.IsCompleted {
		return nil
	}
	id := p.task.ID
	return &id
}

// fraction is how much of the current session has elapsed.
func (p pomodoroModel) fraction() float64 {
	total := int(p.settings.Duration(p.state.SessionType).Seconds())
	if total <= 0 {
		return 0
	}
	f := 1 - float64(p.state.RemainingSeconds)/float64(total)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func (p pomodoroModel) view() string {
	w := p.width - 4
	st := p.state

	style := timerStyle
	switch {
	case st.Status == timer.Paused:
		style = timerPausedStyle
	case st.Status == timer.Running && st.SessionType.IsBreak():
		style = timerBreakStyle
	case st.Status == timer.Running:
		style = timerRunningStyle
	}
	timeDisplay := style.Width(max(w-6, 5)).Render(formatClock(st.RemainingSeconds))

	label := sessionLabel(st.SessionType)
	var phaseLabel string
	switch {
	case st.Completing:
		phaseLabel = successStyle.Bold(true).Render(label + " COMPLETE")
	case st.Status == timer.Paused:
		phaseLabel = warningStyle.Bold(true).Render(label + " · PAUSED")
	case st.Status == timer.Idle:
		phaseLabel = mutedStyle.Render(label + " · ready")
	case st.SessionType.IsBreak():
		phaseLabel = successStyle.Bold(true).Render(label)
	default:
		phaseLabel = accentStyle.Bold(true).Render(label)
	}

	taskLine := mutedStyle.Render("No task selected (2: pick one)")
	if p.task != nil {
		taskLine = highlightStyle.Render(p.task.Title) +
			mutedStyle.Render(fmt.Sprintf("  %d/%d", p.task.CompletedPomodoros, p.task.EstimatedPomodoros))
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render("Pomodoro"),
		"",
		timeDisplay,
		phaseLabel,
		"",
		p.bar.ViewAs(p.fraction()),
		"",
		p.renderProgress(),
		taskLine,
	)

	var controls string
	switch {
	case st.Completing:
		controls = mutedStyle.Render("x: reset")
	case st.Status == timer.Running:
		controls = mutedStyle.Render("space: pause  n: skip  x: reset")
	case st.Status == timer.Paused:
		controls = mutedStyle.Render("space: resume  n: skip  x: reset")
	default:
		controls = mutedStyle.Render("s/space: start  n: skip")
	}

	panel := panelStyle
	if st.Status == timer.Running {
		panel = activePanelStyle
	}
	return panel.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Center, content, "", controls),
	)
}

// renderProgress shows completed work sessions in the current long-break cycle.
func (p pomodoroModel) renderProgress() string {
	every := p.settings.SessionsBeforeLongBreak
	if every <= 0 {
		every = 4
	}
	done := p.state.SessionCount % every
	if done == 0 && p.state.SessionCount > 0 &&
		(p.state.SessionType == store.SessionLongBreak || p.state.Completing) {
		done = every
	}

	var parts []string
	for i := 0; i < every; i++ {
		switch {
		case i < done:
			parts = append(parts, successStyle.Render("●"))
		case i == done && p.state.SessionType == store.SessionWork && p.state.Status != timer.Idle:
			parts = append(parts, accentStyle.Render("◐"))
		default:
			parts = append(parts, mutedStyle.Render("○"))
		}
	}
	counter := mutedStyle.Render(fmt.Sprintf("  %d done", p.state.SessionCount))
	return strings.Join(parts, " ") + counter
}
