package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/pomo/internal/store"
)

type settingsModel struct {
	store  *store.Store
	width  int
	height int

	settings   store.Settings
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	work       *string
	shortBreak *string
	longBreak  *string
	sessions   *string
	dailyGoal  *string
	autoBreaks *bool
	autoWork   *bool
	sound      *bool
	theme      *store.Theme
}

func newSettingsModel(s *store.Store) settingsModel {
	w, sb, lb, n, g := "", "", "", "", ""
	var ab, aw, snd bool
	th := store.ThemeLight
	return settingsModel{
		store:      s,
		settings:   store.DefaultSettings(),
		work:       &w,
		shortBreak: &sb,
		longBreak:  &lb,
		sessions:   &n,
		dailyGoal:  &g,
		autoBreaks: &ab,
		autoWork:   &aw,
		sound:      &snd,
		theme:      &th,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings *store.Settings
	err      error
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		st, err := s.store.GetSettings()
		return settingsDataMsg{settings: st, err: err}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		if msg.err != nil {
			return s, errCmd(msg.err)
		}
		s.settings = *msg.settings
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.Edit):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	st := s.settings
	*s.work = strconv.Itoa(st.WorkDuration)
	*s.shortBreak = strconv.Itoa(st.ShortBreakDuration)
	*s.longBreak = strconv.Itoa(st.LongBreakDuration)
	*s.sessions = strconv.Itoa(st.SessionsBeforeLongBreak)
	*s.dailyGoal = strconv.Itoa(st.DailyGoal)
	*s.autoBreaks = st.AutoStartBreaks
	*s.autoWork = st.AutoStartPomodoros
	*s.sound = st.SoundEnabled
	*s.theme = st.Theme

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title(rangeTitle("Focus (min)", store.MinWorkDuration, store.MaxWorkDuration)).
				Value(s.work).Validate(validateRange(store.MinWorkDuration, store.MaxWorkDuration)),
			huh.NewInput().Title(rangeTitle("Short break (min)", store.MinShortBreakDuration, store.MaxShortBreakDuration)).
				Value(s.shortBreak).Validate(validateRange(store.MinShortBreakDuration, store.MaxShortBreakDuration)),
			huh.NewInput().Title(rangeTitle("Long break (min)", store.MinLongBreakDuration, store.MaxLongBreakDuration)).
				Value(s.longBreak).Validate(validateRange(store.MinLongBreakDuration, store.MaxLongBreakDuration)),
			huh.NewInput().Title(rangeTitle("Pomodoros before long break", store.MinSessionsBeforeLong, store.MaxSessionsBeforeLong)).
				Value(s.sessions).Validate(validateRange(store.MinSessionsBeforeLong, store.MaxSessionsBeforeLong)),
		).Title("Timer"),
		huh.NewGroup(
			huh.NewConfirm().Title("Auto-start breaks").Value(s.autoBreaks),
			huh.NewConfirm().Title("Auto-start pomodoros").Value(s.autoWork),
			huh.NewConfirm().Title("Sound").Value(s.sound),
			huh.NewSelect[store.Theme]().Title("Theme").
				Options(
					huh.NewOption("Light", store.ThemeLight),
					huh.NewOption("Dark", store.ThemeDark),
				).Value(s.theme),
			huh.NewInput().Title(rangeTitle("Daily goal (pomodoros)", store.MinDailyGoal, store.MaxDailyGoal)).
				Value(s.dailyGoal).Validate(validateRange(store.MinDailyGoal, store.MaxDailyGoal)),
		).Title("General"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func rangeTitle(name string, lo, hi int) string {
	return fmt.Sprintf("%s [%d-%d]", name, lo, hi)
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		return s.save()
	}

	return s, cmd
}

// formSettings reads the form fields back into a Settings value.
func (s settingsModel) formSettings() store.Settings {
	atoi := func(v string) int {
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return store.Settings{
		WorkDuration:            atoi(*s.work),
		ShortBreakDuration:      atoi(*s.shortBreak),
		LongBreakDuration:       atoi(*s.longBreak),
		SessionsBeforeLongBreak: atoi(*s.sessions),
		AutoStartBreaks:         *s.autoBreaks,
		AutoStartPomodoros:      *s.autoWork,
		SoundEnabled:            *s.sound,
		Theme:                   *s.theme,
		DailyGoal:               atoi(*s.dailyGoal),
	}
}

func (s settingsModel) save() (settingsModel, tea.Cmd) {
	saved, err := s.store.UpdateSettings(s.formSettings())
	if err != nil {
		return s, errCmd(err)
	}
	s.settings = *saved
	st := *saved
	return s, tea.Batch(
		func() tea.Msg { return settingsSavedMsg{settings: st} },
		func() tea.Msg { return statusMsg{text: "Settings saved"} },
	)
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				titleStyle.Render("Edit Settings"),
				"",
				s.form.View(),
			),
		)
	}

	st := s.settings
	onOff := func(b bool) string {
		if b {
			return successStyle.Render("on")
		}
		return mutedStyle.Render("off")
	}

	rows := []struct{ label, value string }{
		{"Focus", fmt.Sprintf("%d min", st.WorkDuration)},
		{"Short break", fmt.Sprintf("%d min", st.ShortBreakDuration)},
		{"Long break", fmt.Sprintf("%d min", st.LongBreakDuration)},
		{"Long break every", fmt.Sprintf("%d pomodoros", st.SessionsBeforeLongBreak)},
		{"Auto-start breaks", onOff(st.AutoStartBreaks)},
		{"Auto-start pomodoros", onOff(st.AutoStartPomodoros)},
		{"Sound", onOff(st.SoundEnabled)},
		{"Theme", string(st.Theme)},
		{"Daily goal", fmt.Sprintf("%d pomodoros", st.DailyGoal)},
	}

	var lines []string
	lines = append(lines, titleStyle.Render("Settings"))
	lines = append(lines, "")
	for _, r := range rows {
		lines = append(lines, "  "+mutedStyle.Render(fmt.Sprintf("%-22s", r.label))+" "+highlightStyle.Render(r.value))
	}
	lines = append(lines, "")
	lines = append(lines, mutedStyle.Render("  enter: edit settings"))

	return panelStyle.Width(w).Render(strings.Join(lines, "\n"))
}
