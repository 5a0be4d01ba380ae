package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/pomo/internal/clock"
	"github.com/sadopc/pomo/internal/store"
)

var taskFilterNames = map[store.TaskFilter]string{
	store.TasksActive:    "Active",
	store.TasksCompleted: "Completed",
	store.TasksAll:       "All",
}

type tasksModel struct {
	store  *store.Store
	clock  clock.Clock
	width  int
	height int

	tasks  []store.Task
	cursor int
	filter store.TaskFilter
	search string

	formActive bool
	form       *huh.Form
	formType   string // "task", "edit_task", "search"

	// Form field pointers (survive value copies)
	formTitle    *string
	formDesc     *string
	formEstimate *string
	formTags     *string

	editingID int64
}

func newTasksModel(s *store.Store, c clock.Clock) tasksModel {
	title, desc, est, tags := "", "", "1", ""
	return tasksModel{
		store:        s,
		clock:        c,
		filter:       store.TasksActive,
		formTitle:    &title,
		formDesc:     &desc,
		formEstimate: &est,
		formTags:     &tags,
	}
}

func (t *tasksModel) setSize(w, h int) {
	t.width = w
	t.height = h
}

type tasksDataMsg struct {
	tasks []store.Task
	err   error
}

func (t tasksModel) refresh() tea.Cmd {
	filter, search := t.filter, t.search
	return func() tea.Msg {
		var (
			tasks []store.Task
			err   error
		)
		if search != "" {
			tasks, err = t.store.SearchTasks(search)
		} else {
			tasks, err = t.store.ListTasks(filter)
		}
		return tasksDataMsg{tasks: tasks, err: err}
	}
}

func (t tasksModel) selected() (store.Task, bool) {
	if t.cursor < 0 || t.cursor >= len(t.tasks) {
		return store.Task{}, false
	}
	return t.tasks[t.cursor], true
}

func (t tasksModel) update(msg tea.Msg) (tasksModel, tea.Cmd) {
	if t.formActive && t.form != nil {
		return t.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tasksDataMsg:
		if msg.err != nil {
			return t, errCmd(msg.err)
		}
		t.tasks = msg.tasks
		if t.cursor >= len(t.tasks) {
			t.cursor = max(0, len(t.tasks)-1)
		}
		return t, nil

	case tea.KeyMsg:
		return t.updateList(msg)
	}
	return t, nil
}

func (t tasksModel) updateList(msg tea.KeyMsg) (tasksModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if t.cursor > 0 {
			t.cursor--
		}
	case key.Matches(msg, keys.Down):
		if t.cursor < len(t.tasks)-1 {
			t.cursor++
		}
	case key.Matches(msg, keys.Enter):
		if task, ok := t.selected(); ok {
			if task.IsCompleted {
				return t, func() tea.Msg {
					return statusMsg{text: "Task is completed. Press c to reopen it.", isError: true}
				}
			}
			return t, func() tea.Msg { return taskSelectedMsg{task: task} }
		}
	case key.Matches(msg, keys.New):
		return t.showTaskForm(nil)
	case key.Matches(msg, keys.Edit):
		if task, ok := t.selected(); ok {
			return t.showTaskForm(&task)
		}
	case key.Matches(msg, keys.Complete):
		if task, ok := t.selected(); ok {
			return t, t.toggleComplete(task)
		}
	case key.Matches(msg, keys.Delete):
		if task, ok := t.selected(); ok {
			if err := t.store.DeleteTask(task.ID); err != nil {
				return t, errCmd(err)
			}
			return t, t.refresh()
		}
	case key.Matches(msg, keys.Filter):
		switch t.filter {
		case store.TasksActive:
			t.filter = store.TasksCompleted
		case store.TasksCompleted:
			t.filter = store.TasksAll
		default:
			t.filter = store.TasksActive
		}
		t.search = ""
		t.cursor = 0
		return t, t.refresh()
	case key.Matches(msg, keys.Search):
		return t.showSearchForm()
	case key.Matches(msg, keys.Back):
		if t.search != "" {
			t.search = ""
			return t, t.refresh()
		}
	}
	return t, nil
}

// toggleComplete completes an active task or reopens a completed one.
func (t tasksModel) toggleComplete(task store.Task) tea.Cmd {
	if task.IsCompleted {
		if err := t.store.UncompleteTask(task.ID); err != nil {
			return errCmd(err)
		}
		return tea.Batch(t.refresh(), func() tea.Msg { return tasksChangedMsg{} })
	}
	if _, err := t.store.CompleteTask(task.ID, t.clock.Now()); err != nil {
		return errCmd(err)
	}
	return tea.Batch(
		t.refresh(),
		func() tea.Msg { return tasksChangedMsg{} },
		func() tea.Msg { return statusMsg{text: "Completed: " + task.Title} },
	)
}

func (t tasksModel) showTaskForm(task *store.Task) (tasksModel, tea.Cmd) {
	if task == nil {
		*t.formTitle, *t.formDesc, *t.formEstimate, *t.formTags = "", "", "1", ""
		t.formType = "task"
	} else {
		*t.formTitle = task.Title
		*t.formDesc = task.Description
		*t.formEstimate = strconv.Itoa(task.EstimatedPomodoros)
		*t.formTags = strings.Join(task.Tags, ", ")
		t.formType = "edit_task"
		t.editingID = task.ID
	}

	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Title").Value(t.formTitle).Validate(validateTitle),
			huh.NewText().Title("Description").Value(t.formDesc).Lines(3),
			huh.NewInput().Title("Estimated pomodoros").Value(t.formEstimate).Validate(validateRange(1, 20)),
			huh.NewInput().Title("Tags (comma-separated)").Value(t.formTags),
		),
	).WithShowHelp(true).WithShowErrors(true)

	t.formActive = true
	return t, t.form.Init()
}

func (t tasksModel) showSearchForm() (tasksModel, tea.Cmd) {
	*t.formTitle = t.search
	t.formType = "search"
	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Search title or tag").Value(t.formTitle),
		),
	).WithShowHelp(true)

	t.formActive = true
	return t, t.form.Init()
}

func (t tasksModel) updateForm(msg tea.Msg) (tasksModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			t.formActive = false
			t.form = nil
			return t, nil
		}
	}

	form, cmd := t.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		t.form = f
	}

	if t.form.State == huh.StateCompleted {
		t.formActive = false
		return t.submitForm()
	}
	return t, cmd
}

func (t tasksModel) submitForm() (tasksModel, tea.Cmd) {
	switch t.formType {
	case "search":
		t.search = strings.TrimSpace(*t.formTitle)
		t.cursor = 0
		return t, t.refresh()
	case "task":
		est, _ := strconv.Atoi(strings.TrimSpace(*t.formEstimate))
		if _, err := t.store.CreateTask(*t.formTitle, *t.formDesc, est, splitTags(*t.formTags)); err != nil {
			return t, errCmd(err)
		}
	case "edit_task":
		est, _ := strconv.Atoi(strings.TrimSpace(*t.formEstimate))
		if err := t.store.UpdateTask(t.editingID, *t.formTitle, *t.formDesc, est, splitTags(*t.formTags)); err != nil {
			return t, errCmd(err)
		}
	}
	return t, t.refresh()
}

func validateTitle(s string) error {
	if strings.TrimSpace(s) == "" {
		return store.ErrEmptyTitle
	}
	return nil
}

// validateRange accepts whole numbers between lo and hi inclusive.
func validateRange(lo, hi int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return errors.New("enter a whole number")
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

func splitTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func (t tasksModel) view() string {
	if t.formActive && t.form != nil {
		title := titleStyle.Render("New Task")
		switch t.formType {
		case "edit_task":
			title = titleStyle.Render("Edit Task")
		case "search":
			title = titleStyle.Render("Search Tasks")
		}
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", t.form.View())
		return panelStyle.Width(t.width - 4).Render(content)
	}
	return t.renderList()
}

func (t tasksModel) renderList() string {
	w := t.width - 4
	heading := "Tasks · " + taskFilterNames[t.filter]
	if t.search != "" {
		heading = fmt.Sprintf("Tasks · matching %q", t.search)
	}
	title := titleStyle.Render(heading)

	if len(t.tasks) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No tasks. Press a to add one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-3s %-32s %-10s %s", "", "Title", "Pomodoros", "Tags")))

	for i, task := range t.tasks {
		cursor := "  "
		style := normalItemStyle
		if task.IsCompleted {
			style = doneItemStyle
		}
		if i == t.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		check := "○"
		if task.IsCompleted {
			check = successStyle.Render("✓")
		}
		count := fmt.Sprintf("%d/%d", task.CompletedPomodoros, task.EstimatedPomodoros)
		row := fmt.Sprintf("%s%s %s %-10s", cursor, check, style.Render(fmt.Sprintf("%-32s", truncate(task.Title, 32))), count)
		if len(task.Tags) > 0 {
			row += mutedStyle.Render(" [" + strings.Join(task.Tags, ", ") + "]")
		}
		rows = append(rows, row)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: focus  a: add  i: edit  c: done/undo  d: delete  f: filter  /: search"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
