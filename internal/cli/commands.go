package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/sadopc/pomo/internal/config"
	"github.com/sadopc/pomo/internal/export"
	"github.com/sadopc/pomo/internal/logging"
	"github.com/sadopc/pomo/internal/stats"
	"github.com/sadopc/pomo/internal/store"
	"github.com/sadopc/pomo/internal/timer"
)

// StatusCmd prints the timer state saved by a running pomo.
type StatusCmd struct {
	Format string `help:"Output format: text or json" enum:"text,json" default:"text"`
}

type statusView struct {
	Status           timer.Status      `json:"status"`
	SessionType      store.SessionType `json:"sessionType"`
	RemainingSeconds int               `json:"remainingSeconds"`
	SessionCount     int               `json:"sessionCount"`
	CurrentTaskID    *int64            `json:"currentTaskId,omitempty"`
}

func (s *StatusCmd) Run(cli *CLI) error {
	db, err := cli.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	settings, err := db.GetSettings()
	if err != nil {
		return err
	}
	snaps, err := cli.snapshots()
	if err != nil {
		return err
	}
	snap, err := snaps.Load()
	if err != nil {
		return err
	}
	if snap == nil {
		snap = &timer.Snapshot{Status: timer.Idle, SessionType: store.SessionWork}
	}
	st := timer.Restore(snap, settings, cli.now().Now())
	v := statusView{
		Status:           st.Status,
		SessionType:      st.SessionType,
		RemainingSeconds: st.RemainingSeconds,
		SessionCount:     st.SessionCount,
		CurrentTaskID:    st.CurrentTaskID,
	}

	out := cli.stdout()
	if s.Format == "json" {
		return writeJSON(out, v)
	}
	line := fmt.Sprintf("%s %s %s", v.SessionType, formatClock(v.RemainingSeconds), v.Status)
	if v.CurrentTaskID != nil {
		if t, err := db.GetTask(*v.CurrentTaskID); err == nil {
			line += " · " + t.Title
		}
	}
	fmt.Fprintf(out, "%s (%d done)\n", line, v.SessionCount)
	return nil
}

// StatsCmd prints streaks and totals.
type StatsCmd struct {
	Days   int    `help:"Number of days to summarize" default:"7"`
	Format string `help:"Output format: text or json" enum:"text,json" default:"text"`
}

type statsView struct {
	Today         store.DailyStat `json:"today"`
	Period        stats.Summary   `json:"period"`
	Week          stats.Summary   `json:"week"`
	Month         stats.Summary   `json:"month"`
	Average       float64         `json:"averagePomodoros"`
	BestDay       string          `json:"mostProductiveDay,omitempty"`
	CurrentStreak int             `json:"currentStreak"`
	LongestStreak int             `json:"longestStreak"`
}

func (s *StatsCmd) Run(cli *CLI) error {
	db, err := cli.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	a := stats.NewAnalyzer(db, cli.now())
	var v statsView
	if v.Today, err = a.Today(); err != nil {
		return err
	}
	if v.Period, err = a.Summary(s.Days); err != nil {
		return err
	}
	if v.Week, err = a.WeekSummary(); err != nil {
		return err
	}
	if v.Month, err = a.MonthSummary(); err != nil {
		return err
	}
	if v.Average, err = a.AveragePomodoros(s.Days); err != nil {
		return err
	}
	day, ok, err := a.MostProductiveDay()
	if err != nil {
		return err
	}
	if ok {
		v.BestDay = day.String()
	}
	streaks, err := a.Streaks()
	if err != nil {
		return err
	}
	v.CurrentStreak, v.LongestStreak = streaks.Current, streaks.Longest

	out := cli.stdout()
	if s.Format == "json" {
		return writeJSON(out, v)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Today\t%d pomodoros\t%d min\t%d tasks\n", v.Today.CompletedPomodoros, v.Today.MinutesFocused, v.Today.TasksCompleted)
	fmt.Fprintf(w, "Last %d days\t%d pomodoros\t%d min\t%d tasks\t%.0f%% done\n",
		s.Days, v.Period.TotalPomodoros, v.Period.TotalMinutes, v.Period.TotalTasks, v.Period.CompletionRate*100)
	fmt.Fprintf(w, "This week\t%d pomodoros\t%d min\t%d tasks\n", v.Week.TotalPomodoros, v.Week.TotalMinutes, v.Week.TotalTasks)
	fmt.Fprintf(w, "This month\t%d pomodoros\t%d min\t%d tasks\n", v.Month.TotalPomodoros, v.Month.TotalMinutes, v.Month.TotalTasks)
	fmt.Fprintf(w, "Average\t%.1f pomodoros/day\n", v.Average)
	if v.BestDay != "" {
		fmt.Fprintf(w, "Best day\t%s\n", v.BestDay)
	}
	fmt.Fprintf(w, "Streak\t%d days (longest %d)\n", v.CurrentStreak, v.LongestStreak)
	return w.Flush()
}

// TaskCmd manages tasks.
type TaskCmd struct {
	Add  TaskAddCmd  `cmd:"add" help:"Add a task"`
	List TaskListCmd `cmd:"list" help:"List tasks" default:"1"`
	Done TaskDoneCmd `cmd:"done" help:"Mark a task completed"`
	Undo TaskUndoCmd `cmd:"undo" help:"Mark a completed task active again"`
	Rm   TaskRmCmd   `cmd:"rm" help:"Delete a task (its sessions are kept)"`
}

type TaskAddCmd struct {
	Title       string   `arg:"" help:"Task title"`
	Description string   `help:"Task description" short:"m"`
	Estimate    int      `help:"Estimated pomodoros" short:"e" default:"1"`
	Tags        []string `help:"Comma-separated tags" short:"t"`
}

func (t *TaskAddCmd) Run(cli *CLI) error {
	db, err := cli.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	task, err := db.CreateTask(t.Title, t.Description, t.Estimate, t.Tags)
	if err != nil {
		return err
	}
	logging.Logger.Info("Task created", "id", task.ID)
	fmt.Fprintf(cli.stdout(), "Created task %d: %s\n", task.ID, task.Title)
	return nil
}

type TaskListCmd struct {
	All    bool   `help:"Include completed tasks" short:"a"`
	Done   bool   `help:"Only completed tasks"`
	Search string `help:"Filter by title or tag" short:"s"`
	Format string `help:"Output format: table or json" enum:"table,json" default:"table"`
}

func (t *TaskListCmd) Run(cli *CLI) error {
	db, err := cli.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	var tasks []store.Task
	switch {
	case t.Search != "":
		tasks, err = db.SearchTasks(t.Search)
	case t.Done:
		tasks, err = db.ListTasks(store.TasksCompleted)
	case t.All:
		tasks, err = db.ListTasks(store.TasksAll)
	default:
		tasks, err = db.ListTasks(store.TasksActive)
	}
	if err != nil {
		return err
	}

	out := cli.stdout()
	if t.Format == "json" {
		return writeJSON(out, tasks)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPOMODOROS\tTAGS\tDONE")
	for _, task := range tasks {
		done := ""
		if task.IsCompleted {
			done = "✓"
		}
		fmt.Fprintf(w, "%d\t%s\t%d/%d\t%s\t%s\n",
			task.ID, task.Title, task.CompletedPomodoros, task.EstimatedPomodoros, strings.Join(task.Tags, ","), done)
	}
	w.Flush()
	fmt.Fprintf(out, "\nTotal: %d tasks\n", len(tasks))
	return nil
}

type TaskDoneCmd struct {
	ID int64 `arg:"" help:"Task id"`
}

func (t *TaskDoneCmd) Run(cli *CLI) error {
	db, err := cli.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	changed, err := db.CompleteTask(t.ID, cli.now().Now())
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintf(cli.stdout(), "Task %d was already completed\n", t.ID)
		return nil
	}
	fmt.Fprintf(cli.stdout(), "Completed task %d\n", t.ID)
	return nil
}

type TaskUndoCmd struct {
	ID int64 `arg:"" help:"Task id"`
}

func (t *TaskUndoCmd) Run(cli *CLI) error {
	db, err := cli.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.UncompleteTask(t.ID); err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout(), "Task %d is active again\n", t.ID)
	return nil
}

type TaskRmCmd struct {
	ID int64 `arg:"" help:"Task id"`
}

func (t *TaskRmCmd) Run(cli *CLI) error {
	db, err := cli.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.DeleteTask(t.ID); err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout(), "Deleted task %d\n", t.ID)
	return nil
}

// SettingsCmd shows or changes the timer settings.
type SettingsCmd struct {
	Show SettingsShowCmd `cmd:"show" help:"Show current settings" default:"1"`
	Set  SettingsSetCmd  `cmd:"set" help:"Change one setting (values are clamped to their valid range)"`
}

type SettingsShowCmd struct {
	Format string `help:"Output format: text or json" enum:"text,json" default:"text"`
}

func (s *SettingsShowCmd) Run(cli *CLI) error {
	db, err := cli.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := db.GetSettings()
	if err != nil {
		return err
	}
	if s.Format == "json" {
		return writeJSON(cli.stdout(), st)
	}
	return printSettings(cli.stdout(), st)
}

type SettingsSetCmd struct {
	Key   string `arg:"" enum:"work,short-break,long-break,sessions,auto-breaks,auto-pomodoros,sound,theme,goal" help:"Setting name: work, short-break, long-break, sessions, auto-breaks, auto-pomodoros, sound, theme, goal"`
	Value string `arg:"" help:"New value"`
}

func (s *SettingsSetCmd) Run(cli *CLI) error {
	db, err := cli.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	var parseErr error
	st, err := db.UpdateSettingsFunc(func(st *store.Settings) {
		parseErr = applySetting(st, s.Key, s.Value)
	})
	if parseErr != nil {
		return parseErr
	}
	if err != nil {
		return err
	}
	return printSettings(cli.stdout(), st)
}

// applySetting parses value into the field named by key.
func applySetting(st *store.Settings, key, value string) error {
	intVal := func(dst *int) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: expected a number, got %q", key, value)
		}
		*dst = n
		return nil
	}
	boolVal := func(dst *bool) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: expected true or false, got %q", key, value)
		}
		*dst = b
		return nil
	}

	switch key {
	case "work":
		return intVal(&st.WorkDuration)
	case "short-break":
		return intVal(&st.ShortBreakDuration)
	case "long-break":
		return intVal(&st.LongBreakDuration)
	case "sessions":
		return intVal(&st.SessionsBeforeLongBreak)
	case "goal":
		return intVal(&st.DailyGoal)
	case "auto-breaks":
		return boolVal(&st.AutoStartBreaks)
	case "auto-pomodoros":
		return boolVal(&st.AutoStartPomodoros)
	case "sound":
		return boolVal(&st.SoundEnabled)
	case "theme":
		st.Theme = store.Theme(strings.ToLower(value))
		return nil
	}
	return fmt.Errorf("unknown setting %q", key)
}

func printSettings(out io.Writer, st *store.Settings) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "work\t%d min\n", st.WorkDuration)
	fmt.Fprintf(w, "short-break\t%d min\n", st.ShortBreakDuration)
	fmt.Fprintf(w, "long-break\t%d min\n", st.LongBreakDuration)
	fmt.Fprintf(w, "sessions\t%d\n", st.SessionsBeforeLongBreak)
	fmt.Fprintf(w, "auto-breaks\t%t\n", st.AutoStartBreaks)
	fmt.Fprintf(w, "auto-pomodoros\t%t\n", st.AutoStartPomodoros)
	fmt.Fprintf(w, "sound\t%t\n", st.SoundEnabled)
	fmt.Fprintf(w, "theme\t%s\n", st.Theme)
	fmt.Fprintf(w, "goal\t%d pomodoros\n", st.DailyGoal)
	return w.Flush()
}

// ExportCmd writes all data as a JSON envelope, or the session log as CSV.
type ExportCmd struct {
	Format string `help:"Output format: json or csv" enum:"json,csv" default:"json" short:"f"`
	Output string `help:"Output file (default stdout)" short:"o" type:"path"`
}

func (e *ExportCmd) Run(cli *CLI) error {
	db, err := cli.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	out := cli.stdout()
	if e.Output != "" {
		f, err := os.Create(e.Output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch e.Format {
	case "csv":
		sessions, err := db.ListSessions(store.SessionFilter{})
		if err != nil {
			return err
		}
		tasks, err := db.ListTasks(store.TasksAll)
		if err != nil {
			return err
		}
		byID := make(map[int64]*store.Task, len(tasks))
		for i := range tasks {
			byID[tasks[i].ID] = &tasks[i]
		}
		if err := export.SessionsCSV(sessions, byID, out); err != nil {
			return err
		}
	default:
		if err := export.Export(context.Background(), db, out, cli.now().Now()); err != nil {
			return err
		}
	}
	if e.Output != "" {
		logging.Logger.Info("Exported data", "format", e.Format, "path", e.Output)
		fmt.Fprintf(os.Stderr, "Exported to %s\n", e.Output)
	}
	return nil
}

// ImportCmd replaces every collection with the contents of a JSON export.
type ImportCmd struct {
	Path  string `arg:"" help:"JSON export file" type:"existingfile"`
	Force bool   `help:"Skip confirmation prompt" short:"f"`

	in io.Reader `kong:"-"`
}

func (i *ImportCmd) Run(cli *CLI) error {
	// Decode first so a bad file is reported before asking anything.
	f, err := os.Open(i.Path)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	d, err := export.Decode(f)
	f.Close()
	if err != nil {
		return err
	}

	out := cli.stdout()
	if !i.Force {
		in := i.in
		if in == nil {
			in = os.Stdin
		}
		fmt.Fprintf(out, "Replace all sessions, tasks and stats with %d sessions, %d tasks, %d days? (y/N): ",
			len(d.Sessions), len(d.Tasks), len(d.DailyStats))
		resp, _ := bufio.NewReader(in).ReadString('\n')
		if r := strings.TrimSpace(resp); r != "y" && r != "Y" {
			fmt.Fprintln(out, "Cancelled")
			return nil
		}
	}

	db, err := cli.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.ReplaceAll(d); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	logging.Logger.Info("Imported data", "path", i.Path, "sessions", len(d.Sessions), "tasks", len(d.Tasks))
	fmt.Fprintf(out, "Imported %d sessions, %d tasks, %d days\n", len(d.Sessions), len(d.Tasks), len(d.DailyStats))
	return nil
}

// InitCmd writes the effective configuration to the config file.
type InitCmd struct {
	Force bool `help:"Overwrite an existing config file" short:"f"`
}

func (i *InitCmd) Run(cli *CLI) error {
	path, err := config.ExpandPath(cli.Config)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !i.Force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}
	if err := config.Write(cli.conf(), path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	logging.Logger.Info("Wrote config", "path", path)
	fmt.Fprintf(cli.stdout(), "Wrote %s\n", path)
	return nil
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
