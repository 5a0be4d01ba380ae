package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sadopc/pomo/internal/clock"
	"github.com/sadopc/pomo/internal/store"
)

// Version is the envelope version written by Export and accepted by Import.
const Version = 1

var (
	ErrInvalidPayload     = errors.New("invalid import payload")
	ErrUnsupportedVersion = errors.New("unsupported export version")
)

// Source is what Export reads.
type Source interface {
	ListSessions(store.SessionFilter) ([]store.Session, error)
	ListTasks(store.TaskFilter) ([]store.Task, error)
	ListDailyStats() ([]store.DailyStat, error)
	GetSettings() (*store.Settings, error)
}

// Target is what Import replaces.
type Target interface {
	ReplaceAll(store.Dataset) error
}

type envelope struct {
	Version    int             `json:"version"`
	ExportDate time.Time       `json:"exportDate"`
	Sessions   []jsonSession   `json:"sessions"`
	Tasks      []jsonTask      `json:"tasks"`
	DailyStats []jsonDailyStat `json:"dailyStats"`
	Settings   []jsonSettings  `json:"settings"`
}

type jsonSession struct {
	ID              int64     `json:"id,omitempty"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationMinutes int       `json:"durationMinutes"`
	Duration        *int      `json:"duration,omitempty"` // older exports
	Type            string    `json:"type"`
	TaskID          *int64    `json:"taskId,omitempty"`
	Completed       bool      `json:"completed"`
	Interrupted     bool      `json:"interrupted"`
}

type jsonTask struct {
	ID                 int64      `json:"id,omitempty"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Tags               []string   `json:"tags,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	IsCompleted        bool       `json:"isCompleted"`
	EstimatedPomodoros int        `json:"estimatedPomodoros"`
	CompletedPomodoros int        `json:"completedPomodoros"`
}

type jsonDailyStat struct {
	ID                 int64  `json:"id,omitempty"`
	Date               string `json:"date"`
	CompletedPomodoros int    `json:"completedPomodoros"`
	CompletedSessions  int    `json:"completedSessions"`
	MinutesFocused     int    `json:"minutesFocused"`
	TasksCompleted     int    `json:"tasksCompleted"`
}

type jsonSettings struct {
	ID                      int    `json:"id"`
	WorkDuration            int    `json:"workDuration"`
	ShortBreakDuration      int    `json:"shortBreakDuration"`
	LongBreakDuration       int    `json:"longBreakDuration"`
	SessionsBeforeLongBreak int    `json:"sessionsBeforeLongBreak"`
	AutoStartBreaks         bool   `json:"autoStartBreaks"`
	AutoStartPomodoros      bool   `json:"autoStartPomodoros"`
	SoundEnabled            bool   `json:"soundEnabled"`
	Theme                   string `json:"theme"`
	DailyGoal               int    `json:"dailyGoal"`
}

// Export writes every collection as a versioned JSON envelope.
func Export(ctx context.Context, src Source, w io.Writer, now time.Time) error {
	var (
		sessions []store.Session
		tasks    []store.Task
		daily    []store.DailyStat
		settings *store.Settings
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sessions, err = src.ListSessions(store.SessionFilter{})
		return err
	})
	g.Go(func() (err error) {
		tasks, err = src.ListTasks(store.TasksAll)
		return err
	})
	g.Go(func() (err error) {
		daily, err = src.ListDailyStats()
		return err
	})
	g.Go(func() (err error) {
		settings, err = src.GetSettings()
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load data: %w", err)
	}

	env := envelope{
		Version:    Version,
		ExportDate: now.UTC(),
		Sessions:   make([]jsonSession, 0, len(sessions)),
		Tasks:      make([]jsonTask, 0, len(tasks)),
		DailyStats: make([]jsonDailyStat, 0, len(daily)),
		Settings:   []jsonSettings{fromSettings(*settings)},
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	for _, s := range sessions {
		env.Sessions = append(env.Sessions, jsonSession{
			ID:              s.ID,
			StartTime:       s.StartTime.UTC(),
			EndTime:         s.EndTime.UTC(),
			DurationMinutes: s.DurationMinutes,
			Type:            string(s.Type),
			TaskID:          s.TaskID,
			Completed:       s.Completed,
			Interrupted:     s.Interrupted,
		})
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	for _, t := range tasks {
		jt := jsonTask{
			ID:                 t.ID,
			Title:              t.Title,
			Description:        t.Description,
			Tags:               t.Tags,
			CreatedAt:          t.CreatedAt.UTC(),
			IsCompleted:        t.IsCompleted,
			EstimatedPomodoros: t.EstimatedPomodoros,
			CompletedPomodoros: t.CompletedPomodoros,
		}
		if t.CompletedAt != nil {
			c := t.CompletedAt.UTC()
			jt.CompletedAt = &c
		}
		env.Tasks = append(env.Tasks, jt)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })
	for _, d := range daily {
		env.DailyStats = append(env.DailyStats, jsonDailyStat(d))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// ExportFile writes the envelope to path.
func ExportFile(ctx context.Context, src Source, path string, now time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	if err := Export(ctx, src, f, now); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Decode parses and validates an envelope without touching any store.
func Decode(r io.Reader) (store.Dataset, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return store.Dataset{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Version != Version {
		return store.Dataset{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}

	var d store.Dataset
	ids := make(map[int64]bool)
	for i, js := range env.Sessions {
		typ := store.SessionType(js.Type)
		if !typ.Valid() {
			return store.Dataset{}, invalid("session %d: unknown type %q", i, js.Type)
		}
		if js.StartTime.IsZero() || js.EndTime.IsZero() {
			return store.Dataset{}, invalid("session %d: missing start or end time", i)
		}
		if js.EndTime.Before(js.StartTime) {
			return store.Dataset{}, invalid("session %d: end time before start time", i)
		}
		if err := checkID(ids, js.ID); err != nil {
			return store.Dataset{}, invalid("session %d: %v", i, err)
		}
		minutes := js.DurationMinutes
		if minutes == 0 && js.Duration != nil {
			minutes = *js.Duration
		}
		if minutes < 0 {
			return store.Dataset{}, invalid("session %d: negative duration", i)
		}
		d.Sessions = append(d.Sessions, store.Session{
			ID:              js.ID,
			StartTime:       js.StartTime,
			EndTime:         js.EndTime,
			DurationMinutes: minutes,
			Type:            typ,
			TaskID:          js.TaskID,
			Completed:       js.Completed,
			Interrupted:     js.Interrupted,
		})
	}

	ids = make(map[int64]bool)
	for i, jt := range env.Tasks {
		title := strings.TrimSpace(jt.Title)
		if title == "" {
			return store.Dataset{}, invalid("task %d: %v", i, store.ErrEmptyTitle)
		}
		if err := checkID(ids, jt.ID); err != nil {
			return store.Dataset{}, invalid("task %d: %v", i, err)
		}
		if jt.EstimatedPomodoros < 0 || jt.CompletedPomodoros < 0 {
			return store.Dataset{}, invalid("task %d: negative pomodoro count", i)
		}
		if err := store.ValidateTags(jt.Tags); err != nil {
			return store.Dataset{}, invalid("task %d: %v", i, err)
		}
		d.Tasks = append(d.Tasks, store.Task{
			ID:                 jt.ID,
			Title:              title,
			Description:        jt.Description,
			Tags:               jt.Tags,
			CreatedAt:          jt.CreatedAt,
			CompletedAt:        jt.CompletedAt,
			IsCompleted:        jt.IsCompleted,
			EstimatedPomodoros: jt.EstimatedPomodoros,
			CompletedPomodoros: jt.CompletedPomodoros,
		})
	}

	ids = make(map[int64]bool)
	dates := make(map[string]bool)
	for i, jd := range env.DailyStats {
		if _, err := clock.ParseDateKey(jd.Date, time.UTC); err != nil {
			return store.Dataset{}, invalid("daily stat %d: bad date %q", i, jd.Date)
		}
		if dates[jd.Date] {
			return store.Dataset{}, invalid("daily stat %d: duplicate date %s", i, jd.Date)
		}
		dates[jd.Date] = true
		if err := checkID(ids, jd.ID); err != nil {
			return store.Dataset{}, invalid("daily stat %d: %v", i, err)
		}
		if jd.CompletedPomodoros < 0 || jd.CompletedSessions < 0 || jd.MinutesFocused < 0 || jd.TasksCompleted < 0 {
			return store.Dataset{}, invalid("daily stat %s: negative counter", jd.Date)
		}
		d.DailyStats = append(d.DailyStats, store.DailyStat(jd))
	}

	if len(env.Settings) > 0 {
		st := toSettings(env.Settings[0])
		for _, js := range env.Settings {
			if js.ID == 1 {
				st = toSettings(js)
			}
		}
		d.Settings = &st
	}
	return d, nil
}

// Import validates the payload and then replaces every collection in one
// transaction. An invalid payload leaves the store untouched.
func Import(r io.Reader, dst Target) (store.Dataset, error) {
	d, err := Decode(r)
	if err != nil {
		return store.Dataset{}, err
	}
	if err := dst.ReplaceAll(d); err != nil {
		return store.Dataset{}, fmt.Errorf("import: %w", err)
	}
	return d, nil
}

func ImportFile(path string, dst Target) (store.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return store.Dataset{}, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()
	return Import(f, dst)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPayload, fmt.Sprintf(format, args...))
}

// checkID rejects a repeated explicit id. Zero means "assign one".
func checkID(seen map[int64]bool, id int64) error {
	if id < 0 {
		return fmt.Errorf("negative id %d", id)
	}
	if id == 0 {
		return nil
	}
	if seen[id] {
		return fmt.Errorf("duplicate id %d", id)
	}
	seen[id] = true
	return nil
}

func fromSettings(s store.Settings) jsonSettings {
	return jsonSettings{
		ID:                      1,
		WorkDuration:            s.WorkDuration,
		ShortBreakDuration:      s.ShortBreakDuration,
		LongBreakDuration:       s.LongBreakDuration,
		SessionsBeforeLongBreak: s.SessionsBeforeLongBreak,
		AutoStartBreaks:         s.AutoStartBreaks,
		AutoStartPomodoros:      s.AutoStartPomodoros,
		SoundEnabled:            s.SoundEnabled,
		Theme:                   string(s.Theme),
		DailyGoal:               s.DailyGoal,
	}
}

func toSettings(j jsonSettings) store.Settings {
	return store.Settings{
		WorkDuration:            j.WorkDuration,
		ShortBreakDuration:      j.ShortBreakDuration,
		LongBreakDuration:       j.LongBreakDuration,
		SessionsBeforeLongBreak: j.SessionsBeforeLongBreak,
		AutoStartBreaks:         j.AutoStartBreaks,
		AutoStartPomodoros:      j.AutoStartPomodoros,
		SoundEnabled:            j.SoundEnabled,
		Theme:                   store.Theme(j.Theme),
		DailyGoal:               j.DailyGoal,
	}
}
