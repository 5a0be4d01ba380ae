package store

import "time"

// SessionType is the kind of timer interval.
type SessionType string

const (
	SessionWork      SessionType = "work"
	SessionBreak     SessionType = "break"
	SessionLongBreak SessionType = "longBreak"
)

func (t SessionType) Valid() bool {
	switch t {
	case SessionWork, SessionBreak, SessionLongBreak:
		return true
	}
	return false
}

func (t SessionType) IsBreak() bool {
	return t == SessionBreak || t == SessionLongBreak
}

// Session is an immutable log entry for one completed or interrupted timer run.
type Session struct {
	ID              int64
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	Type            SessionType
	TaskID          *int64 // soft reference, may dangle after task deletion
	Completed       bool
	Interrupted     bool
}

type Task struct {
	ID                 int64
	Title              string
	Description        string
	Tags               []string
	CreatedAt          time.Time
	CompletedAt        *time.Time
	IsCompleted        bool
	EstimatedPomodoros int
	CompletedPomodoros int
}

// DailyStat is the per-day rollup of session and task activity.
type DailyStat struct {
	ID                 int64
	Date               string // YYYY-MM-DD
	CompletedPomodoros int
	CompletedSessions  int
	MinutesFocused     int
	TasksCompleted     int
}

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Settings is the singleton user configuration. Durations are in minutes.
type Settings struct {
	WorkDuration            int
	ShortBreakDuration      int
	LongBreakDuration       int
	SessionsBeforeLongBreak int
	AutoStartBreaks         bool
	AutoStartPomodoros      bool
	SoundEnabled            bool
	Theme                   Theme
	DailyGoal               int
}

// SessionFilter is used to filter sessions in queries.
type SessionFilter struct {
	TaskID *int64
	Type   SessionType
	From   *time.Time
	To     *time.Time
	Limit  int
}

// TaskFilter selects tasks by completion state.
type TaskFilter int

const (
	TasksAll TaskFilter = iota
	TasksActive
	TasksCompleted
)
