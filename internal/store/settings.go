package store

import (
	"fmt"
	"time"
)

// Valid ranges enforced by UpdateSettings.
const (
	MinWorkDuration       = 5
	MaxWorkDuration       = 60
	MinShortBreakDuration = 1
	MaxShortBreakDuration = 30
	MinLongBreakDuration  = 5
	MaxLongBreakDuration  = 60
	MinSessionsBeforeLong = 2
	MaxSessionsBeforeLong = 6
	MinDailyGoal          = 1
	MaxDailyGoal          = 12
)

// DefaultSettings returns the settings written on first run.
func DefaultSettings() Settings {
	return Settings{
		WorkDuration:            25,
		ShortBreakDuration:      5,
		LongBreakDuration:       15,
		SessionsBeforeLongBreak: 4,
		AutoStartBreaks:         false,
		AutoStartPomodoros:      false,
		SoundEnabled:            true,
		Theme:                   ThemeLight,
		DailyGoal:               8,
	}
}

// Clamp returns a copy with every field pulled to its nearest valid bound.
func (s Settings) Clamp() Settings {
	s.WorkDuration = clamp(s.WorkDuration, MinWorkDuration, MaxWorkDuration)
	s.ShortBreakDuration = clamp(s.ShortBreakDuration, MinShortBreakDuration, MaxShortBreakDuration)
	s.LongBreakDuration = clamp(s.LongBreakDuration, MinLongBreakDuration, MaxLongBreakDuration)
	s.SessionsBeforeLongBreak = clamp(s.SessionsBeforeLongBreak, MinSessionsBeforeLong, MaxSessionsBeforeLong)
	s.DailyGoal = clamp(s.DailyGoal, MinDailyGoal, MaxDailyGoal)
	if s.Theme != ThemeDark {
		s.Theme = ThemeLight
	}
	return s
}

// Duration returns the nominal length of a session of type t.
func (s Settings) Duration(t SessionType) time.Duration {
	switch t {
	case SessionBreak:
		return time.Duration(s.ShortBreakDuration) * time.Minute
	case SessionLongBreak:
		return time.Duration(s.LongBreakDuration) * time.Minute
	default:
		return time.Duration(s.WorkDuration) * time.Minute
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *Store) insertDefaultSettings() error {
	return s.putSettings(s.db, DefaultSettings(), true)
}

// GetSettings returns the settings singleton.
func (s *Store) GetSettings() (*Settings, error) {
	st := &Settings{}
	var autoBreaks, autoPomos, sound int
	var theme string
	err := s.db.QueryRow(
		`SELECT work_duration, short_break_duration, long_break_duration, sessions_before_long_break,
		        auto_start_breaks, auto_start_pomodoros, sound_enabled, theme, daily_goal
		 FROM settings WHERE id = 1`,
	).Scan(&st.WorkDuration, &st.ShortBreakDuration, &st.LongBreakDuration, &st.SessionsBeforeLongBreak,
		&autoBreaks, &autoPomos, &sound, &theme, &st.DailyGoal)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", notFound(err))
	}
	st.AutoStartBreaks = autoBreaks == 1
	st.AutoStartPomodoros = autoPomos == 1
	st.SoundEnabled = sound == 1
	st.Theme = Theme(theme)
	return st, nil
}

// UpdateSettings clamps and writes the settings singleton.
func (s *Store) UpdateSettings(st Settings) (*Settings, error) {
	if err := s.putSettings(s.db, st.Clamp(), false); err != nil {
		return nil, err
	}
	return s.GetSettings()
}

// UpdateSettingsFunc applies fn to the current settings and saves the result.
func (s *Store) UpdateSettingsFunc(fn func(*Settings)) (*Settings, error) {
	cur, err := s.GetSettings()
	if err != nil {
		return nil, err
	}
	fn(cur)
	return s.UpdateSettings(*cur)
}

func (s *Store) putSettings(x execer, st Settings, ignoreExisting bool) error {
	verb := `INSERT INTO`
	tail := ` ON CONFLICT(id) DO UPDATE SET
		work_duration = excluded.work_duration,
		short_break_duration = excluded.short_break_duration,
		long_break_duration = excluded.long_break_duration,
		sessions_before_long_break = excluded.sessions_before_long_break,
		auto_start_breaks = excluded.auto_start_breaks,
		auto_start_pomodoros = excluded.auto_start_pomodoros,
		sound_enabled = excluded.sound_enabled,
		theme = excluded.theme,
		daily_goal = excluded.daily_goal`
	if ignoreExisting {
		verb = `INSERT OR IGNORE INTO`
		tail = ``
	}
	_, err := x.Exec(verb+` settings (id, work_duration, short_break_duration, long_break_duration,
		sessions_before_long_break, auto_start_breaks, auto_start_pomodoros, sound_enabled, theme, daily_goal)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)`+tail,
		st.WorkDuration, st.ShortBreakDuration, st.LongBreakDuration, st.SessionsBeforeLongBreak,
		boolInt(st.AutoStartBreaks), boolInt(st.AutoStartPomodoros), boolInt(st.SoundEnabled),
		string(st.Theme), st.DailyGoal,
	)
	if err != nil {
		return fmt.Errorf("put settings: %w", err)
	}
	return nil
}
