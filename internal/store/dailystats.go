package store

import (
	"fmt"
	"strings"
)

const dailyColumns = `id, date, completed_pomodoros, completed_sessions, minutes_focused, tasks_completed`

// GetOrCreateDailyStat returns the stat row for date, creating a zeroed one
// if needed. The UNIQUE(date) constraint makes creation idempotent; concurrent
// callers for the same date share one round trip.
func (s *Store) GetOrCreateDailyStat(date string) (*DailyStat, error) {
	v, err, _ := s.daily.Do(date, func() (any, error) {
		if _, err := s.db.Exec(`INSERT INTO daily_stats (date) VALUES (?) ON CONFLICT(date) DO NOTHING`, date); err != nil {
			return nil, fmt.Errorf("create daily stat %s: %w", date, err)
		}
		return s.GetDailyStat(date)
	})
	if err != nil {
		return nil, err
	}
	ds := *v.(*DailyStat)
	return &ds, nil
}

// GetDailyStat returns ErrNotFound when no activity was recorded on date.
func (s *Store) GetDailyStat(date string) (*DailyStat, error) {
	row := s.db.QueryRow(`SELECT `+dailyColumns+` FROM daily_stats WHERE date = ?`, date)
	ds, err := scanDailyStat(row)
	if err != nil {
		return nil, fmt.Errorf("get daily stat %s: %w", date, notFound(err))
	}
	return ds, nil
}

// RecordSessionCompletion counts a naturally completed session. Only work
// sessions add pomodoros and focused minutes.
func (s *Store) RecordSessionCompletion(date string, typ SessionType, durationMinutes int) error {
	if durationMinutes < 0 {
		durationMinutes = 0
	}
	pomodoros, minutes := 0, 0
	if typ == SessionWork {
		pomodoros, minutes = 1, durationMinutes
	}
	_, err := s.db.Exec(`
		INSERT INTO daily_stats (date, completed_sessions, completed_pomodoros, minutes_focused)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			completed_sessions  = completed_sessions + 1,
			completed_pomodoros = completed_pomodoros + excluded.completed_pomodoros,
			minutes_focused     = minutes_focused + excluded.minutes_focused`,
		date, pomodoros, minutes,
	)
	if err != nil {
		return fmt.Errorf("record session completion %s: %w", date, err)
	}
	return nil
}

// RecordTaskCompletion counts one task transition into the completed state.
func (s *Store) RecordTaskCompletion(date string) error {
	return recordTaskCompletion(s.db, date)
}

func recordTaskCompletion(x execer, date string) error {
	_, err := x.Exec(`
		INSERT INTO daily_stats (date, tasks_completed) VALUES (?, 1)
		ON CONFLICT(date) DO UPDATE SET tasks_completed = tasks_completed + 1`,
		date,
	)
	if err != nil {
		return fmt.Errorf("record task completion %s: %w", date, err)
	}
	return nil
}

// ListDailyStats returns every stat row, most recent date first.
func (s *Store) ListDailyStats() ([]DailyStat, error) {
	return s.queryDailyStats(`SELECT ` + dailyColumns + ` FROM daily_stats ORDER BY date DESC`)
}

// DailyStatsFor returns the stat rows for the given date keys, in date order.
// Dates without a row are simply absent.
func (s *Store) DailyStatsFor(dates []string) ([]DailyStat, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(dates)), ",")
	args := make([]any, len(dates))
	for i, d := range dates {
		args[i] = d
	}
	return s.queryDailyStats(`SELECT `+dailyColumns+` FROM daily_stats WHERE date IN (`+marks+`) ORDER BY date`, args...)
}

// DailyStatsBetween returns rows with from <= date <= to, in date order.
func (s *Store) DailyStatsBetween(from, to string) ([]DailyStat, error) {
	return s.queryDailyStats(`SELECT `+dailyColumns+` FROM daily_stats WHERE date >= ? AND date <= ? ORDER BY date`, from, to)
}

func (s *Store) queryDailyStats(query string, args ...any) ([]DailyStat, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list daily stats: %w", err)
	}
	defer rows.Close()

	var stats []DailyStat
	for rows.Next() {
		ds, err := scanDailyStat(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, *ds)
	}
	return stats, rows.Err()
}

func insertDailyStat(x execer, ds *DailyStat) error {
	_, err := x.Exec(`INSERT INTO daily_stats (`+dailyColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		nullID(ds.ID), ds.Date, ds.CompletedPomodoros, ds.CompletedSessions, ds.MinutesFocused, ds.TasksCompleted,
	)
	return err
}

func scanDailyStat(r scanner) (*DailyStat, error) {
	ds := &DailyStat{}
	if err := r.Scan(&ds.ID, &ds.Date, &ds.CompletedPomodoros, &ds.CompletedSessions, &ds.MinutesFocused, &ds.TasksCompleted); err != nil {
		return nil, err
	}
	return ds, nil
}
