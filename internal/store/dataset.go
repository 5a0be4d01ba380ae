package store

import "fmt"

// Dataset is every collection in the store, as moved by export and import.
type Dataset struct {
	Sessions   []Session
	Tasks      []Task
	DailyStats []DailyStat
	Settings   *Settings // nil keeps the current settings
}

// ReplaceAll clears sessions, tasks and daily stats and inserts d in one
// transaction. Record ids are kept so session task links stay valid.
// On any error nothing is changed.
func (s *Store) ReplaceAll(d Dataset) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := clearAll(tx); err != nil {
		return err
	}
	for i := range d.Sessions {
		if _, err := insertSession(tx, &d.Sessions[i], true); err != nil {
			return fmt.Errorf("import session %d: %w", d.Sessions[i].ID, err)
		}
	}
	for i := range d.Tasks {
		if err := insertTask(tx, &d.Tasks[i]); err != nil {
			return fmt.Errorf("import task %d: %w", d.Tasks[i].ID, err)
		}
	}
	for i := range d.DailyStats {
		if err := insertDailyStat(tx, &d.DailyStats[i]); err != nil {
			return fmt.Errorf("import daily stat %s: %w", d.DailyStats[i].Date, err)
		}
	}
	if d.Settings != nil {
		if err := s.putSettings(tx, d.Settings.Clamp(), false); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ClearAll deletes sessions, tasks and daily stats. Settings are kept.
func (s *Store) ClearAll() error {
	return clearAll(s.db)
}

func clearAll(x execer) error {
	for _, table := range []string{"sessions", "tasks", "daily_stats"} {
		if _, err := x.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
