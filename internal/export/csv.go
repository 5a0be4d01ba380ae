package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sadopc/pomo/internal/store"
)

// ToCSV writes the session log to path.
func ToCSV(sessions []store.Session, tasks map[int64]*store.Task, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()
	return SessionsCSV(sessions, tasks, f)
}

// SessionsCSV writes one row per session. Sessions whose task was deleted
// show "(deleted)" in the task column.
func SessionsCSV(sessions []store.Session, tasks map[int64]*store.Task, out io.Writer) error {
	w := csv.NewWriter(out)

	// Header
	if err := w.Write([]string{"ID", "Type", "Task", "Start", "End", "Minutes", "Duration", "Status"}); err != nil {
		return err
	}

	for _, s := range sessions {
		taskName := ""
		if s.TaskID != nil {
			taskName = "(deleted)"
			if t, ok := tasks[*s.TaskID]; ok {
				taskName = t.Title
			}
		}
		status := "interrupted"
		if s.Completed {
			status = "completed"
		}

		row := []string{
			fmt.Sprintf("%d", s.ID),
			string(s.Type),
			taskName,
			s.StartTime.Local().Format(time.RFC3339),
			s.EndTime.Local().Format(time.RFC3339),
			fmt.Sprintf("%d", s.DurationMinutes),
			formatDuration(int64(s.EndTime.Sub(s.StartTime) / time.Second)),
			status,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatDuration(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
