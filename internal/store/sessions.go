package store

import (
	"database/sql"
	"fmt"
	"time"
)

const sessionColumns = `id, start_time, end_time, duration_minutes, type, task_id, completed, interrupted`

// DurationMinutes is the whole number of minutes between start and end.
func DurationMinutes(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

// AddSession appends a session to the log and sets its ID.
func (s *Store) AddSession(sess *Session) error {
	if !sess.Type.Valid() {
		return fmt.Errorf("add session: invalid type %q", sess.Type)
	}
	if sess.EndTime.Before(sess.StartTime) {
		return fmt.Errorf("add session: end time before start time")
	}
	id, err := insertSession(s.db, sess, false)
	if err != nil {
		return fmt.Errorf("add session: %w", err)
	}
	sess.ID = id
	return nil
}

func insertSession(x execer, sess *Session, withID bool) (int64, error) {
	cols := `start_time, end_time, duration_minutes, type, task_id, completed, interrupted`
	marks := `?, ?, ?, ?, ?, ?, ?`
	args := []any{
		formatTime(sess.StartTime), formatTime(sess.EndTime), sess.DurationMinutes,
		string(sess.Type), sess.TaskID, boolInt(sess.Completed), boolInt(sess.Interrupted),
	}
	if withID {
		cols = `id, ` + cols
		marks = `?, ` + marks
		args = append([]any{nullID(sess.ID)}, args...)
	}
	res, err := x.Exec(`INSERT INTO sessions (`+cols+`) VALUES (`+marks+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetSession(id int64) (*Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, notFound(err))
	}
	return sess, nil
}

func (s *Store) ListSessions(f SessionFilter) ([]Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1=1`
	var args []any

	if f.TaskID != nil {
		query += ` AND task_id = ?`
		args = append(args, *f.TaskID)
	}
	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(f.Type))
	}
	if f.From != nil {
		query += ` AND start_time >= ?`
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		query += ` AND start_time < ?`
		args = append(args, formatTime(*f.To))
	}
	query += ` ORDER BY start_time DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// CountSessions returns the number of logged sessions.
func (s *Store) CountSessions() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(r scanner) (*Session, error) {
	sess := &Session{}
	var start, end, typ string
	var taskID sql.NullInt64
	var completed, interrupted int
	if err := r.Scan(&sess.ID, &start, &end, &sess.DurationMinutes, &typ, &taskID, &completed, &interrupted); err != nil {
		return nil, err
	}
	sess.StartTime = parseTime(start)
	sess.EndTime = parseTime(end)
	sess.Type = SessionType(typ)
	if taskID.Valid {
		sess.TaskID = &taskID.Int64
	}
	sess.Completed = completed == 1
	sess.Interrupted = interrupted == 1
	return sess, nil
}
