package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sadopc/pomo/internal/clock"
)

// ErrEmptyTitle is returned when a task is saved without a title.
var ErrEmptyTitle = errors.New("task title is required")

// ErrInvalidTag is returned for a tag containing the stored separator.
var ErrInvalidTag = errors.New("tags cannot contain commas")

// ValidateTags rejects tags that would not survive the comma-joined column.
func ValidateTags(tags []string) error {
	for _, t := range tags {
		if strings.Contains(t, ",") {
			return fmt.Errorf("%w: %q", ErrInvalidTag, t)
		}
	}
	return nil
}

const taskColumns = `id, title, description, tags, created_at, completed_at, is_completed, estimated_pomodoros, completed_pomodoros`

func (s *Store) CreateTask(title, description string, estimated int, tags []string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if err := ValidateTags(tags); err != nil {
		return nil, err
	}
	res, err := s.db.Exec(
		`INSERT INTO tasks (title, description, tags, created_at, estimated_pomodoros) VALUES (?, ?, ?, ?, ?)`,
		title, description, joinTags(tags), formatTime(time.Now()), estimated,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetTask(id)
}

func (s *Store) GetTask(id int64) (*Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, notFound(err))
	}
	return t, nil
}

// ListTasks returns tasks newest first.
func (s *Store) ListTasks(f TaskFilter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	switch f {
	case TasksActive:
		query += ` WHERE is_completed = 0`
	case TasksCompleted:
		query += ` WHERE is_completed = 1`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// SearchTasks matches query case-insensitively against titles and tags.
func (s *Store) SearchTasks(query string) ([]Task, error) {
	all, err := s.ListTasks(TasksAll)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []Task
	for _, t := range all {
		if strings.Contains(strings.ToLower(t.Title), q) {
			out = append(out, t)
			continue
		}
		for _, tag := range t.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

// AllTags returns every distinct tag, sorted.
func (s *Store) AllTags() ([]string, error) {
	all, err := s.ListTasks(TasksAll)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var tags []string
	for _, t := range all {
		for _, tag := range t.Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	sort.Strings(tags)
	return tags, nil
}

func (s *Store) UpdateTask(id int64, title, description string, estimated int, tags []string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if err := ValidateTags(tags); err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE tasks SET title = ?, description = ?, estimated_pomodoros = ?, tags = ? WHERE id = ?`,
		title, description, estimated, joinTags(tags), id,
	)
	if err != nil {
		return fmt.Errorf("update task %d: %w", id, err)
	}
	return affected(res, id)
}

// DeleteTask removes a task. Sessions keep their task_id.
func (s *Store) DeleteTask(id int64) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return affected(res, id)
}

// IncrementTaskPomodoros adds one completed pomodoro to the task.
// A missing task reports ok=false without an error.
func (s *Store) IncrementTaskPomodoros(id int64) (bool, error) {
	res, err := s.db.Exec(`UPDATE tasks SET completed_pomodoros = completed_pomodoros + 1 WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("increment task %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// CompleteTask marks a task completed and counts it in the daily stat for
// its completion day. Completing an already-completed task changes nothing
// and reports changed=false.
func (s *Store) CompleteTask(id int64, at time.Time) (changed bool, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE tasks SET is_completed = 1, completed_at = ? WHERE id = ? AND is_completed = 0`,
		formatTime(at), id,
	)
	if err != nil {
		return false, fmt.Errorf("complete task %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM tasks WHERE id = ?`, id).Scan(&exists); err != nil {
			return false, err
		}
		if exists == 0 {
			return false, fmt.Errorf("complete task %d: %w", id, ErrNotFound)
		}
		return false, nil
	}
	if err := recordTaskCompletion(tx, clock.DateKey(at.Local())); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

// UncompleteTask clears the completion flag. Daily stats are not decremented.
func (s *Store) UncompleteTask(id int64) error {
	res, err := s.db.Exec(`UPDATE tasks SET is_completed = 0, completed_at = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("uncomplete task %d: %w", id, err)
	}
	return affected(res, id)
}

func affected(res sql.Result, id int64) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}

func insertTask(x execer, t *Task) error {
	if err := ValidateTags(t.Tags); err != nil {
		return err
	}
	var completedAt any
	if t.CompletedAt != nil {
		completedAt = formatTime(*t.CompletedAt)
	}
	_, err := x.Exec(
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullID(t.ID), t.Title, t.Description, joinTags(t.Tags), formatTime(t.CreatedAt), completedAt,
		boolInt(t.IsCompleted), t.EstimatedPomodoros, t.CompletedPomodoros,
	)
	return err
}

func scanTask(r scanner) (*Task, error) {
	t := &Task{}
	var tags, createdAt string
	var completedAt sql.NullString
	var completed int
	if err := r.Scan(&t.ID, &t.Title, &t.Description, &tags, &createdAt, &completedAt,
		&completed, &t.EstimatedPomodoros, &t.CompletedPomodoros); err != nil {
		return nil, err
	}
	t.Tags = splitTags(tags)
	t.CreatedAt = parseTime(createdAt)
	if completedAt.Valid {
		c := parseTime(completedAt.String)
		t.CompletedAt = &c
	}
	t.IsCompleted = completed == 1
	return t, nil
}

func joinTags(tags []string) string {
	var clean []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
