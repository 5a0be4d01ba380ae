package store

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func addSession(t *testing.T, s *Store, typ SessionType, start time.Time, minutes int, taskID *int64, completed bool) *Session {
	t.Helper()
	sess := &Session{
		StartTime:       start,
		EndTime:         start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		Type:            typ,
		TaskID:          taskID,
		Completed:       completed,
		Interrupted:     !completed,
	}
	if err := s.AddSession(sess); err != nil {
		t.Fatalf("add session: %v", err)
	}
	return sess
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != 1 {
		t.Fatalf("expected user_version 1, got %d", version)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sub/pomo.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpdateSettingsFunc(func(st *Settings) { st.WorkDuration = 40 }); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen: migration must not reset the settings row.
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	st, err := s2.GetSettings()
	if err != nil {
		t.Fatal(err)
	}
	if st.WorkDuration != 40 {
		t.Fatalf("expected persisted work duration 40, got %d", st.WorkDuration)
	}
}

func TestDefaultDBPath(t *testing.T) {
	path, err := DefaultDBPath()
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		t.Fatal("empty path")
	}
}

func TestPragmasConfigured(t *testing.T) {
	s := newTestStore(t)

	var fk int
	s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if fk != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fk)
	}
}

func TestMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
	if n := countRows(t, s, "settings"); n != 1 {
		t.Fatalf("expected 1 settings row, got %d", n)
	}
}

// ============================================================
// Settings
// ============================================================

func TestDefaultSettingsCreated(t *testing.T) {
	s := newTestStore(t)
	st, err := s.GetSettings()
	if err != nil {
		t.Fatal(err)
	}
	if *st != DefaultSettings() {
		t.Fatalf("unexpected defaults: %+v", st)
	}
}

func TestUpdateSettingsClamps(t *testing.T) {
	s := newTestStore(t)
	st, err := s.UpdateSettings(Settings{
		WorkDuration:            90,
		ShortBreakDuration:      0,
		LongBreakDuration:       3,
		SessionsBeforeLongBreak: 10,
		SoundEnabled:            true,
		AutoStartBreaks:         true,
		Theme:                   "purple",
		DailyGoal:               -1,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := Settings{
		WorkDuration:            60,
		ShortBreakDuration:      1,
		LongBreakDuration:       5,
		SessionsBeforeLongBreak: 6,
		SoundEnabled:            true,
		AutoStartBreaks:         true,
		Theme:                   ThemeLight,
		DailyGoal:               1,
	}
	if *st != want {
		t.Fatalf("got %+v, want %+v", *st, want)
	}
}

func TestUpdateSettingsFunc(t *testing.T) {
	s := newTestStore(t)
	st, err := s.UpdateSettingsFunc(func(st *Settings) {
		st.Theme = ThemeDark
		st.AutoStartPomodoros = true
	})
	if err != nil {
		t.Fatal(err)
	}
	if st.Theme != ThemeDark || !st.AutoStartPomodoros {
		t.Fatalf("update not applied: %+v", st)
	}
	if st.WorkDuration != 25 {
		t.Fatalf("other fields should be untouched, got work=%d", st.WorkDuration)
	}
}

func TestSettingsDuration(t *testing.T) {
	st := DefaultSettings()
	tests := []struct {
		typ  SessionType
		want time.Duration
	}{
		{SessionWork, 25 * time.Minute},
		{SessionBreak, 5 * time.Minute},
		{SessionLongBreak, 15 * time.Minute},
	}
	for _, tt := range tests {
		if got := st.Duration(tt.typ); got != tt.want {
			t.Fatalf("Duration(%s) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

// ============================================================
// Sessions
// ============================================================

func TestAddAndGetSession(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateTask("Write", "", 2, nil)
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	sess := addSession(t, s, SessionWork, start, 25, &task.ID, true)
	if sess.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != SessionWork || got.DurationMinutes != 25 || !got.Completed || got.Interrupted {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.TaskID == nil || *got.TaskID != task.ID {
		t.Fatal("task id not stored")
	}
	if !got.StartTime.Equal(start) {
		t.Fatalf("start = %v, want %v", got.StartTime, start)
	}
}

func TestAddSessionRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	if err := s.AddSession(&Session{StartTime: now, EndTime: now, Type: "nap"}); err == nil {
		t.Fatal("expected error for invalid type")
	}
	if err := s.AddSession(&Session{StartTime: now, EndTime: now.Add(-time.Minute), Type: SessionWork}); err == nil {
		t.Fatal("expected error for end before start")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSession(42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSessionsFilters(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateTask("A", "", 1, nil)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	addSession(t, s, SessionWork, base, 25, &task.ID, true)
	addSession(t, s, SessionBreak, base.Add(30*time.Minute), 5, nil, true)
	addSession(t, s, SessionWork, base.Add(time.Hour), 10, nil, false)

	all, err := s.ListSessions(SessionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
	if !all[0].StartTime.After(all[2].StartTime) {
		t.Fatal("expected newest first")
	}

	work, _ := s.ListSessions(SessionFilter{Type: SessionWork})
	if len(work) != 2 {
		t.Fatalf("expected 2 work sessions, got %d", len(work))
	}

	byTask, _ := s.ListSessions(SessionFilter{TaskID: &task.ID})
	if len(byTask) != 1 {
		t.Fatalf("expected 1 session for task, got %d", len(byTask))
	}

	from := base.Add(20 * time.Minute)
	to := base.Add(45 * time.Minute)
	window, _ := s.ListSessions(SessionFilter{From: &from, To: &to})
	if len(window) != 1 || window[0].Type != SessionBreak {
		t.Fatalf("expected the break in window, got %+v", window)
	}

	limited, _ := s.ListSessions(SessionFilter{Limit: 2})
	if len(limited) != 2 {
		t.Fatalf("expected limit 2, got %d", len(limited))
	}
}

func TestDurationMinutes(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		end  time.Time
		want int
	}{
		{start.Add(59 * time.Second), 0},
		{start.Add(25*time.Minute + 59*time.Second), 25},
		{start.Add(-time.Minute), 0},
	}
	for _, tt := range tests {
		if got := DurationMinutes(start, tt.end); got != tt.want {
			t.Fatalf("DurationMinutes(%v) = %d, want %d", tt.end.Sub(start), got, tt.want)
		}
	}
}

// ============================================================
// Tasks
// ============================================================

func TestCreateAndGetTask(t *testing.T) {
	s := newTestStore(t)
	task, err := s.CreateTask("  Write report ", "quarterly", 3, []string{"work", " writing "})
	if err != nil {
		t.Fatal(err)
	}
	if task.Title != "Write report" || task.Description != "quarterly" || task.EstimatedPomodoros != 3 {
		t.Fatalf("unexpected task: %+v", task)
	}
	if len(task.Tags) != 2 || task.Tags[1] != "writing" {
		t.Fatalf("unexpected tags: %v", task.Tags)
	}
	if task.IsCompleted || task.CompletedAt != nil || task.CompletedPomodoros != 0 {
		t.Fatal("new task should be incomplete")
	}
	if task.CreatedAt.IsZero() {
		t.Fatal("CreatedAt should be set")
	}
}

func TestCreateTaskEmptyTitle(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateTask("   ", "", 1, nil); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestTagsWithCommaRejected(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateTask("A", "", 1, []string{"a,b"}); !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag, got %v", err)
	}
	task, err := s.CreateTask("B", "", 1, []string{" work ", "deep"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateTask(task.ID, "B", "", 1, []string{"x,y"}); !errors.Is(err, ErrInvalidTag) {
		t.Fatalf("expected ErrInvalidTag on update, got %v", err)
	}
	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "work" || got.Tags[1] != "deep" {
		t.Fatalf("tags = %q", got.Tags)
	}
}

func TestListTasksFilter(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.CreateTask("A", "", 1, nil)
	s.CreateTask("B", "", 1, nil)
	if _, err := s.CompleteTask(a.ID, time.Now()); err != nil {
		t.Fatal(err)
	}

	all, _ := s.ListTasks(TasksAll)
	active, _ := s.ListTasks(TasksActive)
	done, _ := s.ListTasks(TasksCompleted)
	if len(all) != 2 || len(active) != 1 || len(done) != 1 {
		t.Fatalf("all=%d active=%d done=%d", len(all), len(active), len(done))
	}
	if done[0].ID != a.ID {
		t.Fatal("wrong task completed")
	}
}

func TestListTasksEmpty(t *testing.T) {
	s := newTestStore(t)
	tasks, err := s.ListTasks(TasksAll)
	if err != nil {
		t.Fatal(err)
	}
	if tasks != nil {
		t.Fatalf("expected nil slice, got %d items", len(tasks))
	}
}

func TestUpdateTask(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateTask("Old", "", 1, nil)
	if err := s.UpdateTask(task.ID, "New", "desc", 4, []string{"x"}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetTask(task.ID)
	if got.Title != "New" || got.Description != "desc" || got.EstimatedPomodoros != 4 || len(got.Tags) != 1 {
		t.Fatalf("update not applied: %+v", got)
	}
	if err := s.UpdateTask(task.ID, "", "", 1, nil); !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if err := s.UpdateTask(999, "x", "", 1, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteTaskKeepsSessions(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateTask("Gone", "", 1, nil)
	addSession(t, s, SessionWork, time.Now().Add(-time.Hour), 25, &task.ID, true)

	if err := s.DeleteTask(task.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetTask(task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	sessions, _ := s.ListSessions(SessionFilter{})
	if len(sessions) != 1 || sessions[0].TaskID == nil || *sessions[0].TaskID != task.ID {
		t.Fatal("session should keep its dangling task id")
	}
}

func TestIncrementTaskPomodoros(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateTask("Count", "", 2, nil)
	ok, err := s.IncrementTaskPomodoros(task.ID)
	if err != nil || !ok {
		t.Fatalf("increment: ok=%v err=%v", ok, err)
	}
	got, _ := s.GetTask(task.ID)
	if got.CompletedPomodoros != 1 {
		t.Fatalf("expected 1, got %d", got.CompletedPomodoros)
	}

	ok, err = s.IncrementTaskPomodoros(999)
	if err != nil {
		t.Fatalf("missing task should not be an error: %v", err)
	}
	if ok {
		t.Fatal("missing task should report ok=false")
	}
}

func TestCompleteTaskCountsOnce(t *testing.T) {
	s := newTestStore(t)
	task, _ := s.CreateTask("Once", "", 1, nil)
	at := time.Date(2024, 5, 5, 14, 0, 0, 0, time.Local)
	day := "2024-05-05"

	changed, err := s.CompleteTask(task.ID, at)
	if err != nil || !changed {
		t.Fatalf("first complete: changed=%v err=%v", changed, err)
	}
	changed, err = s.CompleteTask(task.ID, at)
	if err != nil || changed {
		t.Fatalf("re-complete: changed=%v err=%v", changed, err)
	}
	ds, _ := s.GetDailyStat(day)
	if ds.TasksCompleted != 1 {
		t.Fatalf("expected 1 task completed, got %d", ds.TasksCompleted)
	}

	got, _ := s.GetTask(task.ID)
	if !got.IsCompleted || got.CompletedAt == nil {
		t.Fatal("task should be completed")
	}

	if err := s.UncompleteTask(task.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetTask(task.ID)
	if got.IsCompleted || got.CompletedAt != nil {
		t.Fatal("task should be uncompleted")
	}
	ds, _ = s.GetDailyStat(day)
	if ds.TasksCompleted != 1 {
		t.Fatal("uncomplete must not decrement")
	}

	s.CompleteTask(task.ID, at)
	ds, _ = s.GetDailyStat(day)
	if ds.TasksCompleted != 2 {
		t.Fatalf("a new transition should count again, got %d", ds.TasksCompleted)
	}
}

func TestCompleteTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CompleteTask(7, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchTasksAndTags(t *testing.T) {
	s := newTestStore(t)
	s.CreateTask("Write docs", "", 1, []string{"writing"})
	s.CreateTask("Fix bug", "", 1, []string{"Code", "urgent"})
	s.CreateTask("Review", "", 1, []string{"code"})

	found, err := s.SearchTasks("CODE")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 matches by tag, got %d", len(found))
	}
	found, _ = s.SearchTasks("docs")
	if len(found) != 1 || found[0].Title != "Write docs" {
		t.Fatalf("expected title match, got %+v", found)
	}

	tags, _ := s.AllTags()
	want := []string{"Code", "code", "urgent", "writing"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags = %v, want %v", tags, want)
		}
	}
}

// ============================================================
// Daily stats
// ============================================================

func TestGetOrCreateDailyStatIdempotent(t *testing.T) {
	s := newTestStore(t)
	first, err := s.GetOrCreateDailyStat("2024-01-01")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.GetOrCreateDailyStat("2024-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same record, got ids %d and %d", first.ID, second.ID)
	}
	if n := countRows(t, s, "daily_stats"); n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
	if first.CompletedPomodoros != 0 || first.CompletedSessions != 0 || first.MinutesFocused != 0 || first.TasksCompleted != 0 {
		t.Fatalf("new record should be zeroed: %+v", first)
	}
}

func TestGetOrCreateDailyStatConcurrent(t *testing.T) {
	s := newTestStore(t)
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.GetOrCreateDailyStat("2024-02-02"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if n := countRows(t, s, "daily_stats"); n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
}

func TestRecordSessionCompletion(t *testing.T) {
	s := newTestStore(t)
	day := "2024-01-01"
	if err := s.RecordSessionCompletion(day, SessionWork, 25); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordSessionCompletion(day, SessionBreak, 5); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordSessionCompletion(day, SessionLongBreak, 15); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordSessionCompletion(day, SessionWork, 24); err != nil {
		t.Fatal(err)
	}

	ds, err := s.GetDailyStat(day)
	if err != nil {
		t.Fatal(err)
	}
	if ds.CompletedSessions != 4 {
		t.Fatalf("sessions = %d, want 4", ds.CompletedSessions)
	}
	if ds.CompletedPomodoros != 2 {
		t.Fatalf("pomodoros = %d, want 2", ds.CompletedPomodoros)
	}
	if ds.MinutesFocused != 49 {
		t.Fatalf("minutes = %d, want 49", ds.MinutesFocused)
	}
	if n := countRows(t, s, "daily_stats"); n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
}

func TestRecordTaskCompletion(t *testing.T) {
	s := newTestStore(t)
	s.RecordTaskCompletion("2024-01-01")
	s.RecordTaskCompletion("2024-01-01")
	ds, _ := s.GetDailyStat("2024-01-01")
	if ds.TasksCompleted != 2 || ds.CompletedSessions != 0 {
		t.Fatalf("unexpected stat: %+v", ds)
	}
}

func TestGetDailyStatNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetDailyStat("1999-01-01"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListDailyStatsOrder(t *testing.T) {
	s := newTestStore(t)
	for _, d := range []string{"2024-01-02", "2024-01-05", "2024-01-01"} {
		s.GetOrCreateDailyStat(d)
	}
	stats, err := s.ListDailyStats()
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 3 || stats[0].Date != "2024-01-05" || stats[2].Date != "2024-01-01" {
		t.Fatalf("expected date descending, got %+v", stats)
	}

	some, _ := s.DailyStatsFor([]string{"2024-01-05", "2024-01-01", "2024-01-09"})
	if len(some) != 2 || some[0].Date != "2024-01-01" {
		t.Fatalf("unexpected DailyStatsFor result: %+v", some)
	}

	between, _ := s.DailyStatsBetween("2024-01-02", "2024-01-05")
	if len(between) != 2 {
		t.Fatalf("expected 2 in range, got %d", len(between))
	}
}

// ============================================================
// Bulk replace
// ============================================================

func TestReplaceAllKeepsIDs(t *testing.T) {
	s := newTestStore(t)
	s.CreateTask("old", "", 1, nil)

	taskID := int64(41)
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	d := Dataset{
		Tasks: []Task{{ID: taskID, Title: "Imported", CreatedAt: start, EstimatedPomodoros: 2, CompletedPomodoros: 1}},
		Sessions: []Session{{ID: 7, StartTime: start, EndTime: start.Add(25 * time.Minute), DurationMinutes: 25,
			Type: SessionWork, TaskID: &taskID, Completed: true}},
		DailyStats: []DailyStat{{ID: 3, Date: "2024-01-01", CompletedPomodoros: 1, CompletedSessions: 1, MinutesFocused: 25}},
		Settings:   &Settings{WorkDuration: 50, ShortBreakDuration: 10, LongBreakDuration: 30, SessionsBeforeLongBreak: 3, Theme: ThemeDark, DailyGoal: 6},
	}
	if err := s.ReplaceAll(d); err != nil {
		t.Fatal(err)
	}

	tasks, _ := s.ListTasks(TasksAll)
	if len(tasks) != 1 || tasks[0].ID != taskID {
		t.Fatalf("expected only the imported task, got %+v", tasks)
	}
	sess, err := s.GetSession(7)
	if err != nil {
		t.Fatal(err)
	}
	if sess.TaskID == nil || *sess.TaskID != taskID {
		t.Fatal("session task link not preserved")
	}
	st, _ := s.GetSettings()
	if st.WorkDuration != 50 || st.Theme != ThemeDark {
		t.Fatalf("settings not replaced: %+v", st)
	}
}

func TestReplaceAllRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	s.CreateTask("keep me", "", 1, nil)
	s.RecordSessionCompletion("2024-01-01", SessionWork, 25)

	d := Dataset{
		DailyStats: []DailyStat{{Date: "2024-03-03"}, {Date: "2024-03-03"}},
	}
	if err := s.ReplaceAll(d); err == nil {
		t.Fatal("expected duplicate date to fail")
	}
	if n := countRows(t, s, "tasks"); n != 1 {
		t.Fatalf("tasks should survive a failed import, got %d", n)
	}
	if _, err := s.GetDailyStat("2024-01-01"); err != nil {
		t.Fatalf("stats should survive a failed import: %v", err)
	}
}

func TestClearAllKeepsSettings(t *testing.T) {
	s := newTestStore(t)
	s.CreateTask("x", "", 1, nil)
	s.RecordTaskCompletion("2024-01-01")
	addSession(t, s, SessionBreak, time.Now().Add(-time.Hour), 5, nil, true)

	if err := s.ClearAll(); err != nil {
		t.Fatal(err)
	}
	for _, table := range []string{"sessions", "tasks", "daily_stats"} {
		if n := countRows(t, s, table); n != 0 {
			t.Fatalf("%s not cleared: %d", table, n)
		}
	}
	if n := countRows(t, s, "settings"); n != 1 {
		t.Fatal("settings should be kept")
	}
}
