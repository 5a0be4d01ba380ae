package stats

import (
	"testing"
	"time"

	"github.com/sadopc/pomo/internal/clock"
	"github.com/sadopc/pomo/internal/store"
)

func day(date string, pomodoros int) store.DailyStat {
	return store.DailyStat{Date: date, CompletedPomodoros: pomodoros}
}

func newTestAnalyzer(t *testing.T, now time.Time) (*Analyzer, *store.Store) {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewAnalyzer(s, clock.NewFake(now)), s
}

func record(t *testing.T, s *store.Store, date string, pomodoros, minutesEach int) {
	t.Helper()
	for i := 0; i < pomodoros; i++ {
		if err := s.RecordSessionCompletion(date, store.SessionWork, minutesEach); err != nil {
			t.Fatal(err)
		}
	}
}

// ============================================================
// Streaks
// ============================================================

func TestStreakContinuity(t *testing.T) {
	desc := []store.DailyStat{
		day("2024-03-10", 2),
		day("2024-03-09", 1),
		day("2024-03-08", 4),
		day("2024-03-07", 0),
		day("2024-03-06", 1),
	}
	got := CalculateStreaks(desc, "2024-03-10")
	if got.Current != 3 {
		t.Fatalf("current = %d, want 3", got.Current)
	}
	if got.Longest != 3 {
		t.Fatalf("longest = %d, want 3", got.Longest)
	}
}

func TestStreakEmpty(t *testing.T) {
	got := CalculateStreaks(nil, "2024-03-10")
	if got != (Streaks{}) {
		t.Fatalf("expected zero streaks, got %+v", got)
	}
}

func TestStreakTodayNotStartedYet(t *testing.T) {
	// No record for today: the run ending yesterday is still alive.
	desc := []store.DailyStat{day("2024-03-09", 1), day("2024-03-08", 1)}
	if got := CalculateStreaks(desc, "2024-03-10"); got.Current != 2 {
		t.Fatalf("current = %d, want 2", got.Current)
	}

	// A zeroed record for today behaves the same.
	desc = append([]store.DailyStat{day("2024-03-10", 0)}, desc...)
	if got := CalculateStreaks(desc, "2024-03-10"); got.Current != 2 {
		t.Fatalf("current = %d, want 2", got.Current)
	}
}

func TestStreakBrokenBeforeYesterday(t *testing.T) {
	desc := []store.DailyStat{day("2024-03-08", 5), day("2024-03-07", 5)}
	got := CalculateStreaks(desc, "2024-03-10")
	if got.Current != 0 {
		t.Fatalf("current = %d, want 0", got.Current)
	}
	if got.Longest != 2 {
		t.Fatalf("longest = %d, want 2", got.Longest)
	}
}

func TestLongestStreakScansFullHistory(t *testing.T) {
	desc := []store.DailyStat{
		day("2024-03-10", 1),
		day("2024-03-05", 1),
		day("2024-03-04", 1),
		day("2024-03-03", 1),
		day("2024-03-02", 1),
		day("2024-02-20", 1),
	}
	got := CalculateStreaks(desc, "2024-03-10")
	if got.Current != 1 {
		t.Fatalf("current = %d, want 1", got.Current)
	}
	if got.Longest != 4 {
		t.Fatalf("longest = %d, want 4", got.Longest)
	}
}

func TestStreakAcrossMonthBoundary(t *testing.T) {
	desc := []store.DailyStat{day("2024-03-01", 1), day("2024-02-29", 1), day("2024-02-28", 1)}
	if got := CalculateStreaks(desc, "2024-03-01"); got.Current != 3 {
		t.Fatalf("current = %d, want 3", got.Current)
	}
}

// ============================================================
// Analytics
// ============================================================

func TestChartSeriesZeroFill(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.Local)
	a, s := newTestAnalyzer(t, now)
	record(t, s, "2024-03-10", 2, 25)
	record(t, s, "2024-03-06", 1, 20)
	record(t, s, "2024-03-01", 3, 25) // outside the window

	points, err := a.ChartSeries(7)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 7 {
		t.Fatalf("expected 7 points, got %d", len(points))
	}
	if points[0].Date != "2024-03-04" || points[6].Date != "2024-03-10" {
		t.Fatalf("unexpected range %s..%s", points[0].Date, points[6].Date)
	}
	zero := 0
	for i, p := range points {
		if i > 0 && p.Date <= points[i-1].Date {
			t.Fatal("points not ascending")
		}
		if p.Pomodoros == 0 && p.Minutes == 0 && p.Tasks == 0 {
			zero++
		}
	}
	if zero != 5 {
		t.Fatalf("expected 5 zero points, got %d", zero)
	}
	if points[6].Pomodoros != 2 || points[6].Minutes != 50 {
		t.Fatalf("unexpected today point: %+v", points[6])
	}
}

func TestSummary(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.Local)
	a, s := newTestAnalyzer(t, now)
	record(t, s, "2024-03-10", 2, 25)
	record(t, s, "2024-03-09", 1, 25)
	s.RecordTaskCompletion("2024-03-09")
	s.RecordSessionCompletion("2024-03-08", store.SessionBreak, 5)

	sum, err := a.Summary(10)
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalPomodoros != 3 || sum.TotalMinutes != 75 || sum.TotalTasks != 1 {
		t.Fatalf("unexpected totals: %+v", sum)
	}
	if sum.CompletionRate != 0.2 {
		t.Fatalf("completion rate = %v, want 0.2", sum.CompletionRate)
	}
	if sum.CurrentStreak != 2 || sum.LongestStreak != 2 {
		t.Fatalf("unexpected streaks: %+v", sum)
	}

	empty, err := a.Summary(0)
	if err != nil || empty != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v err=%v", empty, err)
	}
}

func TestWeekSummarySpansMonths(t *testing.T) {
	// Friday 2024-03-01; the week started on Monday 2024-02-26.
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	a, s := newTestAnalyzer(t, now)
	record(t, s, "2024-02-26", 1, 25)
	record(t, s, "2024-03-01", 1, 25)
	record(t, s, "2024-02-25", 4, 25) // previous week

	sum, err := a.WeekSummary()
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalPomodoros != 2 {
		t.Fatalf("pomodoros = %d, want 2", sum.TotalPomodoros)
	}
	if want := 2.0 / 7.0; sum.CompletionRate != want {
		t.Fatalf("completion rate = %v, want %v", sum.CompletionRate, want)
	}
}

func TestMonthSummary(t *testing.T) {
	now := time.Date(2024, 2, 15, 12, 0, 0, 0, time.Local)
	a, s := newTestAnalyzer(t, now)
	record(t, s, "2024-02-01", 1, 25)
	record(t, s, "2024-02-29", 1, 25)
	record(t, s, "2024-03-01", 1, 25)

	sum, err := a.MonthSummary()
	if err != nil {
		t.Fatal(err)
	}
	if sum.TotalPomodoros != 2 {
		t.Fatalf("pomodoros = %d, want 2", sum.TotalPomodoros)
	}
	if want := 2.0 / 29.0; sum.CompletionRate != want {
		t.Fatalf("completion rate = %v, want %v", sum.CompletionRate, want)
	}
}

func TestHeatmapAndAverage(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.Local)
	a, s := newTestAnalyzer(t, now)
	record(t, s, "2024-03-10", 3, 25)
	record(t, s, "2024-03-09", 1, 25)

	cells, err := a.Heatmap(365)
	if err != nil {
		t.Fatal(err)
	}
	if len(cells) != 365 || cells[364].Count != 3 || cells[363].Count != 1 || cells[0].Count != 0 {
		t.Fatalf("unexpected heatmap tail: %+v", cells[362:])
	}

	avg, err := a.AveragePomodoros(4)
	if err != nil {
		t.Fatal(err)
	}
	if avg != 1.0 {
		t.Fatalf("average = %v, want 1", avg)
	}
}

func TestMostProductiveDay(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.Local)
	a, s := newTestAnalyzer(t, now)

	if _, ok, err := a.MostProductiveDay(); err != nil || ok {
		t.Fatalf("expected no data, ok=%v err=%v", ok, err)
	}

	record(t, s, "2024-03-05", 2, 25) // Tuesday
	record(t, s, "2024-03-12", 2, 25) // Tuesday
	record(t, s, "2024-03-08", 3, 25) // Friday

	d, ok, err := a.MostProductiveDay()
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if d != time.Tuesday {
		t.Fatalf("most productive = %v, want Tuesday", d)
	}
}

func TestToday(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.Local)
	a, s := newTestAnalyzer(t, now)
	ds, err := a.Today()
	if err != nil {
		t.Fatal(err)
	}
	if ds.Date != "2024-03-10" || ds.CompletedPomodoros != 0 {
		t.Fatalf("unexpected empty today: %+v", ds)
	}
	record(t, s, "2024-03-10", 1, 25)
	ds, _ = a.Today()
	if ds.CompletedPomodoros != 1 {
		t.Fatalf("pomodoros = %d, want 1", ds.CompletedPomodoros)
	}
}
