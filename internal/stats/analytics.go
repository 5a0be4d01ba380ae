package stats

import (
	"fmt"
	"math"
	"time"

	"github.com/sadopc/pomo/internal/clock"
	"github.com/sadopc/pomo/internal/store"
)

// Source is the read side of the daily aggregate.
type Source interface {
	ListDailyStats() ([]store.DailyStat, error)
	DailyStatsFor(dates []string) ([]store.DailyStat, error)
	DailyStatsBetween(from, to string) ([]store.DailyStat, error)
}

// Summary totals a window of days.
type Summary struct {
	TotalPomodoros int
	TotalMinutes   int
	TotalTasks     int
	CurrentStreak  int
	LongestStreak  int
	CompletionRate float64 // active days / days in window
}

// Point is one day of a chart series.
type Point struct {
	Date      string
	Pomodoros int
	Minutes   int
	Tasks     int
}

// HeatCell is one day of the activity heatmap.
type HeatCell struct {
	Date  string
	Count int
}

// Analyzer answers read-only questions over daily stats.
type Analyzer struct {
	src   Source
	clock clock.Clock
}

func NewAnalyzer(src Source, c clock.Clock) *Analyzer {
	if c == nil {
		c = clock.Real()
	}
	return &Analyzer{src: src, clock: c}
}

// Today returns today's stat, zeroed when nothing happened yet.
func (a *Analyzer) Today() (store.DailyStat, error) {
	today := clock.DateKey(a.clock.Now())
	rows, err := a.src.DailyStatsFor([]string{today})
	if err != nil {
		return store.DailyStat{}, err
	}
	if len(rows) == 0 {
		return store.DailyStat{Date: today}, nil
	}
	return rows[0], nil
}

func (a *Analyzer) Streaks() (Streaks, error) {
	all, err := a.src.ListDailyStats()
	if err != nil {
		return Streaks{}, fmt.Errorf("load daily stats: %w", err)
	}
	return CalculateStreaks(all, clock.DateKey(a.clock.Now())), nil
}

// Summary totals the last days calendar days, today included.
func (a *Analyzer) Summary(days int) (Summary, error) {
	if days <= 0 {
		return Summary{}, nil
	}
	rows, err := a.src.DailyStatsFor(clock.LastNDaysKeys(a.clock.Now(), days))
	if err != nil {
		return Summary{}, err
	}
	return a.summarize(rows, days)
}

// WeekSummary totals the current Monday-to-Sunday week.
func (a *Analyzer) WeekSummary() (Summary, error) {
	from, to := clock.WeekRange(a.clock.Now())
	return a.between(from, to)
}

// MonthSummary totals the current calendar month.
func (a *Analyzer) MonthSummary() (Summary, error) {
	from, to := clock.MonthRange(a.clock.Now())
	return a.between(from, to)
}

func (a *Analyzer) between(from, to time.Time) (Summary, error) {
	rows, err := a.src.DailyStatsBetween(clock.DateKey(from), clock.DateKey(to))
	if err != nil {
		return Summary{}, err
	}
	return a.summarize(rows, int(math.Round(to.Sub(from).Hours()/24))+1)
}

func (a *Analyzer) summarize(rows []store.DailyStat, days int) (Summary, error) {
	var sum Summary
	active := 0
	for _, ds := range rows {
		sum.TotalPomodoros += ds.CompletedPomodoros
		sum.TotalMinutes += ds.MinutesFocused
		sum.TotalTasks += ds.TasksCompleted
		if ds.CompletedPomodoros > 0 {
			active++
		}
	}
	if days > 0 {
		sum.CompletionRate = float64(active) / float64(days)
	}
	st, err := a.Streaks()
	if err != nil {
		return Summary{}, err
	}
	sum.CurrentStreak = st.Current
	sum.LongestStreak = st.Longest
	return sum, nil
}

// ChartSeries returns exactly days points in ascending date order, zero
// filled where no stat was recorded.
func (a *Analyzer) ChartSeries(days int) ([]Point, error) {
	keys := clock.LastNDaysKeys(a.clock.Now(), days)
	byDate, err := a.byDate(keys)
	if err != nil {
		return nil, err
	}
	points := make([]Point, len(keys))
	for i, k := range keys {
		ds := byDate[k]
		points[i] = Point{Date: k, Pomodoros: ds.CompletedPomodoros, Minutes: ds.MinutesFocused, Tasks: ds.TasksCompleted}
	}
	return points, nil
}

// Heatmap returns pomodoro counts for the last days days, oldest first.
func (a *Analyzer) Heatmap(days int) ([]HeatCell, error) {
	keys := clock.LastNDaysKeys(a.clock.Now(), days)
	byDate, err := a.byDate(keys)
	if err != nil {
		return nil, err
	}
	cells := make([]HeatCell, len(keys))
	for i, k := range keys {
		cells[i] = HeatCell{Date: k, Count: byDate[k].CompletedPomodoros}
	}
	return cells, nil
}

// AveragePomodoros is the mean pomodoros per day over the last days days.
func (a *Analyzer) AveragePomodoros(days int) (float64, error) {
	if days <= 0 {
		return 0, nil
	}
	rows, err := a.src.DailyStatsFor(clock.LastNDaysKeys(a.clock.Now(), days))
	if err != nil {
		return 0, err
	}
	total := 0
	for _, ds := range rows {
		total += ds.CompletedPomodoros
	}
	return float64(total) / float64(days), nil
}

// MostProductiveDay returns the weekday with the most pomodoros across all
// history. ok is false when there is no activity at all.
func (a *Analyzer) MostProductiveDay() (day time.Weekday, ok bool, err error) {
	all, err := a.src.ListDailyStats()
	if err != nil {
		return 0, false, err
	}
	var totals [7]int
	for _, ds := range all {
		t, err := clock.ParseDateKey(ds.Date, time.UTC)
		if err != nil {
			continue
		}
		totals[t.Weekday()] += ds.CompletedPomodoros
	}
	best := 0
	for d, n := range totals {
		if n > best {
			best = n
			day = time.Weekday(d)
		}
	}
	return day, best > 0, nil
}

func (a *Analyzer) byDate(keys []string) (map[string]store.DailyStat, error) {
	rows, err := a.src.DailyStatsFor(keys)
	if err != nil {
		return nil, err
	}
	m := make(map[string]store.DailyStat, len(rows))
	for _, ds := range rows {
		m[ds.Date] = ds
	}
	return m, nil
}
