package stats

import (
	"github.com/sadopc/pomo/internal/clock"
	"github.com/sadopc/pomo/internal/store"
)

// Streaks is the consecutive-day run of days with at least one pomodoro.
type Streaks struct {
	Current int
	Longest int
}

// CalculateStreaks walks daily stats ordered by date descending.
//
// The current streak is anchored at today. A today without pomodoros does
// not break it yet: the run ending yesterday still counts until the day is
// over. The longest streak scans the whole history.
func CalculateStreaks(desc []store.DailyStat, today string) Streaks {
	var s Streaks

	i := 0
	for i < len(desc) && desc[i].Date > today {
		i++
	}
	expected := today
	if i < len(desc) && desc[i].Date == today && desc[i].CompletedPomodoros == 0 {
		i++
	}
	if i >= len(desc) || desc[i].Date != today {
		expected = clock.PrevDateKey(today)
	}
	for ; i < len(desc); i++ {
		if desc[i].Date != expected || desc[i].CompletedPomodoros == 0 {
			break
		}
		s.Current++
		expected = clock.PrevDateKey(expected)
	}

	run := 0
	prev := ""
	for _, ds := range desc {
		switch {
		case ds.CompletedPomodoros == 0:
			run = 0
		case run > 0 && ds.Date == clock.PrevDateKey(prev):
			run++
		default:
			run = 1
		}
		prev = ds.Date
		if run > s.Longest {
			s.Longest = run
		}
	}
	return s
}
