package clock

import (
	"sync"
	"time"
)

// DateLayout is the calendar-day key format used by daily stats.
const DateLayout = "2006-01-02"

// Clock is the wall-clock source. Timer correctness depends on comparing
// two readings, never on counting ticks.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real returns the system clock.
func Real() Clock { return realClock{} }

// Fake is a manually advanced clock for tests and replays.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d and returns the new time.
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}

func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// DateKey formats t as a local calendar-day key (YYYY-MM-DD).
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey parses a YYYY-MM-DD key in the given location.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, key, loc)
}

// PrevDateKey returns the calendar day before key. Invalid keys return "".
func PrevDateKey(key string) string {
	t, err := time.Parse(DateLayout, key)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(DateLayout)
}

// LastNDaysKeys returns the keys of the n days ending at now, oldest first.
func LastNDaysKeys(now time.Time, n int) []string {
	if n <= 0 {
		return nil
	}
	keys := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		keys = append(keys, DateKey(now.AddDate(0, 0, -i)))
	}
	return keys
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WeekRange returns the Monday and Sunday (start of day) of the week containing t.
func WeekRange(t time.Time) (time.Time, time.Time) {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	monday := StartOfDay(t.AddDate(0, 0, -(wd - 1)))
	return monday, monday.AddDate(0, 0, 6)
}

// MonthRange returns the first and last day of the month containing t.
func MonthRange(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first, first.AddDate(0, 1, -1)
}
