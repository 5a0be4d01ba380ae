package timer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sadopc/pomo/internal/clock"
	"github.com/sadopc/pomo/internal/notify"
	"github.com/sadopc/pomo/internal/stats"
	"github.com/sadopc/pomo/internal/store"
)

// Status is the run state of the timer.
type Status string

const (
	Idle    Status = "idle"
	Running Status = "running"
	Paused  Status = "paused"
)

const (
	// AdvanceDelay is how long a completed session stays on screen before
	// the timer moves to the next session type.
	AdvanceDelay = time.Second
	// AutoStartDelay separates the advance from an automatic start.
	AutoStartDelay = 500 * time.Millisecond
)

// Store is the persistence the engine writes through.
type Store interface {
	AddSession(*store.Session) error
	IncrementTaskPomodoros(id int64) (bool, error)
	RecordSessionCompletion(date string, typ store.SessionType, durationMinutes int) error
	GetOrCreateDailyStat(date string) (*store.DailyStat, error)
	ListDailyStats() ([]store.DailyStat, error)
}

// Effects are best-effort side effects. Their errors are logged and dropped.
type Effects interface {
	Notify(kind notify.Kind, p notify.Payload) error
	PlayCompletionSound() error
	RequestNotificationPermission() bool
	EnableFocusMode() error
	DisableFocusMode() error
}

type Deps struct {
	Store     Store
	Settings  *store.Settings // nil until loaded; Start is a no-op meanwhile
	Clock     clock.Clock
	Effects   Effects
	Snapshots SnapshotStore
	Logger    *slog.Logger
}

// State is a copy of the timer state.
type State struct {
	RemainingSeconds int
	Status           Status
	SessionType      store.SessionType
	SessionCount     int // completed work sessions in this run
	CurrentTaskID    *int64
	SessionStartTime *time.Time
	// Completing is set between a natural completion and the advance to
	// the next session type.
	Completing bool
}

func (s State) Remaining() time.Duration {
	return time.Duration(s.RemainingSeconds) * time.Second
}

type jobKind int

const (
	jobAdvance jobKind = iota + 1
	jobAutoStart
)

// job is a scheduled transition fired by Tick once its deadline passes.
type job struct {
	kind jobKind
	at   time.Time
}

// Engine is the Pomodoro state machine. All methods are safe for
// concurrent use; mutation is serialized by an internal mutex.
type Engine struct {
	mu sync.Mutex

	store     Store
	clock     clock.Clock
	fx        Effects
	snapshots SnapshotStore
	logger    *slog.Logger

	settings *store.Settings
	st       State
	lastTick time.Time
	pending  *job
	closed   bool
}

// New builds an engine and restores the last snapshot, if any.
func New(d Deps) (*Engine, error) {
	if d.Store == nil {
		return nil, errors.New("timer: store is required")
	}
	e := &Engine{
		store:     d.Store,
		clock:     d.Clock,
		fx:        d.Effects,
		snapshots: d.Snapshots,
		logger:    d.Logger,
	}
	if e.clock == nil {
		e.clock = clock.Real()
	}
	if e.fx == nil {
		e.fx = notify.Nop{}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if d.Settings != nil {
		st := *d.Settings
		e.settings = &st
	}

	now := e.clock.Now()
	e.st = State{Status: Idle, SessionType: store.SessionWork, RemainingSeconds: nominalSeconds(e.settings, store.SessionWork)}
	if e.snapshots != nil {
		snap, err := e.snapshots.Load()
		if err != nil {
			e.logger.Warn("Discarding unreadable timer snapshot", "error", err)
		} else if snap != nil {
			e.st = Restore(snap, e.settings, now)
			e.logger.Debug("Timer restored", "status", e.st.Status, "type", e.st.SessionType, "remaining", e.st.RemainingSeconds)
		}
	}
	e.lastTick = now
	return e, nil
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copyState()
}

// Settings returns the settings the engine is running with, or nil.
func (e *Engine) Settings() *store.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settings == nil {
		return nil
	}
	st := *e.settings
	return &st
}

// Start begins a fresh session from idle or resumes a paused one. A non-nil
// taskID binds the session to that task; nil keeps the current binding.
func (e *Engine) Start(taskID *int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.start(e.clock.Now(), taskID)
}

func (e *Engine) start(now time.Time, taskID *int64) error {
	if e.closed || e.settings == nil || e.st.Status == Running {
		return nil
	}
	e.pending = nil

	if e.st.Status == Idle {
		t := now
		e.st.SessionStartTime = &t
		if e.st.RemainingSeconds <= 0 {
			e.st.RemainingSeconds = nominalSeconds(e.settings, e.st.SessionType)
		}
	}
	if taskID != nil {
		e.st.CurrentTaskID = copyID(taskID)
	}
	e.st.Status = Running
	e.lastTick = now

	e.fx.RequestNotificationPermission()
	if e.st.SessionType == store.SessionWork {
		e.effect("enable focus mode", e.fx.EnableFocusMode())
	}
	e.logger.Info("Timer started", "type", e.st.SessionType, "remaining", e.st.RemainingSeconds, "task", e.st.CurrentTaskID)
	return e.persist(now)
}

// Pause stops a running countdown. Elapsed whole seconds are applied first.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.st.Status != Running || e.st.Completing {
		return nil
	}
	now := e.clock.Now()
	err := e.countdown(now)
	if e.st.Completing {
		return err
	}
	e.pending = nil
	e.st.Status = Paused
	e.logger.Info("Timer paused", "remaining", e.st.RemainingSeconds)
	return errors.Join(err, e.persist(now))
}

// Reset returns to idle with the nominal duration of the current session
// type. Nothing is logged and a pending advance or auto-start is dropped.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	now := e.clock.Now()
	e.pending = nil
	e.st.Status = Idle
	e.st.Completing = false
	e.st.SessionStartTime = nil
	if e.settings != nil {
		e.st.RemainingSeconds = nominalSeconds(e.settings, e.st.SessionType)
	}
	e.effect("disable focus mode", e.fx.DisableFocusMode())
	e.logger.Info("Timer reset", "type", e.st.SessionType)
	return e.persist(now)
}

// Skip ends the current session early and moves to the next session type.
// A session in progress is logged as interrupted.
func (e *Engine) Skip() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.settings == nil {
		return nil
	}
	now := e.clock.Now()
	e.pending = nil

	var errs []error
	if e.st.SessionStartTime != nil && !e.st.Completing && e.st.Status != Idle {
		start := *e.st.SessionStartTime
		sess := &store.Session{
			StartTime:       start,
			EndTime:         now,
			DurationMinutes: store.DurationMinutes(start, now),
			Type:            e.st.SessionType,
			TaskID:          copyID(e.st.CurrentTaskID),
			Interrupted:     true,
		}
		if err := e.store.AddSession(sess); err != nil {
			e.logger.Error("Failed to save interrupted session", "error", err)
			errs = append(errs, fmt.Errorf("save interrupted session: %w", err))
		}
	}
	e.effect("disable focus mode", e.fx.DisableFocusMode())
	e.logger.Info("Session skipped", "type", e.st.SessionType)
	errs = append(errs, e.advance(now))
	return errors.Join(errs...)
}

// Tick applies the wall-clock time elapsed since the previous tick and fires
// any scheduled transition that is due. It may be called at any rate.
func (e *Engine) Tick(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}

	var errs []error
	if e.st.Status == Running && !e.st.Completing {
		errs = append(errs, e.countdown(now))
	}
	if j := e.pending; j != nil && !now.Before(j.at) {
		e.pending = nil
		switch j.kind {
		case jobAdvance:
			errs = append(errs, e.advance(now))
		case jobAutoStart:
			errs = append(errs, e.start(now, nil))
		}
	}
	return errors.Join(errs...)
}

// Resync moves the tick reference to now without applying the gap. Used
// when the display comes back after being suspended or hidden.
func (e *Engine) Resync(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastTick = now
}

// ApplySettings swaps in new settings. The remaining time is re-derived only
// while idle; a countdown in flight keeps its remaining time.
func (e *Engine) ApplySettings(st store.Settings) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settings = &st
	if e.closed || e.st.Status != Idle || e.st.Completing {
		return nil
	}
	e.st.RemainingSeconds = nominalSeconds(e.settings, e.st.SessionType)
	return e.persist(e.clock.Now())
}

// Close drops scheduled transitions, releases focus mode and writes a final
// snapshot. A completed session still waiting for its advance is advanced
// first so the next run resumes at the right point in the cycle. The engine
// ignores every call afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	now := e.clock.Now()
	var err error
	if e.st.Completing {
		err = e.advance(now)
	}
	e.pending = nil
	e.effect("disable focus mode", e.fx.DisableFocusMode())
	err = errors.Join(err, e.persist(now))
	e.closed = true
	return err
}

// countdown subtracts whole elapsed seconds. The reference point advances
// by the same whole seconds, so the sub-second remainder carries over.
func (e *Engine) countdown(now time.Time) error {
	if now.Before(e.lastTick) {
		e.lastTick = now
		return nil
	}
	delta := int(now.Sub(e.lastTick) / time.Second)
	if delta <= 0 {
		return nil
	}
	e.lastTick = e.lastTick.Add(time.Duration(delta) * time.Second)

	prev := e.st.RemainingSeconds
	e.st.RemainingSeconds = max(0, prev-delta)
	if prev > 0 && e.st.RemainingSeconds == 0 {
		return e.complete(now)
	}
	return e.persist(now)
}

// complete handles a natural completion. It runs exactly once per session,
// on the tick that takes remaining time from positive to zero.
func (e *Engine) complete(now time.Time) error {
	var errs []error
	typ := e.st.SessionType
	start := now
	if e.st.SessionStartTime != nil {
		start = *e.st.SessionStartTime
	}
	taskID := copyID(e.st.CurrentTaskID)

	sess := &store.Session{
		StartTime:       start,
		EndTime:         now,
		DurationMinutes: store.DurationMinutes(start, now),
		Type:            typ,
		TaskID:          taskID,
		Completed:       true,
	}
	if err := e.store.AddSession(sess); err != nil {
		e.logger.Error("Failed to save session", "error", err)
		errs = append(errs, fmt.Errorf("save session: %w", err))
	}
	date := clock.DateKey(now)
	if err := e.store.RecordSessionCompletion(date, typ, sess.DurationMinutes); err != nil {
		e.logger.Error("Failed to update daily stats", "date", date, "error", err)
		errs = append(errs, err)
	}

	if e.settings != nil && e.settings.SoundEnabled {
		e.effect("play sound", e.fx.PlayCompletionSound())
	}

	switch typ {
	case store.SessionWork:
		if taskID != nil {
			ok, err := e.store.IncrementTaskPomodoros(*taskID)
			if err != nil {
				e.logger.Error("Failed to increment task pomodoros", "task", *taskID, "error", err)
				errs = append(errs, err)
			} else if !ok {
				e.logger.Debug("Bound task no longer exists", "task", *taskID)
			}
		}
		errs = append(errs, e.announceWork(date))
	case store.SessionBreak:
		e.effect("notify", e.fx.Notify(notify.BreakComplete, notify.Payload{}))
	case store.SessionLongBreak:
		e.effect("notify", e.fx.Notify(notify.LongBreakComplete, notify.Payload{}))
	}
	e.effect("disable focus mode", e.fx.DisableFocusMode())

	e.st.Completing = true
	e.st.SessionStartTime = nil
	e.pending = &job{kind: jobAdvance, at: now.Add(AdvanceDelay)}
	e.logger.Info("Session completed", "type", typ, "minutes", sess.DurationMinutes)

	errs = append(errs, e.persist(now))
	return errors.Join(errs...)
}

// announceWork sends the work-complete notification with today's count, and
// the daily goal and streak milestone notifications when they are reached.
func (e *Engine) announceWork(date string) error {
	ds, err := e.store.GetOrCreateDailyStat(date)
	if err != nil {
		e.logger.Error("Failed to read daily stats", "date", date, "error", err)
		e.effect("notify", e.fx.Notify(notify.WorkComplete, notify.Payload{}))
		return err
	}
	count := ds.CompletedPomodoros
	e.effect("notify", e.fx.Notify(notify.WorkComplete, notify.Payload{Count: count}))

	if e.settings != nil && count == e.settings.DailyGoal {
		e.effect("notify", e.fx.Notify(notify.DailyGoal, notify.Payload{Count: count}))
	}
	if count != 1 {
		return nil
	}
	all, err := e.store.ListDailyStats()
	if err != nil {
		e.logger.Error("Failed to load daily stats", "error", err)
		return err
	}
	if s := stats.CalculateStreaks(all, date); notify.IsStreakMilestone(s.Current) {
		e.effect("notify", e.fx.Notify(notify.StreakMilestone, notify.Payload{Count: s.Current}))
	}
	return nil
}

// advance moves to the next session type, idle, and schedules an automatic
// start when the settings ask for one.
func (e *Engine) advance(now time.Time) error {
	every := 0
	if e.settings != nil {
		every = e.settings.SessionsBeforeLongBreak
	}
	next, count := NextSession(e.st.SessionType, e.st.SessionCount, every)
	e.st.SessionType = next
	e.st.SessionCount = count
	e.st.Status = Idle
	e.st.Completing = false
	e.st.SessionStartTime = nil
	e.st.RemainingSeconds = nominalSeconds(e.settings, next)
	if next.IsBreak() {
		e.st.CurrentTaskID = nil
	}

	if e.autoStart(next) {
		e.pending = &job{kind: jobAutoStart, at: now.Add(AutoStartDelay)}
	}
	e.logger.Debug("Advanced session", "type", next, "count", count)
	return e.persist(now)
}

func (e *Engine) autoStart(next store.SessionType) bool {
	if e.settings == nil {
		return false
	}
	if next == store.SessionWork {
		return e.settings.AutoStartPomodoros
	}
	return e.settings.AutoStartBreaks
}

// NextSession applies the sequencing rule: a finished work session bumps
// the count and is followed by a long break every `every` sessions, else a
// short break. Any break is followed by work.
func NextSession(cur store.SessionType, count, every int) (store.SessionType, int) {
	if cur != store.SessionWork {
		return store.SessionWork, count
	}
	count++
	if every > 0 && count%every == 0 {
		return store.SessionLongBreak, count
	}
	return store.SessionBreak, count
}

func (e *Engine) persist(now time.Time) error {
	if e.snapshots == nil {
		return nil
	}
	if err := e.snapshots.Save(e.snapshot(now)); err != nil {
		e.logger.Warn("Failed to save timer snapshot", "error", err)
		return fmt.Errorf("save timer snapshot: %w", err)
	}
	return nil
}

func (e *Engine) snapshot(now time.Time) Snapshot {
	s := e.copyState()
	return Snapshot{
		TimeRemainingSeconds: s.RemainingSeconds,
		Status:               s.Status,
		SessionType:          s.SessionType,
		SessionCount:         s.SessionCount,
		CurrentTaskID:        s.CurrentTaskID,
		SessionStartTime:     s.SessionStartTime,
		LastUpdated:          now,
	}
}

func (e *Engine) copyState() State {
	s := e.st
	s.CurrentTaskID = copyID(e.st.CurrentTaskID)
	if e.st.SessionStartTime != nil {
		t := *e.st.SessionStartTime
		s.SessionStartTime = &t
	}
	return s
}

func (e *Engine) effect(name string, err error) {
	if err != nil {
		e.logger.Debug("Side effect failed", "effect", name, "error", err)
	}
}

func nominalSeconds(st *store.Settings, typ store.SessionType) int {
	if st == nil {
		return 0
	}
	return int(st.Duration(typ) / time.Second)
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
