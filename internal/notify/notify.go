package notify

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Kind identifies a user-facing notification.
type Kind string

const (
	WorkComplete      Kind = "workComplete"
	BreakComplete     Kind = "breakComplete"
	LongBreakComplete Kind = "longBreakComplete"
	DailyGoal         Kind = "dailyGoal"
	StreakMilestone   Kind = "streakMilestone"
)

// Payload carries the number shown in a notification: pomodoros today for
// WorkComplete, the goal for DailyGoal, streak days for StreakMilestone.
type Payload struct {
	Count int
}

// Message is the rendered title and body of a notification.
type Message struct {
	Title string
	Body  string
}

// Format renders a notification.
func Format(kind Kind, p Payload) Message {
	switch kind {
	case WorkComplete:
		return Message{"Work session complete", fmt.Sprintf("Great focus! Time for a break. Pomodoros today: %d", p.Count)}
	case BreakComplete:
		return Message{"Break over", "Ready for another focused session?"}
	case LongBreakComplete:
		return Message{"Long break complete", "Feeling refreshed? Let's get back to work!"}
	case DailyGoal:
		return Message{"Daily goal achieved", fmt.Sprintf("Amazing! You've completed %d pomodoros today!", p.Count)}
	case StreakMilestone:
		body := fmt.Sprintf("You're on a %d-day streak!", p.Count)
		switch p.Count {
		case 7:
			body = "Week streak achieved!"
		case 30:
			body = "Month streak achieved!"
		case 100:
			body = "100-day streak! Legendary!"
		}
		return Message{"Streak milestone", body}
	}
	return Message{"pomo", string(kind)}
}

// IsStreakMilestone reports whether days is a streak worth announcing.
func IsStreakMilestone(days int) bool {
	return days == 7 || days == 30 || days == 100
}

// ErrUnsupported is returned when the platform has no command for an effect.
var ErrUnsupported = errors.New("not supported on this platform")

// Options selects which effects are active.
type Options struct {
	Notifications bool
	Sound         bool
	FocusMode     bool
	// Bell receives the terminal bell when no sound player works. Nil
	// disables the bell, e.g. while a full-screen UI owns the terminal.
	Bell   io.Writer
	Logger *slog.Logger
}

type process interface {
	Stop() error
}

// Notifier runs desktop side effects through platform commands. Notify and
// PlayCompletionSound return at once; the commands run in the background and
// their failures are logged. Focus mode errors are returned to the caller.
type Notifier struct {
	opts   Options
	logger *slog.Logger

	run      func(args []string) error
	spawn    func(args []string) (process, error)
	lookPath func(string) (string, error)
	bell     io.Writer

	pending   errgroup.Group
	mu        sync.Mutex
	permitted *bool
	inhibitor process
}

func New(opts Options) *Notifier {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Notifier{
		opts:     opts,
		logger:   logger,
		run:      runCommand,
		spawn:    spawnCommand,
		lookPath: exec.LookPath,
		bell:     opts.Bell,
	}
}

// Wait blocks until every background notification and sound has finished.
func (n *Notifier) Wait() {
	n.pending.Wait()
}

// background runs fn on its own goroutine and logs a failure.
func (n *Notifier) background(effect string, fn func() error) {
	n.pending.Go(func() error {
		if err := fn(); err != nil {
			n.logger.Warn("Side effect failed", "effect", effect, "error", err)
		}
		return nil
	})
}

// RequestNotificationPermission reports whether desktop notifications can be
// shown. The answer is looked up once and cached.
func (n *Notifier) RequestNotificationPermission() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.permitted != nil {
		return *n.permitted
	}
	ok := false
	if n.opts.Notifications {
		if args := notifyCommand("x", "x"); len(args) > 0 {
			_, err := n.lookPath(args[0])
			ok = err == nil
		}
	}
	n.permitted = &ok
	n.logger.Debug("Notification permission", "granted", ok)
	return ok
}

// Notify shows a desktop notification, or logs it when notifications are
// unavailable.
func (n *Notifier) Notify(kind Kind, p Payload) error {
	msg := Format(kind, p)
	if !n.RequestNotificationPermission() {
		n.logger.Info("Notification", "kind", kind, "title", msg.Title, "body", msg.Body)
		return nil
	}
	args := notifyCommand(msg.Title, msg.Body)
	n.background("notify", func() error {
		if err := n.run(args); err != nil {
			return fmt.Errorf("notify %s: %w", kind, err)
		}
		return nil
	})
	return nil
}

// PlayCompletionSound tries each platform player in turn and falls back to
// the terminal bell.
func (n *Notifier) PlayCompletionSound() error {
	if !n.opts.Sound {
		return nil
	}
	n.background("play sound", n.playSound)
	return nil
}

func (n *Notifier) playSound() error {
	for _, args := range soundCommands() {
		if err := n.run(args); err == nil {
			return nil
		}
	}
	if n.bell == nil {
		return fmt.Errorf("play sound: %w", ErrUnsupported)
	}
	_, err := fmt.Fprint(n.bell, "\a")
	return err
}

// EnableFocusMode holds an idle/sleep inhibitor until DisableFocusMode.
// Calling it while already enabled is a no-op.
func (n *Notifier) EnableFocusMode() error {
	if !n.opts.FocusMode {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.inhibitor != nil {
		return nil
	}
	args := inhibitCommand()
	if len(args) == 0 {
		return fmt.Errorf("focus mode: %w", ErrUnsupported)
	}
	p, err := n.spawn(args)
	if err != nil {
		return fmt.Errorf("focus mode: %w", err)
	}
	n.inhibitor = p
	n.logger.Debug("Focus mode enabled")
	return nil
}

func (n *Notifier) DisableFocusMode() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.inhibitor == nil {
		return nil
	}
	err := n.inhibitor.Stop()
	n.inhibitor = nil
	n.logger.Debug("Focus mode disabled")
	if err != nil {
		return fmt.Errorf("release focus mode: %w", err)
	}
	return nil
}

// FocusModeActive reports whether an inhibitor is held.
func (n *Notifier) FocusModeActive() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inhibitor != nil
}

func runCommand(args []string) error {
	if len(args) == 0 {
		return ErrUnsupported
	}
	return exec.Command(args[0], args[1:]...).Run()
}

type cmdProcess struct {
	cmd *exec.Cmd
}

func (p cmdProcess) Stop() error {
	if err := p.cmd.Process.Kill(); err != nil {
		return err
	}
	// Wait reports the kill signal; only reaping matters here.
	p.cmd.Wait()
	return nil
}

func spawnCommand(args []string) (process, error) {
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmdProcess{cmd: cmd}, nil
}

// Nop discards every effect.
type Nop struct{}

func (Nop) Notify(Kind, Payload) error          { return nil }
func (Nop) PlayCompletionSound() error          { return nil }
func (Nop) RequestNotificationPermission() bool { return false }
func (Nop) EnableFocusMode() error              { return nil }
func (Nop) DisableFocusMode() error             { return nil }
