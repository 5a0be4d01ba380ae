package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/sadopc/pomo/internal/clock"
	"github.com/sadopc/pomo/internal/config"
	"github.com/sadopc/pomo/internal/logging"
	"github.com/sadopc/pomo/internal/notify"
	"github.com/sadopc/pomo/internal/store"
	"github.com/sadopc/pomo/internal/timer"
	"github.com/sadopc/pomo/internal/tui"
)

// CLI is the kong command tree.
type CLI struct {
	Version     kong.VersionFlag `help:"Show version information"`
	Config      string           `help:"Path to config file" default:"~/.config/pomo/config.yaml" env:"POMO_CONFIG"`
	Debug       bool             `help:"Enable debug logging to file" short:"d"`
	DebugFile   string           `help:"Custom path for debug log file (disables rotation)"`
	MaxLogFiles int              `help:"Maximum number of log files to keep (0 = unlimited, -1 = config value)" default:"-1"`
	DBPath      string           `help:"Path to SQLite database" env:"POMO_DB_PATH"`
	StatePath   string           `help:"Path to timer snapshot file" env:"POMO_STATE_PATH"`

	Run      RunCmd      `cmd:"" help:"Start the pomo TUI (default)" default:"1"`
	Status   StatusCmd   `cmd:"status" help:"Show the current timer state"`
	Stats    StatsCmd    `cmd:"stats" help:"Show productivity statistics"`
	Task     TaskCmd     `cmd:"task" help:"Manage tasks (add, list, done, undo, rm)"`
	Settings SettingsCmd `cmd:"settings" help:"Show or change timer settings"`
	Export   ExportCmd   `cmd:"export" help:"Export all data as JSON or sessions as CSV"`
	Import   ImportCmd   `cmd:"import" help:"Replace all data with a JSON export"`
	Sound    SoundCmd    `cmd:"sound" help:"Play the completion sound"`
	Init     InitCmd     `cmd:"init" help:"Write the current configuration to the config file"`

	cfg   *config.Config `kong:"-"`
	out   io.Writer      `kong:"-"`
	clock clock.Clock    `kong:"-"`
}

// AfterApply loads the config file, lets flags override it and starts logging.
func (c *CLI) AfterApply() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.DBPath != "" {
		if cfg.DBPath, err = config.ExpandPath(c.DBPath); err != nil {
			return err
		}
	}
	if c.StatePath != "" {
		if cfg.StatePath, err = config.ExpandPath(c.StatePath); err != nil {
			return err
		}
	}
	if c.Debug {
		cfg.Debug = true
	}
	if c.DebugFile != "" {
		cfg.LogFile = c.DebugFile
	}
	if c.MaxLogFiles >= 0 {
		cfg.MaxLogFiles = c.MaxLogFiles
	}
	c.cfg = cfg

	if _, err := logging.Initialize(cfg.Debug, cfg.LogFile, cfg.MaxLogFiles); err != nil {
		return err
	}
	logging.Logger = logging.Logger.With("run_id", uuid.New().String())
	return nil
}

func (c *CLI) stdout() io.Writer {
	if c.out != nil {
		return c.out
	}
	return os.Stdout
}

func (c *CLI) now() clock.Clock {
	if c.clock != nil {
		return c.clock
	}
	return clock.Real()
}

func (c *CLI) conf() *config.Config {
	if c.cfg == nil {
		c.cfg = config.DefaultConfig()
	}
	return c.cfg
}

func (c *CLI) openStore() (*store.Store, error) {
	path := c.conf().DBPath
	if path == "" {
		var err error
		if path, err = store.DefaultDBPath(); err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
	}
	s, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logging.Logger.Debug("Database opened", "path", path)
	return s, nil
}

func (c *CLI) snapshots() (*timer.FileSnapshotStore, error) {
	path := c.conf().StatePath
	if path == "" {
		var err error
		if path, err = timer.DefaultSnapshotPath(); err != nil {
			return nil, err
		}
	}
	return timer.NewFileSnapshotStore(path), nil
}

// notifier builds the desktop effects. bell may be nil when the terminal is
// owned by the TUI.
func (c *CLI) notifier(bell io.Writer) *notify.Notifier {
	cfg := c.conf()
	return notify.New(notify.Options{
		Notifications: cfg.Notifications,
		Sound:         cfg.Sound,
		FocusMode:     cfg.FocusMode,
		Bell:          bell,
		Logger:        logging.Logger,
	})
}

// newEngine wires a timer engine over s with the saved settings and snapshot.
func (c *CLI) newEngine(s *store.Store, fx timer.Effects) (*timer.Engine, error) {
	settings, err := s.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	snaps, err := c.snapshots()
	if err != nil {
		return nil, err
	}
	return timer.New(timer.Deps{
		Store:     s,
		Settings:  settings,
		Clock:     c.now(),
		Effects:   fx,
		Snapshots: snaps,
		Logger:    logging.Logger,
	})
}

// RunCmd starts the TUI, or a plain ticking loop with --headless.
type RunCmd struct {
	Headless bool  `help:"Run the timer without the TUI, printing the countdown"`
	Task     int64 `help:"Task id to bind the first session to (headless only)"`
}

func (r *RunCmd) Run(cli *CLI) error {
	s, err := cli.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if r.Headless {
		fx := cli.notifier(cli.stdout())
		engine, err := cli.newEngine(s, fx)
		if err != nil {
			return err
		}
		err = r.runHeadless(cli, engine)
		fx.Wait()
		return err
	}

	engine, err := cli.newEngine(s, cli.notifier(nil))
	if err != nil {
		return err
	}

	logging.Logger.Info("Starting pomo TUI")
	app := tui.NewApp(s, engine, cli.now())
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		logging.Logger.Error("TUI program error", "error", err)
		engine.Close()
		return fmt.Errorf("run program: %w", err)
	}
	logging.Logger.Info("TUI program exited normally")
	return engine.Close()
}

func (r *RunCmd) runHeadless(cli *CLI, engine *timer.Engine) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var taskID *int64
	if r.Task > 0 {
		taskID = &r.Task
	}
	if err := engine.Start(taskID); err != nil {
		return err
	}
	out := cli.stdout()
	last := -1
	runner := timer.NewRunner(engine, 0)
	runner.OnTick = func(st timer.State) {
		if st.RemainingSeconds == last {
			return
		}
		last = st.RemainingSeconds
		fmt.Fprintf(out, "\r%-10s %s %-8s", st.SessionType, formatClock(st.RemainingSeconds), st.Status)
	}
	runner.OnError = func(err error) {
		logging.Logger.Error("Tick failed", "error", err)
	}
	err := runner.Run(ctx)
	fmt.Fprintln(out)
	return err
}

// SoundCmd plays the completion sound once.
type SoundCmd struct{}

func (s *SoundCmd) Run(cli *CLI) error {
	n := notify.New(notify.Options{Sound: true, Bell: cli.stdout(), Logger: logging.Logger})
	err := n.PlayCompletionSound()
	n.Wait()
	return err
}

func formatClock(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
