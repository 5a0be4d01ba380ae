package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Logger is shared by every package. It discards until Initialize enables it.
var Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

var logFile *os.File

// Initialize points Logger at a JSON log file when debug is on or a file is
// given. Without a file a fresh uuid-named log is created under Dir and the
// oldest logs beyond maxLogFiles are removed.
func Initialize(debug bool, debugFile string, maxLogFiles int) (string, error) {
	if os.Getenv("POMO_DEBUG") == "1" {
		debug = true
	}
	if env := os.Getenv("POMO_DEBUG_FILE"); env != "" && debugFile == "" {
		debugFile = env
	}
	if env := os.Getenv("POMO_MAX_LOG_FILES"); env != "" {
		if n, err := strconv.Atoi(env); err == nil {
			maxLogFiles = n
		}
	}

	if !debug && debugFile == "" {
		Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		return "", nil
	}

	path := debugFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return "", fmt.Errorf("log directory: %w", err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create log directory: %w", err)
		}
		if maxLogFiles > 0 {
			if err := rotate(dir, maxLogFiles); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: log rotation failed: %v\n", err)
			}
		}
		path = filepath.Join(dir, uuid.New().String()+".log")
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}
	Close()
	logFile = f
	Logger = slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	Logger.Info("debug logging initialized", "log_file", path)
	return path, nil
}

// Close releases the current log file, if any, and resets Logger to discard.
func Close() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	return err
}

// rotate deletes the oldest .log files so that one more fits under limit.
func rotate(dir string, limit int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read log directory: %w", err)
	}

	type logInfo struct {
		path    string
		modTime time.Time
	}
	var logs []logInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".log" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		logs = append(logs, logInfo{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	if len(logs) < limit {
		return nil
	}

	sort.Slice(logs, func(i, j int) bool {
		return logs[i].modTime.Before(logs[j].modTime)
	})
	for i := 0; i < len(logs)-limit+1; i++ {
		if err := os.Remove(logs[i].path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to delete old log file %s: %v\n", logs[i].path, err)
		}
	}
	return nil
}

// Dir returns the per-OS directory for rotated logs.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "pomo"), nil
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "pomo", "logs"), nil
	default:
		state := os.Getenv("XDG_STATE_HOME")
		if state == "" {
			state = filepath.Join(home, ".local", "state")
		}
		return filepath.Join(state, "pomo", "logs"), nil
	}
}
