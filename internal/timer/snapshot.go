package timer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sadopc/pomo/internal/store"
)

// Snapshot is the persisted timer state, rewritten on every state change.
type Snapshot struct {
	TimeRemainingSeconds int               `json:"timeRemainingSeconds"`
	Status               Status            `json:"status"`
	SessionType          store.SessionType `json:"sessionType"`
	SessionCount         int               `json:"sessionCount"`
	CurrentTaskID        *int64            `json:"currentTaskId"`
	SessionStartTime     *time.Time        `json:"sessionStartTime"`
	LastUpdated          time.Time         `json:"lastUpdated"`
}

// SnapshotStore persists a single timer snapshot. Load returns nil, nil when
// nothing has been saved yet.
type SnapshotStore interface {
	Load() (*Snapshot, error)
	Save(Snapshot) error
}

// DefaultSnapshotPath returns $XDG_STATE_HOME/pomo/timer.json, falling back
// to ~/.local/state.
func DefaultSnapshotPath() (string, error) {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		stateHome = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateHome, "pomo", "timer.json"), nil
}

// FileSnapshotStore keeps the snapshot in a JSON file guarded by an
// advisory lock, so a `pomo status` in another shell never reads a torn write.
type FileSnapshotStore struct {
	path string
}

func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

func (f *FileSnapshotStore) Path() string { return f.path }

func (f *FileSnapshotStore) Load() (*Snapshot, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	if err := lockShared(file); err != nil {
		return nil, fmt.Errorf("lock snapshot: %w", err)
	}
	defer unlockFile(file)

	var snap Snapshot
	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (f *FileSnapshotStore) Save(snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	file, err := os.OpenFile(f.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	if err := lockExclusive(file); err != nil {
		return fmt.Errorf("lock snapshot: %w", err)
	}
	defer unlockFile(file)

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("truncate snapshot: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("seek snapshot: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// MemorySnapshotStore keeps the snapshot in memory.
type MemorySnapshotStore struct {
	mu    sync.Mutex
	snap  *Snapshot
	saves int
}

func (m *MemorySnapshotStore) Load() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, nil
	}
	s := *m.snap
	return &s, nil
}

func (m *MemorySnapshotStore) Save(snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &snap
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemorySnapshotStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Restore turns a loaded snapshot into live state at now.
//
// A running snapshot loses the time elapsed since it was written. If that
// runs it out, the stale session is dropped: the timer comes back idle with
// the nominal duration and nothing is logged for it.
func Restore(snap *Snapshot, settings *store.Settings, now time.Time) State {
	st := State{
		RemainingSeconds: snap.TimeRemainingSeconds,
		Status:           snap.Status,
		SessionType:      snap.SessionType,
		SessionCount:     snap.SessionCount,
		CurrentTaskID:    copyID(snap.CurrentTaskID),
	}
	if snap.SessionStartTime != nil {
		t := *snap.SessionStartTime
		st.SessionStartTime = &t
	}
	if !st.SessionType.Valid() {
		st.SessionType = store.SessionWork
	}
	if st.SessionCount < 0 {
		st.SessionCount = 0
	}

	switch st.Status {
	case Running:
		if elapsed := int(now.Sub(snap.LastUpdated) / time.Second); elapsed > 0 {
			st.RemainingSeconds -= elapsed
		}
		if st.RemainingSeconds <= 0 {
			st.Status = Idle
			st.SessionStartTime = nil
		}
	case Paused:
		if st.RemainingSeconds <= 0 {
			st.Status = Idle
			st.SessionStartTime = nil
		}
	default:
		st.Status = Idle
		st.SessionStartTime = nil
	}
	if st.Status == Idle {
		st.RemainingSeconds = nominalSeconds(settings, st.SessionType)
	}
	return st
}
