package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	storeFileName = "session.json"
	appDirName    = "nowplaying"
)

// Record is the on-disk form of the persisted session.
type Record struct {
	ClientID  int       `json:"clientId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FileStore persists the client id to a JSON file. The core only ever
// writes it; Load exists for consumers and tests.
type FileStore struct {
	dir string
}

// NewFileStore creates a store in dir. The directory is created on the first
// save. Pass an empty string to use the default XDG state path.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultStateDir()
	}
	return &FileStore{dir: dir}
}

// Path returns the full path to the session file.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, storeFileName)
}

// SaveClientID writes the id using a temp-file-then-rename so a crash never
// leaves a truncated file behind.
func (s *FileStore) SaveClientID(id int) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}

	data, err := json.MarshalIndent(Record{ClientID: id, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return fmt.Errorf("renaming session file: %w", err)
	}
	committed = true

	return nil
}

// Load reads the persisted record. ok is false when nothing was saved yet.
func (s *FileStore) Load() (rec Record, ok bool, err error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("reading session: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("parsing session: %w", err)
	}
	return rec, true, nil
}

// DefaultStateDir returns ~/.local/state/nowplaying, respecting
// XDG_STATE_HOME if set.
func DefaultStateDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}
