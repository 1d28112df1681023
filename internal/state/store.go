package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quantara-labs/falcon/internal/position"
)

// Document is the on-disk shape of the bot's position state.
type Document struct {
	SavedAt   time.Time                    `json:"saved_at"`
	Positions map[string]position.Snapshot `json:"positions"`
}

// Store persists open-position state across restarts. Writes go through a
// temp file and atomic rename so a crash mid-save never corrupts the last
// good state; the previous file is kept as a backup.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = "state"
	}
	return &Store{dir: dir}
}

func (s *Store) statePath() string  { return filepath.Join(s.dir, "positions.json") }
func (s *Store) backupPath() string { return filepath.Join(s.dir, "positions_backup.json") }

// Load reads the persisted positions. A missing file is a clean start,
// not an error.
func (s *Store) Load() (map[string]position.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.statePath())
	if os.IsNotExist(err) {
		return map[string]position.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if doc.Positions == nil {
		doc.Positions = map[string]position.Snapshot{}
	}
	return doc.Positions, nil
}

// Save writes the positions atomically, backing up the previous file.
func (s *Store) Save(positions map[string]position.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	doc := Document{SavedAt: time.Now().UTC(), Positions: positions}
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	statePath := s.statePath()
	if _, err := os.Stat(statePath); err == nil {
		if prev, err := os.ReadFile(statePath); err == nil {
			os.WriteFile(s.backupPath(), prev, 0644)
		}
	}

	tempPath := statePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := os.Rename(tempPath, statePath); err != nil {
		return fmt.Errorf("failed to move state file: %w", err)
	}
	return nil
}
