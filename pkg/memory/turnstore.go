package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TurnFileName is the turn log file inside a user's memory directory.
const TurnFileName = "turns.json"

// TurnStore is the append-only ordered turn log for one user, persisted
// as a JSON file. Every write flushes the full sequence to disk before
// returning.
type TurnStore struct {
	path string

	// now stamps timestamps at write time. Overridable in tests.
	now func() time.Time
}

// NewTurnStore creates a store backed by dir/turns.json. The directory
// must already exist; OpenBuffer and the agent create user directories
// on demand.
func NewTurnStore(dir string) *TurnStore {
	return &TurnStore{
		path: filepath.Join(dir, TurnFileName),
		now:  time.Now,
	}
}

// Load reads the persisted turn sequence. A missing or unreadable file
// loads as an empty log; corrupt state is never fatal.
func (s *TurnStore) Load() ([]Turn, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil
	}
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, nil
	}
	return turns, nil
}

// Append stamps each new turn with the current time and persists the
// full sequence. Returns the complete sequence after the append.
func (s *TurnStore) Append(turns ...Turn) ([]Turn, error) {
	existing, _ := s.Load()
	now := s.now()
	for i := range turns {
		turns[i].Timestamp = now
	}
	all := append(existing, turns...)
	if err := s.write(all); err != nil {
		return nil, err
	}
	return all, nil
}

// Overwrite replaces the persisted sequence, preserving the timestamps
// carried by the given turns. Used by the pruning path, which only ever
// removes turns.
func (s *TurnStore) Overwrite(turns []Turn) error {
	return s.write(turns)
}

// Clear truncates the log to empty and persists immediately.
func (s *TurnStore) Clear() error {
	return s.write([]Turn{})
}

func (s *TurnStore) write(turns []Turn) error {
	data, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("turnstore: marshal: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("turnstore: write: %w", err)
	}
	return nil
}
