// Package session implements the shared result scratch-pad. Analysis tools
// save their output under a caller chosen key so later tool calls can pick
// the result back up, within a run or across restarts.
package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bascanada/logai-mcp/pkg/log"
	"github.com/bascanada/logai-mcp/pkg/ty"
)

// Entry is one saved result with its metadata.
type Entry struct {
	Key       string          `json:"key"`
	Kind      string          `json:"kind"`
	Tool      string          `json:"tool"`
	CreatedAt time.Time       `json:"createdAt"`
	Rows      int             `json:"rows"`
	Data      json.RawMessage `json:"data"`
}

// EntryInfo is the listing view of an entry, without the payload.
type EntryInfo struct {
	Key       string    `json:"key"`
	Kind      string    `json:"kind"`
	Tool      string    `json:"tool"`
	CreatedAt time.Time `json:"createdAt"`
	Rows      int       `json:"rows"`
}

// Store holds saved results keyed by name. Saving under an existing key
// replaces the previous entry. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry

	// path of the persistence file, empty disables persistence
	path string
}

func NewStore(path string) *Store {
	return &Store{
		entries: make(map[string]Entry),
		path:    path,
	}
}

// Save stores value under key, marshaling it to JSON. rows describes the
// cardinality of the result (entries, templates, clusters).
func (s *Store) Save(key, kind, tool string, rows int, value interface{}) (Entry, error) {
	if key == "" {
		return Entry{}, fmt.Errorf("save key is empty")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal result for key %s: %w", key, err)
	}

	entry := Entry{
		Key:       key,
		Kind:      kind,
		Tool:      tool,
		CreatedAt: time.Now().UTC(),
		Rows:      rows,
		Data:      data,
	}

	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()

	return entry, nil
}

// Get returns the entry stored under key.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok
}

// Drop removes the entry stored under key, reporting whether it existed.
func (s *Store) Drop(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok
}

// List returns the metadata of every entry, sorted by key.
func (s *Store) List() []EntryInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]EntryInfo, 0, len(s.entries))
	for _, e := range s.entries {
		infos = append(infos, EntryInfo{
			Key:       e.Key,
			Kind:      e.Kind,
			Tool:      e.Tool,
			CreatedAt: e.CreatedAt,
			Rows:      e.Rows,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Persist writes the store to its configured file.
func (s *Store) Persist() error {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	snapshot := make(map[string]Entry, len(s.entries))
	for k, v := range s.entries {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	if err := ty.WriteJSONFile(s.path, snapshot); err != nil {
		return fmt.Errorf("failed to persist session to %s: %w", s.path, err)
	}
	log.Debug("session persisted to %s (%d entries)"+ty.LB, s.path, len(snapshot))
	return nil
}

// Restore loads previously persisted entries, merging them under any that
// were saved since startup. A missing file is not an error.
func (s *Store) Restore() error {
	if s.path == "" {
		return nil
	}

	var snapshot map[string]Entry
	if err := ty.ReadJSONFile(s.path, &snapshot); err != nil {
		return nil
	}

	s.mu.Lock()
	for k, v := range snapshot {
		if _, exists := s.entries[k]; !exists {
			s.entries[k] = v
		}
	}
	s.mu.Unlock()

	log.Debug("session restored from %s (%d entries)"+ty.LB, s.path, len(snapshot))
	return nil
}
