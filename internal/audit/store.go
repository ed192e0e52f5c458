// Package audit provides the durable local audit trail for authentication
// and session events.
//
// Records are stored as pretty-printed JSON arrays in two independent files,
// plus a single-object machine inventory file. Appends are whole-file
// read-modify-write cycles: trivially recoverable and human-readable, at the
// cost of O(n) per append. Corrupt or missing files are recovered as empty
// collections, never surfaced as errors on the read path.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/faerion/fsauth/internal/sysinfo"
)

// File names inside the agent data directory.
const (
	logFileName    = "FSAuthLogs.json"
	actionFileName = "FSactions.json"
	pcInfoFileName = "FSPcInfo.json"
)

// jsonIndent is the on-disk indentation. The four-space pretty format is
// part of the file contract, not cosmetics.
const jsonIndent = "    "

// Store persists audit entries, user actions and the PC inventory snapshot
// under a single data directory. Appends are single-flight within the
// process; no cross-process locking is performed, so concurrent external
// writers race with last-writer-wins semantics.
type Store struct {
	dir        string
	logPath    string
	actionPath string
	pcInfoPath string
	logger     zerolog.Logger

	mu sync.Mutex
}

// NewStore creates a store rooted at dir. The directory is created lazily
// on the first write-triggering call.
func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{
		dir:        dir,
		logPath:    filepath.Join(dir, logFileName),
		actionPath: filepath.Join(dir, actionFileName),
		pcInfoPath: filepath.Join(dir, pcInfoFileName),
		logger:     logger.With().Str("component", "audit_store").Logger(),
	}
}

// Dir returns the data directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// ensureDir creates the data directory if needed and re-asserts restrictive
// permissions on every call. Permission failures are ignored: keeping the
// directory usable matters more than keeping it locked down.
func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	_ = os.Chmod(s.dir, 0700)
	return nil
}

// AppendEntry appends one entry to the audit log file, merging with whatever
// the file already holds. Unparsable prior content is discarded.
func (s *Store) AppendEntry(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := readArray[Entry](s.logPath)
	entries = append(entries, entry)

	if err := s.writeFile(s.logPath, entries); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// AppendUserAction appends one action record to the action log file.
func (s *Store) AppendUserAction(action UserAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions := readArray[UserAction](s.actionPath)
	actions = append(actions, action)

	if err := s.writeFile(s.actionPath, actions); err != nil {
		return fmt.Errorf("append user action: %w", err)
	}
	return nil
}

// Entries returns all stored audit entries in append order. Any read or
// parse failure yields an empty slice.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readArray[Entry](s.logPath)
}

// UserActions returns all stored user actions in append order.
func (s *Store) UserActions() []UserAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readArray[UserAction](s.actionPath)
}

// ClearAll overwrites both log files with empty arrays. The PC inventory
// file is left untouched.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeFile(s.logPath, []Entry{}); err != nil {
		return fmt.Errorf("clear log entries: %w", err)
	}
	if err := s.writeFile(s.actionPath, []UserAction{}); err != nil {
		return fmt.Errorf("clear user actions: %w", err)
	}

	s.logger.Info().Msg("audit logs cleared")
	return nil
}

// SavePCInfo overwrites the PC inventory file with the given snapshot.
func (s *Store) SavePCInfo(snap sysinfo.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeFile(s.pcInfoPath, snap); err != nil {
		return fmt.Errorf("save pc info: %w", err)
	}
	return nil
}

// PCInfo reads back the stored inventory snapshot. The second return value
// reports whether a parsable snapshot was present.
func (s *Store) PCInfo() (sysinfo.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.pcInfoPath)
	if err != nil {
		return sysinfo.Snapshot{}, false
	}

	var snap sysinfo.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return sysinfo.Snapshot{}, false
	}
	return snap, true
}

// writeFile marshals v pretty-printed and writes it, truncating the prior
// contents. Callers must hold s.mu.
func (s *Store) writeFile(path string, v any) error {
	if err := s.ensureDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", jsonIndent)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readArray parses a whole JSON-array file. A missing or corrupt file is
// treated as an empty array: the read path never fails its caller.
func readArray[T any](path string) []T {
	data, err := os.ReadFile(path)
	if err != nil {
		return []T{}
	}

	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return []T{}
	}
	if out == nil {
		return []T{}
	}
	return out
}
