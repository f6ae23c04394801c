// Package statestore owns the durable files under one instance directory:
// the JSON session descriptor and the binary namespace snapshot.
package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bnema/scout-cli/internal/domain"
	"github.com/bnema/scout-cli/internal/ports"
	"github.com/fxamacker/cbor/v2"
)

const (
	sessionFileName  = "session.json"
	snapshotFileName = "namespace.bin"
	stateFileMode    = 0o600
	stateDirMode     = 0o700
	sessionTempGlob  = ".session-*.json.tmp"
	snapshotTempGlob = ".namespace-*.bin.tmp"
)

// Store reads and writes the per-instance state files. One instance directory
// is assumed to be driven by a single invocation at a time; concurrent
// writers race last-writer-wins, but a reader never sees a partial file.
type Store struct {
	dir string
}

var (
	_ ports.SessionStore  = (*Store)(nil)
	_ ports.SnapshotStore = (*Store)(nil)
)

func New(instanceDir string) *Store {
	return &Store{dir: instanceDir}
}

// Load returns the session descriptor, or a zero Session when none exists.
func (s *Store) Load() (domain.Session, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, sessionFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Session{}, nil
		}
		return domain.Session{}, fmt.Errorf("read session file: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return domain.Session{}, fmt.Errorf("decode session file: %w", err)
	}
	return session, nil
}

// Save writes the session descriptor atomically.
func (s *Store) Save(session domain.Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.writeAtomic(sessionFileName, sessionTempGlob, data)
}

// Clear removes the session descriptor; a missing file is not an error.
func (s *Store) Clear() error {
	err := os.Remove(filepath.Join(s.dir, sessionFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// LoadSnapshot is best effort: a missing, corrupt, or version-mismatched file
// yields an empty snapshot, never an error. Continuity is a convenience, not
// a correctness requirement.
func (s *Store) LoadSnapshot() (domain.Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, snapshotFileName))
	if err != nil {
		return domain.EmptySnapshot(), nil
	}

	var snapshot domain.Snapshot
	if err := cbor.Unmarshal(data, &snapshot); err != nil {
		return domain.EmptySnapshot(), nil
	}
	if snapshot.Version != domain.SnapshotVersion {
		return domain.EmptySnapshot(), nil
	}
	if snapshot.Vars == nil {
		snapshot.Vars = map[string]domain.Value{}
	}
	return snapshot, nil
}

// SaveSnapshot overwrites the snapshot file atomically, creating parent
// directories as needed.
func (s *Store) SaveSnapshot(snapshot domain.Snapshot) error {
	snapshot.Version = domain.SnapshotVersion
	data, err := cbor.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.writeAtomic(snapshotFileName, snapshotTempGlob, data)
}

func (s *Store) writeAtomic(name, tempGlob string, data []byte) error {
	if err := os.MkdirAll(s.dir, stateDirMode); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tempFile, err := os.CreateTemp(s.dir, tempGlob)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}

	if err := tempFile.Chmod(stateFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp state file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tempName, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}

	cleanup = false
	return nil
}
