package ports

import "github.com/bnema/scout-cli/internal/domain"

// SessionStore reads and writes the small JSON session descriptor under the
// resolved instance directory. A missing descriptor is not an error: Load
// returns a zero Session.
type SessionStore interface {
	Load() (domain.Session, error)
	Save(session domain.Session) error
	Clear() error
}

// SnapshotStore persists the namespace snapshot between invocations.
// Continuity is best effort: Load returns an empty snapshot for a missing,
// corrupt, or version-mismatched file, and Save must be atomic so a
// concurrent reader never observes a half-written snapshot.
type SnapshotStore interface {
	LoadSnapshot() (domain.Snapshot, error)
	SaveSnapshot(snapshot domain.Snapshot) error
}
