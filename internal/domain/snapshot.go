package domain

// SnapshotVersion is bumped whenever the on-disk envelope changes shape.
// A version mismatch on load is treated the same as a missing file.
const SnapshotVersion = 1

// Snapshot is the durable record of caller-defined variables carried between
// invocations, plus internal bookkeeping that is never exposed as an ordinary
// namespace variable.
type Snapshot struct {
	Version int              `cbor:"version"`
	Vars    map[string]Value `cbor:"vars"`

	// Bookkeeping from the most recent invocation.
	LastStdout string `cbor:"last_stdout,omitempty"`
	LastStderr string `cbor:"last_stderr,omitempty"`
	LastError  string `cbor:"last_error,omitempty"`

	// Subcalls is the named-result table: delegation results keyed by
	// chunk id, kept locally for fast access without a server round trip.
	// Carried forward untouched when an invocation performs no delegation.
	Subcalls Value `cbor:"subcalls,omitempty"`
}

// EmptySnapshot returns a snapshot ready to accept variables.
func EmptySnapshot() Snapshot {
	return Snapshot{
		Version:  SnapshotVersion,
		Vars:     map[string]Value{},
		Subcalls: MapValue(),
	}
}
