package statestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/scout-cli/internal/domain"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingSessionReturnsZero(t *testing.T) {
	store := New(t.TempDir())

	session, err := store.Load()
	require.NoError(t, err)
	assert.False(t, session.Active())
	assert.Empty(t, session.SessionID)
}

func TestSessionRoundTrip(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "sessions", "worker-a"))

	want := domain.Session{
		SessionID: "sess-42",
		Host:      "127.0.0.1",
		Port:      3002,
		Project:   "/home/user/project",
		CreatedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want.SessionID, got.SessionID)
	assert.Equal(t, want.Host, got.Host)
	assert.Equal(t, want.Port, got.Port)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, got.Active())
}

func TestCorruptSessionIsAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionFileName), []byte("{not json"), 0o600))

	_, err := New(dir).Load()
	require.Error(t, err)
}

func TestClearIsIdempotent(t *testing.T) {
	store := New(t.TempDir())

	require.NoError(t, store.Save(domain.Session{SessionID: "s1"}))
	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	session, err := store.Load()
	require.NoError(t, err)
	assert.False(t, session.Active())
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := New(t.TempDir())

	snapshot := domain.EmptySnapshot()
	snapshot.Vars["count"] = domain.IntValue(7)
	snapshot.Vars["notes"] = domain.ListValue(
		domain.StringValue("alpha"),
		domain.BoolValue(true),
	)
	snapshot.LastStdout = "seven"
	require.NoError(t, store.SaveSnapshot(snapshot))

	got, err := store.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotVersion, got.Version)
	assert.Equal(t, int64(7), got.Vars["count"].Int)
	assert.Equal(t, "seven", got.LastStdout)
	require.Len(t, got.Vars["notes"].List, 2)
	assert.Equal(t, "alpha", got.Vars["notes"].List[0].Str)
}

func TestCorruptSnapshotYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFileName), []byte("garbage"), 0o600))

	got, err := New(dir).LoadSnapshot()
	require.NoError(t, err)
	assert.Empty(t, got.Vars)
	assert.Equal(t, domain.SnapshotVersion, got.Version)
}

func TestMissingSnapshotYieldsEmpty(t *testing.T) {
	got, err := New(t.TempDir()).LoadSnapshot()
	require.NoError(t, err)
	assert.NotNil(t, got.Vars)
	assert.Empty(t, got.Vars)
}

func TestVersionMismatchYieldsEmpty(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	future := domain.EmptySnapshot()
	future.Vars["stale"] = domain.StringValue("old")
	future.Version = domain.SnapshotVersion + 1
	raw, err := cbor.Marshal(future)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotFileName), raw, 0o600))

	got, err := store.LoadSnapshot()
	require.NoError(t, err)
	assert.Empty(t, got.Vars)
}

func TestSnapshotWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	require.NoError(t, store.SaveSnapshot(domain.EmptySnapshot()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, snapshotFileName, entries[0].Name())
}

func TestInstancesAreIsolated(t *testing.T) {
	root := t.TempDir()
	alpha := New(filepath.Join(root, "sessions", "alpha"))
	beta := New(filepath.Join(root, "sessions", "beta"))

	snap := domain.EmptySnapshot()
	snap.Vars["who"] = domain.StringValue("alpha")
	require.NoError(t, alpha.SaveSnapshot(snap))

	got, err := beta.LoadSnapshot()
	require.NoError(t, err)
	assert.Empty(t, got.Vars)
}
