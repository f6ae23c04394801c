package application

import (
	"context"
	"strings"
	"testing"

	"github.com/bnema/scout-cli/internal/domain"
	"github.com/bnema/scout-cli/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStores struct {
	session  domain.Session
	loadErr  error
	snapshot domain.Snapshot
	saved    []domain.Snapshot
	saveErr  error
}

func (f *fakeStores) Load() (domain.Session, error) { return f.session, f.loadErr }
func (f *fakeStores) Save(s domain.Session) error   { f.session = s; return nil }
func (f *fakeStores) Clear() error                  { f.session = domain.Session{}; return nil }
func (f *fakeStores) LoadSnapshot() (domain.Snapshot, error) {
	return f.snapshot, nil
}
func (f *fakeStores) SaveSnapshot(s domain.Snapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, s)
	return nil
}

type scriptedSandbox struct {
	outcome  ports.SandboxOutcome
	restored map[string]domain.Value
}

func (s *scriptedSandbox) Run(_ context.Context, _ string, restored map[string]domain.Value) ports.SandboxOutcome {
	s.restored = restored
	return s.outcome
}

type staticRecorder struct {
	results []domain.SubcallResult
}

func (r *staticRecorder) Recorded() []domain.SubcallResult {
	out := r.results
	r.results = nil
	return out
}

func activeStores() *fakeStores {
	return &fakeStores{
		session:  domain.Session{SessionID: "sess-1", Host: "127.0.0.1", Port: 3002},
		snapshot: domain.EmptySnapshot(),
	}
}

func TestRunRequiresActiveSession(t *testing.T) {
	stores := &fakeStores{snapshot: domain.EmptySnapshot()}
	svc := NewExecService(stores, stores, &scriptedSandbox{}, &staticRecorder{}, nil)

	_, err := svc.Run(context.Background(), "x = 1", false)
	require.ErrorIs(t, err, domain.ErrNoSession)
	assert.Empty(t, stores.saved)
}

func TestRunRestoresVarsAndPersistsGlobals(t *testing.T) {
	stores := activeStores()
	stores.snapshot.Vars["carried"] = domain.IntValue(1)
	sandbox := &scriptedSandbox{outcome: ports.SandboxOutcome{
		Stdout:  "ok\n",
		Globals: map[string]domain.Value{"carried": domain.IntValue(2)},
	}}
	svc := NewExecService(stores, stores, sandbox, &staticRecorder{}, nil)

	resp, err := svc.Run(context.Background(), "carried += 1", false)
	require.NoError(t, err)

	assert.Equal(t, int64(1), sandbox.restored["carried"].Int)
	require.Len(t, stores.saved, 1)
	assert.Equal(t, int64(2), stores.saved[0].Vars["carried"].Int)
	assert.Equal(t, "ok\n", stores.saved[0].LastStdout)
	assert.Equal(t, "ok\n", resp.Stdout)
}

func TestFailedExecutionStillSaves(t *testing.T) {
	stores := activeStores()
	sandbox := &scriptedSandbox{outcome: ports.SandboxOutcome{
		Error:   "Traceback: boom",
		Stderr:  "Traceback: boom",
		Globals: map[string]domain.Value{"partial": domain.BoolValue(true)},
	}}
	svc := NewExecService(stores, stores, sandbox, &staticRecorder{}, nil)

	resp, err := svc.Run(context.Background(), "fail()", false)
	require.NoError(t, err)

	require.Len(t, stores.saved, 1)
	assert.True(t, stores.saved[0].Vars["partial"].Bool)
	assert.Equal(t, "Traceback: boom", stores.saved[0].LastError)
	assert.Equal(t, "Traceback: boom", resp.Error)
	assert.Empty(t, resp.Stderr)
}

func TestSubcallResultsFoldIntoTable(t *testing.T) {
	stores := activeStores()
	recorder := &staticRecorder{results: []domain.SubcallResult{
		{ChunkID: "c1", Query: "q1", Findings: []domain.Finding{{Point: "p", Confidence: "high"}}},
	}}
	svc := NewExecService(stores, stores, &scriptedSandbox{outcome: ports.SandboxOutcome{
		Globals: map[string]domain.Value{},
	}}, recorder, nil)

	_, err := svc.Run(context.Background(), `llm_query("q1", chunk_id="c1")`, false)
	require.NoError(t, err)

	require.Len(t, stores.saved, 1)
	entry, ok := stores.saved[0].Subcalls.Get("c1")
	require.True(t, ok)
	query, ok := entry.Get("query")
	require.True(t, ok)
	assert.Equal(t, "q1", query.Str)
}

func TestTableCarriesForwardWithoutDelegation(t *testing.T) {
	stores := activeStores()
	stores.snapshot.Subcalls.Set("old", domain.StringValue("kept"))
	svc := NewExecService(stores, stores, &scriptedSandbox{outcome: ports.SandboxOutcome{
		Globals: map[string]domain.Value{},
	}}, &staticRecorder{}, nil)

	_, err := svc.Run(context.Background(), "x = 1", false)
	require.NoError(t, err)

	entry, ok := stores.saved[0].Subcalls.Get("old")
	require.True(t, ok)
	assert.Equal(t, "kept", entry.Str)
}

func TestTruncationAtBoundary(t *testing.T) {
	exactly := strings.Repeat("a", 200)
	over := strings.Repeat("a", 201)

	resp := shapeResponse(exactly, "", "", false)
	assert.Equal(t, exactly, resp.Stdout)
	assert.Zero(t, resp.StdoutSize)

	resp = shapeResponse(over, "", "", false)
	assert.Equal(t, strings.Repeat("a", 200)+"...", resp.Stdout)
	assert.Equal(t, 201, resp.StdoutSize)
}

func TestFullOutputBypassesTruncation(t *testing.T) {
	long := strings.Repeat("b", 5000)
	resp := shapeResponse(long, "", "", true)
	assert.Equal(t, long, resp.Stdout)
	assert.Zero(t, resp.StdoutSize)
}

func TestStderrSuppressedWhenItRepeatsError(t *testing.T) {
	resp := shapeResponse("", "boom\n", "boom", false)
	assert.Empty(t, resp.Stderr)
	assert.Equal(t, "boom", resp.Error)

	resp = shapeResponse("", "warning: deprecated\n", "boom", false)
	assert.Equal(t, "warning: deprecated\n", resp.Stderr)
}

func TestSaveFailureSurfaces(t *testing.T) {
	stores := activeStores()
	stores.saveErr = assert.AnError
	svc := NewExecService(stores, stores, &scriptedSandbox{outcome: ports.SandboxOutcome{
		Globals: map[string]domain.Value{},
	}}, &staticRecorder{}, nil)

	_, err := svc.Run(context.Background(), "x = 1", false)
	require.Error(t, err)
}
