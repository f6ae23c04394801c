package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer imitates the scout-server session and variable endpoints.
type fakeServer struct {
	mu          sync.Mutex
	sessions    map[string]bool
	vars        map[string]any
	nextID      int
	gone        bool
	requests    []string
	compactKeep string
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		sessions: map[string]bool{},
		vars:     map[string]any{},
		nextID:   1,
	}
}

func (f *fakeServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)

		path := strings.TrimPrefix(r.URL.Path, "/api/v1")
		switch {
		case path == "/health":
			writeJSON(w, map[string]any{"status": "ok", "projects": 1, "active_sessions": len(f.sessions)})
		case path == "/sessions" && r.Method == http.MethodPost:
			id := "sess-" + strconv.Itoa(f.nextID)
			f.nextID++
			f.sessions[id] = true
			writeJSON(w, map[string]any{"session_id": id, "created_at": "2026-08-30T12:00:00Z"})
		case strings.HasPrefix(path, "/sessions/") && r.Method == http.MethodGet:
			id := strings.TrimPrefix(path, "/sessions/")
			if f.gone || !f.sessions[id] {
				w.WriteHeader(http.StatusGone)
				return
			}
			writeJSON(w, map[string]any{"session_id": id, "active": true})
		case strings.HasPrefix(path, "/sessions/") && r.Method == http.MethodDelete:
			delete(f.sessions, strings.TrimPrefix(path, "/sessions/"))
			writeJSON(w, map[string]any{"deleted": true})
		case f.gone:
			w.WriteHeader(http.StatusGone)
		case path == "/vars" && r.Method == http.MethodPost:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			name, _ := body["name"].(string)
			f.vars[name] = body["value"]
			writeJSON(w, map[string]any{"name": name})
		case path == "/vars" && r.Method == http.MethodGet:
			vars := make([]any, 0, len(f.vars))
			for name, value := range f.vars {
				vars = append(vars, map[string]any{"name": name, "value": value})
			}
			writeJSON(w, map[string]any{"variables": vars})
		case strings.HasPrefix(path, "/vars/"):
			name := strings.TrimPrefix(path, "/vars/")
			if name == "final" {
				name = "Final"
			}
			value, ok := f.vars[name]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				writeJSON(w, map[string]any{"error": "variable not found"})
				return
			}
			writeJSON(w, map[string]any{"name": name, "value": value})
		case path == "/history/compact" && r.Method == http.MethodPost:
			f.compactKeep = r.URL.Query().Get("keep_recent")
			writeJSON(w, map[string]any{"compacted": true})
		case path == "/buffers" && r.Method == http.MethodGet:
			writeJSON(w, map[string]any{"buffers": []any{}})
		case path == "/symbols/search":
			writeJSON(w, map[string]any{"symbols": []any{
				map[string]any{"name": "ParseConfig", "file": "config.go"},
			}})
		default:
			writeJSON(w, map[string]any{})
		}
	})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

// setupEnv points the CLI at an isolated state dir, config dir, and server.
func setupEnv(t *testing.T, serverURL string) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", dir)
	t.Setenv("SCOUT_STATE_DIR", filepath.Join(dir, "state"))
	t.Setenv("SCOUT_INSTANCE", "")
	t.Setenv("SCOUT_DEPTH", "")
	t.Setenv("SCOUT_NESTED", "")
	t.Setenv("SCOUT_AGENT_PROMPT", "")

	if serverURL != "" {
		parsed, err := url.Parse(serverURL)
		require.NoError(t, err)
		t.Setenv("SCOUT_HOST", parsed.Hostname())
		t.Setenv("SCOUT_PORT", parsed.Port())
	}
	return dir
}

func startServer(t *testing.T) (*fakeServer, string) {
	t.Helper()
	fake := newFakeServer()
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)
	return fake, server.URL
}

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	setupEnv(t, "")

	stdout, _, err := executeCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", stdout)
}

func TestInitCreatesSessionAndDescriptor(t *testing.T) {
	_, serverURL := startServer(t)
	dir := setupEnv(t, serverURL)

	stdout, _, err := executeCLI(t, "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Session created: sess-1")
	assert.Contains(t, stdout, "Project: "+dir)

	descriptor := filepath.Join(dir, "state", "session.json")
	data, err := os.ReadFile(descriptor)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sess-1")
}

func TestInitReusesSession(t *testing.T) {
	_, serverURL := startServer(t)
	setupEnv(t, serverURL)

	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Session reused: sess-1")
}

func TestExecRequiresSession(t *testing.T) {
	setupEnv(t, "")

	_, _, err := executeCLI(t, "exec", "--code", "x = 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scout init")
}

func TestExecPersistsVariablesAcrossInvocations(t *testing.T) {
	_, serverURL := startServer(t)
	setupEnv(t, serverURL)

	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	_, _, err = executeCLI(t, "exec", "--code", "counter = 40")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "exec", "--code", "counter += 2\nprint(counter)")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"stdout": "42\n"`)
}

func TestExecTruncatesLongOutput(t *testing.T) {
	_, serverURL := startServer(t)
	setupEnv(t, serverURL)

	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "exec", "--code", `print("x" * 300)`)
	require.NoError(t, err)

	var response struct {
		Stdout     string `json:"stdout"`
		StdoutSize int    `json:"stdout_size"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &response))
	assert.True(t, strings.HasSuffix(response.Stdout, "..."))
	assert.Equal(t, 301, response.StdoutSize)
}

func TestExecFullOutputBypassesTruncation(t *testing.T) {
	_, serverURL := startServer(t)
	setupEnv(t, serverURL)

	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "exec", "--full-output", "--code", `print("x" * 300)`)
	require.NoError(t, err)

	var response struct {
		Stdout     string `json:"stdout"`
		StdoutSize int    `json:"stdout_size"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &response))
	assert.Len(t, response.Stdout, 301)
	assert.Zero(t, response.StdoutSize)
}

func TestExecContainsScriptFailure(t *testing.T) {
	_, serverURL := startServer(t)
	setupEnv(t, serverURL)

	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "exec", "--code", `fail("boom")`)
	require.NoError(t, err)
	assert.Contains(t, stdout, "boom")
	assert.Contains(t, stdout, `"error"`)
}

func TestExecBridgeReachesServer(t *testing.T) {
	fake, serverURL := startServer(t)
	setupEnv(t, serverURL)

	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "exec", "--code", `r = search("parse")
print(r[0]["name"])`)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ParseConfig")
	assert.Contains(t, fake.requests, "GET /api/v1/symbols/search")
}

func TestVarSetParsesJSONValue(t *testing.T) {
	fake, serverURL := startServer(t)
	setupEnv(t, serverURL)

	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	_, _, err = executeCLI(t, "var", "set", "threshold", "42")
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, float64(42), fake.vars["threshold"])
}

func TestCheckFinalReportsVariable(t *testing.T) {
	fake, serverURL := startServer(t)
	setupEnv(t, serverURL)

	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	fake.mu.Lock()
	fake.vars["Final"] = map[string]any{"answer": "done"}
	fake.mu.Unlock()

	stdout, _, err := executeCLI(t, "check-final")
	require.NoError(t, err)
	assert.Contains(t, stdout, "done")
}

func TestEvictedSessionClearsLocalState(t *testing.T) {
	fake, serverURL := startServer(t)
	dir := setupEnv(t, serverURL)

	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	fake.mu.Lock()
	fake.gone = true
	fake.mu.Unlock()

	_, _, err = executeCLI(t, "check-final")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scout init")

	_, statErr := os.Stat(filepath.Join(dir, "state", "session.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCleanupDeletesSession(t *testing.T) {
	fake, serverURL := startServer(t)
	dir := setupEnv(t, serverURL)

	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "cleanup")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Session sess-1 deleted.")
	assert.Contains(t, fake.requests, "DELETE /api/v1/sessions/sess-1")

	_, statErr := os.Stat(filepath.Join(dir, "state", "session.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCleanupWithoutSession(t *testing.T) {
	setupEnv(t, "")

	stdout, _, err := executeCLI(t, "cleanup")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No active session.")
}

func TestStateJSONOutput(t *testing.T) {
	_, serverURL := startServer(t)
	setupEnv(t, serverURL)

	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	_, _, err = executeCLI(t, "var", "set", "note", `"hello"`)
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "state", "--json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)))
	assert.Contains(t, stdout, "buffers")
	assert.Contains(t, stdout, "note")
}

func TestSearchPassthrough(t *testing.T) {
	_, serverURL := startServer(t)
	setupEnv(t, serverURL)

	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "search", "parse", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ParseConfig")
}

func TestHistoryCompactSendsKeepRecentInQueryString(t *testing.T) {
	fake, serverURL := startServer(t)
	setupEnv(t, serverURL)

	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "history", "compact", "--keep-recent", "5")
	require.NoError(t, err)
	assert.Contains(t, stdout, "compacted")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, "5", fake.compactKeep)
}

func TestInstanceNamespacesState(t *testing.T) {
	_, serverURL := startServer(t)
	dir := setupEnv(t, serverURL)

	t.Setenv("SCOUT_INSTANCE", "worker-a")
	_, _, err := executeCLI(t, "init")
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "state", "sessions", "worker-a", "session.json"))
	assert.NoError(t, statErr)

	t.Setenv("SCOUT_INSTANCE", "worker-b")
	_, _, err = executeCLI(t, "exec", "--code", "x = 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scout init")
}

func TestServerUnreachableMessage(t *testing.T) {
	setupEnv(t, "")
	t.Setenv("SCOUT_PORT", "1")

	_, _, err := executeCLI(t, "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scout-server")
}
