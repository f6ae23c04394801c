// Package instance determines which logical session a process invocation
// belongs to, so concurrent agent runs in the same project never share
// durable state by accident.
package instance

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ps "github.com/mitchellh/go-ps"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	registryDirName  = "registry"
	hintFileName     = "active-instance"
	maxAncestrySteps = 64
)

// registryEntry is the shape of one .scout/state/registry/<pid>.toml file,
// written by the session lifecycle hook when an agent run starts.
type registryEntry struct {
	Instance string `toml:"instance"`
}

// processTable abstracts pid -> parent-pid lookup for tests.
type processTable interface {
	FindProcess(pid int) (ps.Process, error)
}

type systemProcessTable struct{}

func (systemProcessTable) FindProcess(pid int) (ps.Process, error) {
	return ps.FindProcess(pid)
}

// Resolver produces a stable instance identifier for the current process, or
// "" when the flat (non-namespaced) state layout should be used. Resolution
// never touches the network and every I/O error downgrades to "no match".
type Resolver struct {
	explicit string
	stateDir string
	procs    processTable
	startPID int
	logger   *slog.Logger
}

// NewResolver builds a resolver. explicit is the SCOUT_INSTANCE override and
// wins over everything else when non-empty.
func NewResolver(explicit, stateDir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		explicit: strings.TrimSpace(explicit),
		stateDir: stateDir,
		procs:    systemProcessTable{},
		startPID: os.Getpid(),
		logger:   logger,
	}
}

// Resolve applies the priority order: explicit id, process-ancestry walk over
// the registry directory, the active-instance hint file, then none.
func (r *Resolver) Resolve() string {
	if r.explicit != "" {
		return r.explicit
	}

	if id := r.walkAncestry(); id != "" {
		return id
	}

	if id := r.readHint(); id != "" {
		return id
	}

	return ""
}

// Dir returns the state directory for the resolved instance: a per-instance
// subdirectory when an id resolved, the flat layout otherwise.
func (r *Resolver) Dir() string {
	if id := r.Resolve(); id != "" {
		return filepath.Join(r.stateDir, "sessions", id)
	}
	return r.stateDir
}

func (r *Resolver) walkAncestry() string {
	registry := filepath.Join(r.stateDir, registryDirName)
	pid := r.startPID
	for i := 0; i < maxAncestrySteps; i++ {
		if id := r.readRegistryEntry(registry, pid); id != "" {
			r.logger.Debug("instance resolved from process ancestry",
				"pid", pid, "instance", id)
			return id
		}

		proc, err := r.procs.FindProcess(pid)
		if err != nil || proc == nil {
			return ""
		}
		parent := proc.PPid()
		if parent <= 1 || parent == pid {
			return ""
		}
		pid = parent
	}
	return ""
}

func (r *Resolver) readRegistryEntry(registry string, pid int) string {
	data, err := os.ReadFile(filepath.Join(registry, strconv.Itoa(pid)+".toml"))
	if err != nil {
		return ""
	}

	var entry registryEntry
	if err := toml.Unmarshal(data, &entry); err != nil {
		r.logger.Debug("skipping malformed registry entry", "pid", pid, "error", err)
		return ""
	}
	return strings.TrimSpace(entry.Instance)
}

func (r *Resolver) readHint() string {
	data, err := os.ReadFile(filepath.Join(r.stateDir, hintFileName))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
