package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bnema/scout-cli/internal/adapters/agent"
	"github.com/bnema/scout-cli/internal/adapters/config"
	"github.com/bnema/scout-cli/internal/adapters/indexhttp"
	"github.com/bnema/scout-cli/internal/adapters/instance"
	"github.com/bnema/scout-cli/internal/adapters/sandbox"
	"github.com/bnema/scout-cli/internal/adapters/statestore"
	"github.com/bnema/scout-cli/internal/application"
	"github.com/bnema/scout-cli/internal/ports"
)

type app struct {
	cfg      config.Config
	instance string
	store    *statestore.Store
	clients  application.ClientFactory
	sessions *application.SessionService
	logger   *slog.Logger
}

func wireApp() (*app, error) {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	resolver := instance.NewResolver(cfg.Instance, cfg.StateDir, logger)
	instanceID := resolver.Resolve()
	store := statestore.New(resolver.Dir())

	clients := func(host string, port int, sessionID string) ports.IndexClient {
		return indexhttp.New(host, port,
			indexhttp.WithTimeout(cfg.RequestTimeout),
			indexhttp.WithSession(sessionID),
		)
	}

	return &app{
		cfg:      cfg,
		instance: instanceID,
		store:    store,
		clients:  clients,
		sessions: application.NewSessionService(store, store, clients, time.Now, logger),
		logger:   logger,
	}, nil
}

// delegation builds the orchestrator bound to the active session's transport.
func (a *app) delegation() (*application.DelegationService, error) {
	client, err := a.sessions.Client()
	if err != nil {
		return nil, err
	}
	runner := agent.NewRunner(a.cfg.AgentBin, a.logger)
	return application.NewDelegationService(
		client,
		runner,
		a.cfg.DelegationContext(),
		a.cfg.PromptPaths,
		a.cfg.DelegateTimeout,
		a.logger,
	), nil
}

// execService assembles the full execution pipeline: restored namespace,
// sandbox with bridge bindings, delegation, persistence.
func (a *app) execService() (*application.ExecService, error) {
	client, err := a.sessions.Client()
	if err != nil {
		return nil, err
	}
	delegation, err := a.delegation()
	if err != nil {
		return nil, err
	}
	engine := sandbox.NewEngine(client, delegation, a.logger)
	return application.NewExecService(a.store, a.store, engine, delegation, a.logger), nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("SCOUT_DEBUG") == "1" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
