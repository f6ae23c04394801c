package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bnema/scout-cli/internal/domain"
	"github.com/bnema/scout-cli/internal/ports"
)

// ClientFactory builds a transport bound to a server address and an optional
// session. Init needs an unbound client before any session exists.
type ClientFactory func(host string, port int, sessionID string) ports.IndexClient

// SessionService owns the session lifecycle: creation against the server,
// reuse when the descriptor still matches, teardown, and the introspection
// calls that only need a live session.
type SessionService struct {
	sessions  ports.SessionStore
	snapshots ports.SnapshotStore
	clients   ClientFactory
	now       func() time.Time
	logger    *slog.Logger
}

func NewSessionService(
	sessions ports.SessionStore,
	snapshots ports.SnapshotStore,
	clients ClientFactory,
	now func() time.Time,
	logger *slog.Logger,
) *SessionService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SessionService{
		sessions:  sessions,
		snapshots: snapshots,
		clients:   clients,
		now:       now,
		logger:    logger,
	}
}

// InitReport summarizes what Init did.
type InitReport struct {
	SessionID string
	Project   string
	Reused    bool
	Health    map[string]any
}

// Init checks server health, reuses a still-valid session for the same
// project, and otherwise creates a fresh one and persists the descriptor.
func (s *SessionService) Init(ctx context.Context, project, host string, port int) (InitReport, error) {
	client := s.clients(host, port, "")

	health, err := client.Get(ctx, "/health", nil)
	if err != nil {
		return InitReport{}, err
	}

	existing, err := s.sessions.Load()
	if err != nil {
		return InitReport{}, err
	}
	if existing.Active() && existing.Project == project {
		bound := s.clients(existing.Host, existing.Port, existing.SessionID)
		if _, err := bound.Get(ctx, "/sessions/"+existing.SessionID, nil); err == nil {
			s.logger.Info("session reused", "session_id", existing.SessionID)
			return InitReport{
				SessionID: existing.SessionID,
				Project:   project,
				Reused:    true,
				Health:    health,
			}, nil
		}
		// Stale on the server; fall through and create a new one.
	}

	created, err := client.Post(ctx, "/sessions", map[string]any{"cwd": project})
	if err != nil {
		return InitReport{}, err
	}
	sessionID, _ := created["session_id"].(string)
	if sessionID == "" {
		return InitReport{}, fmt.Errorf("create session: server returned no session id")
	}

	session := domain.Session{
		SessionID: sessionID,
		Host:      host,
		Port:      port,
		Project:   project,
		CreatedAt: s.createdAt(created),
	}
	if err := s.sessions.Save(session); err != nil {
		return InitReport{}, err
	}

	s.logger.Info("session created", "session_id", sessionID, "project", project)
	return InitReport{SessionID: sessionID, Project: project, Health: health}, nil
}

func (s *SessionService) createdAt(payload map[string]any) time.Time {
	if raw, ok := payload["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return s.now()
}

// StatusReport combines server health with the local descriptor and, when
// reachable, the server's view of the session.
type StatusReport struct {
	Server  map[string]any  `json:"server"`
	Session *domain.Session `json:"session,omitempty"`
	Details any             `json:"session_details,omitempty"`
}

// Status reports server health. With an active session the session's own
// address wins over the fallback host and port.
func (s *SessionService) Status(ctx context.Context, fallbackHost string, fallbackPort int) (StatusReport, error) {
	session, err := s.sessions.Load()
	if err != nil {
		return StatusReport{}, err
	}

	host, port := fallbackHost, fallbackPort
	if session.Active() {
		host, port = session.Host, session.Port
	}
	client := s.clients(host, port, session.SessionID)

	health, err := client.Get(ctx, "/health", nil)
	if err != nil {
		return StatusReport{}, err
	}

	report := StatusReport{Server: health}
	if !session.Active() {
		return report, nil
	}

	report.Session = &session
	if details, err := client.Get(ctx, "/sessions/"+session.SessionID, nil); err == nil {
		report.Details = details
	} else {
		report.Details = "session may have expired"
	}
	return report, nil
}

// Cleanup deletes the server session and clears all local state. Without an
// active session it is a no-op reporting existed=false.
func (s *SessionService) Cleanup(ctx context.Context) (string, bool, error) {
	session, err := s.sessions.Load()
	if err != nil {
		return "", false, err
	}
	if !session.Active() {
		return "", false, nil
	}

	client := s.clients(session.Host, session.Port, session.SessionID)
	if _, err := client.Delete(ctx, "/sessions/"+session.SessionID); err != nil {
		return "", false, err
	}

	if err := s.sessions.Clear(); err != nil {
		return "", false, err
	}
	if err := s.snapshots.SaveSnapshot(domain.EmptySnapshot()); err != nil {
		return "", false, fmt.Errorf("reset namespace: %w", err)
	}

	s.logger.Info("session deleted", "session_id", session.SessionID)
	return session.SessionID, true, nil
}

// Reset clears local state only, for recovery after the server reports the
// session gone.
func (s *SessionService) Reset() error {
	if err := s.sessions.Clear(); err != nil {
		return err
	}
	return s.snapshots.SaveSnapshot(domain.EmptySnapshot())
}

// requireClient loads the descriptor and returns a bound client, or
// ErrNoSession.
func (s *SessionService) requireClient() (ports.IndexClient, error) {
	session, err := s.sessions.Load()
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, domain.ErrNoSession
	}
	return s.clients(session.Host, session.Port, session.SessionID), nil
}

// CheckFinal polls the termination variable.
func (s *SessionService) CheckFinal(ctx context.Context) (map[string]any, error) {
	client, err := s.requireClient()
	if err != nil {
		return nil, err
	}
	return client.Get(ctx, "/vars/final", nil)
}

// State returns the remote buffers and variables in one shape.
func (s *SessionService) State(ctx context.Context) (map[string]any, error) {
	client, err := s.requireClient()
	if err != nil {
		return nil, err
	}
	buffers, err := client.Get(ctx, "/buffers", nil)
	if err != nil {
		return nil, err
	}
	variables, err := client.Get(ctx, "/vars", nil)
	if err != nil {
		return nil, err
	}
	return map[string]any{"buffers": buffers, "variables": variables}, nil
}

// Client exposes a session-bound transport for the thin passthrough commands.
func (s *SessionService) Client() (ports.IndexClient, error) {
	return s.requireClient()
}
