package domain

import "time"

// Session is the descriptor written by `scout init` and read by every
// remote-dependent command. It is small JSON on disk; the server owns the
// authoritative session object.
type Session struct {
	SessionID string    `json:"session_id"`
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	Project   string    `json:"project"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the descriptor names a server session.
func (s Session) Active() bool {
	return s.SessionID != ""
}
