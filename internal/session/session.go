// Package session holds the per-browser dashboard session: the upstream
// client (cookie jar + CSRF cache) and the authenticated-user record. Each
// session is the single source of identity for every view it serves.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"genstudio-dashboard/internal/backend"
	"genstudio-dashboard/internal/model"
)

// AuthState is the session's identity state. A fresh session is Unknown
// until the first "who am I" call resolves it.
type AuthState string

const (
	StateUnknown       AuthState = "unknown"
	StateAuthenticated AuthState = "authenticated"
	StateAnonymous     AuthState = "anonymous"
)

// Result is the outcome of a login or register attempt. Failures carry the
// backend's human-readable message; they never change the session state.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Session binds a dashboard browser session to its own backend client. The
// client is the only writer of the CSRF cache and the session the only
// writer of the user record, so neither needs coordination beyond its mutex.
type Session struct {
	ID        string
	Client    *backend.Client
	CreatedAt time.Time

	mu    sync.Mutex
	state AuthState
	user  *model.User
}

// New creates a session with a dedicated backend client.
func New(backendURL string) (*Session, error) {
	client, err := backend.NewClient(backendURL)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        uuid.NewString(),
		Client:    client,
		CreatedAt: time.Now(),
		state:     StateUnknown,
	}, nil
}

// State returns the current auth state.
func (s *Session) State() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns the cached identity, nil unless authenticated.
func (s *Session) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return nil
	}
	u := *s.user
	return &u
}

// Login posts credentials (pre-session, no CSRF) and on application-level
// success refreshes the identity, transitioning to authenticated. On failure
// the state is left untouched and the backend's message is returned.
func (s *Session) Login(ctx context.Context, username, password string) (Result, error) {
	env, err := s.Client.Login(ctx, username, password)
	if err != nil {
		return Result{}, err
	}
	if !env.OK() {
		return Result{Success: false, Message: env.Message()}, nil
	}
	if err := s.RefreshUser(ctx); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Message: env.Message()}, nil
}

// Register creates an account. It does not authenticate: callers follow up
// with Login.
func (s *Session) Register(ctx context.Context, username, password string) (Result, error) {
	env, err := s.Client.Register(ctx, username, password)
	if err != nil {
		return Result{}, err
	}
	return Result{Success: env.OK(), Message: env.Message()}, nil
}

// Logout is purely local: it clears the CSRF cache and the user record and
// transitions to anonymous. No backend endpoint is called; the upstream
// cookie dies with the session's jar.
func (s *Session) Logout() {
	s.Client.ClearCSRFToken()
	s.mu.Lock()
	s.state = StateAnonymous
	s.user = nil
	s.mu.Unlock()
}

// RefreshUser re-fetches the current identity. Idempotent; used right after
// login and whenever a view needs to re-resolve who the user is. Any non-OK
// answer resolves the session to anonymous.
func (s *Session) RefreshUser(ctx context.Context) error {
	env, err := s.Client.UserInfo(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !env.OK() {
		s.state = StateAnonymous
		s.user = nil
		return nil
	}

	var u model.User
	if err := env.Decode(&u); err != nil {
		s.state = StateAnonymous
		s.user = nil
		return err
	}
	s.state = StateAuthenticated
	s.user = &u
	return nil
}
