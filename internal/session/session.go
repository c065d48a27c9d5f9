// Package session holds the current authenticated identity and keeps it in
// step with the gateway's session-change notifications.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/models"
	"github.com/starford/studytrack/internal/observable"
)

// State is a snapshot of the session holder.
type State struct {
	User        *models.User
	Loading     bool
	Initialized bool
}

// Authenticated reports whether a user is signed in.
func (s State) Authenticated() bool { return s.User != nil }

// Session is the process-wide session holder of one application context.
type Session struct {
	auth   gateway.Auth
	logger *slog.Logger
	state  *observable.Value[State]

	mu          sync.Mutex
	initialized bool
	unsubscribe func()
	changes     atomic.Uint64
}

// New creates an uninitialized Session over auth.
func New(auth gateway.Auth, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		auth:   auth,
		logger: logger,
		state:  observable.New(State{}),
	}
}

// Initialize subscribes to session changes and loads the current user.
// Subsequent calls are no-ops, so exactly one subscription exists. Loading is
// cleared on every path; a failed lookup leaves the user unset, drops the
// subscription and is returned. A change delivered while the lookup is in
// flight takes precedence over the lookup result.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	s.state.Update(func(st State) State { st.Loading = true; return st })
	defer s.state.Update(func(st State) State { st.Loading = false; return st })

	seen := s.changes.Load()
	unsubscribe := s.auth.OnSessionChange(s.apply)

	user, err := s.auth.GetCurrentUser(ctx)
	if err != nil {
		unsubscribe()
		s.logger.Error("session: initial user lookup failed", slog.String("error", err.Error()))
		return err
	}
	s.state.Update(func(st State) State {
		if s.changes.Load() == seen {
			st.User = user
		}
		st.Initialized = true
		return st
	})

	s.unsubscribe = unsubscribe
	s.initialized = true
	return nil
}

func (s *Session) apply(ev models.SessionEvent) {
	user := ev.CurrentUser()
	s.logger.Debug("session: change", slog.String("event", string(ev.Kind)))
	s.changes.Add(1)
	s.state.Update(func(st State) State {
		st.User = user
		return st
	})
}

// Close drops the session-change subscription. Initialize may be called again afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.initialized = false
}

// User returns the cached user, or nil.
func (s *Session) User() *models.User {
	return s.state.Get().User
}

// Loading reports whether Initialize is in progress.
func (s *Session) Loading() bool {
	return s.state.Get().Loading
}

// Snapshot returns the full state.
func (s *Session) Snapshot() State {
	return s.state.Get()
}

// Subscribe calls fn after every state change.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.state.Subscribe(fn)
}
