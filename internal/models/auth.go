package models

import "time"

// User is the authenticated identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an authenticated user together with its tokens.
type Session struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionEventKind names a session transition.
type SessionEventKind string

const (
	SessionSignedIn       SessionEventKind = "SIGNED_IN"
	SessionSignedOut      SessionEventKind = "SIGNED_OUT"
	SessionTokenRefreshed SessionEventKind = "TOKEN_REFRESHED"
)

// SessionEvent is delivered to session-change subscribers. Session is nil
// after a sign-out.
type SessionEvent struct {
	Kind    SessionEventKind
	Session *Session
}

// CurrentUser returns the user of the event's session, or nil.
func (e SessionEvent) CurrentUser() *User {
	if e.Session == nil {
		return nil
	}
	u := e.Session.User
	return &u
}
