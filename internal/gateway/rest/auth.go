package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/models"
)

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// tokenResponse is GoTrue's session payload.
type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int      `json:"expires_in"`
	User         authUser `json:"user"`
}

// GetCurrentUser implements gateway.Auth by asking the auth server for the
// user behind the held access token.
func (c *Client) GetCurrentUser(ctx context.Context) (*models.User, error) {
	c.mu.Lock()
	hasSession := c.session != nil
	c.mu.Unlock()
	if !hasSession {
		return nil, nil
	}

	resp, err := c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user"})
	if err != nil {
		return nil, apperr.Remote("get user", "", err)
	}
	if resp.status == http.StatusUnauthorized || resp.status == http.StatusForbidden {
		return nil, nil
	}
	if !ok(resp) {
		return nil, remoteError("get user", "", resp)
	}
	var u authUser
	if err := json.Unmarshal(resp.body, &u); err != nil {
		return nil, apperr.Remote("get user", "", err)
	}
	return &models.User{ID: u.ID, Email: u.Email}, nil
}

// OnSessionChange implements gateway.Auth.
func (c *Client) OnSessionChange(fn func(models.SessionEvent)) func() {
	return c.hub.Subscribe(fn)
}

// SignUp registers a user. When the project requires email confirmation no
// session is returned and the client stays signed out.
func (c *Client) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return nil, apperr.Remote("sign up", "", err)
	}
	if !ok(resp) {
		return nil, remoteError("sign up", "", resp)
	}
	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return nil, apperr.Remote("sign up", "", err)
	}
	if tr.AccessToken == "" {
		return nil, nil
	}
	return c.storeSession(tr, models.SessionSignedIn), nil
}

// SignIn implements gateway.Auth with the password grant.
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	return c.token(ctx, "password", map[string]string{"email": email, "password": password}, models.SessionSignedIn)
}

// RefreshSession implements gateway.Auth with the refresh-token grant.
func (c *Client) RefreshSession(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil, &apperr.RemoteError{Op: "refresh", Message: "Auth session missing!", Err: apperr.ErrUnauthorized}
	}
	return c.token(ctx, "refresh_token", map[string]string{"refresh_token": sess.RefreshToken}, models.SessionTokenRefreshed)
}

// SignOut revokes the session server-side and clears it locally. The local
// session is cleared even when the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	hasSession := c.session != nil
	c.mu.Unlock()
	if !hasSession {
		return nil
	}

	resp, err := c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout"})

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.hub.Publish(models.SessionEvent{Kind: models.SessionSignedOut})

	if err != nil {
		return apperr.Remote("sign out", "", err)
	}
	if !ok(resp) && resp.status != http.StatusUnauthorized {
		return remoteError("sign out", "", resp)
	}
	return nil
}

func (c *Client) token(ctx context.Context, grant string, body map[string]string, kind models.SessionEventKind) (*models.Session, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grant}},
		body:   body,
	})
	if err != nil {
		return nil, apperr.Remote("token", "", err)
	}
	if !ok(resp) {
		return nil, remoteError("token", "", resp)
	}
	var tr tokenResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return nil, apperr.Remote("token", "", err)
	}
	return c.storeSession(tr, kind), nil
}

func (c *Client) storeSession(tr tokenResponse, kind models.SessionEventKind) *models.Session {
	sess := &models.Session{
		User:         models.User{ID: tr.User.ID, Email: tr.User.Email},
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    c.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	c.hub.Publish(models.SessionEvent{Kind: kind, Session: sess})
	return sess
}
