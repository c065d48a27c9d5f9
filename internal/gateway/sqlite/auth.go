package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/models"
)

const minPasswordLen = 6

// GetCurrentUser implements gateway.Auth. An expired access token or a user
// deleted since sign-in both count as unauthenticated.
func (db *DB) GetCurrentUser(ctx context.Context) (*models.User, error) {
	db.mu.Lock()
	sess := db.session
	db.mu.Unlock()
	if sess == nil || !db.now().Before(sess.ExpiresAt) {
		return nil, nil
	}

	var email string
	err := db.conn.QueryRowContext(ctx, `SELECT email FROM users WHERE id = ?`, sess.User.ID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Remote("get user", "", err)
	}
	return &models.User{ID: sess.User.ID, Email: email}, nil
}

// OnSessionChange implements gateway.Auth.
func (db *DB) OnSessionChange(fn func(models.SessionEvent)) func() {
	return db.hub.Subscribe(fn)
}

// SignUp registers a user and signs them in.
func (db *DB) SignUp(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &apperr.RemoteError{Op: "sign up", Message: "Unable to validate email address: invalid format", Err: apperr.ErrInvalidInput}
	}
	if len(password) < minPasswordLen {
		return nil, &apperr.RemoteError{Op: "sign up", Message: fmt.Sprintf("Password should be at least %d characters.", minPasswordLen), Err: apperr.ErrInvalidInput}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Remote("sign up", "", err)
	}

	var exists int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM users WHERE email = ?`, email).Scan(&exists); err != nil {
		return nil, apperr.Remote("sign up", "", err)
	}
	if exists > 0 {
		return nil, &apperr.RemoteError{Op: "sign up", Message: "User already registered", Err: apperr.ErrAlreadyExists}
	}

	id := uuid.NewString()
	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id, email, string(hash), db.timestamp()); err != nil {
		return nil, apperr.Remote("sign up", "", err)
	}
	db.logger.Info("user registered", slog.String("user_id", id))

	return db.startSession(ctx, models.User{ID: id, Email: email}, models.SessionSignedIn)
}

// SignIn authenticates with email and password.
func (db *DB) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var id, hash string
	err := db.conn.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email = ?`, email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, apperr.Remote("sign in", "", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, invalidCredentials()
	}

	return db.startSession(ctx, models.User{ID: id, Email: email}, models.SessionSignedIn)
}

// SignOut revokes the current refresh token and clears the session.
func (db *DB) SignOut(ctx context.Context) error {
	db.mu.Lock()
	sess := db.session
	db.session = nil
	db.mu.Unlock()
	if sess == nil {
		return nil
	}

	if _, err := db.conn.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE token = ?`, sess.RefreshToken); err != nil {
		db.logger.Warn("revoke refresh token failed", slog.String("error", err.Error()))
	}
	db.hub.Publish(models.SessionEvent{Kind: models.SessionSignedOut})
	return nil
}

// RefreshSession rotates the refresh token and extends the access token.
func (db *DB) RefreshSession(ctx context.Context) (*models.Session, error) {
	db.mu.Lock()
	sess := db.session
	db.mu.Unlock()
	if sess == nil {
		return nil, &apperr.RemoteError{Op: "refresh", Message: "Auth session missing!", Err: apperr.ErrUnauthorized}
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE token = ? AND revoked = 0`, sess.RefreshToken)
	if err != nil {
		return nil, apperr.Remote("refresh", "", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, &apperr.RemoteError{Op: "refresh", Message: "Invalid Refresh Token: Already Used", Err: apperr.ErrUnauthorized}
	}

	return db.startSession(ctx, sess.User, models.SessionTokenRefreshed)
}

func (db *DB) startSession(ctx context.Context, user models.User, kind models.SessionEventKind) (*models.Session, error) {
	now := db.now()
	sess := &models.Session{
		User:         user,
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    now.Add(db.sessionTTL),
	}
	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, user_id, created_at) VALUES (?, ?, ?)`,
		sess.RefreshToken, user.ID, db.timestamp()); err != nil {
		return nil, apperr.Remote("issue token", "", err)
	}

	db.mu.Lock()
	db.session = sess
	db.mu.Unlock()

	db.hub.Publish(models.SessionEvent{Kind: kind, Session: sess})
	return sess, nil
}

func invalidCredentials() error {
	return &apperr.RemoteError{Op: "sign in", Message: "Invalid login credentials", Err: apperr.ErrInvalidCredentials}
}
