package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/studytrack/internal/models"
	"github.com/starford/studytrack/internal/testutil"
)

func newTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	a := New(testutil.TestGateway(t), append([]Option{WithEventCoalescing(5 * time.Millisecond)}, opts...)...)
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.Start(context.Background()))
	return a
}

func TestStartInitializesSignedOutSession(t *testing.T) {
	a := newTestApp(t)
	v := a.SessionView()
	assert.False(t, v.Authenticated)
	assert.False(t, v.Loading)
	assert.Nil(t, v.User)
}

func TestSessionFollowsSignIn(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.Gateway.SignUp(ctx, "learner@example.com", "secret123")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return a.SessionView().Authenticated }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "learner@example.com", a.SessionView().User.Email)

	require.NoError(t, a.Gateway.SignOut(ctx))
	require.Eventually(t, func() bool { return !a.SessionView().Authenticated }, time.Second, 5*time.Millisecond)
}

func TestGuardUsesFreshLookupByDefault(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	_, err := a.Gateway.SignUp(ctx, "learner@example.com", "secret123")
	require.NoError(t, err)
	// A fresh lookup sees the session immediately, whatever the cached state says.
	assert.True(t, a.Guard.Check(ctx, "/study-notes").Proceed())

	require.NoError(t, a.Gateway.SignOut(ctx))
	assert.Equal(t, "/login", a.Guard.Check(ctx, "/study-notes").Redirect)
}

func TestGuardWithCachedSession(t *testing.T) {
	a := newTestApp(t, WithTrustCachedSession(true))
	ctx := context.Background()

	assert.Equal(t, "/login", a.Guard.Check(ctx, "/").Redirect)

	_, err := a.Gateway.SignUp(ctx, "learner@example.com", "secret123")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return a.Guard.Check(ctx, "/").Proceed() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "/", a.Guard.Check(ctx, "/login").Redirect)
}

func TestStoreChangesReachEventBroker(t *testing.T) {
	a := newTestApp(t)
	ch := a.Events.Subscribe()
	defer a.Events.Unsubscribe(ch)

	_, err := a.Issues.Create(context.Background(), models.IssueInput{
		Title: "flaky test", Status: models.IssuePending, Priority: models.IssueHigh,
	})
	require.NoError(t, err)

	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), "event: store.updated") &&
				strings.Contains(string(msg), `"store":"issues","count":1,"loading":false`) {
				return
			}
		case <-deadline:
			t.Fatal("no settled store.updated event for issues")
		}
	}
}

func TestLocalTime(t *testing.T) {
	a := newTestApp(t, WithLocation(time.FixedZone("CST", 8*3600)))
	ts := time.Date(2024, 5, 1, 16, 30, 0, 0, time.UTC)
	assert.Equal(t, "2024-05-02 00:30:00", a.LocalTime(ts))
	assert.Empty(t, a.LocalTime(time.Time{}))
}

func TestCloseIsIdempotent(t *testing.T) {
	a := New(testutil.TestGateway(t))
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
