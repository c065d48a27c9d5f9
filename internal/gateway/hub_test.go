package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/starford/studytrack/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	events []models.SessionEvent
}

func (r *recorder) record(ev models.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []models.SessionEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SessionEventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func TestSessionHubDeliversInOrderExactlyOnce(t *testing.T) {
	h := NewSessionHub()
	defer h.Close()

	var a, b recorder
	h.Subscribe(a.record)
	h.Subscribe(b.record)

	sess := &models.Session{User: models.User{ID: "u1", Email: "a@example.com"}}
	h.Publish(models.SessionEvent{Kind: models.SessionSignedIn, Session: sess})
	h.Publish(models.SessionEvent{Kind: models.SessionTokenRefreshed, Session: sess})
	h.Publish(models.SessionEvent{Kind: models.SessionSignedOut})

	want := []models.SessionEventKind{models.SessionSignedIn, models.SessionTokenRefreshed, models.SessionSignedOut}
	require.Eventually(t, func() bool { return len(a.kinds()) == 3 && len(b.kinds()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, a.kinds())
	assert.Equal(t, want, b.kinds())

	// No duplicates arrive later.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, a.kinds(), 3)
}

func TestSessionHubUnsubscribeStopsDelivery(t *testing.T) {
	h := NewSessionHub()
	defer h.Close()

	var r recorder
	unsub := h.Subscribe(r.record)
	require.Equal(t, 1, h.Len())
	unsub()
	assert.Equal(t, 0, h.Len())

	h.Publish(models.SessionEvent{Kind: models.SessionSignedOut})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, r.kinds())
}

func TestSessionHubReentrantCallback(t *testing.T) {
	h := NewSessionHub()
	defer h.Close()

	var r recorder
	var unsub func()
	unsub = h.Subscribe(func(ev models.SessionEvent) {
		r.record(ev)
		h.Publish(models.SessionEvent{Kind: models.SessionSignedOut})
		unsub()
	})
	h.Publish(models.SessionEvent{Kind: models.SessionSignedIn})

	require.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []models.SessionEventKind{models.SessionSignedIn}, r.kinds())
}

func TestSessionHubClosedIsNoop(t *testing.T) {
	h := NewSessionHub()
	h.Close()
	h.Close()
	unsub := h.Subscribe(func(models.SessionEvent) {})
	unsub()
	h.Publish(models.SessionEvent{Kind: models.SessionSignedIn})
	assert.Equal(t, 0, h.Len())
}
