package gateway

import (
	"sync"

	"github.com/starford/studytrack/internal/models"
)

// SessionHub fans session events out to subscribers. Each subscription owns an
// unbounded queue drained by its own goroutine, so events reach every
// subscriber exactly once and in publish order, and a slow or re-entrant
// callback never blocks the publisher.
type SessionHub struct {
	mu     sync.Mutex
	subs   map[int]*subscription
	nextID int
	closed bool
	wg     sync.WaitGroup
}

type subscription struct {
	fn    func(models.SessionEvent)
	mu    sync.Mutex
	cond  *sync.Cond
	queue []models.SessionEvent
	done  bool
}

// NewSessionHub returns an empty hub.
func NewSessionHub() *SessionHub {
	return &SessionHub{subs: make(map[int]*subscription)}
}

// Subscribe registers fn. The returned function stops delivery; events still
// queued for this subscription are dropped.
func (h *SessionHub) Subscribe(fn func(models.SessionEvent)) (unsubscribe func()) {
	s := &subscription{fn: fn}
	s.cond = sync.NewCond(&s.mu)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}
	h.nextID++
	id := h.nextID
	h.subs[id] = s
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		s.drain()
	}()

	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
		s.stop()
	}
}

// Publish enqueues ev for every current subscriber.
func (h *SessionHub) Publish(ev models.SessionEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, s := range h.subs {
		s.push(ev)
	}
}

// Len returns the number of active subscriptions.
func (h *SessionHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close stops every subscription and waits for their goroutines to exit.
// It must not be called from inside a subscriber callback.
func (h *SessionHub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[int]*subscription)
	h.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	h.wg.Wait()
}

func (s *subscription) push(ev models.SessionEvent) {
	s.mu.Lock()
	if !s.done {
		s.queue = append(s.queue, ev)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscription) stop() {
	s.mu.Lock()
	s.done = true
	s.queue = nil
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscription) drain() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.done {
			s.cond.Wait()
		}
		if s.done {
			s.mu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.fn(ev)
	}
}
