package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetherim/tether/internal/domain"
	"github.com/tetherim/tether/internal/remote"
	"github.com/tetherim/tether/internal/store"
)

// DefaultTypingTTL is how long a typing signal stays alive without
// renewal. Timing is configuration, not a protocol contract.
const DefaultTypingTTL = 6 * time.Second

type typingKey struct {
	chatID uuid.UUID
	userID uuid.UUID
}

// Tracker owns the ephemeral, non-authoritative signals: typing state
// with engine-side expiry and last-write-wins presence. A stale typing
// "true" never outlives the TTL even when the stop signal is lost.
type Tracker struct {
	store *store.Store
	ttl   time.Duration

	mu     sync.Mutex
	timers map[typingKey]*time.Timer
	closed bool
}

func NewTracker(st *store.Store, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &Tracker{
		store:  st,
		ttl:    ttl,
		timers: make(map[typingKey]*time.Timer),
	}
}

// Apply routes a typing or presence event. Other event kinds are ignored.
func (t *Tracker) Apply(ev remote.Event) {
	switch e := ev.(type) {
	case remote.TypingChanged:
		if e.Active {
			t.StartTyping(e.ChatID, e.UserID)
		} else {
			t.StopTyping(e.ChatID, e.UserID)
		}
	case remote.PresenceChanged:
		t.SetPresence(e.Presence)
	}
}

// StartTyping marks a user as typing and arms (or renews) the expiry.
func (t *Tracker) StartTyping(chatID, userID uuid.UUID) {
	key := typingKey{chatID, userID}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
	}
	t.timers[key] = time.AfterFunc(t.ttl, func() {
		t.StopTyping(chatID, userID)
	})
	t.mu.Unlock()
	t.store.SetTyping(chatID, userID, time.Now())
}

// StopTyping clears a typing signal, whether explicit or expired.
func (t *Tracker) StopTyping(chatID, userID uuid.UUID) {
	key := typingKey{chatID, userID}
	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()
	t.store.ClearTyping(chatID, userID)
}

// SetPresence overwrites the last-known status: most recent wins, no
// further conflict resolution.
func (t *Tracker) SetPresence(p domain.Presence) {
	t.store.SetPresence(p)
}

// Close stops all pending expiry timers. Typing state cleared here stays
// cleared; the tracker is not reusable afterwards.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()
}
