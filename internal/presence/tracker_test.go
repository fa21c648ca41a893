package presence_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetherim/tether/internal/domain"
	"github.com/tetherim/tether/internal/presence"
	"github.com/tetherim/tether/internal/remote"
	"github.com/tetherim/tether/internal/store"
)

func waitForTyping(t *testing.T, st *store.Store, chatID uuid.UUID, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(st.TypingUsers(chatID)) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("typing set never reached %d users, have %d", want, len(st.TypingUsers(chatID)))
}

func TestTypingExpiresWithoutStop(t *testing.T) {
	st := store.New(nil)
	tr := presence.NewTracker(st, 30*time.Millisecond)
	defer tr.Close()

	chatID, userID := uuid.New(), uuid.New()
	tr.StartTyping(chatID, userID)
	require.Equal(t, []uuid.UUID{userID}, st.TypingUsers(chatID))

	waitForTyping(t, st, chatID, 0)
}

func TestTypingRenewalExtendsExpiry(t *testing.T) {
	st := store.New(nil)
	tr := presence.NewTracker(st, 60*time.Millisecond)
	defer tr.Close()

	chatID, userID := uuid.New(), uuid.New()
	tr.StartTyping(chatID, userID)
	time.Sleep(40 * time.Millisecond)
	tr.StartTyping(chatID, userID)
	time.Sleep(40 * time.Millisecond)

	// 80ms after the first signal but only 40ms after the renewal
	assert.Len(t, st.TypingUsers(chatID), 1, "renewal must rearm the timer")
	waitForTyping(t, st, chatID, 0)
}

func TestExplicitStopClearsImmediately(t *testing.T) {
	st := store.New(nil)
	tr := presence.NewTracker(st, time.Minute)
	defer tr.Close()

	chatID, userID := uuid.New(), uuid.New()
	tr.StartTyping(chatID, userID)
	tr.StopTyping(chatID, userID)
	assert.Empty(t, st.TypingUsers(chatID))

	// stop for a user who was never typing is a no-op
	tr.StopTyping(chatID, uuid.New())
}

func TestApplyRoutesTypingAndPresence(t *testing.T) {
	st := store.New(nil)
	tr := presence.NewTracker(st, time.Minute)
	defer tr.Close()

	chatID, userID := uuid.New(), uuid.New()
	tr.Apply(remote.TypingChanged{ChatID: chatID, UserID: userID, Active: true})
	assert.Len(t, st.TypingUsers(chatID), 1)
	tr.Apply(remote.TypingChanged{ChatID: chatID, UserID: userID, Active: false})
	assert.Empty(t, st.TypingUsers(chatID))

	seen := time.Now()
	tr.Apply(remote.PresenceChanged{Presence: domain.Presence{UserID: userID, Status: domain.PresenceOnline, LastSeenAt: &seen}})
	p, ok := st.Presence(userID)
	require.True(t, ok)
	assert.Equal(t, domain.PresenceOnline, p.Status)

	// most recent write wins regardless of prior status
	later := seen.Add(time.Second)
	tr.Apply(remote.PresenceChanged{Presence: domain.Presence{UserID: userID, Status: domain.PresenceOffline, LastSeenAt: &later}})
	p, _ = st.Presence(userID)
	assert.Equal(t, domain.PresenceOffline, p.Status)
}

func TestTypingUsersSortedPerChat(t *testing.T) {
	st := store.New(nil)
	tr := presence.NewTracker(st, time.Minute)
	defer tr.Close()

	chatA, chatB := uuid.New(), uuid.New()
	u1, u2 := uuid.New(), uuid.New()
	tr.StartTyping(chatA, u1)
	tr.StartTyping(chatA, u2)
	tr.StartTyping(chatB, u1)

	assert.Len(t, st.TypingUsers(chatA), 2)
	assert.Len(t, st.TypingUsers(chatB), 1, "typing state is scoped per chat")
}

func TestCloseStopsTimers(t *testing.T) {
	st := store.New(nil)
	tr := presence.NewTracker(st, 20*time.Millisecond)

	chatID, userID := uuid.New(), uuid.New()
	tr.StartTyping(chatID, userID)
	tr.Close()

	// a start after close must not arm anything
	tr.StartTyping(chatID, uuid.New())
	time.Sleep(50 * time.Millisecond)
}
