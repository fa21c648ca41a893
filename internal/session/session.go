// Package session ties the engine's parts to one signed-in identity:
// subscribe on session start, unconditionally unsubscribe on session end,
// resync after stream faults.
package session

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tetherim/tether/internal/config"
	"github.com/tetherim/tether/internal/domain"
	"github.com/tetherim/tether/internal/presence"
	"github.com/tetherim/tether/internal/reconcile"
	"github.com/tetherim/tether/internal/remote"
	"github.com/tetherim/tether/internal/service"
	"github.com/tetherim/tether/internal/store"
	"github.com/tetherim/tether/internal/transport/ws"
)

const fetchParallelism = 4

// Identity supplies the current user and the push-stream credential.
type Identity interface {
	CurrentUser() (domain.User, bool)
	Token() string
}

// Session owns the store, command layer, reconciler, tracker and push
// stream for one signed-in user.
type Session struct {
	cfg     *config.Config
	api     remote.API
	id      Identity
	log     *slog.Logger
	store   *store.Store
	cmds    *service.Commands
	rec     *reconcile.Reconciler
	tracker *presence.Tracker
	stream  *ws.Stream

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg *config.Config, api remote.API, id Identity, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	st := store.New(log)
	s := &Session{
		cfg:     cfg,
		api:     api,
		id:      id,
		log:     log,
		store:   st,
		cmds:    service.NewCommands(st, api, id, log),
		rec:     reconcile.New(st, api, id, log),
		tracker: presence.NewTracker(st, cfg.TypingTTL),
	}
	if cfg.WSURL != "" {
		s.stream = ws.NewStream(streamURL(cfg.WSURL, id.Token()), s.handle, s.onStreamFault, log)
	}
	return s
}

// streamURL appends the auth token as a query param; WebSocket dials
// cannot carry an Authorization header through every proxy.
func streamURL(base, token string) string {
	return base + "?token=" + url.QueryEscape(token)
}

// Store exposes the read/subscribe surface for consumers.
func (s *Session) Store() *store.Store {
	return s.store
}

// Commands exposes the user-intent surface.
func (s *Session) Commands() *service.Commands {
	return s.cmds
}

func (s *Session) Tracker() *presence.Tracker {
	return s.tracker
}

// Start performs the initial sync and opens the push subscription.
// Calling Start on a live session replaces the old subscription rather
// than stacking a second one.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.mu.Unlock()

	if err := s.sync(runCtx); err != nil {
		return err
	}
	if s.stream != nil {
		if err := s.stream.Start(runCtx); err != nil {
			return err
		}
	}
	return nil
}

// sync refetches the chat collections. Used for the initial load and as
// the recovery path after a stream fault, when missed events must be
// assumed.
func (s *Session) sync(ctx context.Context) error {
	chats, err := s.api.FetchChats(ctx)
	if err != nil {
		return err
	}
	for _, cwm := range chats {
		for _, u := range cwm.Members {
			s.store.UpsertUser(u)
		}
		s.store.UpsertChat(cwm.Chat)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallelism)
	for _, cwm := range chats {
		chatID := cwm.Chat.ID
		g.Go(func() error {
			msgs, err := s.api.FetchMessages(gctx, chatID)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				s.store.ApplyMessage(m)
			}
			return nil
		})
	}
	return g.Wait()
}

// handle dispatches one decoded push event: ephemeral signals go to the
// tracker, persisted-entity changes to the reconciler.
func (s *Session) handle(ev remote.Event) {
	switch ev.(type) {
	case remote.TypingChanged, remote.PresenceChanged:
		s.tracker.Apply(ev)
		return
	}

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	if err := s.rec.Apply(ctx, ev); err != nil {
		s.log.Warn("reconcile failed", "error", err)
	}
}

// onStreamFault recovers from a dropped subscription: wait out the
// backoff, refetch everything, reconnect. Runs until it succeeds or the
// session is closed.
func (s *Session) onStreamFault(cause error) {
	go func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if ctx == nil {
			return
		}
		s.log.Warn("push stream fault, resyncing", "error", cause)

		backoff := s.cfg.ReconnectBackoff
		if backoff <= 0 {
			backoff = 2 * time.Second
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if err := s.sync(ctx); err != nil {
				s.log.Warn("resync failed", "error", err)
				continue
			}
			if err := s.stream.Start(ctx); err != nil {
				s.log.Warn("stream reconnect failed", "error", err)
				continue
			}
			s.log.Info("push stream resumed")
			return
		}
	}()
}

// Close releases the subscription and timers. Safe on all exit paths.
func (s *Session) Close() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.ctx = nil
	s.mu.Unlock()
	if s.stream != nil {
		s.stream.Close()
	}
	s.tracker.Close()
}
