package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/tetherim/tether/internal/remote"
)

const (
	dialTimeout  = 10 * time.Second
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// ErrStreamClosed is returned by Start after Close.
var ErrStreamClosed = errors.New("stream closed")

// Stream is the long-lived push subscription: one per active session.
// Starting an already-started stream tears the previous connection down
// first, so there is never duplicate delivery.
type Stream struct {
	url     string
	handler func(remote.Event)
	onFault func(error)
	log     *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	closed bool
}

// NewStream builds a stream. handler receives decoded events on the read
// goroutine; onFault fires when the read loop dies for any reason other
// than a deliberate stop, and may restart the stream.
func NewStream(url string, handler func(remote.Event), onFault func(error), log *slog.Logger) *Stream {
	if log == nil {
		log = slog.Default()
	}
	return &Stream{url: url, handler: handler, onFault: onFault, log: log}
}

// Start dials the push endpoint and begins delivering events. ctx bounds
// the dial only; the connection's lifetime is owned by Close.
func (s *Stream) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStreamClosed
	}
	s.stopLocked()
	s.mu.Unlock()

	dctx, cancelDial := context.WithTimeout(ctx, dialTimeout)
	defer cancelDial()
	conn, _, err := websocket.Dial(dctx, s.url, nil)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		conn.Close(websocket.StatusNormalClosure, "")
		return ErrStreamClosed
	}
	s.stopLocked()
	s.conn = conn
	s.cancel = cancel
	s.mu.Unlock()

	go s.pingLoop(runCtx, conn)
	go s.readLoop(runCtx, conn)
	return nil
}

func (s *Stream) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var evt Event
		if err := wsjson.Read(ctx, conn, &evt); err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return
			}
			s.log.Warn("push stream read failed", "error", err)
			if s.onFault != nil {
				s.onFault(err)
			}
			return
		}

		switch evt.Type {
		case EventTypePong:
			continue
		case EventTypeError:
			var p ErrorPayload
			_ = json.Unmarshal(evt.Payload, &p)
			s.log.Warn("push stream error event", "code", p.Code, "message", p.Message)
			continue
		}

		decoded, err := Decode(&evt)
		if err != nil {
			// unknown or malformed events are skipped, not fatal
			s.log.Debug("skipping event", "type", evt.Type, "error", err)
			continue
		}
		s.handler(decoded)
	}
}

func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(wctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// SendTyping notifies the backend of the local user's typing transitions.
func (s *Stream) SendTyping(ctx context.Context, chatID uuid.UUID, active bool) error {
	eventType := EventTypeTypingStart
	if !active {
		eventType = EventTypeTypingStop
	}
	evt, err := NewEvent(eventType, &chatID, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrStreamClosed
	}
	wctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return wsjson.Write(wctx, conn, evt)
}

// stopLocked tears down the live connection. Callers hold s.mu.
func (s *Stream) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.conn != nil {
		s.conn.Close(websocket.StatusNormalClosure, "")
		s.conn = nil
	}
}

// Close permanently stops the stream. Safe to call on all exit paths,
// any number of times.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopLocked()
	s.mu.Unlock()
}
