// Copyright 2025 Joseph Cumines

package recorder

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const streamWriteTimeout = 5 * time.Second

// Stream broadcasts recorded events to websocket subscribers, so an
// observing UI can watch a recording session live.
type Stream struct {
	upgrader websocket.Upgrader
	log      logrus.FieldLogger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewStream returns an empty broadcaster.
func NewStream(log logrus.FieldLogger) *Stream {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Stream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:   log,
		conns: map[*websocket.Conn]struct{}{},
	}
}

// ServeHTTP upgrades the request and registers the subscriber.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	count := len(s.conns)
	s.mu.Unlock()
	s.log.WithField("subscribers", count).Debug("event stream subscriber connected")

	// Reader goroutine exists only to observe the close handshake.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(conn)
				return
			}
		}
	}()
}

// Broadcast sends one event to every subscriber; failed writers are dropped.
func (s *Stream) Broadcast(ev Event) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := c.WriteJSON(ev); err != nil {
			s.log.WithError(err).Debug("subscriber write failed; dropping")
			s.drop(c)
		}
	}
}

// Pump forwards a recorder's event channel into the broadcaster until the
// channel closes or the context ends.
func (s *Stream) Pump(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.Broadcast(ev)
		}
	}
}

// Close disconnects all subscribers.
func (s *Stream) Close() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = map[*websocket.Conn]struct{}{}
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

func (s *Stream) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}
