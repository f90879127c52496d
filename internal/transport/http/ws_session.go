package http

import (
	"errors"
	"sync"

	"aptitude-quiz/internal/flash"
	"aptitude-quiz/internal/timer"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var errSessionClosed = errors.New("websocket session closed")

// wsSession owns the single writer of a connection. Pushes from the
// countdown, the flash queue and the read loop all go through send.
type wsSession struct {
	conn   *websocket.Conn
	send   chan outboundMessage
	closed chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

func newWSSession(conn *websocket.Conn, logger zerolog.Logger) *wsSession {
	return &wsSession{
		conn:   conn,
		send:   make(chan outboundMessage, 32),
		closed: make(chan struct{}),
		logger: logger,
	}
}

func (s *wsSession) writeLoop(done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case msg := <-s.send:
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Debug().Err(err).Msg("ws write error")
				s.close()
				return
			}
		case <-s.closed:
			s.flush()
			return
		}
	}
}

// flush writes whatever was queued before close, such as a final error.
func (s *wsSession) flush() {
	for {
		select {
		case msg := <-s.send:
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// push never blocks past close, so callers holding locks cannot wedge.
func (s *wsSession) push(typ string, payload any) error {
	select {
	case s.send <- outboundMessage{Type: typ, Payload: payload}:
		return nil
	case <-s.closed:
		return errSessionClosed
	}
}

func (s *wsSession) pushError(err error) {
	_ = s.push("error", errorPayload{Message: err.Error()})
}

func (s *wsSession) close() {
	s.once.Do(func() { close(s.closed) })
}

// forwardFlashes relays flash queue changes until the session closes.
func (s *wsSession) forwardFlashes(events <-chan flash.Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.push("notification", ev); err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}

// wsDisplay renders countdown frames onto the connection.
type wsDisplay struct {
	session *wsSession
}

func (d wsDisplay) Render(frame timer.Frame) error {
	return d.session.push("timer", frame)
}

func (d wsDisplay) Highlight(level timer.Level, pulse bool) error {
	return d.session.push("highlight", highlightPayload{Level: level.String(), Pulse: pulse})
}
