package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// outboundQueueSize bounds the per-connection send queue. A consumer that
// falls this far behind is dropped; it reconnects and resyncs from
// authoritative snapshots instead of stalling the room owner.
const outboundQueueSize = 256

// Session is one authenticated websocket connection. Frames queued via Send
// are drained by the transport layer from Outbound; ordering within a
// session is preserved by the single queue.
type Session struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Name   string
	Avatar string

	out       chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func NewSession(userID uuid.UUID, name, avatar string) *Session {
	return &Session{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Avatar: avatar,
		out:    make(chan []byte, outboundQueueSize),
		done:   make(chan struct{}),
	}
}

// Send marshals an envelope and enqueues it. A full queue closes the session
// so the client reconnects rather than receiving a gapped stream.
func (s *Session) Send(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal outbound event")
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal envelope")
		return
	}
	s.enqueue(frame)
}

// enqueue delivers a pre-marshaled frame.
func (s *Session) enqueue(frame []byte) {
	select {
	case <-s.done:
	case s.out <- frame:
	default:
		log.Warn().
			Stringer("session", s.ID).
			Stringer("user", s.UserID).
			Msg("outbound queue overflow, dropping session")
		s.Close()
	}
}

// Outbound is the frame stream the transport writer drains. Writers must
// also select on Done; the channel itself is never closed so concurrent
// enqueues stay safe.
func (s *Session) Outbound() <-chan []byte { return s.out }

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close ends the session. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}
