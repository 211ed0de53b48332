package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Relay fans broadcasts out to peer server instances. The redis pub/sub
// store satisfies it; a nil Relay keeps the hub single-instance.
//
// Relayed frames reach local subscribers only; they are not applied to this
// instance's authoritative room state. Multi-instance deployments must
// route all writers for a room to the one instance that owns it.
type Relay interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// relayFrame wraps an envelope with its origin instance so each instance can
// skip frames it published itself.
type relayFrame struct {
	Origin   uuid.UUID `json:"origin"`
	Envelope Envelope  `json:"envelope"`
}

type room struct {
	subs      map[*Session]struct{}
	stopRelay func()
}

// Hub tracks which sessions subscribe to which rooms and fans canonical
// broadcasts out to them, locally and across instances via the relay.
// A room key names one authoritative resource (a presence room, a board, a
// document, a comment thread).
type Hub struct {
	origin uuid.UUID
	relay  Relay

	mu    sync.Mutex
	rooms map[string]*room
}

func NewHub(relay Relay) *Hub {
	return &Hub{
		origin: uuid.New(),
		relay:  relay,
		rooms:  make(map[string]*room),
	}
}

// Join subscribes a session to a room, creating the room (and its relay
// subscription) on first join.
func (h *Hub) Join(ctx context.Context, key string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[key]
	if !ok {
		r = &room{subs: make(map[*Session]struct{})}
		h.rooms[key] = r
		if h.relay != nil {
			r.stopRelay = h.startRelay(key)
		}
	}
	r.subs[s] = struct{}{}
}

// Leave unsubscribes a session from a room, tearing the room down when it
// empties.
func (h *Hub) Leave(key string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(key, s)
}

func (h *Hub) leaveLocked(key string, s *Session) {
	r, ok := h.rooms[key]
	if !ok {
		return
	}
	delete(r.subs, s)
	if len(r.subs) == 0 {
		if r.stopRelay != nil {
			r.stopRelay()
		}
		delete(h.rooms, key)
	}
}

// Drop removes a session from every room it joined. Returns the room keys it
// was subscribed to so subsystems can clean up per-room state.
func (h *Hub) Drop(s *Session) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var keys []string
	for key, r := range h.rooms {
		if _, ok := r.subs[s]; ok {
			keys = append(keys, key)
			h.leaveLocked(key, s)
		}
	}
	return keys
}

// Members returns the sessions currently subscribed to a room.
func (h *Hub) Members(key string) []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[key]
	if !ok {
		return nil
	}
	out := make([]*Session, 0, len(r.subs))
	for s := range r.subs {
		out = append(out, s)
	}
	return out
}

// Broadcast delivers a canonical event to every subscriber of a room,
// including the originator, and publishes it to peer instances.
func (h *Hub) Broadcast(ctx context.Context, key, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal broadcast")
		return
	}
	env := Envelope{Event: event, Data: raw}

	frame, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("marshal broadcast envelope")
		return
	}
	h.deliverLocal(key, frame)

	if h.relay != nil {
		wire, err := json.Marshal(relayFrame{Origin: h.origin, Envelope: env})
		if err != nil {
			log.Error().Err(err).Str("event", event).Msg("marshal relay frame")
			return
		}
		if err := h.relay.Publish(ctx, relayChannel(key), wire); err != nil {
			log.Error().Err(err).Str("room", key).Msg("relay publish")
		}
	}
}

func (h *Hub) deliverLocal(key string, frame []byte) {
	h.mu.Lock()
	r, ok := h.rooms[key]
	var subs []*Session
	if ok {
		subs = make([]*Session, 0, len(r.subs))
		for s := range r.subs {
			subs = append(subs, s)
		}
	}
	h.mu.Unlock()

	for _, s := range subs {
		s.enqueue(frame)
	}
}

// startRelay subscribes to a room's relay channel and forwards frames that
// originated on other instances to local subscribers. Caller holds h.mu.
func (h *Hub) startRelay(key string) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		messages, cleanup, err := h.relay.Subscribe(ctx, relayChannel(key))
		if err != nil {
			log.Error().Err(err).Str("room", key).Msg("relay subscribe")
			return
		}
		defer cleanup()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var f relayFrame
				if err := json.Unmarshal(msg, &f); err != nil {
					log.Warn().Err(err).Str("room", key).Msg("bad relay frame")
					continue
				}
				if f.Origin == h.origin {
					continue
				}
				frame, err := json.Marshal(f.Envelope)
				if err != nil {
					continue
				}
				h.deliverLocal(key, frame)
			}
		}
	}()

	return cancel
}

func relayChannel(roomKey string) string {
	return "rt:" + roomKey
}

// Room key constructors. One key names one authoritative resource.

func PresenceRoom(name string) string { return "presence:" + name }

func BoardRoom(boardID uuid.UUID) string { return "board:" + boardID.String() }

func TimeRoom(userID uuid.UUID) string { return "time:" + userID.String() }

func DocRoom(key string) string { return "doc:" + key }

func CommentRoom(contextID string) string { return "comments:" + contextID }

func ReactionsRoom(itemType, itemID string) string {
	return "reactions:" + itemType + ":" + itemID
}
