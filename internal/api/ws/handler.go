package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tandemlabs/tandem/internal/auth"
	"github.com/tandemlabs/tandem/internal/domain"
	"github.com/tandemlabs/tandem/internal/realtime"
	"github.com/tandemlabs/tandem/internal/server/middleware"
)

// Handler upgrades authenticated clients to the realtime event stream. One
// websocket connection carries every subsystem's events as named-envelope
// frames.
type Handler struct {
	engine    *realtime.Engine
	jwtSecret string
}

func NewHandler(engine *realtime.Engine, jwtSecret string) *Handler {
	return &Handler{engine: engine, jwtSecret: jwtSecret}
}

// Serve handles one websocket connection for its whole lifetime: upgrade,
// session registration, concurrent read and write loops, teardown.
//
// Identity comes from the Auth middleware when the client can set headers, or
// from a "token" query parameter (browser WebSocket cannot send Authorization).
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identify(r)
	if !ok {
		http.Error(w, "missing or invalid credentials", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	session := realtime.NewSession(identity.userID, identity.name, identity.avatar)

	h.engine.Connect(ctx, session)
	defer h.engine.Disconnect(ctx, session)

	log.Info().
		Stringer("session", session.ID).
		Stringer("user", session.UserID).
		Msg("websocket connected")

	go h.writeLoop(ctx, conn, session)
	h.readLoop(ctx, conn, session)

	log.Info().Stringer("session", session.ID).Msg("websocket disconnected")
}

// readLoop decodes inbound envelopes and routes them through the engine.
// Validation and authorization failures are logged and the connection kept
// open; transport errors end the session.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, s *realtime.Session) {
	for {
		_, frame, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var env realtime.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			log.Debug().Err(err).Stringer("session", s.ID).Msg("malformed frame")
			continue
		}

		if err := h.engine.HandleEvent(ctx, s, env); err != nil {
			level := log.Warn()
			if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrForbidden) {
				level = log.Debug()
			}
			level.Err(err).Stringer("session", s.ID).Str("event", env.Event).Msg("event rejected")
		}
	}
}

// writeLoop drains the session's outbound queue onto the wire. Exits when the
// session closes (queue overflow, disconnect) or the write fails.
func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, s *realtime.Session) {
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case <-s.Done():
			_ = conn.Close(websocket.StatusPolicyViolation, "session closed")
			return
		case frame := <-s.Outbound():
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				log.Debug().Err(err).Stringer("session", s.ID).Msg("websocket write")
				s.Close()
				return
			}
		}
	}
}

type identity struct {
	userID uuid.UUID
	name   string
	avatar string
}

func (h *Handler) identify(r *http.Request) (identity, bool) {
	if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
		name, _ := middleware.UserNameFromContext(r.Context())
		return identity{userID: userID, name: name}, true
	}

	// Browser WebSocket cannot send Authorization, so the token rides the
	// query string; non-browser clients may still use the header.
	token := r.URL.Query().Get("token")
	if token == "" {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
			token = header[len(prefix):]
		}
	}
	if token == "" {
		return identity{}, false
	}

	claims, err := auth.ValidateToken(h.jwtSecret, token)
	if err != nil || claims.IsRefresh() {
		return identity{}, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return identity{}, false
	}
	return identity{userID: userID, name: claims.Name}, true
}
