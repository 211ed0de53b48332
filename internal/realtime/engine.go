package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/tandemlabs/tandem/internal/domain"
)

// Options tunes the engine's timing behavior. Zero values fall back to the
// defaults documented on each field.
type Options struct {
	// PresenceTTL ejects presence entries that miss heartbeats. Should be at
	// least twice the client heartbeat interval. Default 75s.
	PresenceTTL time.Duration
	// TypingTTL clears awareness typing markers after inactivity. Default 2s.
	TypingTTL time.Duration
}

func (o *Options) applyDefaults() {
	if o.PresenceTTL <= 0 {
		o.PresenceTTL = 75 * time.Second
	}
	if o.TypingTTL <= 0 {
		o.TypingTTL = 2 * time.Second
	}
}

// Stores bundles the repositories the engine persists through. Timer and
// Document repositories may be nil (state stays in memory only); the board
// and comment repositories are required.
type Stores struct {
	Boards    domain.BoardRepository
	Timers    domain.TimerRepository
	Entries   domain.TimeEntryRepository
	Comments  domain.CommentRepository
	Documents domain.DocumentRepository
}

// Engine is the collaboration core: it owns the hub and every subsystem,
// and routes validated client events to the right authority.
type Engine struct {
	hub      *Hub
	presence *Tracker
	boards   *BoardSync
	timers   *TimerService
	docs     *DocEngine
	comments *CommentStream
}

func NewEngine(relay Relay, stores Stores, opts Options) *Engine {
	opts.applyDefaults()

	hub := NewHub(relay)
	return &Engine{
		hub:      hub,
		presence: NewTracker(hub, opts.PresenceTTL),
		boards:   NewBoardSync(hub, stores.Boards),
		timers:   NewTimerService(hub, stores.Timers, stores.Entries),
		docs:     NewDocEngine(hub, stores.Documents, opts.TypingTTL),
		comments: NewCommentStream(hub, stores.Comments),
	}
}

// Subsystem accessors for the REST snapshot API.

func (e *Engine) Boards() *BoardSync       { return e.boards }
func (e *Engine) Timers() *TimerService    { return e.timers }
func (e *Engine) Presence() *Tracker       { return e.presence }
func (e *Engine) Docs() *DocEngine         { return e.docs }
func (e *Engine) Comments() *CommentStream { return e.comments }

// Run starts the background sweepers (presence expiry, typing-marker
// clearing) and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	go e.docs.Run(ctx)
	e.presence.Run(ctx)
}

// Connect registers a new session. The session is immediately subscribed to
// its own time room so a persisted timer resumes across reconnects.
func (e *Engine) Connect(ctx context.Context, s *Session) {
	e.timers.Connect(ctx, s)
}

// Disconnect tears a session down: presence records are ejected, awareness
// entries cleared, and all room subscriptions dropped.
func (e *Engine) Disconnect(ctx context.Context, s *Session) {
	e.presence.Disconnect(ctx, s)
	e.docs.Disconnect(ctx, s)
	e.hub.Drop(s)
	s.Close()
}

// HandleEvent decodes, validates, and routes one client event. Validation
// and authorization errors are returned for transport-level logging; the
// subsystems have already applied their silent-corrective behavior where
// that is the contract.
func (e *Engine) HandleEvent(ctx context.Context, s *Session, env Envelope) error {
	payload, err := DecodePayload(env.Event, env.Data)
	if err != nil {
		return err
	}

	switch env.Event {
	case EvPresenceJoin:
		e.presence.Join(ctx, s, payload.(*PresenceJoinPayload))
	case EvPresenceUpdate:
		e.presence.Update(ctx, s, payload.(*PresenceUpdatePayload))
	case EvPresenceHeartbeat:
		e.presence.Heartbeat(ctx, s, payload.(*PresenceHeartbeatPayload))
	case EvPresenceActivity:
		e.presence.Activity(ctx, s, payload.(*PresenceActivityPayload))
	case EvPresenceLeave:
		e.presence.Leave(ctx, s, payload.(*PresenceLeavePayload).Room)

	case EvKanbanJoin:
		return e.boards.Join(ctx, s, payload.(*KanbanJoinPayload).BoardID)
	case EvKanbanLeave:
		e.boards.Leave(ctx, s, payload.(*KanbanJoinPayload).BoardID)
	case EvKanbanAddCard:
		return e.boards.AddCard(ctx, s, payload.(*KanbanCardPayload))
	case EvKanbanUpdateCard:
		return e.boards.UpdateCard(ctx, s, payload.(*KanbanCardPayload))
	case EvKanbanDeleteCard:
		return e.boards.DeleteCard(ctx, s, payload.(*KanbanDeleteCardPayload))
	case EvKanbanMoveCard:
		return e.boards.MoveCard(ctx, s, payload.(*KanbanMoveCardPayload))
	case EvKanbanAddColumn:
		return e.boards.AddColumn(ctx, s, payload.(*KanbanColumnPayload))
	case EvKanbanUpdateColumn:
		return e.boards.UpdateColumn(ctx, s, payload.(*KanbanColumnPayload))
	case EvKanbanDeleteColumn:
		return e.boards.DeleteColumn(ctx, s, payload.(*KanbanDeleteColumnPayload))
	case EvKanbanUpdateSettings:
		return e.boards.UpdateSettings(ctx, s, payload.(*KanbanSettingsPayload))

	case EvTimeStartTimer:
		return e.timers.Start(ctx, s, payload.(*TimeStartPayload))
	case EvTimePauseTimer:
		return e.timers.Pause(ctx, s)
	case EvTimeResumeTimer:
		return e.timers.Resume(ctx, s)
	case EvTimeStopTimer:
		_, err := e.timers.Stop(ctx, s)
		return err
	case EvTimeAddEntry:
		return e.timers.AddEntry(ctx, s, payload.(*TimeEntryPayload))
	case EvTimeUpdateEntry:
		return e.timers.UpdateEntry(ctx, s, payload.(*TimeEntryPayload))
	case EvTimeDeleteEntry:
		return e.timers.DeleteEntry(ctx, s, payload.(*TimeDeleteEntryPayload))

	case EvDocJoin:
		return e.docs.Join(ctx, s, payload.(*DocJoinPayload).Key)
	case EvDocLeave:
		e.docs.Leave(ctx, s, payload.(*DocJoinPayload).Key)
	case EvDocUpdate:
		return e.docs.Update(ctx, s, payload.(*DocUpdatePayload))
	case EvDocAwareness:
		e.docs.Awareness(ctx, s, payload.(*DocAwarenessPayload))

	case EvCommentJoin:
		return e.comments.Join(ctx, s, payload.(*CommentJoinPayload).ContextID)
	case EvCommentLeave:
		e.comments.Leave(s, payload.(*CommentJoinPayload).ContextID)
	case EvCommentAdd:
		return e.comments.Add(ctx, s, payload.(*CommentAddPayload))
	case EvCommentEdit:
		return e.comments.Edit(ctx, s, payload.(*CommentEditPayload))
	case EvCommentDelete:
		return e.comments.Delete(ctx, s, payload.(*CommentDeletePayload))
	case EvCommentToggleReaction:
		return e.comments.ToggleReaction(ctx, s, payload.(*CommentToggleReactionPayload))

	case EvReactionsJoin:
		e.comments.JoinReactions(ctx, s, payload.(*ReactionsJoinPayload))
	case EvReactionsLeave:
		e.comments.LeaveReactions(s, payload.(*ReactionsJoinPayload))
	case EvReactionsSend:
		e.comments.SendReaction(ctx, s, payload.(*ReactionsSendPayload))

	default:
		return fmt.Errorf("%q: %w", env.Event, ErrUnknownEvent)
	}
	return nil
}
