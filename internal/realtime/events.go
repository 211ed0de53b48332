// Package realtime implements the collaboration core: presence tracking,
// kanban and timer state synchronization, collaborative document merging,
// and the comment/reaction stream, all multiplexed over a single websocket
// per client.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tandemlabs/tandem/internal/domain"
)

// Envelope is the wire frame for every event in both directions: a named
// event plus its JSON payload. There is no request/response pairing.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client-to-server event names.
const (
	EvPresenceJoin      = "presence:join"
	EvPresenceUpdate    = "presence:update"
	EvPresenceHeartbeat = "presence:heartbeat"
	EvPresenceActivity  = "presence:activity"
	EvPresenceLeave     = "presence:leave"

	EvKanbanJoin       = "kanban:join"
	EvKanbanLeave      = "kanban:leave"
	EvKanbanAddCard    = "kanban:add-card"
	EvKanbanUpdateCard = "kanban:update-card"
	EvKanbanDeleteCard = "kanban:delete-card"
	EvKanbanMoveCard   = "kanban:move-card"

	EvKanbanAddColumn      = "kanban:add-column"
	EvKanbanUpdateColumn   = "kanban:update-column"
	EvKanbanDeleteColumn   = "kanban:delete-column"
	EvKanbanUpdateSettings = "kanban:update-settings"

	EvTimeStartTimer  = "time:start-timer"
	EvTimePauseTimer  = "time:pause-timer"
	EvTimeResumeTimer = "time:resume-timer"
	EvTimeStopTimer   = "time:stop-timer"
	EvTimeAddEntry    = "time:add-entry"
	EvTimeUpdateEntry = "time:update-entry"
	EvTimeDeleteEntry = "time:delete-entry"

	EvDocJoin      = "doc:join"
	EvDocLeave     = "doc:leave"
	EvDocUpdate    = "doc:update"
	EvDocAwareness = "doc:awareness"

	EvCommentJoin           = "comment:join"
	EvCommentLeave          = "comment:leave"
	EvCommentAdd            = "comment:add"
	EvCommentEdit           = "comment:edit"
	EvCommentDelete         = "comment:delete"
	EvCommentToggleReaction = "comment:toggle-reaction"

	EvReactionsJoin  = "reactions:join"
	EvReactionsLeave = "reactions:leave"
	EvReactionsSend  = "reactions:send"
)

// Server-to-client event names.
const (
	EvPresenceUsers      = "presence:users"
	EvPresenceUserJoined = "presence:user-joined"
	EvPresenceUserLeft   = "presence:user-left"

	EvKanbanBoard           = "kanban:board"
	EvKanbanCardAdded       = "kanban:card-added"
	EvKanbanCardUpdated     = "kanban:card-updated"
	EvKanbanCardDeleted     = "kanban:card-deleted"
	EvKanbanCardMoved       = "kanban:card-moved"
	EvKanbanColumnAdded     = "kanban:column-added"
	EvKanbanColumnUpdated   = "kanban:column-updated"
	EvKanbanColumnDeleted   = "kanban:column-deleted"
	EvKanbanSettingsUpdated = "kanban:settings-updated"
	EvKanbanUsersUpdated    = "kanban:users-updated"

	EvTimeTimerUpdated = "time:timer-updated"
	EvTimeEntryAdded   = "time:entry-added"
	EvTimeEntryUpdated = "time:entry-updated"
	EvTimeEntryDeleted = "time:entry-deleted"

	EvDocState          = "doc:state"
	EvDocAwarenessState = "doc:awareness-state"

	EvCommentHistory         = "comment:history"
	EvCommentAdded           = "comment:added"
	EvCommentUpdated         = "comment:updated"
	EvCommentDeleted         = "comment:deleted"
	EvCommentReactionUpdated = "comment:reaction-updated"
	EvCommentError           = "comment:error"

	EvReactionsNew = "reactions:new"
)

// ---------------------------------------------------------------------------
// Client payloads. Each shape validates itself on receipt; unknown events and
// malformed payloads are rejected before touching any authoritative state.
// ---------------------------------------------------------------------------

type PresenceJoinPayload struct {
	Room        string                `json:"room"`
	Name        string                `json:"name"`
	Avatar      string                `json:"avatar,omitempty"`
	CurrentPage string                `json:"currentPage,omitempty"`
	Status      domain.PresenceStatus `json:"status,omitempty"`
	CurrentItem *domain.ItemRef       `json:"currentItem,omitempty"`
}

func (p *PresenceJoinPayload) Validate() error {
	if p.Room == "" {
		return fmt.Errorf("presence:join: room required: %w", domain.ErrValidation)
	}
	if p.Name == "" {
		return fmt.Errorf("presence:join: name required: %w", domain.ErrValidation)
	}
	if p.Status != "" && !p.Status.Valid() {
		return fmt.Errorf("presence:join: bad status %q: %w", p.Status, domain.ErrValidation)
	}
	return validateItem(p.CurrentItem, "presence:join")
}

type PresenceUpdatePayload struct {
	Room        string                `json:"room"`
	CurrentPage string                `json:"currentPage,omitempty"`
	CurrentItem *domain.ItemRef       `json:"currentItem,omitempty"`
	Status      domain.PresenceStatus `json:"status,omitempty"`
}

func (p *PresenceUpdatePayload) Validate() error {
	if p.Room == "" {
		return fmt.Errorf("presence:update: room required: %w", domain.ErrValidation)
	}
	if p.Status != "" && !p.Status.Valid() {
		return fmt.Errorf("presence:update: bad status %q: %w", p.Status, domain.ErrValidation)
	}
	return validateItem(p.CurrentItem, "presence:update")
}

type PresenceHeartbeatPayload struct {
	Room   string                `json:"room"`
	Status domain.PresenceStatus `json:"status,omitempty"`
}

func (p *PresenceHeartbeatPayload) Validate() error {
	if p.Room == "" {
		return fmt.Errorf("presence:heartbeat: room required: %w", domain.ErrValidation)
	}
	if p.Status != "" && !p.Status.Valid() {
		return fmt.Errorf("presence:heartbeat: bad status %q: %w", p.Status, domain.ErrValidation)
	}
	return nil
}

type PresenceActivityPayload struct {
	Room        string          `json:"room"`
	CurrentItem *domain.ItemRef `json:"currentItem"`
}

func (p *PresenceActivityPayload) Validate() error {
	if p.Room == "" {
		return fmt.Errorf("presence:activity: room required: %w", domain.ErrValidation)
	}
	return validateItem(p.CurrentItem, "presence:activity")
}

type PresenceLeavePayload struct {
	Room string `json:"room"`
}

func (p *PresenceLeavePayload) Validate() error {
	if p.Room == "" {
		return fmt.Errorf("presence:leave: room required: %w", domain.ErrValidation)
	}
	return nil
}

func validateItem(item *domain.ItemRef, ev string) error {
	if item == nil {
		return nil
	}
	if !item.Type.Valid() {
		return fmt.Errorf("%s: bad item type %q: %w", ev, item.Type, domain.ErrValidation)
	}
	if item.ID == "" {
		return fmt.Errorf("%s: item id required: %w", ev, domain.ErrValidation)
	}
	if !item.Action.Valid() {
		return fmt.Errorf("%s: bad item action %q: %w", ev, item.Action, domain.ErrValidation)
	}
	return nil
}

type KanbanJoinPayload struct {
	BoardID uuid.UUID `json:"boardId"`
}

func (p *KanbanJoinPayload) Validate() error {
	if p.BoardID == uuid.Nil {
		return fmt.Errorf("kanban:join: boardId required: %w", domain.ErrValidation)
	}
	return nil
}

type KanbanCardPayload struct {
	BoardID uuid.UUID   `json:"boardId"`
	Card    domain.Card `json:"card"`
}

func (p *KanbanCardPayload) Validate() error {
	if p.BoardID == uuid.Nil {
		return fmt.Errorf("kanban card event: boardId required: %w", domain.ErrValidation)
	}
	if p.Card.Title == "" {
		return fmt.Errorf("kanban card event: title required: %w", domain.ErrValidation)
	}
	if p.Card.Priority != "" && !p.Card.Priority.Valid() {
		return fmt.Errorf("kanban card event: bad priority %q: %w", p.Card.Priority, domain.ErrValidation)
	}
	return nil
}

type KanbanDeleteCardPayload struct {
	BoardID uuid.UUID `json:"boardId"`
	CardID  uuid.UUID `json:"cardId"`
}

func (p *KanbanDeleteCardPayload) Validate() error {
	if p.BoardID == uuid.Nil || p.CardID == uuid.Nil {
		return fmt.Errorf("kanban:delete-card: boardId and cardId required: %w", domain.ErrValidation)
	}
	return nil
}

type KanbanMoveCardPayload struct {
	BoardID        uuid.UUID `json:"boardId"`
	CardID         uuid.UUID `json:"cardId"`
	SourceColumnID uuid.UUID `json:"sourceColumnId"`
	SourceIndex    int       `json:"sourceIndex"`
	DestColumnID   uuid.UUID `json:"destColumnId"`
	DestIndex      int       `json:"destIndex"`
}

func (p *KanbanMoveCardPayload) Validate() error {
	if p.BoardID == uuid.Nil || p.CardID == uuid.Nil ||
		p.SourceColumnID == uuid.Nil || p.DestColumnID == uuid.Nil {
		return fmt.Errorf("kanban:move-card: ids required: %w", domain.ErrValidation)
	}
	if p.SourceIndex < 0 {
		return fmt.Errorf("kanban:move-card: negative source index: %w", domain.ErrValidation)
	}
	return nil
}

type KanbanColumnPayload struct {
	BoardID uuid.UUID     `json:"boardId"`
	Column  domain.Column `json:"column"`
}

func (p *KanbanColumnPayload) Validate() error {
	if p.BoardID == uuid.Nil {
		return fmt.Errorf("kanban column event: boardId required: %w", domain.ErrValidation)
	}
	if p.Column.Title == "" {
		return fmt.Errorf("kanban column event: title required: %w", domain.ErrValidation)
	}
	if p.Column.WIPLimit != nil && *p.Column.WIPLimit < 0 {
		return fmt.Errorf("kanban column event: negative wip limit: %w", domain.ErrValidation)
	}
	return nil
}

type KanbanDeleteColumnPayload struct {
	BoardID  uuid.UUID `json:"boardId"`
	ColumnID uuid.UUID `json:"columnId"`
}

func (p *KanbanDeleteColumnPayload) Validate() error {
	if p.BoardID == uuid.Nil || p.ColumnID == uuid.Nil {
		return fmt.Errorf("kanban:delete-column: boardId and columnId required: %w", domain.ErrValidation)
	}
	return nil
}

type KanbanSettingsPayload struct {
	BoardID  uuid.UUID            `json:"boardId"`
	Settings domain.BoardSettings `json:"settings"`
}

func (p *KanbanSettingsPayload) Validate() error {
	if p.BoardID == uuid.Nil {
		return fmt.Errorf("kanban:update-settings: boardId required: %w", domain.ErrValidation)
	}
	return nil
}

type TimeStartPayload struct {
	TaskID      *uuid.UUID `json:"taskId,omitempty"`
	ProjectID   *uuid.UUID `json:"projectId,omitempty"`
	Description string     `json:"description,omitempty"`
}

func (p *TimeStartPayload) Validate() error { return nil }

type TimeEntryPayload struct {
	Entry domain.TimeEntry `json:"entry"`
}

func (p *TimeEntryPayload) Validate() error { return p.Entry.Validate() }

type TimeDeleteEntryPayload struct {
	EntryID uuid.UUID `json:"entryId"`
}

func (p *TimeDeleteEntryPayload) Validate() error {
	if p.EntryID == uuid.Nil {
		return fmt.Errorf("time:delete-entry: entryId required: %w", domain.ErrValidation)
	}
	return nil
}

type DocJoinPayload struct {
	Key string `json:"key"`
}

func (p *DocJoinPayload) Validate() error {
	if p.Key == "" {
		return fmt.Errorf("doc:join: key required: %w", domain.ErrValidation)
	}
	return nil
}

type DocUpdatePayload struct {
	Key     string `json:"key"`
	Field   string `json:"field"`
	Value   string `json:"value"`
	Version uint64 `json:"version"`
}

func (p *DocUpdatePayload) Validate() error {
	if p.Key == "" || p.Field == "" {
		return fmt.Errorf("doc:update: key and field required: %w", domain.ErrValidation)
	}
	return nil
}

type DocAwarenessPayload struct {
	Key          string `json:"key"`
	EditingField string `json:"editingField,omitempty"`
}

func (p *DocAwarenessPayload) Validate() error {
	if p.Key == "" {
		return fmt.Errorf("doc:awareness: key required: %w", domain.ErrValidation)
	}
	return nil
}

type CommentJoinPayload struct {
	ContextID string `json:"contextId"`
}

func (p *CommentJoinPayload) Validate() error {
	if p.ContextID == "" {
		return fmt.Errorf("comment:join: contextId required: %w", domain.ErrValidation)
	}
	return nil
}

type CommentAddPayload struct {
	ContextID string     `json:"contextId"`
	Content   string     `json:"content"`
	ParentID  *uuid.UUID `json:"parentId,omitempty"`
}

func (p *CommentAddPayload) Validate() error {
	if p.ContextID == "" {
		return fmt.Errorf("comment:add: contextId required: %w", domain.ErrValidation)
	}
	if p.Content == "" {
		return fmt.Errorf("comment:add: content required: %w", domain.ErrValidation)
	}
	return nil
}

type CommentEditPayload struct {
	ID      uuid.UUID `json:"id"`
	Content string    `json:"content"`
}

func (p *CommentEditPayload) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("comment:edit: id required: %w", domain.ErrValidation)
	}
	if p.Content == "" {
		return fmt.Errorf("comment:edit: content required: %w", domain.ErrValidation)
	}
	return nil
}

type CommentDeletePayload struct {
	ID uuid.UUID `json:"id"`
}

func (p *CommentDeletePayload) Validate() error {
	if p.ID == uuid.Nil {
		return fmt.Errorf("comment:delete: id required: %w", domain.ErrValidation)
	}
	return nil
}

type CommentToggleReactionPayload struct {
	ID    uuid.UUID `json:"id"`
	Emoji string    `json:"emoji"`
}

func (p *CommentToggleReactionPayload) Validate() error {
	if p.ID == uuid.Nil || p.Emoji == "" {
		return fmt.Errorf("comment:toggle-reaction: id and emoji required: %w", domain.ErrValidation)
	}
	return nil
}

type ReactionsJoinPayload struct {
	ItemType domain.ItemType `json:"itemType"`
	ItemID   string          `json:"itemId"`
}

func (p *ReactionsJoinPayload) Validate() error {
	if !p.ItemType.Valid() {
		return fmt.Errorf("reactions room: bad item type %q: %w", p.ItemType, domain.ErrValidation)
	}
	if p.ItemID == "" {
		return fmt.Errorf("reactions room: itemId required: %w", domain.ErrValidation)
	}
	return nil
}

type ReactionsSendPayload struct {
	ItemType domain.ItemType `json:"itemType"`
	ItemID   string          `json:"itemId"`
	Emoji    string          `json:"emoji"`
	X        float64         `json:"x"`
	Y        float64         `json:"y"`
}

func (p *ReactionsSendPayload) Validate() error {
	if !p.ItemType.Valid() || p.ItemID == "" {
		return fmt.Errorf("reactions:send: item reference required: %w", domain.ErrValidation)
	}
	if p.Emoji == "" {
		return fmt.Errorf("reactions:send: emoji required: %w", domain.ErrValidation)
	}
	if p.X < 0 || p.X > 100 || p.Y < 0 || p.Y > 100 {
		return fmt.Errorf("reactions:send: coordinates must be percentages: %w", domain.ErrValidation)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Server payloads.
// ---------------------------------------------------------------------------

type PresenceUsersPayload struct {
	Room  string                 `json:"room"`
	Users []*domain.PresenceUser `json:"users"`
}

type PresenceUserJoinedPayload struct {
	Room string               `json:"room"`
	User *domain.PresenceUser `json:"user"`
}

type PresenceUserLeftPayload struct {
	Room string    `json:"room"`
	ID   uuid.UUID `json:"id"`
}

type KanbanBoardPayload struct {
	Board *domain.KanbanBoard `json:"board"`
}

type KanbanCardMovedPayload struct {
	BoardID    uuid.UUID `json:"boardId"`
	CardID     uuid.UUID `json:"cardId"`
	FromColumn uuid.UUID `json:"fromColumn"`
	ToColumn   uuid.UUID `json:"toColumn"`
	NewOrder   int       `json:"newOrder"`
}

type KanbanCardDeletedPayload struct {
	BoardID uuid.UUID `json:"boardId"`
	CardID  uuid.UUID `json:"cardId"`
}

type KanbanColumnDeletedPayload struct {
	BoardID  uuid.UUID `json:"boardId"`
	ColumnID uuid.UUID `json:"columnId"`
}

type BoardUser struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Color  string    `json:"color"`
	Avatar string    `json:"avatar,omitempty"`
}

type KanbanUsersPayload struct {
	BoardID uuid.UUID   `json:"boardId"`
	Users   []BoardUser `json:"users"`
}

type TimerUpdatedPayload struct {
	Timer *domain.Timer `json:"timer"` // nil after stop
}

type DocStatePayload struct {
	Key    string                 `json:"key"`
	Fields []domain.DocumentField `json:"fields"`
}

type DocUpdateBroadcast struct {
	Key   string               `json:"key"`
	Field domain.DocumentField `json:"field"`
}

type DocAwarenessBroadcast struct {
	Key   string                `json:"key"`
	Entry domain.AwarenessEntry `json:"entry"`
	Gone  bool                  `json:"gone,omitempty"` // entry removed (disconnect/leave)
}

type DocAwarenessStatePayload struct {
	Key     string                  `json:"key"`
	Entries []domain.AwarenessEntry `json:"entries"`
}

type CommentHistoryPayload struct {
	ContextID string            `json:"contextId"`
	Comments  []*domain.Comment `json:"comments"`
}

type CommentDeletedPayload struct {
	ContextID string    `json:"contextId"`
	ID        uuid.UUID `json:"id"`
}

type CommentErrorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

type ReactionBurst struct {
	ID        uuid.UUID       `json:"id"`
	ItemType  domain.ItemType `json:"itemType"`
	ItemID    string          `json:"itemId"`
	Emoji     string          `json:"emoji"`
	UserID    uuid.UUID       `json:"userId"`
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
	Timestamp time.Time       `json:"timestamp"`
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// validatable is the contract every client payload satisfies.
type validatable interface {
	Validate() error
}

// ErrUnknownEvent marks an event name outside the taxonomy.
var ErrUnknownEvent = fmt.Errorf("realtime: unknown event: %w", domain.ErrValidation)

// DecodePayload parses and validates a client event payload by event name.
// Unknown names and malformed shapes are rejected before any handler runs.
func DecodePayload(event string, data json.RawMessage) (any, error) {
	var p validatable

	switch event {
	case EvPresenceJoin:
		p = &PresenceJoinPayload{}
	case EvPresenceUpdate:
		p = &PresenceUpdatePayload{}
	case EvPresenceHeartbeat:
		p = &PresenceHeartbeatPayload{}
	case EvPresenceActivity:
		p = &PresenceActivityPayload{}
	case EvPresenceLeave:
		p = &PresenceLeavePayload{}
	case EvKanbanJoin, EvKanbanLeave:
		p = &KanbanJoinPayload{}
	case EvKanbanAddCard, EvKanbanUpdateCard:
		p = &KanbanCardPayload{}
	case EvKanbanDeleteCard:
		p = &KanbanDeleteCardPayload{}
	case EvKanbanMoveCard:
		p = &KanbanMoveCardPayload{}
	case EvKanbanAddColumn, EvKanbanUpdateColumn:
		p = &KanbanColumnPayload{}
	case EvKanbanDeleteColumn:
		p = &KanbanDeleteColumnPayload{}
	case EvKanbanUpdateSettings:
		p = &KanbanSettingsPayload{}
	case EvTimeStartTimer:
		p = &TimeStartPayload{}
	case EvTimePauseTimer, EvTimeResumeTimer, EvTimeStopTimer:
		return nil, nil // no payload
	case EvTimeAddEntry, EvTimeUpdateEntry:
		p = &TimeEntryPayload{}
	case EvTimeDeleteEntry:
		p = &TimeDeleteEntryPayload{}
	case EvDocJoin, EvDocLeave:
		p = &DocJoinPayload{}
	case EvDocUpdate:
		p = &DocUpdatePayload{}
	case EvDocAwareness:
		p = &DocAwarenessPayload{}
	case EvCommentJoin, EvCommentLeave:
		p = &CommentJoinPayload{}
	case EvCommentAdd:
		p = &CommentAddPayload{}
	case EvCommentEdit:
		p = &CommentEditPayload{}
	case EvCommentDelete:
		p = &CommentDeletePayload{}
	case EvCommentToggleReaction:
		p = &CommentToggleReactionPayload{}
	case EvReactionsJoin, EvReactionsLeave:
		p = &ReactionsJoinPayload{}
	case EvReactionsSend:
		p = &ReactionsSendPayload{}
	default:
		return nil, fmt.Errorf("%q: %w", event, ErrUnknownEvent)
	}

	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("realtime.DecodePayload: %s: %w", event, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("realtime.DecodePayload: %w", err)
	}
	return p, nil
}
