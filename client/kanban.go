package client

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/tandemlabs/tandem/internal/domain"
	"github.com/tandemlabs/tandem/internal/realtime"
)

// BoardView mirrors one kanban board. Local intents are applied optimistically
// so the UI never waits on the round trip; every canonical broadcast from the
// server overwrites the optimistic state, so the server always wins.
type BoardView struct {
	emitter Emitter
	boardID uuid.UUID

	mu    sync.Mutex
	board *domain.KanbanBoard
}

func NewBoardView(e Emitter, boardID uuid.UUID) *BoardView {
	return &BoardView{emitter: e, boardID: boardID}
}

// Bind subscribes the view to a connection's kanban events.
func (v *BoardView) Bind(c *Conn) {
	c.On(realtime.EvKanbanBoard, jsonHandler(v.applyBoard))
	c.On(realtime.EvKanbanCardAdded, jsonHandler(v.applyCardUpsert))
	c.On(realtime.EvKanbanCardUpdated, jsonHandler(v.applyCardUpsert))
	c.On(realtime.EvKanbanCardDeleted, jsonHandler(v.applyCardDeleted))
	c.On(realtime.EvKanbanCardMoved, jsonHandler(v.applyCardMoved))
	c.On(realtime.EvKanbanColumnAdded, jsonHandler(v.applyColumnUpsert))
	c.On(realtime.EvKanbanColumnUpdated, jsonHandler(v.applyColumnUpsert))
	c.On(realtime.EvKanbanColumnDeleted, jsonHandler(v.applyColumnDeleted))
	c.On(realtime.EvKanbanSettingsUpdated, jsonHandler(v.applySettings))
}

// Join requests the authoritative snapshot.
func (v *BoardView) Join() error {
	return v.emitter.Emit(realtime.EvKanbanJoin, &realtime.KanbanJoinPayload{BoardID: v.boardID})
}

// Board returns the current view, nil before the first snapshot arrives.
func (v *BoardView) Board() *domain.KanbanBoard {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.board
}

// MoveCard applies the move locally for immediate feedback and sends the
// intent. A locally stale move is not sent; the pending snapshot will
// correct the view. A move the server judges stale comes back as the
// authoritative position, which overwrites the optimistic one.
func (v *BoardView) MoveCard(cardID, srcColumnID uuid.UUID, srcIndex int, dstColumnID uuid.UUID, dstIndex int) error {
	v.mu.Lock()
	if v.board != nil {
		if err := v.board.MoveCard(cardID, srcColumnID, srcIndex, dstColumnID, dstIndex); err != nil &&
			!errors.Is(err, domain.ErrStaleMove) {
			v.mu.Unlock()
			return err
		}
	}
	v.mu.Unlock()

	return v.emitter.Emit(realtime.EvKanbanMoveCard, &realtime.KanbanMoveCardPayload{
		BoardID:        v.boardID,
		CardID:         cardID,
		SourceColumnID: srcColumnID,
		SourceIndex:    srcIndex,
		DestColumnID:   dstColumnID,
		DestIndex:      dstIndex,
	})
}

// AddCard appends the card locally and sends the intent. The server assigns
// the durable identity; the optimistic card is replaced when the canonical
// card-added broadcast arrives.
func (v *BoardView) AddCard(card domain.Card) error {
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	v.mu.Lock()
	if v.board != nil {
		_ = v.board.AddCard(&card)
	}
	v.mu.Unlock()

	return v.emitter.Emit(realtime.EvKanbanAddCard, &realtime.KanbanCardPayload{
		BoardID: v.boardID,
		Card:    card,
	})
}

// UpdateCard overwrites the card's fields locally and sends the intent.
func (v *BoardView) UpdateCard(card domain.Card) error {
	v.mu.Lock()
	if v.board != nil {
		if cur := v.board.CardByID(card.ID); cur != nil {
			// Keep the authoritative position; only content fields are edited
			// through this path.
			card.ColumnID = cur.ColumnID
			card.Order = cur.Order
			*cur = card
		}
	}
	v.mu.Unlock()

	return v.emitter.Emit(realtime.EvKanbanUpdateCard, &realtime.KanbanCardPayload{
		BoardID: v.boardID,
		Card:    card,
	})
}

// DeleteCard removes the card locally and sends the intent.
func (v *BoardView) DeleteCard(cardID uuid.UUID) error {
	v.mu.Lock()
	if v.board != nil {
		_ = v.board.RemoveCard(cardID)
	}
	v.mu.Unlock()

	return v.emitter.Emit(realtime.EvKanbanDeleteCard, &realtime.KanbanDeleteCardPayload{
		BoardID: v.boardID,
		CardID:  cardID,
	})
}

// AddColumn appends the column locally and sends the intent.
func (v *BoardView) AddColumn(col domain.Column) error {
	if col.ID == uuid.Nil {
		col.ID = uuid.New()
	}
	v.mu.Lock()
	if v.board != nil {
		v.board.AddColumn(&col)
	}
	v.mu.Unlock()

	return v.emitter.Emit(realtime.EvKanbanAddColumn, &realtime.KanbanColumnPayload{
		BoardID: v.boardID,
		Column:  col,
	})
}

// UpdateColumn edits the column's title, color, and WIP limit locally and
// sends the intent. Order stays authoritative.
func (v *BoardView) UpdateColumn(col domain.Column) error {
	v.mu.Lock()
	if v.board != nil {
		if cur := v.board.ColumnByID(col.ID); cur != nil {
			cur.Title = col.Title
			cur.Color = col.Color
			cur.WIPLimit = col.WIPLimit
		}
	}
	v.mu.Unlock()

	return v.emitter.Emit(realtime.EvKanbanUpdateColumn, &realtime.KanbanColumnPayload{
		BoardID: v.boardID,
		Column:  col,
	})
}

// DeleteColumn removes the column and its cards locally and sends the intent.
func (v *BoardView) DeleteColumn(columnID uuid.UUID) error {
	v.mu.Lock()
	if v.board != nil {
		_ = v.board.RemoveColumn(columnID)
	}
	v.mu.Unlock()

	return v.emitter.Emit(realtime.EvKanbanDeleteColumn, &realtime.KanbanDeleteColumnPayload{
		BoardID:  v.boardID,
		ColumnID: columnID,
	})
}

// UpdateSettings applies the display settings locally and sends the intent.
func (v *BoardView) UpdateSettings(settings domain.BoardSettings) error {
	v.mu.Lock()
	if v.board != nil {
		v.board.Settings = settings
	}
	v.mu.Unlock()

	return v.emitter.Emit(realtime.EvKanbanUpdateSettings, &realtime.KanbanSettingsPayload{
		BoardID:  v.boardID,
		Settings: settings,
	})
}

// WIPStatus reports the column's advisory load classification.
func (v *BoardView) WIPStatus(columnID uuid.UUID) domain.WIPState {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.board == nil {
		return domain.WIPOK
	}
	return v.board.WIPStatus(columnID)
}

// HandleEvent applies one inbound kanban event by name.
func (v *BoardView) HandleEvent(event string, data []byte) {
	switch event {
	case realtime.EvKanbanBoard:
		jsonHandler(v.applyBoard)(data)
	case realtime.EvKanbanCardAdded, realtime.EvKanbanCardUpdated:
		jsonHandler(v.applyCardUpsert)(data)
	case realtime.EvKanbanCardDeleted:
		jsonHandler(v.applyCardDeleted)(data)
	case realtime.EvKanbanCardMoved:
		jsonHandler(v.applyCardMoved)(data)
	case realtime.EvKanbanColumnAdded, realtime.EvKanbanColumnUpdated:
		jsonHandler(v.applyColumnUpsert)(data)
	case realtime.EvKanbanColumnDeleted:
		jsonHandler(v.applyColumnDeleted)(data)
	case realtime.EvKanbanSettingsUpdated:
		jsonHandler(v.applySettings)(data)
	}
}

func (v *BoardView) applyBoard(p realtime.KanbanBoardPayload) {
	if p.Board == nil || p.Board.ID != v.boardID {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.board = p.Board
}

func (v *BoardView) applyCardUpsert(p realtime.KanbanCardPayload) {
	if p.BoardID != v.boardID {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.board == nil {
		return
	}
	card := p.Card
	if cur := v.board.CardByID(card.ID); cur != nil {
		*cur = card
		return
	}
	// Canonical append keeps the server's assigned order.
	v.board.Cards = append(v.board.Cards, &card)
}

func (v *BoardView) applyCardDeleted(p realtime.KanbanCardDeletedPayload) {
	if p.BoardID != v.boardID {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.board == nil {
		return
	}
	_ = v.board.RemoveCard(p.CardID)
}

func (v *BoardView) applyColumnUpsert(p realtime.KanbanColumnPayload) {
	if p.BoardID != v.boardID {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.board == nil {
		return
	}
	col := p.Column
	if cur := v.board.ColumnByID(col.ID); cur != nil {
		*cur = col
		return
	}
	v.board.Columns = append(v.board.Columns, &col)
}

func (v *BoardView) applyColumnDeleted(p realtime.KanbanColumnDeletedPayload) {
	if p.BoardID != v.boardID {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.board == nil {
		return
	}
	_ = v.board.RemoveColumn(p.ColumnID)
}

func (v *BoardView) applySettings(p realtime.KanbanSettingsPayload) {
	if p.BoardID != v.boardID {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.board == nil {
		return
	}
	v.board.Settings = p.Settings
}

// applyCardMoved places the card exactly where the server says it is. This
// also corrects any optimistic move the server rejected as stale.
func (v *BoardView) applyCardMoved(p realtime.KanbanCardMovedPayload) {
	if p.BoardID != v.boardID {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.board == nil {
		return
	}
	card := v.board.CardByID(p.CardID)
	if card == nil {
		return
	}
	if card.ColumnID == p.ToColumn && card.Order == p.NewOrder {
		return // optimistic move already landed here
	}
	if err := v.board.MoveCard(p.CardID, card.ColumnID, card.Order, p.ToColumn, p.NewOrder); err != nil {
		// Positions drifted beyond repair; a fresh snapshot resolves it.
		_ = v.Join()
	}
}
