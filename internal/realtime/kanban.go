package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tandemlabs/tandem/internal/domain"
)

// boardState is one board's authoritative in-memory representation plus its
// own lock: a single owner per resource keeps reindexing race-free.
type boardState struct {
	mu    sync.Mutex
	board *domain.KanbanBoard
}

// BoardSync is the shared-state synchronizer for kanban boards. Clients
// apply mutations optimistically; this authority validates, applies against
// canonical state, persists write-through, and rebroadcasts the canonical
// delta to every subscriber including the sender.
type BoardSync struct {
	hub  *Hub
	repo domain.BoardRepository
	now  func() time.Time

	mu     sync.Mutex
	boards map[uuid.UUID]*boardState
}

func NewBoardSync(hub *Hub, repo domain.BoardRepository) *BoardSync {
	return &BoardSync{
		hub:    hub,
		repo:   repo,
		now:    time.Now,
		boards: make(map[uuid.UUID]*boardState),
	}
}

// state returns the board's in-memory owner, loading it from the store on
// first access.
func (k *BoardSync) state(ctx context.Context, boardID uuid.UUID) (*boardState, error) {
	k.mu.Lock()
	st, ok := k.boards[boardID]
	if !ok {
		st = &boardState{}
		k.boards[boardID] = st
	}
	k.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.board == nil {
		b, err := k.repo.GetByID(ctx, boardID)
		if err != nil {
			return nil, fmt.Errorf("boardSync.state: %w", err)
		}
		st.board = b
	}
	return st, nil
}

// Join subscribes a session to a board's updates and sends it the full
// authoritative snapshot, which safely restarts any client-side view.
func (k *BoardSync) Join(ctx context.Context, s *Session, boardID uuid.UUID) error {
	st, err := k.state(ctx, boardID)
	if err != nil {
		return err
	}

	k.hub.Join(ctx, BoardRoom(boardID), s)

	// The snapshot is enqueued while the board lock is held: every mutation
	// applied after the copy broadcasts after it on the session queue, so a
	// delta can never be overwritten by an older snapshot.
	st.mu.Lock()
	snapshot := *st.board
	s.Send(EvKanbanBoard, KanbanBoardPayload{Board: &snapshot})
	st.mu.Unlock()

	k.broadcastUsers(ctx, boardID)
	return nil
}

// Leave unsubscribes a session from a board.
func (k *BoardSync) Leave(ctx context.Context, s *Session, boardID uuid.UUID) {
	k.hub.Leave(BoardRoom(boardID), s)
	k.broadcastUsers(ctx, boardID)
}

// broadcastUsers announces the board's current viewer set.
func (k *BoardSync) broadcastUsers(ctx context.Context, boardID uuid.UUID) {
	members := k.hub.Members(BoardRoom(boardID))
	users := make([]BoardUser, 0, len(members))
	seen := make(map[uuid.UUID]struct{}, len(members))
	for _, m := range members {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		users = append(users, BoardUser{
			ID:     m.UserID,
			Name:   m.Name,
			Color:  domain.PresenceColor(m.UserID),
			Avatar: m.Avatar,
		})
	}
	k.hub.Broadcast(ctx, BoardRoom(boardID), EvKanbanUsersUpdated,
		KanbanUsersPayload{BoardID: boardID, Users: users})
}

// AddCard creates a card at the end of its column and broadcasts it.
func (k *BoardSync) AddCard(ctx context.Context, s *Session, p *KanbanCardPayload) error {
	st, err := k.state(ctx, p.BoardID)
	if err != nil {
		return err
	}

	card := p.Card
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	if card.Priority == "" {
		card.Priority = domain.PriorityMedium
	}
	now := k.now()
	card.CreatedAt = now
	card.UpdatedAt = now

	st.mu.Lock()
	err = st.board.AddCard(&card)
	if err == nil {
		st.board.UpdatedAt = now
	}
	st.mu.Unlock()
	if err != nil {
		return err
	}

	if err := k.repo.CreateCard(ctx, &card); err != nil {
		log.Error().Err(err).Stringer("card", card.ID).Msg("persist card")
	}

	k.hub.Broadcast(ctx, BoardRoom(p.BoardID), EvKanbanCardAdded,
		KanbanCardPayload{BoardID: p.BoardID, Card: card})
	return nil
}

// UpdateCard replaces a card's mutable fields and broadcasts the canonical
// card. Position and column are not touched here; moves go through MoveCard.
func (k *BoardSync) UpdateCard(ctx context.Context, s *Session, p *KanbanCardPayload) error {
	st, err := k.state(ctx, p.BoardID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	card := st.board.CardByID(p.Card.ID)
	if card == nil {
		st.mu.Unlock()
		return fmt.Errorf("boardSync.UpdateCard: card %s: %w", p.Card.ID, domain.ErrNotFound)
	}
	card.Title = p.Card.Title
	card.Description = p.Card.Description
	card.Assignee = p.Card.Assignee
	if p.Card.Priority != "" {
		card.Priority = p.Card.Priority
	}
	card.Tags = p.Card.Tags
	card.DueDate = p.Card.DueDate
	card.EstimatedHours = p.Card.EstimatedHours
	card.ActualHours = p.Card.ActualHours
	card.UpdatedAt = k.now()
	canonical := *card
	st.mu.Unlock()

	if err := k.repo.UpdateCard(ctx, &canonical); err != nil {
		log.Error().Err(err).Stringer("card", canonical.ID).Msg("persist card update")
	}

	k.hub.Broadcast(ctx, BoardRoom(p.BoardID), EvKanbanCardUpdated,
		KanbanCardPayload{BoardID: p.BoardID, Card: canonical})
	return nil
}

// DeleteCard removes a card, closes the gap in its column, and broadcasts
// the deletion.
func (k *BoardSync) DeleteCard(ctx context.Context, s *Session, p *KanbanDeleteCardPayload) error {
	st, err := k.state(ctx, p.BoardID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	err = st.board.RemoveCard(p.CardID)
	var survivors []*domain.Card
	if err == nil {
		survivors = append(survivors, st.board.Cards...)
	}
	st.mu.Unlock()
	if err != nil {
		return err
	}

	if err := k.repo.DeleteCard(ctx, p.BoardID, p.CardID); err != nil {
		log.Error().Err(err).Stringer("card", p.CardID).Msg("persist card delete")
	}
	if err := k.repo.SaveCardOrders(ctx, p.BoardID, survivors); err != nil {
		log.Error().Err(err).Stringer("board", p.BoardID).Msg("persist card orders")
	}

	k.hub.Broadcast(ctx, BoardRoom(p.BoardID), EvKanbanCardDeleted,
		KanbanCardDeletedPayload{BoardID: p.BoardID, CardID: p.CardID})
	return nil
}

// AddColumn appends a column at the end of the board and broadcasts it.
func (k *BoardSync) AddColumn(ctx context.Context, s *Session, p *KanbanColumnPayload) error {
	st, err := k.state(ctx, p.BoardID)
	if err != nil {
		return err
	}

	col := p.Column
	if col.ID == uuid.Nil {
		col.ID = uuid.New()
	}

	st.mu.Lock()
	st.board.AddColumn(&col)
	st.board.UpdatedAt = k.now()
	st.mu.Unlock()

	if err := k.repo.CreateColumn(ctx, &col); err != nil {
		log.Error().Err(err).Stringer("column", col.ID).Msg("persist column")
	}

	k.hub.Broadcast(ctx, BoardRoom(p.BoardID), EvKanbanColumnAdded,
		KanbanColumnPayload{BoardID: p.BoardID, Column: col})
	return nil
}

// UpdateColumn replaces a column's title, color, and WIP limit and
// broadcasts the canonical column. Order is owned by the board, not the
// intent.
func (k *BoardSync) UpdateColumn(ctx context.Context, s *Session, p *KanbanColumnPayload) error {
	st, err := k.state(ctx, p.BoardID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	col := st.board.ColumnByID(p.Column.ID)
	if col == nil {
		st.mu.Unlock()
		return fmt.Errorf("boardSync.UpdateColumn: column %s: %w", p.Column.ID, domain.ErrNotFound)
	}
	col.Title = p.Column.Title
	col.Color = p.Column.Color
	col.WIPLimit = p.Column.WIPLimit
	canonical := *col
	st.board.UpdatedAt = k.now()
	st.mu.Unlock()

	if err := k.repo.UpdateColumn(ctx, &canonical); err != nil {
		log.Error().Err(err).Stringer("column", canonical.ID).Msg("persist column update")
	}

	k.hub.Broadcast(ctx, BoardRoom(p.BoardID), EvKanbanColumnUpdated,
		KanbanColumnPayload{BoardID: p.BoardID, Column: canonical})
	return nil
}

// DeleteColumn removes a column and its cards and broadcasts the removal.
func (k *BoardSync) DeleteColumn(ctx context.Context, s *Session, p *KanbanDeleteColumnPayload) error {
	st, err := k.state(ctx, p.BoardID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	err = st.board.RemoveColumn(p.ColumnID)
	if err == nil {
		st.board.UpdatedAt = k.now()
	}
	st.mu.Unlock()
	if err != nil {
		return err
	}

	if err := k.repo.DeleteColumn(ctx, p.BoardID, p.ColumnID); err != nil {
		log.Error().Err(err).Stringer("column", p.ColumnID).Msg("persist column delete")
	}

	k.hub.Broadcast(ctx, BoardRoom(p.BoardID), EvKanbanColumnDeleted,
		KanbanColumnDeletedPayload{BoardID: p.BoardID, ColumnID: p.ColumnID})
	return nil
}

// UpdateSettings replaces the board's display settings and broadcasts them.
func (k *BoardSync) UpdateSettings(ctx context.Context, s *Session, p *KanbanSettingsPayload) error {
	st, err := k.state(ctx, p.BoardID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.board.Settings = p.Settings
	st.board.UpdatedAt = k.now()
	st.mu.Unlock()

	if err := k.repo.UpdateSettings(ctx, p.BoardID, p.Settings); err != nil {
		log.Error().Err(err).Stringer("board", p.BoardID).Msg("persist board settings")
	}

	k.hub.Broadcast(ctx, BoardRoom(p.BoardID), EvKanbanSettingsUpdated,
		KanbanSettingsPayload{BoardID: p.BoardID, Settings: p.Settings})
	return nil
}

// MoveCard applies a move intent. A stale intent (the card is no longer at
// the claimed source position) is not an error to the sender: the authority
// broadcasts the card's authoritative current position so every optimistic
// guess, right or wrong, reconciles to canonical state.
func (k *BoardSync) MoveCard(ctx context.Context, s *Session, p *KanbanMoveCardPayload) error {
	st, err := k.state(ctx, p.BoardID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	moveErr := st.board.MoveCard(p.CardID, p.SourceColumnID, p.SourceIndex, p.DestColumnID, p.DestIndex)
	card := st.board.CardByID(p.CardID)
	var canonical domain.Card
	if card != nil {
		canonical = *card
	}
	var orders []*domain.Card
	if moveErr == nil {
		st.board.UpdatedAt = k.now()
		orders = append(orders, st.board.Cards...)
	}
	st.mu.Unlock()

	switch {
	case moveErr == nil:
		if err := k.repo.SaveCardOrders(ctx, p.BoardID, orders); err != nil {
			log.Error().Err(err).Stringer("board", p.BoardID).Msg("persist card orders")
		}
		k.hub.Broadcast(ctx, BoardRoom(p.BoardID), EvKanbanCardMoved, KanbanCardMovedPayload{
			BoardID:    p.BoardID,
			CardID:     p.CardID,
			FromColumn: p.SourceColumnID,
			ToColumn:   p.DestColumnID,
			NewOrder:   canonical.Order,
		})
		return nil

	case errors.Is(moveErr, domain.ErrStaleMove) && card != nil:
		// Silent correction: rebroadcast where the card actually is.
		log.Debug().
			Stringer("card", p.CardID).
			Stringer("board", p.BoardID).
			Msg("stale move intent, rebroadcasting authoritative position")
		k.hub.Broadcast(ctx, BoardRoom(p.BoardID), EvKanbanCardMoved, KanbanCardMovedPayload{
			BoardID:    p.BoardID,
			CardID:     p.CardID,
			FromColumn: canonical.ColumnID,
			ToColumn:   canonical.ColumnID,
			NewOrder:   canonical.Order,
		})
		return nil

	default:
		return moveErr
	}
}

// Board returns a copy of a board's authoritative state.
func (k *BoardSync) Board(ctx context.Context, boardID uuid.UUID) (*domain.KanbanBoard, error) {
	st, err := k.state(ctx, boardID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	snapshot := *st.board
	return &snapshot, nil
}
