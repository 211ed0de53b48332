package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandemlabs/tandem/internal/domain"
)

// seedBoard builds a board with todo/done columns and n cards in each.
func seedBoard(todo, done int) (*domain.KanbanBoard, uuid.UUID, uuid.UUID) {
	b := &domain.KanbanBoard{ID: uuid.New(), Name: "sprint"}
	todoCol := &domain.Column{ID: uuid.New(), BoardID: b.ID, Title: "todo", Order: 0}
	doneCol := &domain.Column{ID: uuid.New(), BoardID: b.ID, Title: "done", Order: 1}
	b.Columns = []*domain.Column{todoCol, doneCol}

	for i := 0; i < todo; i++ {
		b.Cards = append(b.Cards, &domain.Card{
			ID: uuid.New(), BoardID: b.ID, ColumnID: todoCol.ID,
			Title: "t", Order: i, Priority: domain.PriorityMedium,
		})
	}
	for i := 0; i < done; i++ {
		b.Cards = append(b.Cards, &domain.Card{
			ID: uuid.New(), BoardID: b.ID, ColumnID: doneCol.ID,
			Title: "d", Order: i, Priority: domain.PriorityMedium,
		})
	}
	return b, todoCol.ID, doneCol.ID
}

func joinBoard(t *testing.T, k *BoardSync, boardID uuid.UUID, name string) *Session {
	t.Helper()

	s := NewSession(uuid.New(), name, "")
	require.NoError(t, k.Join(context.Background(), s, boardID))
	return s
}

func TestBoardSync_JoinSendsSnapshot(t *testing.T) {
	t.Parallel()

	board, _, _ := seedBoard(2, 1)
	k := NewBoardSync(NewHub(nil), newMemBoardRepo(board))

	s := joinBoard(t, k, board.ID, "alice")

	envs := drain(t, s)
	var snap KanbanBoardPayload
	lastEvent(t, envs, EvKanbanBoard, &snap)
	assert.Equal(t, board.ID, snap.Board.ID)
	assert.Len(t, snap.Board.Cards, 3)

	var users KanbanUsersPayload
	lastEvent(t, envs, EvKanbanUsersUpdated, &users)
	require.Len(t, users.Users, 1)
	assert.Equal(t, "alice", users.Users[0].Name)
}

func TestBoardSync_JoinUnknownBoard(t *testing.T) {
	t.Parallel()

	k := NewBoardSync(NewHub(nil), newMemBoardRepo())
	s := NewSession(uuid.New(), "alice", "")

	err := k.Join(context.Background(), s, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Client A moves c1 from todo[0] to done[0]; client B observes the broadcast
// and ends with c1 at done[0] and the displaced card at done[1].
func TestBoardSync_MoveCard_BroadcastToAllSubscribers(t *testing.T) {
	t.Parallel()

	board, todoCol, doneCol := seedBoard(1, 1)
	c1 := board.CardsInColumn(todoCol)[0]
	displaced := board.CardsInColumn(doneCol)[0]

	k := NewBoardSync(NewHub(nil), newMemBoardRepo(board))
	a := joinBoard(t, k, board.ID, "a")
	b := joinBoard(t, k, board.ID, "b")
	drain(t, a)
	drain(t, b)

	require.NoError(t, k.MoveCard(context.Background(), a, &KanbanMoveCardPayload{
		BoardID: board.ID, CardID: c1.ID,
		SourceColumnID: todoCol, SourceIndex: 0,
		DestColumnID: doneCol, DestIndex: 0,
	}))

	// Both subscribers, sender included, receive the canonical delta.
	for _, s := range []*Session{a, b} {
		var moved KanbanCardMovedPayload
		lastEvent(t, drain(t, s), EvKanbanCardMoved, &moved)
		assert.Equal(t, c1.ID, moved.CardID)
		assert.Equal(t, todoCol, moved.FromColumn)
		assert.Equal(t, doneCol, moved.ToColumn)
		assert.Equal(t, 0, moved.NewOrder)
	}

	canonical, err := k.Board(context.Background(), board.ID)
	require.NoError(t, err)
	assert.Equal(t, doneCol, canonical.CardByID(c1.ID).ColumnID)
	assert.Equal(t, 0, canonical.CardByID(c1.ID).Order)
	assert.Equal(t, 1, canonical.CardByID(displaced.ID).Order)
}

func TestBoardSync_MoveCard_StaleIntentIsCorrectedNotErrored(t *testing.T) {
	t.Parallel()

	board, todoCol, doneCol := seedBoard(2, 0)
	card := board.CardsInColumn(todoCol)[0]

	k := NewBoardSync(NewHub(nil), newMemBoardRepo(board))
	a := joinBoard(t, k, board.ID, "a")
	b := joinBoard(t, k, board.ID, "b")
	drain(t, a)
	drain(t, b)

	ctx := context.Background()

	// A wins the race.
	require.NoError(t, k.MoveCard(ctx, a, &KanbanMoveCardPayload{
		BoardID: board.ID, CardID: card.ID,
		SourceColumnID: todoCol, SourceIndex: 0,
		DestColumnID: doneCol, DestIndex: 0,
	}))

	// B's intent was built against the old position: no error, but a
	// corrective broadcast carrying the authoritative position.
	err := k.MoveCard(ctx, b, &KanbanMoveCardPayload{
		BoardID: board.ID, CardID: card.ID,
		SourceColumnID: todoCol, SourceIndex: 0,
		DestColumnID: todoCol, DestIndex: 1,
	})
	require.NoError(t, err)

	var correction KanbanCardMovedPayload
	lastEvent(t, drain(t, b), EvKanbanCardMoved, &correction)
	assert.Equal(t, doneCol, correction.ToColumn, "correction points at where the card really is")
	assert.Equal(t, 0, correction.NewOrder)

	canonical, err := k.Board(ctx, board.ID)
	require.NoError(t, err)
	assert.Equal(t, doneCol, canonical.CardByID(card.ID).ColumnID, "stale intent was not applied")
}

func TestBoardSync_AddUpdateDeleteCard(t *testing.T) {
	t.Parallel()

	board, todoCol, _ := seedBoard(1, 0)
	repo := newMemBoardRepo(board)
	k := NewBoardSync(NewHub(nil), repo)
	s := joinBoard(t, k, board.ID, "alice")
	drain(t, s)

	ctx := context.Background()

	require.NoError(t, k.AddCard(ctx, s, &KanbanCardPayload{
		BoardID: board.ID,
		Card:    domain.Card{ColumnID: todoCol, Title: "write tests"},
	}))
	var added KanbanCardPayload
	lastEvent(t, drain(t, s), EvKanbanCardAdded, &added)
	assert.NotEqual(t, uuid.Nil, added.Card.ID)
	assert.Equal(t, 1, added.Card.Order, "appended after the existing card")
	assert.Equal(t, domain.PriorityMedium, added.Card.Priority, "default priority")

	added.Card.Title = "write more tests"
	added.Card.Priority = domain.PriorityUrgent
	require.NoError(t, k.UpdateCard(ctx, s, &KanbanCardPayload{BoardID: board.ID, Card: added.Card}))
	var updated KanbanCardPayload
	lastEvent(t, drain(t, s), EvKanbanCardUpdated, &updated)
	assert.Equal(t, "write more tests", updated.Card.Title)
	assert.Equal(t, domain.PriorityUrgent, updated.Card.Priority)

	require.NoError(t, k.DeleteCard(ctx, s, &KanbanDeleteCardPayload{BoardID: board.ID, CardID: added.Card.ID}))
	var deleted KanbanCardDeletedPayload
	lastEvent(t, drain(t, s), EvKanbanCardDeleted, &deleted)
	assert.Equal(t, added.Card.ID, deleted.CardID)

	canonical, err := k.Board(ctx, board.ID)
	require.NoError(t, err)
	assert.Len(t, canonical.Cards, 1)
}

func TestBoardSync_AddUpdateDeleteColumn(t *testing.T) {
	t.Parallel()

	board, todoCol, _ := seedBoard(2, 0)
	k := NewBoardSync(NewHub(nil), newMemBoardRepo(board))
	s := joinBoard(t, k, board.ID, "alice")
	drain(t, s)

	ctx := context.Background()

	require.NoError(t, k.AddColumn(ctx, s, &KanbanColumnPayload{
		BoardID: board.ID,
		Column:  domain.Column{Title: "review"},
	}))
	var added KanbanColumnPayload
	lastEvent(t, drain(t, s), EvKanbanColumnAdded, &added)
	assert.NotEqual(t, uuid.Nil, added.Column.ID)
	assert.Equal(t, 2, added.Column.Order, "appended after the existing columns")

	limit := 3
	added.Column.Title = "in review"
	added.Column.WIPLimit = &limit
	require.NoError(t, k.UpdateColumn(ctx, s, &KanbanColumnPayload{BoardID: board.ID, Column: added.Column}))
	var updated KanbanColumnPayload
	lastEvent(t, drain(t, s), EvKanbanColumnUpdated, &updated)
	assert.Equal(t, "in review", updated.Column.Title)
	require.NotNil(t, updated.Column.WIPLimit)
	assert.Equal(t, 3, *updated.Column.WIPLimit)

	// Deleting the todo column takes its cards with it.
	require.NoError(t, k.DeleteColumn(ctx, s, &KanbanDeleteColumnPayload{BoardID: board.ID, ColumnID: todoCol}))
	var deleted KanbanColumnDeletedPayload
	lastEvent(t, drain(t, s), EvKanbanColumnDeleted, &deleted)
	assert.Equal(t, todoCol, deleted.ColumnID)

	canonical, err := k.Board(ctx, board.ID)
	require.NoError(t, err)
	assert.Nil(t, canonical.ColumnByID(todoCol))
	assert.Empty(t, canonical.Cards)
	for i, c := range canonical.Columns {
		assert.Equal(t, i, c.Order, "column orders stay contiguous")
	}
}

func TestBoardSync_UpdateSettings(t *testing.T) {
	t.Parallel()

	board, _, _ := seedBoard(1, 0)
	k := NewBoardSync(NewHub(nil), newMemBoardRepo(board))
	a := joinBoard(t, k, board.ID, "a")
	b := joinBoard(t, k, board.ID, "b")
	drain(t, a)
	drain(t, b)

	want := domain.BoardSettings{WIPLimitsEnabled: true, Swimlanes: true}
	require.NoError(t, k.UpdateSettings(context.Background(), a, &KanbanSettingsPayload{
		BoardID:  board.ID,
		Settings: want,
	}))

	var got KanbanSettingsPayload
	lastEvent(t, drain(t, b), EvKanbanSettingsUpdated, &got)
	assert.Equal(t, want, got.Settings)

	canonical, err := k.Board(context.Background(), board.ID)
	require.NoError(t, err)
	assert.Equal(t, want, canonical.Settings)
}

func TestBoardSync_UpdateUnknownColumn(t *testing.T) {
	t.Parallel()

	board, _, _ := seedBoard(0, 0)
	k := NewBoardSync(NewHub(nil), newMemBoardRepo(board))
	s := joinBoard(t, k, board.ID, "alice")

	err := k.UpdateColumn(context.Background(), s, &KanbanColumnPayload{
		BoardID: board.ID,
		Column:  domain.Column{ID: uuid.New(), Title: "ghost"},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBoardSync_LeaveUpdatesViewerList(t *testing.T) {
	t.Parallel()

	board, _, _ := seedBoard(0, 0)
	k := NewBoardSync(NewHub(nil), newMemBoardRepo(board))
	a := joinBoard(t, k, board.ID, "a")
	b := joinBoard(t, k, board.ID, "b")
	drain(t, a)

	k.Leave(context.Background(), b, board.ID)

	var users KanbanUsersPayload
	lastEvent(t, drain(t, a), EvKanbanUsersUpdated, &users)
	require.Len(t, users.Users, 1)
	assert.Equal(t, a.UserID, users.Users[0].ID)
}

// A session joining while cards are being added must be able to reconstruct
// the full board from its frame stream: every card is either in the snapshot
// or in a delta that arrives after it.
func TestBoardSync_JoinDuringAddsLosesNoCard(t *testing.T) {
	t.Parallel()

	board, todoCol, _ := seedBoard(0, 0)
	k := NewBoardSync(NewHub(nil), newMemBoardRepo(board))
	writer := joinBoard(t, k, board.ID, "writer")
	drain(t, writer)

	const adds = 40
	joiner := NewSession(uuid.New(), "joiner", "")
	var wg sync.WaitGroup
	wg.Add(adds + 1)
	for i := 0; i < adds; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, k.AddCard(context.Background(), writer, &KanbanCardPayload{
				BoardID: board.ID,
				Card:    domain.Card{ColumnID: todoCol, Title: "card"},
			}))
		}()
	}
	go func() {
		defer wg.Done()
		assert.NoError(t, k.Join(context.Background(), joiner, board.ID))
	}()
	wg.Wait()

	seen := make(map[uuid.UUID]struct{})
	snapshotSeen := false
	for _, env := range drain(t, joiner) {
		switch env.Event {
		case EvKanbanBoard:
			var p KanbanBoardPayload
			require.NoError(t, json.Unmarshal(env.Data, &p))
			snapshotSeen = true
			seen = make(map[uuid.UUID]struct{}, len(p.Board.Cards))
			for _, c := range p.Board.Cards {
				seen[c.ID] = struct{}{}
			}
		case EvKanbanCardAdded:
			var p KanbanCardPayload
			require.NoError(t, json.Unmarshal(env.Data, &p))
			seen[p.Card.ID] = struct{}{}
		}
	}
	require.True(t, snapshotSeen)

	authority, err := k.Board(context.Background(), board.ID)
	require.NoError(t, err)
	require.Len(t, authority.Cards, adds)
	require.Len(t, seen, adds)
	for _, c := range authority.Cards {
		assert.Contains(t, seen, c.ID)
	}
}
