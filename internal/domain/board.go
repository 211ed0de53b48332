package domain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

type CardPriority string

const (
	PriorityLow    CardPriority = "low"
	PriorityMedium CardPriority = "medium"
	PriorityHigh   CardPriority = "high"
	PriorityUrgent CardPriority = "urgent"
)

func (p CardPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

// BoardSettings are board-level display toggles. WIP limits are advisory:
// the synchronizer never rejects a move for exceeding one.
type BoardSettings struct {
	WIPLimitsEnabled bool `json:"wipLimitsEnabled"`
	CardNumbering    bool `json:"cardNumbering"`
	Swimlanes        bool `json:"swimlanes"`
}

type Column struct {
	ID       uuid.UUID `json:"id"`
	BoardID  uuid.UUID `json:"boardId"`
	Title    string    `json:"title"`
	Order    int       `json:"order"`
	Color    string    `json:"color,omitempty"`
	WIPLimit *int      `json:"wipLimit,omitempty"`
}

type Card struct {
	ID             uuid.UUID    `json:"id"`
	BoardID        uuid.UUID    `json:"boardId"`
	ColumnID       uuid.UUID    `json:"columnId"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	Order          int          `json:"order"`
	Assignee       *uuid.UUID   `json:"assignee,omitempty"`
	Priority       CardPriority `json:"priority"`
	Tags           []string     `json:"tags,omitempty"`
	DueDate        *time.Time   `json:"dueDate,omitempty"`
	EstimatedHours *float64     `json:"estimatedHours,omitempty"`
	ActualHours    *float64     `json:"actualHours,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// KanbanBoard is the authoritative representation of one board: its columns,
// its cards, and display settings. Mutating methods maintain the invariants
// that every card references an existing column and that (columnId, order)
// pairs within a column stay contiguous from zero.
type KanbanBoard struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Columns   []*Column     `json:"columns"`
	Cards     []*Card       `json:"cards"`
	Settings  BoardSettings `json:"settings"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ColumnByID returns the column with the given id, or nil.
func (b *KanbanBoard) ColumnByID(id uuid.UUID) *Column {
	for _, c := range b.Columns {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// CardByID returns the card with the given id, or nil.
func (b *KanbanBoard) CardByID(id uuid.UUID) *Card {
	for _, c := range b.Cards {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// CardsInColumn returns the column's cards sorted by order.
func (b *KanbanBoard) CardsInColumn(columnID uuid.UUID) []*Card {
	var cards []*Card
	for _, c := range b.Cards {
		if c.ColumnID == columnID {
			cards = append(cards, c)
		}
	}
	sort.Slice(cards, func(i, j int) bool { return cards[i].Order < cards[j].Order })
	return cards
}

// AddColumn appends a column at the end of the board.
func (b *KanbanBoard) AddColumn(col *Column) {
	col.BoardID = b.ID
	col.Order = len(b.Columns)
	b.Columns = append(b.Columns, col)
}

// RemoveColumn deletes a column together with its cards and renumbers the
// remaining columns contiguously.
func (b *KanbanBoard) RemoveColumn(columnID uuid.UUID) error {
	idx := -1
	for i, c := range b.Columns {
		if c.ID == columnID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("board.RemoveColumn: column %s: %w", columnID, ErrNotFound)
	}
	b.Columns = append(b.Columns[:idx], b.Columns[idx+1:]...)
	for i, c := range b.Columns {
		c.Order = i
	}
	kept := b.Cards[:0]
	for _, c := range b.Cards {
		if c.ColumnID != columnID {
			kept = append(kept, c)
		}
	}
	b.Cards = kept
	return nil
}

// reindexColumn renumbers a column's cards contiguously from zero,
// preserving their relative order.
func (b *KanbanBoard) reindexColumn(columnID uuid.UUID) {
	for i, c := range b.CardsInColumn(columnID) {
		c.Order = i
	}
}

// AddCard appends a card to the end of its column and assigns its order.
func (b *KanbanBoard) AddCard(card *Card) error {
	if b.ColumnByID(card.ColumnID) == nil {
		return fmt.Errorf("board.AddCard: column %s: %w", card.ColumnID, ErrNotFound)
	}
	card.BoardID = b.ID
	card.Order = len(b.CardsInColumn(card.ColumnID))
	b.Cards = append(b.Cards, card)
	return nil
}

// RemoveCard deletes a card and closes the gap in its column.
func (b *KanbanBoard) RemoveCard(cardID uuid.UUID) error {
	for i, c := range b.Cards {
		if c.ID == cardID {
			columnID := c.ColumnID
			b.Cards = append(b.Cards[:i], b.Cards[i+1:]...)
			b.reindexColumn(columnID)
			return nil
		}
	}
	return fmt.Errorf("board.RemoveCard: card %s: %w", cardID, ErrNotFound)
}

// MoveCard applies a move intent as an atomic remove-from-source,
// insert-at-destination transition. The intent's source column and index are
// validated against current state; a mismatch returns ErrStaleMove and
// leaves the board untouched, so the caller can correct the sender with the
// authoritative position instead.
func (b *KanbanBoard) MoveCard(cardID, srcColumnID uuid.UUID, srcIndex int, dstColumnID uuid.UUID, dstIndex int) error {
	card := b.CardByID(cardID)
	if card == nil {
		return fmt.Errorf("board.MoveCard: card %s: %w", cardID, ErrNotFound)
	}
	if b.ColumnByID(dstColumnID) == nil {
		return fmt.Errorf("board.MoveCard: column %s: %w", dstColumnID, ErrNotFound)
	}
	if card.ColumnID != srcColumnID || card.Order != srcIndex {
		return fmt.Errorf("board.MoveCard: card %s not at %s[%d]: %w",
			cardID, srcColumnID, srcIndex, ErrStaleMove)
	}

	// Remove from the source ordering: close the gap left behind. After this
	// loop every other card in the source column is contiguous again, which
	// also covers the same-column case.
	for _, c := range b.Cards {
		if c.ColumnID == srcColumnID && c.ID != card.ID && c.Order > srcIndex {
			c.Order--
		}
	}

	card.ColumnID = dstColumnID

	// Insert into the destination ordering at dstIndex, clamped to a valid
	// position, shifting later cards down.
	var others []*Card
	for _, c := range b.Cards {
		if c.ColumnID == dstColumnID && c.ID != card.ID {
			others = append(others, c)
		}
	}
	if dstIndex < 0 {
		dstIndex = 0
	}
	if dstIndex > len(others) {
		dstIndex = len(others)
	}
	for _, c := range others {
		if c.Order >= dstIndex {
			c.Order++
		}
	}
	card.Order = dstIndex
	return nil
}

type WIPState string

const (
	WIPOK       WIPState = "ok"
	WIPWarning  WIPState = "warning"
	WIPExceeded WIPState = "exceeded"
)

// WIPStatus classifies a column's load against its advisory limit. Warning
// starts at 80% of the limit. Returns WIPOK when limits are disabled or the
// column has none.
func (b *KanbanBoard) WIPStatus(columnID uuid.UUID) WIPState {
	col := b.ColumnByID(columnID)
	if col == nil || col.WIPLimit == nil || !b.Settings.WIPLimitsEnabled {
		return WIPOK
	}
	limit := *col.WIPLimit
	if limit <= 0 {
		return WIPOK
	}
	count := len(b.CardsInColumn(columnID))
	switch {
	case count >= limit:
		return WIPExceeded
	case float64(count) >= 0.8*float64(limit):
		return WIPWarning
	default:
		return WIPOK
	}
}

type BoardRepository interface {
	Create(ctx context.Context, b *KanbanBoard) error
	GetByID(ctx context.Context, id uuid.UUID) (*KanbanBoard, error)
	List(ctx context.Context) ([]*KanbanBoard, error)
	UpdateSettings(ctx context.Context, id uuid.UUID, s BoardSettings) error

	CreateColumn(ctx context.Context, c *Column) error
	UpdateColumn(ctx context.Context, c *Column) error
	DeleteColumn(ctx context.Context, boardID, id uuid.UUID) error

	CreateCard(ctx context.Context, c *Card) error
	UpdateCard(ctx context.Context, c *Card) error
	DeleteCard(ctx context.Context, boardID, id uuid.UUID) error
	// SaveCardOrders persists the (columnId, order) pairs produced by a move.
	SaveCardOrders(ctx context.Context, boardID uuid.UUID, cards []*Card) error
}
