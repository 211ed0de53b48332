package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tandemlabs/tandem/internal/domain"
)

// BoardRepo persists kanban boards across three tables: boards,
// board_columns, and board_cards. GetByID reassembles the full aggregate the
// board synchronizer holds in memory.
type BoardRepo struct {
	pool *pgxpool.Pool
}

func NewBoardRepo(pool *pgxpool.Pool) *BoardRepo {
	return &BoardRepo{pool: pool}
}

func (r *BoardRepo) Create(ctx context.Context, b *domain.KanbanBoard) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("boardRepo.Create: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO boards (id, name, wip_limits_enabled, card_numbering, swimlanes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.Name, b.Settings.WIPLimitsEnabled, b.Settings.CardNumbering, b.Settings.Swimlanes,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("boardRepo.Create: %w", err)
	}

	for _, c := range b.Columns {
		if err := insertColumn(ctx, tx, c); err != nil {
			return fmt.Errorf("boardRepo.Create: %w", err)
		}
	}
	for _, c := range b.Cards {
		if err := insertCard(ctx, tx, c); err != nil {
			return fmt.Errorf("boardRepo.Create: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("boardRepo.Create: commit: %w", err)
	}

	return nil
}

func (r *BoardRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.KanbanBoard, error) {
	var b domain.KanbanBoard

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, wip_limits_enabled, card_numbering, swimlanes, created_at, updated_at
		 FROM boards WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Name, &b.Settings.WIPLimitsEnabled, &b.Settings.CardNumbering,
		&b.Settings.Swimlanes, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", err)
	}

	if b.Columns, err = r.columns(ctx, id); err != nil {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", err)
	}
	if b.Cards, err = r.cards(ctx, id); err != nil {
		return nil, fmt.Errorf("boardRepo.GetByID: %w", err)
	}

	return &b, nil
}

func (r *BoardRepo) List(ctx context.Context) ([]*domain.KanbanBoard, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, wip_limits_enabled, card_numbering, swimlanes, created_at, updated_at
		 FROM boards ORDER BY created_at LIMIT 1000`,
	)
	if err != nil {
		return nil, fmt.Errorf("boardRepo.List: %w", err)
	}
	defer rows.Close()

	var boards []*domain.KanbanBoard
	for rows.Next() {
		var b domain.KanbanBoard
		if err := rows.Scan(&b.ID, &b.Name, &b.Settings.WIPLimitsEnabled,
			&b.Settings.CardNumbering, &b.Settings.Swimlanes, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("boardRepo.List: scan: %w", err)
		}
		boards = append(boards, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("boardRepo.List: rows: %w", err)
	}

	// Listing returns board headers only; columns and cards load on GetByID.
	return boards, nil
}

func (r *BoardRepo) UpdateSettings(ctx context.Context, id uuid.UUID, s domain.BoardSettings) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE boards SET wip_limits_enabled = $1, card_numbering = $2, swimlanes = $3, updated_at = now()
		 WHERE id = $4`,
		s.WIPLimitsEnabled, s.CardNumbering, s.Swimlanes, id,
	)
	if err != nil {
		return fmt.Errorf("boardRepo.UpdateSettings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("boardRepo.UpdateSettings: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *BoardRepo) CreateColumn(ctx context.Context, c *domain.Column) error {
	if err := insertColumn(ctx, r.pool, c); err != nil {
		return fmt.Errorf("boardRepo.CreateColumn: %w", err)
	}
	return nil
}

func (r *BoardRepo) UpdateColumn(ctx context.Context, c *domain.Column) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE board_columns SET title = $1, position = $2, color = $3, wip_limit = $4
		 WHERE board_id = $5 AND id = $6`,
		c.Title, c.Order, c.Color, c.WIPLimit, c.BoardID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("boardRepo.UpdateColumn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("boardRepo.UpdateColumn: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *BoardRepo) DeleteColumn(ctx context.Context, boardID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM board_columns WHERE board_id = $1 AND id = $2`,
		boardID, id,
	)
	if err != nil {
		return fmt.Errorf("boardRepo.DeleteColumn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("boardRepo.DeleteColumn: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *BoardRepo) CreateCard(ctx context.Context, c *domain.Card) error {
	if err := insertCard(ctx, r.pool, c); err != nil {
		return fmt.Errorf("boardRepo.CreateCard: %w", err)
	}
	return nil
}

func (r *BoardRepo) UpdateCard(ctx context.Context, c *domain.Card) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE board_cards SET column_id = $1, title = $2, description = $3, position = $4,
		        assignee = $5, priority = $6, tags = $7, due_date = $8,
		        estimated_hours = $9, actual_hours = $10, updated_at = now()
		 WHERE board_id = $11 AND id = $12`,
		c.ColumnID, c.Title, c.Description, c.Order,
		c.Assignee, c.Priority, c.Tags, c.DueDate,
		c.EstimatedHours, c.ActualHours,
		c.BoardID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("boardRepo.UpdateCard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("boardRepo.UpdateCard: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *BoardRepo) DeleteCard(ctx context.Context, boardID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM board_cards WHERE board_id = $1 AND id = $2`,
		boardID, id,
	)
	if err != nil {
		return fmt.Errorf("boardRepo.DeleteCard: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("boardRepo.DeleteCard: %w", domain.ErrNotFound)
	}

	return nil
}

// SaveCardOrders writes the (column_id, position) pairs produced by a move in
// one transaction so a crash never leaves a board half-reordered.
func (r *BoardRepo) SaveCardOrders(ctx context.Context, boardID uuid.UUID, cards []*domain.Card) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("boardRepo.SaveCardOrders: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range cards {
		_, err := tx.Exec(ctx,
			`UPDATE board_cards SET column_id = $1, position = $2, updated_at = now()
			 WHERE board_id = $3 AND id = $4`,
			c.ColumnID, c.Order, boardID, c.ID,
		)
		if err != nil {
			return fmt.Errorf("boardRepo.SaveCardOrders: card %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("boardRepo.SaveCardOrders: commit: %w", err)
	}

	return nil
}

func (r *BoardRepo) columns(ctx context.Context, boardID uuid.UUID) ([]*domain.Column, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, board_id, title, position, color, wip_limit
		 FROM board_columns WHERE board_id = $1 ORDER BY position`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	defer rows.Close()

	var cols []*domain.Column
	for rows.Next() {
		var c domain.Column
		if err := rows.Scan(&c.ID, &c.BoardID, &c.Title, &c.Order, &c.Color, &c.WIPLimit); err != nil {
			return nil, fmt.Errorf("columns: scan: %w", err)
		}
		cols = append(cols, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("columns: rows: %w", err)
	}

	return cols, nil
}

func (r *BoardRepo) cards(ctx context.Context, boardID uuid.UUID) ([]*domain.Card, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, board_id, column_id, title, description, position, assignee, priority,
		        tags, due_date, estimated_hours, actual_hours, created_at, updated_at
		 FROM board_cards WHERE board_id = $1 ORDER BY column_id, position`,
		boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("cards: %w", err)
	}
	defer rows.Close()

	var cards []*domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID, &c.BoardID, &c.ColumnID, &c.Title, &c.Description,
			&c.Order, &c.Assignee, &c.Priority, &c.Tags, &c.DueDate,
			&c.EstimatedHours, &c.ActualHours, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("cards: scan: %w", err)
		}
		cards = append(cards, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cards: rows: %w", err)
	}

	return cards, nil
}

// pgxExecer is satisfied by both *pgxpool.Pool and pgx.Tx, so the insert
// helpers work inside and outside a transaction.
type pgxExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertColumn(ctx context.Context, db pgxExecer, c *domain.Column) error {
	_, err := db.Exec(ctx,
		`INSERT INTO board_columns (id, board_id, title, position, color, wip_limit)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.BoardID, c.Title, c.Order, c.Color, c.WIPLimit,
	)
	return err
}

func insertCard(ctx context.Context, db pgxExecer, c *domain.Card) error {
	_, err := db.Exec(ctx,
		`INSERT INTO board_cards (id, board_id, column_id, title, description, position, assignee,
		        priority, tags, due_date, estimated_hours, actual_hours, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.BoardID, c.ColumnID, c.Title, c.Description, c.Order, c.Assignee,
		c.Priority, c.Tags, c.DueDate, c.EstimatedHours, c.ActualHours,
		c.CreatedAt, c.UpdatedAt,
	)
	return err
}
