package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tandemlabs/tandem/internal/domain"
)

// CommentRepo persists comments with their reaction aggregates stored as a
// JSONB column. Reactions mutate with the comment, never independently, so a
// single row per comment keeps reads and toggles one statement each.
type CommentRepo struct {
	pool *pgxpool.Pool
}

func NewCommentRepo(pool *pgxpool.Pool) *CommentRepo {
	return &CommentRepo{pool: pool}
}

func (r *CommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	reactions, err := marshalReactions(c.Reactions)
	if err != nil {
		return fmt.Errorf("commentRepo.Create: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO comments (id, context_id, author_id, author_name, content, parent_id, reactions, created_at, updated_at, edited)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.ContextID, c.AuthorID, c.AuthorName, c.Content, c.ParentID, reactions,
		c.CreatedAt, c.UpdatedAt, c.Edited,
	)
	if err != nil {
		return fmt.Errorf("commentRepo.Create: %w", err)
	}

	return nil
}

func (r *CommentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	var (
		c         domain.Comment
		reactions []byte
	)

	err := r.pool.QueryRow(ctx,
		`SELECT id, context_id, author_id, author_name, content, parent_id, reactions, created_at, updated_at, edited
		 FROM comments WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.ContextID, &c.AuthorID, &c.AuthorName, &c.Content, &c.ParentID,
		&reactions, &c.CreatedAt, &c.UpdatedAt, &c.Edited)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("commentRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("commentRepo.GetByID: %w", err)
	}

	if c.Reactions, err = unmarshalReactions(reactions); err != nil {
		return nil, fmt.Errorf("commentRepo.GetByID: %w", err)
	}

	return &c, nil
}

func (r *CommentRepo) ListByContext(ctx context.Context, contextID string) ([]*domain.Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, context_id, author_id, author_name, content, parent_id, reactions, created_at, updated_at, edited
		 FROM comments WHERE context_id = $1
		 ORDER BY created_at
		 LIMIT 1000`,
		contextID,
	)
	if err != nil {
		return nil, fmt.Errorf("commentRepo.ListByContext: %w", err)
	}
	defer rows.Close()

	var comments []*domain.Comment
	for rows.Next() {
		var (
			c         domain.Comment
			reactions []byte
		)
		if err := rows.Scan(&c.ID, &c.ContextID, &c.AuthorID, &c.AuthorName, &c.Content,
			&c.ParentID, &reactions, &c.CreatedAt, &c.UpdatedAt, &c.Edited); err != nil {
			return nil, fmt.Errorf("commentRepo.ListByContext: scan: %w", err)
		}
		if c.Reactions, err = unmarshalReactions(reactions); err != nil {
			return nil, fmt.Errorf("commentRepo.ListByContext: %w", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("commentRepo.ListByContext: rows: %w", err)
	}

	return comments, nil
}

func (r *CommentRepo) Update(ctx context.Context, c *domain.Comment) error {
	reactions, err := marshalReactions(c.Reactions)
	if err != nil {
		return fmt.Errorf("commentRepo.Update: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE comments SET content = $1, reactions = $2, updated_at = $3, edited = $4
		 WHERE id = $5`,
		c.Content, reactions, c.UpdatedAt, c.Edited, c.ID,
	)
	if err != nil {
		return fmt.Errorf("commentRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("commentRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *CommentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM comments WHERE id = $1 OR parent_id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("commentRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("commentRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func marshalReactions(m map[string]*domain.Reaction) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal reactions: %w", err)
	}
	return raw, nil
}

func unmarshalReactions(raw []byte) (map[string]*domain.Reaction, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]*domain.Reaction
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal reactions: %w", err)
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
