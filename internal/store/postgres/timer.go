package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tandemlabs/tandem/internal/domain"
)

// TimerRepo persists the per-user active timer. One row per user: starting a
// timer upserts, stopping deletes.
type TimerRepo struct {
	pool *pgxpool.Pool
}

func NewTimerRepo(pool *pgxpool.Pool) *TimerRepo {
	return &TimerRepo{pool: pool}
}

func (r *TimerRepo) Save(ctx context.Context, t *domain.Timer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO active_timers (user_id, id, task_id, project_id, description, started_at, running, accumulated_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id) DO UPDATE SET
		        id = EXCLUDED.id, task_id = EXCLUDED.task_id, project_id = EXCLUDED.project_id,
		        description = EXCLUDED.description, started_at = EXCLUDED.started_at,
		        running = EXCLUDED.running, accumulated_seconds = EXCLUDED.accumulated_seconds`,
		t.UserID, t.ID, t.TaskID, t.ProjectID, t.Description, t.StartedAt, t.Running, t.AccumulatedSeconds,
	)
	if err != nil {
		return fmt.Errorf("timerRepo.Save: %w", err)
	}

	return nil
}

func (r *TimerRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Timer, error) {
	var t domain.Timer

	err := r.pool.QueryRow(ctx,
		`SELECT user_id, id, task_id, project_id, description, started_at, running, accumulated_seconds
		 FROM active_timers WHERE user_id = $1`,
		userID,
	).Scan(&t.UserID, &t.ID, &t.TaskID, &t.ProjectID, &t.Description, &t.StartedAt, &t.Running, &t.AccumulatedSeconds)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("timerRepo.GetByUser: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("timerRepo.GetByUser: %w", err)
	}

	return &t, nil
}

func (r *TimerRepo) Delete(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM active_timers WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("timerRepo.Delete: %w", err)
	}

	return nil
}
