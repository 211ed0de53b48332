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

type TimeEntryRepo struct {
	pool *pgxpool.Pool
}

func NewTimeEntryRepo(pool *pgxpool.Pool) *TimeEntryRepo {
	return &TimeEntryRepo{pool: pool}
}

func (r *TimeEntryRepo) Create(ctx context.Context, e *domain.TimeEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO time_entries (id, user_id, task_id, project_id, description, started_at, ended_at,
		        duration_seconds, billable, hourly_rate, tags, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, e.UserID, e.TaskID, e.ProjectID, e.Description, e.StartedAt, e.EndedAt,
		e.DurationSeconds, e.Billable, e.HourlyRate, e.Tags, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("timeEntryRepo.Create: %w", err)
	}

	return nil
}

func (r *TimeEntryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TimeEntry, error) {
	var e domain.TimeEntry

	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, task_id, project_id, description, started_at, ended_at,
		        duration_seconds, billable, hourly_rate, tags, created_at
		 FROM time_entries WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.UserID, &e.TaskID, &e.ProjectID, &e.Description, &e.StartedAt, &e.EndedAt,
		&e.DurationSeconds, &e.Billable, &e.HourlyRate, &e.Tags, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("timeEntryRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("timeEntryRepo.GetByID: %w", err)
	}

	return &e, nil
}

func (r *TimeEntryRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.TimeEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, task_id, project_id, description, started_at, ended_at,
		        duration_seconds, billable, hourly_rate, tags, created_at
		 FROM time_entries WHERE user_id = $1
		 ORDER BY started_at DESC
		 LIMIT 1000`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("timeEntryRepo.ListByUser: %w", err)
	}
	defer rows.Close()

	var entries []*domain.TimeEntry
	for rows.Next() {
		var e domain.TimeEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.TaskID, &e.ProjectID, &e.Description,
			&e.StartedAt, &e.EndedAt, &e.DurationSeconds, &e.Billable,
			&e.HourlyRate, &e.Tags, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("timeEntryRepo.ListByUser: scan: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("timeEntryRepo.ListByUser: rows: %w", err)
	}

	return entries, nil
}

func (r *TimeEntryRepo) Update(ctx context.Context, e *domain.TimeEntry) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE time_entries SET task_id = $1, project_id = $2, description = $3, started_at = $4,
		        ended_at = $5, duration_seconds = $6, billable = $7, hourly_rate = $8, tags = $9
		 WHERE id = $10`,
		e.TaskID, e.ProjectID, e.Description, e.StartedAt,
		e.EndedAt, e.DurationSeconds, e.Billable, e.HourlyRate, e.Tags,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("timeEntryRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("timeEntryRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TimeEntryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM time_entries WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("timeEntryRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("timeEntryRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}
