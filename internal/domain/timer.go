package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Timer is a user's active stopwatch. Elapsed time is always recomputed from
// StartedAt and AccumulatedSeconds rather than trusting a stored counter, so
// the value stays correct across reconnects and pause/resume cycles.
type Timer struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"userId"`
	TaskID             *uuid.UUID `json:"taskId,omitempty"`
	ProjectID          *uuid.UUID `json:"projectId,omitempty"`
	Description        string     `json:"description"`
	StartedAt          time.Time  `json:"startedAt"`
	Running            bool       `json:"isRunning"`
	AccumulatedSeconds int64      `json:"accumulatedSeconds"`
}

// Elapsed returns total tracked time as of now: the accumulated seconds from
// prior running stretches plus the current stretch when running.
func (t *Timer) Elapsed(now time.Time) time.Duration {
	d := time.Duration(t.AccumulatedSeconds) * time.Second
	if t.Running {
		d += now.Sub(t.StartedAt)
	}
	return d
}

// Pause folds the current running stretch into AccumulatedSeconds.
// No-op when already paused.
func (t *Timer) Pause(now time.Time) {
	if !t.Running {
		return
	}
	t.AccumulatedSeconds += int64(now.Sub(t.StartedAt).Seconds())
	t.Running = false
}

// Resume restarts the running stretch at now. No-op when already running.
func (t *Timer) Resume(now time.Time) {
	if t.Running {
		return
	}
	t.StartedAt = now
	t.Running = true
}

// Stop finalizes the timer into an immutable TimeEntry ending at now.
func (t *Timer) Stop(now time.Time) *TimeEntry {
	elapsed := t.Elapsed(now)
	return &TimeEntry{
		ID:              uuid.New(),
		UserID:          t.UserID,
		TaskID:          t.TaskID,
		ProjectID:       t.ProjectID,
		Description:     t.Description,
		StartedAt:       now.Add(-elapsed),
		EndedAt:         now,
		DurationSeconds: int64(elapsed.Seconds()),
		CreatedAt:       now,
	}
}

// TimeEntry is an immutable historical record of tracked time, produced by
// stopping a timer or entered manually.
type TimeEntry struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"userId"`
	TaskID          *uuid.UUID `json:"taskId,omitempty"`
	ProjectID       *uuid.UUID `json:"projectId,omitempty"`
	Description     string     `json:"description"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         time.Time  `json:"endedAt"`
	DurationSeconds int64      `json:"durationSeconds"`
	Billable        bool       `json:"billable"`
	HourlyRate      *float64   `json:"hourlyRate,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Validate checks the invariants required of manually created entries.
func (e *TimeEntry) Validate() error {
	if e.Description == "" {
		return fmt.Errorf("timeEntry.Validate: description required: %w", ErrValidation)
	}
	if e.DurationSeconds < 0 {
		return fmt.Errorf("timeEntry.Validate: negative duration: %w", ErrValidation)
	}
	return nil
}

type TimeEntryRepository interface {
	Create(ctx context.Context, e *TimeEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*TimeEntry, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*TimeEntry, error)
	Update(ctx context.Context, e *TimeEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TimerRepository persists the per-user active timer so elapsed time
// survives server restarts and client reconnects.
type TimerRepository interface {
	Save(ctx context.Context, t *Timer) error
	GetByUser(ctx context.Context, userID uuid.UUID) (*Timer, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}
