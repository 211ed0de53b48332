package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/tandemlabs/tandem/internal/domain"
	"github.com/tandemlabs/tandem/internal/server/middleware"
)

type ListTimeEntriesOutput struct {
	Body struct {
		Entries []*domain.TimeEntry `json:"entries"`
	}
}

type CreateTimeEntryInput struct {
	Body struct {
		TaskID          *uuid.UUID `json:"taskId,omitempty"`
		ProjectID       *uuid.UUID `json:"projectId,omitempty"`
		Description     string     `json:"description"`
		StartedAt       time.Time  `json:"startedAt"`
		EndedAt         time.Time  `json:"endedAt"`
		DurationSeconds int64      `json:"durationSeconds"`
		Billable        bool       `json:"billable,omitempty"`
		HourlyRate      *float64   `json:"hourlyRate,omitempty"`
		Tags            []string   `json:"tags,omitempty"`
	}
}

type CreateTimeEntryOutput struct {
	Status int
	Body   *domain.TimeEntry
}

type UpdateTimeEntryInput struct {
	EntryID uuid.UUID `path:"entryID" doc:"Time entry ID"`
	Body    struct {
		Description     *string  `json:"description,omitempty"`
		DurationSeconds *int64   `json:"durationSeconds,omitempty"`
		Billable        *bool    `json:"billable,omitempty"`
		HourlyRate      *float64 `json:"hourlyRate,omitempty"`
		Tags            []string `json:"tags,omitempty"`
	}
}

type UpdateTimeEntryOutput struct {
	Body *domain.TimeEntry
}

type DeleteTimeEntryInput struct {
	EntryID uuid.UUID `path:"entryID" doc:"Time entry ID"`
}

type DeleteTimeEntryOutput struct {
	Status int
}

// RegisterTimeEntryRoutes serves the caller's time-entry history. Entries are
// owned: every mutation checks the entry belongs to the authenticated user.
func RegisterTimeEntryRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-time-entries",
		Method:      http.MethodGet,
		Path:        "/time-entries",
		Summary:     "List the caller's time entries",
		Tags:        []string{"Time"},
	}, func(ctx context.Context, _ *struct{}) (*ListTimeEntriesOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing identity")
		}

		entries, err := store.TimeEntries().ListByUser(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list time entries", err)
		}

		out := &ListTimeEntriesOutput{}
		out.Body.Entries = entries
		if out.Body.Entries == nil {
			out.Body.Entries = []*domain.TimeEntry{}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-time-entry",
		Method:        http.MethodPost,
		Path:          "/time-entries",
		Summary:       "Create a manual time entry",
		Tags:          []string{"Time"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreateTimeEntryInput) (*CreateTimeEntryOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing identity")
		}

		now := time.Now()
		entry := &domain.TimeEntry{
			ID:              uuid.New(),
			UserID:          userID,
			TaskID:          input.Body.TaskID,
			ProjectID:       input.Body.ProjectID,
			Description:     input.Body.Description,
			StartedAt:       input.Body.StartedAt,
			EndedAt:         input.Body.EndedAt,
			DurationSeconds: input.Body.DurationSeconds,
			Billable:        input.Body.Billable,
			HourlyRate:      input.Body.HourlyRate,
			Tags:            input.Body.Tags,
			CreatedAt:       now,
		}
		if err := entry.Validate(); err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		if err := store.TimeEntries().Create(ctx, entry); err != nil {
			return nil, huma.Error500InternalServerError("failed to create time entry", err)
		}

		return &CreateTimeEntryOutput{Status: http.StatusCreated, Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-time-entry",
		Method:      http.MethodPatch,
		Path:        "/time-entries/{entryID}",
		Summary:     "Update an owned time entry",
		Tags:        []string{"Time"},
	}, func(ctx context.Context, input *UpdateTimeEntryInput) (*UpdateTimeEntryOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing identity")
		}

		entry, err := store.TimeEntries().GetByID(ctx, input.EntryID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("time entry not found")
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load time entry", err)
		}
		if entry.UserID != userID {
			return nil, huma.Error403Forbidden("not the entry owner")
		}

		if input.Body.Description != nil {
			entry.Description = *input.Body.Description
		}
		if input.Body.DurationSeconds != nil {
			entry.DurationSeconds = *input.Body.DurationSeconds
			entry.EndedAt = entry.StartedAt.Add(time.Duration(entry.DurationSeconds) * time.Second)
		}
		if input.Body.Billable != nil {
			entry.Billable = *input.Body.Billable
		}
		if input.Body.HourlyRate != nil {
			entry.HourlyRate = input.Body.HourlyRate
		}
		if input.Body.Tags != nil {
			entry.Tags = input.Body.Tags
		}
		if err := entry.Validate(); err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}

		if err := store.TimeEntries().Update(ctx, entry); err != nil {
			return nil, huma.Error500InternalServerError("failed to update time entry", err)
		}

		return &UpdateTimeEntryOutput{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-time-entry",
		Method:        http.MethodDelete,
		Path:          "/time-entries/{entryID}",
		Summary:       "Delete an owned time entry",
		Tags:          []string{"Time"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteTimeEntryInput) (*DeleteTimeEntryOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing identity")
		}

		entry, err := store.TimeEntries().GetByID(ctx, input.EntryID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("time entry not found")
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load time entry", err)
		}
		if entry.UserID != userID {
			return nil, huma.Error403Forbidden("not the entry owner")
		}

		if err := store.TimeEntries().Delete(ctx, input.EntryID); err != nil {
			return nil, huma.Error500InternalServerError("failed to delete time entry", err)
		}

		return &DeleteTimeEntryOutput{Status: http.StatusNoContent}, nil
	})
}
