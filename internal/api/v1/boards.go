package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/tandemlabs/tandem/internal/domain"
)

type ListBoardsOutput struct {
	Body struct {
		Boards []*domain.KanbanBoard `json:"boards"`
	}
}

type GetBoardInput struct {
	BoardID uuid.UUID `path:"boardID" doc:"Board ID"`
}

type GetBoardOutput struct {
	Body *domain.KanbanBoard
}

// RegisterBoardRoutes serves durable board snapshots. Clients resync from
// these after a reconnect; live mutations flow over the websocket.
func RegisterBoardRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-boards",
		Method:      http.MethodGet,
		Path:        "/boards",
		Summary:     "List kanban boards",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, _ *struct{}) (*ListBoardsOutput, error) {
		boards, err := store.Boards().List(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list boards", err)
		}

		out := &ListBoardsOutput{}
		out.Body.Boards = boards
		if out.Body.Boards == nil {
			out.Body.Boards = []*domain.KanbanBoard{}
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-board",
		Method:      http.MethodGet,
		Path:        "/boards/{boardID}",
		Summary:     "Get a kanban board snapshot",
		Tags:        []string{"Boards"},
	}, func(ctx context.Context, input *GetBoardInput) (*GetBoardOutput, error) {
		board, err := store.Boards().GetByID(ctx, input.BoardID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("board not found")
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to load board", err)
		}

		return &GetBoardOutput{Body: board}, nil
	})
}
