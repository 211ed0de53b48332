package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tandemlabs/tandem/internal/domain"
)

type ListCommentsInput struct {
	ContextID string `query:"contextId" required:"true" doc:"Context the comments are attached to, e.g. task-<uuid>"`
}

type ListCommentsOutput struct {
	Body struct {
		Comments []*domain.Comment `json:"comments"`
	}
}

// RegisterCommentRoutes exposes the comment history for a context. Live
// comment traffic flows over the websocket; this endpoint backs the initial
// render and full resyncs.
func RegisterCommentRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "list-comments",
		Method:      http.MethodGet,
		Path:        "/comments",
		Summary:     "List comments for a context",
		Tags:        []string{"Comments"},
	}, func(ctx context.Context, input *ListCommentsInput) (*ListCommentsOutput, error) {
		comments, err := store.Comments().ListByContext(ctx, input.ContextID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list comments", err)
		}

		out := &ListCommentsOutput{}
		out.Body.Comments = comments
		if out.Body.Comments == nil {
			out.Body.Comments = []*domain.Comment{}
		}
		return out, nil
	})
}
