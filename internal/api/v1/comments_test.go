package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/tandemlabs/tandem/internal/api/v1"
	"github.com/tandemlabs/tandem/internal/domain"
)

// ---------------------------------------------------------------------------
// GET /comments?contextId=
// ---------------------------------------------------------------------------

func TestListComments(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		contextID := "task-" + uuid.NewString()
		now := time.Now().Truncate(time.Second)
		parent := uuid.New()

		_, api := humatest.New(t)
		store := newMockDataStore()
		store.comments.listByContextFunc = func(_ context.Context, ctxID string) ([]*domain.Comment, error) {
			assert.Equal(t, contextID, ctxID)
			return []*domain.Comment{
				{ID: parent, ContextID: contextID, AuthorID: uuid.New(), Content: "first", CreatedAt: now},
				{ID: uuid.New(), ContextID: contextID, AuthorID: uuid.New(), ParentID: &parent, Content: "reply", CreatedAt: now},
			}, nil
		}
		v1.RegisterCommentRoutes(api, store)

		resp := api.Get("/comments?contextId=" + contextID)

		require.Equal(t, http.StatusOK, resp.Code)

		var out struct {
			Comments []domain.Comment `json:"comments"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
		require.Len(t, out.Comments, 2)
		assert.Equal(t, "first", out.Comments[0].Content)
		require.NotNil(t, out.Comments[1].ParentID)
		assert.Equal(t, parent, *out.Comments[1].ParentID)
	})

	t.Run("empty_list_not_null", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterCommentRoutes(api, newMockDataStore())

		resp := api.Get("/comments?contextId=task-" + uuid.NewString())

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"comments":[]`)
	})

	t.Run("missing_context_id", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterCommentRoutes(api, newMockDataStore())

		resp := api.Get("/comments")

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("store_error", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := newMockDataStore()
		store.comments.listByContextFunc = func(_ context.Context, _ string) ([]*domain.Comment, error) {
			return nil, errors.New("db: connection lost")
		}
		v1.RegisterCommentRoutes(api, store)

		resp := api.Get("/comments?contextId=task-" + uuid.NewString())

		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})
}
