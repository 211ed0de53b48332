package client

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tandemlabs/tandem/internal/domain"
	"github.com/tandemlabs/tandem/internal/realtime"
)

// CommentThread mirrors the comment list for one context. History arrives on
// join; additions, edits, deletions and reaction toggles arrive as deltas.
type CommentThread struct {
	emitter   Emitter
	contextID string

	mu       sync.Mutex
	comments []*domain.Comment
}

func NewCommentThread(e Emitter, contextID string) *CommentThread {
	return &CommentThread{emitter: e, contextID: contextID}
}

// Bind subscribes the thread to a connection's comment events.
func (t *CommentThread) Bind(c *Conn) {
	c.On(realtime.EvCommentHistory, jsonHandler(t.applyHistory))
	c.On(realtime.EvCommentAdded, jsonHandler(t.applyUpsert))
	c.On(realtime.EvCommentUpdated, jsonHandler(t.applyUpsert))
	c.On(realtime.EvCommentReactionUpdated, jsonHandler(t.applyUpsert))
	c.On(realtime.EvCommentDeleted, jsonHandler(t.applyDeleted))
}

// Join requests the thread's history.
func (t *CommentThread) Join() error {
	return t.emitter.Emit(realtime.EvCommentJoin, &realtime.CommentJoinPayload{ContextID: t.contextID})
}

// Add posts a comment, optionally as a reply. The server flattens replies to
// replies onto the top-level parent.
func (t *CommentThread) Add(content string, parentID *uuid.UUID) error {
	if content == "" {
		return fmt.Errorf("client.CommentThread.Add: empty content: %w", domain.ErrValidation)
	}
	return t.emitter.Emit(realtime.EvCommentAdd, &realtime.CommentAddPayload{
		ContextID: t.contextID,
		Content:   content,
		ParentID:  parentID,
	})
}

// Edit rewrites an owned comment. A foreign edit comes back as comment:error
// and leaves the thread unchanged.
func (t *CommentThread) Edit(id uuid.UUID, content string) error {
	if content == "" {
		return fmt.Errorf("client.CommentThread.Edit: empty content: %w", domain.ErrValidation)
	}
	return t.emitter.Emit(realtime.EvCommentEdit, &realtime.CommentEditPayload{ID: id, Content: content})
}

// Delete removes an owned comment and its replies.
func (t *CommentThread) Delete(id uuid.UUID) error {
	return t.emitter.Emit(realtime.EvCommentDelete, &realtime.CommentDeletePayload{ID: id})
}

// ToggleReaction flips the local user's reaction on a comment.
func (t *CommentThread) ToggleReaction(id uuid.UUID, emoji string) error {
	return t.emitter.Emit(realtime.EvCommentToggleReaction, &realtime.CommentToggleReactionPayload{
		ID:    id,
		Emoji: emoji,
	})
}

// Comments returns the thread in arrival order.
func (t *CommentThread) Comments() []*domain.Comment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*domain.Comment, len(t.comments))
	copy(out, t.comments)
	return out
}

// HandleEvent applies one inbound comment event by name.
func (t *CommentThread) HandleEvent(event string, data []byte) {
	switch event {
	case realtime.EvCommentHistory:
		jsonHandler(t.applyHistory)(data)
	case realtime.EvCommentAdded, realtime.EvCommentUpdated, realtime.EvCommentReactionUpdated:
		jsonHandler(t.applyUpsert)(data)
	case realtime.EvCommentDeleted:
		jsonHandler(t.applyDeleted)(data)
	}
}

func (t *CommentThread) applyHistory(p realtime.CommentHistoryPayload) {
	if p.ContextID != t.contextID {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.comments = p.Comments
}

func (t *CommentThread) applyUpsert(c *domain.Comment) {
	if c == nil || c.ContextID != t.contextID {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, cur := range t.comments {
		if cur.ID == c.ID {
			t.comments[i] = c
			return
		}
	}
	t.comments = append(t.comments, c)
}

func (t *CommentThread) applyDeleted(p realtime.CommentDeletedPayload) {
	if p.ContextID != t.contextID {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.comments[:0]
	for _, c := range t.comments {
		if c.ID != p.ID && (c.ParentID == nil || *c.ParentID != p.ID) {
			kept = append(kept, c)
		}
	}
	t.comments = kept
}
