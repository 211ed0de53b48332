package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reaction aggregates one emoji's reactions on a comment.
type Reaction struct {
	Count   int         `json:"count"`
	UserIDs []uuid.UUID `json:"userIds"`
}

// Comment is a threaded, reactable message attached to an item. Threading is
// exactly one level deep: a comment is either top-level or a reply to a
// top-level comment.
type Comment struct {
	ID         uuid.UUID            `json:"id"`
	ContextID  string               `json:"contextId"` // "<itemType>-<itemId>"
	AuthorID   uuid.UUID            `json:"authorId"`
	AuthorName string               `json:"authorName"`
	Content    string               `json:"content"`
	ParentID   *uuid.UUID           `json:"parentId,omitempty"`
	Reactions  map[string]*Reaction `json:"reactions,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
	Edited     bool                 `json:"edited"`
}

// ToggleReaction adds the user's reaction for emoji, or removes it when
// already present. Returns true when the reaction is present afterwards.
// Toggling twice by the same user is an involution.
func (c *Comment) ToggleReaction(emoji string, userID uuid.UUID) bool {
	if c.Reactions == nil {
		c.Reactions = make(map[string]*Reaction)
	}
	r := c.Reactions[emoji]
	if r == nil {
		c.Reactions[emoji] = &Reaction{Count: 1, UserIDs: []uuid.UUID{userID}}
		return true
	}
	for i, id := range r.UserIDs {
		if id == userID {
			r.UserIDs = append(r.UserIDs[:i], r.UserIDs[i+1:]...)
			r.Count--
			if r.Count == 0 {
				delete(c.Reactions, emoji)
			}
			return false
		}
	}
	r.UserIDs = append(r.UserIDs, userID)
	r.Count++
	return true
}

// EditableBy reports whether the user may edit or delete this comment.
// Only the author may.
func (c *Comment) EditableBy(userID uuid.UUID) bool {
	return c.AuthorID == userID
}

// Validate checks the fields required before a comment is stored or
// broadcast.
func (c *Comment) Validate() error {
	if c.Content == "" {
		return fmt.Errorf("comment.Validate: content required: %w", ErrValidation)
	}
	if c.ContextID == "" {
		return fmt.Errorf("comment.Validate: contextId required: %w", ErrValidation)
	}
	return nil
}

type CommentRepository interface {
	Create(ctx context.Context, c *Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Comment, error)
	ListByContext(ctx context.Context, contextID string) ([]*Comment, error)
	Update(ctx context.Context, c *Comment) error
	Delete(ctx context.Context, id uuid.UUID) error
}
