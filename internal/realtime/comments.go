package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tandemlabs/tandem/internal/domain"
)

// CommentStream broadcasts threaded, reactable comments keyed by context
// ("<itemType>-<itemId>") and relays ephemeral reaction bursts. Comments are
// durable; bursts are fire-and-forget and never replayed to late joiners.
//
// Authorization failures (editing someone else's comment) are the one error
// class surfaced to the caller: the stored content must never change, and
// the caller alone receives a comment:error event.
type CommentStream struct {
	hub  *Hub
	repo domain.CommentRepository
	now  func() time.Time
}

func NewCommentStream(hub *Hub, repo domain.CommentRepository) *CommentStream {
	return &CommentStream{hub: hub, repo: repo, now: time.Now}
}

// Join subscribes a session to a context's comments and replays the thread
// history.
func (c *CommentStream) Join(ctx context.Context, s *Session, contextID string) error {
	// Subscribe first so a comment created while the history is read reaches
	// the joiner as a delta instead of vanishing.
	c.hub.Join(ctx, CommentRoom(contextID), s)
	comments, err := c.repo.ListByContext(ctx, contextID)
	if err != nil {
		c.hub.Leave(CommentRoom(contextID), s)
		return fmt.Errorf("commentStream.Join: %w", err)
	}
	s.Send(EvCommentHistory, CommentHistoryPayload{ContextID: contextID, Comments: comments})
	return nil
}

// Leave unsubscribes a session from a context's comments.
func (c *CommentStream) Leave(s *Session, contextID string) {
	c.hub.Leave(CommentRoom(contextID), s)
}

// Add creates a comment. Replies deeper than one level flatten under the
// original top-level comment.
func (c *CommentStream) Add(ctx context.Context, s *Session, p *CommentAddPayload) error {
	parentID := p.ParentID
	if parentID != nil {
		parent, err := c.repo.GetByID(ctx, *parentID)
		if err != nil {
			return fmt.Errorf("commentStream.Add: parent: %w", err)
		}
		if parent.ContextID != p.ContextID {
			return fmt.Errorf("commentStream.Add: parent %s belongs to context %s: %w",
				parent.ID, parent.ContextID, domain.ErrValidation)
		}
		if parent.ParentID != nil {
			// Reply to a reply: hang it off the top-level comment instead.
			parentID = parent.ParentID
		}
	}

	now := c.now()
	comment := &domain.Comment{
		ID:         uuid.New(),
		ContextID:  p.ContextID,
		AuthorID:   s.UserID,
		AuthorName: s.Name,
		Content:    p.Content,
		ParentID:   parentID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := comment.Validate(); err != nil {
		return err
	}
	if err := c.repo.Create(ctx, comment); err != nil {
		return fmt.Errorf("commentStream.Add: %w", err)
	}

	c.hub.Broadcast(ctx, CommentRoom(p.ContextID), EvCommentAdded, comment)
	return nil
}

// Edit rewrites a comment's content. Author-only: a foreign caller is
// rejected and the stored content stays unchanged.
func (c *CommentStream) Edit(ctx context.Context, s *Session, p *CommentEditPayload) error {
	comment, err := c.repo.GetByID(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("commentStream.Edit: %w", err)
	}
	if !comment.EditableBy(s.UserID) {
		c.reject(s, EvCommentEdit, "only the author can edit a comment")
		return fmt.Errorf("commentStream.Edit: comment %s: %w", p.ID, domain.ErrForbidden)
	}

	comment.Content = p.Content
	comment.Edited = true
	comment.UpdatedAt = c.now()
	if err := c.repo.Update(ctx, comment); err != nil {
		return fmt.Errorf("commentStream.Edit: %w", err)
	}

	c.hub.Broadcast(ctx, CommentRoom(comment.ContextID), EvCommentUpdated, comment)
	return nil
}

// Delete removes a comment. Author-only.
func (c *CommentStream) Delete(ctx context.Context, s *Session, p *CommentDeletePayload) error {
	comment, err := c.repo.GetByID(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("commentStream.Delete: %w", err)
	}
	if !comment.EditableBy(s.UserID) {
		c.reject(s, EvCommentDelete, "only the author can delete a comment")
		return fmt.Errorf("commentStream.Delete: comment %s: %w", p.ID, domain.ErrForbidden)
	}
	if err := c.repo.Delete(ctx, p.ID); err != nil {
		return fmt.Errorf("commentStream.Delete: %w", err)
	}

	c.hub.Broadcast(ctx, CommentRoom(comment.ContextID), EvCommentDeleted,
		CommentDeletedPayload{ContextID: comment.ContextID, ID: p.ID})
	return nil
}

// ToggleReaction flips the caller's reaction on a comment. Any participant
// may react; a second toggle by the same user removes it.
func (c *CommentStream) ToggleReaction(ctx context.Context, s *Session, p *CommentToggleReactionPayload) error {
	comment, err := c.repo.GetByID(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("commentStream.ToggleReaction: %w", err)
	}

	comment.ToggleReaction(p.Emoji, s.UserID)
	if err := c.repo.Update(ctx, comment); err != nil {
		return fmt.Errorf("commentStream.ToggleReaction: %w", err)
	}

	c.hub.Broadcast(ctx, CommentRoom(comment.ContextID), EvCommentReactionUpdated, comment)
	return nil
}

// JoinReactions subscribes a session to an item's reaction bursts. Bursts
// are ephemeral; there is no history to replay.
func (c *CommentStream) JoinReactions(ctx context.Context, s *Session, p *ReactionsJoinPayload) {
	c.hub.Join(ctx, ReactionsRoom(string(p.ItemType), p.ItemID), s)
}

// LeaveReactions unsubscribes a session from an item's reaction bursts.
func (c *CommentStream) LeaveReactions(s *Session, p *ReactionsJoinPayload) {
	c.hub.Leave(ReactionsRoom(string(p.ItemType), p.ItemID), s)
}

// SendReaction relays a fire-and-forget reaction burst to the item's
// subscribers. Bursts are never persisted; every client removes them after
// a fixed display duration.
func (c *CommentStream) SendReaction(ctx context.Context, s *Session, p *ReactionsSendPayload) {
	burst := ReactionBurst{
		ID:        uuid.New(),
		ItemType:  p.ItemType,
		ItemID:    p.ItemID,
		Emoji:     p.Emoji,
		UserID:    s.UserID,
		X:         p.X,
		Y:         p.Y,
		Timestamp: c.now(),
	}
	c.hub.Broadcast(ctx, ReactionsRoom(string(p.ItemType), p.ItemID), EvReactionsNew, burst)
}

// reject notifies the caller alone of an authorization failure.
func (c *CommentStream) reject(s *Session, event, message string) {
	log.Debug().Stringer("user", s.UserID).Str("event", event).Msg("comment authorization rejected")
	s.Send(EvCommentError, CommentErrorPayload{Event: event, Message: message})
}
