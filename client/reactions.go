package client

import (
	"fmt"
	"sync"
	"time"

	"github.com/tandemlabs/tandem/internal/domain"
	"github.com/tandemlabs/tandem/internal/realtime"
)

// ReactionDisplayTTL is how long a reaction burst stays on screen. Bursts
// are fire-and-forget; the server never persists or replays them.
const ReactionDisplayTTL = 3 * time.Second

// shownBurst pairs a burst with its local removal deadline. Expiry runs on
// arrival time rather than the server timestamp so clock skew cannot pin a
// burst on screen.
type shownBurst struct {
	burst     realtime.ReactionBurst
	expiresAt time.Time
}

// ReactionOverlay mirrors the live reaction bursts for one item. There is no
// history: the overlay starts empty on join, and each burst removes itself
// after ReactionDisplayTTL.
type ReactionOverlay struct {
	emitter  Emitter
	itemType domain.ItemType
	itemID   string
	ttl      time.Duration
	now      func() time.Time

	mu     sync.Mutex
	bursts []shownBurst
}

func NewReactionOverlay(e Emitter, itemType domain.ItemType, itemID string) *ReactionOverlay {
	return &ReactionOverlay{
		emitter:  e,
		itemType: itemType,
		itemID:   itemID,
		ttl:      ReactionDisplayTTL,
		now:      time.Now,
	}
}

// Bind subscribes the overlay to a connection's reaction events.
func (o *ReactionOverlay) Bind(c *Conn) {
	c.On(realtime.EvReactionsNew, jsonHandler(o.applyBurst))
}

// Join subscribes to the item's bursts.
func (o *ReactionOverlay) Join() error {
	return o.emitter.Emit(realtime.EvReactionsJoin, &realtime.ReactionsJoinPayload{
		ItemType: o.itemType,
		ItemID:   o.itemID,
	})
}

// Leave unsubscribes from the item's bursts and clears the screen.
func (o *ReactionOverlay) Leave() error {
	o.mu.Lock()
	o.bursts = nil
	o.mu.Unlock()
	return o.emitter.Emit(realtime.EvReactionsLeave, &realtime.ReactionsJoinPayload{
		ItemType: o.itemType,
		ItemID:   o.itemID,
	})
}

// Send fires a burst at a screen position given in percentages. The local
// copy appears when the server echoes it back like any peer's.
func (o *ReactionOverlay) Send(emoji string, x, y float64) error {
	if emoji == "" {
		return fmt.Errorf("client.ReactionOverlay.Send: empty emoji: %w", domain.ErrValidation)
	}
	return o.emitter.Emit(realtime.EvReactionsSend, &realtime.ReactionsSendPayload{
		ItemType: o.itemType,
		ItemID:   o.itemID,
		Emoji:    emoji,
		X:        x,
		Y:        y,
	})
}

// Bursts returns the bursts still on screen, oldest first.
func (o *ReactionOverlay) Bursts() []realtime.ReactionBurst {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.expireLocked()
	out := make([]realtime.ReactionBurst, len(o.bursts))
	for i, sb := range o.bursts {
		out[i] = sb.burst
	}
	return out
}

// HandleEvent applies one inbound reaction event by name.
func (o *ReactionOverlay) HandleEvent(event string, data []byte) {
	if event == realtime.EvReactionsNew {
		jsonHandler(o.applyBurst)(data)
	}
}

func (o *ReactionOverlay) applyBurst(b realtime.ReactionBurst) {
	if b.ItemType != o.itemType || b.ItemID != o.itemID {
		return
	}
	o.mu.Lock()
	o.expireLocked()
	o.bursts = append(o.bursts, shownBurst{burst: b, expiresAt: o.now().Add(o.ttl)})
	o.mu.Unlock()

	// Drop the burst even if nothing reads the overlay again.
	time.AfterFunc(o.ttl, func() {
		o.mu.Lock()
		o.expireLocked()
		o.mu.Unlock()
	})
}

// expireLocked drops every burst past its deadline. Arrival order makes the
// live suffix contiguous. Caller holds o.mu.
func (o *ReactionOverlay) expireLocked() {
	now := o.now()
	i := 0
	for i < len(o.bursts) && !o.bursts[i].expiresAt.After(now) {
		i++
	}
	if i > 0 {
		o.bursts = append(o.bursts[:0], o.bursts[i:]...)
	}
}
