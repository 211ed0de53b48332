package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tandemlabs/tandem/internal/domain"
)

// presenceEntry pairs a live record with its expiry deadline and the session
// that owns it, so abrupt disconnects eject the right records.
type presenceEntry struct {
	user      *domain.PresenceUser
	sessionID uuid.UUID
	expiresAt time.Time
}

// Tracker is the authoritative presence set, partitioned by room. Records
// are keyed by identity within a room; every inbound update replaces the
// whole record (last write wins). Entries expire when heartbeats stop.
type Tracker struct {
	hub *Hub
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	rooms map[string]map[uuid.UUID]*presenceEntry
}

// NewTracker creates a presence tracker whose entries expire after ttl
// without a heartbeat. ttl should be at least twice the client heartbeat
// interval.
func NewTracker(hub *Hub, ttl time.Duration) *Tracker {
	return &Tracker{
		hub:   hub,
		ttl:   ttl,
		now:   time.Now,
		rooms: make(map[string]map[uuid.UUID]*presenceEntry),
	}
}

// Join registers a session's presence in a room, sends the joiner the full
// authoritative set, and announces the new record to peers.
func (t *Tracker) Join(ctx context.Context, s *Session, p *PresenceJoinPayload) {
	now := t.now()
	status := p.Status
	if status == "" {
		status = domain.PresenceActive
	}

	user := &domain.PresenceUser{
		ID:          s.UserID,
		Name:        p.Name,
		Avatar:      p.Avatar,
		Color:       domain.PresenceColor(s.UserID),
		CurrentPage: p.CurrentPage,
		CurrentItem: p.CurrentItem,
		Status:      status,
		LastSeen:    now,
	}

	// Subscribe before copying the set, and enqueue the snapshot while the
	// tracker lock is held: a broadcast between the copy and the subscription
	// would otherwise be both missed and absent from the snapshot.
	t.hub.Join(ctx, PresenceRoom(p.Room), s)

	t.mu.Lock()
	rm := t.rooms[p.Room]
	if rm == nil {
		rm = make(map[uuid.UUID]*presenceEntry)
		t.rooms[p.Room] = rm
	}
	rm[s.UserID] = &presenceEntry{user: user, sessionID: s.ID, expiresAt: now.Add(t.ttl)}
	// The joiner gets the full set; peers get a single upsert.
	s.Send(EvPresenceUsers, PresenceUsersPayload{Room: p.Room, Users: snapshotLocked(rm)})
	t.mu.Unlock()
	t.hub.Broadcast(ctx, PresenceRoom(p.Room), EvPresenceUserJoined,
		PresenceUserJoinedPayload{Room: p.Room, User: user})
}

// Update replaces the caller's record in place and broadcasts the upsert.
func (t *Tracker) Update(ctx context.Context, s *Session, p *PresenceUpdatePayload) {
	t.mutate(ctx, s, p.Room, func(u *domain.PresenceUser) {
		if p.CurrentPage != "" {
			u.CurrentPage = p.CurrentPage
		}
		u.CurrentItem = p.CurrentItem
		if p.Status != "" {
			u.Status = p.Status
		}
	})
}

// Activity records what item the caller is working on.
func (t *Tracker) Activity(ctx context.Context, s *Session, p *PresenceActivityPayload) {
	t.mutate(ctx, s, p.Room, func(u *domain.PresenceUser) {
		u.CurrentItem = p.CurrentItem
	})
}

// Heartbeat resets the caller's expiry and optionally updates status.
func (t *Tracker) Heartbeat(ctx context.Context, s *Session, p *PresenceHeartbeatPayload) {
	t.mutate(ctx, s, p.Room, func(u *domain.PresenceUser) {
		if p.Status != "" {
			u.Status = p.Status
		}
	})
}

// mutate applies fn to the caller's record, refreshes last-seen and expiry,
// and broadcasts the updated record. Unknown (room, identity) pairs are
// ignored: the client will rejoin on its next full sync.
func (t *Tracker) mutate(ctx context.Context, s *Session, roomName string, fn func(*domain.PresenceUser)) {
	now := t.now()

	t.mu.Lock()
	rm := t.rooms[roomName]
	entry, ok := rm[s.UserID]
	if !ok {
		t.mu.Unlock()
		return
	}
	fn(entry.user)
	entry.user.LastSeen = now
	entry.expiresAt = now.Add(t.ttl)
	entry.sessionID = s.ID
	user := *entry.user
	t.mu.Unlock()

	t.hub.Broadcast(ctx, PresenceRoom(roomName), EvPresenceUpdate,
		PresenceUserJoinedPayload{Room: roomName, User: &user})
}

// Leave removes the caller's record and announces the removal.
func (t *Tracker) Leave(ctx context.Context, s *Session, roomName string) {
	t.mu.Lock()
	rm := t.rooms[roomName]
	_, ok := rm[s.UserID]
	if ok {
		delete(rm, s.UserID)
		if len(rm) == 0 {
			delete(t.rooms, roomName)
		}
	}
	t.mu.Unlock()

	t.hub.Leave(PresenceRoom(roomName), s)
	if ok {
		t.hub.Broadcast(ctx, PresenceRoom(roomName), EvPresenceUserLeft,
			PresenceUserLeftPayload{Room: roomName, ID: s.UserID})
	}
}

// Disconnect ejects every record owned by a vanished session. Called by the
// transport layer on abrupt disconnects; the heartbeat sweeper is the
// fallback for records whose session reference is stale.
func (t *Tracker) Disconnect(ctx context.Context, s *Session) {
	t.mu.Lock()
	type removal struct {
		room string
		id   uuid.UUID
	}
	var removed []removal
	for roomName, rm := range t.rooms {
		for id, entry := range rm {
			if entry.sessionID == s.ID {
				delete(rm, id)
				removed = append(removed, removal{room: roomName, id: id})
			}
		}
		if len(rm) == 0 {
			delete(t.rooms, roomName)
		}
	}
	t.mu.Unlock()

	for _, r := range removed {
		t.hub.Broadcast(ctx, PresenceRoom(r.room), EvPresenceUserLeft,
			PresenceUserLeftPayload{Room: r.room, ID: r.id})
	}
}

// Users returns the current presence set for a room.
func (t *Tracker) Users(roomName string) []*domain.PresenceUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	return snapshotLocked(t.rooms[roomName])
}

// Sweep ejects every record whose heartbeat deadline passed and announces
// the removals. Returns the number ejected.
func (t *Tracker) Sweep(ctx context.Context) int {
	now := t.now()

	t.mu.Lock()
	type removal struct {
		room string
		id   uuid.UUID
	}
	var removed []removal
	for roomName, rm := range t.rooms {
		for id, entry := range rm {
			if now.After(entry.expiresAt) {
				delete(rm, id)
				removed = append(removed, removal{room: roomName, id: id})
			}
		}
		if len(rm) == 0 {
			delete(t.rooms, roomName)
		}
	}
	t.mu.Unlock()

	for _, r := range removed {
		log.Debug().
			Stringer("user", r.id).
			Str("room", r.room).
			Msg("presence heartbeat timeout")
		t.hub.Broadcast(ctx, PresenceRoom(r.room), EvPresenceUserLeft,
			PresenceUserLeftPayload{Room: r.room, ID: r.id})
	}
	return len(removed)
}

// Run sweeps expired entries until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}

func snapshotLocked(rm map[uuid.UUID]*presenceEntry) []*domain.PresenceUser {
	if rm == nil {
		return nil
	}
	users := make([]*domain.PresenceUser, 0, len(rm))
	for _, entry := range rm {
		u := *entry.user
		users = append(users, &u)
	}
	// Stable order keeps snapshots deterministic for consumers and tests.
	sort.Slice(users, func(i, j int) bool {
		return users[i].ID.String() < users[j].ID.String()
	})
	return users
}
