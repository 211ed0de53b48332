package client

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tandemlabs/tandem/internal/domain"
	"github.com/tandemlabs/tandem/internal/realtime"
)

// HeartbeatInterval is how often a joined presence feed refreshes its
// liveness. The server's eject TTL is sized to tolerate a missed beat.
const HeartbeatInterval = 30 * time.Second

// PresenceFeed mirrors one room's live presence set and keeps the local
// user's record fresh. Wire it to a Conn with Bind, or feed events manually
// through HandleEvent.
type PresenceFeed struct {
	emitter Emitter
	room    string
	name    string
	avatar  string

	mu     sync.Mutex
	users  map[uuid.UUID]*domain.PresenceUser
	status domain.PresenceStatus
}

func NewPresenceFeed(e Emitter, room, name, avatar string) *PresenceFeed {
	return &PresenceFeed{
		emitter: e,
		room:    room,
		name:    name,
		avatar:  avatar,
		users:   make(map[uuid.UUID]*domain.PresenceUser),
		status:  domain.PresenceActive,
	}
}

// Bind subscribes the feed to a connection's presence events.
func (f *PresenceFeed) Bind(c *Conn) {
	c.On(realtime.EvPresenceUsers, jsonHandler(f.applyUsers))
	c.On(realtime.EvPresenceUserJoined, jsonHandler(f.applyUserJoined))
	c.On(realtime.EvPresenceUpdate, jsonHandler(f.applyUserJoined))
	c.On(realtime.EvPresenceUserLeft, jsonHandler(f.applyUserLeft))
}

// Join announces the local user to the room. Call again after reconnect;
// the server replies with the full set.
func (f *PresenceFeed) Join() error {
	return f.emitter.Emit(realtime.EvPresenceJoin, &realtime.PresenceJoinPayload{
		Room:   f.room,
		Name:   f.name,
		Avatar: f.avatar,
		Status: f.currentStatus(),
	})
}

// Run sends heartbeats until ctx is cancelled, then announces the leave.
func (f *PresenceFeed) Run(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = f.emitter.Emit(realtime.EvPresenceLeave, &realtime.PresenceLeavePayload{Room: f.room})
			return
		case <-ticker.C:
			_ = f.emitter.Emit(realtime.EvPresenceHeartbeat, &realtime.PresenceHeartbeatPayload{
				Room:   f.room,
				Status: f.currentStatus(),
			})
		}
	}
}

// SetStatus changes the local user's status and pushes the update.
func (f *PresenceFeed) SetStatus(s domain.PresenceStatus) error {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
	return f.emitter.Emit(realtime.EvPresenceUpdate, &realtime.PresenceUpdatePayload{
		Room:   f.room,
		Status: s,
	})
}

// SetActivity reports the item the local user is interacting with.
func (f *PresenceFeed) SetActivity(item *domain.ItemRef) error {
	return f.emitter.Emit(realtime.EvPresenceActivity, &realtime.PresenceActivityPayload{
		Room:        f.room,
		CurrentItem: item,
	})
}

// Users returns the current presence set sorted by name.
func (f *PresenceFeed) Users() []*domain.PresenceUser {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]*domain.PresenceUser, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users
}

// HandleEvent applies one inbound presence event by name. Unknown names are
// ignored so the feed can share a connection with other subsystems.
func (f *PresenceFeed) HandleEvent(event string, data []byte) {
	switch event {
	case realtime.EvPresenceUsers:
		jsonHandler(f.applyUsers)(data)
	case realtime.EvPresenceUserJoined, realtime.EvPresenceUpdate:
		jsonHandler(f.applyUserJoined)(data)
	case realtime.EvPresenceUserLeft:
		jsonHandler(f.applyUserLeft)(data)
	}
}

func (f *PresenceFeed) applyUsers(p realtime.PresenceUsersPayload) {
	if p.Room != f.room {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = make(map[uuid.UUID]*domain.PresenceUser, len(p.Users))
	for _, u := range p.Users {
		f.users[u.ID] = u
	}
}

func (f *PresenceFeed) applyUserJoined(p realtime.PresenceUserJoinedPayload) {
	if p.Room != f.room || p.User == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	// Whole-record replace: the server's copy is authoritative.
	f.users[p.User.ID] = p.User
}

func (f *PresenceFeed) applyUserLeft(p realtime.PresenceUserLeftPayload) {
	if p.Room != f.room {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, p.ID)
}

func (f *PresenceFeed) currentStatus() domain.PresenceStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}
