package domain

import (
	"hash/fnv"
	"time"

	"github.com/google/uuid"
)

type PresenceStatus string

const (
	PresenceActive PresenceStatus = "active"
	PresenceIdle   PresenceStatus = "idle"
	PresenceAway   PresenceStatus = "away"
)

// Valid reports whether s is one of the recognised presence statuses.
func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceActive, PresenceIdle, PresenceAway:
		return true
	default:
		return false
	}
}

type ItemType string

const (
	ItemTask    ItemType = "task"
	ItemProject ItemType = "project"
	ItemNote    ItemType = "note"
	ItemEvent   ItemType = "event"
)

func (t ItemType) Valid() bool {
	switch t {
	case ItemTask, ItemProject, ItemNote, ItemEvent:
		return true
	default:
		return false
	}
}

type ItemAction string

const (
	ActionViewing    ItemAction = "viewing"
	ActionEditing    ItemAction = "editing"
	ActionCommenting ItemAction = "commenting"
)

func (a ItemAction) Valid() bool {
	switch a {
	case ActionViewing, ActionEditing, ActionCommenting:
		return true
	default:
		return false
	}
}

// ItemRef identifies the entity a user is currently interacting with.
type ItemRef struct {
	Type   ItemType   `json:"type"`
	ID     string     `json:"id"`
	Action ItemAction `json:"action"`
}

// PresenceUser is one entry in a room's live presence set. Entries are
// ephemeral: they exist only while the owning connection is alive and
// heartbeating, and are never persisted. At most one entry exists per
// (identity, room); every inbound update replaces the whole record.
type PresenceUser struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Avatar      string         `json:"avatar,omitempty"`
	Color       string         `json:"color"`
	CurrentPage string         `json:"currentPage,omitempty"`
	CurrentItem *ItemRef       `json:"currentItem,omitempty"`
	Status      PresenceStatus `json:"status"`
	LastSeen    time.Time      `json:"lastSeen"`
}

// presencePalette is the fixed set of colors assigned to collaborators.
var presencePalette = []string{
	"#ef4444", "#f97316", "#f59e0b", "#84cc16",
	"#22c55e", "#14b8a6", "#06b6d4", "#3b82f6",
	"#6366f1", "#8b5cf6", "#a855f7", "#ec4899",
}

// PresenceColor deterministically maps a user id onto the palette so every
// peer renders the same color for the same user without coordination.
func PresenceColor(id uuid.UUID) string {
	h := fnv.New32a()
	_, _ = h.Write(id[:])
	return presencePalette[h.Sum32()%uint32(len(presencePalette))]
}
