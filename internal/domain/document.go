package domain

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
)

// DocumentField is one independently merge-resolved cell of a collaborative
// document. Conflict resolution is last-write-wins per field, ordered by a
// Lamport-style (Version, Actor) pair so all peers converge on the same
// winner regardless of arrival order.
type DocumentField struct {
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	Version   uint64    `json:"version"`
	Actor     uuid.UUID `json:"actor"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Supersedes reports whether f wins over other under the LWW ordering.
// Higher version wins; equal versions tie-break on actor id so the outcome
// is total and identical on every peer.
func (f DocumentField) Supersedes(other DocumentField) bool {
	if f.Version != other.Version {
		return f.Version > other.Version
	}
	return bytes.Compare(f.Actor[:], other.Actor[:]) > 0
}

// CollaborativeDocument is the replicated field map for one entity,
// identified by a stable key such as "task-<id>". Created lazily on first
// join; this subsystem never destroys documents.
type CollaborativeDocument struct {
	Key    string                   `json:"key"`
	Fields map[string]DocumentField `json:"fields"`
}

// Merge applies a field write, keeping the LWW winner. Returns true when the
// write was accepted (it superseded the current value or the field was new).
func (d *CollaborativeDocument) Merge(f DocumentField) bool {
	if d.Fields == nil {
		d.Fields = make(map[string]DocumentField)
	}
	cur, ok := d.Fields[f.Name]
	if ok && !f.Supersedes(cur) {
		return false
	}
	d.Fields[f.Name] = f
	return true
}

// Clock returns the highest version seen across all fields. Writers use
// Clock()+1 as the version for their next local edit.
func (d *CollaborativeDocument) Clock() uint64 {
	var max uint64
	for _, f := range d.Fields {
		if f.Version > max {
			max = f.Version
		}
	}
	return max
}

// AwarenessEntry is the ephemeral per-session metadata attached to a
// document: who is in the editor and which field they are typing in. Never
// persisted, cleared on disconnect, and the typing marker auto-expires.
type AwarenessEntry struct {
	SessionID    uuid.UUID `json:"sessionId"`
	UserID       uuid.UUID `json:"userId"`
	Name         string    `json:"name"`
	Color        string    `json:"color"`
	Avatar       string    `json:"avatar,omitempty"`
	EditingField string    `json:"editingField,omitempty"`
}

// DocumentRepository persists document fields so late joiners resync from
// durable state. Awareness is never stored.
type DocumentRepository interface {
	GetFields(ctx context.Context, key string) ([]DocumentField, error)
	SaveField(ctx context.Context, key string, f DocumentField) error
}
