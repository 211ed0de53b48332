package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tandemlabs/tandem/internal/domain"
)

// awarenessState is one session's ephemeral editor metadata plus the
// deadline after which its typing marker is cleared.
type awarenessState struct {
	entry         domain.AwarenessEntry
	typingExpires time.Time
}

// docState is one document's authoritative replica and its awareness set,
// guarded by its own lock.
type docState struct {
	mu        sync.Mutex
	doc       *domain.CollaborativeDocument
	awareness map[uuid.UUID]*awarenessState // by session id
}

// DocEngine is the replicated-document authority. Each document is a field
// map merged last-write-wins per field; awareness is a separate ephemeral
// side-channel that never touches storage. Documents are created lazily on
// first join and never destroyed here.
type DocEngine struct {
	hub       *Hub
	repo      domain.DocumentRepository
	typingTTL time.Duration
	now       func() time.Time

	mu   sync.Mutex
	docs map[string]*docState
}

func NewDocEngine(hub *Hub, repo domain.DocumentRepository, typingTTL time.Duration) *DocEngine {
	return &DocEngine{
		hub:       hub,
		repo:      repo,
		typingTTL: typingTTL,
		now:       time.Now,
		docs:      make(map[string]*docState),
	}
}

func (e *DocEngine) state(ctx context.Context, key string) (*docState, error) {
	e.mu.Lock()
	st, ok := e.docs[key]
	if !ok {
		st = &docState{awareness: make(map[uuid.UUID]*awarenessState)}
		e.docs[key] = st
	}
	e.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.doc == nil {
		doc := &domain.CollaborativeDocument{Key: key, Fields: make(map[string]domain.DocumentField)}
		if e.repo != nil {
			fields, err := e.repo.GetFields(ctx, key)
			if err != nil {
				return nil, err
			}
			for _, f := range fields {
				doc.Fields[f.Name] = f
			}
		}
		st.doc = doc
	}
	return st, nil
}

// Join subscribes a session to a document, registers its awareness entry,
// and sends it the document state plus the current awareness set.
func (e *DocEngine) Join(ctx context.Context, s *Session, key string) error {
	st, err := e.state(ctx, key)
	if err != nil {
		return err
	}

	e.hub.Join(ctx, DocRoom(key), s)

	entry := domain.AwarenessEntry{
		SessionID: s.ID,
		UserID:    s.UserID,
		Name:      s.Name,
		Color:     domain.PresenceColor(s.UserID),
		Avatar:    s.Avatar,
	}

	// Both snapshots are enqueued while the document lock is held: a merge or
	// awareness change applied after the copy broadcasts after it on the
	// session queue, so a delta can never be overwritten by an older snapshot.
	st.mu.Lock()
	st.awareness[s.ID] = &awarenessState{entry: entry}
	fields := make([]domain.DocumentField, 0, len(st.doc.Fields))
	for _, f := range st.doc.Fields {
		fields = append(fields, f)
	}
	entries := awarenessSnapshotLocked(st)
	s.Send(EvDocState, DocStatePayload{Key: key, Fields: fields})
	s.Send(EvDocAwarenessState, DocAwarenessStatePayload{Key: key, Entries: entries})
	st.mu.Unlock()
	e.hub.Broadcast(ctx, DocRoom(key), EvDocAwareness, DocAwarenessBroadcast{Key: key, Entry: entry})
	return nil
}

// Leave drops the session's awareness entry and unsubscribes it.
func (e *DocEngine) Leave(ctx context.Context, s *Session, key string) {
	e.mu.Lock()
	st := e.docs[key]
	e.mu.Unlock()

	if st != nil {
		st.mu.Lock()
		aw, ok := st.awareness[s.ID]
		delete(st.awareness, s.ID)
		st.mu.Unlock()
		if ok {
			e.hub.Broadcast(ctx, DocRoom(key), EvDocAwareness,
				DocAwarenessBroadcast{Key: key, Entry: aw.entry, Gone: true})
		}
	}
	e.hub.Leave(DocRoom(key), s)
}

// Disconnect clears a vanished session's awareness from every document.
func (e *DocEngine) Disconnect(ctx context.Context, s *Session) {
	e.mu.Lock()
	states := make(map[string]*docState, len(e.docs))
	for key, st := range e.docs {
		states[key] = st
	}
	e.mu.Unlock()

	for key, st := range states {
		st.mu.Lock()
		aw, ok := st.awareness[s.ID]
		delete(st.awareness, s.ID)
		st.mu.Unlock()
		if ok {
			e.hub.Broadcast(ctx, DocRoom(key), EvDocAwareness,
				DocAwarenessBroadcast{Key: key, Entry: aw.entry, Gone: true})
		}
	}
}

// Update merges a field write. Accepted writes are persisted and
// rebroadcast with the canonical (version, actor) pair; superseded writes
// are dropped silently since the sender already holds a newer value.
func (e *DocEngine) Update(ctx context.Context, s *Session, p *DocUpdatePayload) error {
	st, err := e.state(ctx, p.Key)
	if err != nil {
		return err
	}

	field := domain.DocumentField{
		Name:      p.Field,
		Value:     p.Value,
		Version:   p.Version,
		Actor:     s.UserID,
		UpdatedAt: e.now(),
	}

	st.mu.Lock()
	accepted := st.doc.Merge(field)
	st.mu.Unlock()

	if !accepted {
		return nil
	}

	if e.repo != nil {
		if err := e.repo.SaveField(ctx, p.Key, field); err != nil {
			log.Error().Err(err).Str("doc", p.Key).Str("field", p.Field).Msg("persist field")
		}
	}

	e.hub.Broadcast(ctx, DocRoom(p.Key), EvDocUpdate, DocUpdateBroadcast{Key: p.Key, Field: field})
	return nil
}

// Awareness publishes the session's "currently editing" marker. The marker
// expires after the typing TTL; clearing is broadcast by Sweep.
func (e *DocEngine) Awareness(ctx context.Context, s *Session, p *DocAwarenessPayload) {
	e.mu.Lock()
	st := e.docs[p.Key]
	e.mu.Unlock()
	if st == nil {
		return
	}

	st.mu.Lock()
	aw, ok := st.awareness[s.ID]
	if !ok {
		st.mu.Unlock()
		return
	}
	aw.entry.EditingField = p.EditingField
	if p.EditingField != "" {
		aw.typingExpires = e.now().Add(e.typingTTL)
	}
	entry := aw.entry
	st.mu.Unlock()

	e.hub.Broadcast(ctx, DocRoom(p.Key), EvDocAwareness, DocAwarenessBroadcast{Key: p.Key, Entry: entry})
}

// Sweep clears typing markers whose TTL elapsed and broadcasts the cleared
// entries.
func (e *DocEngine) Sweep(ctx context.Context) {
	now := e.now()

	e.mu.Lock()
	states := make(map[string]*docState, len(e.docs))
	for key, st := range e.docs {
		states[key] = st
	}
	e.mu.Unlock()

	for key, st := range states {
		var cleared []domain.AwarenessEntry
		st.mu.Lock()
		for _, aw := range st.awareness {
			if aw.entry.EditingField != "" && now.After(aw.typingExpires) {
				aw.entry.EditingField = ""
				cleared = append(cleared, aw.entry)
			}
		}
		st.mu.Unlock()

		for _, entry := range cleared {
			e.hub.Broadcast(ctx, DocRoom(key), EvDocAwareness, DocAwarenessBroadcast{Key: key, Entry: entry})
		}
	}
}

// Run clears stale typing markers until ctx is cancelled.
func (e *DocEngine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.typingTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Document returns a copy of a document's current field map.
func (e *DocEngine) Document(ctx context.Context, key string) (*domain.CollaborativeDocument, error) {
	st, err := e.state(ctx, key)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	cp := domain.CollaborativeDocument{Key: key, Fields: make(map[string]domain.DocumentField, len(st.doc.Fields))}
	for name, f := range st.doc.Fields {
		cp.Fields[name] = f
	}
	return &cp, nil
}

func awarenessSnapshotLocked(st *docState) []domain.AwarenessEntry {
	entries := make([]domain.AwarenessEntry, 0, len(st.awareness))
	for _, aw := range st.awareness {
		entries = append(entries, aw.entry)
	}
	return entries
}
