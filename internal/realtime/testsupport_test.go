package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tandemlabs/tandem/internal/domain"
)

// drain decodes every frame currently queued on a session.
func drain(t *testing.T, s *Session) []Envelope {
	t.Helper()

	var out []Envelope
	for {
		select {
		case frame := <-s.Outbound():
			var env Envelope
			require.NoError(t, json.Unmarshal(frame, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

// lastEvent returns the most recent queued frame with the given event name,
// decoded into dst. Fails the test when absent.
func lastEvent(t *testing.T, envs []Envelope, event string, dst any) {
	t.Helper()

	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Event == event {
			require.NoError(t, json.Unmarshal(envs[i].Data, dst))
			return
		}
	}
	t.Fatalf("no %q event in %d frames", event, len(envs))
}

func hasEvent(envs []Envelope, event string) bool {
	for _, e := range envs {
		if e.Event == event {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memBoardRepo struct {
	mu     sync.Mutex
	boards map[uuid.UUID]*domain.KanbanBoard
	saves  int
}

func newMemBoardRepo(boards ...*domain.KanbanBoard) *memBoardRepo {
	r := &memBoardRepo{boards: make(map[uuid.UUID]*domain.KanbanBoard)}
	for _, b := range boards {
		r.boards[b.ID] = b
	}
	return r
}

func (r *memBoardRepo) Create(_ context.Context, b *domain.KanbanBoard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boards[b.ID] = b
	return nil
}

func (r *memBoardRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.KanbanBoard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.boards[id]
	if !ok {
		return nil, fmt.Errorf("memBoardRepo.GetByID: %w", domain.ErrNotFound)
	}
	return b, nil
}

func (r *memBoardRepo) List(_ context.Context) ([]*domain.KanbanBoard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.KanbanBoard, 0, len(r.boards))
	for _, b := range r.boards {
		out = append(out, b)
	}
	return out, nil
}

func (r *memBoardRepo) UpdateSettings(_ context.Context, _ uuid.UUID, _ domain.BoardSettings) error {
	return nil
}
func (r *memBoardRepo) CreateColumn(_ context.Context, _ *domain.Column) error { return nil }
func (r *memBoardRepo) UpdateColumn(_ context.Context, _ *domain.Column) error { return nil }
func (r *memBoardRepo) DeleteColumn(_ context.Context, _, _ uuid.UUID) error   { return nil }
func (r *memBoardRepo) CreateCard(_ context.Context, _ *domain.Card) error     { return nil }
func (r *memBoardRepo) UpdateCard(_ context.Context, _ *domain.Card) error     { return nil }
func (r *memBoardRepo) DeleteCard(_ context.Context, _, _ uuid.UUID) error     { return nil }

func (r *memBoardRepo) SaveCardOrders(_ context.Context, _ uuid.UUID, _ []*domain.Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	return nil
}

type memTimerRepo struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*domain.Timer
}

func newMemTimerRepo() *memTimerRepo {
	return &memTimerRepo{timers: make(map[uuid.UUID]*domain.Timer)}
}

func (r *memTimerRepo) Save(_ context.Context, t *domain.Timer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.timers[t.UserID] = &cp
	return nil
}

func (r *memTimerRepo) GetByUser(_ context.Context, userID uuid.UUID) (*domain.Timer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.timers[userID]
	if !ok {
		return nil, fmt.Errorf("memTimerRepo.GetByUser: %w", domain.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (r *memTimerRepo) Delete(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.timers, userID)
	return nil
}

type memEntryRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*domain.TimeEntry
}

func newMemEntryRepo() *memEntryRepo {
	return &memEntryRepo{entries: make(map[uuid.UUID]*domain.TimeEntry)}
}

func (r *memEntryRepo) Create(_ context.Context, e *domain.TimeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *memEntryRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("memEntryRepo.GetByID: %w", domain.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

func (r *memEntryRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.TimeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TimeEntry
	for _, e := range r.entries {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memEntryRepo) Update(_ context.Context, e *domain.TimeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.ID]; !ok {
		return fmt.Errorf("memEntryRepo.Update: %w", domain.ErrNotFound)
	}
	cp := *e
	r.entries[e.ID] = &cp
	return nil
}

func (r *memEntryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
	return nil
}

type memCommentRepo struct {
	mu       sync.Mutex
	comments map[uuid.UUID]*domain.Comment
}

func newMemCommentRepo() *memCommentRepo {
	return &memCommentRepo{comments: make(map[uuid.UUID]*domain.Comment)}
}

func (r *memCommentRepo) Create(_ context.Context, c *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.comments[c.ID] = &cp
	return nil
}

func (r *memCommentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, fmt.Errorf("memCommentRepo.GetByID: %w", domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *memCommentRepo) ListByContext(_ context.Context, contextID string) ([]*domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Comment
	for _, c := range r.comments {
		if c.ContextID == contextID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memCommentRepo) Update(_ context.Context, c *domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[c.ID]; !ok {
		return fmt.Errorf("memCommentRepo.Update: %w", domain.ErrNotFound)
	}
	cp := *c
	r.comments[c.ID] = &cp
	return nil
}

func (r *memCommentRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.comments, id)
	return nil
}

type memDocRepo struct {
	mu     sync.Mutex
	fields map[string]map[string]domain.DocumentField
}

func newMemDocRepo() *memDocRepo {
	return &memDocRepo{fields: make(map[string]map[string]domain.DocumentField)}
}

func (r *memDocRepo) GetFields(_ context.Context, key string) ([]domain.DocumentField, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.DocumentField
	for _, f := range r.fields[key] {
		out = append(out, f)
	}
	return out, nil
}

func (r *memDocRepo) SaveField(_ context.Context, key string, f domain.DocumentField) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fields[key] == nil {
		r.fields[key] = make(map[string]domain.DocumentField)
	}
	r.fields[key][f.Name] = f
	return nil
}
