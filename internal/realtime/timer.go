package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tandemlabs/tandem/internal/domain"
)

// TimerService is the authority for per-user timers and time entries. It
// enforces the at-most-one-running-timer-per-user invariant server-side and
// turns stopped timers into immutable TimeEntry records.
//
// Broadcasts go to the user's own time room, so every device of that user
// (and anything else watching the room) converges on the same timer state.
type TimerService struct {
	hub     *Hub
	timers  domain.TimerRepository
	entries domain.TimeEntryRepository
	now     func() time.Time

	mu     sync.Mutex
	active map[uuid.UUID]*domain.Timer
}

func NewTimerService(hub *Hub, timers domain.TimerRepository, entries domain.TimeEntryRepository) *TimerService {
	return &TimerService{
		hub:     hub,
		timers:  timers,
		entries: entries,
		now:     time.Now,
		active:  make(map[uuid.UUID]*domain.Timer),
	}
}

// Connect subscribes a session to its own time room and restores the user's
// persisted timer so elapsed time survives reconnects.
func (t *TimerService) Connect(ctx context.Context, s *Session) {
	t.hub.Join(ctx, TimeRoom(s.UserID), s)

	t.mu.Lock()
	timer, ok := t.active[s.UserID]
	t.mu.Unlock()

	if !ok && t.timers != nil {
		persisted, err := t.timers.GetByUser(ctx, s.UserID)
		if err == nil && persisted != nil {
			t.mu.Lock()
			// Another session may have raced the restore; first one wins.
			if existing, dup := t.active[s.UserID]; dup {
				timer = existing
			} else {
				t.active[s.UserID] = persisted
				timer = persisted
			}
			t.mu.Unlock()
		}
	}

	if timer != nil {
		cp := *timer
		s.Send(EvTimeTimerUpdated, TimerUpdatedPayload{Timer: &cp})
	}
}

// Start begins a timer for the session's user. When one is already running
// this is an authority rejection, handled silently-correctively: the caller
// alone receives the authoritative current timer and no state changes.
func (t *TimerService) Start(ctx context.Context, s *Session, p *TimeStartPayload) error {
	now := t.now()

	t.mu.Lock()
	if existing, ok := t.active[s.UserID]; ok {
		cp := *existing
		t.mu.Unlock()
		s.Send(EvTimeTimerUpdated, TimerUpdatedPayload{Timer: &cp})
		return fmt.Errorf("timerService.Start: user %s: %w", s.UserID, domain.ErrTimerRunning)
	}
	timer := &domain.Timer{
		ID:          uuid.New(),
		UserID:      s.UserID,
		TaskID:      p.TaskID,
		ProjectID:   p.ProjectID,
		Description: p.Description,
		StartedAt:   now,
		Running:     true,
	}
	t.active[s.UserID] = timer
	cp := *timer
	t.mu.Unlock()

	t.persist(ctx, &cp)
	t.hub.Broadcast(ctx, TimeRoom(s.UserID), EvTimeTimerUpdated, TimerUpdatedPayload{Timer: &cp})
	return nil
}

// Pause folds the running stretch into the timer's accumulated seconds.
func (t *TimerService) Pause(ctx context.Context, s *Session) error {
	return t.adjust(ctx, s, func(timer *domain.Timer, now time.Time) { timer.Pause(now) })
}

// Resume restarts a paused timer.
func (t *TimerService) Resume(ctx context.Context, s *Session) error {
	return t.adjust(ctx, s, func(timer *domain.Timer, now time.Time) { timer.Resume(now) })
}

func (t *TimerService) adjust(ctx context.Context, s *Session, fn func(*domain.Timer, time.Time)) error {
	now := t.now()

	t.mu.Lock()
	timer, ok := t.active[s.UserID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("timerService.adjust: user %s: %w", s.UserID, domain.ErrNotFound)
	}
	fn(timer, now)
	cp := *timer
	t.mu.Unlock()

	t.persist(ctx, &cp)
	t.hub.Broadcast(ctx, TimeRoom(s.UserID), EvTimeTimerUpdated, TimerUpdatedPayload{Timer: &cp})
	return nil
}

// Stop atomically ends the user's timer, emits the immutable TimeEntry, and
// broadcasts both the cleared timer and the new entry.
func (t *TimerService) Stop(ctx context.Context, s *Session) (*domain.TimeEntry, error) {
	now := t.now()

	t.mu.Lock()
	timer, ok := t.active[s.UserID]
	if !ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("timerService.Stop: user %s: %w", s.UserID, domain.ErrNotFound)
	}
	delete(t.active, s.UserID)
	entry := timer.Stop(now)
	t.mu.Unlock()

	if t.timers != nil {
		if err := t.timers.Delete(ctx, s.UserID); err != nil {
			log.Error().Err(err).Stringer("user", s.UserID).Msg("clear persisted timer")
		}
	}
	if t.entries != nil {
		if err := t.entries.Create(ctx, entry); err != nil {
			log.Error().Err(err).Stringer("entry", entry.ID).Msg("persist time entry")
		}
	}

	t.hub.Broadcast(ctx, TimeRoom(s.UserID), EvTimeTimerUpdated, TimerUpdatedPayload{Timer: nil})
	t.hub.Broadcast(ctx, TimeRoom(s.UserID), EvTimeEntryAdded, TimeEntryPayload{Entry: *entry})
	return entry, nil
}

// AddEntry records a manually created entry after re-validating it.
func (t *TimerService) AddEntry(ctx context.Context, s *Session, p *TimeEntryPayload) error {
	entry := p.Entry
	if err := entry.Validate(); err != nil {
		return err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.UserID = s.UserID
	entry.CreatedAt = t.now()

	if t.entries != nil {
		if err := t.entries.Create(ctx, &entry); err != nil {
			return fmt.Errorf("timerService.AddEntry: %w", err)
		}
	}
	t.hub.Broadcast(ctx, TimeRoom(s.UserID), EvTimeEntryAdded, TimeEntryPayload{Entry: entry})
	return nil
}

// UpdateEntry rewrites an entry owned by the caller.
func (t *TimerService) UpdateEntry(ctx context.Context, s *Session, p *TimeEntryPayload) error {
	entry := p.Entry
	if err := entry.Validate(); err != nil {
		return err
	}

	if t.entries != nil {
		existing, err := t.entries.GetByID(ctx, entry.ID)
		if err != nil {
			return fmt.Errorf("timerService.UpdateEntry: %w", err)
		}
		if existing.UserID != s.UserID {
			return fmt.Errorf("timerService.UpdateEntry: entry %s: %w", entry.ID, domain.ErrForbidden)
		}
		entry.UserID = existing.UserID
		entry.CreatedAt = existing.CreatedAt
		if err := t.entries.Update(ctx, &entry); err != nil {
			return fmt.Errorf("timerService.UpdateEntry: %w", err)
		}
	}
	t.hub.Broadcast(ctx, TimeRoom(s.UserID), EvTimeEntryUpdated, TimeEntryPayload{Entry: entry})
	return nil
}

// DeleteEntry removes an entry owned by the caller.
func (t *TimerService) DeleteEntry(ctx context.Context, s *Session, p *TimeDeleteEntryPayload) error {
	if t.entries != nil {
		existing, err := t.entries.GetByID(ctx, p.EntryID)
		if err != nil {
			return fmt.Errorf("timerService.DeleteEntry: %w", err)
		}
		if existing.UserID != s.UserID {
			return fmt.Errorf("timerService.DeleteEntry: entry %s: %w", p.EntryID, domain.ErrForbidden)
		}
		if err := t.entries.Delete(ctx, p.EntryID); err != nil {
			return fmt.Errorf("timerService.DeleteEntry: %w", err)
		}
	}
	t.hub.Broadcast(ctx, TimeRoom(s.UserID), EvTimeEntryDeleted, TimeDeleteEntryPayload{EntryID: p.EntryID})
	return nil
}

// Active returns the user's running or paused timer, if any.
func (t *TimerService) Active(userID uuid.UUID) *domain.Timer {
	t.mu.Lock()
	defer t.mu.Unlock()
	timer, ok := t.active[userID]
	if !ok {
		return nil
	}
	cp := *timer
	return &cp
}

func (t *TimerService) persist(ctx context.Context, timer *domain.Timer) {
	if t.timers == nil {
		return
	}
	if err := t.timers.Save(ctx, timer); err != nil {
		log.Error().Err(err).Stringer("user", timer.UserID).Msg("persist timer")
	}
}
