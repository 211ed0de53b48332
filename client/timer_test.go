package client

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandemlabs/tandem/internal/domain"
	"github.com/tandemlabs/tandem/internal/realtime"
)

func TestTimerView_StartEmitsIntent(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	v := NewTimerView(em)

	taskID := uuid.New()
	require.NoError(t, v.Start(&taskID, nil, "deep work"))

	got := em.last(t)
	assert.Equal(t, realtime.EvTimeStartTimer, got.event)
	payload, ok := got.payload.(*realtime.TimeStartPayload)
	require.True(t, ok)
	require.NotNil(t, payload.TaskID)
	assert.Equal(t, taskID, *payload.TaskID)
	assert.Equal(t, "deep work", payload.Description)
}

func TestTimerView_PauseResumeStopArePayloadless(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	v := NewTimerView(em)

	require.NoError(t, v.Pause())
	require.NoError(t, v.Resume())
	require.NoError(t, v.Stop())

	events := em.all()
	require.Len(t, events, 3)
	assert.Equal(t, realtime.EvTimePauseTimer, events[0].event)
	assert.Equal(t, realtime.EvTimeResumeTimer, events[1].event)
	assert.Equal(t, realtime.EvTimeStopTimer, events[2].event)
}

func TestTimerView_TimerUpdatedReplacesView(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	v := NewTimerView(em)

	assert.Nil(t, v.Timer())

	timer := &domain.Timer{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		StartedAt: time.Now(),
		Running:   true,
	}
	v.HandleEvent(realtime.EvTimeTimerUpdated, mustJSON(t, realtime.TimerUpdatedPayload{Timer: timer}))
	require.NotNil(t, v.Timer())
	assert.Equal(t, timer.ID, v.Timer().ID)

	// nil timer after stop clears the view.
	v.HandleEvent(realtime.EvTimeTimerUpdated, mustJSON(t, realtime.TimerUpdatedPayload{Timer: nil}))
	assert.Nil(t, v.Timer())
}

func TestTimerView_ElapsedRecomputedOnObservation(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	v := NewTimerView(em)

	assert.Zero(t, v.Elapsed(time.Now()))

	start := time.Now().Add(-10 * time.Minute)
	v.HandleEvent(realtime.EvTimeTimerUpdated, mustJSON(t, realtime.TimerUpdatedPayload{
		Timer: &domain.Timer{
			ID:                 uuid.New(),
			StartedAt:          start,
			Running:            true,
			AccumulatedSeconds: 120,
		},
	}))

	// 2 minutes accumulated + ~10 minutes of the current stretch.
	got := v.Elapsed(start.Add(10 * time.Minute))
	assert.Equal(t, 12*time.Minute, got)

	// Paused: only the accumulated seconds count, regardless of now.
	v.HandleEvent(realtime.EvTimeTimerUpdated, mustJSON(t, realtime.TimerUpdatedPayload{
		Timer: &domain.Timer{
			ID:                 uuid.New(),
			StartedAt:          start,
			Running:            false,
			AccumulatedSeconds: 300,
		},
	}))
	assert.Equal(t, 5*time.Minute, v.Elapsed(time.Now().Add(time.Hour)))
}

func TestTimerView_AddEntryValidatesLocally(t *testing.T) {
	t.Parallel()

	em := &fakeEmitter{}
	v := NewTimerView(em)

	err := v.AddEntry(domain.TimeEntry{Description: "", DurationSeconds: 60})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, em.all(), "invalid entry never reaches the wire")

	err = v.AddEntry(domain.TimeEntry{Description: "retro notes", DurationSeconds: -1})
	require.ErrorIs(t, err, domain.ErrValidation)

	now := time.Now()
	require.NoError(t, v.AddEntry(domain.TimeEntry{
		Description:     "retro notes",
		StartedAt:       now.Add(-time.Hour),
		EndedAt:         now,
		DurationSeconds: 3600,
	}))
	got := em.last(t)
	assert.Equal(t, realtime.EvTimeAddEntry, got.event)
}
