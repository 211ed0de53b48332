package client

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tandemlabs/tandem/internal/domain"
	"github.com/tandemlabs/tandem/internal/realtime"
)

// TimerView mirrors the local user's single authoritative timer. The server
// enforces the one-running-timer rule; every time:timer-updated broadcast
// replaces the view, including the silent correction after a rejected start.
type TimerView struct {
	emitter Emitter

	mu    sync.Mutex
	timer *domain.Timer
}

func NewTimerView(e Emitter) *TimerView {
	return &TimerView{emitter: e}
}

// Bind subscribes the view to a connection's timer events.
func (v *TimerView) Bind(c *Conn) {
	c.On(realtime.EvTimeTimerUpdated, jsonHandler(v.applyTimerUpdated))
}

// Start asks the server to start a timer. If one is already running the
// server answers with the current authoritative timer instead of an error.
func (v *TimerView) Start(taskID, projectID *uuid.UUID, description string) error {
	return v.emitter.Emit(realtime.EvTimeStartTimer, &realtime.TimeStartPayload{
		TaskID:      taskID,
		ProjectID:   projectID,
		Description: description,
	})
}

func (v *TimerView) Pause() error {
	return v.emitter.Emit(realtime.EvTimePauseTimer, nil)
}

func (v *TimerView) Resume() error {
	return v.emitter.Emit(realtime.EvTimeResumeTimer, nil)
}

// Stop ends the timer; the server converts it into an immutable time entry
// and broadcasts time:entry-added.
func (v *TimerView) Stop() error {
	return v.emitter.Emit(realtime.EvTimeStopTimer, nil)
}

// AddEntry submits a manual entry after local validation, so obviously bad
// input never reaches the wire. The server re-validates regardless.
func (v *TimerView) AddEntry(entry domain.TimeEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	return v.emitter.Emit(realtime.EvTimeAddEntry, &realtime.TimeEntryPayload{Entry: entry})
}

// Timer returns the current authoritative timer, nil when none is running
// or paused.
func (v *TimerView) Timer() *domain.Timer {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.timer
}

// Elapsed recomputes tracked time on observation rather than counting
// locally, so the display stays correct across reconnects and clock pauses.
func (v *TimerView) Elapsed(now time.Time) time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.timer == nil {
		return 0
	}
	return v.timer.Elapsed(now)
}

// HandleEvent applies one inbound timer event by name.
func (v *TimerView) HandleEvent(event string, data []byte) {
	if event == realtime.EvTimeTimerUpdated {
		jsonHandler(v.applyTimerUpdated)(data)
	}
}

func (v *TimerView) applyTimerUpdated(p realtime.TimerUpdatedPayload) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.timer = p.Timer
}
