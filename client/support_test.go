package client

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeEmitter records emitted events so the views can be tested without a
// connection.
type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

type emitted struct {
	event   string
	payload any
}

func (f *fakeEmitter) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeEmitter) all() []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emitted, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeEmitter) named(event string) []emitted {
	var out []emitted
	for _, e := range f.all() {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeEmitter) last(t *testing.T) emitted {
	t.Helper()
	all := f.all()
	require.NotEmpty(t, all, "no events emitted")
	return all[len(all)-1]
}

// mustJSON marshals a payload the way the server would put it on the wire.
func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
