package client

import (
	"sync"
	"time"

	"github.com/tandemlabs/tandem/internal/domain"
	"github.com/tandemlabs/tandem/internal/realtime"
)

// DebounceInterval is how long the editor waits after the last keystroke in
// a field before publishing it.
const DebounceInterval = 400 * time.Millisecond

// DocEditor is the client half of the per-field last-write-wins document.
// Local keystrokes are staged and debounced before publishing; remote writes
// merge through the same LWW ordering the server and every peer use, so all
// replicas converge.
type DocEditor struct {
	emitter  Emitter
	key      string
	debounce time.Duration

	mu     sync.Mutex
	doc    domain.CollaborativeDocument
	timers map[string]*time.Timer
}

func NewDocEditor(e Emitter, key string) *DocEditor {
	return &DocEditor{
		emitter:  e,
		key:      key,
		debounce: DebounceInterval,
		doc:      domain.CollaborativeDocument{Key: key},
		timers:   make(map[string]*time.Timer),
	}
}

// Bind subscribes the editor to a connection's document events.
func (d *DocEditor) Bind(c *Conn) {
	c.On(realtime.EvDocState, jsonHandler(d.applyState))
	c.On(realtime.EvDocUpdate, jsonHandler(d.applyUpdate))
}

// Join requests the document's durable state.
func (d *DocEditor) Join() error {
	return d.emitter.Emit(realtime.EvDocJoin, &realtime.DocJoinPayload{Key: d.key})
}

// SetField stages a local edit. The value is visible immediately; publishing
// waits until the field has been quiet for the debounce interval, so a burst
// of keystrokes becomes one update.
func (d *DocEditor) SetField(field, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	version := d.doc.Clock() + 1
	d.doc.Merge(domain.DocumentField{
		Name:      field,
		Value:     value,
		Version:   version,
		UpdatedAt: time.Now(),
	})

	if t, ok := d.timers[field]; ok {
		t.Stop()
	}
	d.timers[field] = time.AfterFunc(d.debounce, func() { d.publish(field) })
}

// Flush publishes a field immediately, cancelling its pending debounce.
// Editors call it on blur and before disconnect.
func (d *DocEditor) Flush(field string) {
	d.mu.Lock()
	if t, ok := d.timers[field]; ok {
		t.Stop()
		delete(d.timers, field)
	}
	d.mu.Unlock()
	d.publish(field)
}

func (d *DocEditor) publish(field string) {
	d.mu.Lock()
	f, ok := d.doc.Fields[field]
	d.mu.Unlock()
	if !ok {
		return
	}
	_ = d.emitter.Emit(realtime.EvDocUpdate, &realtime.DocUpdatePayload{
		Key:     d.key,
		Field:   f.Name,
		Value:   f.Value,
		Version: f.Version,
	})
}

// SetTyping reports which field the local user is editing; empty clears it.
func (d *DocEditor) SetTyping(field string) error {
	return d.emitter.Emit(realtime.EvDocAwareness, &realtime.DocAwarenessPayload{
		Key:          d.key,
		EditingField: field,
	})
}

// Field returns the current value of one field.
func (d *DocEditor) Field(name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.doc.Fields[name]
	return f.Value, ok
}

// Fields returns a copy of the whole field map.
func (d *DocEditor) Fields() map[string]domain.DocumentField {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]domain.DocumentField, len(d.doc.Fields))
	for k, f := range d.doc.Fields {
		out[k] = f
	}
	return out
}

// ApplyRemote merges one remote field write. Returns true when the remote
// value won under the (version, actor) ordering.
func (d *DocEditor) ApplyRemote(f domain.DocumentField) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Merge(f)
}

// HandleEvent applies one inbound document event by name.
func (d *DocEditor) HandleEvent(event string, data []byte) {
	switch event {
	case realtime.EvDocState:
		jsonHandler(d.applyState)(data)
	case realtime.EvDocUpdate:
		jsonHandler(d.applyUpdate)(data)
	}
}

func (d *DocEditor) applyState(p realtime.DocStatePayload) {
	if p.Key != d.key {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	// Durable state merges rather than replaces: unflushed local edits with
	// higher versions survive a resync.
	for _, f := range p.Fields {
		d.doc.Merge(f)
	}
}

func (d *DocEditor) applyUpdate(p realtime.DocUpdateBroadcast) {
	if p.Key != d.key {
		return
	}
	d.ApplyRemote(p.Field)
}
