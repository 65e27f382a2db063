package manager

import "time"

// Event names published by the manager.
const (
	EventLoadStart       = "load_start"
	EventLoadProgress    = "load_progress"
	EventLoadReady       = "load_ready"
	EventLoadError       = "load_error"
	EventLoadRejected    = "load_rejected"
	EventGenerateDone    = "generate_done"
	EventGenerateError   = "generate_error"
	EventGenerateUnavail = "generate_unavailable"
	EventGenerateInvalid = "generate_invalid"
)

// Event represents a manager lifecycle event: a name, the model it concerns
// and optional fields.
type Event struct {
	Name    string
	ModelID string
	At      time.Time
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// SetEventPublisher installs p; nil restores the no-op publisher.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

func (m *Manager) publish(name string, fields map[string]any) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	if fields == nil {
		fields = map[string]any{}
	}
	p.Publish(Event{Name: name, ModelID: m.cfg.ModelID, At: time.Now(), Fields: fields})
}
