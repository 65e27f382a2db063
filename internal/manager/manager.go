package manager

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Manager owns the lifecycle of a single inference pipeline: lazy
// at-most-once loading, a status snapshot and question answering.
type Manager struct {
	cfg     ManagerConfig
	log     zerolog.Logger
	metrics *managerMetrics
	loads   singleflight.Group

	mu           sync.RWMutex
	status       Status
	pipeline     Pipeline
	initializing bool
	closed       bool
	publisher    EventPublisher
}

// New constructs a Manager. The pipeline is not loaded until the first
// GenerateResponse call.
func New(cfg ManagerConfig) *Manager {
	cfg = cfg.withDefaults()
	if cfg.Runtime == nil {
		cfg.Runtime = RuntimeFunc(func(context.Context, LoadOptions) (Pipeline, error) {
			return nil, ErrDependencyUnavailable("no inference runtime configured")
		})
	}
	return &Manager{
		cfg:       cfg,
		log:       cfg.Logger.With().Str("component", "manager").Str("model", cfg.ModelID).Logger(),
		metrics:   newManagerMetrics(cfg.Registerer),
		publisher: cfg.Publisher,
	}
}

// Status returns a copy of the current status. Safe to call at any time,
// including while a load is in flight.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Ready reports whether the pipeline is loaded.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.IsReady
}

// ModelID returns the model identifier the manager loads.
func (m *Manager) ModelID() string { return m.cfg.ModelID }

// Close releases the pipeline if it holds resources. After Close the manager
// reports the model as unavailable.
func (m *Manager) Close() error {
	m.mu.Lock()
	p := m.pipeline
	m.pipeline = nil
	m.closed = true
	m.status = Status{}
	m.mu.Unlock()
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
