package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

const loadKey = "pipeline"

// ensurePipeline returns the loaded pipeline, loading it on first use.
// In shared mode callers arriving during a load wait for it; in reject mode
// they get an unavailable error immediately.
func (m *Manager) ensurePipeline(ctx context.Context) (Pipeline, error) {
	m.mu.RLock()
	p := m.pipeline
	m.mu.RUnlock()
	if p != nil {
		return p, nil
	}
	if m.cfg.LoadMode == LoadModeReject {
		return m.initialize(ctx)
	}
	// The load outlives any single caller: joined callers share its result.
	loadCtx := context.WithoutCancel(ctx)
	ch := m.loads.DoChan(loadKey, func() (any, error) {
		return m.initialize(loadCtx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Pipeline), nil
	case <-ctx.Done():
		return nil, ErrUnavailable("waiting for load", ctx.Err())
	}
}

// initialize performs at most one load at a time. The initializing guard is
// set before the runtime is called and always cleared on return.
func (m *Manager) initialize(ctx context.Context) (Pipeline, error) {
	m.mu.Lock()
	if m.pipeline != nil {
		p := m.pipeline
		m.mu.Unlock()
		return p, nil
	}
	if m.closed {
		m.mu.Unlock()
		return nil, ErrUnavailable("manager closed", nil)
	}
	if m.initializing {
		m.mu.Unlock()
		m.metrics.loads.WithLabelValues(outcomeRejected).Inc()
		m.log.Debug().Str("event", EventLoadRejected).Msg("load already in progress")
		m.publish(EventLoadRejected, nil)
		return nil, ErrUnavailable("load in progress", nil)
	}
	m.initializing = true
	m.status = Status{IsLoading: true}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.initializing = false
		m.mu.Unlock()
	}()

	m.metrics.loadProgress.Set(0)
	m.log.Info().Str("event", EventLoadStart).Str("task", m.cfg.Task).Bool("quantized", !m.cfg.FullPrecision).Msg("model load start")
	m.publish(EventLoadStart, map[string]any{"task": m.cfg.Task})

	if m.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.LoadTimeout)
		defer cancel()
	}
	start := time.Now()
	p, err := m.load(ctx, LoadOptions{
		Task:      m.cfg.Task,
		ModelID:   m.cfg.ModelID,
		Quantized: !m.cfg.FullPrecision,
		Env:       *m.cfg.Env,
		Progress:  m.onProgress,
	})
	dur := time.Since(start)
	m.metrics.loadDuration.Observe(dur.Seconds())

	if err != nil {
		ierr := initializationError{cause: err}
		m.mu.Lock()
		if !m.closed {
			m.status = Status{Error: ierr.Error()}
		}
		m.mu.Unlock()
		m.metrics.loads.WithLabelValues(outcomeError).Inc()
		m.metrics.loadProgress.Set(0)
		m.log.Error().Str("event", EventLoadError).Err(err).Dur("dur", dur).Msg("model load failed")
		m.publish(EventLoadError, map[string]any{"error": ierr.Error()})
		return nil, ErrUnavailable("initialization failed", ierr)
	}

	m.mu.Lock()
	if m.closed {
		// Close ran during the load; the manager stays idle and the fresh
		// pipeline is released here since Close never saw it.
		m.mu.Unlock()
		if c, ok := p.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil {
				m.log.Warn().Err(cerr).Msg("close pipeline loaded after manager close")
			}
		}
		m.metrics.loads.WithLabelValues(outcomeRejected).Inc()
		m.metrics.loadProgress.Set(0)
		m.log.Info().Str("event", EventLoadRejected).Dur("dur", dur).Msg("manager closed during load")
		m.publish(EventLoadRejected, map[string]any{"reason": "closed"})
		return nil, ErrUnavailable("manager closed", nil)
	}
	m.pipeline = p
	m.status = Status{IsReady: true, Progress: 100}
	m.mu.Unlock()
	m.metrics.loads.WithLabelValues(outcomeReady).Inc()
	m.metrics.loadProgress.Set(100)
	m.log.Info().Str("event", EventLoadReady).Dur("dur", dur).Msg("model ready")
	m.publish(EventLoadReady, map[string]any{"dur_ms": int(dur / time.Millisecond)})
	return p, nil
}

// load calls the runtime, turning panics and nil pipelines into errors.
func (m *Manager) load(ctx context.Context, opts LoadOptions) (p Pipeline, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("runtime panic: %v", r)
		}
	}()
	p, err = m.cfg.Runtime.Load(ctx, opts)
	if err == nil && p == nil {
		err = errors.New("runtime returned no pipeline")
	}
	return p, err
}

// onProgress records load progress as an integer percentage. Reports that
// arrive outside a load are ignored.
func (m *Manager) onProgress(lp LoadProgress) {
	if math.IsNaN(lp.Progress) {
		return
	}
	frac := math.Min(math.Max(lp.Progress, 0), 1)
	pct := int(math.Round(frac * 100))
	m.mu.Lock()
	if !m.status.IsLoading {
		m.mu.Unlock()
		return
	}
	changed := m.status.Progress != pct
	m.status.Progress = pct
	m.mu.Unlock()
	m.metrics.loadProgress.Set(float64(pct))
	if changed {
		m.publish(EventLoadProgress, map[string]any{"progress": pct, "file": lp.File})
	}
}
