package manager

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeRuntime is an in-memory Runtime used by tests. When block is non-nil
// Load waits for it to be closed (or for ctx) before returning.
type fakeRuntime struct {
	mu       sync.Mutex
	calls    int
	lastOpts LoadOptions

	progress []float64
	started  chan struct{} // buffered; receives once per Load
	block    chan struct{}
	err      error
	pipeline Pipeline
}

func (f *fakeRuntime) Load(ctx context.Context, opts LoadOptions) (Pipeline, error) {
	f.mu.Lock()
	f.calls++
	f.lastOpts = opts
	f.mu.Unlock()
	for _, p := range f.progress {
		reportProgress(opts, p, "model.gguf")
	}
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.pipeline, nil
}

func (f *fakeRuntime) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeRuntime) LastOpts() LoadOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}

// fakePipeline records inputs and returns a fixed candidate or error.
type fakePipeline struct {
	mu     sync.Mutex
	text   string
	cands  []Candidate
	err    error
	inputs []string
	opts   []GenerateOptions
	closed bool
}

func (p *fakePipeline) Generate(ctx context.Context, input string, opts GenerateOptions) ([]Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = append(p.inputs, input)
	p.opts = append(p.opts, opts)
	if p.err != nil {
		return nil, p.err
	}
	if p.cands != nil {
		return p.cands, nil
	}
	return []Candidate{{GeneratedText: p.text}}, nil
}

func (p *fakePipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePipeline) Inputs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.inputs...)
}

var errBoom = errors.New("boom")

// newTestManager builds a Manager over rt with a private registry.
func newTestManager(t *testing.T, rt Runtime, mutate ...func(*ManagerConfig)) *Manager {
	t.Helper()
	cfg := ManagerConfig{Runtime: rt}
	for _, fn := range mutate {
		fn(&cfg)
	}
	return New(cfg)
}

// waitStarted blocks until rt reports a Load call or fails the test.
func waitStarted(t *testing.T, rt *fakeRuntime) {
	t.Helper()
	select {
	case <-rt.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for load to start")
	}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
