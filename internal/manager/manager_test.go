package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewAppliesDefaults(t *testing.T) {
	m := New(ManagerConfig{})
	if m.cfg.ModelID != DefaultModelID || m.cfg.Task != DefaultTask {
		t.Fatalf("unexpected model/task: %q %q", m.cfg.ModelID, m.cfg.Task)
	}
	if m.cfg.LoadMode != LoadModeShared {
		t.Fatalf("expected shared load mode, got %q", m.cfg.LoadMode)
	}
	if *m.cfg.Env != DefaultRuntimeEnv() {
		t.Fatalf("unexpected env: %+v", *m.cfg.Env)
	}
	opts := m.cfg.generateOptions()
	if opts.MaxNewTokens != 128 || opts.Temperature != 0.7 || !opts.DoSample {
		t.Fatalf("unexpected generate options: %+v", opts)
	}
}

func TestDefaultRuntimeEnv(t *testing.T) {
	env := DefaultRuntimeEnv()
	if !env.UseCache || env.AllowLocalModels || env.NumThreads != 1 {
		t.Fatalf("unexpected default env: %+v", env)
	}
}

func TestStatusInitiallyIdle(t *testing.T) {
	m := newTestManager(t, &fakeRuntime{})
	if s := m.Status(); s != (Status{}) {
		t.Fatalf("expected zero status, got %+v", s)
	}
	if m.Ready() {
		t.Fatalf("expected not ready initially")
	}
	if m.Status().State() != StateIdle {
		t.Fatalf("expected idle state")
	}
}

func TestStatusReturnsCopy(t *testing.T) {
	m := newTestManager(t, &fakeRuntime{})
	a := m.Status()
	b := m.Status()
	if a != b {
		t.Fatalf("consecutive snapshots differ: %+v vs %+v", a, b)
	}
	a.IsReady = true
	a.Progress = 42
	a.Error = "mutated"
	if s := m.Status(); s != (Status{}) {
		t.Fatalf("internal status mutated via returned copy: %+v", s)
	}
}

func TestGenerateResponse_EmptyPrompt(t *testing.T) {
	rt := &fakeRuntime{pipeline: &fakePipeline{text: "x"}}
	m := newTestManager(t, rt)
	for _, p := range []string{"", " ", "\n\t  "} {
		resp := m.GenerateResponse(testCtx(t), p, "ctx")
		if resp.Text != "" || resp.Error != "Empty prompt" || resp.Metadata != nil {
			t.Fatalf("prompt %q: unexpected response %+v", p, resp)
		}
		if !IsValidation(resp.Cause) {
			t.Fatalf("expected validation cause, got %v", resp.Cause)
		}
	}
	if rt.Calls() != 0 {
		t.Fatalf("expected no load for empty prompt, got %d", rt.Calls())
	}
	if s := m.Status(); s != (Status{}) {
		t.Fatalf("status changed by empty prompt: %+v", s)
	}
}

func TestGenerateResponse_Success(t *testing.T) {
	pl := &fakePipeline{text: "Answer."}
	rt := &fakeRuntime{pipeline: pl}
	m := newTestManager(t, rt)

	resp := m.GenerateResponse(testCtx(t), "What is the chemo protocol?", "Doc excerpt")
	if !resp.OK() || resp.Text != "Answer." {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Metadata == nil || !resp.Metadata.IsChemotherapyQuery {
		t.Fatalf("expected chemotherapy metadata, got %+v", resp.Metadata)
	}
	in := pl.Inputs()
	want := "Answer this oncology question. Context: Doc excerpt. Question: What is the chemo protocol?"
	if len(in) != 1 || in[0] != want {
		t.Fatalf("unexpected pipeline input: %q", in)
	}
	if got := pl.opts[0]; got != (GenerateOptions{MaxNewTokens: 128, Temperature: 0.7, DoSample: true}) {
		t.Fatalf("unexpected generate options: %+v", got)
	}

	s := m.Status()
	if !s.IsReady || s.IsLoading || s.Progress != 100 || s.Error != "" {
		t.Fatalf("unexpected status after load: %+v", s)
	}
	if s.State() != StateReady || !m.Ready() {
		t.Fatalf("expected ready state")
	}

	resp = m.GenerateResponse(testCtx(t), "What time is it?", "")
	if resp.Metadata == nil || resp.Metadata.IsChemotherapyQuery {
		t.Fatalf("expected non-chemotherapy metadata, got %+v", resp.Metadata)
	}
}

func TestLoadOptionsPassedToRuntime(t *testing.T) {
	rt := &fakeRuntime{pipeline: &fakePipeline{text: "ok"}}
	m := newTestManager(t, rt)
	_ = m.GenerateResponse(testCtx(t), "q", "c")
	o := rt.LastOpts()
	if o.Task != "text2text-generation" || o.ModelID != "Xenova/LaMini-Flan-T5-248M" || !o.Quantized {
		t.Fatalf("unexpected load options: %+v", o)
	}
	if o.Env != DefaultRuntimeEnv() || o.Progress == nil {
		t.Fatalf("unexpected env/progress: %+v", o)
	}
}

func TestGreedyAndCustomGeneration(t *testing.T) {
	pl := &fakePipeline{text: "ok"}
	m := newTestManager(t, &fakeRuntime{pipeline: pl}, func(c *ManagerConfig) {
		c.Greedy = true
		c.MaxNewTokens = 32
		c.Temperature = 0.2
		c.FullPrecision = true
	})
	_ = m.GenerateResponse(testCtx(t), "q", "c")
	if got := pl.opts[0]; got != (GenerateOptions{MaxNewTokens: 32, Temperature: 0.2, DoSample: false}) {
		t.Fatalf("unexpected options: %+v", got)
	}
}

func TestLoadIsAtMostOnce(t *testing.T) {
	pl := &fakePipeline{text: "ok"}
	rt := &fakeRuntime{pipeline: pl}
	m := newTestManager(t, rt)
	p1, err := m.ensurePipeline(testCtx(t))
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	p2, err := m.ensurePipeline(testCtx(t))
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("expected same pipeline handle")
	}
	for i := 0; i < 3; i++ {
		_ = m.GenerateResponse(testCtx(t), "q", "c")
	}
	if rt.Calls() != 1 {
		t.Fatalf("expected exactly one load, got %d", rt.Calls())
	}
}

func TestLoadFailure_SetsErrorStatusAndRetriesLater(t *testing.T) {
	rt := &fakeRuntime{err: errBoom}
	m := newTestManager(t, rt)

	resp := m.GenerateResponse(testCtx(t), "q", "c")
	if resp.Text != "" || resp.Error != "Model not available" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !IsUnavailable(resp.Cause) || !IsInitialization(resp.Cause) || !errors.Is(resp.Cause, errBoom) {
		t.Fatalf("unexpected cause: %v", resp.Cause)
	}
	s := m.Status()
	if s.IsReady || s.IsLoading || s.Progress != 0 || s.Error != "boom" {
		t.Fatalf("unexpected status after failed load: %+v", s)
	}
	if s.State() != StateError {
		t.Fatalf("expected error state")
	}

	// No handle was stored, so the next request tries again.
	rt.mu.Lock()
	rt.err = nil
	rt.pipeline = &fakePipeline{text: "recovered"}
	rt.mu.Unlock()
	resp = m.GenerateResponse(testCtx(t), "q", "c")
	if resp.Text != "recovered" {
		t.Fatalf("expected recovery, got %+v", resp)
	}
	if rt.Calls() != 2 {
		t.Fatalf("expected two load attempts, got %d", rt.Calls())
	}
	if s := m.Status(); !s.IsReady || s.Error != "" {
		t.Fatalf("unexpected status after recovery: %+v", s)
	}
}

func TestLoadFailure_EmptyMessageUsesFallback(t *testing.T) {
	m := newTestManager(t, &fakeRuntime{err: errors.New("")})
	_ = m.GenerateResponse(testCtx(t), "q", "c")
	if s := m.Status(); s.Error != "Model initialization failed" {
		t.Fatalf("expected fallback message, got %q", s.Error)
	}
}

func TestLoadFailure_NilPipeline(t *testing.T) {
	m := newTestManager(t, &fakeRuntime{})
	resp := m.GenerateResponse(testCtx(t), "q", "c")
	if resp.Error != "Model not available" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if s := m.Status(); !strings.Contains(s.Error, "no pipeline") {
		t.Fatalf("unexpected status: %+v", s)
	}
}

func TestLoadFailure_RuntimePanicRecovered(t *testing.T) {
	rt := RuntimeFunc(func(context.Context, LoadOptions) (Pipeline, error) { panic("kaboom") })
	m := newTestManager(t, rt)
	resp := m.GenerateResponse(testCtx(t), "q", "c")
	if resp.Error != "Model not available" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	s := m.Status()
	if !strings.Contains(s.Error, "kaboom") || s.IsLoading {
		t.Fatalf("unexpected status: %+v", s)
	}
	if m.initializing {
		t.Fatalf("initializing guard not released after panic")
	}
}

func TestNoRuntimeConfigured(t *testing.T) {
	m := New(ManagerConfig{})
	resp := m.GenerateResponse(testCtx(t), "q", "c")
	if !IsDependencyUnavailable(resp.Cause) {
		t.Fatalf("expected dependency unavailable cause, got %v", resp.Cause)
	}
	if s := m.Status(); !strings.Contains(s.Error, "no inference runtime") {
		t.Fatalf("unexpected status: %+v", s)
	}
}

func TestRejectMode_SecondCallDuringLoadIsUnavailable(t *testing.T) {
	rt := &fakeRuntime{
		pipeline: &fakePipeline{text: "done"},
		started:  make(chan struct{}, 1),
		block:    make(chan struct{}),
	}
	m := newTestManager(t, rt, func(c *ManagerConfig) { c.LoadMode = LoadModeReject })

	first := make(chan Response, 1)
	go func() { first <- m.GenerateResponse(context.Background(), "q1", "c") }()
	waitStarted(t, rt)

	if s := m.Status(); !s.IsLoading || s.IsReady {
		t.Fatalf("expected loading status, got %+v", s)
	}
	resp := m.GenerateResponse(testCtx(t), "q2", "c")
	if resp.Text != "" || resp.Error != "Model not available" || !IsUnavailable(resp.Cause) {
		t.Fatalf("expected unavailable during load, got %+v", resp)
	}
	if _, err := m.initialize(testCtx(t)); !IsUnavailable(err) {
		t.Fatalf("expected direct initialize to be rejected, got %v", err)
	}

	close(rt.block)
	select {
	case r := <-first:
		if r.Text != "done" {
			t.Fatalf("unexpected first response: %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first caller did not finish")
	}
	if rt.Calls() != 1 {
		t.Fatalf("expected exactly one load, got %d", rt.Calls())
	}
	if !m.Ready() {
		t.Fatalf("expected ready after load")
	}
}

func TestSharedMode_ConcurrentCallersShareOneLoad(t *testing.T) {
	rt := &fakeRuntime{
		pipeline: &fakePipeline{text: "shared"},
		started:  make(chan struct{}, 1),
		block:    make(chan struct{}),
	}
	m := newTestManager(t, rt)

	const n = 8
	var wg sync.WaitGroup
	out := make(chan Response, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out <- m.GenerateResponse(context.Background(), "q", "c")
		}()
	}
	waitStarted(t, rt)
	close(rt.block)
	wg.Wait()
	close(out)
	for r := range out {
		if r.Text != "shared" {
			t.Fatalf("unexpected response: %+v", r)
		}
	}
	if rt.Calls() != 1 {
		t.Fatalf("expected exactly one load, got %d", rt.Calls())
	}
}

func TestSharedMode_WaiterCancellationDoesNotAbortLoad(t *testing.T) {
	rt := &fakeRuntime{
		pipeline: &fakePipeline{text: "ok"},
		started:  make(chan struct{}, 1),
		block:    make(chan struct{}),
	}
	m := newTestManager(t, rt)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan Response, 1)
	go func() { first <- m.GenerateResponse(firstCtx, "q", "c") }()
	waitStarted(t, rt)

	// The caller that started the load goes away; the load keeps running.
	cancelFirst()
	select {
	case r := <-first:
		if !IsUnavailable(r.Cause) || !errors.Is(r.Cause, context.Canceled) {
			t.Fatalf("expected canceled wait, got %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("canceled caller did not return")
	}
	if s := m.Status(); !s.IsLoading {
		t.Fatalf("expected load still in flight, got %+v", s)
	}

	close(rt.block)
	resp := m.GenerateResponse(testCtx(t), "q", "c")
	if resp.Text != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if rt.Calls() != 1 {
		t.Fatalf("expected exactly one load, got %d", rt.Calls())
	}
}

func TestLoadTimeout(t *testing.T) {
	rt := &fakeRuntime{block: make(chan struct{}), pipeline: &fakePipeline{}}
	m := newTestManager(t, rt, func(c *ManagerConfig) { c.LoadTimeout = 20 * time.Millisecond })
	resp := m.GenerateResponse(testCtx(t), "q", "c")
	if !errors.Is(resp.Cause, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", resp.Cause)
	}
	if s := m.Status(); s.Error == "" || s.IsLoading {
		t.Fatalf("unexpected status: %+v", s)
	}
}

func TestProgressUpdatesWhileLoading(t *testing.T) {
	rt := &fakeRuntime{
		pipeline: &fakePipeline{text: "ok"},
		progress: []float64{0.1, 0.504},
		started:  make(chan struct{}, 1),
		block:    make(chan struct{}),
	}
	m := newTestManager(t, rt)
	done := make(chan struct{})
	go func() {
		_ = m.GenerateResponse(context.Background(), "q", "c")
		close(done)
	}()
	waitStarted(t, rt)
	if s := m.Status(); !s.IsLoading || s.Progress != 50 {
		t.Fatalf("unexpected status during load: %+v", s)
	}
	close(rt.block)
	<-done
	if s := m.Status(); s.Progress != 100 {
		t.Fatalf("expected 100 after load, got %+v", s)
	}
	// Late reports are ignored once loading is over.
	m.onProgress(LoadProgress{Progress: 0.3})
	if s := m.Status(); s.Progress != 100 {
		t.Fatalf("late progress changed status: %+v", s)
	}
}

func TestProgressRoundingAndClamping(t *testing.T) {
	m := newTestManager(t, &fakeRuntime{})
	m.status = Status{IsLoading: true}
	cases := []struct {
		in   float64
		want int
	}{
		{0.333, 33},
		{0.006, 1},
		{0.994, 99},
		{1.7, 100},
		{-0.5, 0},
	}
	for _, c := range cases {
		m.onProgress(LoadProgress{Progress: c.in})
		if got := m.Status().Progress; got != c.want {
			t.Fatalf("progress %v -> %d, want %d", c.in, got, c.want)
		}
	}
}

func TestGenerationError_DoesNotTouchStatus(t *testing.T) {
	pl := &fakePipeline{err: errors.New("gen failed")}
	m := newTestManager(t, &fakeRuntime{pipeline: pl})
	resp := m.GenerateResponse(testCtx(t), "q", "c")
	if resp.Text != "" || resp.Error != "gen failed" || resp.Metadata != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !IsGeneration(resp.Cause) {
		t.Fatalf("expected generation cause, got %v", resp.Cause)
	}
	if s := m.Status(); !s.IsReady || s.Error != "" || s.Progress != 100 {
		t.Fatalf("status changed by generation failure: %+v", s)
	}
}

func TestGenerationError_EmptyMessageUsesFallback(t *testing.T) {
	m := newTestManager(t, &fakeRuntime{pipeline: &fakePipeline{err: errors.New("")}})
	if resp := m.GenerateResponse(testCtx(t), "q", "c"); resp.Error != "Failed to generate response" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGenerationError_NoCandidates(t *testing.T) {
	m := newTestManager(t, &fakeRuntime{pipeline: &fakePipeline{cands: []Candidate{}}})
	resp := m.GenerateResponse(testCtx(t), "q", "c")
	if !IsGeneration(resp.Cause) || !strings.Contains(resp.Error, "no candidates") {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGeneration_UsesFirstCandidate(t *testing.T) {
	pl := &fakePipeline{cands: []Candidate{{GeneratedText: "first"}, {GeneratedText: "second"}}}
	m := newTestManager(t, &fakeRuntime{pipeline: pl})
	if resp := m.GenerateResponse(testCtx(t), "q", "c"); resp.Text != "first" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGeneration_PanicRecovered(t *testing.T) {
	pl := PipelineFunc(func(context.Context, string, GenerateOptions) ([]Candidate, error) { panic("bad tensor") })
	m := newTestManager(t, &fakeRuntime{pipeline: pl})
	resp := m.GenerateResponse(testCtx(t), "q", "c")
	if !IsGeneration(resp.Cause) || !strings.Contains(resp.Error, "bad tensor") {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGenerateTimeout(t *testing.T) {
	pl := PipelineFunc(func(ctx context.Context, _ string, _ GenerateOptions) ([]Candidate, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	m := newTestManager(t, &fakeRuntime{pipeline: pl}, func(c *ManagerConfig) { c.GenerateTimeout = 20 * time.Millisecond })
	resp := m.GenerateResponse(testCtx(t), "q", "c")
	if !errors.Is(resp.Cause, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %+v", resp)
	}
}

func TestCloseReleasesPipeline(t *testing.T) {
	pl := &fakePipeline{text: "ok"}
	rt := &fakeRuntime{pipeline: pl}
	m := newTestManager(t, rt)
	_ = m.GenerateResponse(testCtx(t), "q", "c")
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !pl.closed {
		t.Fatalf("expected pipeline closed")
	}
	if m.Ready() {
		t.Fatalf("expected not ready after close")
	}
	resp := m.GenerateResponse(testCtx(t), "q", "c")
	if !IsUnavailable(resp.Cause) {
		t.Fatalf("expected unavailable after close, got %+v", resp)
	}
	if rt.Calls() != 1 {
		t.Fatalf("expected no reload after close, got %d loads", rt.Calls())
	}
}

func TestCloseDuringLoad(t *testing.T) {
	pl := &fakePipeline{text: "Answer."}
	rt := &fakeRuntime{pipeline: pl, started: make(chan struct{}, 1), block: make(chan struct{})}
	m := newTestManager(t, rt)

	done := make(chan Response, 1)
	go func() { done <- m.GenerateResponse(context.Background(), "q", "c") }()
	waitStarted(t, rt)
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	close(rt.block)

	var resp Response
	select {
	case resp = <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for response")
	}
	if resp.Error != msgModelUnavailable || !IsUnavailable(resp.Cause) {
		t.Fatalf("expected unavailable response, got %+v", resp)
	}
	if s := m.Status(); s != (Status{}) {
		t.Fatalf("expected idle status after close, got %+v", s)
	}
	pl.mu.Lock()
	closed := pl.closed
	pl.mu.Unlock()
	if !closed {
		t.Fatalf("expected pipeline loaded after close to be released")
	}
	if resp := m.GenerateResponse(testCtx(t), "q", "c"); resp.Text != "" || !IsUnavailable(resp.Cause) {
		t.Fatalf("expected unavailable after close, got %+v", resp)
	}
	if rt.Calls() != 1 {
		t.Fatalf("expected no reload after close, got %d loads", rt.Calls())
	}
}
