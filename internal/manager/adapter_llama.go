//go:build llama

package manager

import (
	"context"
	"errors"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaRuntime loads cached GGUF artifacts in-process via go-llama.cpp.
type llamaRuntime struct {
	cache   *modelCache
	ctxSize int
}

// NewLlamaRuntime returns a Runtime that loads models from cacheDir.
func NewLlamaRuntime(cacheDir string, ctxSize int) Runtime {
	return &llamaRuntime{cache: newModelCache(cacheDir), ctxSize: ctxSize}
}

func (r *llamaRuntime) Load(ctx context.Context, opts LoadOptions) (Pipeline, error) {
	mdl, err := r.cache.resolve(opts.ModelID, opts.Quantized, opts.Env)
	if err != nil {
		return nil, err
	}
	reportProgress(opts, 0, mdl.Name)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mo := []llama.ModelOption{}
	if r.ctxSize > 0 {
		mo = append(mo, llama.SetContext(r.ctxSize))
	}
	l, err := llama.New(mdl.Path, mo...)
	if err != nil {
		return nil, err
	}
	reportProgress(opts, 1, mdl.Name)
	return &llamaPipeline{model: l, threads: max(1, opts.Env.NumThreads)}, nil
}

// llamaPipeline owns the loaded model. go-llama.cpp models are not safe for
// concurrent prediction, so calls are serialized.
type llamaPipeline struct {
	mu      sync.Mutex
	model   *llama.LLama
	threads int
}

func (p *llamaPipeline) Generate(ctx context.Context, input string, opts GenerateOptions) ([]Candidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	// Stop generation when the caller goes away.
	p.model.SetTokenCallback(func(string) bool {
		return ctx.Err() == nil
	})
	text, err := p.model.Predict(input, predictOptions(opts, p.threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return []Candidate{{GeneratedText: text}}, nil
}

func (p *llamaPipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		p.model.Free()
		p.model = nil
	}
	return nil
}

// predictOptions converts generation options into go-llama.cpp options.
func predictOptions(opts GenerateOptions, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, opts.MaxNewTokens)),
		llama.SetThreads(max(1, threads)),
	}
	if opts.DoSample {
		po = append(po, llama.SetTemperature(opts.Temperature), llama.SetSeed(-1))
	} else {
		po = append(po, llama.SetTemperature(0), llama.SetTopK(1))
	}
	return po
}
