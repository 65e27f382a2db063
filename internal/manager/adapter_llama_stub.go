//go:build !llama

package manager

// No-CGO stub for the llama runtime, compiled when the 'llama' build tag is
// NOT set. The real runtime lives in adapter_llama.go.

import "context"

var llamaBuilt = false

type llamaRuntime struct {
	cache   *modelCache
	ctxSize int
}

// NewLlamaRuntime returns a Runtime that resolves models from cacheDir but
// refuses to load them without llama support compiled in.
func NewLlamaRuntime(cacheDir string, ctxSize int) Runtime {
	return &llamaRuntime{cache: newModelCache(cacheDir), ctxSize: ctxSize}
}

func (r *llamaRuntime) Load(ctx context.Context, opts LoadOptions) (Pipeline, error) {
	// Resolve first so cache and local-path errors surface the same way as
	// in llama builds.
	if _, err := r.cache.resolve(opts.ModelID, opts.Quantized, opts.Env); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
