package manager

import "context"

// Runtime abstracts the external inference runtime that loads pipelines.
// Concrete implementations (in-process llama.cpp, an inference server) live
// alongside the manager as adapters.
type Runtime interface {
	// Load prepares a pipeline for opts.ModelID. Implementations should call
	// opts.Progress (when non-nil) with fractions in [0,1] while loading.
	Load(ctx context.Context, opts LoadOptions) (Pipeline, error)
}

// Pipeline is the loaded model handle. It exposes exactly one operation.
type Pipeline interface {
	// Generate runs the model on input and returns candidates ordered by the
	// runtime's preference.
	Generate(ctx context.Context, input string, opts GenerateOptions) ([]Candidate, error)
}

// LoadOptions are handed to Runtime.Load.
type LoadOptions struct {
	Task      string
	ModelID   string
	Quantized bool
	Env       RuntimeEnv
	Progress  func(LoadProgress)
}

// LoadProgress is reported periodically while a pipeline loads.
type LoadProgress struct {
	// Progress is the completed fraction in [0,1].
	Progress float64
	// File optionally names the artifact being loaded.
	File string
}

// RuntimeEnv is backend configuration fixed when the manager is constructed.
type RuntimeEnv struct {
	// UseCache lets the runtime reuse its local artifact cache between loads.
	UseCache bool
	// AllowLocalModels permits model ids that are filesystem paths.
	AllowLocalModels bool
	// NumThreads bounds the numeric backend's execution threads.
	NumThreads int
}

// DefaultRuntimeEnv enables caching, disallows local model paths and
// restricts the backend to a single thread.
func DefaultRuntimeEnv() RuntimeEnv {
	return RuntimeEnv{UseCache: true, AllowLocalModels: false, NumThreads: 1}
}

// GenerateOptions are generation parameters passed to Pipeline.Generate.
type GenerateOptions struct {
	MaxNewTokens int
	Temperature  float32
	DoSample     bool
}

// Candidate is one generated sequence.
type Candidate struct {
	GeneratedText string `json:"generated_text"`
}

// RuntimeFunc adapts a function to the Runtime interface.
type RuntimeFunc func(ctx context.Context, opts LoadOptions) (Pipeline, error)

func (f RuntimeFunc) Load(ctx context.Context, opts LoadOptions) (Pipeline, error) {
	return f(ctx, opts)
}

// PipelineFunc adapts a function to the Pipeline interface.
type PipelineFunc func(ctx context.Context, input string, opts GenerateOptions) ([]Candidate, error)

func (f PipelineFunc) Generate(ctx context.Context, input string, opts GenerateOptions) ([]Candidate, error) {
	return f(ctx, input, opts)
}
