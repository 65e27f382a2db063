package manager

import (
	"oncoqa/internal/registry"
)

// SanityReport describes whether the local runtime can serve a model.
type SanityReport struct {
	LlamaBuilt   bool   `json:"llama_built"`
	CacheDir     string `json:"cache_dir,omitempty"`
	CachedModels int    `json:"cached_models"`
	ModelCached  bool   `json:"model_cached"`
	ModelPath    string `json:"model_path,omitempty"`
	Error        string `json:"error,omitempty"`
}

// SanityCheck inspects cacheDir for modelID without loading anything.
// It does not mutate state and is safe to call at any time.
func SanityCheck(cacheDir, modelID string, quantized bool) SanityReport {
	r := SanityReport{LlamaBuilt: llamaBuilt, CacheDir: cacheDir}
	if cacheDir == "" {
		r.Error = "model cache directory not configured"
		return r
	}
	models, err := registry.LoadDir(cacheDir)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.CachedModels = len(models)
	if mdl, ok := registry.Resolve(models, modelID, quantized); ok {
		r.ModelCached = true
		r.ModelPath = mdl.Path
	} else {
		r.Error = ErrModelNotFound(modelID).Error()
	}
	return r
}
