package manager

import (
	"fmt"
	"path/filepath"
	"sync"

	"oncoqa/internal/common/fsutil"
	"oncoqa/internal/registry"
	"oncoqa/pkg/types"
)

// modelCache resolves model ids against the local artifact cache directory.
// With RuntimeEnv.UseCache the directory is scanned once; otherwise it is
// rescanned on every resolve.
type modelCache struct {
	dir     string
	scanner registry.Scanner

	mu      sync.Mutex
	models  []types.Model
	scanned bool
}

func newModelCache(dir string) *modelCache {
	return &modelCache{dir: dir, scanner: registry.NewGGUFScanner()}
}

func (c *modelCache) resolve(id string, quantized bool, env RuntimeEnv) (types.Model, error) {
	if id == "" {
		return types.Model{}, ErrModelNotFound("(unspecified)")
	}
	if fsutil.LooksLikeLocalPath(id) {
		if !env.AllowLocalModels {
			return types.Model{}, fmt.Errorf("local model paths are disabled: %s", id)
		}
		p, err := fsutil.ExpandHome(id)
		if err != nil {
			return types.Model{}, err
		}
		if !fsutil.PathExists(p) {
			return types.Model{}, ErrModelNotFound(id)
		}
		return types.Model{ID: id, Name: filepath.Base(p), Path: p}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.scanned || !env.UseCache {
		if c.dir == "" {
			return types.Model{}, ErrDependencyUnavailable("model cache directory not configured")
		}
		models, err := c.scanner.Scan(c.dir)
		if err != nil {
			return types.Model{}, fmt.Errorf("scan model cache: %w", err)
		}
		c.models = models
		c.scanned = true
	}
	mdl, ok := registry.Resolve(c.models, id, quantized)
	if !ok {
		return types.Model{}, ErrModelNotFound(id)
	}
	return mdl, nil
}

// reportProgress calls opts.Progress when set.
func reportProgress(opts LoadOptions, frac float64, file string) {
	if opts.Progress != nil {
		opts.Progress(LoadProgress{Progress: frac, File: file})
	}
}
