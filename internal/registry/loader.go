package registry

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"oncoqa/internal/common/fsutil"
	"oncoqa/pkg/types"
)

// Scanner discovers cached model artifacts under a directory.
type Scanner interface {
	Scan(dir string) ([]types.Model, error)
}

// GGUFScanner walks a cache directory for *.gguf files.
//
// Files nested under directories get the slash-separated directory path as
// their ID ("Xenova/LaMini-Flan-T5-248M/model_quantized.gguf" has ID
// "Xenova/LaMini-Flan-T5-248M"). Files at the top level use the file name
// without extension.
type GGUFScanner struct{}

func NewGGUFScanner() *GGUFScanner { return &GGUFScanner{} }

func (GGUFScanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	var models []types.Model
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			return nil
		}
		rel, err := filepath.Rel(abs, filepath.Dir(p))
		if err != nil {
			return err
		}
		id := filepath.ToSlash(rel)
		if id == "." {
			id = strings.TrimSuffix(name, filepath.Ext(name))
		}
		models = append(models, types.Model{ID: id, Name: name, Path: p, Quant: parseQuant(name)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", abs, err)
	}
	return models, nil
}

// LoadDir scans dir with the default GGUF scanner.
func LoadDir(dir string) ([]types.Model, error) {
	return NewGGUFScanner().Scan(dir)
}

// Resolve picks the artifact for id, preferring the requested precision and
// falling back to any artifact with that id.
func Resolve(models []types.Model, id string, quantized bool) (types.Model, bool) {
	var fallback *types.Model
	for i := range models {
		if models[i].ID != id {
			continue
		}
		if models[i].Quantized() == quantized {
			return models[i], true
		}
		if fallback == nil {
			fallback = &models[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return types.Model{}, false
}

// parseQuant extracts a quantization tag such as Q4_K_M from a file name.
func parseQuant(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	lower := strings.ToLower(stem)
	if strings.HasSuffix(lower, "quantized") && !strings.HasSuffix(lower, "unquantized") {
		return "quantized"
	}
	for _, tok := range strings.FieldsFunc(stem, func(r rune) bool { return r == '-' || r == '.' }) {
		if len(tok) >= 2 && (tok[0] == 'q' || tok[0] == 'Q') && tok[1] >= '0' && tok[1] <= '9' {
			return strings.ToUpper(tok)
		}
	}
	return ""
}
