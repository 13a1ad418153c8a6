// Package extract provides extension-keyed document loaders that turn raw
// files into plain text for ingestion.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Loader extracts plain text from a file's content. path is provided for
// loaders that need to re-open the file through format-specific libraries.
type Loader func(path string, content []byte) (string, error)

// Registry maps file extensions (with leading dot, lowercase) to loaders.
// The mapping is configuration: callers may register additional loaders or
// replace defaults.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry returns a registry with the default loader mapping:
// .pdf, .docx, .odt, .rtf, .xlsx, .csv, .txt, .md.
func NewRegistry() *Registry {
	r := &Registry{loaders: make(map[string]Loader)}
	r.Register(".pdf", loadPDF)
	r.Register(".docx", loadDOCX)
	r.Register(".odt", loadWithCat)
	r.Register(".rtf", loadWithCat)
	r.Register(".xlsx", loadExcel)
	r.Register(".csv", loadCSV)
	r.Register(".txt", loadPlain)
	r.Register(".md", loadPlain)
	return r
}

// Register adds or replaces the loader for ext (leading dot, case-insensitive).
func (r *Registry) Register(ext string, loader Loader) {
	r.loaders[strings.ToLower(ext)] = loader
}

// Supported reports whether a loader is registered for the file's extension.
func (r *Registry) Supported(path string) bool {
	_, ok := r.loaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load reads the file at path and extracts its text using the loader for its
// extension. Unregistered extensions are an error; use Supported to skip
// them during directory walks.
func (r *Registry) Load(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := r.loaders[ext]
	if !ok {
		return "", fmt.Errorf("no loader registered for extension %q", ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return loader(path, content)
}
