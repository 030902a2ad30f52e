package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pipewright/pipewright/internal/template"
	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

// DirTemplateRepository serves templates from a directory of YAML files.
// Files are parsed and validated lazily on first lookup and cached; the
// workspace argument is ignored because a directory holds one workspace.
type DirTemplateRepository struct {
	dir string

	mu    sync.Mutex
	cache map[string]*template.Template
}

// NewDirTemplateRepository creates a repository over dir.
func NewDirTemplateRepository(dir string) *DirTemplateRepository {
	return &DirTemplateRepository{dir: dir, cache: make(map[string]*template.Template)}
}

// GetByID implements TemplateRepository. The template id is matched against
// the id declared inside each YAML document, not the file name.
func (r *DirTemplateRepository) GetByID(_ context.Context, id, workspace string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tmpl, ok := r.cache[id]; ok {
		return tmpl, nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, pwerrors.NewNotFoundError("template", id, workspace)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		tmpl, err := template.Load(filepath.Join(r.dir, entry.Name()))
		if err != nil {
			// A broken sibling file must not mask the lookup.
			continue
		}
		r.cache[tmpl.ID] = tmpl
		if tmpl.ID == id {
			return tmpl, nil
		}
	}

	return nil, pwerrors.NewNotFoundError("template", id, workspace)
}

func isYAMLFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}
