// Package prompt loads named prompt templates and fills in their
// placeholders. Placeholders are exact literal markers of the form <<NAME>>;
// substitution is plain text replacement with no escaping and no recursion.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed templates/*.prompt.txt
var builtinTemplates embed.FS

// ErrTemplateNotFound is returned when no template exists under the requested
// name.
var ErrTemplateNotFound = errors.New("prompt template not found")

// Store supplies raw template text by name.
type Store interface {
	Load(name string) (string, error)
}

// fsStore reads templates from a file system, one file per template named
// <name>.prompt.txt.
type fsStore struct {
	fsys fs.FS
	root string
}

func (s *fsStore) Load(name string) (string, error) {
	path := filepath.ToSlash(filepath.Join(s.root, name+".prompt.txt"))
	data, err := fs.ReadFile(s.fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return "", err
	}
	return string(data), nil
}

// NewEmbeddedStore serves the templates compiled into the binary.
func NewEmbeddedStore() Store {
	return &fsStore{fsys: builtinTemplates, root: "templates"}
}

// NewDirStore serves templates from a directory on disk, for overriding
// prompts without a rebuild.
func NewDirStore(dir string) Store {
	return &fsStore{fsys: os.DirFS(dir), root: "."}
}

// Engine renders named templates against a variable map.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Render loads the named template and replaces every occurrence of each
// <<KEY>> marker with the supplied value. Markers with no supplied value pass
// through verbatim; supplying every placeholder a template expects is the
// caller's job.
func (e *Engine) Render(name string, vars map[string]string) (string, error) {
	text, err := e.store.Load(name)
	if err != nil {
		return "", err
	}
	for key, value := range vars {
		text = strings.ReplaceAll(text, "<<"+key+">>", value)
	}
	return text, nil
}
