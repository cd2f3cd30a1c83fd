package textfsm

import (
	"bytes"
	"embed"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

//go:embed templates/*.textfsm
var builtinFS embed.FS

// Store loads and caches compiled templates by name. Templates ship embedded
// in the binary; a directory of override files takes precedence when set.
type Store struct {
	dir   string
	mu    sync.Mutex
	cache map[string]*Template
}

// NewStore creates a template store. dir may be empty to use only the
// embedded templates.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string]*Template),
	}
}

// Load returns the compiled template for a name like
// "cisco_ios_show_version". Compiled templates are cached.
func (s *Store) Load(name string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.cache[name]; ok {
		return t, nil
	}

	data, err := s.read(name)
	if err != nil {
		return nil, err
	}
	t, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "template %s", name)
	}
	s.cache[name] = t
	return t, nil
}

func (s *Store) read(name string) ([]byte, error) {
	filename := name + ".textfsm"
	if s.dir != "" {
		path := filepath.Join(s.dir, filename)
		if data, err := os.ReadFile(path); err == nil {
			return data, nil
		}
	}
	data, err := builtinFS.ReadFile("templates/" + filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown template %s", name)
	}
	return data, nil
}
