package automation

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/siherrmann/homegraph/helper"
)

type parseFunc func(data []byte, source string, log *slog.Logger) ([]Definition, error)

// ConfigFiles maps the file names read from a configuration directory
// to their parsers, in load order.
var ConfigFiles = []struct {
	Name  string
	Parse parseFunc
}{
	{"automations.yaml", ParseAutomations},
	{"scripts.yaml", ParseScripts},
	{"scenes.yaml", ParseScenes},
	{"templates.yaml", ParseTemplates},
}

// FileStore serves definitions read from a configuration directory.
// Reloads swap the whole catalog so readers never see partial state.
type FileStore struct {
	dir     string
	catalog atomic.Pointer[Catalog]
	log     *slog.Logger
}

// NewFileStore creates a new FileStore and loads dir once.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, helper.NewError("stat configuration directory", err)
	}
	if !info.IsDir() {
		return nil, helper.NewError("stat configuration directory", errors.New(dir+" is not a directory"))
	}

	s := &FileStore{dir: dir, log: logger}
	s.catalog.Store(NewCatalog())

	err = s.Reload()
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Reload re-reads all configuration files. A file that fails to parse
// keeps the store on its previous catalog.
func (s *FileStore) Reload() error {
	var definitions []Definition
	for _, file := range ConfigFiles {
		path := filepath.Join(s.dir, file.Name)
		data, err := os.ReadFile(filepath.Clean(path))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return helper.NewError("read "+file.Name, err)
		}

		parsed, err := file.Parse(data, path, s.log)
		if err != nil {
			s.log.Warn("Keeping previous configuration", slog.String("file", path), slog.String("error", err.Error()))
			return helper.NewError("parse "+file.Name, err)
		}
		definitions = append(definitions, parsed...)
	}

	catalog := NewCatalog(definitions...)
	s.catalog.Store(catalog)
	s.log.Info("Loaded configuration", slog.String("dir", s.dir), slog.Any("definitions", catalog.Counts()))

	return nil
}

// Dir returns the watched configuration directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Catalog returns the current catalog.
func (s *FileStore) Catalog() *Catalog {
	return s.catalog.Load()
}

// Definition returns the definition of an entity.
func (s *FileStore) Definition(entityID string) (Definition, bool) {
	return s.catalog.Load().Definition(entityID)
}

// Definitions returns the definitions of the given domains.
func (s *FileStore) Definitions(domains ...string) []Definition {
	return s.catalog.Load().Definitions(domains...)
}
