package engine

import (
	"fmt"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/oukeidos/posync/internal/logger"
)

// Extension is the file extension of persisted translation units.
const Extension = ".po"

// DiskStore is the default Store: one <key>.po file per unit under a
// directory named after the engine. Remote engines embed it.
type DiskStore struct {
	fs  billy.Filesystem
	dir string
}

// NewDiskStore returns a store writing below root/<lowercase name>.
func NewDiskStore(root billy.Filesystem, name string) DiskStore {
	return DiskStore{fs: root, dir: strings.ToLower(name)}
}

// Dir is the cache directory relative to the store root.
func (s DiskStore) Dir() string {
	return s.dir
}

// Store writes every unit, creating the directory when absent and
// overwriting existing files.
func (s DiskStore) Store(units map[string]string) error {
	if s.fs == nil {
		return fmt.Errorf("store %s: no filesystem configured", s.dir)
	}
	keys := SortedKeys(units)
	// all names are checked before anything is written
	for _, key := range keys {
		if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
			return fmt.Errorf("store: invalid unit name %q", key)
		}
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdirall %q: %w", s.dir, err)
	}
	for _, key := range keys {
		name := path.Join(s.dir, key+Extension)
		if err := util.WriteFile(s.fs, name, []byte(units[key]), 0o644); err != nil {
			return fmt.Errorf("store: write %q: %w", name, err)
		}
	}
	logger.Info("Stored translations", "dir", s.dir, "files", len(units))
	return nil
}
