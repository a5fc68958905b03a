package engine

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/oukeidos/posync/internal/logger"
)

// LocalName is the name of the local engine.
const LocalName = "local"

// Local reads translation units from a directory of .po files. It is a
// pass-through cache, so Upload and Store do nothing.
type Local struct {
	fs billy.Filesystem
}

// NewLocal returns a Local engine over fs, typically osfs.New(dir).
func NewLocal(fs billy.Filesystem) *Local {
	return &Local{fs: fs}
}

func (l *Local) Name() string { return LocalName }

// Download returns every *.po file in the directory root, sorted by name,
// keyed by file stem.
func (l *Local) Download(ctx context.Context) (map[string]string, error) {
	entries, err := l.fs.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("local: readdir %q: %w", l.fs.Root(), err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	units := make(map[string]string, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || path.Ext(entry.Name()) != Extension {
			continue
		}
		data, err := util.ReadFile(l.fs, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("local: read %q: %w", entry.Name(), err)
		}
		units[strings.TrimSuffix(entry.Name(), Extension)] = string(data)
	}
	logger.Info("Read local translations", "dir", l.fs.Root(), "files", len(units))
	return units, nil
}

func (l *Local) Upload(_ context.Context, units map[string]string) error {
	logger.Debug("Local engine ignores uploads", "files", len(units))
	return nil
}

func (l *Local) Store(map[string]string) error { return nil }
