// Package engine defines the contract every translation backend implements
// and the filesystem-backed pieces shared between them.
package engine

import (
	"context"
	"sort"
)

// Engine is a translation endpoint that can produce and accept a full set of
// translation units keyed by name.
//
// Download must be called before Store or Upload in a pass, and Upload must
// only be given a mapping produced by some Download: the keys are the join
// key between backends.
type Engine interface {
	// Name identifies the backend; the default Store uses it (lowercased) as
	// the cache directory.
	Name() string
	// Download returns every unit visible to the engine, or an error. A
	// failed sub-fetch aborts the whole call.
	Download(ctx context.Context) (map[string]string, error)
	// Upload pushes every unit the backend recognizes. Unknown keys and
	// per-unit rejections are logged and skipped.
	Upload(ctx context.Context, units map[string]string) error
	// Store persists a downloaded mapping.
	Store(units map[string]string) error
}

// SortedKeys returns the keys of units in lexical order.
func SortedKeys(units map[string]string) []string {
	keys := make([]string, 0, len(units))
	for k := range units {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
