package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sparkify/internal/datasource"
)

// Tree is a local location: either one file, or a directory whose *.json
// files (at any depth) are the objects.
type Tree struct{ root string }

// NewTree returns a Tree rooted at root.
func NewTree(root string) *Tree { return &Tree{root: root} }

// List returns the objects under the root sorted by path. A root that is a
// regular file lists as itself regardless of extension.
func (t *Tree) List(ctx context.Context) ([]datasource.Object, error) {
	info, err := os.Stat(t.root)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.root, err)
	}
	if !info.IsDir() {
		return []datasource.Object{NewLocal(t.root)}, nil
	}

	var paths []string
	err = filepath.WalkDir(t.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(p), ".json") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.root, err)
	}
	sort.Strings(paths)

	out := make([]datasource.Object, len(paths))
	for i, p := range paths {
		out[i] = NewLocal(p)
	}
	return out, nil
}
