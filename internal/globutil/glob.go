// Package globutil expands glob patterns against the filesystem.
package globutil

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Item is one glob match. AbsPath and FileName are empty when they could not
// be determined.
type Item struct {
	Path     string
	AbsPath  string
	IsFile   bool
	IsDir    bool
	FileName string
}

// Glob returns the filesystem entries matching pattern in lexical order.
// "**" matches any number of directories. No matches is an empty result, a
// malformed pattern is an error.
func Glob(pattern string) ([]Item, error) {
	if !doublestar.ValidatePathPattern(pattern) {
		return nil, errors.Wrapf(doublestar.ErrBadPattern, "glob %q", pattern)
	}
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "glob %q", pattern)
	}
	sort.Strings(matches)
	items := make([]Item, 0, len(matches))
	for _, m := range matches {
		items = append(items, newItem(m))
	}
	return items, nil
}

func newItem(path string) Item {
	item := Item{Path: path}
	if abs, err := filepath.Abs(path); err == nil {
		item.AbsPath = abs
	}
	if fi, err := os.Stat(path); err == nil {
		item.IsFile = fi.Mode().IsRegular()
		item.IsDir = fi.IsDir()
	}
	if base := filepath.Base(path); base != "." && base != string(filepath.Separator) && base != ".." {
		item.FileName = base
	}
	return item
}

// Read returns the contents of a matched file.
func (i Item) Read() (string, error) {
	if !i.IsFile {
		return "", errors.Errorf("%s is not a regular file", i.Path)
	}
	b, err := os.ReadFile(i.Path)
	return string(b), err
}
