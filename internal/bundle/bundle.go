// Package bundle packs a tree of script sources into the single artifact
// that is embedded in the binary.
package bundle

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/maxmcd/shaderloom/internal/errs"
	"github.com/maxmcd/shaderloom/internal/logger"
	"github.com/maxmcd/shaderloom/internal/registry"
	"github.com/pkg/errors"
)

// SourceUnit is one script file. LogicalPath is relative to its bundling
// root, uses forward slashes, and is unique within a bundle.
type SourceUnit struct {
	LogicalPath string
	Content     string
	// Origin is the file the unit was read from, for error messages.
	Origin string
}

// Collect walks each root for script files and returns them sorted by
// logical path. Two files with the same logical path are an error.
func Collect(roots ...string) ([]SourceUnit, error) {
	seen := map[string]string{}
	var units []SourceUnit
	for _, root := range roots {
		fi, err := os.Stat(root)
		if err != nil {
			return nil, errors.Wrap(err, "bundling root")
		}
		if !fi.IsDir() {
			return nil, errors.Errorf("bundling root %s is not a directory", root)
		}
		fsys := os.DirFS(root)
		if err := doublestar.GlobWalk(fsys, "**/*"+registry.Extension, func(path string, d fs.DirEntry) error {
			if d.IsDir() {
				return nil
			}
			origin := filepath.Join(root, filepath.FromSlash(path))
			if prev, found := seen[path]; found {
				return errs.ErrPathCollision{LogicalPath: path, First: prev, Second: origin}
			}
			b, err := fs.ReadFile(fsys, path)
			if err != nil {
				return errors.Wrapf(err, "reading %s", origin)
			}
			if !utf8.Valid(b) {
				return errors.Errorf("%s is not valid UTF-8", origin)
			}
			seen[path] = origin
			units = append(units, SourceUnit{LogicalPath: path, Content: string(b), Origin: origin})
			return nil
		}); err != nil {
			return nil, err
		}
	}
	Sort(units)
	logger.Debugw("collected script sources", "roots", roots, "units", len(units))
	return units, nil
}

// Sort orders units by logical path.
func Sort(units []SourceUnit) {
	sort.Slice(units, func(i, j int) bool { return units[i].LogicalPath < units[j].LogicalPath })
}

// Bundle collects, checks and writes the artifact for roots to out,
// returning its digest. Nothing is written if any step fails.
func Bundle(out string, roots ...string) (digest string, err error) {
	units, err := Collect(roots...)
	if err != nil {
		return "", err
	}
	if err := Check(units); err != nil {
		return "", err
	}
	artifact := Render(units)
	if err := WriteFile(out, artifact); err != nil {
		return "", err
	}
	return Digest(artifact), nil
}
