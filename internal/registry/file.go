package registry

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/maxmcd/shaderloom/internal/logger"
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
)

// FileResolver loads modules from disk below Root. It is the fallback stage
// of the chain, consulted only for names the embedded registry lacks.
type FileResolver struct {
	Root string
	// Confine rejects files outside Root.
	Confine bool

	exec  Executor
	cache map[string]*entry
}

var _ Resolver = new(FileResolver)

func NewFileResolver(root string, confine bool, exec Executor) *FileResolver {
	return &FileResolver{
		Root:    root,
		Confine: confine,
		exec:    exec,
		cache:   map[string]*entry{},
	}
}

// candidates lists the files a name could refer to, most literal first.
func (fr *FileResolver) candidates(name string) []string {
	raw := []string{name}
	if !strings.HasSuffix(name, Extension) {
		raw = append(raw, name+Extension)
	}
	raw = append(raw, filepath.FromSlash(ModulePath(name)))

	out := make([]string, 0, len(raw))
	for _, c := range raw {
		if !filepath.IsAbs(c) {
			c = filepath.Join(fr.Root, c)
		}
		out = append(out, filepath.Clean(c))
	}
	return out
}

func (fr *FileResolver) within(path string) bool {
	rel, err := filepath.Rel(fr.Root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (fr *FileResolver) find(name string) (string, bool) {
	for _, c := range fr.candidates(name) {
		if fr.Confine && !fr.within(c) {
			continue
		}
		if fi, err := os.Stat(c); err == nil && fi.Mode().IsRegular() {
			return c, true
		}
	}
	return "", false
}

func (fr *FileResolver) Has(name string) bool {
	_, found := fr.find(name)
	return found
}

func (fr *FileResolver) Resolve(thread *starlark.Thread, name string) (starlark.StringDict, error) {
	filename, found := fr.find(name)
	if !found {
		return nil, errors.Errorf("module %q not found under %s", name, fr.Root)
	}
	return memoize(fr.cache, filename, func() (starlark.StringDict, error) {
		b, err := os.ReadFile(filename)
		if err != nil {
			return nil, errors.Wrapf(err, "reading module %q", name)
		}
		logger.Debugw("executing module from disk", "module", filename)
		return fr.exec(thread, filename, string(b))
	})
}
