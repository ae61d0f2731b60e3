// Package registry holds the name to module table populated from the
// embedded bundle, and the resolver chain consulted on every module load.
package registry

import (
	"path"
	"sort"
	"strings"

	"github.com/maxmcd/shaderloom/internal/errs"
	"github.com/maxmcd/shaderloom/internal/logger"
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
)

const (
	// Extension is the file extension of script sources.
	Extension = ".star"
	// Bootstrap is the reserved name the bundle invokes last.
	Bootstrap = "_init"
	// BootstrapModule is the logical path of the bootstrap unit.
	BootstrapModule = Bootstrap + Extension
)

// ModulePath normalizes a module name to a logical path. "utils.common",
// "utils/common" and "utils/common.star" all become "utils/common.star".
func ModulePath(name string) string {
	if strings.HasSuffix(name, Extension) {
		return path.Clean(name)
	}
	if !strings.Contains(name, "/") {
		name = strings.ReplaceAll(name, ".", "/")
	}
	return path.Clean(name) + Extension
}

// Executor runs a module body and returns its globals. The thread is the one
// that requested the load.
type Executor func(thread *starlark.Thread, filename, source string) (starlark.StringDict, error)

// Resolver is one stage of a Chain.
type Resolver interface {
	Has(name string) bool
	Resolve(thread *starlark.Thread, name string) (starlark.StringDict, error)
}

type entry struct {
	globals starlark.StringDict
	err     error
}

// Registry maps logical paths to module sources. Each module executes at most
// once. Later lookups get the memoized globals or the memoized error.
type Registry struct {
	exec    Executor
	sources map[string]string
	cache   map[string]*entry
}

var _ Resolver = new(Registry)

func New(exec Executor) *Registry {
	return &Registry{
		exec:    exec,
		sources: map[string]string{},
		cache:   map[string]*entry{},
	}
}

// Register adds a module body under its logical path. Paths are write-once.
func (r *Registry) Register(logicalPath, source string) error {
	if _, found := r.sources[logicalPath]; found {
		return errors.Errorf("module %q is already registered", logicalPath)
	}
	r.sources[logicalPath] = source
	return nil
}

func (r *Registry) Has(name string) bool {
	_, found := r.sources[ModulePath(name)]
	return found
}

// Source returns the registered source for a module name or logical path.
func (r *Registry) Source(name string) (string, bool) {
	src, found := r.sources[ModulePath(name)]
	return src, found
}

// Names returns the registered logical paths in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Resolve(thread *starlark.Thread, name string) (starlark.StringDict, error) {
	logicalPath := ModulePath(name)
	src, found := r.sources[logicalPath]
	if !found {
		return nil, errs.ErrModuleNotFound{Module: name}
	}
	return memoize(r.cache, logicalPath, func() (starlark.StringDict, error) {
		logger.Debugw("executing embedded module", "module", logicalPath)
		return r.exec(thread, logicalPath, src)
	})
}

// memoize runs fn at most once per key. A nil entry marks a module that is
// still executing, so meeting one again means a cycle.
func memoize(cache map[string]*entry, key string, fn func() (starlark.StringDict, error)) (starlark.StringDict, error) {
	e, ok := cache[key]
	if e == nil {
		if ok {
			return nil, errors.Errorf("cycle in load graph at %q", key)
		}
		cache[key] = nil
		globals, err := fn()
		e = &entry{globals: globals, err: err}
		cache[key] = e
	}
	return e.globals, e.err
}

// Chain tries each resolver in order. The first one that has the name
// resolves it; a total miss is ErrModuleNotFound.
type Chain []Resolver

func (c Chain) Resolve(thread *starlark.Thread, name string) (starlark.StringDict, error) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if r.Has(name) {
			return r.Resolve(thread, name)
		}
	}
	return nil, errs.ErrModuleNotFound{Module: name}
}
