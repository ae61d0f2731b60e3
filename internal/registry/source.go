package registry

import (
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
)

// SourceResolver serves one module whose source the host has already read,
// such as the pipeline of a build. Only the exact Filename matches.
type SourceResolver struct {
	Filename string

	source string
	exec   Executor
	cache  map[string]*entry
}

var _ Resolver = new(SourceResolver)

func NewSourceResolver(filename, source string, exec Executor) *SourceResolver {
	return &SourceResolver{
		Filename: filename,
		source:   source,
		exec:     exec,
		cache:    map[string]*entry{},
	}
}

func (sr *SourceResolver) Has(name string) bool { return name == sr.Filename }

func (sr *SourceResolver) Resolve(thread *starlark.Thread, name string) (starlark.StringDict, error) {
	if !sr.Has(name) {
		return nil, errors.Errorf("module %q not found", name)
	}
	return memoize(sr.cache, sr.Filename, func() (starlark.StringDict, error) {
		return sr.exec(thread, sr.Filename, sr.source)
	})
}

// Source returns the module source if filename is the one served.
func (sr *SourceResolver) Source(filename string) (string, bool) {
	if !sr.Has(filename) {
		return "", false
	}
	return sr.source, true
}
