// Package loom runs the embedded script runtime: it loads the bundled
// scripts, exposes host capabilities to them and drives builds.
//
// A *Loom is single-owner. It must not be used from more than one goroutine;
// build concurrently with one *Loom per goroutine.
package loom

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/maxmcd/shaderloom/internal/assert"
	"github.com/maxmcd/shaderloom/internal/bridge"
	"github.com/maxmcd/shaderloom/internal/bundle"
	"github.com/maxmcd/shaderloom/internal/embedded"
	"github.com/maxmcd/shaderloom/internal/registry"
	"github.com/maxmcd/shaderloom/internal/starutil"
	"github.com/maxmcd/shaderloom/internal/tracing"
	"github.com/pkg/errors"
	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkjson"
	"go.starlark.net/starlarkstruct"
)

const (
	// Version is checked against min_version in loom.toml.
	Version = "0.1.0"
	// BuildModule is the reserved module Build invokes.
	BuildModule = "loom.build"
)

var tracer = tracing.Tracer("loom")

func init() {
	resolve.AllowSet = true
	resolve.AllowRecursion = true
	resolve.AllowGlobalReassign = true
}

type Option func(*Loom)

// WithArtifact replaces the embedded bundle.
func WithArtifact(artifact string) Option {
	return func(l *Loom) { l.artifact = artifact }
}

// WithCapabilities replaces the host capabilities scripts can call.
func WithCapabilities(caps bridge.Capabilities) Option {
	return func(l *Loom) { l.caps = &caps }
}

// WithLogOutput sets where native.log and print write. Defaults to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(l *Loom) { l.logw = w }
}

// WithDefines adds build defines, overriding any from loom.toml.
func WithDefines(defines map[string]string) Option {
	return func(l *Loom) { l.defines = defines }
}

// WithSandbox confines on-disk module loading to the pipeline directory.
func WithSandbox() Option {
	return func(l *Loom) { l.sandbox = true }
}

// WithoutFallback disables on-disk module loading. A build still runs its
// pipeline, but the pipeline can only load embedded modules.
func WithoutFallback() Option {
	return func(l *Loom) { l.noFallback = true }
}

type Loom struct {
	artifact   string
	caps       *bridge.Capabilities
	logw       io.Writer
	defines    map[string]string
	sandbox    bool
	noFallback bool

	registry *registry.Registry
	pipeline *registry.SourceResolver
	fallback registry.Resolver
	config   starlark.Value

	predeclared starlark.StringDict
	facade      starlark.StringDict
}

// New loads the script bundle and runs its bootstrap. A bundle that fails to
// load is a broken build, so New panics rather than returning an error.
func New(opts ...Option) *Loom {
	l := &Loom{
		artifact: embedded.Bundle,
		logw:     os.Stderr,
		config:   starlark.None,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.caps == nil {
		caps := bridge.Default(l.logw)
		l.caps = &caps
	}
	l.registry = registry.New(l.execModule)

	assertModule, err := assert.Module()
	if err != nil {
		panic(err)
	}
	l.predeclared = starlark.StringDict{
		bridge.Namespace: l.caps.Module(),
		"require":        starlark.NewBuiltin("require", l.requireBuiltin),
		"config":         starlark.NewBuiltin("config", l.configBuiltin),
		"struct":         starlark.NewBuiltin("struct", starlarkstruct.Make),
		"json":           starlarkjson.Module,
		"assert":         assertModule,
	}
	if err := l.load(context.Background()); err != nil {
		panic(errors.Wrap(err, "script bundle failed to load\n"+starutil.AnnotateError(err, l.Source)))
	}
	return l
}

func (l *Loom) newThread(ctx context.Context, name string) *starlark.Thread {
	thread := &starlark.Thread{
		Name: name,
		Load: l.loadModule,
		Print: func(_ *starlark.Thread, msg string) {
			l.log(msg)
		},
	}
	thread.SetLocal("ctx", ctx)
	return thread
}

func threadContext(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local("ctx").(context.Context); ok {
		return ctx
	}
	return context.Background()
}

func (l *Loom) log(msg string) {
	if l.caps.Log != nil {
		l.caps.Log(msg)
		return
	}
	fmt.Fprintln(l.logw, msg)
}

// resolvers is the lookup order for every module load.
func (l *Loom) resolvers() registry.Chain {
	chain := registry.Chain{l.registry}
	if l.pipeline != nil {
		chain = append(chain, l.pipeline)
	}
	return append(chain, l.fallback)
}

func (l *Loom) loadModule(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	return l.resolvers().Resolve(thread, module)
}

// execModule runs one module body on a fresh thread. It is the executor for
// both the embedded registry and the on-disk fallback.
func (l *Loom) execModule(parent *starlark.Thread, filename, source string) (globals starlark.StringDict, err error) {
	ctx, span := tracer.Start(threadContext(parent), "loom.execModule "+filename)
	defer span.End()

	thread := l.newThread(ctx, "module "+filename)
	if r := assert.GetReporter(parent); r != nil {
		assert.SetReporter(thread, r)
	}
	_, prog, err := starlark.SourceProgram(filename, source, l.predeclared.Has)
	if err != nil {
		return nil, err
	}
	g, err := prog.Init(thread, l.predeclared)
	for name := range g {
		// underscored names are private to their module
		if strings.HasPrefix(name, "_") {
			delete(g, name)
		}
	}
	g.Freeze()
	return g, err
}

// require(name) loads a module through the resolver chain and returns its
// exported globals as a struct.
func (l *Loom) requireBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}
	globals, err := l.loadModule(thread, name)
	if err != nil {
		return nil, err
	}
	return starlarkstruct.FromStringDict(starlark.String(name), globals), nil
}

// config() returns the most recently delivered invocation config, or None.
func (l *Loom) configBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	return l.config, nil
}

// Modules lists the embedded module paths.
func (l *Loom) Modules() []string {
	return l.registry.Names()
}

// Digest identifies the loaded bundle.
func (l *Loom) Digest() string {
	return bundle.Digest(l.artifact)
}

// Source returns the source of an embedded module or of the bundle itself,
// for error annotation.
func (l *Loom) Source(filename string) (string, bool) {
	if filename == artifactFilename {
		return l.artifact, true
	}
	if l.pipeline != nil {
		if src, ok := l.pipeline.Source(filename); ok {
			return src, true
		}
	}
	if l.registry == nil {
		return "", false
	}
	return l.registry.Source(filename)
}
