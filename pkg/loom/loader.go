package loom

import (
	"context"

	"github.com/maxmcd/shaderloom/internal/bundle"
	"github.com/maxmcd/shaderloom/internal/logger"
	"github.com/maxmcd/shaderloom/internal/registry"
	"github.com/maxmcd/shaderloom/internal/starutil"
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
)

const artifactFilename = "bundle.star"

// load executes the artifact. Its table assignments register module bodies
// without running them, and its final bootstrap call runs _init.star, whose
// globals become the facade.
func (l *Loom) load(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "loom.load")
	defer span.End()

	booted := false
	bootstrap := func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		if booted {
			return nil, errors.New("bootstrap invoked more than once")
		}
		booted = true
		if !l.registry.Has(registry.BootstrapModule) {
			return nil, errors.Errorf("bundle does not contain %s", registry.BootstrapModule)
		}
		facade, err := l.registry.Resolve(thread, registry.BootstrapModule)
		if err != nil {
			return nil, err
		}
		l.facade = facade
		return starlark.None, nil
	}
	predeclared := starlark.StringDict{
		bundle.EmbedTable:  &embedTable{registry: l.registry},
		registry.Bootstrap: starlark.NewBuiltin(registry.Bootstrap, bootstrap),
	}
	if _, err := starlark.ExecFile(l.newThread(ctx, "bundle"), artifactFilename, l.artifact, predeclared); err != nil {
		return err
	}
	if !booted {
		return errors.Errorf("bundle never invoked %s()", registry.Bootstrap)
	}
	logger.Debugw("loaded script bundle", "modules", len(l.registry.Names()))
	return nil
}

// embedTable is the write-only table the artifact assigns into. Each
// assignment registers a module body.
type embedTable struct {
	registry *registry.Registry
}

var _ starlark.HasSetKey = new(embedTable)

func (t *embedTable) String() string        { return "<embedded modules>" }
func (t *embedTable) Type() string          { return "embed_table" }
func (t *embedTable) Freeze()               {}
func (t *embedTable) Truth() starlark.Bool  { return true }
func (t *embedTable) Hash() (uint32, error) { return 0, starutil.ErrUnhashable("embed_table") }

func (t *embedTable) Get(k starlark.Value) (v starlark.Value, found bool, err error) {
	name, ok := starlark.AsString(k)
	if !ok {
		return nil, false, errors.Errorf("module path must be a string, got %s", k.Type())
	}
	src, found := t.registry.Source(name)
	return starlark.String(src), found, nil
}

func (t *embedTable) SetKey(k, v starlark.Value) error {
	name, ok := starlark.AsString(k)
	if !ok {
		return errors.Errorf("module path must be a string, got %s", k.Type())
	}
	src, ok := starlark.AsString(v)
	if !ok {
		return errors.Errorf("source of %q must be a string, got %s", name, v.Type())
	}
	return t.registry.Register(name, src)
}
