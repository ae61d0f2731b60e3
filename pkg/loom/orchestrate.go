package loom

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maxmcd/shaderloom/internal/config"
	"github.com/maxmcd/shaderloom/internal/errs"
	"github.com/maxmcd/shaderloom/internal/logger"
	"github.com/maxmcd/shaderloom/internal/registry"
	"github.com/maxmcd/shaderloom/internal/starutil"
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// UpdateConfig replaces the config scripts see through config(). Nothing of
// the previous config survives.
func (l *Loom) UpdateConfig(inv config.Invocation) {
	fields := starlark.StringDict{
		"script_path": starlark.String(inv.ScriptPath),
		"defines":     starutil.GoStringMapToDict(inv.Defines),
	}
	for name, value := range map[string]string{
		"script_dir":      inv.ScriptDir,
		"abs_script_dir":  inv.AbsScriptDir,
		"abs_script_path": inv.AbsScriptPath,
	} {
		if value != "" {
			fields[name] = starlark.String(value)
		}
	}
	cfg := starlarkstruct.FromStringDict(starlark.String("config"), fields)
	cfg.Freeze()
	l.config = cfg
}

// Build runs the pipeline script at path. The pipeline and anything it loads
// from disk resolve relative to its directory. If its build() returns a dict
// of relative path to contents, those files are written next to it.
func (l *Loom) Build(ctx context.Context, path string) (err error) {
	ctx, span := tracer.Start(ctx, "loom.Build "+path)
	defer span.End()
	defer func() { err = errs.Op("build", err) }()

	inv := config.FromPath(path)
	dir := pipelineDir(inv)
	settings, location, err := config.FindSettings(dir)
	if err != nil {
		return err
	}
	if location != "" {
		logger.Debugw("using project settings", "location", location)
	}
	if err := settings.CheckVersion(Version); err != nil {
		return err
	}
	inv = inv.WithDefines(settings.Defines, l.defines)

	name := pipelinePath(inv)
	src, err := os.ReadFile(name)
	if err != nil {
		return errors.Wrap(err, "reading pipeline")
	}
	l.pipeline = registry.NewSourceResolver(name, string(src), l.execModule)
	defer func() { l.pipeline = nil }()
	if !l.noFallback {
		l.fallback = registry.NewFileResolver(dir, l.sandbox || settings.Loom.Sandbox, l.execModule)
		defer func() { l.fallback = nil }()
	}
	l.UpdateConfig(inv)

	out, err := l.callFacade(l.newThread(ctx, "build"), "run", starlark.String(BuildModule))
	if err != nil {
		return err
	}
	return writeOutputs(dir, out)
}

// pipelinePath is the module name loom/build.star requires the pipeline by.
func pipelinePath(inv config.Invocation) string {
	if inv.AbsScriptPath != "" {
		return inv.AbsScriptPath
	}
	return inv.ScriptPath
}

func pipelineDir(inv config.Invocation) string {
	switch {
	case inv.AbsScriptDir != "":
		return inv.AbsScriptDir
	case inv.ScriptDir != "":
		return inv.ScriptDir
	}
	return "."
}

// Run calls main() of the named module, with arg if one is given. No config
// is delivered and on-disk modules are not reachable.
func (l *Loom) Run(ctx context.Context, module string, arg ...string) (err error) {
	ctx, span := tracer.Start(ctx, "loom.Run "+module)
	defer span.End()
	defer func() { err = errs.Op("run", err) }()

	if len(arg) > 1 {
		return errors.Errorf("run takes at most one argument, got %d", len(arg))
	}
	args := []starlark.Value{starlark.String(module)}
	if len(arg) == 1 {
		args = append(args, starlark.String(arg[0]))
	}
	_, err = l.callFacade(l.newThread(ctx, "run"), "run", args...)
	return err
}

func (l *Loom) callFacade(thread *starlark.Thread, name string, args ...starlark.Value) (starlark.Value, error) {
	fn, ok := l.facade[name]
	if !ok {
		return nil, errors.Errorf("%s does not define %s()", registry.BootstrapModule, name)
	}
	return starlark.Call(thread, fn, starlark.Tuple(args), nil)
}

func writeOutputs(dir string, out starlark.Value) error {
	if out == nil || out == starlark.None {
		return nil
	}
	dict, ok := out.(*starlark.Dict)
	if !ok {
		return errors.Errorf("build returned %s, want a dict of path to contents", out.Type())
	}
	files, err := starutil.DictToGoStringMap(dict)
	if err != nil {
		return errors.Wrap(err, "build outputs")
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		target, err := outputPath(dir, name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(files[name]), 0644); err != nil {
			return errors.Wrapf(err, "writing output %q", name)
		}
		logger.Debugw("wrote build output", "path", target)
	}
	return nil
}

// outputPath places a build output under dir, refusing paths that leave it.
func outputPath(dir, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", errors.Errorf("build output %q must be a relative path", name)
	}
	target := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("build output %q is outside of %s", name, dir)
	}
	return target, nil
}
