package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/maxmcd/shaderloom/internal/bundle"
	"github.com/maxmcd/shaderloom/internal/logger"
	"github.com/maxmcd/shaderloom/pkg/loom"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type commands struct {
	stdout io.Writer
	stderr io.Writer

	lock sync.Mutex
	// looms created by this invocation, kept so errors can be annotated with
	// embedded sources
	looms []*loom.Loom
}

func newCommands(stdout, stderr io.Writer) *commands {
	return &commands{stdout: stdout, stderr: &syncWriter{w: stderr}}
}

type buildOptions struct {
	defines map[string]string
	sandbox bool
}

func (c *commands) newLoom(opts ...loom.Option) *loom.Loom {
	l := loom.New(append([]loom.Option{loom.WithLogOutput(c.stderr)}, opts...)...)
	c.lock.Lock()
	c.looms = append(c.looms, l)
	c.lock.Unlock()
	return l
}

// source looks filename up in every loom this invocation created.
func (c *commands) source(filename string) (string, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for _, l := range c.looms {
		if src, ok := l.Source(filename); ok {
			return src, true
		}
	}
	return "", false
}

func (c *commands) build(ctx context.Context, paths []string, opts buildOptions) error {
	loomOpts := []loom.Option{loom.WithDefines(opts.defines)}
	if opts.sandbox {
		loomOpts = append(loomOpts, loom.WithSandbox())
	}

	// Each pipeline gets its own runtime, config is per runtime
	looms := make([]*loom.Loom, len(paths))
	for i := range paths {
		looms[i] = c.newLoom(loomOpts...)
	}

	group, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		group.Go(func() error {
			logger.Debugw("building pipeline", "path", path)
			return looms[i].Build(ctx, path)
		})
	}
	return group.Wait()
}

func (c *commands) run(ctx context.Context, module string, args []string) error {
	if len(args) > 1 {
		return errors.Errorf("run takes at most one argument after the module name, got %d", len(args))
	}
	return c.newLoom().Run(ctx, module, args...)
}

func (c *commands) modules() error {
	l := c.newLoom()
	names := l.Modules()
	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(moduleStyle.Render(name))
		sb.WriteString("\n")
	}
	fmt.Fprint(c.stdout, sb.String())
	fmt.Fprintln(c.stdout, digestStyle.Render(fmt.Sprintf("%d modules, bundle %s", len(names), l.Digest())))
	return nil
}

func (c *commands) bundle(roots []string, output string, check bool) error {
	if check {
		if output == "" {
			return errors.New("--check requires --output")
		}
		return checkBundle(output, roots)
	}
	if output != "" {
		digest, err := bundle.Bundle(output, roots...)
		if err != nil {
			return err
		}
		logger.Debugw("wrote bundle", "output", output, "digest", digest)
		return nil
	}
	units, err := bundle.Collect(roots...)
	if err != nil {
		return err
	}
	if err := bundle.Check(units); err != nil {
		return err
	}
	_, err = io.WriteString(c.stdout, bundle.Render(units))
	return err
}

func checkBundle(output string, roots []string) error {
	units, err := bundle.Collect(roots...)
	if err != nil {
		return err
	}
	if err := bundle.Check(units); err != nil {
		return err
	}
	existing, err := os.ReadFile(output)
	if err != nil {
		return errors.Wrap(err, "reading bundle")
	}
	want := bundle.Digest(bundle.Render(units))
	if got := bundle.Digest(string(existing)); got != want {
		return errors.Errorf("%s is out of date (digest %s, sources give %s)", output, got, want)
	}
	return nil
}

// syncWriter serializes writes from pipelines built in parallel.
type syncWriter struct {
	lock sync.Mutex
	w    io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.w.Write(p)
}

func parseDefines(values []string) (map[string]string, error) {
	defines := map[string]string{}
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, errors.Errorf("define %q must be of the form key=value", v)
		}
		defines[key] = value
	}
	return defines, nil
}
