package loom

import (
	"context"

	"github.com/maxmcd/shaderloom/internal/assert"
	"github.com/maxmcd/shaderloom/internal/errs"
	"go.starlark.net/starlark"
)

// RunTests runs the test() function of the named module. Every failed
// assertion is collected and reported in the returned error.
func (l *Loom) RunTests(ctx context.Context, module string) error {
	ctx, span := tracer.Start(ctx, "loom.RunTests "+module)
	defer span.End()

	collector := &assert.Collector{}
	thread := l.newThread(ctx, "test")
	assert.SetReporter(thread, collector)
	if _, err := l.callFacade(thread, "test", starlark.String(module)); err != nil {
		return errs.Op("test", err)
	}
	return errs.Op("test", collector.Err())
}
