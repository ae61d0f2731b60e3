package tracing

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/maxmcd/shaderloom/internal/logger"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// Env holds the jaeger agent "host:port". Tracing is off when it is unset.
const Env = "LOOM_JAEGER_TRACE"

const service = "loom"

func tracerProvider(hostAndPort string) (*tracesdk.TracerProvider, error) {
	host, port, err := net.SplitHostPort(hostAndPort)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", Env)
	}
	exporter, err := jaeger.New(jaeger.WithAgentEndpoint(
		jaeger.WithAgentHost(host),
		jaeger.WithAgentPort(port),
	))
	if err != nil {
		return nil, err
	}
	return tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(service),
			attribute.Int("pid", os.Getpid()),
		)),
	), nil
}

var tp *tracesdk.TracerProvider

func init() {
	never := func() *tracesdk.TracerProvider {
		return tracesdk.NewTracerProvider(tracesdk.WithSampler(tracesdk.NeverSample()))
	}
	hostAndPort, found := os.LookupEnv(Env)
	if !found {
		tp = never()
		return
	}
	var err error
	if tp, err = tracerProvider(hostAndPort); err != nil {
		logger.Warn("tracing disabled: ", err)
		tp = never()
		return
	}
	otel.SetTracerProvider(tp)
}

func Tracer(name string) trace.Tracer {
	return tp.Tracer(name)
}

// Stop flushes any buffered spans.
func Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tp.Shutdown(ctx); err != nil {
		logger.Debugw("tracing shutdown", "err", err)
	}
}
