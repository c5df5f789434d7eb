// Package telemetry wires up the ambient logging, metrics, and tracing stack
// shared across every component: a plain line logger per component, the
// Prometheus counters/histograms in metrics.go, and an optional OTel tracer.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// NewLogger returns a line logger prefixed with the component name, writing
// to w (typically the configured log file, or stderr before one is opened).
func NewLogger(component string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.New(w, "["+component+"] ", log.LstdFlags|log.Lmicroseconds)
}

// Setup initializes the global OpenTelemetry tracer provider with a stdout
// exporter when enabled. No code in this repository starts spans on it. A
// disabled setup returns a no-op shutdown func so callers never need to
// branch on whether tracing is on.
func Setup(ctx context.Context, serviceName, version string, enabled bool, writer io.Writer) (func(context.Context) error, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	if writer == nil {
		writer = io.Discard
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithWriter(writer),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// ServeMetrics binds addr and serves the process's Prometheus registry at
// /metrics in the background. An empty addr is a no-op, matching the
// default-off behavior of the --metrics-addr flag. The returned func shuts
// the listener down; callers should defer it the same way as Setup's.
func ServeMetrics(addr string, logger *log.Logger) func(context.Context) error {
	if addr == "" {
		return func(context.Context) error { return nil }
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if logger != nil {
				logger.Printf("telemetry: metrics server: %v", err)
			}
		}
	}()

	return srv.Shutdown
}
