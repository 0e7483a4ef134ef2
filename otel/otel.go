// Package otel sets up request tracing.
package otel

import (
	"context"
	"fmt"

	texporter "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/attocash/wallet-core/configs"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const ServiceName = "atto-wallet"

// InitTracer installs a global tracer provider exporting to Google Cloud
// Trace. It returns nil when tracing is not configured.
func InitTracer(cfg *configs.Config) (*sdktrace.TracerProvider, error) {
	if cfg.TracingProjectID == "" {
		return nil, nil
	}

	if cfg.TracingSampleRatio < 0 || cfg.TracingSampleRatio > 1 {
		return nil, fmt.Errorf("tracing sample ratio must be within [0, 1], got %v", cfg.TracingSampleRatio)
	}

	exporter, err := texporter.New(texporter.WithProjectID(cfg.TracingProjectID))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.TracingSampleRatio))),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	log.
		WithFields(log.Fields{"projectID": cfg.TracingProjectID, "sampleRatio": cfg.TracingSampleRatio}).
		Info("Tracing enabled")

	return tp, nil
}

// Shutdown flushes pending spans.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) {
	if tp == nil {
		return
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.WithFields(log.Fields{"error": err}).Warn("Error while shutting down tracer")
	}
}

// Middleware starts a span per routed request. Without a configured
// provider the global no-op tracer is used.
func Middleware() mux.MiddlewareFunc {
	return otelmux.Middleware(ServiceName)
}
