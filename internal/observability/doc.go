// Package observability holds the logger, the admin metrics registry and the
// tracer shared by every gateway component.
//
// Components take a Logger and log with field constructors. Request-scoped
// lines go through WithContext so they carry the request id and, when tracing
// is on, the trace and span ids:
//
//	logger.WithContext(r.Context()).Info("request received",
//	    observability.String("path", r.URL.Path),
//	)
//
// Metrics owns a private Prometheus registry. Packages register collectors
// on Registry() with their own NewMetrics(namespace, registerer), and the
// admin listener serves Handler().
//
// NewTracer installs the OpenTelemetry provider. Packages open spans with
// otel.Tracer directly, so a disabled tracer costs nothing.
package observability
