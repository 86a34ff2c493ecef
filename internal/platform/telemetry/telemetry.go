// Package telemetry wires structured logging, Prometheus metrics and
// OpenTelemetry tracing for the API server.
//
// Spans are created through the global otel tracer provider. Without an SDK
// installed they are non-recording, but W3C trace context received from
// callers still propagates into log lines and downstream spans.
package telemetry

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/leap/qmapi"

// NewLogger builds the process logger: human-readable in development, JSON
// otherwise. Unknown levels fall back to info.
func NewLogger(env, level string) zerolog.Logger {
	return newLogger(os.Stdout, env, level)
}

func newLogger(out io.Writer, env, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "qm-server").Logger()
}

// LoggerFromContext returns the logger stored in ctx (falling back to base)
// enriched with the current trace and span ids.
func LoggerFromContext(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	logger := base
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		logger = *l
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		logger = logger.With().
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String()).
			Logger()
	}
	return logger
}

// Tracer returns the application tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// InitPropagation installs the W3C trace context propagator.
func InitPropagation() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Metrics holds the Prometheus collectors of the server. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	httpInFlight    prometheus.Gauge
	aggregations    *prometheus.CounterVec
	aggregationTime *prometheus.HistogramVec
	factRows        prometheus.Histogram
	logins          *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	cohortRows      prometheus.Histogram
}

// NewMetrics registers all collectors, plus the Go and process collectors, on
// a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
		aggregations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "measure_aggregations_total",
			Help: "Measure aggregation calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		aggregationTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "measure_aggregation_duration_seconds",
			Help:    "Time spent resolving filters, querying facts and reshaping them",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
		factRows: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "measure_fact_rows",
			Help:    "Fact rows returned by the fact store per aggregation",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by result",
		}, []string{"result"}),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "auth_sessions_active",
			Help: "Sessions held by the in-memory session store",
		}),
		cohortRows: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cohort_rows",
			Help:    "Rows returned by cohort drill-down queries",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// Middleware records request counts and latencies labelled by route pattern.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			req := c.Request()
			status := strconv.Itoa(c.Response().Status)
			m.httpRequests.WithLabelValues(req.Method, route, status).Inc()
			m.httpDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

func (m *Metrics) ObserveAggregation(operation, outcome string, d time.Duration, rows int) {
	if m == nil {
		return
	}
	m.aggregations.WithLabelValues(operation, outcome).Inc()
	m.aggregationTime.WithLabelValues(operation).Observe(d.Seconds())
	if rows >= 0 {
		m.factRows.Observe(float64(rows))
	}
}

func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) ObserveCohortRows(n int) {
	if m == nil {
		return
	}
	m.cohortRows.Observe(float64(n))
}

// TracingMiddleware starts a server span per request, continuing any trace
// context sent by the caller, and stores a trace-aware logger in the request
// context.
func TracingMiddleware(base zerolog.Logger) echo.MiddlewareFunc {
	tracer := Tracer()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))

			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			ctx, span := tracer.Start(ctx, "HTTP "+req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("http.route", route),
				),
			)
			defer span.End()

			logger := LoggerFromContext(ctx, base)
			ctx = logger.WithContext(ctx)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if status >= 500 {
				span.SetStatus(codes.Error, strconv.Itoa(status))
			}
			return nil
		}
	}
}

// StartSpan starts an internal span named name.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
