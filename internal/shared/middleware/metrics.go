package middleware

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// UnmatchedRoute labels requests that no registered pattern serves.
const UnmatchedRoute = "unmatched"

// RouteMetrics records request count and duration labelled by the route
// pattern that serves the request, never by the raw path, and names the
// server span opened by Telemetry after that pattern. routeOf returns the
// pattern, for example "DELETE /transactions/{id}".
func RouteMetrics(routeOf func(*http.Request) string) func(http.Handler) http.Handler {
	meter := otel.Meter("moneymind/http")
	duration, _ := meter.Float64Histogram("http.server.route.duration",
		metric.WithDescription("HTTP request duration in seconds by route"),
		metric.WithUnit("s"),
	)
	total, _ := meter.Int64Counter("http.server.route.total",
		metric.WithDescription("Total HTTP requests by route"),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeLabel(routeOf(r))

			span := trace.SpanFromContext(r.Context())
			span.SetName(r.Method + " " + route)
			span.SetAttributes(attribute.String("http.route", route))

			start := time.Now()
			wrapped := wrapResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			status := wrapped.status
			if status == 0 {
				status = http.StatusOK
			}
			if status >= 500 {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			attrs := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.status_code", status),
			)
			duration.Record(r.Context(), time.Since(start).Seconds(), attrs)
			total.Add(r.Context(), 1, attrs)
		})
	}
}

// routeLabel strips the method from a mux pattern.
func routeLabel(pattern string) string {
	if pattern == "" {
		return UnmatchedRoute
	}
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}
