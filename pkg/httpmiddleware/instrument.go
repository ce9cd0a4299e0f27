package httpmiddleware

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides the otel providers used by Instrument.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Instrument traces every request with otelhttp and records a per-route
// request duration histogram.
func Instrument(service string, t Telemetry) (Middleware, error) {
	meter := t.MeterProvider().Meter("github.com/IT-Gio/ShopElec/pkg/httpmiddleware")
	duration, err := meter.Float64Histogram("http.server.route.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of HTTP requests by matched route."),
	)
	if err != nil {
		return nil, err
	}

	return func(next http.Handler) http.Handler {
		measured := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			duration.Record(r.Context(), time.Since(start).Seconds(), metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", routePattern(r)),
				attribute.Int("http.response.status_code", rec.code()),
			))
		})
		return otelhttp.NewHandler(measured, service,
			otelhttp.WithTracerProvider(t.TracerProvider()),
			otelhttp.WithMeterProvider(t.MeterProvider()),
		)
	}, nil
}
