package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusConfig holds the scrape endpoint settings.
type PrometheusConfig struct {
	Endpoint string
	Port     string
	Enabled  bool
}

// NewPrometheusReader builds a metric reader that mirrors every recorded
// metric into the default Prometheus registry for scraping.
func NewPrometheusReader() (sdkmetric.Reader, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	return exporter, nil
}

// MetricsHandler returns the exposition handler over the default registry,
// for mounting on an existing mux alongside the dedicated scrape server.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// ServeMetrics runs the dedicated scrape server in the background. The main
// server never blocks on the scrape port; a failed listener only surfaces
// on stdout.
func ServeMetrics(cfg PrometheusConfig) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Endpoint, promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	fmt.Printf("Prometheus metrics at http://localhost%s%s\n", srv.Addr, cfg.Endpoint)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("Prometheus scrape server: %v\n", err)
		}
	}()
}
