// Package metrics exports batch run counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	imagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panicle_images_total",
			Help: "Total number of processed images",
		},
		[]string{"command", "status"}, // status: success, error
	)

	imageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panicle_image_duration_seconds",
			Help:    "Per-image processing duration in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"command"},
	)

	junctionsPerImage = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "panicle_junctions_per_image",
			Help:    "Number of junctions boxed per image",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"source"},
	)

	matchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panicle_matches_total",
			Help: "Matched and unmatched boxes of evaluated images",
		},
		[]string{"kind"}, // kind: tp, fp, fn
	)

	f1Score = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "panicle_f1_score",
			Help:    "Per-image F1 score",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)
)

// ObserveImage records one processed image.
func ObserveImage(command string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	imagesTotal.WithLabelValues(command, status).Inc()
	imageDuration.WithLabelValues(command).Observe(d.Seconds())
}

// ObserveJunctions records the number of boxed junctions of one image.
func ObserveJunctions(source string, n int) {
	junctionsPerImage.WithLabelValues(source).Observe(float64(n))
}

// ObserveMatch records the outcome of one evaluated image. The F1 score is
// only recorded when it is defined.
func ObserveMatch(tp, fp, fn int, f1 float64, defined bool) {
	matchesTotal.WithLabelValues("tp").Add(float64(tp))
	matchesTotal.WithLabelValues("fp").Add(float64(fp))
	matchesTotal.WithLabelValues("fn").Add(float64(fn))
	if defined {
		f1Score.Observe(f1)
	}
}

// Server exposes /metrics until it is shut down.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start listens on addr and serves metrics in the background.
func Start(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		srv: &http.Server{Handler: Handler(), ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())
	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
