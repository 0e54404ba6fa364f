// Package metrics defines the window manager's Prometheus collectors.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/1broseidon/awm/internal/logging"
)

const (
	awmNamespace = "awm"

	eventTypeLabelName = "event_type"
	dragKindLabelName  = "kind"
	strategyLabelName  = "strategy"
)

var (
	ManagedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: awmNamespace,
		Name:      "managed_clients",
		Help:      "number of framed client windows",
	})

	Monitors = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: awmNamespace,
		Name:      "monitors",
		Help:      "number of monitors found by the last discovery pass",
	}, []string{strategyLabelName})

	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: awmNamespace,
		Name:      "events_total",
		Help:      "protocol events dispatched, by type",
	}, []string{eventTypeLabelName})

	DragsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: awmNamespace,
		Name:      "drags_total",
		Help:      "pointer drags started, by kind",
	}, []string{dragKindLabelName})

	FrameFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: awmNamespace,
		Name:      "frame_failures_total",
		Help:      "map requests whose window could not be framed",
	})

	DiscoveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: awmNamespace,
		Name:      "discovery_duration_seconds",
		Help:      "time spent in one monitor discovery pass",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
)

// Register adds every collector to r.
func Register(r prometheus.Registerer) {
	r.MustRegister(ManagedClients)
	r.MustRegister(Monitors)
	r.MustRegister(EventsTotal)
	r.MustRegister(DragsTotal)
	r.MustRegister(FrameFailures)
	r.MustRegister(DiscoveryDuration)
}

// Serve exposes the collectors gathered by g on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.L().Info("serving metrics", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve metrics")
	}
	return nil
}
