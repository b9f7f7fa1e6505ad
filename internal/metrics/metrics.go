// Package metrics collects and exposes Prometheus metrics for the bot.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flightbot/pkg/logx"
)

// Collector implements the flightwatch.Metrics hook on top of Prometheus.
type Collector struct {
	sent        *prometheus.CounterVec
	failed      prometheus.Counter
	deduped     prometheus.Counter
	providerErr *prometheus.CounterVec
	passSeconds prometheus.Histogram
	subscribers prometheus.Gauge
}

// NewCollector registers the bot's metrics on the given registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flightbot_notifications_sent_total",
			Help: "Notifications delivered, by tier.",
		}, []string{"tier"}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flightbot_notifications_failed_total",
			Help: "Notification sends that errored (still counted as delivered for dedup).",
		}),
		deduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flightbot_notifications_deduped_total",
			Help: "Sends suppressed by the dedup cache.",
		}),
		providerErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flightbot_provider_errors_total",
			Help: "Schedule provider failures, by event leg.",
		}, []string{"event"}),
		passSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flightbot_pass_duration_seconds",
			Help:    "Duration of a full reconciliation pass.",
			Buckets: prometheus.DefBuckets,
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flightbot_subscribers",
			Help: "Current number of subscribed chats.",
		}),
	}

	reg.MustRegister(c.sent, c.failed, c.deduped, c.providerErr, c.passSeconds, c.subscribers)
	return c
}

func (c *Collector) NotificationSent(tier string) { c.sent.WithLabelValues(tier).Inc() }
func (c *Collector) NotificationFailed()          { c.failed.Inc() }
func (c *Collector) NotificationDeduped()         { c.deduped.Inc() }
func (c *Collector) ProviderError(event string)   { c.providerErr.WithLabelValues(event).Inc() }
func (c *Collector) PassCompleted(d time.Duration) {
	c.passSeconds.Observe(d.Seconds())
}
func (c *Collector) SetSubscribers(n int) { c.subscribers.Set(float64(n)) }

// Server serves /metrics for Prometheus scrapes.
type Server struct {
	srv *http.Server
	log logx.Logger
}

func NewServer(addr string, gatherer prometheus.Gatherer, log logx.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Start runs the listener in the background. Listener errors are logged,
// never fatal: metrics are an auxiliary surface.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics listening", logx.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("metrics server stopped", logx.Err(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
