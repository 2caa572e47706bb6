package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/Krajiyah/beetle-relay/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "beetle_relay"

// Metrics is a models.RelayListener that exports link events to Prometheus
type Metrics struct {
	forwarded *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	errs      *prometheus.CounterVec
	state     *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "forwarded_total",
			Help:      "Frames handed upstream.",
		}, []string{"peripheral"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "dropped_total",
			Help:      "Notifications dropped, by reason.",
		}, []string{"peripheral", "reason"}),
		errs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "errors_total",
			Help:      "Internal link errors such as failed reconnect rounds.",
		}, []string{"peripheral"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "state",
			Help:      "Connection state: 0 disconnected, 1 connecting, 2 connected, 3 handshaked.",
		}, []string{"peripheral"}),
	}
	reg.MustRegister(m.forwarded, m.dropped, m.errs, m.state)
	return m
}

func (m *Metrics) OnStateChanged(p models.Peripheral, s models.ConnectionState) {
	m.state.WithLabelValues(p.Name).Set(float64(s))
}

func (m *Metrics) OnFrameForwarded(p models.Peripheral, _ []byte) {
	m.forwarded.WithLabelValues(p.Name).Inc()
}

func (m *Metrics) OnFrameDropped(p models.Peripheral, reason string) {
	m.dropped.WithLabelValues(p.Name, reason).Inc()
}

func (m *Metrics) OnInternalError(p models.Peripheral, _ error) {
	m.errs.WithLabelValues(p.Name).Inc()
}

// Snapshotter reports per-link status, as the fleet coordinator does
type Snapshotter interface {
	Snapshot() []models.LinkStatus
}

// LinkCollector exposes the session counters of every link at scrape time
type LinkCollector struct {
	source Snapshotter
	descs  map[string]*prometheus.Desc
}

func NewLinkCollector(source Snapshotter) *LinkCollector {
	c := &LinkCollector{source: source, descs: map[string]*prometheus.Desc{}}
	for _, name := range []string{"accepted", "duplicates", "corrupt", "overflow", "fragments", "noise", "acks", "reconnects"} {
		c.descs[name] = prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "session", name+"_total"),
			"Session "+name+" count.",
			[]string{"peripheral", "role"}, nil,
		)
	}
	return c
}

func (c *LinkCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *LinkCollector) Collect(ch chan<- prometheus.Metric) {
	for _, status := range c.source.Snapshot() {
		s := status.Stats
		values := map[string]uint64{
			"accepted":   s.Accepted,
			"duplicates": s.Duplicates,
			"corrupt":    s.Corrupt,
			"overflow":   s.Overflow,
			"fragments":  s.Fragments,
			"noise":      s.Noise,
			"acks":       s.Acks,
			"reconnects": s.Reconnects,
		}
		for name, v := range values {
			ch <- prometheus.MustNewConstMetric(c.descs[name], prometheus.CounterValue, float64(v),
				status.Peripheral.Name, status.Peripheral.Role.String())
		}
	}
}

// Serve exposes gatherer on addr under /metrics until ctx is done
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
