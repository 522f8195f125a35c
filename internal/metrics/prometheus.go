// ABOUTME: Prometheus metrics for the player, fed from periodic stats snapshots
// ABOUTME: Serves /metrics on a configurable address
package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Sendspin/sendspin-player/pkg/sendspin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the player
type Metrics struct {
	registry *prometheus.Registry

	// Buffer metrics
	Queued  prometheus.Gauge
	AheadMs prometheus.Gauge

	// Playout counters
	LateDrops    prometheus.Counter
	CatchUpDrops prometheus.Counter
	Starvations  prometheus.Counter
	DecodeErrors prometheus.Counter
	Received     prometheus.Counter
	Played       prometheus.Counter

	// Clock sync metrics
	OffsetUs    prometheus.Gauge
	DriftPPM    prometheus.Gauge
	RTTUs       prometheus.Gauge
	SyncQuality *prometheus.GaugeVec

	PlayoutOffsetMs prometheus.Gauge

	mu   sync.Mutex
	last sendspin.PlayerStats
}

// NewMetrics creates all metrics on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Queued: f.NewGauge(prometheus.GaugeOpts{
			Name: "sendspin_buffer_queued_chunks",
			Help: "Chunks currently queued in the jitter buffer",
		}),
		AheadMs: f.NewGauge(prometheus.GaugeOpts{
			Name: "sendspin_buffer_ahead_ms",
			Help: "Milliseconds until the head chunk is due",
		}),

		LateDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "sendspin_late_drops_total",
			Help: "Chunks evicted by the buffer for being late",
		}),
		CatchUpDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "sendspin_catch_up_drops_total",
			Help: "Chunks skipped to catch up after falling behind",
		}),
		Starvations: f.NewCounter(prometheus.CounterOpts{
			Name: "sendspin_starvations_total",
			Help: "Buffer underruns",
		}),
		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "sendspin_decode_errors_total",
			Help: "Chunks dropped because they failed to decode",
		}),
		Received: f.NewCounter(prometheus.CounterOpts{
			Name: "sendspin_chunks_received_total",
			Help: "Audio chunks received from the server",
		}),
		Played: f.NewCounter(prometheus.CounterOpts{
			Name: "sendspin_chunks_played_total",
			Help: "Audio chunks written to the output",
		}),

		OffsetUs: f.NewGauge(prometheus.GaugeOpts{
			Name: "sendspin_clock_offset_us",
			Help: "Estimated server minus local clock offset in microseconds",
		}),
		DriftPPM: f.NewGauge(prometheus.GaugeOpts{
			Name: "sendspin_clock_drift_ppm",
			Help: "Estimated clock drift in parts per million",
		}),
		RTTUs: f.NewGauge(prometheus.GaugeOpts{
			Name: "sendspin_rtt_us",
			Help: "Last accepted round-trip time in microseconds",
		}),
		SyncQuality: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sendspin_sync_quality",
			Help: "1 for the current clock sync quality, 0 otherwise",
		}, []string{"quality"}),

		PlayoutOffsetMs: f.NewGauge(prometheus.GaugeOpts{
			Name: "sendspin_playout_offset_ms",
			Help: "User playout offset in milliseconds",
		}),
	}
}

// Update records a stats snapshot. Counters advance by the difference from the
// previous snapshot; a smaller value means the source restarted from zero.
func (m *Metrics) Update(s sendspin.PlayerStats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Queued.Set(float64(s.Queued))
	m.AheadMs.Set(float64(s.AheadMs))

	addDelta(m.LateDrops, m.last.LateDrops, s.LateDrops)
	addDelta(m.CatchUpDrops, m.last.CatchUpDrops, s.CatchUpDrops)
	addDelta(m.Starvations, m.last.Starvations, s.Starvations)
	addDelta(m.DecodeErrors, m.last.DecodeErrors, s.DecodeErrors)
	addDelta(m.Received, m.last.Received, s.Received)
	addDelta(m.Played, m.last.Played, s.Played)

	m.OffsetUs.Set(float64(s.OffsetUs))
	m.DriftPPM.Set(s.DriftPPM)
	m.RTTUs.Set(float64(s.RTTUs))
	for _, q := range []string{"good", "degraded", "lost"} {
		v := 0.0
		if q == s.SyncQuality.String() {
			v = 1
		}
		m.SyncQuality.WithLabelValues(q).Set(v)
	}

	m.PlayoutOffsetMs.Set(float64(s.PlayoutOffsetMs))
	m.last = s
}

func addDelta(c prometheus.Counter, prev, cur int64) {
	switch {
	case cur > prev:
		c.Add(float64(cur - prev))
	case cur < prev:
		c.Add(float64(cur))
	}
}

// Handler returns the HTTP handler for the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
