package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the crawler exports. A nil *Metrics is a
// valid no-op so components can be built without instrumentation.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ItemsDiscovered     *prometheus.CounterVec
	CollectScrolls      prometheus.Histogram
	DetailsTotal        *prometheus.CounterVec
	DetailDuration      prometheus.Histogram
	ChallengesTotal     *prometheus.CounterVec
	SessionRestarts     prometheus.Counter
	PoolAcquireDuration prometheus.Histogram
	QuotesTotal         *prometheus.CounterVec
	DatesInQueue        prometheus.Gauge
}

// New registers the crawler metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		ItemsDiscovered: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_items_discovered_total",
				Help: "New items added to a ledger by the collector.",
			},
			[]string{"date"},
		),
		CollectScrolls: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_collect_scrolls",
				Help:    "Scrolls performed per collection run.",
				Buckets: []float64{10, 20, 30, 50, 100, 200, 300},
			},
		),
		DetailsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_details_total",
				Help: "Detail fetches by final status.",
			},
			[]string{"status"},
		),
		DetailDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_detail_duration_seconds",
				Help:    "Duration of detail fetches.",
				Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
			},
		),
		ChallengesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_challenges_total",
				Help: "Challenge resolutions by final state.",
			},
			[]string{"state"},
		),
		SessionRestarts: f.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_session_restarts_total",
				Help: "Browser session restarts.",
			},
		),
		PoolAcquireDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_pool_acquire_seconds",
				Help:    "Time spent waiting for a browser session.",
				Buckets: prometheus.DefBuckets,
			},
		),
		QuotesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_quotes_total",
				Help: "Parsed quotes by market.",
			},
			[]string{"market"},
		),
		DatesInQueue: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_dates_in_queue",
				Help: "Scrape dates waiting in the date queue.",
			},
		),
	}
}

func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

func (m *Metrics) ItemsAdded(date string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ItemsDiscovered.WithLabelValues(date).Add(float64(n))
}

func (m *Metrics) Scrolls(n int) {
	if m == nil {
		return
	}
	m.CollectScrolls.Observe(float64(n))
}

func (m *Metrics) Detail(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.DetailsTotal.WithLabelValues(status).Inc()
	m.DetailDuration.Observe(d.Seconds())
}

func (m *Metrics) Challenge(state string) {
	if m == nil {
		return
	}
	m.ChallengesTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) SessionRestarted() {
	if m == nil {
		return
	}
	m.SessionRestarts.Inc()
}

func (m *Metrics) PoolWait(d time.Duration) {
	if m == nil {
		return
	}
	m.PoolAcquireDuration.Observe(d.Seconds())
}

func (m *Metrics) Quotes(market string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.QuotesTotal.WithLabelValues(market).Add(float64(n))
}

func (m *Metrics) QueueSize(n int64) {
	if m == nil {
		return
	}
	m.DatesInQueue.Set(float64(n))
}
