package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the viewer's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	sessionsOpened *prometheus.CounterVec
	reports        *prometheus.CounterVec
	exportSeconds  *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec
	archiveErrors  prometheus.Counter
	lastAHI        prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sleepsense_sessions_opened_total",
			Help: "Sessions opened, by whether they fell back to synthetic data.",
		}, []string{"synthetic"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sleepsense_reports_total",
			Help: "Report exports by format and outcome.",
		}, []string{"format", "outcome"}),
		exportSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sleepsense_report_export_seconds",
			Help:    "Time to summarize and write a report.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"format"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sleepsense_summary_cache_lookups_total",
			Help: "Summary cache lookups by result.",
		}, []string{"result"}),
		archiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sleepsense_archive_upload_errors_total",
			Help: "Report uploads to archive storage that failed.",
		}),
		lastAHI: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sleepsense_last_report_ahi",
			Help: "AHI of the most recently exported report.",
		}),
	}

	reg.MustRegister(m.sessionsOpened, m.reports, m.exportSeconds, m.cacheLookups, m.archiveErrors, m.lastAHI)
	return m
}

func (m *Metrics) SessionOpened(synthetic bool) {
	if m == nil {
		return
	}
	m.sessionsOpened.WithLabelValues(strconv.FormatBool(synthetic)).Inc()
}

// ReportExported records one export attempt
func (m *Metrics) ReportExported(format string, seconds float64, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.reports.WithLabelValues(format, outcome).Inc()
	m.exportSeconds.WithLabelValues(format).Observe(seconds)
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ArchiveFailed() {
	if m == nil {
		return
	}
	m.archiveErrors.Inc()
}

func (m *Metrics) ObserveAHI(ahi float64) {
	if m == nil {
		return
	}
	m.lastAHI.Set(ahi)
}
