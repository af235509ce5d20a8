package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SessionOpened(true)
	m.SessionOpened(true)
	m.SessionOpened(false)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsOpened.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsOpened.WithLabelValues("false")))

	m.ReportExported("pdf", 0.4, nil)
	m.ReportExported("pdf", 0.1, errors.New("disk full"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reports.WithLabelValues("pdf", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reports.WithLabelValues("pdf", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.exportSeconds))

	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))

	m.ArchiveFailed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.archiveErrors))

	m.ObserveAHI(17.5)
	assert.Equal(t, 17.5, testutil.ToFloat64(m.lastAHI))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SessionOpened(true)
		m.ReportExported("pdf", 1, nil)
		m.CacheLookup(true)
		m.ArchiveFailed()
		m.ObserveAHI(3)
	})
}
