// Package metrics exposes engine activity as Prometheus collectors.
//
// Every Collector owns its own registry, so tests and CLI invocations never
// share global state. Latencies are measured in logical clock ticks, not
// seconds.
package metrics

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/roach88/multiview/internal/ir"
)

// Collector implements engine.Observer.
type Collector struct {
	registry *prometheus.Registry

	takes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	removals *prometheus.CounterVec
	stale    *prometheus.CounterVec
	live     prometheus.Gauge
}

// New creates a Collector with a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		takes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "multiview_takes_total",
			Help: "Records removed through take-next, by view",
		}, []string{"view"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "multiview_take_latency_ticks",
			Help:    "Logical clock ticks between add and take, by view",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}, []string{"view"}),
		removals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "multiview_removals_total",
			Help: "Records removed from the store, by cause",
		}, []string{"cause"}),
		stale: f.NewCounterVec(prometheus.CounterOpts{
			Name: "multiview_stale_skipped_total",
			Help: "Stale view entries discarded by takes and sweeps, by view",
		}, []string{"view"}),
		live: f.NewGauge(prometheus.GaugeOpts{
			Name: "multiview_live_records",
			Help: "Current number of live records",
		}),
	}
}

// Taken counts one take from view.
func (c *Collector) Taken(view string, latency int64) {
	c.takes.WithLabelValues(view).Inc()
	c.latency.WithLabelValues(view).Observe(float64(latency))
}

// Removed counts one removal.
func (c *Collector) Removed(cause ir.RemovalCause) {
	c.removals.WithLabelValues(string(cause)).Inc()
}

// StaleSkipped counts stale entries discarded from view.
func (c *Collector) StaleSkipped(view string, n int) {
	c.stale.WithLabelValues(view).Add(float64(n))
}

// LiveRecords sets the live record gauge.
func (c *Collector) LiveRecords(n int) {
	c.live.Set(float64(n))
}

// WriteText renders every counter and gauge sample as "name{labels} value",
// one per line, sorted. Histograms are rendered as _count and _sum.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		name := mf.GetName()
		for _, m := range mf.GetMetric() {
			labels := formatLabels(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				lines = append(lines, fmt.Sprintf("%s%s %g", name, labels, m.GetCounter().GetValue()))
			case dto.MetricType_GAUGE:
				lines = append(lines, fmt.Sprintf("%s%s %g", name, labels, m.GetGauge().GetValue()))
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				lines = append(lines,
					fmt.Sprintf("%s_count%s %d", name, labels, h.GetSampleCount()),
					fmt.Sprintf("%s_sum%s %g", name, labels, h.GetSampleSum()))
			}
		}
	}
	slices.Sort(lines)

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, len(pairs))
	for i, lp := range pairs {
		parts[i] = fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue())
	}
	return "{" + strings.Join(parts, ",") + "}"
}
