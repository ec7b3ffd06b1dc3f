package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics exposes counters/histograms for call ingestion, outbound
// placement and the external capabilities behind them.
type PipelineMetrics struct {
	webhooksTotal     *prometheus.CounterVec
	pipelineLatency   *prometheus.HistogramVec
	ticketsTotal      *prometheus.CounterVec
	placementsTotal   *prometheus.CounterVec
	capabilityLatency *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceagent",
			Subsystem: "pipeline",
			Name:      "webhooks_total",
			Help:      "Inbound call events by vendor and outcome",
		}, []string{"vendor", "outcome"}),
		pipelineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voiceagent",
			Subsystem: "pipeline",
			Name:      "run_seconds",
			Help:      "Latency of one inbound pipeline run",
			Buckets:   prometheus.DefBuckets,
		}, []string{"vendor", "result"}),
		ticketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceagent",
			Subsystem: "tickets",
			Name:      "reconciled_total",
			Help:      "Ticket reconciliations by kind (created, updated, handoff)",
		}, []string{"kind"}),
		placementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voiceagent",
			Subsystem: "outbound",
			Name:      "placement_attempts_total",
			Help:      "Outbound call placement attempts",
		}, []string{"provider", "result"}),
		capabilityLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voiceagent",
			Subsystem: "capability",
			Name:      "call_seconds",
			Help:      "Latency of speech-to-text and classification calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"capability", "provider", "result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.webhooksTotal, m.pipelineLatency, m.ticketsTotal, m.placementsTotal, m.capabilityLatency)
	return m
}

func (m *PipelineMetrics) ObserveWebhook(vendor, outcome string) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(vendor, outcome).Inc()
}

func (m *PipelineMetrics) ObservePipeline(vendor, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.pipelineLatency.WithLabelValues(vendor, result).Observe(d.Seconds())
}

func (m *PipelineMetrics) ObserveTicket(kind string) {
	if m == nil {
		return
	}
	m.ticketsTotal.WithLabelValues(kind).Inc()
}

func (m *PipelineMetrics) ObservePlacement(provider, result string) {
	if m == nil {
		return
	}
	m.placementsTotal.WithLabelValues(provider, result).Inc()
}

func (m *PipelineMetrics) ObserveCapability(capability, provider, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.capabilityLatency.WithLabelValues(capability, provider, result).Observe(d.Seconds())
}
