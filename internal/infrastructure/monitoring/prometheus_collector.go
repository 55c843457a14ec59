package monitoring

import (
	"time"

	"camcapture/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.CaptureMetrics.
type PrometheusCollector struct {
	// Counters
	acquisitionsTotal *prometheus.CounterVec
	fallbacksTotal    prometheus.Counter
	discardsTotal     prometheus.Counter
	discardedChunks   prometheus.Counter
	stillsTotal       prometheus.Counter
	transcodesTotal   *prometheus.CounterVec
	exportsTotal      *prometheus.CounterVec
	recordedBytes     prometheus.Counter
	previewFrames     prometheus.Counter

	// Gauges
	sessionState   *prometheus.GaugeVec
	previewClients prometheus.Gauge

	// Histograms
	recordingDuration prometheus.Histogram
	recordingSize     prometheus.Histogram
	httpDuration      *prometheus.HistogramVec
}

// NewPrometheusCollector registers the capture metrics with reg. Pass
// prometheus.DefaultRegisterer to expose them on /metrics.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		acquisitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camcapture_acquisitions_total",
			Help: "Stream requests by quality tier and outcome",
		}, []string{"tier", "outcome"}),

		fallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "camcapture_tier_fallbacks_total",
			Help: "Acquisitions that fell back from HIGH to STANDARD",
		}),

		discardsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "camcapture_recordings_discarded_total",
			Help: "Recordings abandoned by a tier change or teardown",
		}),

		discardedChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "camcapture_discarded_chunks_total",
			Help: "Buffered chunks dropped with abandoned recordings",
		}),

		stillsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "camcapture_stills_total",
			Help: "Still images captured",
		}),

		transcodesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camcapture_transcodes_total",
			Help: "MP4 conversions by outcome",
		}, []string{"outcome"}),

		exportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camcapture_exports_total",
			Help: "Artifacts handed to a download sink",
		}, []string{"kind", "sink", "outcome"}),

		recordedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "camcapture_recorded_bytes_total",
			Help: "Bytes of finished recordings",
		}),

		previewFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "camcapture_preview_frames_total",
			Help: "Preview frames broadcast to viewers",
		}),

		sessionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "camcapture_session_state",
			Help: "1 for the current session state, 0 otherwise",
		}, []string{"state"}),

		previewClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "camcapture_preview_clients",
			Help: "Connected preview viewers",
		}),

		recordingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "camcapture_recording_duration_seconds",
			Help:    "Length of finished recordings",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),

		recordingSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "camcapture_recording_size_bytes",
			Help:    "Size of finished recordings",
			Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
		}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "camcapture_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "route", "status"}),
	}
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (p *PrometheusCollector) RecordAcquisition(tier domain.QualityTier, ok bool) {
	p.acquisitionsTotal.WithLabelValues(string(tier), outcome(ok)).Inc()
}

func (p *PrometheusCollector) RecordFallback() {
	p.fallbacksTotal.Inc()
}

func (p *PrometheusCollector) RecordStateChange(state domain.SessionState) {
	for _, s := range []domain.SessionState{domain.StateIdle, domain.StateStreaming, domain.StateRecording} {
		v := 0.0
		if s == state {
			v = 1
		}
		p.sessionState.WithLabelValues(string(s)).Set(v)
	}
}

func (p *PrometheusCollector) RecordRecording(artifact *domain.Artifact, seconds float64) {
	p.recordingDuration.Observe(seconds)
	p.recordingSize.Observe(float64(artifact.Size))
	p.recordedBytes.Add(float64(artifact.Size))
}

func (p *PrometheusCollector) RecordDiscard(chunks int) {
	p.discardsTotal.Inc()
	p.discardedChunks.Add(float64(chunks))
}

func (p *PrometheusCollector) RecordStill(*domain.Artifact) {
	p.stillsTotal.Inc()
}

func (p *PrometheusCollector) RecordTranscode(result string) {
	p.transcodesTotal.WithLabelValues(result).Inc()
}

func (p *PrometheusCollector) RecordExport(kind domain.ArtifactKind, sink string, ok bool) {
	p.exportsTotal.WithLabelValues(string(kind), sink, outcome(ok)).Inc()
}

func (p *PrometheusCollector) RecordPreviewClients(n int) {
	p.previewClients.Set(float64(n))
}

func (p *PrometheusCollector) RecordPreviewFrame() {
	p.previewFrames.Inc()
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpDuration.WithLabelValues(method, route, statusClass(status)).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
