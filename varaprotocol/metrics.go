package varaprotocol

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for one client. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Traffic counters
	linesReceived *prometheus.CounterVec // By notification type
	commandsSent  *prometheus.CounterVec // By command
	dataBytes     *prometheus.CounterVec // By direction (rx/tx)

	// Outcome counters
	rejections *prometheus.CounterVec // By command
	failures   *prometheus.CounterVec // By command and reason (outcome/transport/closed/canceled)

	// Link gauges, fed from BUFFER, SN and BITRATE
	pendingOps prometheus.Gauge
	buffer     prometheus.Gauge
	sn         prometheus.Gauge
	bitrate    prometheus.Gauge
}

// NewMetrics creates the collectors. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		linesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vara",
			Subsystem: "client",
			Name:      "lines_received_total",
			Help:      "Command channel lines received, by notification type",
		}, []string{"type"}),

		commandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vara",
			Subsystem: "client",
			Name:      "commands_sent_total",
			Help:      "Command lines written to the modem",
		}, []string{"command"}),

		dataBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vara",
			Subsystem: "client",
			Name:      "data_bytes_total",
			Help:      "Payload bytes moved on the data channel",
		}, []string{"direction"}),

		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vara",
			Subsystem: "client",
			Name:      "rejections_total",
			Help:      "Commands answered with WRONG",
		}, []string{"command"}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vara",
			Subsystem: "client",
			Name:      "operation_failures_total",
			Help:      "Operations that ended in an error other than WRONG",
		}, []string{"command", "reason"}),

		pendingOps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vara",
			Subsystem: "client",
			Name:      "pending_operations",
			Help:      "Operations waiting for their terminal notification",
		}),

		buffer: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vara",
			Subsystem: "link",
			Name:      "buffer_bytes",
			Help:      "Bytes queued for transmission, from the last BUFFER line",
		}),

		sn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vara",
			Subsystem: "link",
			Name:      "sn_db",
			Help:      "Last signal-to-noise sample",
		}),

		bitrate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vara",
			Subsystem: "link",
			Name:      "bitrate_bps",
			Help:      "Last link rate sample in bits per second",
		}),
	}
}

// Collectors returns every collector, for callers that manage their own
// registry.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.linesReceived,
		m.commandsSent,
		m.dataBytes,
		m.rejections,
		m.failures,
		m.pendingOps,
		m.buffer,
		m.sn,
		m.bitrate,
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) recordLine(n Notification) {
	if m == nil {
		return
	}
	m.linesReceived.WithLabelValues(n.Type.String()).Inc()

	switch n.Type {
	case NotificationBuffer:
		m.buffer.Set(float64(n.Buffer))
	case NotificationSN:
		m.sn.Set(float64(n.SN))
	case NotificationBitrate:
		m.bitrate.Set(float64(n.Bitrate.BitsPerSecond))
	}
}

func (m *Metrics) recordCommand(cmd Command) {
	if m == nil {
		return
	}
	m.commandsSent.WithLabelValues(cmd.Type.String()).Inc()
}

func (m *Metrics) recordData(direction string, n int) {
	if m == nil {
		return
	}
	m.dataBytes.WithLabelValues(direction).Add(float64(n))
}

func (m *Metrics) recordRejection(cmd Command) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(cmd.Type.String()).Inc()
}

func (m *Metrics) recordFailure(cmd Command, reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(cmd.Type.String(), reason).Inc()
}

func (m *Metrics) opStarted() {
	if m == nil {
		return
	}
	m.pendingOps.Inc()
}

func (m *Metrics) opSettled() {
	if m == nil {
		return
	}
	m.pendingOps.Dec()
}
