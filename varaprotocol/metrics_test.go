package varaprotocol

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.recordLine(Notification{Type: NotificationOK})
	m.recordCommand(NewAbortCommand())
	m.recordData("rx", 10)
	m.recordRejection(NewAbortCommand())
	m.recordFailure(NewAbortCommand(), "closed")
	m.opStarted()
	m.opSettled()
}

func TestMetricsGauges(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.recordLine(Notification{Type: NotificationBuffer, Buffer: 300})
	m.recordLine(Notification{Type: NotificationSN, SN: -4})
	m.recordLine(Notification{Type: NotificationBitrate, Bitrate: &Bitrate{SpeedLevel: 7, BitsPerSecond: 1200}})
	m.recordLine(Notification{Type: NotificationOK})
	m.recordLine(Notification{Type: NotificationOK})

	assert.Equal(t, float64(300), testutil.ToFloat64(m.buffer))
	assert.Equal(t, float64(-4), testutil.ToFloat64(m.sn))
	assert.Equal(t, float64(1200), testutil.ToFloat64(m.bitrate))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.linesReceived.WithLabelValues("OK")))

	m.opStarted()
	m.opStarted()
	m.opSettled()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.pendingOps))

	m.recordData("tx", 64)
	m.recordData("tx", 36)
	assert.Equal(t, float64(100), testutil.ToFloat64(m.dataBytes.WithLabelValues("tx")))

	m.recordRejection(NewTuneCommand(-3))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rejections.WithLabelValues("Tune")))

	// Registering twice is an error.
	assert.Error(t, m.Register(reg))
}
