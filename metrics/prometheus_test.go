package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()

	rec, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	labels := map[string]string{"network": "eip155:8453"}
	rec.IncCounter(EventPaymentSigned, labels)
	rec.IncCounter(EventPaymentSigned, labels)
	rec.ObserveLatency(OperationFetch, 150*time.Millisecond, labels)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				byName[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				byName[mf.GetName()] += float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	assert.Equal(t, 2.0, byName["x402_events_total"])
	assert.Equal(t, 1.0, byName["x402_latency_seconds"])
}

func TestPrometheusRecorderSharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)
	second, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	first.IncCounter(EventSettlementRetry, nil)
	second.IncCounter(EventSettlementRetry, nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, 2.0, families[0].GetMetric()[0].GetCounter().GetValue())
}
