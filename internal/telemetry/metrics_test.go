package telemetry

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	return NewMetrics(prometheus.NewRegistry())
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestObserveReport_IncrementsCounters(t *testing.T) {
	m := newTestMetrics(t)
	m.ObserveReport(3, 1, 2)

	assert.Equal(t, 3.0, counterValue(t, m.FilesIndexed))
	assert.Equal(t, 1.0, counterValue(t, m.FilesSkipped))
	assert.Equal(t, 2.0, counterValue(t, m.FilesErrored))

	m.ObserveReport(1, 0, 0)
	assert.Equal(t, 4.0, counterValue(t, m.FilesIndexed))
}

func TestSetSymbolsTotalAndUnresolvedReferences(t *testing.T) {
	m := newTestMetrics(t)
	m.SetSymbolsTotal(42)
	m.SetUnresolvedReferences(7)

	assert.Equal(t, 42.0, gaugeValue(t, m.SymbolsTotal))
	assert.Equal(t, 7.0, gaugeValue(t, m.ReferencesLag))
}

func TestObserveDurations_DoesNotPanic(t *testing.T) {
	m := newTestMetrics(t)
	assert.NotPanics(t, func() {
		m.ObserveExtractDuration(150 * time.Millisecond)
		m.ObserveResolveDuration(50 * time.Millisecond)
	})
}

func TestNilMetrics_MethodsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReport(1, 1, 1)
		m.ObserveExtractDuration(time.Second)
		m.ObserveResolveDuration(time.Second)
		m.SetSymbolsTotal(1)
		m.SetUnresolvedReferences(1)
	})
}

func TestServe_ExposesMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SetSymbolsTotal(9)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	done := make(chan struct{})
	go func() {
		Serve(ctx, addr, logger)
		close(done)
	}()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/metrics")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not shut down after context cancellation")
	}
}
