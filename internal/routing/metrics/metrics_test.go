package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordQuery("dump", 2*time.Millisecond, true)
	m.RecordQuery("dump", 3*time.Millisecond, true)
	m.RecordQuery("lookup", time.Millisecond, false)

	if got := testutil.ToFloat64(m.Queries.WithLabelValues("dump", "success")); got != 2 {
		t.Errorf("Expected 2 successful dumps, got %v", got)
	}
	if got := testutil.ToFloat64(m.Queries.WithLabelValues("lookup", "failure")); got != 1 {
		t.Errorf("Expected 1 failed lookup, got %v", got)
	}
	if got := testutil.CollectAndCount(m.QueryDuration); got != 2 {
		t.Errorf("Expected 2 duration series, got %d", got)
	}
}

func TestRecordTableChange(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordEvent("NewRoute")
	m.RecordEvent("NewRoute")
	m.RecordKernelError("1")
	m.RecordTableChange(7)

	if got := testutil.ToFloat64(m.Events.WithLabelValues("NewRoute")); got != 2 {
		t.Errorf("Expected 2 events, got %v", got)
	}
	if got := testutil.ToFloat64(m.KernelErrors.WithLabelValues("1")); got != 1 {
		t.Errorf("Expected 1 kernel error, got %v", got)
	}
	if got := testutil.ToFloat64(m.TableSize); got != 7 {
		t.Errorf("Expected table size 7, got %v", got)
	}
	if got := testutil.ToFloat64(m.LastUpdate); got <= 0 {
		t.Errorf("Expected last update timestamp, got %v", got)
	}
}

func TestRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	// Registering twice on the same registry must fail
	defer func() {
		if recover() == nil {
			t.Error("Expected duplicate registration to panic")
		}
	}()
	NewMetrics(reg)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordQuery("dump", time.Millisecond, true)
	m.RecordEvent("NewRoute")
	m.RecordKernelError("1")
	m.RecordTableChange(1)
}
