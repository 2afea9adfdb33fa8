package metrics

import "testing"

func TestRecordDispatchUpdatesTotals(t *testing.T) {
	m := &Metrics{startTime: Global().startTime}
	m.MinLatencyMs.Store(int64(^uint64(0) >> 1))
	m.tsChan = make(chan timeSeriesEvent, 8)

	m.RecordDispatch("echo", 10, true)
	m.RecordDispatch("echo", 30, false)

	if got := m.TotalDispatches.Load(); got != 2 {
		t.Fatalf("TotalDispatches = %d, want 2", got)
	}
	if got := m.SuccessDispatches.Load(); got != 1 {
		t.Fatalf("SuccessDispatches = %d, want 1", got)
	}
	if got := m.FailedDispatches.Load(); got != 1 {
		t.Fatalf("FailedDispatches = %d, want 1", got)
	}
}

func TestActionStatsTracksPerActionBreakdown(t *testing.T) {
	m := &Metrics{startTime: Global().startTime}
	m.MinLatencyMs.Store(int64(^uint64(0) >> 1))
	m.tsChan = make(chan timeSeriesEvent, 8)

	m.RecordDispatch("reboot", 5, true)
	m.RecordDispatch("reboot", 15, true)
	m.RecordDispatch("shutdown", 20, false)

	am := m.GetActionMetrics("reboot")
	if am == nil {
		t.Fatal("expected reboot action metrics to exist")
	}
	if got := am.Dispatches.Load(); got != 2 {
		t.Fatalf("reboot Dispatches = %d, want 2", got)
	}

	if m.GetActionMetrics("unknown") != nil {
		t.Fatal("expected nil metrics for an action never recorded")
	}
}

func TestSnapshotReportsZeroLatencyWhenNoDispatches(t *testing.T) {
	m := &Metrics{startTime: Global().startTime}
	m.MinLatencyMs.Store(int64(^uint64(0) >> 1))
	m.tsChan = make(chan timeSeriesEvent, 8)

	snap := m.Snapshot()
	latency := snap["latency_ms"].(map[string]interface{})
	if latency["min"] != int64(0) {
		t.Fatalf("min latency = %v, want 0", latency["min"])
	}
}
