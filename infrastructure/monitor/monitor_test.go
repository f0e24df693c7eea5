package monitor

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMonitorCounters(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordOrderSubmitted()
	m.RecordOrderSubmitted()
	m.RecordOrderCanceled()
	m.RecordFill()
	m.RecordFillApplied()
	m.RecordFillDuplicate()
	m.RecordOverfill()

	if got := testutil.ToFloat64(m.ordersSubmitted); got != 2 {
		t.Fatalf("expected 2 submitted, got %f", got)
	}
	if got := testutil.ToFloat64(m.fillsApplied); got != 1 {
		t.Fatalf("expected 1 applied, got %f", got)
	}
	if got := testutil.ToFloat64(m.overfillRejects); got != 1 {
		t.Fatalf("expected 1 overfill, got %f", got)
	}
}

func TestMonitorPositionGauges(t *testing.T) {
	m := New(DefaultConfig())
	m.UpdatePosition("acct", "AAPL", 10, 50, 80)

	if got := testutil.ToFloat64(m.positionQty.WithLabelValues("acct", "AAPL")); got != 10 {
		t.Fatalf("expected qty 10, got %f", got)
	}
	if got := testutil.ToFloat64(m.realizedPnL.WithLabelValues("acct", "AAPL")); got != 80 {
		t.Fatalf("expected realized 80, got %f", got)
	}
}

func TestMonitorHandler(t *testing.T) {
	m := New(DefaultConfig())
	m.RecordRESTRequest("orders_submit", "201")
	m.SetWSClients(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if body == "" {
		t.Fatalf("expected metrics output")
	}
}

// 独立 Registry：多个实例不得互相冲突
func TestMonitorIsolatedRegistry(t *testing.T) {
	m1 := New(DefaultConfig())
	m2 := New(DefaultConfig())
	m1.RecordOrderSubmitted()
	if got := testutil.ToFloat64(m2.ordersSubmitted); got != 0 {
		t.Fatalf("expected isolated registries, got %f", got)
	}
}
