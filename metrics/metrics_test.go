package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.OrdersSubmitted.WithLabelValues("bid").Inc()
	m.OrdersSubmitted.WithLabelValues("bid").Inc()
	m.Renders.Inc()

	if got := testutil.ToFloat64(m.OrdersSubmitted.WithLabelValues("bid")); got != 2 {
		t.Fatalf("bid submissions = %v, want 2", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"ledger_orders_submitted_total", "ledger_renders_total"} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestNewWithoutRegistry(t *testing.T) {
	m := New(nil)
	m.Renders.Inc()
	if testutil.ToFloat64(m.Renders) != 1 {
		t.Fatal("unregistered collectors should still count")
	}
}
