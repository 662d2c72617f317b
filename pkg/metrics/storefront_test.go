package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestStorefrontMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorefrontMetrics(reg)
	m.IncCartMutation("add")
	m.IncCartMutation("add")
	m.IncPersistFailure("redis")
	m.IncBridgeMessage("dropped_origin")
	m.IncTimeout("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	cases := []struct {
		name, label, value string
		want               float64
	}{
		{"storefront_cart_mutations_total", "op", "add", 2},
		{"storefront_cart_persist_failures_total", "tier", "redis", 1},
		{"storefront_bridge_messages_total", "result", "dropped_origin", 1},
		{"storefront_timeouts_total", "operation", "unknown", 1},
	}
	for _, tc := range cases {
		got, err := fetchCounterValue(mfs, tc.name, tc.label, tc.value)
		if err != nil {
			t.Fatalf("fetch %s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("expected %s=%v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestNilStorefrontMetricsIsNoop(t *testing.T) {
	var m *StorefrontMetrics
	m.IncCartMutation("add")
	m.IncPersistFailure("redis")
	m.IncBridgeMessage("applied")
	m.IncTimeout("persist")

	NewStorefrontMetrics(nil).IncCartMutation("add")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
