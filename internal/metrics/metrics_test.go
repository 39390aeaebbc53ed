package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから名前とラベルが一致するメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestNewCollector_DoubleRegistration_Panics は同一レジストリへの二重登録でpanicすることを検証する。
func TestNewCollector_DoubleRegistration_Panics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

func TestRecordUpstream_CountsByResourceAndStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstream("favorites", 200, 10*time.Millisecond)
	c.RecordUpstream("favorites", 200, 20*time.Millisecond)
	c.RecordUpstream("favorites", 404, 5*time.Millisecond)

	m := findMetric(t, reg, "lunchmap_upstream_requests_total", map[string]string{"resource": "favorites", "status_code": "200"})
	if m == nil {
		t.Fatal("lunchmap_upstream_requests_total{favorites,200} not found")
	}
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("upstream_requests_total{200} = %v, want 2", got)
	}

	m = findMetric(t, reg, "lunchmap_upstream_requests_total", map[string]string{"resource": "favorites", "status_code": "404"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("upstream_requests_total{404} should be 1")
	}

	h := findMetric(t, reg, "lunchmap_upstream_latency_seconds", map[string]string{"resource": "favorites"})
	if h == nil {
		t.Fatal("lunchmap_upstream_latency_seconds not found")
	}
	if got := h.GetHistogram().GetSampleCount(); got != 3 {
		t.Errorf("latency sample count = %d, want 3", got)
	}
}

func TestRecordSignIn_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignIn(SignInSuccess)
	c.RecordSignIn(SignInAccessDenied)
	c.RecordSignIn(SignInAccessDenied)

	m := findMetric(t, reg, "lunchmap_signin_total", map[string]string{"result": SignInAccessDenied})
	if m == nil || m.GetCounter().GetValue() != 2 {
		t.Error("signin_total{access_denied} should be 2")
	}
}

func TestRecordGuardDecision_CountsByDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGuardDecision("ALLOW")
	c.RecordGuardDecision("DENY_NO_AUTH")

	m := findMetric(t, reg, "lunchmap_guard_decisions_total", map[string]string{"decision": "DENY_NO_AUTH"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("guard_decisions_total{DENY_NO_AUTH} should be 1")
	}
}
