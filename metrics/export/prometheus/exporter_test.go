package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sessionguard "github.com/retailcore/sessionguard"
)

type fakeSource struct {
	snapshot sessionguard.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() sessionguard.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                          { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters: map[sessionguard.MetricID]uint64{},
		},
		dropped: 0,
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounters(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters: map[sessionguard.MetricID]uint64{
				sessionguard.MetricLoginSuccess:     7,
				sessionguard.MetricSessionExpired:   3,
				sessionguard.MetricRateLimitBlocked: 11,
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	if !strings.Contains(out, "sessionguard_login_success_total 7") {
		t.Fatalf("expected login_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "sessionguard_session_expired_total 3") {
		t.Fatalf("expected session_expired counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "sessionguard_rate_limit_blocked_total 11") {
		t.Fatalf("expected rate_limit_blocked counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "sessionguard_audit_dropped_total 2") {
		t.Fatalf("expected audit dropped counter in output, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters: map[sessionguard.MetricID]uint64{sessionguard.MetricLoginSuccess: 1},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters: map[sessionguard.MetricID]uint64{
				sessionguard.MetricLoginSuccess:     1000,
				sessionguard.MetricLoginFailure:     40,
				sessionguard.MetricValidateSuccess:  12000,
				sessionguard.MetricValidateRejected: 300,
				sessionguard.MetricRefreshSuccess:   800,
				sessionguard.MetricLogout:           500,
			},
		},
		dropped: 0,
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
