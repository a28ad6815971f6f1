package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

func TestWritePrometheusReportsDashboard(t *testing.T) {
	ObserveDashboard(models.DashboardMetrics{TotalCases: 12, HighRiskCases: 4, PendingFollowups: 3, FirstTouchSuccess: 58})
	AddNarrativeRedactions(0)

	rec := httptest.NewRecorder()
	WritePrometheus(rec)
	body := rec.Body.String()

	for _, line := range []string{
		"icsr_dashboard_cases_total 12",
		"icsr_dashboard_high_risk_cases 4",
		"icsr_dashboard_pending_followups 3",
		"icsr_dashboard_first_touch_success_percent 58",
		"# TYPE icsr_intake_cases_submitted_total counter",
	} {
		if !strings.Contains(body, line) {
			t.Fatalf("expected %q in exposition:\n%s", line, body)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
}
