package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

var (
	dashboardTotal       atomic.Int64
	dashboardHighRisk    atomic.Int64
	dashboardPending     atomic.Int64
	dashboardFirstTouch  atomic.Int64
	casesSubmitted       atomic.Int64
	extractionFailures   atomic.Int64
	questionFallbacks    atomic.Int64
	outreachFallbacks    atomic.Int64
	responsesMerged      atomic.Int64
	narrativeRedactions  atomic.Int64
	collaboratorFailures atomic.Int64
)

// ObserveDashboard stores the latest dashboard counters as gauges.
func ObserveDashboard(m models.DashboardMetrics) {
	dashboardTotal.Store(int64(m.TotalCases))
	dashboardHighRisk.Store(int64(m.HighRiskCases))
	dashboardPending.Store(int64(m.PendingFollowups))
	dashboardFirstTouch.Store(int64(m.FirstTouchSuccess))
}

func IncCasesSubmitted()       { casesSubmitted.Add(1) }
func IncExtractionFailures()   { extractionFailures.Add(1) }
func IncQuestionFallbacks()    { questionFallbacks.Add(1) }
func IncOutreachFallbacks()    { outreachFallbacks.Add(1) }
func IncResponsesMerged()      { responsesMerged.Add(1) }
func IncCollaboratorFailures() { collaboratorFailures.Add(1) }

// CollaboratorFailures reports the icsr_llm_failures_total counter.
func CollaboratorFailures() int64 { return collaboratorFailures.Load() }

// AddNarrativeRedactions counts identifiers masked before the LLM call.
func AddNarrativeRedactions(n int) {
	if n > 0 {
		narrativeRedactions.Add(int64(n))
	}
}

type metric struct {
	name, help, kind string
	value            *atomic.Int64
}

var exposition = []metric{
	{"icsr_dashboard_cases_total", "Number of cases in the dashboard feed.", "gauge", &dashboardTotal},
	{"icsr_dashboard_high_risk_cases", "Number of cases classified high risk.", "gauge", &dashboardHighRisk},
	{"icsr_dashboard_pending_followups", "Number of cases awaiting a follow-up response.", "gauge", &dashboardPending},
	{"icsr_dashboard_first_touch_success_percent", "Share of cases completed without follow-up.", "gauge", &dashboardFirstTouch},
	{"icsr_intake_cases_submitted_total", "Narratives accepted for extraction.", "counter", &casesSubmitted},
	{"icsr_intake_extraction_failures_total", "Submissions aborted by an extraction failure.", "counter", &extractionFailures},
	{"icsr_intake_question_fallbacks_total", "Question sets produced by the template generator.", "counter", &questionFallbacks},
	{"icsr_intake_outreach_fallbacks_total", "Outreach messages produced from the static template.", "counter", &outreachFallbacks},
	{"icsr_intake_responses_merged_total", "Reporter response sets merged into cases.", "counter", &responsesMerged},
	{"icsr_privacy_narrative_redactions_total", "Contact identifiers masked in narratives.", "counter", &narrativeRedactions},
	{"icsr_llm_failures_total", "Failed calls to the language model service.", "counter", &collaboratorFailures},
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	for _, m := range exposition {
		fmt.Fprintf(w, "# HELP %s %s\n", m.name, m.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", m.name, m.kind)
		fmt.Fprintf(w, "%s %d\n", m.name, m.value.Load())
	}
}
