package intake

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/safetyflow/icsr-triage/pkg/casestore"
	"github.com/safetyflow/icsr-triage/pkg/common/models"
	"github.com/safetyflow/icsr-triage/pkg/dashboard"
	"github.com/safetyflow/icsr-triage/pkg/llm"
	"github.com/safetyflow/icsr-triage/pkg/terminology"
)

type staticDashboard struct {
	rows []models.CaseRow
}

func (d staticDashboard) Rows() []models.CaseRow { return d.rows }

func (d staticDashboard) Metrics() models.DashboardMetrics { return dashboard.Compute(d.rows) }

func (d staticDashboard) Subscribe() (<-chan models.DashboardMetrics, func()) {
	ch := make(chan models.DashboardMetrics, 1)
	ch <- d.Metrics()
	return ch, func() {}
}

func newTestRouter(h *harness, source DashboardSource) *mux.Router {
	router := mux.NewRouter()
	NewHTTPHandler(h.service, source, terminology.DefaultCatalog()).Register(router.PathPrefix("/api/v1").Subrouter())
	return router
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHTTPCaseWorkflow(t *testing.T) {
	h := newHarness(t)
	router := newTestRouter(h, staticDashboard{})

	rec := do(t, router, http.MethodPost, "/api/v1/cases", map[string]string{"narrative": narrative})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created models.Case
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode case: %v", err)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/cases/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/api/v1/cases/"+created.ID+"/questions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("questions: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var qs QuestionsResult
	if err := json.NewDecoder(rec.Body).Decode(&qs); err != nil {
		t.Fatalf("decode questions: %v", err)
	}
	if qs.Source != SourceTemplate || len(qs.Case.FollowUpQuestions) == 0 {
		t.Fatalf("unexpected questions result source=%s n=%d", qs.Source, len(qs.Case.FollowUpQuestions))
	}

	rec = do(t, router, http.MethodPost, "/api/v1/cases/"+created.ID+"/outreach", map[string]string{"channel": "portal"})
	if rec.Code != http.StatusOK {
		t.Fatalf("outreach: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/api/v1/cases/"+created.ID+"/status", map[string]string{"status": "followup_sent"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodGet, "/api/v1/reporter/cases/"+created.ID+"/form", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("form: expected 200, got %d", rec.Code)
	}
	var form ReporterForm
	if err := json.NewDecoder(rec.Body).Decode(&form); err != nil {
		t.Fatalf("decode form: %v", err)
	}
	if form.Outreach == nil || form.Outreach.Channel != models.ChannelPortal {
		t.Fatalf("form should carry the portal outreach message: %+v", form.Outreach)
	}

	body := map[string]interface{}{
		"responses": []map[string]interface{}{
			{"questionId": form.Questions[0].ID, "field": form.Questions[0].Field, "answer": "Recovered"},
		},
	}
	rec = do(t, router, http.MethodPost, "/api/v1/reporter/cases/"+created.ID+"/responses", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("responses: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var merged models.Case
	if err := json.NewDecoder(rec.Body).Decode(&merged); err != nil {
		t.Fatalf("decode merged case: %v", err)
	}
	if merged.Status != models.StatusReadyForReview {
		t.Fatalf("expected ready_for_review, got %s", merged.Status)
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	h := newHarness(t)
	router := newTestRouter(h, staticDashboard{})

	c, err := h.service.Submit(context.Background(), narrative)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{name: "short narrative", method: http.MethodPost, path: "/api/v1/cases", body: map[string]string{"narrative": "too short"}, want: http.StatusBadRequest},
		{name: "unknown case", method: http.MethodGet, path: "/api/v1/cases/nope", want: http.StatusNotFound},
		{name: "backward status", method: http.MethodPost, path: "/api/v1/cases/" + c.ID + "/status", body: map[string]string{"status": "intake"}, want: http.StatusConflict},
		{name: "unknown channel", method: http.MethodPost, path: "/api/v1/cases/" + c.ID + "/outreach", body: map[string]string{"channel": "pager"}, want: http.StatusBadRequest},
		{name: "unknown response field", method: http.MethodPost, path: "/api/v1/reporter/cases/" + c.ID + "/responses",
			body: map[string]interface{}{"responses": []map[string]string{{"field": "shoe_size", "answer": "9"}}}, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cases", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestHTTPCollaboratorStatusPassThrough(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: &llm.StatusError{Code: http.StatusTooManyRequests}, want: http.StatusTooManyRequests},
		{err: &llm.StatusError{Code: http.StatusPaymentRequired}, want: http.StatusPaymentRequired},
		{err: &llm.StatusError{Code: http.StatusInternalServerError}, want: http.StatusBadGateway},
		{err: llm.ErrMalformedResponse, want: http.StatusBadGateway},
	}
	for _, tt := range tests {
		h := newHarness(t)
		h.extractor.err = tt.err
		router := newTestRouter(h, staticDashboard{})

		rec := do(t, router, http.MethodPost, "/api/v1/cases", map[string]string{"narrative": narrative})
		if rec.Code != tt.want {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.want, rec.Code)
		}
	}
}

func TestHTTPDashboard(t *testing.T) {
	h := newHarness(t)
	rows := []models.CaseRow{
		{
			"id":           "a",
			"status":       "completed",
			"risk_score":   "High",
			"meddra_pt":    "Hepatitis",
			"created_at":   "2025-03-14T09:00:00Z",
			"completed_at": "2025-03-14T10:00:00Z",
		},
		{
			"id":         "b",
			"status":     "followup_sent",
			"risk_score": "Low",
			"created_at": "2025-03-14T09:00:00Z",
		},
	}
	router := newTestRouter(h, staticDashboard{rows: rows})

	rec := do(t, router, http.MethodGet, "/api/v1/dashboard/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	var m models.DashboardMetrics
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	want := models.DashboardMetrics{TotalCases: 2, HighRiskCases: 1, PendingFollowups: 1, FirstTouchSuccess: 50, AverageResponseTime: "1.0 hrs"}
	if m != want {
		t.Fatalf("unexpected metrics %+v", m)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/dashboard/cases", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cases: expected 200, got %d", rec.Code)
	}
	var listing struct {
		Cases []map[string]interface{} `json:"cases"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Cases) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(listing.Cases))
	}
	if got := listing.Cases[0]["processing_time"]; got != "1.0 hrs" {
		t.Fatalf("unexpected processing time %v", got)
	}
	if got := listing.Cases[0]["status_label"]; got != "Closed" {
		t.Fatalf("unexpected status label %v", got)
	}
	if _, ok := listing.Cases[1]["processing_time"]; ok {
		t.Fatalf("open case without timestamps should have no processing time")
	}
	if _, ok := rows[0]["processing_time"]; ok {
		t.Fatalf("display fields must not be written back to the source rows")
	}
}

func TestHTTPDrugSuggestions(t *testing.T) {
	router := newTestRouter(newHarness(t), staticDashboard{})

	rec := do(t, router, http.MethodGet, "/api/v1/drugs?q=ximab&limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got struct {
		Drugs []terminology.Drug `json:"drugs"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode drugs: %v", err)
	}
	if len(got.Drugs) != 2 || got.Drugs[0].Name != "Infliximab" || got.Drugs[1].Name != "Rituximab" {
		t.Fatalf("unexpected suggestions %+v", got.Drugs)
	}
}

func TestHTTPDashboardStream(t *testing.T) {
	feed := casestore.NewFeed(nil)
	router := newTestRouter(newHarness(t), feed)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/dashboard/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	next := func() models.DashboardMetrics {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
				var m models.DashboardMetrics
				if err := json.Unmarshal([]byte(data), &m); err != nil {
					t.Fatalf("decode event: %v", err)
				}
				return m
			}
		}
	}

	if first := next(); first.TotalCases != 0 || first.AverageResponseTime != dashboard.NoSamples {
		t.Fatalf("unexpected initial metrics %+v", first)
	}
	feed.Apply(models.CaseRow{"id": "a", "status": "followup_sent", "risk_score": "High"})
	if got := next(); got.TotalCases != 1 || got.HighRiskCases != 1 || got.PendingFollowups != 1 {
		t.Fatalf("unexpected update %+v", got)
	}
}
