package dashboard

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

func TestComputeEmpty(t *testing.T) {
	got := Compute(nil)
	want := models.DashboardMetrics{AverageResponseTime: NoSamples}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected metrics (-want +got):\n%s", diff)
	}
}

func TestComputeCounters(t *testing.T) {
	created := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	rows := []models.CaseRow{
		{"id": "1", "status": "intake", "risk_score": "High", "meddra_pt": "Hepatitis",
			"created_at": created.Format(time.RFC3339), "completed_at": created.Add(30 * time.Minute).Format(time.RFC3339Nano)},
		{"id": "2", "status": "followup_sent", "risk_score": " high ", "meddra_pt": "",
			"created_at": created, "completed_at": created.Add(90 * time.Minute)},
		{"id": "3", "status": "Completed", "risk_score": "Medium", "meddra_pt": "Rash",
			"created_at": created.Format(time.RFC3339), "completed_at": created.Format(time.RFC3339)},
		{"id": "4", "status": "risk_classified", "risk_score": nil, "meddra_pt": "Nausea",
			"created_at": "not a date", "completed_at": created.Format(time.RFC3339)},
	}

	got := Compute(rows)
	want := models.DashboardMetrics{
		TotalCases:          4,
		HighRiskCases:       2,
		PendingFollowups:    1,
		FirstTouchSuccess:   50,
		AverageResponseTime: "1.0 hrs",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected metrics (-want +got):\n%s", diff)
	}
}

func TestComputeFirstTouchRounding(t *testing.T) {
	rows := []models.CaseRow{
		{"status": "intake", "meddra_pt": "Headache"},
		{"status": "intake"},
		{"status": "closed", "meddra_pt": "Headache"},
	}
	if got := Compute(rows).FirstTouchSuccess; got != 33 {
		t.Fatalf("expected 33, got %d", got)
	}
}

func TestFormatMinutes(t *testing.T) {
	tests := []struct {
		mins float64
		want string
	}{
		{0.5, "30s"},
		{0.1, "6s"},
		{12.34, "12.3 mins"},
		{150, "2.5 hrs"},
		{2880, "2.0 days"},
		{2.25, "2.3 mins"},
		{135, "2.3 hrs"},
		{3240, "2.3 days"},
	}
	for _, tt := range tests {
		if got := FormatMinutes(tt.mins); got != tt.want {
			t.Fatalf("FormatMinutes(%v): expected %q, got %q", tt.mins, tt.want, got)
		}
	}
}

func TestProcessingTimeSmoothsZero(t *testing.T) {
	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	rnd := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		got := ProcessingTime(at, at, rnd)
		var secs int
		if _, err := fmt.Sscanf(got, "%ds", &secs); err != nil {
			t.Fatalf("unexpected display %q: %v", got, err)
		}
		if secs < 5 || secs > 11 {
			t.Fatalf("smoothed value out of range: %q", got)
		}
	}

	if got := ProcessingTime(at, at.Add(3*time.Minute), rnd); got != "3.0 mins" {
		t.Fatalf("non-zero elapsed must not be smoothed, got %q", got)
	}
	if got := ProcessingTime(at, at, nil); got != "0s" {
		t.Fatalf("expected 0s without a source, got %q", got)
	}
}

func TestComputeIgnoresSmoothing(t *testing.T) {
	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	rows := []models.CaseRow{{"created_at": at, "completed_at": at}}
	if got := Compute(rows).AverageResponseTime; got != NoSamples {
		t.Fatalf("zero elapsed rows are not samples, got %q", got)
	}
}

func TestRowProcessingTime(t *testing.T) {
	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	row := models.CaseRow{
		"created_at":              at.Format(time.RFC3339),
		"extraction_completed_at": at.Add(45 * time.Second).Format(time.RFC3339),
	}
	if got, ok := RowProcessingTime(row, nil); !ok || got != "45s" {
		t.Fatalf("expected 45s from extraction time, got %q (%v)", got, ok)
	}

	row["completed_at"] = at.Add(3 * time.Hour).Format(time.RFC3339)
	if got, _ := RowProcessingTime(row, nil); got != "3.0 hrs" {
		t.Fatalf("completion time should win, got %q", got)
	}

	if _, ok := RowProcessingTime(models.CaseRow{"created_at": "garbage"}, nil); ok {
		t.Fatal("expected no display for unparsable rows")
	}
}
