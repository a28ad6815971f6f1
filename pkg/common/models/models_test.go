package models

import (
	"encoding/json"
	"testing"
)

func TestAnswerJSON(t *testing.T) {
	var single Answer
	if err := json.Unmarshal([]byte(`"Recovered/Resolved"`), &single); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if single.String() != "Recovered/Resolved" || single.Values != nil {
		t.Fatalf("unexpected single answer %+v", single)
	}

	var multi Answer
	if err := json.Unmarshal([]byte(`["Corticosteroids","NSAIDs"]`), &multi); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if multi.String() != "Corticosteroids, NSAIDs" {
		t.Fatalf("expected joined answer, got %q", multi.String())
	}

	out, err := json.Marshal(multi)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `["Corticosteroids","NSAIDs"]` {
		t.Fatalf("multi answer should stay a list, got %s", out)
	}

	var bad Answer
	if err := json.Unmarshal([]byte(`{"a":1}`), &bad); err == nil {
		t.Fatal("expected error for object answer")
	}
}

func TestAnswerIsEmpty(t *testing.T) {
	cases := map[string]Answer{
		"blank text":  TextAnswer("   "),
		"empty list":  MultiAnswer(),
		"zero answer": {},
	}
	for name, a := range cases {
		if !a.IsEmpty() {
			t.Fatalf("%s: expected empty", name)
		}
	}
	if TextAnswer("Unknown").IsEmpty() {
		t.Fatal("non-blank answer reported empty")
	}
}

func TestExtractionRecordFieldAccess(t *testing.T) {
	rec := &ExtractionRecord{}
	slot, ok := rec.Field(FieldLotNumber)
	if !ok {
		t.Fatal("lot_number should resolve")
	}
	*slot = NewExtractedField("AB123", 0.8)
	if rec.LotNumber.Text() != "AB123" {
		t.Fatal("slot should alias the record field")
	}

	if _, ok := rec.Field("shoe_size"); ok {
		t.Fatal("unknown field should not resolve")
	}
	if IsKnownField("shoe_size") || !IsKnownField(FieldCausalityAssessment) {
		t.Fatal("IsKnownField disagrees with Field")
	}

	var nilRec *ExtractionRecord
	if _, ok := nilRec.Field(FieldOutcome); ok {
		t.Fatal("nil record should not resolve fields")
	}
}

func TestExtractedFieldAvailable(t *testing.T) {
	blank := "  "
	tests := []struct {
		name  string
		field ExtractedField
		want  bool
	}{
		{"found with value", NewExtractedField("nivolumab", 0.9), true},
		{"found blank", ExtractedField{Value: &blank, Found: true}, false},
		{"found nil", ExtractedField{Found: true}, false},
		{"value not found", ExtractedField{Value: &blank, Found: false}, false},
	}
	for _, tt := range tests {
		if got := tt.field.Available(); got != tt.want {
			t.Fatalf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	rec := &ExtractionRecord{
		Outcome:             NewExtractedField("Unknown", 0.5),
		SeriousnessCriteria: []string{"hospitalization"},
	}
	cp := rec.Clone()
	*cp.Outcome.Value = "Fatal"
	cp.SeriousnessCriteria[0] = "death"

	if rec.Outcome.Text() != "Unknown" {
		t.Fatal("clone shares field values")
	}
	if rec.SeriousnessCriteria[0] != "hospitalization" {
		t.Fatal("clone shares criteria slice")
	}
}

func TestReporterPersona(t *testing.T) {
	c := Case{}
	if c.ReporterPersona() != ReporterHCP {
		t.Fatal("default persona should be hcp")
	}

	c.ExtractedData = &ExtractionRecord{ReporterType: NewExtractedField("Patient", 0.7)}
	if c.ReporterPersona() != ReporterPatient {
		t.Fatal("extracted reporter type should drive persona")
	}

	c.ConsentStatus = &ConsentStatus{ReporterDetails: &ReporterDetails{Type: ReporterHCP}}
	if c.ReporterPersona() != ReporterHCP {
		t.Fatal("consent details take precedence")
	}
}

func TestCaseStatusLabels(t *testing.T) {
	if StatusFollowupSent.Label() != "Follow-up Sent" {
		t.Fatalf("unexpected label %q", StatusFollowupSent.Label())
	}
	if CaseStatus("archived").Valid() {
		t.Fatal("unknown status should be invalid")
	}
	if RiskMedium.Label() != "Medium" {
		t.Fatalf("unexpected risk label %q", RiskMedium.Label())
	}
}
