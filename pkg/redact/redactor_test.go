package redact

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRedactorMasksContactDetails(t *testing.T) {
	r, err := New(DefaultRules())
	if err != nil {
		t.Fatalf("failed to create redactor: %v", err)
	}

	narrative := "Reported by Dr. Shah (shah@clinic.example.org, 555-123-4567). " +
		"Patient started warfarin on 03/02/2025 and developed a GI bleed."
	res := r.Redact(narrative)

	if strings.Contains(res.Text, "shah@clinic.example.org") || strings.Contains(res.Text, "555-123-4567") {
		t.Fatalf("contact details not masked: %q", res.Text)
	}
	if !strings.Contains(res.Text, "[EMAIL]") || !strings.Contains(res.Text, "[PHONE]") {
		t.Fatalf("expected masks in %q", res.Text)
	}
	if !strings.Contains(res.Text, "03/02/2025") {
		t.Fatal("dates must stay readable for extraction")
	}
	if diff := cmp.Diff([]string{"email", "phone"}, res.Types()); diff != "" {
		t.Fatalf("unexpected types (-want +got):\n%s", diff)
	}
}

func TestRedactorLeavesCleanText(t *testing.T) {
	r, err := New(DefaultRules())
	if err != nil {
		t.Fatalf("failed to create redactor: %v", err)
	}
	text := "A 54-year-old woman developed a rash after amoxicillin."
	res := r.Redact(text)
	if res.Text != text || len(res.Findings) != 0 {
		t.Fatalf("unexpected redaction %+v", res)
	}

	var nilRedactor *Redactor
	if got := nilRedactor.Redact(text); got.Text != text {
		t.Fatal("nil redactor should pass text through")
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	cfg, err := LoadRules("testdata/rules.yaml")
	if err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create redactor: %v", err)
	}
	res := r.Redact("Chart MRN: 12345678, contact a.b@example.com")
	if res.Text != "Chart [MRN], contact [EMAIL]" {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	_, err := New(RulesConfig{Rules: []Rule{{Name: "broken", Pattern: "(", Enabled: true}}})
	if err == nil {
		t.Fatal("expected compile error")
	}
}
