package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "json")

	l.Info("dropped")
	l.WithField("case_id", "c-1").Warn("kept")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON entry, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "kept" || entry["case_id"] != "c-1" || entry["level"] != "warning" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewTextAndBadLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "loud", "TEXT")
	if l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level fallback, got %s", l.GetLevel())
	}
	l.Info("hello")
	if !strings.Contains(buf.String(), `msg=hello`) {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestWithCase(t *testing.T) {
	got := WithCase("c-1", "ICSR-2025-0001").Data
	want := logrus.Fields{"case_id": "c-1", "case_number": "ICSR-2025-0001"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if _, ok := WithCase("c-2", "").Data["case_number"]; ok {
		t.Fatalf("empty case number should be omitted")
	}
}
