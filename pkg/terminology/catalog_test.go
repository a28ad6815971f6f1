package terminology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSearchDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()

	tests := []struct {
		query string
		limit int
		want  []string
	}{
		{query: "mab", limit: 3, want: []string{"Pembrolizumab", "Nivolumab", "Atezolizumab"}},
		{query: "  METFOR ", want: []string{"Metformin"}},
		{query: "pril", want: []string{"Lisinopril"}},
		{query: "", want: []string{}},
		{query: "aspirin", want: []string{}},
	}
	for _, tt := range tests {
		var got []string
		for _, d := range cat.Search(tt.query, tt.limit) {
			got = append(got, d.Name)
		}
		if got == nil {
			got = []string{}
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Fatalf("Search(%q) mismatch (-want +got):\n%s", tt.query, diff)
		}
	}
}

func TestSearchDefaultLimit(t *testing.T) {
	if got := DefaultCatalog().Search("a", 0); len(got) != DefaultLimit {
		t.Fatalf("expected %d suggestions, got %d", DefaultLimit, len(got))
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drugs.yaml")
	content := "drugs:\n  - name: Warfarin\n    class: anticoagulant\n  - name: Insulin glargine\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Catalog{Drugs: []Drug{{Name: "Warfarin", Class: "anticoagulant"}, {Name: "Insulin glargine"}}}
	if diff := cmp.Diff(want, cat); diff != "" {
		t.Fatalf("unexpected catalog (-want +got):\n%s", diff)
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("drugs: []\n"), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if _, err := Load(empty); err == nil {
		t.Fatalf("expected error for empty catalog")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
