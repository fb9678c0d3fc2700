package remedy

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTable(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "remedies.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	return path
}

func TestLoad_AndLookup(t *testing.T) {
	path := writeTable(t, `{
		"Mild": "Schedule a follow-up exam within a year.",
		"Moderate": "Consult an ophthalmologist within a few months.",
		"Severe": "Seek specialist care promptly.",
		"Proliferative DR": "Urgent referral to a retina specialist."
	}`)

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	tests := []struct {
		class string
		want  string
	}{
		{class: "Mild", want: "Schedule a follow-up exam within a year."},
		{class: "Moderate", want: "Consult an ophthalmologist within a few months."},
		{class: "Severe", want: "Seek specialist care promptly."},
		{class: "Proliferative DR", want: "Urgent referral to a retina specialist."},
		{class: "Unknown", want: FallbackAdvisory},
		{class: "", want: FallbackAdvisory},
	}

	for _, tt := range tests {
		if got := table.Lookup(tt.class); got != tt.want {
			t.Errorf("Lookup(%q) = %q, want %q", tt.class, got, tt.want)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil {
		t.Fatalf("expected error for missing file, got nil")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeTable(t, "not json at all")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for invalid JSON, got nil")
	}
}

func TestLoad_EmptyTable(t *testing.T) {
	path := writeTable(t, "{}")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty table, got nil")
	}
}
