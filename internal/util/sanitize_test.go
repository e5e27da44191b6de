package util

import "testing"

func TestSanitizeInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"  Payment for PhysioCare  ", "Payment for PhysioCare"},
		{"<b>knee</b>", "&lt;b&gt;knee&lt;/b&gt;"},
		{"line\x00one", "lineone"},
	}
	for _, tt := range tests {
		if got := SanitizeInput(tt.in); got != tt.want {
			t.Errorf("SanitizeInput(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestContainsSuspicious(t *testing.T) {
	t.Parallel()

	if ContainsSuspicious("State Bank of India") {
		t.Error("Expected plain bank name to pass")
	}
	if !ContainsSuspicious("<img onerror=x>") {
		t.Error("Expected markup to be flagged")
	}
	if !ContainsSuspicious("{{.Secret}}") {
		t.Error("Expected template fragment to be flagged")
	}
}

func TestNormalizeMobile(t *testing.T) {
	t.Parallel()

	if got := NormalizeMobile(" 98765-00001 "); got != "9876500001" {
		t.Errorf("Expected 9876500001, got %s", got)
	}
	if got := NormalizeMobile("(987) 650 0001"); got != "9876500001" {
		t.Errorf("Expected 9876500001, got %s", got)
	}
}
