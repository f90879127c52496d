package domain

import "testing"

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"warning": SeverityWarning,
		"danger":  SeverityDanger,
		"success": SeveritySuccess,
		"info":    SeverityInfo,
		"":        SeverityInfo,
		"bogus":   SeverityInfo,
	}
	for raw, want := range cases {
		if got := ParseSeverity(raw); got != want {
			t.Fatalf("ParseSeverity(%q) = %q, want %q", raw, got, want)
		}
	}
}
