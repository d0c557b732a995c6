package e2e

import (
	"errors"
	"testing"
)

func TestAssertHelpers(t *testing.T) {
	r := &Result{Stdout: "Synchronized with Remote (direction: both)\n  Reconciled:  2\n  Conflicts:   0\n"}

	AssertSuccess(t, r)
	AssertExitCode(t, r, 0)
	AssertOutputContains(t, r, "Synchronized with Remote")
	AssertOutputNotContains(t, r, "Failed")
	AssertSummaryCount(t, r, "Reconciled", 2)
	AssertSummaryCount(t, r, "Conflicts", 0)
}

func TestAssertErrorContains(t *testing.T) {
	r := &Result{Err: errors.New("remote wiki unavailable"), ExitCode: 1}

	AssertErrorContains(t, r, "unavailable")
	AssertExitCode(t, r, 1)
}

func TestSummaryLine(t *testing.T) {
	tests := []struct {
		label string
		n     int
		want  string
	}{
		{label: "Only remote", n: 3, want: "  Only remote: 3\n"},
		{label: "Reconciled", n: 12, want: "  Reconciled:  12\n"},
		{label: "Pending", n: 1, want: "  Pending:     1\n"},
	}
	for _, tt := range tests {
		if got := summaryLine(tt.label, tt.n); got != tt.want {
			t.Errorf("summaryLine(%q, %d) = %q, want %q", tt.label, tt.n, got, tt.want)
		}
	}
}
