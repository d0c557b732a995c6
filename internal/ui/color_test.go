package ui

import (
	"testing"
)

func TestStatusFunctions(t *testing.T) {
	// Disable colors for consistent test output
	DisableColors()
	defer EnableColors()

	tests := []struct {
		name     string
		fn       func(string) string
		input    string
		contains string
	}{
		{"StatusSuccess empty", StatusSuccess, "", SymbolSuccess},
		{"StatusSuccess with msg", StatusSuccess, "done", SymbolSuccess + " done"},
		{"StatusError empty", StatusError, "", SymbolError},
		{"StatusError with msg", StatusError, "failed", SymbolError + " failed"},
		{"StatusWarning empty", StatusWarning, "", SymbolWarning},
		{"StatusWarning with msg", StatusWarning, "caution", SymbolWarning + " caution"},
		{"StatusSkipped empty", StatusSkipped, "", SymbolSkipped},
		{"StatusSkipped with msg", StatusSkipped, "skip", SymbolSkipped + " skip"},
		{"StatusPending empty", StatusPending, "", SymbolPending},
		{"StatusPending with msg", StatusPending, "later", SymbolPending + " later"},
		{"StatusConflict empty", StatusConflict, "", SymbolConflict},
		{"StatusConflict with msg", StatusConflict, "markers", SymbolConflict + " markers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(tt.input)
			if got != tt.contains {
				t.Errorf("got %q, want %q", got, tt.contains)
			}
		})
	}
}

func TestColorToggle(t *testing.T) {
	// Save initial state
	initial := IsColorEnabled()

	DisableColors()
	if IsColorEnabled() {
		t.Error("expected colors to be disabled")
	}

	EnableColors()
	if !IsColorEnabled() {
		t.Error("expected colors to be enabled")
	}

	// Restore initial state
	if !initial {
		DisableColors()
	}
}

func TestColorFunctions_Plain(t *testing.T) {
	DisableColors()
	defer EnableColors()

	paints := map[string]func(...any) string{
		"Success": Success,
		"Error":   Error,
		"Warning": Warning,
		"Info":    Info,
		"Bold":    Bold,
		"Dim":     Dim,
		"Header":  Header,
	}
	for name, paint := range paints {
		if got := paint("FrontPage"); got != "FrontPage" {
			t.Errorf("%s() = %q, want plain text while colors are disabled", name, got)
		}
	}
}
