// Package ui renders wikisync output for the terminal.
package ui

import (
	"github.com/fatih/color"
)

// Color functions for styled output. They return plain text while colors
// are disabled.
var (
	Success = color.New(color.FgGreen).SprintFunc()
	Error   = color.New(color.FgRed).SprintFunc()
	Warning = color.New(color.FgYellow).SprintFunc()
	Info    = color.New(color.FgCyan).SprintFunc()
	Bold    = color.New(color.Bold).SprintFunc()
	Dim     = color.New(color.Faint).SprintFunc()
	// Header is used for table headers and section titles.
	Header = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// Status symbols, one per page outcome.
const (
	SymbolSuccess  = "✓"
	SymbolError    = "✗"
	SymbolWarning  = "⚠"
	SymbolSkipped  = "-"
	SymbolPending  = "○"
	SymbolConflict = "!"
)

func status(paint func(...any) string, symbol, msg string) string {
	if msg == "" {
		return paint(symbol)
	}
	return paint(symbol) + " " + msg
}

// StatusSuccess marks a reconciled page or a completed command.
func StatusSuccess(msg string) string { return status(Success, SymbolSuccess, msg) }

// StatusError marks a failed page.
func StatusError(msg string) string { return status(Error, SymbolError, msg) }

// StatusWarning prefixes a warning.
func StatusWarning(msg string) string { return status(Warning, SymbolWarning, msg) }

// StatusSkipped marks a page that was already current.
func StatusSkipped(msg string) string { return status(Dim, SymbolSkipped, msg) }

// StatusPending marks a page a dry run would reconcile.
func StatusPending(msg string) string { return status(Info, SymbolPending, msg) }

// StatusConflict marks a page merged with conflict markers.
func StatusConflict(msg string) string { return status(Warning, SymbolConflict, msg) }

// DisableColors turns off color output, for --no-color and NO_COLOR.
func DisableColors() {
	color.NoColor = true
}

// EnableColors turns color output back on.
func EnableColors() {
	color.NoColor = false
}

// IsColorEnabled reports whether colors are currently enabled.
func IsColorEnabled() bool {
	return !color.NoColor
}
