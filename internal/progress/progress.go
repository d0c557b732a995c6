// Package progress provides progress indicators for long-running operations.
package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/klauern/wikisync/internal/logging"
	"github.com/klauern/wikisync/internal/sync"
	"github.com/klauern/wikisync/internal/ui"
)

// Bar wraps progressbar functionality with integration to wikisync's UI and logging.
type Bar struct {
	bar     *progressbar.ProgressBar
	enabled bool
	desc    string
}

// Options configures the progress bar behavior.
type Options struct {
	// Max is the maximum value for the progress bar (total steps).
	Max int64
	// Description is the prefix text shown before the progress bar.
	Description string
	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer
	// ShowElapsed shows elapsed time.
	ShowElapsed bool
	// ShowCount shows current/total count (e.g., "5/10").
	ShowCount bool
}

// DefaultOptions returns sensible defaults for CLI progress bars.
func DefaultOptions() Options {
	return Options{
		Max:         100,
		Description: "Processing",
		Writer:      os.Stderr,
		ShowElapsed: true,
		ShowCount:   true,
	}
}

// New creates a new progress bar with the given options.
// The bar is only shown if:
//   - Colors are enabled (respects NO_COLOR and --no-color)
//   - Output is a terminal
//   - Not in debug/verbose mode (to avoid interfering with logs)
func New(opts Options) *Bar {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}

	// Determine if progress should be shown
	enabled := shouldShowProgress(opts.Writer)

	b := &Bar{
		enabled: enabled,
		desc:    opts.Description,
	}

	if !enabled {
		// Log start at debug level instead
		logging.Debug(fmt.Sprintf("%s started", opts.Description),
			logging.Count(int(opts.Max)))
		return b
	}

	// Create the progress bar with schollz/progressbar
	barOpts := []progressbar.Option{
		progressbar.OptionSetDescription(opts.Description),
		progressbar.OptionSetWriter(opts.Writer),
		progressbar.OptionSetWidth(15),
		progressbar.OptionThrottle(65 * time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(opts.Writer, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(ui.IsColorEnabled()),
	}
	if opts.ShowCount {
		barOpts = append(barOpts, progressbar.OptionShowCount())
	}
	if opts.ShowElapsed {
		barOpts = append(barOpts, progressbar.OptionShowElapsedTimeOnFinish())
	}
	b.bar = progressbar.NewOptions64(opts.Max, barOpts...)

	return b
}

// Add increments the progress bar by n steps.
func (b *Bar) Add(n int) error {
	if !b.enabled {
		return nil
	}
	return b.bar.Add(n)
}

// Set sets the progress bar to a specific value.
func (b *Bar) Set(n int) error {
	if !b.enabled {
		return nil
	}
	return b.bar.Set(n)
}

// Describe updates the progress bar description.
func (b *Bar) Describe(desc string) {
	b.desc = desc
	if !b.enabled {
		return
	}
	b.bar.Describe(desc)
}

// Finish completes the progress bar and logs completion.
func (b *Bar) Finish() error {
	if !b.enabled {
		logging.Debug(fmt.Sprintf("%s completed", b.desc))
		return nil
	}
	return b.bar.Finish()
}

// IsFinished returns true if the progress bar has reached its max value.
func (b *Bar) IsFinished() bool {
	if !b.enabled {
		return false
	}
	return b.bar.IsFinished()
}

// shouldShowProgress determines if progress bars should be displayed.
// Progress is disabled if:
//   - Not outputting to a terminal (any writer other than a tty file)
//   - Colors are disabled (NO_COLOR, --no-color)
//   - Logger is at debug level (to avoid interfering with debug output)
func shouldShowProgress(w io.Writer) bool {
	// Check if colors are enabled (respects NO_COLOR)
	if !ui.IsColorEnabled() {
		return false
	}

	// Check if we're outputting to a terminal
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}

	// Disable progress if at debug level (avoid interfering with logs)
	ctx := context.Background()
	if logging.Default().Enabled(ctx, slog.LevelDebug) {
		return false
	}

	return true
}

// SyncTracker returns a progress callback that drives a bar on w while
// pages are reconciled. Failed pages are counted in the description.
// Rendering errors never cancel the run.
func SyncTracker(w io.Writer) sync.ProgressCallback {
	var (
		bar    *Bar
		failed int
	)
	describe := func(page string) string {
		desc := "Reconciling"
		if page != "" {
			desc += " " + page
		}
		if failed > 0 {
			desc += fmt.Sprintf(" (%d failed)", failed)
		}
		return desc
	}
	return func(ev sync.ProgressEvent) error {
		if ev.Type != sync.ProgressEventStart && bar == nil {
			return nil
		}
		switch ev.Type {
		case sync.ProgressEventStart:
			failed = 0
			bar = New(Options{
				Max:         int64(ev.Total),
				Description: describe(""),
				Writer:      w,
				ShowElapsed: true,
				ShowCount:   true,
			})
		case sync.ProgressEventPageStart:
			bar.Describe(describe(ev.Page))
		case sync.ProgressEventPageComplete:
			if ev.Action == sync.ActionFailed {
				failed++
			}
			_ = bar.Set(ev.Current)
		case sync.ProgressEventComplete:
			bar.Describe(describe(""))
			_ = bar.Finish()
		}
		return nil
	}
}
