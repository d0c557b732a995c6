package sync

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/rpc"
)

// Options configures a synchronization run.
type Options struct {
	// RemoteWiki is the interwiki name of the wiki to synchronize with.
	RemoteWiki string

	// LocalPrefix and RemotePrefix are stripped from concrete page names to
	// form canonical names.
	LocalPrefix  string
	RemotePrefix string

	// PageMatch is a regular expression matched against the start of
	// canonical names. It cannot be combined with PageList.
	PageMatch string

	// PageList restricts the run to these canonical names when non-nil.
	PageList []string

	// GroupList names local group pages whose members make up the run.
	// When set, PageMatch and PageList are not used for filtering.
	GroupList []string

	// Direction selects which way content flows (default: both).
	Direction model.Direction

	// ExcludeNonWritable skips remote pages we may not write.
	ExcludeNonWritable bool

	// Workers bounds the number of pages reconciled concurrently (default: 1).
	Workers int

	// DryRun classifies pages and applies the skip rules without fetching
	// diffs or writing anything.
	DryRun bool

	// RPC configures the client used to reach the remote wiki.
	RPC rpc.ClientOptions

	// TagReadTimeout and TagWriteTimeout bound tag log lock waits.
	// Zero uses the tag store defaults.
	TagReadTimeout  time.Duration
	TagWriteTimeout time.Duration

	// Progress is called as pages are reconciled. Returning an error
	// cancels the remaining pages.
	Progress ProgressCallback
}

// DefaultOptions returns the default sync options.
func DefaultOptions() Options {
	return Options{
		Direction: model.DirectionBoth,
		Workers:   1,
	}
}

// withDefaults fills zero values with their defaults.
func (o Options) withDefaults() Options {
	if o.Direction == "" {
		o.Direction = model.DirectionBoth
	}
	if o.Workers == 0 {
		o.Workers = 1
	}
	return o
}

// Validate checks the options and returns a *model.ConfigurationError
// describing the first problem found.
func (o Options) Validate() error {
	o = o.withDefaults()
	if strings.TrimSpace(o.RemoteWiki) == "" {
		return &model.ConfigurationError{Field: "sync.remote_wiki", Message: "no remote wiki given"}
	}
	if !o.Direction.IsValid() {
		return &model.ConfigurationError{Field: "sync.direction", Message: fmt.Sprintf("unknown direction %q", o.Direction)}
	}
	if o.Workers < 0 {
		return &model.ConfigurationError{Field: "sync.workers", Message: fmt.Sprintf("worker count %d is negative", o.Workers)}
	}
	if len(o.GroupList) == 0 && o.PageMatch != "" && o.PageList != nil {
		return &model.ConfigurationError{Field: "sync.page_match", Message: "page_match and page_list cannot be used together"}
	}
	if _, err := o.nameMatcher(); err != nil {
		return err
	}
	return nil
}

// allowList returns the page list handed to the endpoints. A group list
// replaces it.
func (o Options) allowList() []string {
	if len(o.GroupList) > 0 {
		return nil
	}
	return o.PageList
}

// nameMatcher compiles the name filter. A nil matcher keeps every page.
// The page list is folded into an anchored alternation so both filters
// go through the same path. A group list disables name filtering.
func (o Options) nameMatcher() (*regexp.Regexp, error) {
	var pattern string
	switch {
	case len(o.GroupList) > 0:
		return nil, nil
	case o.PageList != nil:
		quoted := make([]string, len(o.PageList))
		for i, name := range o.PageList {
			quoted[i] = regexp.QuoteMeta(name)
		}
		pattern = "^(?:" + strings.Join(quoted, "|") + ")$"
	case o.PageMatch != "":
		pattern = "^(?:" + o.PageMatch + ")"
	default:
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &model.ConfigurationError{Field: "sync.page_match", Message: "invalid page pattern", Err: err}
	}
	return re, nil
}
