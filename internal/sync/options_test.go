package sync

import (
	"errors"
	"testing"

	"github.com/klauern/wikisync/internal/model"
)

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantField string
	}{
		{name: "valid defaults", opts: Options{RemoteWiki: "Remote"}},
		{name: "valid page list", opts: Options{RemoteWiki: "Remote", PageList: []string{"A", "B"}}},
		{name: "missing remote", opts: Options{}, wantField: "sync.remote_wiki"},
		{name: "blank remote", opts: Options{RemoteWiki: "  "}, wantField: "sync.remote_wiki"},
		{name: "bad direction", opts: Options{RemoteWiki: "Remote", Direction: "sideways"}, wantField: "sync.direction"},
		{name: "negative workers", opts: Options{RemoteWiki: "Remote", Workers: -1}, wantField: "sync.workers"},
		{
			name:      "match and list together",
			opts:      Options{RemoteWiki: "Remote", PageMatch: "Help.*", PageList: []string{"A"}},
			wantField: "sync.page_match",
		},
		{
			name: "group overrides match and list",
			opts: Options{RemoteWiki: "Remote", GroupList: []string{"Group"}, PageMatch: "Help.*", PageList: []string{"A"}},
		},
		{name: "invalid pattern", opts: Options{RemoteWiki: "Remote", PageMatch: "("}, wantField: "sync.page_match"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var cfgErr *model.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() error = %v, want ConfigurationError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestOptions_NameMatcher(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		match map[string]bool
	}{
		{
			name:  "page list is exact",
			opts:  Options{PageList: []string{"A.b", "Help"}},
			match: map[string]bool{"A.b": true, "Axb": false, "Help": true, "HelpContents": false},
		},
		{
			name:  "pattern is anchored at the start",
			opts:  Options{PageMatch: "Help"},
			match: map[string]bool{"Help": true, "HelpContents": true, "WikiHelp": false},
		},
		{
			name:  "empty page list matches nothing",
			opts:  Options{PageList: []string{}},
			match: map[string]bool{"A": false, "": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := tt.opts.nameMatcher()
			if err != nil {
				t.Fatalf("nameMatcher() error = %v", err)
			}
			for name, want := range tt.match {
				if got := re.MatchString(name); got != want {
					t.Errorf("MatchString(%q) = %v, want %v", name, got, want)
				}
			}
		})
	}
}

func TestOptions_NoMatcher(t *testing.T) {
	re, err := Options{}.nameMatcher()
	if err != nil || re != nil {
		t.Errorf("nameMatcher() = %v, %v; want nil, nil", re, err)
	}
}

func TestOptions_GroupDisablesNameFilters(t *testing.T) {
	opts := Options{GroupList: []string{"Group"}, PageMatch: "Help", PageList: []string{"A"}}

	re, err := opts.nameMatcher()
	if err != nil || re != nil {
		t.Errorf("nameMatcher() = %v, %v; want nil, nil", re, err)
	}
	if got := opts.allowList(); got != nil {
		t.Errorf("allowList() = %v, want nil", got)
	}
	if got := (Options{PageList: []string{"A"}}).allowList(); len(got) != 1 || got[0] != "A" {
		t.Errorf("allowList() without groups = %v, want [A]", got)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Direction != model.DirectionBoth {
		t.Errorf("Direction = %q, want both", opts.Direction)
	}
	if opts.Workers != 1 {
		t.Errorf("Workers = %d, want 1", opts.Workers)
	}
}
