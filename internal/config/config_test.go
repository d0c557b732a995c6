package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/tagstore"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Check sync defaults
	if cfg.Sync.Direction != string(model.DirectionBoth) {
		t.Errorf("expected default direction %q, got %q", model.DirectionBoth, cfg.Sync.Direction)
	}
	if cfg.Sync.Workers != 1 {
		t.Errorf("expected Workers to be 1, got %d", cfg.Sync.Workers)
	}

	// Check RPC defaults
	if cfg.RPC.Timeout != 30*time.Second {
		t.Errorf("expected RPC.Timeout to be 30s, got %v", cfg.RPC.Timeout)
	}
	if cfg.RPC.RetryMax != 0 {
		t.Errorf("expected RPC.RetryMax to be 0, got %d", cfg.RPC.RetryMax)
	}

	// Check tag lock defaults
	if cfg.Tags.ReadLockTimeout != tagstore.DefaultReadTimeout {
		t.Errorf("expected ReadLockTimeout %v, got %v", tagstore.DefaultReadTimeout, cfg.Tags.ReadLockTimeout)
	}
	if cfg.Tags.WriteLockTimeout != tagstore.DefaultWriteTimeout {
		t.Errorf("expected WriteLockTimeout %v, got %v", tagstore.DefaultWriteTimeout, cfg.Tags.WriteLockTimeout)
	}

	// Check output defaults
	if cfg.Output.Color != "auto" {
		t.Errorf("expected Output.Color to be 'auto', got %q", cfg.Output.Color)
	}
	if cfg.Server.Listen == "" {
		t.Error("expected a default listen address")
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := Default()
	cfg.Wiki.InterwikiName = "HomeWiki"
	cfg.Wiki.DataDir = filepath.Join(tmpDir, "data")
	cfg.Sync.RemoteWiki = "OtherWiki"
	cfg.Sync.Direction = string(model.DirectionDown)
	cfg.Sync.PageList = []string{"FrontPage", "Help/Index"}
	cfg.RPC.Timeout = 5 * time.Second
	cfg.Interwiki.Entries = map[string]string{"OtherWiki": "http://other.example/"}

	if err := cfg.SaveToPath(configPath); err != nil {
		t.Fatalf("SaveToPath() error = %v", err)
	}

	loaded, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if loaded.Wiki.InterwikiName != "HomeWiki" {
		t.Errorf("InterwikiName = %q, want HomeWiki", loaded.Wiki.InterwikiName)
	}
	if loaded.Sync.RemoteWiki != "OtherWiki" {
		t.Errorf("RemoteWiki = %q, want OtherWiki", loaded.Sync.RemoteWiki)
	}
	if loaded.Sync.Direction != string(model.DirectionDown) {
		t.Errorf("Direction = %q, want down", loaded.Sync.Direction)
	}
	if len(loaded.Sync.PageList) != 2 || loaded.Sync.PageList[1] != "Help/Index" {
		t.Errorf("PageList = %v", loaded.Sync.PageList)
	}
	if loaded.RPC.Timeout != 5*time.Second {
		t.Errorf("RPC.Timeout = %v, want 5s", loaded.RPC.Timeout)
	}
	if loaded.Interwiki.Entries["OtherWiki"] != "http://other.example/" {
		t.Errorf("Interwiki.Entries = %v", loaded.Interwiki.Entries)
	}
}

func TestLoadFromPath_PartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "sync:\n  remote_wiki: OtherWiki\n  workers: 4\n"
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Sync.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Sync.Workers)
	}
	if cfg.Sync.Direction != string(model.DirectionBoth) {
		t.Errorf("Direction = %q, want default both", cfg.Sync.Direction)
	}
	if cfg.Tags.WriteLockTimeout != tagstore.DefaultWriteTimeout {
		t.Errorf("WriteLockTimeout = %v, want default", cfg.Tags.WriteLockTimeout)
	}
}

func TestLoadFromPath_Errors(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); !os.IsNotExist(err) {
		t.Errorf("missing file error = %v, want not-exist", err)
	}

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("sync: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPath(configPath); err == nil {
		t.Error("expected a parse error")
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("WIKISYNC_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sync.Workers != 1 {
		t.Errorf("Workers = %d, want default 1", cfg.Sync.Workers)
	}
	if Exists() {
		t.Error("Exists() = true without a config file")
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("WIKISYNC_HOME", t.TempDir())

	cfg := Default()
	cfg.Wiki.InterwikiName = "Saved"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !Exists() {
		t.Fatal("Exists() = false after Save")
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Wiki.InterwikiName != "Saved" {
		t.Errorf("InterwikiName = %q, want Saved", loaded.Wiki.InterwikiName)
	}
}

func TestApplyEnvironment(t *testing.T) {
	t.Setenv("WIKISYNC_WIKI_INTERWIKI_NAME", "EnvWiki")
	t.Setenv("WIKISYNC_WIKI_DATA_DIR", "/tmp/wikisync-env")
	t.Setenv("WIKISYNC_INTERWIKI_MAP_FILES", "/a/intermap.txt: /b/intermap.toml")
	t.Setenv("WIKISYNC_SYNC_REMOTE_WIKI", "EnvRemote")
	t.Setenv("WIKISYNC_SYNC_PAGE_LIST", "A, B ,,C")
	t.Setenv("WIKISYNC_SYNC_DIRECTION", "up")
	t.Setenv("WIKISYNC_SYNC_EXCLUDE_NON_WRITABLE", "yes")
	t.Setenv("WIKISYNC_SYNC_WORKERS", "8")
	t.Setenv("WIKISYNC_RPC_TIMEOUT", "2m")
	t.Setenv("WIKISYNC_RPC_RETRY_MAX", "3")
	t.Setenv("WIKISYNC_TAGS_WRITE_LOCK_TIMEOUT", "1s")
	t.Setenv("WIKISYNC_SERVER_LISTEN", ":9000")
	t.Setenv("WIKISYNC_OUTPUT_VERBOSE", "true")

	cfg := Default()
	cfg.applyEnvironment()

	if cfg.Wiki.InterwikiName != "EnvWiki" {
		t.Errorf("InterwikiName = %q", cfg.Wiki.InterwikiName)
	}
	if cfg.Wiki.DataDir != "/tmp/wikisync-env" {
		t.Errorf("DataDir = %q", cfg.Wiki.DataDir)
	}
	if len(cfg.Interwiki.MapFiles) != 2 || cfg.Interwiki.MapFiles[1] != "/b/intermap.toml" {
		t.Errorf("MapFiles = %v", cfg.Interwiki.MapFiles)
	}
	if cfg.Sync.RemoteWiki != "EnvRemote" {
		t.Errorf("RemoteWiki = %q", cfg.Sync.RemoteWiki)
	}
	if strings.Join(cfg.Sync.PageList, ",") != "A,B,C" {
		t.Errorf("PageList = %v", cfg.Sync.PageList)
	}
	if cfg.Sync.Direction != "up" {
		t.Errorf("Direction = %q", cfg.Sync.Direction)
	}
	if !cfg.Sync.ExcludeNonWritable {
		t.Error("ExcludeNonWritable = false")
	}
	if cfg.Sync.Workers != 8 {
		t.Errorf("Workers = %d", cfg.Sync.Workers)
	}
	if cfg.RPC.Timeout != 2*time.Minute {
		t.Errorf("RPC.Timeout = %v", cfg.RPC.Timeout)
	}
	if cfg.RPC.RetryMax != 3 {
		t.Errorf("RPC.RetryMax = %d", cfg.RPC.RetryMax)
	}
	if cfg.Tags.WriteLockTimeout != time.Second {
		t.Errorf("WriteLockTimeout = %v", cfg.Tags.WriteLockTimeout)
	}
	if cfg.Server.Listen != ":9000" {
		t.Errorf("Listen = %q", cfg.Server.Listen)
	}
	if !cfg.Output.Verbose {
		t.Error("Verbose = false")
	}
}

func TestApplyEnvironment_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("WIKISYNC_SYNC_WORKERS", "zero")
	t.Setenv("WIKISYNC_RPC_TIMEOUT", "soon")

	cfg := Default()
	cfg.applyEnvironment()

	if cfg.Sync.Workers != 1 {
		t.Errorf("Workers = %d, want 1", cfg.Sync.Workers)
	}
	if cfg.RPC.Timeout != 30*time.Second {
		t.Errorf("RPC.Timeout = %v, want 30s", cfg.RPC.Timeout)
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{" on ", true},
		{"false", false},
		{"0", false},
		{"", false},
		{"maybe", false},
	}
	for _, tt := range tests {
		if got := parseBool(tt.in); got != tt.want {
			t.Errorf("parseBool(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPaths(t *testing.T) {
	cfg := Default()
	cfg.Wiki.DataDir = "/srv/wiki"

	if got := cfg.DatabasePath(); got != filepath.Join("/srv/wiki", "pages.db") {
		t.Errorf("DatabasePath() = %q", got)
	}
	if got := cfg.TagRoot(); got != "/srv/wiki" {
		t.Errorf("TagRoot() = %q", got)
	}

	cfg.Wiki.Database = "/var/lib/pages.db"
	if got := cfg.DatabasePath(); got != "/var/lib/pages.db" {
		t.Errorf("DatabasePath() with override = %q", got)
	}
}

func TestEnsureIWID(t *testing.T) {
	cfg := Default()
	cfg.Wiki.DataDir = filepath.Join(t.TempDir(), "data")

	id, err := cfg.EnsureIWID()
	if err != nil {
		t.Fatalf("EnsureIWID() error = %v", err)
	}
	if id == "" || cfg.Wiki.IWID != id {
		t.Fatalf("EnsureIWID() = %q, cfg has %q", id, cfg.Wiki.IWID)
	}

	// A fresh config over the same data directory gets the stored ID back.
	again := Default()
	again.Wiki.DataDir = cfg.Wiki.DataDir
	id2, err := again.EnsureIWID()
	if err != nil {
		t.Fatalf("second EnsureIWID() error = %v", err)
	}
	if id2 != id {
		t.Errorf("second EnsureIWID() = %q, want %q", id2, id)
	}
}

func TestEnsureIWID_Configured(t *testing.T) {
	cfg := Default()
	cfg.Wiki.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Wiki.IWID = "fixed-id"

	id, err := cfg.EnsureIWID()
	if err != nil || id != "fixed-id" {
		t.Fatalf("EnsureIWID() = %q, %v", id, err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Wiki.DataDir, iwidFileName)); !os.IsNotExist(err) {
		t.Error("configured IWID should not be written to the data directory")
	}
}

func TestHomeIdentity(t *testing.T) {
	cfg := Default()
	cfg.Wiki.IWID = "abc"
	cfg.Wiki.InterwikiName = "Home"

	id := cfg.HomeIdentity()
	if id.IWID != "abc" || id.InterwikiName != "Home" {
		t.Errorf("HomeIdentity() = %+v", id)
	}
}

func TestSyncOptions(t *testing.T) {
	cfg := Default()
	cfg.Sync.RemoteWiki = "Other"
	cfg.Sync.Direction = "down"
	cfg.Sync.Workers = 3
	cfg.Sync.GroupList = []string{"SyncGroup"}
	cfg.RPC.RetryMax = 2

	opts, err := cfg.SyncOptions()
	if err != nil {
		t.Fatalf("SyncOptions() error = %v", err)
	}
	if opts.RemoteWiki != "Other" || opts.Direction != model.DirectionDown || opts.Workers != 3 {
		t.Errorf("SyncOptions() = %+v", opts)
	}
	if len(opts.GroupList) != 1 || opts.RPC.RetryMax != 2 {
		t.Errorf("SyncOptions() group/rpc = %v / %+v", opts.GroupList, opts.RPC)
	}
	if opts.TagWriteTimeout != tagstore.DefaultWriteTimeout {
		t.Errorf("TagWriteTimeout = %v", opts.TagWriteTimeout)
	}
}

func TestSyncOptions_InvalidDirection(t *testing.T) {
	cfg := Default()
	cfg.Sync.Direction = "sideways"

	_, err := cfg.SyncOptions()
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("SyncOptions() error = %v, want ConfigurationError", err)
	}
	if cfgErr.Field != "sync.direction" {
		t.Errorf("Field = %q", cfgErr.Field)
	}
}

func TestReadOnly(t *testing.T) {
	cfg := Default()
	cfg.Server.ReadOnlyPages = []string{"FrontPage", "Admin/*"}

	tests := []struct {
		page string
		want bool
	}{
		{"FrontPage", true},
		{"Admin/Users", true},
		{"Admin/Users/Sub", false},
		{"Other", false},
	}
	for _, tt := range tests {
		if got := cfg.ReadOnly(tt.page); got != tt.want {
			t.Errorf("ReadOnly(%q) = %v, want %v", tt.page, got, tt.want)
		}
	}
}

func TestInterwikiSource(t *testing.T) {
	cfg := Default()
	cfg.Wiki.InterwikiName = "Home"
	cfg.Wiki.URL = "http://home.example/"
	cfg.Interwiki.MapFiles = []string{"/etc/intermap.txt"}

	src := cfg.InterwikiSource()
	if src.HomeName != "Home" || src.HomeURL != "http://home.example/" {
		t.Errorf("InterwikiSource() home = %q %q", src.HomeName, src.HomeURL)
	}
	if len(src.Files) != 1 || src.Files[0] != "/etc/intermap.txt" {
		t.Errorf("InterwikiSource() files = %v", src.Files)
	}
}
