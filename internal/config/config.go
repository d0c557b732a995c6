// Package config provides configuration management for wikisync.
// It supports YAML configuration files, environment variables, and sensible defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/klauern/wikisync/internal/interwiki"
	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/rpc"
	"github.com/klauern/wikisync/internal/sync"
	"github.com/klauern/wikisync/internal/tagstore"
	"github.com/klauern/wikisync/internal/util"
)

// Config represents the complete wikisync configuration.
type Config struct {
	// Wiki describes the local wiki
	Wiki WikiConfig `yaml:"wiki"`

	// Interwiki configures how interwiki names resolve to URLs
	Interwiki InterwikiConfig `yaml:"interwiki"`

	// Sync configures default synchronization behavior
	Sync SyncConfig `yaml:"sync"`

	// RPC configures the client used to reach remote wikis
	RPC RPCConfig `yaml:"rpc"`

	// Tags configures the tag log locks
	Tags TagsConfig `yaml:"tags"`

	// Server configures the RPC server exposing the local wiki
	Server ServerConfig `yaml:"server"`

	// Output configures display preferences
	Output OutputConfig `yaml:"output"`
}

// WikiConfig identifies the local wiki and where its data lives.
type WikiConfig struct {
	// InterwikiName is the name other wikis know this wiki by
	InterwikiName string `yaml:"interwiki_name"`
	// IWID is the stable instance ID. Generated on first use when empty.
	IWID string `yaml:"iwid,omitempty"`
	// URL is the base URL this wiki is served at
	URL string `yaml:"url,omitempty"`
	// DataDir holds the page database and the tag logs
	DataDir string `yaml:"data_dir"`
	// Database is the page database path (default: <data_dir>/pages.db)
	Database string `yaml:"database,omitempty"`
}

// InterwikiConfig holds the interwiki map sources.
type InterwikiConfig struct {
	// MapFiles are intermap files ("Name URL" lines, or TOML with an [interwiki] table)
	MapFiles []string `yaml:"map_files,omitempty"`
	// Entries are explicit name to URL mappings; they win over MapFiles
	Entries map[string]string `yaml:"entries,omitempty"`
}

// SyncConfig holds synchronization settings.
type SyncConfig struct {
	// RemoteWiki is the interwiki name of the wiki to synchronize with
	RemoteWiki string `yaml:"remote_wiki"`
	// LocalPrefix and RemotePrefix are stripped to form canonical page names
	LocalPrefix  string `yaml:"local_prefix,omitempty"`
	RemotePrefix string `yaml:"remote_prefix,omitempty"`
	// PageMatch is a regular expression selecting canonical page names
	PageMatch string `yaml:"page_match,omitempty"`
	// PageList names the canonical pages to synchronize
	PageList []string `yaml:"page_list,omitempty"`
	// GroupList names group pages whose members are synchronized
	GroupList []string `yaml:"group_list,omitempty"`
	// Direction is up, down or both
	Direction string `yaml:"direction"`
	// ExcludeNonWritable skips remote pages we may not write
	ExcludeNonWritable bool `yaml:"exclude_non_writable"`
	// Workers is the number of pages reconciled at once
	Workers int `yaml:"workers"`
}

// RPCConfig holds remote call settings.
type RPCConfig struct {
	// Timeout bounds each remote call
	Timeout time.Duration `yaml:"timeout"`
	// RetryMax is the number of retries for failed calls (0 disables retries)
	RetryMax     int           `yaml:"retry_max"`
	RetryWaitMin time.Duration `yaml:"retry_wait_min"`
	RetryWaitMax time.Duration `yaml:"retry_wait_max"`
}

// TagsConfig holds tag log lock settings.
type TagsConfig struct {
	ReadLockTimeout  time.Duration `yaml:"read_lock_timeout"`
	WriteLockTimeout time.Duration `yaml:"write_lock_timeout"`
}

// ServerConfig holds RPC server settings.
type ServerConfig struct {
	// Listen is the address the server listens on
	Listen string `yaml:"listen"`
	// ReadOnlyPages are glob patterns of pages remote wikis may not write
	ReadOnlyPages []string `yaml:"read_only_pages,omitempty"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Color controls color output (auto, always, never)
	Color string `yaml:"color"`
	// Verbose enables verbose output
	Verbose bool `yaml:"verbose"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Wiki: WikiConfig{
			DataDir: util.WikisyncDataPath(),
		},
		Sync: SyncConfig{
			Direction: string(model.DirectionBoth),
			Workers:   1,
		},
		RPC: RPCConfig{
			Timeout:      30 * time.Second,
			RetryMax:     0,
			RetryWaitMin: time.Second,
			RetryWaitMax: 10 * time.Second,
		},
		Tags: TagsConfig{
			ReadLockTimeout:  tagstore.DefaultReadTimeout,
			WriteLockTimeout: tagstore.DefaultWriteTimeout,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8765",
		},
		Output: OutputConfig{
			Color:   "auto",
			Verbose: false,
		},
	}
}

// configFileName is the name of the config file.
const configFileName = "config.yaml"

// iwidFileName holds the generated IWID inside the data directory.
const iwidFileName = "iwid"

// FilePath returns the path to the config file.
func FilePath() string {
	return filepath.Join(util.WikisyncPath(), configFileName)
}

// Load loads the configuration from file, merging with defaults.
// If the config file doesn't exist, returns default configuration.
func Load() (*Config, error) {
	cfg := Default()

	// #nosec G304 - configPath is constructed from trusted config directory
	data, err := os.ReadFile(FilePath())
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvironment()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", FilePath(), err)
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	return c.SaveToPath(FilePath())
}

// SaveToPath writes the configuration to a specific path.
func (c *Config) SaveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// applyEnvironment applies environment variable overrides.
// Environment variables follow the pattern WIKISYNC_<SECTION>_<KEY>.
func (c *Config) applyEnvironment() {
	// Wiki settings
	if v := os.Getenv("WIKISYNC_WIKI_INTERWIKI_NAME"); v != "" {
		c.Wiki.InterwikiName = v
	}
	if v := os.Getenv("WIKISYNC_WIKI_IWID"); v != "" {
		c.Wiki.IWID = v
	}
	if v := os.Getenv("WIKISYNC_WIKI_URL"); v != "" {
		c.Wiki.URL = v
	}
	if v := os.Getenv("WIKISYNC_WIKI_DATA_DIR"); v != "" {
		c.Wiki.DataDir = v
	}
	if v := os.Getenv("WIKISYNC_WIKI_DATABASE"); v != "" {
		c.Wiki.Database = v
	}

	// Interwiki map files - colon-separated
	if v := os.Getenv("WIKISYNC_INTERWIKI_MAP_FILES"); v != "" {
		c.Interwiki.MapFiles = splitList(v, ":")
	}

	// Sync settings
	if v := os.Getenv("WIKISYNC_SYNC_REMOTE_WIKI"); v != "" {
		c.Sync.RemoteWiki = v
	}
	if v := os.Getenv("WIKISYNC_SYNC_LOCAL_PREFIX"); v != "" {
		c.Sync.LocalPrefix = v
	}
	if v := os.Getenv("WIKISYNC_SYNC_REMOTE_PREFIX"); v != "" {
		c.Sync.RemotePrefix = v
	}
	if v := os.Getenv("WIKISYNC_SYNC_PAGE_MATCH"); v != "" {
		c.Sync.PageMatch = v
	}
	if v := os.Getenv("WIKISYNC_SYNC_PAGE_LIST"); v != "" {
		c.Sync.PageList = splitList(v, ",")
	}
	if v := os.Getenv("WIKISYNC_SYNC_GROUP_LIST"); v != "" {
		c.Sync.GroupList = splitList(v, ",")
	}
	if v := os.Getenv("WIKISYNC_SYNC_DIRECTION"); v != "" {
		c.Sync.Direction = v
	}
	if v := os.Getenv("WIKISYNC_SYNC_EXCLUDE_NON_WRITABLE"); v != "" {
		c.Sync.ExcludeNonWritable = parseBool(v)
	}
	if v := os.Getenv("WIKISYNC_SYNC_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.Workers = n
		}
	}

	// RPC settings
	if v := os.Getenv("WIKISYNC_RPC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RPC.Timeout = d
		}
	}
	if v := os.Getenv("WIKISYNC_RPC_RETRY_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.RPC.RetryMax = n
		}
	}

	// Tag lock settings
	if v := os.Getenv("WIKISYNC_TAGS_READ_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Tags.ReadLockTimeout = d
		}
	}
	if v := os.Getenv("WIKISYNC_TAGS_WRITE_LOCK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Tags.WriteLockTimeout = d
		}
	}

	// Server settings
	if v := os.Getenv("WIKISYNC_SERVER_LISTEN"); v != "" {
		c.Server.Listen = v
	}

	// Output settings
	if v := os.Getenv("WIKISYNC_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
	if v := os.Getenv("WIKISYNC_OUTPUT_VERBOSE"); v != "" {
		c.Output.Verbose = parseBool(v)
	}
}

// parseBool parses a boolean from common string representations.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// splitList splits a separated string into trimmed, non-empty items.
func splitList(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// DataDir returns the expanded data directory.
func (c *Config) DataDir() string {
	return util.ExpandPath(c.Wiki.DataDir, "")
}

// DatabasePath returns the page database location.
func (c *Config) DatabasePath() string {
	if c.Wiki.Database != "" {
		return util.ExpandPath(c.Wiki.Database, "")
	}
	return filepath.Join(c.DataDir(), "pages.db")
}

// TagRoot returns the directory holding the tag logs.
func (c *Config) TagRoot() string {
	return c.DataDir()
}

// EnsureIWID makes sure the wiki has an IWID. A configured IWID is used
// as is; otherwise the one stored in the data directory is loaded, and
// generated and stored there if there is none yet.
func (c *Config) EnsureIWID() (string, error) {
	if c.Wiki.IWID != "" {
		return c.Wiki.IWID, nil
	}
	path := filepath.Join(c.DataDir(), iwidFileName)

	// #nosec G304 - path is inside the configured data directory
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if id := strings.TrimSpace(string(data)); id != "" {
			c.Wiki.IWID = id
			return id, nil
		}
	case !errors.Is(err, os.ErrNotExist):
		return "", fmt.Errorf("read IWID: %w", err)
	}

	if err := os.MkdirAll(c.DataDir(), 0o750); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	id := uuid.NewString()
	if err := atomic.WriteFile(path, strings.NewReader(id+"\n")); err != nil {
		return "", fmt.Errorf("write IWID: %w", err)
	}
	c.Wiki.IWID = id
	return id, nil
}

// HomeIdentity returns the identity of the local wiki. Call EnsureIWID
// first.
func (c *Config) HomeIdentity() model.Identity {
	return model.Identity{IWID: c.Wiki.IWID, InterwikiName: c.Wiki.InterwikiName}
}

// InterwikiSource returns the sources the interwiki map is built from.
func (c *Config) InterwikiSource() interwiki.Source {
	return interwiki.Source{
		Files:    util.ExpandPaths(c.Interwiki.MapFiles, util.WikisyncPath()),
		Entries:  c.Interwiki.Entries,
		HomeName: c.Wiki.InterwikiName,
		HomeURL:  c.Wiki.URL,
	}
}

// ClientOptions returns the RPC client settings.
func (c *Config) ClientOptions() rpc.ClientOptions {
	return rpc.ClientOptions{
		Timeout:      c.RPC.Timeout,
		RetryMax:     c.RPC.RetryMax,
		RetryWaitMin: c.RPC.RetryWaitMin,
		RetryWaitMax: c.RPC.RetryWaitMax,
	}
}

// SyncOptions turns the configuration into the options of a run.
func (c *Config) SyncOptions() (sync.Options, error) {
	direction, err := model.ParseDirection(c.Sync.Direction)
	if err != nil {
		return sync.Options{}, &model.ConfigurationError{Field: "sync.direction", Message: err.Error()}
	}
	opts := sync.DefaultOptions()
	opts.RemoteWiki = c.Sync.RemoteWiki
	opts.LocalPrefix = c.Sync.LocalPrefix
	opts.RemotePrefix = c.Sync.RemotePrefix
	opts.PageMatch = c.Sync.PageMatch
	opts.PageList = c.Sync.PageList
	opts.GroupList = c.Sync.GroupList
	opts.Direction = direction
	opts.ExcludeNonWritable = c.Sync.ExcludeNonWritable
	opts.Workers = c.Sync.Workers
	opts.RPC = c.ClientOptions()
	opts.TagReadTimeout = c.Tags.ReadLockTimeout
	opts.TagWriteTimeout = c.Tags.WriteLockTimeout
	return opts, nil
}

// ReadOnly reports whether remote wikis may not write page.
func (c *Config) ReadOnly(page string) bool {
	for _, pattern := range c.Server.ReadOnlyPages {
		if ok, _ := path.Match(pattern, page); ok {
			return true
		}
	}
	return false
}

// Exists returns true if a config file exists.
func Exists() bool {
	_, err := os.Stat(FilePath())
	return err == nil
}
