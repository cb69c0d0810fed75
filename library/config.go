// CLAUDE:SUMMARY Configuration structs and YAML loader for the chapter library.
package library

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/chapterkb/docpipe"
	"github.com/hazyhaar/chapterkb/render"
	"github.com/hazyhaar/chapterkb/shield"
)

// Config holds all library configuration.
type Config struct {
	ChaptersDir string         `yaml:"chapters_dir"`
	BookID      string         `yaml:"book_id"`
	Cache       CacheConfig    `yaml:"cache"`
	Chunk       ChunkConfig    `yaml:"chunk"`
	Extract     docpipe.Config `yaml:"extract"`
	Render      RenderConfig   `yaml:"render"`
	OCR         OCRConfig      `yaml:"ocr"`
	Search      SearchConfig   `yaml:"search"`
	HTTP        HTTPConfig     `yaml:"http"`
	Watch       WatchConfig    `yaml:"watch"`

	Logger *slog.Logger `yaml:"-"`
}

// CacheConfig selects where extraction results are kept.
type CacheConfig struct {
	Backend string `yaml:"backend"` // "file" or "sqlite"
	Dir     string `yaml:"dir"`     // JSON records and page images
	DBPath  string `yaml:"db_path"` // sqlite backend only

	// TraceSQL logs every cache statement (sqlite backend only).
	TraceSQL bool `yaml:"trace_sql"`
}

// ChunkConfig controls chunking.
type ChunkConfig struct {
	Size      int `yaml:"size"`
	MaxImages int `yaml:"max_images"` // per chunk
}

// RenderConfig enables page rendering.
type RenderConfig struct {
	Enabled bool           `yaml:"enabled"`
	Options render.Options `yaml:",inline"`
}

// OCRConfig enables the OCR fallback. It needs a binary built with -tags ocr.
type OCRConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Language string `yaml:"language"`
}

// SearchConfig controls ranking.
type SearchConfig struct {
	MetadataBoost bool `yaml:"metadata_boost"`
	SnippetWidth  int  `yaml:"snippet_width"`
	SkipStopwords bool `yaml:"skip_stopwords"` // leave English stopwords out of metadata scoring
}

// HTTPConfig configures the JSON API.
type HTTPConfig struct {
	Addr      string           `yaml:"addr"`
	MaxBody   int64            `yaml:"max_body"`   // default 64 KiB
	RateLimit shield.RateLimit `yaml:"rate_limit"` // off unless max_requests > 0
}

// WatchConfig enables background extraction of new and modified chapters.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"` // default 5s
	Debounce time.Duration `yaml:"debounce"` // default 2s, negative disables
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	c := Config{
		Render: RenderConfig{Enabled: true},
		Search: SearchConfig{MetadataBoost: true},
	}
	c.defaults()
	return c
}

func (c *Config) defaults() {
	if c.ChaptersDir == "" {
		c.ChaptersDir = "chapters"
	}
	if c.BookID == "" {
		c.BookID = filepath.Base(filepath.Clean(c.ChaptersDir))
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = BackendFile
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "cache"
	}
	if c.Cache.DBPath == "" {
		c.Cache.DBPath = filepath.Join(c.Cache.Dir, "chapters.db")
	}
	if c.Extract.MaxFileSize <= 0 {
		c.Extract.MaxFileSize = 100 * 1024 * 1024
	}
	if c.OCR.Language == "" {
		c.OCR.Language = "eng"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Watch.Interval <= 0 {
		c.Watch.Interval = 5 * time.Second
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("library: unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

// LoadConfigFile reads a YAML config file over DefaultConfig, so absent keys
// keep their defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.BookID = ""
	cfg.Cache.DBPath = ""
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("library: parse config: %w", err)
	}
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
