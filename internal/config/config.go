// Package config loads the bibsearch configuration from a YAML file with
// BIBSEARCH_* environment overrides, and validates it against an embedded
// CUE schema.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/bibsearch/internal/query"
)

//go:embed schema.cue
var schemaSource string

// Config is the top-level configuration.
type Config struct {
	Library  LibraryConfig  `yaml:"library" json:"library"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Fulltext FulltextConfig `yaml:"fulltext" json:"fulltext"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Events   EventsConfig   `yaml:"events" json:"events"`
	Watch    WatchConfig    `yaml:"watch" json:"watch"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

// LibraryConfig names the library and where its entries and files live.
type LibraryConfig struct {
	Name             string   `yaml:"name" json:"name"`
	Path             string   `yaml:"path" json:"path"`
	FileDirs         []string `yaml:"file_dirs" json:"file_dirs"`
	KeywordSeparator string   `yaml:"keyword_separator" json:"keyword_separator"`
}

// StoreConfig selects the structured index backend.
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver"` // sqlite or postgres
	Path   string `yaml:"path" json:"path"`
	DSN    string `yaml:"dsn" json:"dsn"`
}

// FulltextConfig controls linked-file indexing.
type FulltextConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Dir         string `yaml:"dir" json:"dir"`
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
}

// SearchConfig holds the default search-bar switches.
type SearchConfig struct {
	CaseSensitive bool `yaml:"case_sensitive" json:"case_sensitive"`
	Regex         bool `yaml:"regex" json:"regex"`
	Fulltext      bool `yaml:"fulltext" json:"fulltext"`
}

// CacheConfig configures the Redis result cache.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	TTL      string `yaml:"ttl" json:"ttl"`
}

// EventsConfig configures the Kafka change-event consumer.
type EventsConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Brokers []string `yaml:"brokers" json:"brokers"`
	Topic   string   `yaml:"topic" json:"topic"`
	Group   string   `yaml:"group" json:"group"`
}

// WatchConfig configures the linked-file watcher.
type WatchConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Debounce string `yaml:"debounce" json:"debounce"`
}

// LoggingConfig controls log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Library: LibraryConfig{
			Name:             "default",
			Path:             "library.yaml",
			FileDirs:         []string{},
			KeywordSeparator: ",",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "bibsearch.db",
		},
		Fulltext: FulltextConfig{
			Enabled:     true,
			Dir:         "bibsearch.fulltext",
			Concurrency: 4,
		},
		Cache: CacheConfig{
			Addr: "localhost:6379",
			TTL:  "10m",
		},
		Events: EventsConfig{
			Brokers: []string{},
			Topic:   "library-events",
			Group:   "bibsearch",
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Load reads path, if not empty, over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides reads BIBSEARCH_* variables over cfg.
func applyEnvOverrides(cfg *Config) error {
	str := map[string]*string{
		"BIBSEARCH_LIBRARY_NAME":   &cfg.Library.Name,
		"BIBSEARCH_LIBRARY_PATH":   &cfg.Library.Path,
		"BIBSEARCH_STORE_DRIVER":   &cfg.Store.Driver,
		"BIBSEARCH_STORE_PATH":     &cfg.Store.Path,
		"BIBSEARCH_STORE_DSN":      &cfg.Store.DSN,
		"BIBSEARCH_FULLTEXT_DIR":   &cfg.Fulltext.Dir,
		"BIBSEARCH_REDIS_ADDR":     &cfg.Cache.Addr,
		"BIBSEARCH_REDIS_PASSWORD": &cfg.Cache.Password,
		"BIBSEARCH_KAFKA_TOPIC":    &cfg.Events.Topic,
		"BIBSEARCH_KAFKA_GROUP":    &cfg.Events.Group,
		"BIBSEARCH_LOGGING_LEVEL":  &cfg.Logging.Level,
		"BIBSEARCH_LOGGING_FORMAT": &cfg.Logging.Format,
		"BIBSEARCH_METRICS_ADDR":   &cfg.Metrics.Addr,
		"BIBSEARCH_CACHE_TTL":      &cfg.Cache.TTL,
		"BIBSEARCH_WATCH_DEBOUNCE": &cfg.Watch.Debounce,
	}
	for name, dst := range str {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	lists := map[string]*[]string{
		"BIBSEARCH_LIBRARY_FILE_DIRS": &cfg.Library.FileDirs,
		"BIBSEARCH_KAFKA_BROKERS":     &cfg.Events.Brokers,
	}
	for name, dst := range lists {
		if v := os.Getenv(name); v != "" {
			*dst = strings.Split(v, ",")
		}
	}

	bools := map[string]*bool{
		"BIBSEARCH_FULLTEXT_ENABLED": &cfg.Fulltext.Enabled,
		"BIBSEARCH_CACHE_ENABLED":    &cfg.Cache.Enabled,
		"BIBSEARCH_EVENTS_ENABLED":   &cfg.Events.Enabled,
		"BIBSEARCH_WATCH_ENABLED":    &cfg.Watch.Enabled,
		"BIBSEARCH_METRICS_ENABLED":  &cfg.Metrics.Enabled,
	}
	for name, dst := range bools {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate checks cfg against the schema.
func (c *Config) Validate() error {
	if c.Library.FileDirs == nil {
		c.Library.FileDirs = []string{}
	}
	if c.Events.Brokers == nil {
		c.Events.Brokers = []string{}
	}

	cctx := cuecontext.New()
	schema := cctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(cctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: cueerrors.Details(err, nil), Err: err}
	}
	return nil
}

// ValidationError reports a configuration that does not satisfy the schema.
type ValidationError struct {
	Details string
	Err     error
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.TrimSpace(e.Details)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Flags returns the default search flags.
func (c *Config) Flags() query.Flags {
	var f query.Flags
	if c.Search.CaseSensitive {
		f |= query.CaseSensitive
	}
	if c.Search.Regex {
		f |= query.RegularExpression
	}
	if c.Search.Fulltext {
		f |= query.Fulltext
	}
	return f
}

// CacheTTL parses the cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return mustDuration(c.Cache.TTL)
}

// WatchDebounce parses the watch debounce delay.
func (c *Config) WatchDebounce() time.Duration {
	return mustDuration(c.Watch.Debounce)
}

// mustDuration parses a duration the schema has already checked.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
