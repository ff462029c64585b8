package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store types.
const (
	FileStoreLocal = "local"
	FileStoreS3    = "s3"

	TableStoreCSV      = "csv"
	TableStoreSQLite   = "sqlite3"
	TableStorePgx      = "pgx"
	TableStorePostgres = "postgres"
)

// Config represents the top-level ledgerfeed.yaml configuration.
type Config struct {
	TimeZone    string                      `yaml:"time_zone"`
	Concurrency int                         `yaml:"concurrency,omitempty"`
	RunTimeout  time.Duration               `yaml:"run_timeout,omitempty"`
	RunLog      string                      `yaml:"run_log,omitempty"`
	Retry       RetryConfig                 `yaml:"retry"`
	FileStores  map[string]FileStoreConfig  `yaml:"file_stores"`
	TableStores map[string]TableStoreConfig `yaml:"table_stores"`
	Feeds       []FeedConfig                `yaml:"feeds"`
}

// RetryConfig bounds retries of remote calls. Attempts of 1 disables retry.
type RetryConfig struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay,omitempty"`
	MaxDelay  time.Duration `yaml:"max_delay,omitempty"`
}

// FileStoreConfig describes where source files are listed from.
type FileStoreConfig struct {
	Type      string `yaml:"type"`
	Root      string `yaml:"root,omitempty"` // local: base dir for locations
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
}

// TableStoreConfig describes a destination of rows.
type TableStoreConfig struct {
	Type        string `yaml:"type"`
	Path        string `yaml:"path,omitempty"` // csv: workbook dir, sqlite3: database file
	DSN         string `yaml:"dsn,omitempty"`  // pgx, postgres
	OrderColumn string `yaml:"order_column,omitempty"`
}

// FeedConfig maps one source location onto one destination table.
type FeedConfig struct {
	Name         string `yaml:"name,omitempty"`
	Table        string `yaml:"table"`
	Source       string `yaml:"source"`
	Archive      string `yaml:"archive"`
	DateColumn   string `yaml:"date_column"`
	MetadataRows int    `yaml:"metadata_rows,omitempty"`
	TableStore   string `yaml:"table_store,omitempty"`
	FileStore    string `yaml:"file_store,omitempty"`
	AmountColumn string `yaml:"amount_column,omitempty"`
}

// DisplayName is the feed name used in logs, defaulting to the table.
func (f FeedConfig) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.Table
}

// Load reads and validates a ledgerfeed.yaml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a starter Config: one local inbox, one CSV workbook and a
// single example feed.
func Default() *Config {
	return &Config{
		TimeZone: "UTC",
		RunLog:   "logs/run-log.csv",
		Retry: RetryConfig{
			Attempts:  1,
			BaseDelay: 500 * time.Millisecond,
			MaxDelay:  10 * time.Second,
		},
		FileStores: map[string]FileStoreConfig{
			"local": {Type: FileStoreLocal, Root: "."},
		},
		TableStores: map[string]TableStoreConfig{
			"workbook": {Type: TableStoreCSV, Path: "workbook"},
		},
		Feeds: []FeedConfig{
			{
				Name:         "Checking",
				Table:        "Checking",
				Source:       "import/checking",
				Archive:      "import/checking/processed",
				DateColumn:   "Date",
				MetadataRows: 1,
				AmountColumn: "Amount",
			},
		},
	}
}

func (c *Config) applyDefaults() {
	if c.TimeZone == "" {
		c.TimeZone = "UTC"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = 1
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = 500 * time.Millisecond
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = 10 * time.Second
	}
}

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time_zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// FeedByName returns the feed whose display name is name.
func (c *Config) FeedByName(name string) (FeedConfig, bool) {
	for _, f := range c.Feeds {
		if f.DisplayName() == name {
			return f, true
		}
	}
	return FeedConfig{}, false
}

// TableStoreFor returns the name of the table store a feed writes to.
func (c *Config) TableStoreFor(f FeedConfig) string {
	return storeFor(f.TableStore, c.TableStores)
}

// FileStoreFor returns the name of the file store a feed reads from.
func (c *Config) FileStoreFor(f FeedConfig) string {
	return storeFor(f.FileStore, c.FileStores)
}

func storeFor[T any](name string, stores map[string]T) string {
	if name != "" || len(stores) != 1 {
		return name
	}
	for k := range stores {
		return k
	}
	return ""
}

// Validate checks the configuration for errors that make a run impossible.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Retry.Attempts > 10 {
		errs = append(errs, fmt.Errorf("retry.attempts %d exceeds 10", c.Retry.Attempts))
	}

	for name, fs := range c.FileStores {
		switch fs.Type {
		case FileStoreLocal, FileStoreS3:
		default:
			errs = append(errs, fmt.Errorf("file store %q: unknown type %q", name, fs.Type))
		}
	}
	for name, ts := range c.TableStores {
		switch ts.Type {
		case TableStoreCSV, TableStoreSQLite:
			if ts.Path == "" {
				errs = append(errs, fmt.Errorf("table store %q: path is required", name))
			}
		case TableStorePgx, TableStorePostgres:
			if ts.DSN == "" {
				errs = append(errs, fmt.Errorf("table store %q: dsn is required", name))
			}
		default:
			errs = append(errs, fmt.Errorf("table store %q: unknown type %q", name, ts.Type))
		}
	}

	if len(c.Feeds) == 0 {
		errs = append(errs, errors.New("no feeds configured"))
	}
	seen := make(map[string]bool)
	for i, f := range c.Feeds {
		errs = append(errs, c.validateFeed(i, f)...)
		name := f.DisplayName()
		if name != "" && seen[name] {
			errs = append(errs, fmt.Errorf("feed %d: duplicate name %q", i+1, name))
		}
		seen[name] = true
	}

	return errors.Join(errs...)
}

func (c *Config) validateFeed(i int, f FeedConfig) []error {
	var errs []error
	where := fmt.Sprintf("feed %d (%s)", i+1, f.DisplayName())

	required := []struct{ field, value string }{
		{"table", f.Table},
		{"source", f.Source},
		{"archive", f.Archive},
		{"date_column", f.DateColumn},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("%s: %s is required", where, r.field))
		}
	}
	if f.MetadataRows < 0 {
		errs = append(errs, fmt.Errorf("%s: metadata_rows must not be negative", where))
	}
	if f.Source != "" && strings.Trim(f.Source, "/") == strings.Trim(f.Archive, "/") {
		errs = append(errs, fmt.Errorf("%s: archive must differ from source", where))
	}

	if ts := c.TableStoreFor(f); ts == "" {
		errs = append(errs, fmt.Errorf("%s: table_store is required when %d table stores are configured", where, len(c.TableStores)))
	} else if _, ok := c.TableStores[ts]; !ok {
		errs = append(errs, fmt.Errorf("%s: unknown table_store %q", where, ts))
	}
	if fs := c.FileStoreFor(f); fs == "" {
		errs = append(errs, fmt.Errorf("%s: file_store is required when %d file stores are configured", where, len(c.FileStores)))
	} else if _, ok := c.FileStores[fs]; !ok {
		errs = append(errs, fmt.Errorf("%s: unknown file_store %q", where, fs))
	}
	return errs
}
