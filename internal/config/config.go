package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dues-dev/dues/internal/importer"
	"github.com/dues-dev/dues/internal/model"
)

// FileName is the project configuration file in the project root.
const FileName = "dues.yaml"

// Store drivers.
const (
	DriverFiles    = "files"
	DriverPostgres = "postgres"
)

// Config represents the top-level dues.yaml configuration.
type Config struct {
	Organization OrganizationConfig `yaml:"organization"`
	Store        StoreConfig        `yaml:"store"`
	Import       ImportConfig       `yaml:"import"`
	Logging      LoggingConfig      `yaml:"logging"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

// OrganizationConfig identifies the association.
type OrganizationConfig struct {
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
}

// StoreConfig selects where members, fees and payments live.
type StoreConfig struct {
	Driver string `yaml:"driver"`        // "files" or "postgres"
	Dir    string `yaml:"dir,omitempty"` // files driver, relative to the project root
	DSN    string `yaml:"dsn,omitempty"` // postgres driver; DATABASE_URL if empty
}

// ImportConfig controls the payment importers.
type ImportConfig struct {
	Dir             string     `yaml:"dir"`
	SmallFileMethod string     `yaml:"small_file_method"`
	Bulk            BulkConfig `yaml:"bulk"`
}

// BulkConfig controls the accounting-export importer.
type BulkConfig struct {
	Aliases         map[string]string `yaml:"aliases,omitempty"`
	Sentinels       []string          `yaml:"sentinels,omitempty"`
	DefaultMethod   string            `yaml:"default_method,omitempty"`
	CorrectionsFile string            `yaml:"corrections_file,omitempty"` // built-in table if empty
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level         string `yaml:"level"`  // debug, info, warn, error
	Format        string `yaml:"format"` // text or json
	IncludeCaller bool   `yaml:"include_caller,omitempty"`
}

// TelemetryConfig controls trace export. Tracing is off without an endpoint.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty"` // OTLP/HTTP host:port
	Insecure    bool   `yaml:"insecure,omitempty"`
	ServiceName string `yaml:"service_name"`
}

// Load reads a dues.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
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

// Default returns a Config with sensible defaults for a new project.
func Default(orgName string) *Config {
	bulk := importer.DefaultBulkConfig()
	return &Config{
		Organization: OrganizationConfig{
			Name:     orgName,
			Currency: "EUR",
		},
		Store: StoreConfig{
			Driver: DriverFiles,
			Dir:    ".",
		},
		Import: ImportConfig{
			Dir:             "import",
			SmallFileMethod: model.MethodBankCollection,
			Bulk: BulkConfig{
				Aliases:   bulk.Aliases,
				Sentinels: bulk.Sentinels,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "dues",
		},
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "", DriverFiles, DriverPostgres:
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// DatabaseURL returns the Postgres DSN, falling back to $DATABASE_URL.
func (c *Config) DatabaseURL() (string, error) {
	if c.Store.DSN != "" {
		return c.Store.DSN, nil
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn, nil
	}
	return "", errors.New("store.dsn is empty and DATABASE_URL is not set")
}

// StoreDir returns the files-driver directory, resolved against root.
func (c *Config) StoreDir(root string) string {
	return resolve(root, c.Store.Dir)
}

// ImportDir returns the import inbox, resolved against root.
func (c *Config) ImportDir(root string) string {
	dir := c.Import.Dir
	if dir == "" {
		dir = "import"
	}
	return resolve(root, dir)
}

// Importer builds the importer settings, loading the correction table
// from Import.Bulk.CorrectionsFile (relative to root) when set.
func (c *Config) Importer(root string) (importer.Config, error) {
	cfg := importer.DefaultConfig()
	if c.Import.SmallFileMethod != "" {
		cfg.SmallFileMethod = c.Import.SmallFileMethod
	}
	b := c.Import.Bulk
	if b.Aliases != nil {
		cfg.Bulk.Aliases = b.Aliases
	}
	if b.Sentinels != nil {
		cfg.Bulk.Sentinels = b.Sentinels
	}
	cfg.Bulk.DefaultMethod = b.DefaultMethod
	if b.CorrectionsFile != "" {
		table, err := importer.LoadCorrections(resolve(root, b.CorrectionsFile))
		if err != nil {
			return importer.Config{}, err
		}
		cfg.Bulk.Corrections = table
	}
	return cfg, nil
}

func resolve(root, path string) string {
	if path == "" {
		return root
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
