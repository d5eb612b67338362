package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/aevon-lab/tally/internal/core/aggregation"
	"github.com/aevon-lab/tally/internal/core/storage"
	"github.com/aevon-lab/tally/internal/ledger"
)

// Record source types.
const (
	SourceFile     = "file"
	SourceDatabase = "database"
	SourceSheets   = "sheets"
	SourceNone     = "none"
)

// Report output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
	OutputXLSX = "xlsx"
)

const envPrefix = "TALLY_"

// Config represents the top-level application config.
type Config struct {
	Source      SourceConfig      `koanf:"source"`
	Aggregation AggregationConfig `koanf:"aggregation"`
	Output      OutputConfig      `koanf:"output"`
	Server      ServerConfig      `koanf:"server"`
	AMQP        AMQPConfig        `koanf:"amqp"`
	Log         LogConfig         `koanf:"log"`
}

// SourceConfig selects where the ledger is read from.
type SourceConfig struct {
	Type     string         `koanf:"type"` // file | database | sheets | none
	File     FileConfig     `koanf:"file"`
	Database DatabaseConfig `koanf:"database"`
	Sheets   SheetsConfig   `koanf:"sheets"`
}

type FileConfig struct {
	Path      string `koanf:"path"`
	Format    string `koanf:"format"` // csv | xlsx; empty guesses from the extension
	Delimiter string `koanf:"delimiter"`
	Sheet     string `koanf:"sheet"`
}

// LedgerOptions converts the file settings into parser options.
func (c FileConfig) LedgerOptions() ledger.Options {
	opts := ledger.Options{Format: c.Format, Sheet: c.Sheet}
	if c.Delimiter != "" {
		opts.Delimiter, _ = utf8.DecodeRuneInString(c.Delimiter)
	}
	return opts
}

type DatabaseConfig struct {
	Driver       string `koanf:"driver"` // postgres | sqlite
	DSN          string `koanf:"dsn"`
	Table        string `koanf:"table"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type SheetsConfig struct {
	SpreadsheetID   string `koanf:"spreadsheet_id"`
	Range           string `koanf:"range"`
	CredentialsFile string `koanf:"credentials_file"`
	CredentialsJSON string `koanf:"credentials_json"`
}

type AggregationConfig struct {
	Reports      []string `koanf:"reports"` // empty runs every report
	StrictMonths bool     `koanf:"strict_months"`
	MinSeed      string   `koanf:"min_seed"` // zero | first
}

// Options converts the aggregation settings into engine options.
func (c AggregationConfig) Options() aggregation.Options {
	return aggregation.Options{StrictMonths: c.StrictMonths, MinSeed: c.MinSeed}
}

type OutputConfig struct {
	Format   string `koanf:"format"`   // text | json | yaml | xlsx
	Path     string `koanf:"path"`     // empty writes to stdout
	Interval string `koanf:"interval"` // empty or 0 runs once
}

// EffectiveInterval returns the regeneration interval, 0 when reports run once.
// Validate must have accepted the config.
func (c OutputConfig) EffectiveInterval() time.Duration {
	if c.Interval == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Interval)
	return d
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type AMQPConfig struct {
	URL              string `koanf:"url"`
	Exchange         string `koanf:"exchange"`
	Queue            string `koanf:"queue"`
	RoutingKey       string `koanf:"routing_key"`
	ResultRoutingKey string `koanf:"result_routing_key"`
	Prefetch         int    `koanf:"prefetch"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

func (c *Config) Validate() error {
	if err := c.Source.validate(); err != nil {
		return err
	}

	for _, name := range c.Aggregation.Reports {
		if !aggregation.ValidReport(name) {
			return fmt.Errorf("unknown aggregation.reports entry %q", name)
		}
	}
	switch c.Aggregation.MinSeed {
	case "", aggregation.MinSeedZero, aggregation.MinSeedFirst:
	default:
		return fmt.Errorf("invalid aggregation.min_seed %q (must be zero or first)", c.Aggregation.MinSeed)
	}

	switch c.Output.Format {
	case OutputText, OutputJSON, OutputYAML:
	case OutputXLSX:
		if strings.TrimSpace(c.Output.Path) == "" {
			return fmt.Errorf("output.path is required for xlsx output")
		}
	default:
		return fmt.Errorf("invalid output.format %q", c.Output.Format)
	}
	if c.Output.Interval != "" {
		interval, err := time.ParseDuration(c.Output.Interval)
		if err != nil {
			return fmt.Errorf("invalid output.interval %q: %w", c.Output.Interval, err)
		}
		if interval < 0 {
			return fmt.Errorf("output.interval must be >= 0")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if c.AMQP.URL != "" {
		if strings.TrimSpace(c.AMQP.Exchange) == "" {
			return fmt.Errorf("amqp.exchange is required")
		}
		if strings.TrimSpace(c.AMQP.Queue) == "" {
			return fmt.Errorf("amqp.queue is required")
		}
		if strings.TrimSpace(c.AMQP.ResultRoutingKey) == "" {
			return fmt.Errorf("amqp.result_routing_key is required")
		}
		if c.AMQP.Prefetch <= 0 {
			return fmt.Errorf("amqp.prefetch must be > 0")
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q (must be text or json)", c.Log.Format)
	}

	return nil
}

func (c SourceConfig) validate() error {
	switch c.Type {
	case SourceNone:
	case SourceFile:
		if strings.TrimSpace(c.File.Path) == "" {
			return fmt.Errorf("source.file.path is required")
		}
		if !ledger.ValidFormat(c.File.Format) {
			return fmt.Errorf("invalid source.file.format %q (must be csv or xlsx)", c.File.Format)
		}
		if c.File.Delimiter != "" && utf8.RuneCountInString(c.File.Delimiter) != 1 {
			return fmt.Errorf("source.file.delimiter must be a single character, got %q", c.File.Delimiter)
		}
	case SourceDatabase:
		db := c.Database
		if db.Driver != "postgres" && db.Driver != "sqlite" {
			return fmt.Errorf("unsupported source.database.driver %q", db.Driver)
		}
		if strings.TrimSpace(db.DSN) == "" {
			return fmt.Errorf("source.database.dsn is required")
		}
		if !storage.ValidTableName(db.Table) {
			return fmt.Errorf("invalid source.database.table %q", db.Table)
		}
		if db.MaxOpenConns <= 0 {
			return fmt.Errorf("source.database.max_open_conns must be > 0")
		}
		if db.MaxIdleConns <= 0 {
			return fmt.Errorf("source.database.max_idle_conns must be > 0")
		}
	case SourceSheets:
		if strings.TrimSpace(c.Sheets.SpreadsheetID) == "" {
			return fmt.Errorf("source.sheets.spreadsheet_id is required")
		}
		if strings.TrimSpace(c.Sheets.Range) == "" {
			return fmt.Errorf("source.sheets.range is required")
		}
		if c.Sheets.CredentialsFile == "" && c.Sheets.CredentialsJSON == "" {
			return fmt.Errorf("source.sheets.credentials_file or source.sheets.credentials_json is required")
		}
	default:
		return fmt.Errorf("unsupported source.type %q", c.Type)
	}
	return nil
}

// Load reads .env (when present), then defaults, the config file and TALLY_ env vars, and validates the result.
// Nested keys map from env with a double underscore: TALLY_SOURCE__FILE__PATH sets source.file.path.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	defaults := map[string]interface{}{
		"source.type":                    SourceFile,
		"source.file.path":               "./sales.txt",
		"source.file.format":             "",
		"source.file.delimiter":          ",",
		"source.database.driver":         "postgres",
		"source.database.table":          "sales_ledger",
		"source.database.max_open_conns": 10,
		"source.database.max_idle_conns": 5,
		"source.database.auto_migrate":   false,
		"source.sheets.range":            "Sheet1",
		"aggregation.reports":            []string{},
		"aggregation.strict_months":      false,
		"aggregation.min_seed":           aggregation.MinSeedZero,
		"output.format":                  OutputText,
		"output.path":                    "",
		"output.interval":                "",
		"server.port":                    8080,
		"server.host":                    "0.0.0.0",
		"server.max_body_size_mb":        10,
		"server.mode":                    "release",
		"amqp.exchange":                  "tally",
		"amqp.queue":                     "tally.ledgers",
		"amqp.routing_key":               "ledger.submitted",
		"amqp.result_routing_key":        "report.ready",
		"amqp.prefetch":                  1,
		"log.level":                      "info",
		"log.format":                     "text",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv exports the variables of path into the process environment without overriding existing ones.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}
