package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/ekaya-inc/ekaya-introspect/pkg/apperrors"
)

// Config holds all configuration for ekaya-introspect.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Version string `yaml:"-"` // Set at load time, not from config

	// Warehouse selects the dialect used for introspection.
	Warehouse WarehouseConfig `yaml:"warehouse"`

	Snowflake SnowflakeConfig `yaml:"snowflake"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	SQLServer SQLServerConfig `yaml:"sqlserver"`

	// Extraction tunes sampling and session behavior.
	Extraction ExtractionConfig `yaml:"extraction"`

	Log LogConfig `yaml:"log"`
}

// WarehouseConfig selects the warehouse dialect.
type WarehouseConfig struct {
	// Type is a registered dialect: "snowflake", "postgres" or "sqlserver".
	Type string `yaml:"type" env:"WAREHOUSE_TYPE" env-default:"snowflake"`
}

// SnowflakeConfig holds Snowflake credentials.
// Account is the account identifier; it may also be passed on the command line.
type SnowflakeConfig struct {
	Account   string `yaml:"account" env:"SNOWFLAKE_ACCOUNT" env-default:""`
	User      string `yaml:"user" env:"SNOWFLAKE_USER" env-default:""`
	Password  string `yaml:"-" env:"SNOWFLAKE_PASSWORD"` // Secret - not in YAML
	Role      string `yaml:"role" env:"SNOWFLAKE_ROLE" env-default:""`
	Warehouse string `yaml:"warehouse" env:"SNOWFLAKE_WAREHOUSE" env-default:""`
	// Host is optional; the driver derives it from the account when empty.
	Host string `yaml:"host" env:"SNOWFLAKE_HOST" env-default:""`
	Port int    `yaml:"port" env:"SNOWFLAKE_PORT" env-default:"0"`
}

// Validate resolves the mandatory Snowflake credentials and reports the first
// missing one by its environment variable.
func (c *SnowflakeConfig) Validate() error {
	required := []struct {
		value, variable, description string
	}{
		{c.User, "SNOWFLAKE_USER", "snowflake user"},
		{c.Password, "SNOWFLAKE_PASSWORD", "snowflake password"},
		{c.Role, "SNOWFLAKE_ROLE", "snowflake role"},
		{c.Warehouse, "SNOWFLAKE_WAREHOUSE", "snowflake warehouse"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperrors.NewConfigurationError(r.variable, r.description)
		}
	}
	return nil
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" env:"PGHOST" env-default:""`
	Port     int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User     string `yaml:"user" env:"PGUSER" env-default:""`
	Password string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"PGDATABASE" env-default:"postgres"`
	SSLMode  string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"require"`
}

// Validate reports the first missing PostgreSQL setting.
func (c *PostgresConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return apperrors.NewConfigurationError("PGHOST", "postgres host")
	}
	if strings.TrimSpace(c.User) == "" {
		return apperrors.NewConfigurationError("PGUSER", "postgres user")
	}
	return nil
}

// SQLServerConfig holds SQL Server connection settings (SQL authentication).
type SQLServerConfig struct {
	Host                   string `yaml:"host" env:"MSSQL_HOST" env-default:""`
	Port                   int    `yaml:"port" env:"MSSQL_PORT" env-default:"1433"`
	User                   string `yaml:"user" env:"MSSQL_USER" env-default:""`
	Password               string `yaml:"-" env:"MSSQL_PASSWORD"` // Secret - not in YAML
	Database               string `yaml:"database" env:"MSSQL_DATABASE" env-default:"master"`
	Encrypt                bool   `yaml:"encrypt" env:"MSSQL_ENCRYPT" env-default:"true"`
	TrustServerCertificate bool   `yaml:"trust_server_certificate" env:"MSSQL_TRUST_SERVER_CERTIFICATE" env-default:"false"`
}

// Validate reports the first missing SQL Server setting.
func (c *SQLServerConfig) Validate() error {
	required := []struct {
		value, variable, description string
	}{
		{c.Host, "MSSQL_HOST", "sql server host"},
		{c.User, "MSSQL_USER", "sql server user"},
		{c.Password, "MSSQL_PASSWORD", "sql server password"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperrors.NewConfigurationError(r.variable, r.description)
		}
	}
	return nil
}

// ExtractionConfig holds sampling and session settings.
type ExtractionConfig struct {
	// SampleSize is the number of distinct values fetched per column. 0 disables sampling.
	SampleSize int `yaml:"sample_size" env:"SAMPLE_SIZE" env-default:"3"`
	// MaxConcurrency bounds the per-table sampling fan-out and the session pool size.
	MaxConcurrency int `yaml:"max_concurrency" env:"MAX_CONCURRENCY" env-default:"4"`
	// SessionTimeoutSec is applied as the warehouse statement timeout.
	SessionTimeoutSec int `yaml:"session_timeout_sec" env:"SESSION_TIMEOUT_SEC" env-default:"120"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"` // "console" or "json"
}

// Load reads configuration from the YAML file at path (optional, skipped when
// empty) with environment variable overrides. The version parameter is
// injected at build time and set on the returned Config.
// Credentials are not validated here; each warehouse dialect validates the
// section it uses when it is constructed.
func Load(version, path string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Warehouse.Type = strings.ToLower(strings.TrimSpace(cfg.Warehouse.Type))
	return cfg, nil
}

// validate checks settings that have no sensible fallback.
func (c *Config) validate() error {
	if c.Extraction.SampleSize < 0 {
		return fmt.Errorf("sample_size must not be negative, got %d", c.Extraction.SampleSize)
	}
	if c.Extraction.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", c.Extraction.MaxConcurrency)
	}
	if c.Extraction.SessionTimeoutSec < 1 {
		return fmt.Errorf("session_timeout_sec must be at least 1, got %d", c.Extraction.SessionTimeoutSec)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log format %q: use 'console' or 'json'", c.Log.Format)
	}
	return nil
}
