package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/billbox/internal/logger"
	"github.com/cleared-dev/billbox/internal/model"
	"github.com/cleared-dev/billbox/internal/ocr"
	"github.com/cleared-dev/billbox/internal/reconcile"
	"github.com/cleared-dev/billbox/internal/store"
)

// FileName is the config file created by `billbox init`.
const FileName = "billbox.yaml"

// Config represents the top-level billbox.yaml configuration.
type Config struct {
	User     UserConfig       `yaml:"user"`
	Cashback CashbackConfig   `yaml:"cashback"`
	Ledger   LedgerConfig     `yaml:"ledger"`
	Storage  StorageConfig    `yaml:"storage"`
	OCR      OCRConfig        `yaml:"ocr"`
	Server   ServerConfig     `yaml:"server"`
	Log      logger.LogConfig `yaml:"log"`
}

// UserConfig identifies the local user and their role.
type UserConfig struct {
	ID   string     `yaml:"id"`
	Role model.Role `yaml:"role"` // tenant or landlord
}

// CashbackConfig holds the reward rates credited on payment.
type CashbackConfig struct {
	RentRate  decimal.Decimal `yaml:"rent_rate"`
	OtherRate decimal.Decimal `yaml:"other_rate"`
}

// LedgerConfig controls classification rules and dashboard views.
type LedgerConfig struct {
	RulesFile    string `yaml:"rules_file"`
	UpcomingDays int    `yaml:"upcoming_days"`
}

// StorageConfig selects where bills and payments are kept.
type StorageConfig struct {
	Driver string `yaml:"driver"` // csv, sqlite or postgres
	Dir    string `yaml:"dir,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

// OCRConfig configures Google Cloud Vision.
type OCRConfig struct {
	CredentialsFile string `yaml:"credentials_file,omitempty"`
	CredentialsJSON string `yaml:"-"` // env only, never written to disk
}

// ServerConfig configures `billbox serve`.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins,omitempty"` // empty allows any origin
}

// Load reads a billbox.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
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
func Default(userID string) *Config {
	if userID == "" {
		userID = "default"
	}
	rates := reconcile.DefaultRates()
	return &Config{
		User: UserConfig{
			ID:   userID,
			Role: model.RoleTenant,
		},
		Cashback: CashbackConfig{
			RentRate:  rates.Rent,
			OtherRate: rates.Other,
		},
		Ledger: LedgerConfig{
			RulesFile:    "rules/categories.yaml",
			UpcomingDays: 30,
		},
		Storage: StorageConfig{
			Driver: store.DriverCSV,
			Dir:    "data",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: logger.DefaultConfig(),
	}
}

// ApplyEnv loads .env files (missing ones are ignored) and overrides config
// values from the environment.
func (c *Config) ApplyEnv(envFiles ...string) error {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}

	setString(&c.User.ID, "BILLBOX_USER")
	if v := os.Getenv("BILLBOX_ROLE"); v != "" {
		c.User.Role = model.Role(v)
	}
	setString(&c.Storage.Driver, "BILLBOX_STORAGE_DRIVER")
	setString(&c.Storage.Dir, "BILLBOX_DATA_DIR")
	setString(&c.Storage.DSN, "DATABASE_URL")
	setString(&c.Ledger.RulesFile, "BILLBOX_RULES_FILE")
	if v := os.Getenv("BILLBOX_UPCOMING_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BILLBOX_UPCOMING_DAYS: %w", err)
		}
		c.Ledger.UpcomingDays = n
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Addr = ":" + v
	}
	setString(&c.Server.Addr, "BILLBOX_ADDR")
	if v := os.Getenv("BILLBOX_CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitAndTrim(v)
	}
	setString(&c.OCR.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&c.OCR.CredentialsJSON, "GOOGLE_CREDENTIALS")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
	setString(&c.Log.Output, "LOG_OUTPUT")
	return nil
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.User.ID == "" {
		return fmt.Errorf("user.id is required")
	}
	if c.User.Role != model.RoleTenant && c.User.Role != model.RoleLandlord {
		return fmt.Errorf("user.role %q must be tenant or landlord", c.User.Role)
	}
	if c.Cashback.RentRate.IsNegative() || c.Cashback.OtherRate.IsNegative() {
		return fmt.Errorf("cashback rates must not be negative")
	}
	if c.Ledger.UpcomingDays < 0 {
		return fmt.Errorf("ledger.upcoming_days must not be negative")
	}
	switch c.Storage.Driver {
	case store.DriverCSV:
	case store.DriverSQLite, store.DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the %s driver", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.driver %q must be csv, sqlite or postgres", c.Storage.Driver)
	}
	return nil
}

// Rates returns the configured cashback rates.
func (c *Config) Rates() reconcile.Rates {
	return reconcile.Rates{Rent: c.Cashback.RentRate, Other: c.Cashback.OtherRate}
}

// StoreOptions returns the storage backend options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{Driver: c.Storage.Driver, Dir: c.Storage.Dir, DSN: c.Storage.DSN}
}

// Credentials returns the Vision credentials.
func (c *Config) Credentials() ocr.Credentials {
	return ocr.Credentials{JSON: c.OCR.CredentialsJSON, File: c.OCR.CredentialsFile}
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
