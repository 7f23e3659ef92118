// Package config loads cukai settings from defaults, an optional YAML file,
// CUKAI_* environment variables and command line flags, in rising order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dnswd/cukai/internal/tax"
)

const (
	EnvPrefix      = "CUKAI"
	DefaultName    = "cukai"
	DefaultFile    = "cukai.yaml"
	BackendCSV     = "csv"
	BackendPG      = "postgres"
	BackendMemory  = "memory"
	DefaultTopic   = "cukai.assessments"
	DefaultLevel   = "warn"
	DefaultLogPath = "stderr"
)

var ErrUnknownBackend = errors.New("unknown records backend")

type Config struct {
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Records RecordsConfig `mapstructure:"records" yaml:"records"`
	Events  EventsConfig  `mapstructure:"events" yaml:"events"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Reliefs ReliefsConfig `mapstructure:"reliefs" yaml:"reliefs"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Output string `mapstructure:"output" yaml:"output"`
}

type RecordsConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	File        string `mapstructure:"file" yaml:"file"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

// EventsConfig enables the Kafka publisher when Brokers is non-empty.
type EventsConfig struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

// MetricsConfig.Textfile, when set, receives a Prometheus text exposition on exit.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

type ReliefsConfig struct {
	EnforceCaps bool           `mapstructure:"enforce_caps" yaml:"enforce_caps"`
	Categories  []ReliefConfig `mapstructure:"categories" yaml:"categories"`
}

type ReliefConfig struct {
	Key       string  `mapstructure:"key" yaml:"key"`
	Label     string  `mapstructure:"label" yaml:"label"`
	Amount    float64 `mapstructure:"amount" yaml:"amount,omitempty"`
	Cap       float64 `mapstructure:"cap" yaml:"cap,omitempty"`
	PerUnit   bool    `mapstructure:"per_unit" yaml:"per_unit,omitempty"`
	Mandatory bool    `mapstructure:"mandatory" yaml:"mandatory,omitempty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", DefaultLevel)
	v.SetDefault("log.output", DefaultLogPath)
	v.SetDefault("records.backend", BackendCSV)
	v.SetDefault("records.file", "tax_records.csv")
	v.SetDefault("records.postgres_dsn", "")
	v.SetDefault("events.brokers", []string{})
	v.SetDefault("events.topic", DefaultTopic)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("reliefs.enforce_caps", false)
}

// Defaults returns the built-in configuration with the relief catalog filled in.
func Defaults() *Config {
	return &Config{
		Log:     LogConfig{Level: DefaultLevel, Output: DefaultLogPath},
		Records: RecordsConfig{Backend: BackendCSV, File: "tax_records.csv"},
		Events:  EventsConfig{Topic: DefaultTopic},
		Reliefs: ReliefsConfig{Categories: fromReliefs(tax.DefaultReliefs())},
	}
}

// Load reads configuration into a Config. An empty path searches the working
// directory for cukai.yaml and carries on without it if absent. Flags should
// already be bound on v.
func Load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Reliefs.Categories) == 0 {
		cfg.Reliefs.Categories = fromReliefs(tax.DefaultReliefs())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Records.Backend {
	case BackendCSV, BackendMemory:
	case BackendPG:
		if strings.TrimSpace(c.Records.PostgresDSN) == "" {
			return fmt.Errorf("records.postgres_dsn is required for the %s backend", BackendPG)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Records.Backend)
	}
	if len(c.Events.Brokers) > 0 && c.Events.Topic == "" {
		return errors.New("events.topic is required when brokers are set")
	}
	if err := tax.ValidateReliefs(c.ReliefCatalog()); err != nil {
		return fmt.Errorf("reliefs: %w", err)
	}
	return nil
}

// ReliefCatalog converts the configured categories for the tax package.
func (c *Config) ReliefCatalog() []tax.Relief {
	out := make([]tax.Relief, 0, len(c.Reliefs.Categories))
	for _, r := range c.Reliefs.Categories {
		out = append(out, tax.Relief{
			Key:       r.Key,
			Label:     r.Label,
			Amount:    decimal.NewFromFloat(r.Amount),
			Cap:       decimal.NewFromFloat(r.Cap),
			PerUnit:   r.PerUnit,
			Mandatory: r.Mandatory,
		})
	}
	return out
}

func fromReliefs(rs []tax.Relief) []ReliefConfig {
	out := make([]ReliefConfig, 0, len(rs))
	for _, r := range rs {
		out = append(out, ReliefConfig{
			Key:       r.Key,
			Label:     r.Label,
			Amount:    r.Amount.InexactFloat64(),
			Cap:       r.Cap.InexactFloat64(),
			PerUnit:   r.PerUnit,
			Mandatory: r.Mandatory,
		})
	}
	return out
}

// Marshal renders c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteTemplate writes the default configuration to path. An existing file
// is left untouched and reported via os.ErrExist.
func WriteTemplate(path string) error {
	b, err := Defaults().Marshal()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString("# cukai configuration. Environment variables CUKAI_<SECTION>_<KEY> override these values.\n"); err != nil {
		return err
	}
	_, err = f.Write(b)
	return err
}
