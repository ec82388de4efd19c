// Package conf loads birdnet-api2ha settings from config.yaml and the environment.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/birdnet-api2ha/internal/errors"
	"github.com/tphakala/birdnet-api2ha/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// DefaultConfigPath is used when neither --config nor BIRDNET_API2HA_CONFIG is set.
const DefaultConfigPath = "config.yaml"

// Database types.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// Burst policies for the MQTT bridge.
const (
	// BurstSkip advances the watermark to the observed maximum id, dropping
	// rows beyond the per-cycle cap.
	BurstSkip = "skip"
	// BurstResume advances the watermark only as far as the last published
	// id, so the remainder goes out on the next cycle.
	BurstResume = "resume"
)

// DefaultMQTTTopic is the topic detections are published to.
const DefaultMQTTTopic = "birdnet_api2ha/detections"

// Settings holds the complete service configuration.
type Settings struct {
	DatabasePath      string `mapstructure:"database_path" yaml:"database_path"`
	DatabaseType      string `mapstructure:"database_type" yaml:"database_type"` // sqlite or mysql
	ClipsBasePath     string `mapstructure:"clips_base_path" yaml:"clips_base_path"`
	BirdNETConfigPath string `mapstructure:"birdnet_config_path" yaml:"birdnet_config_path"`
	Timezone          string `mapstructure:"timezone" yaml:"timezone"` // "Local", "UTC" or an IANA name
	HTTPHost          string `mapstructure:"http_host" yaml:"http_host"`
	HTTPPort          int    `mapstructure:"http_port" yaml:"http_port"`
	// HTTPRateLimit is the sustained requests per second allowed per client
	// address; 0 disables limiting.
	HTTPRateLimit float64 `mapstructure:"http_rate_limit" yaml:"http_rate_limit"`

	MySQL   MySQLSettings        `mapstructure:"mysql" yaml:"mysql"`
	MQTT    MQTTSettings         `mapstructure:"mqtt" yaml:"mqtt"`
	Cache   CacheSettings        `mapstructure:"cache" yaml:"cache"`
	Metrics MetricsSettings      `mapstructure:"metrics" yaml:"metrics"`
	Logging logger.LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// ConfigFile is the file the settings were read from.
	ConfigFile string `mapstructure:"-" yaml:"-"`
	// Warnings collects non-fatal load issues for logging once a logger exists.
	Warnings []string `mapstructure:"-" yaml:"-"`
}

// MySQLSettings holds connection settings for a MySQL upstream database.
type MySQLSettings struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Database     string `mapstructure:"database" yaml:"database"`
	Username     string `mapstructure:"username" yaml:"username"`
	Password     string `mapstructure:"password" yaml:"password"`
	PasswordFile string `mapstructure:"password_file" yaml:"password_file"` // replaces Password when set
}

// MQTTSettings configures the detection bridge.
type MQTTSettings struct {
	Enabled             bool   `mapstructure:"enabled" yaml:"enabled"`
	Host                string `mapstructure:"host" yaml:"host"`
	Port                int    `mapstructure:"port" yaml:"port"`
	Topic               string `mapstructure:"topic" yaml:"topic"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	Username            string `mapstructure:"username" yaml:"username"`
	Password            string `mapstructure:"password" yaml:"password"`
	PasswordFile        string `mapstructure:"password_file" yaml:"password_file"`
	ClientID            string `mapstructure:"client_id" yaml:"client_id"`
	BurstPolicy         string `mapstructure:"burst_policy" yaml:"burst_policy"` // skip or resume
}

// CacheSettings configures the schema classification cache.
type CacheSettings struct {
	SchemaTTLSeconds int `mapstructure:"schema_ttl_seconds" yaml:"schema_ttl_seconds"`
}

// MetricsSettings toggles the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// ConfigPath returns flagValue, or BIRDNET_API2HA_CONFIG, or DefaultConfigPath.
func ConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Load reads the configuration file at path, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Settings, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf("config not found: %s; run 'birdnet-api2ha initconfig' to create one", path).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("path", path).
				Build()
		}
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.New(fmt.Errorf("error reading config file: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	settings.ConfigFile = path
	applyCredentialFallbacks(settings)
	if err := resolveCredentials(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	return settings, nil
}

// ExampleConfig returns the embedded example configuration.
func ExampleConfig() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// WriteExampleConfig writes the embedded example configuration to path.
// An existing file is left untouched unless overwrite is set.
func WriteExampleConfig(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.Newf("config file already exists: %s", path).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("path", path).
				Build()
		}
	}

	data, err := ExampleConfig()
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.New(err).
				Component("conf").
				Category(errors.CategoryFileIO).
				Context("path", dir).
				Build()
		}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}

// Location returns the configured timezone. Validation guarantees it loads.
func (s *Settings) Location() *time.Location {
	switch s.Timezone {
	case "", "Local":
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SchemaCacheTTL returns how long a schema classification stays cached.
func (s *Settings) SchemaCacheTTL() time.Duration {
	return time.Duration(s.Cache.SchemaTTLSeconds) * time.Second
}

// PollInterval returns the bridge poll interval.
func (m *MQTTSettings) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalSeconds) * time.Second
}

// BrokerURL returns the tcp:// broker address.
func (m *MQTTSettings) BrokerURL() string {
	return "tcp://" + net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
}
