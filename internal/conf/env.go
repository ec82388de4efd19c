// env.go - Environment variable configuration for birdnet-api2ha
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Environment variable names.
const (
	EnvConfigPath   = "BIRDNET_API2HA_CONFIG"
	EnvDatabasePath = "BIRDNET_API2HA_DB"
	EnvHTTPPort     = "BIRDNET_API2HA_PORT"
	EnvMQTTUsername = "BIRDNET_MQTT_USERNAME"
	EnvMQTTPassword = "BIRDNET_MQTT_PASSWORD"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the variables that override config file values.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"database_path", EnvDatabasePath, nil},
		{"http_port", EnvHTTPPort, validateEnvPort},
	}
}

// bindEnvVars binds override variables to v and validates any that are set.
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// applyCredentialFallbacks fills MQTT credentials from the environment only
// when the config file leaves them empty.
func applyCredentialFallbacks(s *Settings) {
	if s.MQTT.Username == "" {
		s.MQTT.Username = os.Getenv(EnvMQTTUsername)
	}
	if s.MQTT.Password == "" {
		s.MQTT.Password = os.Getenv(EnvMQTTPassword)
	}
}

// validateEnvPort validates a TCP port number
func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("must be between 1 and 65535")
	}
	return nil
}
