// conf/validate.go

package conf

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) []string{
		validateDatabaseSettings,
		validateHTTPSettings,
		validateMQTTSettings,
		validateMiscSettings,
	} {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabaseSettings(s *Settings) []string {
	var errs []string

	if !slices.Contains([]string{DatabaseSQLite, DatabaseMySQL}, s.DatabaseType) {
		errs = append(errs, fmt.Sprintf("database_type must be %q or %q, got %q", DatabaseSQLite, DatabaseMySQL, s.DatabaseType))
	}

	if s.DatabaseType == DatabaseMySQL {
		if s.MySQL.Host == "" {
			errs = append(errs, "mysql.host is required when database_type is mysql")
		}
		if !validPort(s.MySQL.Port) {
			errs = append(errs, fmt.Sprintf("mysql.port must be between 1 and 65535, got %d", s.MySQL.Port))
		}
		if s.MySQL.Database == "" {
			errs = append(errs, "mysql.database is required when database_type is mysql")
		}
	}

	return errs
}

func validateHTTPSettings(s *Settings) []string {
	var errs []string
	if !validPort(s.HTTPPort) {
		errs = append(errs, fmt.Sprintf("http_port must be between 1 and 65535, got %d", s.HTTPPort))
	}
	if s.HTTPRateLimit < 0 {
		errs = append(errs, fmt.Sprintf("http_rate_limit must not be negative, got %g", s.HTTPRateLimit))
	}
	return errs
}

func validateMQTTSettings(s *Settings) []string {
	var errs []string
	m := &s.MQTT

	if !validPort(m.Port) {
		errs = append(errs, fmt.Sprintf("mqtt.port must be between 1 and 65535, got %d", m.Port))
	}
	if m.PollIntervalSeconds <= 0 {
		errs = append(errs, fmt.Sprintf("mqtt.poll_interval_seconds must be positive, got %d", m.PollIntervalSeconds))
	}
	if m.BurstPolicy != BurstSkip && m.BurstPolicy != BurstResume {
		errs = append(errs, fmt.Sprintf("mqtt.burst_policy must be %q or %q, got %q", BurstSkip, BurstResume, m.BurstPolicy))
	}
	if m.Enabled {
		if m.Host == "" {
			errs = append(errs, "mqtt.host is required when mqtt is enabled")
		}
		if m.Topic == "" {
			errs = append(errs, "mqtt.topic is required when mqtt is enabled")
		}
		if m.ClientID == "" {
			errs = append(errs, "mqtt.client_id is required when mqtt is enabled")
		}
	}

	return errs
}

func validateMiscSettings(s *Settings) []string {
	var errs []string

	if s.Timezone != "" && s.Timezone != "Local" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("timezone %q is invalid: %v", s.Timezone, err))
		}
	}
	if s.Cache.SchemaTTLSeconds < 0 {
		errs = append(errs, fmt.Sprintf("cache.schema_ttl_seconds must not be negative, got %d", s.Cache.SchemaTTLSeconds))
	}

	return errs
}

func validPort(port int) bool {
	return port >= 1 && port <= 65535
}
