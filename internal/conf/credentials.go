package conf

import (
	"fmt"

	"github.com/tphakala/birdnet-api2ha/internal/errors"
	"github.com/tphakala/birdnet-api2ha/internal/secrets"
)

// resolveCredentials expands ${VAR} references in passwords and reads
// password files.
func resolveCredentials(s *Settings) error {
	fields := []struct {
		key      string
		file     string
		password *string
	}{
		{"mysql.password", s.MySQL.PasswordFile, &s.MySQL.Password},
		{"mqtt.password", s.MQTT.PasswordFile, &s.MQTT.Password},
	}

	for _, f := range fields {
		secret, err := secrets.Resolve(f.file, *f.password)
		if err != nil {
			return errors.New(fmt.Errorf("resolving %s: %w", f.key, err)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
		*f.password = secret.Value
		if secret.Permissive {
			s.Warnings = append(s.Warnings,
				fmt.Sprintf("%s_file %s is readable by group or others", f.key, f.file))
		}
	}
	return nil
}
