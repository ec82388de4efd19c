// Package secrets resolves credentials written as ${VAR} references or kept
// in files such as Docker and Kubernetes secrets.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/birdnet-api2ha/internal/errors"
)

// maxFileSize bounds secret file reads; secrets are short tokens.
const maxFileSize = 64 * 1024

// Secret is a resolved credential.
type Secret struct {
	Value string
	// Permissive is set when the secret file is readable by group or others.
	Permissive bool
}

// Expand substitutes ${VAR} and ${VAR:-default} references. A reference to
// an unset variable without a default is an error.
func Expand(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile reads a secret file, dropping trailing newlines.
func ReadFile(path string) (Secret, error) {
	clean := filepath.Clean(path)

	info, err := os.Stat(clean)
	if err != nil {
		return Secret{}, fileError(err, clean)
	}
	if !info.Mode().IsRegular() {
		return Secret{}, errors.Newf("secret path is not a regular file: %s", clean).
			Component("secrets").
			Category(errors.CategoryFileIO).
			Build()
	}
	if info.Size() > maxFileSize {
		return Secret{}, errors.Newf("secret file too large (max %d bytes): %s", maxFileSize, clean).
			Component("secrets").
			Category(errors.CategoryValidation).
			Build()
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return Secret{}, fileError(err, clean)
	}

	value := strings.TrimRight(string(data), "\r\n")
	if value == "" {
		return Secret{}, errors.Newf("secret file is empty: %s", clean).
			Component("secrets").
			Category(errors.CategoryValidation).
			Build()
	}
	return Secret{Value: value, Permissive: info.Mode().Perm()&0o077 != 0}, nil
}

// Resolve prefers filePath when set, otherwise expands value.
func Resolve(filePath, value string) (Secret, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	expanded, err := Expand(value)
	if err != nil {
		return Secret{}, err
	}
	return Secret{Value: expanded}, nil
}

func fileError(err error, path string) error {
	return errors.New(err).
		Component("secrets").
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}
