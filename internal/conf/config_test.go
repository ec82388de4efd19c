package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/birdnet-api2ha/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// clearEnv unsets every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvConfigPath, EnvDatabasePath, EnvHTTPPort, EnvMQTTUsername, EnvMQTTPassword} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	settings, err := Load(writeConfig(t, "database_path: /data/birdnet.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "/data/birdnet.db", settings.DatabasePath)
	assert.Equal(t, DatabaseSQLite, settings.DatabaseType)
	assert.Equal(t, "0.0.0.0", settings.HTTPHost)
	assert.Equal(t, 8081, settings.HTTPPort)
	assert.InDelta(t, 20.0, settings.HTTPRateLimit, 1e-9)

	assert.False(t, settings.MQTT.Enabled)
	assert.Equal(t, "localhost", settings.MQTT.Host)
	assert.Equal(t, 1883, settings.MQTT.Port)
	assert.Equal(t, "birdnet_api2ha/detections", settings.MQTT.Topic)
	assert.Equal(t, 10*time.Second, settings.MQTT.PollInterval())
	assert.Equal(t, "birdnet-api2ha", settings.MQTT.ClientID)
	assert.Equal(t, BurstSkip, settings.MQTT.BurstPolicy)
	assert.Equal(t, "tcp://localhost:1883", settings.MQTT.BrokerURL())

	assert.Equal(t, time.Minute, settings.SchemaCacheTTL())
	assert.True(t, settings.Metrics.Enabled)
	assert.Equal(t, time.Local, settings.Location())

	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
}

func TestLoadExampleConfig(t *testing.T) {
	clearEnv(t)

	data, err := ExampleConfig()
	require.NoError(t, err)

	settings, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, 8081, settings.HTTPPort)
	assert.Equal(t, "info", settings.Logging.ModuleLevels["datastore"])
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDatabasePath, "/env/birdnet.db")
	t.Setenv(EnvHTTPPort, "9090")
	t.Setenv(EnvMQTTUsername, "env-user")
	t.Setenv(EnvMQTTPassword, "env-pass")

	settings, err := Load(writeConfig(t, `
database_path: /file/birdnet.db
http_port: 8081
mqtt:
  username: file-user
`))
	require.NoError(t, err)

	assert.Equal(t, "/env/birdnet.db", settings.DatabasePath)
	assert.Equal(t, 9090, settings.HTTPPort)
	// file credentials take precedence; env only fills blanks
	assert.Equal(t, "file-user", settings.MQTT.Username)
	assert.Equal(t, "env-pass", settings.MQTT.Password)
}

func TestLoadInvalidEnvPort(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvHTTPPort, "eighty")

	_, err := Load(writeConfig(t, "database_path: x.db\n"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Contains(t, err.Error(), "initconfig")
}

func TestLoadValidationFailure(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, `
http_port: 70000
timezone: Nowhere/City
mqtt:
  poll_interval_seconds: 0
  burst_policy: replay
`))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 4)
}

func TestConfigPath(t *testing.T) {
	clearEnv(t)

	assert.Equal(t, DefaultConfigPath, ConfigPath(""))

	t.Setenv(EnvConfigPath, "/etc/api2ha.yaml")
	assert.Equal(t, "/etc/api2ha.yaml", ConfigPath(""))
	assert.Equal(t, "flag.yaml", ConfigPath("flag.yaml"))
}

func TestWriteExampleConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, WriteExampleConfig(path, false))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	embedded, err := ExampleConfig()
	require.NoError(t, err)
	assert.Equal(t, embedded, written)

	err = WriteExampleConfig(path, false)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	require.NoError(t, WriteExampleConfig(path, true))
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	valid := func() *Settings {
		return &Settings{
			DatabaseType: DatabaseSQLite,
			Timezone:     "UTC",
			HTTPPort:     8081,
			MQTT: MQTTSettings{
				Host:                "localhost",
				Port:                1883,
				Topic:               "t",
				ClientID:            "c",
				PollIntervalSeconds: 10,
				BurstPolicy:         BurstSkip,
			},
			MySQL: MySQLSettings{Host: "localhost", Port: 3306, Database: "birdnet"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{"valid", func(*Settings) {}, false},
		{"resume policy", func(s *Settings) { s.MQTT.BurstPolicy = BurstResume }, false},
		{"mysql", func(s *Settings) { s.DatabaseType = DatabaseMySQL }, false},
		{"unknown database type", func(s *Settings) { s.DatabaseType = "postgres" }, true},
		{"mysql without database", func(s *Settings) { s.DatabaseType = DatabaseMySQL; s.MySQL.Database = "" }, true},
		{"zero http port", func(s *Settings) { s.HTTPPort = 0 }, true},
		{"rate limit disabled", func(s *Settings) { s.HTTPRateLimit = 0 }, false},
		{"negative rate limit", func(s *Settings) { s.HTTPRateLimit = -1 }, true},
		{"negative poll interval", func(s *Settings) { s.MQTT.PollIntervalSeconds = -1 }, true},
		{"enabled without topic", func(s *Settings) { s.MQTT.Enabled = true; s.MQTT.Topic = "" }, true},
		{"bad timezone", func(s *Settings) { s.Timezone = "Mars/Base" }, true},
		{"negative cache ttl", func(s *Settings) { s.Cache.SchemaTTLSeconds = -5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := valid()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLocation(t *testing.T) {
	t.Parallel()

	s := &Settings{Timezone: "UTC"}
	assert.Equal(t, time.UTC, s.Location())

	s.Timezone = "Europe/Helsinki"
	assert.Equal(t, "Europe/Helsinki", s.Location().String())
}

func TestResolveUpstream(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	cfgPath := filepath.Join(root, "config", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(cfgPath), 0o755))
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
output:
  sqlite:
    enabled: true
    path: birdnet.db
realtime:
  audio:
    export:
      path: clips/
`), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data", "clips"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "birdnet.db"), nil, 0o600))

	t.Run("fills blanks", func(t *testing.T) {
		t.Parallel()
		s := &Settings{DatabaseType: DatabaseSQLite, BirdNETConfigPath: cfgPath}
		info, err := ResolveUpstream(s, nil)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, filepath.Join(root, "data", "birdnet.db"), s.DatabasePath)
		assert.Equal(t, filepath.Join(root, "data", "clips"), s.ClipsBasePath)
	})

	t.Run("explicit settings win", func(t *testing.T) {
		t.Parallel()
		s := &Settings{
			DatabaseType:      DatabaseSQLite,
			DatabasePath:      "/explicit.db",
			ClipsBasePath:     "/explicit/clips",
			BirdNETConfigPath: cfgPath,
		}
		_, err := ResolveUpstream(s, nil)
		require.NoError(t, err)
		assert.Equal(t, "/explicit.db", s.DatabasePath)
		assert.Equal(t, "/explicit/clips", s.ClipsBasePath)
	})

	t.Run("nothing found", func(t *testing.T) {
		t.Parallel()
		s := &Settings{DatabaseType: DatabaseSQLite}
		info, err := ResolveUpstream(s, []string{t.TempDir()})
		require.NoError(t, err)
		assert.Nil(t, info)
		assert.Empty(t, s.DatabasePath)
	})
}
