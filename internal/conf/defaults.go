// conf/defaults.go default values for settings
package conf

import "github.com/spf13/viper"

// setDefaultConfig registers default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("database_path", "")
	v.SetDefault("database_type", DatabaseSQLite)
	v.SetDefault("clips_base_path", "")
	v.SetDefault("birdnet_config_path", "")
	v.SetDefault("timezone", "Local")
	v.SetDefault("http_host", "0.0.0.0")
	v.SetDefault("http_port", 8081)
	v.SetDefault("http_rate_limit", 20)

	v.SetDefault("mysql.host", "localhost")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.database", "birdnet")
	v.SetDefault("mysql.username", "")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.password_file", "")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.topic", DefaultMQTTTopic)
	v.SetDefault("mqtt.poll_interval_seconds", 10)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.password_file", "")
	v.SetDefault("mqtt.client_id", "birdnet-api2ha")
	v.SetDefault("mqtt.burst_policy", BurstSkip)

	v.SetDefault("cache.schema_ttl_seconds", 60)

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/birdnet-api2ha.log")
	v.SetDefault("logging.file_output.level", "info")
}
