package config

import (
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
)

const EnvPrefix = "rover"

var envKeyReplacer = strings.NewReplacer(".", "_")

func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.slave_id", 1)
	v.SetDefault("serial.timeout_millis", 1000)
	v.SetDefault("poll.interval_seconds", 60)
	v.SetDefault("poll.sink_timeout_millis", 5000)
	v.SetDefault("trace_modbus", false)
	v.SetDefault("trace_decode", false)
	v.SetDefault("print", true)
	v.SetDefault("json_file", "")
	v.SetDefault("once", false)
	v.SetDefault("mqtt.enable", false)
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.base_topic", "rover")
	v.SetDefault("mqtt.ha_discovery_enable", false)
	v.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	v.SetDefault("http.enable", false)
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.log", false)
}

// Load reads defaults, an optional YAML file named by CONFIG_FILE and ROVER_* environment
// variables. A non-empty port argument overrides serial.port.
func Load(v *viper.Viper, portArg string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			v.SetConfigFile(cfgFile)

			if err := v.ReadInConfig(); err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	if portArg != "" {
		v.Set("serial.port", portArg)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.LogLevel = ParseLogLevel(v.GetString("log_level"))

	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func SafeCopy(cfg Config) Config {
	if cfg.MQTT.Username != "" {
		cfg.MQTT.Username = "*redacted*"
	}
	if cfg.MQTT.Password != "" {
		cfg.MQTT.Password = "*redacted*"
	}
	return cfg
}
