package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/berfenger/rover2mqtt/pkg/rover_modbus"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel    zapcore.Level
	Serial      SerialConfig `mapstructure:"serial"`
	Poll        PollConfig   `mapstructure:"poll"`
	MQTT        MQTTConfig   `mapstructure:"mqtt"`
	HTTP        HTTPConfig   `mapstructure:"http"`
	TraceModbus bool         `mapstructure:"trace_modbus"`
	TraceDecode bool         `mapstructure:"trace_decode"`
	Print       bool         `mapstructure:"print"`
	JSONFile    string       `mapstructure:"json_file"`
	Once        bool         `mapstructure:"once"`
}

type SerialConfig struct {
	Port          string
	BaudRate      uint  `mapstructure:"baud_rate"`
	SlaveId       uint8 `mapstructure:"slave_id"`
	TimeoutMillis uint  `mapstructure:"timeout_millis"`
}

type PollConfig struct {
	IntervalSeconds   uint `mapstructure:"interval_seconds"`
	SinkTimeoutMillis uint `mapstructure:"sink_timeout_millis"`
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

type HTTPConfig struct {
	Enable bool
	Port   uint
	Log    bool
}

func (cfg Config) ConnectionConfig() rover_modbus.ConnectionConfig {
	return rover_modbus.ConnectionConfig{
		Port:          cfg.Serial.Port,
		BaudRate:      cfg.Serial.BaudRate,
		SlaveID:       cfg.Serial.SlaveId,
		TimeoutMillis: cfg.Serial.TimeoutMillis,
		TraceModbus:   cfg.TraceModbus,
		TraceDecode:   cfg.TraceDecode,
	}
}

func (cfg Config) PollInterval() time.Duration {
	return time.Duration(cfg.Poll.IntervalSeconds) * time.Second
}

func (cfg Config) SinkTimeout() time.Duration {
	return time.Duration(cfg.Poll.SinkTimeoutMillis) * time.Millisecond
}

func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// Check validates bounds and normalises the MQTT topic.
func (cfg *Config) Check() error {
	if strings.TrimSpace(cfg.Serial.Port) == "" {
		return rover_modbus.ErrMissingPort
	}
	if cfg.Poll.IntervalSeconds < 1 {
		return errors.New("config param poll.interval_seconds should be >= 1")
	}
	if cfg.MQTT.Enable {
		topic, err := CheckMQTTTopic(cfg.MQTT.BaseTopic)
		if err != nil {
			return errors.New("invalid base topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.BaseTopic = topic

		// check and fix homeassistant discovery topic
		hadTopic, err := CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
		if err != nil {
			return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
		}
		cfg.MQTT.HADiscoveryTopic = hadTopic
	}
	return nil
}
