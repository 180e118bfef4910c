package util

import (
	"github.com/berfenger/rover2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Serial: config.SerialConfig{
			Port:          "/dev/ttyUSB0",
			BaudRate:      9600,
			SlaveId:       1,
			TimeoutMillis: 1000,
		},
		Poll: config.PollConfig{
			IntervalSeconds:   60,
			SinkTimeoutMillis: 1000,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "rover",
		},
		HTTP: config.HTTPConfig{
			Enable: true,
			Port:   8080,
		},
	}
}
