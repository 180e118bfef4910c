package mqtt

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carlmjohnson/versioninfo"
)

const (
	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_BATTERY         = "battery"
	DEVICE_CLASS_CURRENT         = "current"
	DEVICE_CLASS_POWER           = "power"
	DEVICE_CLASS_TEMPERATURE     = "temperature"
	DEVICE_CLASS_VOLTAGE         = "voltage"
)

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic"`
	ValueTemplate     string            `json:"value_template"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
}

// RoverSensor maps one JSON field of a block state topic to a Home Assistant sensor.
type RoverSensor struct {
	Id          string
	Name        string
	Block       string
	Field       string
	Scale       float64
	DeviceClass string
	StateClass  string
	Unit        string
}

var RoverSensors = []RoverSensor{
	{"panel_voltage", "Panel voltage", "panel", "voltage", 0.1, DEVICE_CLASS_VOLTAGE, STATE_CLASS_MEASUREMENT, "V"},
	{"panel_current", "Panel current", "panel", "current", 0.01, DEVICE_CLASS_CURRENT, STATE_CLASS_MEASUREMENT, "A"},
	{"panel_charging_power", "Panel charging power", "panel", "charging_power", 1, DEVICE_CLASS_POWER, STATE_CLASS_MEASUREMENT, "W"},
	{"battery_soc", "Battery SoC", "battery", "state_of_charge", 1, DEVICE_CLASS_BATTERY, STATE_CLASS_MEASUREMENT, "%"},
	{"battery_voltage", "Battery voltage", "battery", "voltage", 0.1, DEVICE_CLASS_VOLTAGE, STATE_CLASS_MEASUREMENT, "V"},
	{"battery_charging_current", "Battery charging current", "battery", "charging_current", 0.01, DEVICE_CLASS_CURRENT, STATE_CLASS_MEASUREMENT, "A"},
	{"controller_temperature", "Controller temperature", "battery", "controller_temperature", 1, DEVICE_CLASS_TEMPERATURE, STATE_CLASS_MEASUREMENT, "°C"},
	{"battery_temperature", "Battery temperature", "battery", "battery_temperature", 1, DEVICE_CLASS_TEMPERATURE, STATE_CLASS_MEASUREMENT, "°C"},
	{"charge_amp_hours_today", "Charge today", "historical", "charge_amp_hours_today", 1, "", STATE_CLASS_TOTAL_INCREASING, "Ah"},
	{"discharge_amp_hours_today", "Discharge today", "historical", "discharge_amp_hours_today", 1, "", STATE_CLASS_TOTAL_INCREASING, "Ah"},
	{"power_generation_today", "Generation today", "historical", "power_generation_today", 1, "", STATE_CLASS_TOTAL_INCREASING, ""},
	{"power_consumption_today", "Consumption today", "historical", "power_consumption_today", 1, "", STATE_CLASS_TOTAL_INCREASING, ""},
}

func RoverDevice(baseTopic string, model string) HADiscoveryDevice {
	name := strings.TrimSpace(model)
	if name == "" {
		name = "Rover"
	}
	return HADiscoveryDevice{
		Id:           []string{fmt.Sprintf("rover_%s", md5HashShort(baseTopic))},
		Manufacturer: "Renogy",
		Model:        name,
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("%s %s", name, md5HashShort(baseTopic)),
	}
}

func (c *MQTTClient) HADiscoverySensorTopic(device HADiscoveryDevice, sensor RoverSensor) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", c.cfg.HADiscoveryTopic, device.Id[0], sensor.Id)
}

func (c *MQTTClient) DiscoveryMessages(model string) ([]Message, error) {
	device := RoverDevice(c.baseTopic(), model)
	var messages []Message
	for _, sensor := range RoverSensors {
		disConfig := HADiscoveryConfig{
			Device:            device,
			StateTopic:        c.BlockStateTopic(sensor.Block),
			ValueTemplate:     valueTemplate(sensor),
			StateClass:        sensor.StateClass,
			DeviceClass:       sensor.DeviceClass,
			UnitOfMeasurement: sensor.Unit,
			AvTopic:           c.BridgeStateTopic(),
			Name:              sensor.Name,
			UniqueId:          fmt.Sprintf("%s_%s", device.Id[0], sensor.Id),
			Platform:          "mqtt",
		}
		payload, err := json.Marshal(disConfig)
		if err != nil {
			return nil, err
		}
		messages = append(messages, Message{Topic: c.HADiscoverySensorTopic(device, sensor), Payload: payload})
	}
	return messages, nil
}

func valueTemplate(sensor RoverSensor) string {
	if sensor.Scale == 1 {
		return fmt.Sprintf("{{ value_json.%s }}", sensor.Field)
	}
	return fmt.Sprintf("{{ (value_json.%s * %g) | round(2) }}", sensor.Field, sensor.Scale)
}

func md5HashShort(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])[:8]
}
