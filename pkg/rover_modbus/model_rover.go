package rover_modbus

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// register map
const (
	ProductModelAddr      uint16 = 0x000C
	ProductModelLength    uint16 = 16
	BatteryBlockAddr      uint16 = 0x0100
	BatteryBlockLength    uint16 = 4
	PanelBlockAddr        uint16 = 0x0107
	PanelBlockLength      uint16 = 3
	HistoricalBlockAddr   uint16 = 0x010B
	HistoricalBlockLength uint16 = 10
)

const (
	DefaultBaudRate      uint  = 9600
	DefaultSlaveID       uint8 = 1
	DefaultTimeoutMillis uint  = 1000

	// SupportedModel is matched as a substring of the padded model string.
	SupportedModel = "ML2420N"
)

var (
	ErrMissingPort  = errors.New("rover: serial port is required")
	ErrShortBlock   = errors.New("rover: register block too short")
	ErrNotConnected = errors.New("rover: client not connected")
)

type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

type ConnectionConfig struct {
	Port          string
	BaudRate      uint
	SlaveID       uint8
	TimeoutMillis uint
	TraceModbus   bool
	TraceDecode   bool
}

func DefaultConnectionConfig(port string) ConnectionConfig {
	return ConnectionConfig{
		Port:          port,
		BaudRate:      DefaultBaudRate,
		SlaveID:       DefaultSlaveID,
		TimeoutMillis: DefaultTimeoutMillis,
	}
}

// Validate rejects a config without a port and fills zero values with defaults.
func (cfg *ConnectionConfig) Validate() error {
	if strings.TrimSpace(cfg.Port) == "" {
		return ErrMissingPort
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.SlaveID == 0 {
		cfg.SlaveID = DefaultSlaveID
	}
	if cfg.TimeoutMillis == 0 {
		cfg.TimeoutMillis = DefaultTimeoutMillis
	}
	return nil
}

func (cfg ConnectionConfig) Timeout() time.Duration {
	return time.Duration(cfg.TimeoutMillis) * time.Millisecond
}

// Values are raw register integers. The device documents x0.1 volts and x0.01 amps for
// some of them; use Scaled for display.
type PanelState struct {
	Voltage       int16 `json:"voltage"`
	Current       int16 `json:"current"`
	ChargingPower int16 `json:"charging_power"`
}

type PanelStateScaled struct {
	VoltageVolt       float64
	CurrentAmp        float64
	ChargingPowerWatt float64
}

func (p PanelState) Scaled() PanelStateScaled {
	return PanelStateScaled{
		VoltageVolt:       float64(p.Voltage) * 0.1,
		CurrentAmp:        float64(p.Current) * 0.01,
		ChargingPowerWatt: float64(p.ChargingPower),
	}
}

type BatteryState struct {
	StateOfCharge         int16 `json:"state_of_charge"`
	Voltage               int16 `json:"voltage"`
	ChargingCurrent       int16 `json:"charging_current"`
	ControllerTemperature int8  `json:"controller_temperature"`
	BatteryTemperature    int8  `json:"battery_temperature"`
}

type BatteryStateScaled struct {
	StateOfChargePercent   float64
	VoltageVolt            float64
	ChargingCurrentAmp     float64
	ControllerTemperatureC float64
	BatteryTemperatureC    float64
}

func (b BatteryState) Scaled() BatteryStateScaled {
	return BatteryStateScaled{
		StateOfChargePercent:   float64(b.StateOfCharge),
		VoltageVolt:            float64(b.Voltage) * 0.1,
		ChargingCurrentAmp:     float64(b.ChargingCurrent) * 0.01,
		ControllerTemperatureC: float64(b.ControllerTemperature),
		BatteryTemperatureC:    float64(b.BatteryTemperature),
	}
}

// HistoricalParameters holds the current day's extrema and accumulators, in register order.
type HistoricalParameters struct {
	BatteryMinVoltageToday   int16 `json:"battery_min_voltage_today"`
	BatteryMaxVoltageToday   int16 `json:"battery_max_voltage_today"`
	MaxChargeCurrentToday    int16 `json:"max_charge_current_today"`
	MaxDischargeCurrentToday int16 `json:"max_discharge_current_today"`
	MaxChargePowerToday      int16 `json:"max_charge_power_today"`
	MaxDischargePowerToday   int16 `json:"max_discharge_power_today"`
	ChargeAmpHoursToday      int16 `json:"charge_amp_hours_today"`
	DischargeAmpHoursToday   int16 `json:"discharge_amp_hours_today"`
	PowerGenerationToday     int16 `json:"power_generation_today"`
	PowerConsumptionToday    int16 `json:"power_consumption_today"`
}

func IsSupportedModel(model string) bool {
	return strings.Contains(model, SupportedModel)
}

type RoverModbusReader interface {
	Open() error
	Close() error
	State() ConnectionState
	GetProductModel() (string, error)
	GetPanelState() (*PanelState, error)
	GetBatteryState() (*BatteryState, error)
	GetHistoricalParameters() (*HistoricalParameters, error)
}
