package rover_modbus

import (
	"encoding/binary"
	"fmt"
)

func checkBlock(name string, raw []byte, registers uint16) error {
	if len(raw) < int(registers)*2 {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortBlock, name, int(registers)*2, len(raw))
	}
	return nil
}

func int16At(raw []byte, offset int) int16 {
	return int16(binary.BigEndian.Uint16(raw[offset:]))
}

// signMagnitude decodes a temperature byte: bit 7 is the sign, bits 0..6 the magnitude.
func signMagnitude(b byte) int8 {
	mag := int8(b & 0x7F)
	if b&0x80 != 0 {
		return -mag
	}
	return mag
}

func DecodeProductModel(raw []byte) (string, error) {
	if err := checkBlock("product model", raw, ProductModelLength); err != nil {
		return "", err
	}
	return string(raw[:ProductModelLength*2]), nil
}

func DecodePanelState(raw []byte) (*PanelState, error) {
	if err := checkBlock("panel", raw, PanelBlockLength); err != nil {
		return nil, err
	}
	return &PanelState{
		Voltage:       int16At(raw, 0),
		Current:       int16At(raw, 2),
		ChargingPower: int16At(raw, 4),
	}, nil
}

func DecodeBatteryState(raw []byte) (*BatteryState, error) {
	if err := checkBlock("battery", raw, BatteryBlockLength); err != nil {
		return nil, err
	}
	return &BatteryState{
		StateOfCharge:         int16At(raw, 0),
		Voltage:               int16At(raw, 2),
		ChargingCurrent:       int16At(raw, 4),
		ControllerTemperature: signMagnitude(raw[6]),
		BatteryTemperature:    signMagnitude(raw[7]),
	}, nil
}

func DecodeHistoricalParameters(raw []byte) (*HistoricalParameters, error) {
	if err := checkBlock("historical", raw, HistoricalBlockLength); err != nil {
		return nil, err
	}
	return &HistoricalParameters{
		BatteryMinVoltageToday:   int16At(raw, 0),
		BatteryMaxVoltageToday:   int16At(raw, 2),
		MaxChargeCurrentToday:    int16At(raw, 4),
		MaxDischargeCurrentToday: int16At(raw, 6),
		MaxChargePowerToday:      int16At(raw, 8),
		MaxDischargePowerToday:   int16At(raw, 10),
		ChargeAmpHoursToday:      int16At(raw, 12),
		DischargeAmpHoursToday:   int16At(raw, 14),
		PowerGenerationToday:     int16At(raw, 16),
		PowerConsumptionToday:    int16At(raw, 18),
	}, nil
}
