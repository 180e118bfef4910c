package rover_modbus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBatteryState(t *testing.T) {

	require := require.New(t)

	raw := []byte{0x00, 0x32, 0x00, 0x64, 0x00, 0x0A, 0x19, 0x0F}
	st, err := DecodeBatteryState(raw)
	require.NoError(err)

	require.Equal(int16(50), st.StateOfCharge, "state of charge")
	require.Equal(int16(100), st.Voltage, "voltage")
	require.Equal(int16(10), st.ChargingCurrent, "charging current")
	require.Equal(int8(25), st.ControllerTemperature, "controller temperature")
	require.Equal(int8(15), st.BatteryTemperature, "battery temperature")
}

func TestDecodeBatteryNegativeTemperature(t *testing.T) {

	assert := assert.New(t)

	// bit 7 is a sign flag, 0x80 is negative zero
	raw := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x85, 0x80}
	st, err := DecodeBatteryState(raw)
	assert.NoError(err)
	assert.Equal(int8(-5), st.ControllerTemperature)
	assert.Equal(int8(0), st.BatteryTemperature)
}

func TestDecodeIsDeterministic(t *testing.T) {

	assert := assert.New(t)

	raw := []byte{0x00, 0xB8, 0x00, 0xD7, 0x00, 0x27}
	a, err := DecodePanelState(raw)
	assert.NoError(err)
	b, err := DecodePanelState(raw)
	assert.NoError(err)
	assert.Equal(*a, *b)
	assert.Equal(PanelState{Voltage: 184, Current: 215, ChargingPower: 39}, *a)
}

func TestDecodePanelNegative(t *testing.T) {

	st, err := DecodePanelState([]byte{0xFF, 0xFF, 0x80, 0x00, 0x7F, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, int16(-1), st.Voltage)
	assert.Equal(t, int16(-32768), st.Current)
	assert.Equal(t, int16(32767), st.ChargingPower)
}

func TestDecodeHistoricalParameters(t *testing.T) {

	require := require.New(t)

	raw := []byte{
		0x00, 0x79, // 0x010B
		0x00, 0x90,
		0x03, 0xFC,
		0x01, 0x36,
		0x00, 0x8C,
		0x00, 0x2A,
		0x00, 0x21,
		0x00, 0x0C,
		0x01, 0x9A,
		0xFF, 0xFF, // 0x0114
	}
	h, err := DecodeHistoricalParameters(raw)
	require.NoError(err)
	require.Equal(HistoricalParameters{
		BatteryMinVoltageToday:   121,
		BatteryMaxVoltageToday:   144,
		MaxChargeCurrentToday:    1020,
		MaxDischargeCurrentToday: 310,
		MaxChargePowerToday:      140,
		MaxDischargePowerToday:   42,
		ChargeAmpHoursToday:      33,
		DischargeAmpHoursToday:   12,
		PowerGenerationToday:     410,
		PowerConsumptionToday:    -1,
	}, *h)
}

func TestDecodeShortBlocks(t *testing.T) {

	assert := assert.New(t)

	for _, raw := range [][]byte{nil, {}, {0x00, 0x01, 0x02}} {
		_, err := DecodePanelState(raw)
		assert.True(errors.Is(err, ErrShortBlock), "panel %v", raw)
		_, err = DecodeBatteryState(raw)
		assert.True(errors.Is(err, ErrShortBlock), "battery %v", raw)
		_, err = DecodeHistoricalParameters(raw)
		assert.True(errors.Is(err, ErrShortBlock), "historical %v", raw)
		_, err = DecodeProductModel(raw)
		assert.True(errors.Is(err, ErrShortBlock), "model %v", raw)
	}

	// one byte short of a full battery block
	_, err := DecodeBatteryState([]byte{0x00, 0x32, 0x00, 0x64, 0x00, 0x0A, 0x19})
	assert.ErrorIs(err, ErrShortBlock)
}

func TestDecodeProductModelUntrimmed(t *testing.T) {

	raw := []byte("         ML2420N                ")
	model, err := DecodeProductModel(raw)
	require.NoError(t, err)
	assert.Equal(t, "         ML2420N                ", model)
	assert.Len(t, model, 32)
}

func TestSupportedModel(t *testing.T) {

	assert := assert.New(t)

	assert.True(IsSupportedModel("     ML2420N"))
	assert.False(IsSupportedModel("     ML4430"))
	assert.False(IsSupportedModel(""))
}

func TestScaled(t *testing.T) {

	assert := assert.New(t)

	b := BatteryState{StateOfCharge: 50, Voltage: 128, ChargingCurrent: 305}.Scaled()
	assert.InDelta(12.8, b.VoltageVolt, 1e-9)
	assert.InDelta(3.05, b.ChargingCurrentAmp, 1e-9)
	assert.InDelta(50, b.StateOfChargePercent, 1e-9)
}
