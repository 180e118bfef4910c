package rover_modbus

func CreateTestRoverModbusReader() (RoverModbusReader, error) {
	return &TestRoverModbusReader{}, nil
}

// TestRoverModbusReader serves canned values. Setting one of the Err fields makes the
// matching call fail.
type TestRoverModbusReader struct {
	OpenErr       error
	ModelErr      error
	PanelErr      error
	BatteryErr    error
	HistoricalErr error

	state ConnectionState
}

func (r *TestRoverModbusReader) Open() error {
	if r.OpenErr != nil {
		return r.OpenErr
	}
	r.state = StateConnected
	return nil
}

func (r *TestRoverModbusReader) Close() error {
	r.state = StateDisconnected
	return nil
}

func (r *TestRoverModbusReader) State() ConnectionState {
	return r.state
}

func (r *TestRoverModbusReader) GetProductModel() (string, error) {
	if r.ModelErr != nil {
		return "", r.ModelErr
	}
	return "         ML2420N                ", nil
}

func (r *TestRoverModbusReader) GetPanelState() (*PanelState, error) {
	if r.PanelErr != nil {
		return nil, r.PanelErr
	}
	return &PanelState{
		Voltage:       184,
		Current:       215,
		ChargingPower: 39,
	}, nil
}

func (r *TestRoverModbusReader) GetBatteryState() (*BatteryState, error) {
	if r.BatteryErr != nil {
		return nil, r.BatteryErr
	}
	return &BatteryState{
		StateOfCharge:         50,
		Voltage:               128,
		ChargingCurrent:       305,
		ControllerTemperature: 25,
		BatteryTemperature:    15,
	}, nil
}

func (r *TestRoverModbusReader) GetHistoricalParameters() (*HistoricalParameters, error) {
	if r.HistoricalErr != nil {
		return nil, r.HistoricalErr
	}
	return &HistoricalParameters{
		BatteryMinVoltageToday:   121,
		BatteryMaxVoltageToday:   144,
		MaxChargeCurrentToday:    1020,
		MaxDischargeCurrentToday: 310,
		MaxChargePowerToday:      140,
		MaxDischargePowerToday:   42,
		ChargeAmpHoursToday:      33,
		DischargeAmpHoursToday:   12,
		PowerGenerationToday:     410,
		PowerConsumptionToday:    150,
	}, nil
}
