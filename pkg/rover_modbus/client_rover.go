package rover_modbus

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type RoverIntModbusReader struct {
	link   serialLink
	cfg    ConnectionConfig
	logger *zap.Logger

	mu    sync.Mutex
	state ConnectionState
}

func CreateRoverModbusReader(cfg ConnectionConfig, logger *zap.Logger, instrumentation *ModbusInstrument) (RoverModbusReader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("target", "rover"), zap.String("port", cfg.Port), zap.Uint8("slave", cfg.SlaveID))

	// instrumentation
	var inst []ModbusInstrument
	if cfg.TraceModbus {
		inst = append(inst, *traceLoggerInstrumentation(logger))
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	client, err := newModbusClient(rtuURL(cfg.Port), cfg, inst)
	if err != nil {
		return nil, err
	}
	return newRoverReader(client, cfg, logger), nil
}

func newRoverReader(link serialLink, cfg ConnectionConfig, logger *zap.Logger) *RoverIntModbusReader {
	return &RoverIntModbusReader{
		link:   link,
		cfg:    cfg,
		logger: logger,
		state:  StateDisconnected,
	}
}

// Open connects the serial link. It is meant to be called once.
func (r *RoverIntModbusReader) Open() error {
	r.setState(StateConnecting)
	if err := r.link.Open(); err != nil {
		r.setState(StateDisconnected)
		return fmt.Errorf("rover: open %s: %w", r.cfg.Port, err)
	}
	r.setState(StateConnected)
	r.logger.Debug("connected", zap.Uint("baud", r.cfg.BaudRate))
	return nil
}

func (r *RoverIntModbusReader) Close() error {
	if r.State() == StateDisconnected {
		return nil
	}
	r.setState(StateDisconnected)
	return r.link.Close()
}

func (r *RoverIntModbusReader) State() ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *RoverIntModbusReader) setState(s ConnectionState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *RoverIntModbusReader) GetProductModel() (string, error) {
	raw, err := r.readBlock(ProductModelAddr, ProductModelLength)
	if err != nil {
		return "", err
	}
	return DecodeProductModel(raw)
}

func (r *RoverIntModbusReader) GetPanelState() (*PanelState, error) {
	raw, err := r.readBlock(PanelBlockAddr, PanelBlockLength)
	if err != nil {
		return nil, err
	}
	return DecodePanelState(raw)
}

func (r *RoverIntModbusReader) GetBatteryState() (*BatteryState, error) {
	raw, err := r.readBlock(BatteryBlockAddr, BatteryBlockLength)
	if err != nil {
		return nil, err
	}
	return DecodeBatteryState(raw)
}

func (r *RoverIntModbusReader) GetHistoricalParameters() (*HistoricalParameters, error) {
	raw, err := r.readBlock(HistoricalBlockAddr, HistoricalBlockLength)
	if err != nil {
		return nil, err
	}
	return DecodeHistoricalParameters(raw)
}

func (r *RoverIntModbusReader) readBlock(base uint16, count uint16) ([]byte, error) {
	if r.State() != StateConnected {
		return nil, ErrNotConnected
	}
	raw, err := r.link.ReadHoldingRegisters(base, count)
	if err != nil {
		return nil, err
	}
	if r.cfg.TraceDecode {
		r.logger.Debug("raw block", zap.String("base", fmt.Sprintf("0x%04X", base)), zap.Binary("bytes", raw))
	}
	return raw, nil
}
