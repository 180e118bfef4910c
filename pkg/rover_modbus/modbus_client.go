package rover_modbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

// RegisterReader issues one "read holding registers" exchange and returns the raw payload.
type RegisterReader interface {
	ReadHoldingRegisters(base uint16, count uint16) ([]byte, error)
}

type serialLink interface {
	RegisterReader
	Open() error
	Close() error
}

type ModbusClient struct {
	client     *modbus.ModbusClient
	instrument []ModbusInstrument
	lock       sync.Mutex
}

type ModbusInstrument struct {
	RecordTime func(fnName string, readTime time.Duration)
}

func rtuURL(port string) string {
	return fmt.Sprintf("rtu://%s", port)
}

func newModbusClient(url string, cfg ConnectionConfig, instrument []ModbusInstrument) (*ModbusClient, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Speed:   cfg.BaudRate,
		Timeout: cfg.Timeout(),
	})
	if err != nil {
		return nil, err
	}
	if err := client.SetUnitId(cfg.SlaveID); err != nil {
		return nil, err
	}
	return &ModbusClient{
		client:     client,
		instrument: instrument,
	}, nil
}

func (reader *ModbusClient) Open() error {
	return reader.client.Open()
}

func (reader *ModbusClient) Close() error {
	return reader.client.Close()
}

// ReadHoldingRegisters performs exactly one request/response exchange. Errors from the
// link are returned untouched.
func (reader *ModbusClient) ReadHoldingRegisters(base uint16, count uint16) ([]byte, error) {
	reader.lock.Lock()
	defer reader.lock.Unlock()
	defer RecordTimer("ReadHoldingRegisters", reader.instrument)()
	return reader.client.ReadRawBytes(base, count*2, modbus.HOLDING_REGISTER)
}

func RecordTimer(name string, instrument []ModbusInstrument) func() {
	if instrument == nil {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		for i := range instrument {
			instrument[i].RecordTime(name, duration)
		}
	}
}

func traceLoggerInstrumentation(logger *zap.Logger) *ModbusInstrument {
	return &ModbusInstrument{
		RecordTime: func(fnName string, readTime time.Duration) {
			logger.Debug("modbus exchange", zap.String("fn", fnName), zap.Int64("millis", readTime.Milliseconds()))
		},
	}
}
