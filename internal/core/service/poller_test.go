package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berfenger/rover2mqtt/internal/core/domain"
	"github.com/berfenger/rover2mqtt/internal/core/port"
	"github.com/berfenger/rover2mqtt/pkg/rover_modbus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type manualTicker struct {
	ch      chan time.Time
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time {
	return t.ch
}

func (t *manualTicker) Stop() {
	t.stopped = true
}

// orderedReader records the order of block reads.
type orderedReader struct {
	rover_modbus.TestRoverModbusReader
	calls []string
}

func (r *orderedReader) GetPanelState() (*rover_modbus.PanelState, error) {
	r.calls = append(r.calls, "panel")
	return r.TestRoverModbusReader.GetPanelState()
}

func (r *orderedReader) GetBatteryState() (*rover_modbus.BatteryState, error) {
	r.calls = append(r.calls, "battery")
	return r.TestRoverModbusReader.GetBatteryState()
}

func (r *orderedReader) GetHistoricalParameters() (*rover_modbus.HistoricalParameters, error) {
	r.calls = append(r.calls, "historical")
	return r.TestRoverModbusReader.GetHistoricalParameters()
}

func newTestPoller(reader rover_modbus.RoverModbusReader) (*Poller, *manualTicker, chan domain.Reading) {
	readings := make(chan domain.Reading, 16)
	ticker := &manualTicker{ch: make(chan time.Time)}
	p := NewPoller(reader, time.Second, func(r domain.Reading) {
		readings <- r
	}, zap.NewNop())
	p.NewTicker = func(time.Duration) port.Ticker { return ticker }
	return p, ticker, readings
}

func receive(t *testing.T, readings chan domain.Reading) domain.Reading {
	select {
	case r := <-readings:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no reading received")
		return domain.Reading{}
	}
}

func TestPollerFirstCycleIsImmediate(t *testing.T) {

	require := require.New(t)

	reader, err := rover_modbus.CreateTestRoverModbusReader()
	require.NoError(err)

	p, _, readings := newTestPoller(reader)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	r := receive(t, readings)
	require.Equal("ML2420N", r.Model)
	require.True(r.Panel.IsOk())
	require.True(r.Battery.IsOk())
	require.True(r.Historical.IsOk())

	cancel()
	require.NoError(<-done)
}

func TestPollerEmitsOneReadingPerTick(t *testing.T) {

	require := require.New(t)

	reader := &rover_modbus.TestRoverModbusReader{}
	p, ticker, readings := newTestPoller(reader)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	const intervals = 3
	receive(t, readings)
	for i := 0; i < intervals; i++ {
		ticker.ch <- time.Now()
		receive(t, readings)
	}

	cancel()
	require.NoError(<-done)
	require.Empty(readings, "exactly intervals+1 readings")
	require.True(ticker.stopped)
	require.Equal(rover_modbus.StateDisconnected, reader.State(), "reader closed on shutdown")
}

func TestPollerIsolatesBlockFailures(t *testing.T) {

	assert := assert.New(t)

	failures := []struct {
		name   string
		reader *rover_modbus.TestRoverModbusReader
	}{
		{"panel", &rover_modbus.TestRoverModbusReader{PanelErr: errors.New("timeout")}},
		{"battery", &rover_modbus.TestRoverModbusReader{BatteryErr: errors.New("timeout")}},
		{"historical", &rover_modbus.TestRoverModbusReader{HistoricalErr: errors.New("timeout")}},
	}

	for _, f := range failures {
		p, _, _ := newTestPoller(f.reader)
		require.NoError(t, p.Connect())
		r := p.PollOnce()

		assert.Equal(f.name != "panel", r.Panel.IsOk(), f.name)
		assert.Equal(f.name != "battery", r.Battery.IsOk(), f.name)
		assert.Equal(f.name != "historical", r.Historical.IsOk(), f.name)
		assert.Len(r.Errors(), 1, f.name)
	}
}

func TestPollerAllBlocksFailing(t *testing.T) {

	reader := &rover_modbus.TestRoverModbusReader{
		PanelErr:      errors.New("bad crc"),
		BatteryErr:    errors.New("bad crc"),
		HistoricalErr: errors.New("bad crc"),
	}
	p, _, readings := newTestPoller(reader)
	require.NoError(t, p.Connect())
	p.emit(p.PollOnce())

	r := receive(t, readings)
	assert.Len(t, r.Errors(), 3)
	assert.False(t, r.Timestamp.IsZero())
}

func TestPollerReadOrder(t *testing.T) {

	reader := &orderedReader{}
	p, _, _ := newTestPoller(reader)
	require.NoError(t, p.Connect())
	p.PollOnce()
	p.PollOnce()

	assert.Equal(t, []string{"panel", "battery", "historical", "panel", "battery", "historical"}, reader.calls)
}

func TestPollerConnectErrorIsFatal(t *testing.T) {

	openErr := errors.New("no such file or directory")
	p, _, readings := newTestPoller(&rover_modbus.TestRoverModbusReader{OpenErr: openErr})

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, openErr)
	assert.Empty(t, readings)
}

func TestPollerModelErrorIsNotFatal(t *testing.T) {

	p, _, readings := newTestPoller(&rover_modbus.TestRoverModbusReader{ModelErr: errors.New("timeout")})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	r := receive(t, readings)
	assert.Equal(t, "", r.Model)
	assert.True(t, r.Panel.IsOk())

	cancel()
	assert.NoError(t, <-done)
}

func TestPollerSkipsStaleTicks(t *testing.T) {

	require := require.New(t)

	p, ticker, readings := newTestPoller(&rover_modbus.TestRoverModbusReader{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	receive(t, readings)

	// a tick stamped before the previous cycle ended was queued during that cycle
	ticker.ch <- time.Now().Add(-time.Hour)
	ticker.ch <- time.Now()
	receive(t, readings)

	cancel()
	require.NoError(<-done)
	require.Empty(readings)
}

func TestPollerWithTimeTicker(t *testing.T) {

	readings := make(chan domain.Reading, 16)
	p := NewPoller(&rover_modbus.TestRoverModbusReader{}, 20*time.Millisecond, func(r domain.Reading) {
		readings <- r
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	first := receive(t, readings)
	second := receive(t, readings)
	third := receive(t, readings)
	cancel()
	require.NoError(t, <-done)

	assert.True(t, second.Timestamp.After(first.Timestamp))
	assert.True(t, third.Timestamp.After(second.Timestamp))
}

func TestNewPollerDefaultInterval(t *testing.T) {

	p := NewPoller(&rover_modbus.TestRoverModbusReader{}, 0, nil, zap.NewNop())
	assert.Equal(t, DefaultPollInterval, p.Interval)
}

// slowFirstReader stalls the panel read of the first cycle only.
type slowFirstReader struct {
	rover_modbus.TestRoverModbusReader
	delay  time.Duration
	cycles int
}

func (r *slowFirstReader) GetPanelState() (*rover_modbus.PanelState, error) {
	r.cycles++
	if r.cycles == 1 {
		time.Sleep(r.delay)
	}
	return r.TestRoverModbusReader.GetPanelState()
}

func TestPollerIntervalCountsFromFirstCycleStart(t *testing.T) {

	require := require.New(t)

	const (
		interval = 400 * time.Millisecond
		delay    = time.Second
	)

	readings := make(chan domain.Reading, 16)
	p := NewPoller(&slowFirstReader{delay: delay}, interval, func(r domain.Reading) {
		readings <- r
	}, zap.NewNop())

	tickerCreated := make(chan time.Time, 1)
	p.NewTicker = func(d time.Duration) port.Ticker {
		tickerCreated <- time.Now()
		return port.NewTimeTicker(d)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	first := receive(t, readings)
	second := receive(t, readings)
	cancel()
	require.NoError(<-done)

	require.False((<-tickerCreated).After(first.Timestamp), "ticker starts with the first cycle")

	// ticks at 400ms and 800ms fall inside the slow first cycle, the next one is at 1200ms
	gap := second.Timestamp.Sub(first.Timestamp)
	require.GreaterOrEqual(gap, delay)
	require.Less(gap, delay+interval-50*time.Millisecond, "interval is not counted from the end of the first cycle")
}
