package sink

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/berfenger/rover2mqtt/internal/core/domain"
	"github.com/berfenger/rover2mqtt/pkg/rover_modbus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testReading() domain.Reading {
	return domain.Reading{
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Model:     "ML2420N",
		Panel:     domain.Ok(rover_modbus.PanelState{Voltage: 184, Current: 215, ChargingPower: 39}),
		Battery:   domain.Failed[rover_modbus.BatteryState](errors.New("request timed out")),
		Historical: domain.Ok(rover_modbus.HistoricalParameters{
			ChargeAmpHoursToday: 33,
		}),
	}
}

func TestPrinter(t *testing.T) {

	assert := assert.New(t)

	var out bytes.Buffer
	require.NoError(t, Printer{Out: &out}.Publish(testReading()))

	text := out.String()
	assert.Contains(text, "2024-05-01 12:00:00  model ML2420N")
	assert.Contains(text, "18.4 V  2.15 A  39 W")
	assert.Contains(text, "battery     error: request timed out")
	assert.Contains(text, "charged 33 Ah")
}

func TestJSONLines(t *testing.T) {

	require := require.New(t)

	var out bytes.Buffer
	j := NewJSONLines(&out)
	require.NoError(j.Publish(testReading()))
	require.NoError(j.Publish(testReading()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(lines, 2)

	var r domain.Reading
	require.NoError(json.Unmarshal([]byte(lines[0]), &r))
	require.True(r.Panel.IsOk())
	require.EqualError(r.Battery.Err(), "request timed out")
}

func TestFanoutContinuesAfterFailure(t *testing.T) {

	assert := assert.New(t)

	var calls []string
	failing := Func{SinkName: "failing", Fn: func(domain.Reading) error {
		calls = append(calls, "failing")
		return errors.New("broker unavailable")
	}}
	ok := Func{SinkName: "ok", Fn: func(domain.Reading) error {
		calls = append(calls, "ok")
		return nil
	}}

	Fanout(time.Second, zap.NewNop(), failing, ok)(testReading())
	assert.Equal([]string{"failing", "ok"}, calls)
}

func TestFanoutTimeout(t *testing.T) {

	release := make(chan struct{})
	defer close(release)

	slow := Func{SinkName: "slow", Fn: func(domain.Reading) error {
		<-release
		return nil
	}}

	err := runWithTimeout(50*time.Millisecond, slow, testReading())
	assert.Error(t, err)
}

func TestFanoutSkipsSinkStillPublishing(t *testing.T) {

	assert := assert.New(t)

	var running, maxRunning, calls atomic.Int32
	slow := Func{SinkName: "slow", Fn: func(domain.Reading) error {
		calls.Add(1)
		n := running.Add(1)
		defer running.Add(-1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(200 * time.Millisecond)
		return nil
	}}

	publish := Fanout(50*time.Millisecond, zap.NewNop(), slow)
	for i := 0; i < 3; i++ {
		publish(testReading())
	}
	assert.Equal(int32(1), calls.Load(), "readings skipped while the first publish runs")
	assert.Equal(int32(1), maxRunning.Load())

	// once the first publish returned the sink accepts readings again
	assert.Eventually(func() bool {
		publish(testReading())
		return calls.Load() == 2
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(int32(1), maxRunning.Load())
}
