package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/berfenger/rover2mqtt/internal/core/domain"
	"github.com/berfenger/rover2mqtt/internal/core/port"
	"github.com/berfenger/rover2mqtt/pkg/rover_modbus"

	"go.uber.org/zap"
)

const DefaultPollInterval = 60 * time.Second

type Poller struct {
	Reader    rover_modbus.RoverModbusReader
	Interval  time.Duration
	Sink      domain.ReadingSink
	Logger    *zap.Logger
	NewTicker port.TickerFactory

	model   string
	lastEnd time.Time
}

func NewPoller(reader rover_modbus.RoverModbusReader, interval time.Duration, sink domain.ReadingSink, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		Reader:    reader,
		Interval:  interval,
		Sink:      sink,
		Logger:    logger.With(zap.String("component", "poller")),
		NewTicker: port.NewTimeTicker,
	}
}

// Connect opens the device and reads its model. Only a connection error is returned.
func (p *Poller) Connect() error {
	p.Logger.Info("poller@connecting")
	if err := p.Reader.Open(); err != nil {
		p.Logger.Error("poller@connecting failed", zap.Error(err))
		return fmt.Errorf("connect: %w", err)
	}
	p.identify()
	return nil
}

func (p *Poller) identify() {
	model, err := p.Reader.GetProductModel()
	if err != nil {
		p.Logger.Warn("poller@identifying: could not read product model", zap.Error(err))
		return
	}
	if !rover_modbus.IsSupportedModel(model) {
		p.Logger.Warn("poller@identifying: unsupported model, continuing anyway", zap.String("model", model))
	} else {
		p.Logger.Info("poller@identifying: found model", zap.String("model", strings.TrimSpace(model)))
	}
	p.model = strings.TrimSpace(model)
}

// Run connects, identifies the device and then polls until ctx is cancelled. The first
// cycle runs immediately and the interval is measured from its start. Ticks that fire
// while a cycle is still running are skipped.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.Connect(); err != nil {
		return err
	}
	defer p.close()

	ticker := p.NewTicker(p.Interval)
	defer ticker.Stop()

	p.emit(p.PollOnce())

	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("poller@polling stopped")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case tick := <-ticker.C():
			if tick.Before(p.lastEnd) {
				p.Logger.Warn("poller@polling: cycle overran the interval, skipping tick", zap.Duration("interval", p.Interval))
				continue
			}
			p.emit(p.PollOnce())
		}
	}
}

// PollOnce reads panel, battery and historical blocks in that order. A failed read is
// recorded in its slot and the remaining reads still run. It must not be called while
// Run is active.
func (p *Poller) PollOnce() domain.Reading {
	reading := domain.Reading{
		Timestamp: time.Now(),
		Model:     p.model,
	}

	panel, err := p.Reader.GetPanelState()
	p.logReadError("panel", err)
	reading.Panel = domain.SlotOf(panel, err)

	battery, err := p.Reader.GetBatteryState()
	p.logReadError("battery", err)
	reading.Battery = domain.SlotOf(battery, err)

	historical, err := p.Reader.GetHistoricalParameters()
	p.logReadError("historical", err)
	reading.Historical = domain.SlotOf(historical, err)

	p.lastEnd = time.Now()
	return reading
}

func (p *Poller) logReadError(block string, err error) {
	if err != nil {
		p.Logger.Warn("poller@polling: block read failed", zap.String("block", block), zap.Error(err))
	}
}

func (p *Poller) emit(reading domain.Reading) {
	if p.Sink != nil {
		p.Sink(reading)
	}
}

func (p *Poller) close() {
	if err := p.Reader.Close(); err != nil {
		p.Logger.Warn("poller@closing", zap.Error(err))
	}
}
