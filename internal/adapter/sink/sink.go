package sink

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/berfenger/rover2mqtt/internal/core/domain"

	"github.com/primetalk/goio/io"
	"go.uber.org/zap"
)

// Sink consumes the reading produced by one poll cycle.
type Sink interface {
	Name() string
	Publish(reading domain.Reading) error
}

// Fanout hands every reading to each sink in turn. A sink that fails or does not
// return within timeout is logged and does not hold back the others. A sink whose
// previous publish is still running after a timeout skips the reading.
func Fanout(timeout time.Duration, logger *zap.Logger, sinks ...Sink) domain.ReadingSink {
	logger = logger.With(zap.String("component", "sink"))
	guarded := make([]*inFlight, len(sinks))
	for i, s := range sinks {
		guarded[i] = &inFlight{Sink: s}
	}
	return func(reading domain.Reading) {
		for _, s := range guarded {
			if !s.busy.CompareAndSwap(false, true) {
				logger.Warn("sink still publishing a previous reading, skipping", zap.String("sink", s.Name()))
				continue
			}
			if err := runWithTimeout(timeout, s, reading); err != nil {
				logger.Error("sink publish failed", zap.String("sink", s.Name()), zap.Error(err))
			}
		}
	}
}

// inFlight marks a sink busy until its publish returns, even when the caller gave up.
type inFlight struct {
	Sink
	busy atomic.Bool
}

func (s *inFlight) Publish(reading domain.Reading) error {
	defer s.busy.Store(false)
	return s.Sink.Publish(reading)
}

func runWithTimeout(timeout time.Duration, s Sink, reading domain.Reading) error {
	publish := io.Eval(func() (struct{}, error) {
		return struct{}{}, s.Publish(reading)
	})
	if timeout > 0 {
		publish = io.WithTimeout[struct{}](timeout)(publish)
	}
	result := io.RunSync(publish)
	if result.Error != nil {
		return fmt.Errorf("%s: %w", s.Name(), result.Error)
	}
	return nil
}

// Func adapts a plain function to Sink.
type Func struct {
	SinkName string
	Fn       func(domain.Reading) error
}

func (f Func) Name() string {
	return f.SinkName
}

func (f Func) Publish(reading domain.Reading) error {
	return f.Fn(reading)
}
