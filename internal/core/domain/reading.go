package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/berfenger/rover2mqtt/pkg/rover_modbus"
)

// Slot holds the outcome of one block read: a value or an error, never both.
type Slot[T any] struct {
	value *T
	err   error
}

func Ok[T any](value T) Slot[T] {
	return Slot[T]{value: &value}
}

func Failed[T any](err error) Slot[T] {
	if err == nil {
		err = errors.New("unknown error")
	}
	return Slot[T]{err: err}
}

// SlotOf converts a (value, error) pair as returned by the device client.
func SlotOf[T any](value *T, err error) Slot[T] {
	if err != nil {
		return Failed[T](err)
	}
	if value == nil {
		return Failed[T](errors.New("empty result"))
	}
	return Ok(*value)
}

func (s Slot[T]) Value() (*T, bool) {
	return s.value, s.err == nil && s.value != nil
}

func (s Slot[T]) Err() error {
	return s.err
}

func (s Slot[T]) IsOk() bool {
	return s.err == nil && s.value != nil
}

type slotJSON[T any] struct {
	Value *T     `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s Slot[T]) MarshalJSON() ([]byte, error) {
	if s.err != nil {
		return json.Marshal(slotJSON[T]{Error: s.err.Error()})
	}
	return json.Marshal(slotJSON[T]{Value: s.value})
}

func (s *Slot[T]) UnmarshalJSON(data []byte) error {
	var j slotJSON[T]
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	if j.Error != "" {
		*s = Failed[T](errors.New(j.Error))
		return nil
	}
	*s = SlotOf(j.Value, nil)
	return nil
}

// Reading is the result of one poll cycle.
type Reading struct {
	Timestamp  time.Time                               `json:"timestamp"`
	Model      string                                  `json:"model,omitempty"`
	Panel      Slot[rover_modbus.PanelState]           `json:"panel"`
	Battery    Slot[rover_modbus.BatteryState]         `json:"battery"`
	Historical Slot[rover_modbus.HistoricalParameters] `json:"historical"`
}

func (r Reading) Errors() []error {
	var errs []error
	for _, err := range []error{r.Panel.Err(), r.Battery.Err(), r.Historical.Err()} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

type ReadingSink func(Reading)
