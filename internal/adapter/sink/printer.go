package sink

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/berfenger/rover2mqtt/internal/core/domain"
)

// Printer writes a human-readable summary of each reading.
type Printer struct {
	Out io.Writer
}

func (p Printer) Name() string {
	return "printer"
}

func (p Printer) Publish(r domain.Reading) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s", r.Timestamp.Format(time.DateTime))
	if r.Model != "" {
		fmt.Fprintf(&b, "  model %s", r.Model)
	}
	b.WriteString("\n")

	if v, ok := r.Panel.Value(); ok {
		s := v.Scaled()
		fmt.Fprintf(&b, "  panel       %.1f V  %.2f A  %.0f W\n", s.VoltageVolt, s.CurrentAmp, s.ChargingPowerWatt)
	} else {
		fmt.Fprintf(&b, "  panel       error: %v\n", r.Panel.Err())
	}

	if v, ok := r.Battery.Value(); ok {
		s := v.Scaled()
		fmt.Fprintf(&b, "  battery     %.0f%%  %.1f V  %.2f A  controller %.0f°C  battery %.0f°C\n",
			s.StateOfChargePercent, s.VoltageVolt, s.ChargingCurrentAmp, s.ControllerTemperatureC, s.BatteryTemperatureC)
	} else {
		fmt.Fprintf(&b, "  battery     error: %v\n", r.Battery.Err())
	}

	if v, ok := r.Historical.Value(); ok {
		fmt.Fprintf(&b, "  today       voltage %d..%d  max charge %d A / %d W  max discharge %d A / %d W\n",
			v.BatteryMinVoltageToday, v.BatteryMaxVoltageToday,
			v.MaxChargeCurrentToday, v.MaxChargePowerToday,
			v.MaxDischargeCurrentToday, v.MaxDischargePowerToday)
		fmt.Fprintf(&b, "              charged %d Ah  discharged %d Ah  generated %d  consumed %d\n",
			v.ChargeAmpHoursToday, v.DischargeAmpHoursToday, v.PowerGenerationToday, v.PowerConsumptionToday)
	} else {
		fmt.Fprintf(&b, "  today       error: %v\n", r.Historical.Err())
	}

	_, err := io.WriteString(p.Out, b.String())
	return err
}
