package signal

import "math"

const (
	emptyVolts = 2.0
	fullVolts  = 3.0
)

// BatteryPercent maps a beacon battery voltage in millivolts onto 0-100,
// linear between 2.0 V and 3.0 V and clamped at both ends.
func BatteryPercent(raw any) *int {
	mv, ok := Float(raw)
	if !ok {
		return nil
	}

	frac := (mv/1000.0 - emptyVolts) / (fullVolts - emptyVolts)
	frac = math.Max(0, math.Min(1, frac))

	pct := int(math.RoundToEven(frac * 100))
	return &pct
}
