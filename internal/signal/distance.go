package signal

import "math"

// Estimator maps received signal strength to distance using the log-distance path-loss model.
type Estimator struct {
	// ReferencePower is the expected RSSI at one meter.
	ReferencePower float64
	// Exponent is the path-loss exponent n.
	Exponent float64
}

// NewEstimator returns an estimator with the given calibration.
func NewEstimator(referencePower, exponent float64) Estimator {
	return Estimator{ReferencePower: referencePower, Exponent: exponent}
}

// Distance estimates meters from a raw reading of any decoded shape.
// It returns nil when the reading is absent or not numeric.
func (e Estimator) Distance(raw any) *float64 {
	rssi, ok := Float(raw)
	if !ok {
		return nil
	}
	return e.FromRSSI(rssi)
}

// FromRSSI estimates meters from a numeric reading, rounded to centimeters.
func (e Estimator) FromRSSI(rssi float64) *float64 {
	d := math.Pow(10, (e.ReferencePower-rssi)/(10*e.Exponent))
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return nil
	}
	d = math.Round(d*100) / 100
	return &d
}
