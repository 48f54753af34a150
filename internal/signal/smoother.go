package signal

// SmootherParams tunes a Smoother.
type SmootherParams struct {
	// ProcessNoise is how far the true signal may drift between samples.
	ProcessNoise float64
	// MeasurementNoise is how noisy a single reading is assumed to be.
	MeasurementNoise float64
	// MaxStep bounds how far one update may move the estimate.
	MaxStep float64
}

// DefaultSmootherParams is tuned for BLE RSSI in dBm.
var DefaultSmootherParams = SmootherParams{ProcessNoise: 0.3, MeasurementNoise: 9.0, MaxStep: 3.0}

// Smoother is a one-dimensional recursive filter for a single signal source.
// It is not safe for concurrent use; callers serialize access per source.
type Smoother struct {
	params     SmootherParams
	estimate   float64
	variance   float64
	hasReading bool
}

// NewSmoother returns a smoother with no prior reading.
func NewSmoother(params SmootherParams) *Smoother {
	return &Smoother{params: params, variance: 1.0}
}

// Estimate returns the current estimate, or false before the first reading.
func (s *Smoother) Estimate() (float64, bool) {
	return s.estimate, s.hasReading
}

// Update blends a reading into the estimate and returns the new estimate.
// A nil reading leaves the state untouched.
func (s *Smoother) Update(reading *float64) (float64, bool) {
	if reading == nil {
		return s.Estimate()
	}

	m := *reading
	if !s.hasReading {
		s.estimate = m
		s.variance = 1.0
		s.hasReading = true
		return s.estimate, true
	}

	s.variance += s.params.ProcessNoise
	gain := s.variance / (s.variance + s.params.MeasurementNoise)
	proposed := s.estimate + gain*(m-s.estimate)

	switch delta := proposed - s.estimate; {
	case delta > s.params.MaxStep:
		proposed = s.estimate + s.params.MaxStep
	case delta < -s.params.MaxStep:
		proposed = s.estimate - s.params.MaxStep
	}

	s.estimate = proposed
	s.variance *= 1.0 - gain
	return s.estimate, true
}
